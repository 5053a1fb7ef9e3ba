package evidence

import (
	"time"
)

const (
	DocumentStatusSubmitted = "submitted"
	DocumentStatusApproved  = "approved"
	DocumentStatusRejected  = "rejected"
	DocumentStatusArchived  = "archived"
)

// EvidenceDocument is an artifact (uploaded file or external link) reported
// against a deliverable for a reporting period. Immutable once created except
// for Status.
type EvidenceDocument struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID       uint   `gorm:"column:owner_id;not null;index" json:"owner_id"`
	PeriodID      uint   `gorm:"column:period_id;not null;index" json:"period_id"`
	DeliverableID uint   `gorm:"column:deliverable_id;not null;index" json:"deliverable_id"`
	Title         string `gorm:"column:title;not null" json:"title"`

	// StorageKey is a local path or a gs://bucket/key URI. LinkURL is used when
	// StorageKey is empty.
	StorageKey string `gorm:"column:storage_key" json:"storage_key,omitempty"`
	LinkURL    string `gorm:"column:link_url" json:"link_url,omitempty"`
	MimeType   string `gorm:"column:mime_type" json:"mime_type,omitempty"`

	Status string `gorm:"column:status;not null;default:'submitted';index" json:"status"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (EvidenceDocument) TableName() string { return "evidence_document" }

// SourceName is the best available name for extension-based type detection.
func (d *EvidenceDocument) SourceName() string {
	if d == nil {
		return ""
	}
	if d.StorageKey != "" {
		return d.StorageKey
	}
	return d.LinkURL
}
