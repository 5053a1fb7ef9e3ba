package evidence

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// EntityKind is the closed set of entities a review trail can attach to.
type EntityKind string

const (
	EntityWorkPlan         EntityKind = "work_plan"
	EntityProduct          EntityKind = "product"
	EntityProgressReport   EntityKind = "progress_report"
	EntityEvidenceDocument EntityKind = "evidence_document"
)

func (k EntityKind) Valid() bool {
	switch k {
	case EntityWorkPlan, EntityProduct, EntityProgressReport, EntityEvidenceDocument:
		return true
	}
	return false
}

const (
	ReviewComment     = "comment"
	ReviewApprove     = "approve"
	ReviewReject      = "reject"
	ReviewRecalculate = "recalculate"
)

// EntityRef points at one reviewable entity.
type EntityRef struct {
	Kind EntityKind
	ID   uint
}

func (r EntityRef) String() string { return fmt.Sprintf("%s:%d", r.Kind, r.ID) }

// ReviewEntry is one line of the review/approval trail of any EntityKind.
type ReviewEntry struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityKind EntityKind     `gorm:"column:entity_kind;type:varchar(32);not null;index:idx_review_entry_ref,priority:1" json:"entity_kind"`
	EntityID   uint           `gorm:"column:entity_id;not null;index:idx_review_entry_ref,priority:2" json:"entity_id"`
	ActorID    uint           `gorm:"column:actor_id;not null;index" json:"actor_id"`
	Action     string         `gorm:"column:action;not null" json:"action"`
	Comment    string         `gorm:"column:comment;type:text" json:"comment,omitempty"`
	Payload    datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
}

func (ReviewEntry) TableName() string { return "review_entry" }

func (e *ReviewEntry) Ref() EntityRef { return EntityRef{Kind: e.EntityKind, ID: e.EntityID} }
