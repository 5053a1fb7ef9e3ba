package evidence

import (
	"time"

	"gorm.io/datatypes"
)

// Section is a titled text chunk derived from an EvidenceDocument. Sections are
// never edited: re-derivation deletes them all and inserts a fresh sequence.
type Section struct {
	ID         uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID uint              `gorm:"column:document_id;not null;index;uniqueIndex:idx_evidence_section_seq,priority:1" json:"document_id"`
	Document   *EvidenceDocument `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`

	Sequence int    `gorm:"column:sequence;not null;uniqueIndex:idx_evidence_section_seq,priority:2" json:"sequence"`
	Title    string `gorm:"column:title" json:"title"`
	Content  string `gorm:"column:content;type:text" json:"content"`

	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Section) TableName() string { return "evidence_section" }
