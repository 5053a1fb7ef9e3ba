package evidence

import (
	"time"
)

const (
	AnalysisPending     = "pending"
	AnalysisCompleted   = "completed"
	AnalysisUnavailable = "unavailable"
	AnalysisSkipped     = "skipped"
)

// Similarity holds the computed measurements shared by document and section
// comparisons. SimilarityDegree is nil until computed; once set it is never
// recomputed in place.
type Similarity struct {
	SimilarityDegree         *float64   `gorm:"column:similarity_degree;type:decimal(5,2)" json:"similarity_degree"`
	ExternalSimilarityDegree *float64   `gorm:"column:external_similarity_degree;type:decimal(5,2)" json:"external_similarity_degree,omitempty"`
	SimilarityVerdict        *string    `gorm:"column:similarity_verdict;type:text" json:"similarity_verdict"`
	AnalysisStatus           string     `gorm:"column:analysis_status;not null;default:'pending'" json:"analysis_status"`
	AnalysisError            *string    `gorm:"column:analysis_error;type:text" json:"analysis_error,omitempty"`
	ComputedAt               *time.Time `gorm:"column:computed_at" json:"computed_at,omitempty"`
}

// Computed reports whether the local score has been filled in.
func (s Similarity) Computed() bool { return s.SimilarityDegree != nil }

// DocumentComparison is the comparison of two EvidenceDocuments, stored with
// FirstID < SecondID so both argument orders resolve to one row.
type DocumentComparison struct {
	ID       uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstID  uint              `gorm:"column:first_id;not null;uniqueIndex:idx_document_comparison_pair,priority:1;check:chk_document_comparison_order,first_id < second_id" json:"first_id"`
	SecondID uint              `gorm:"column:second_id;not null;index;uniqueIndex:idx_document_comparison_pair,priority:2" json:"second_id"`
	First    *EvidenceDocument `gorm:"foreignKey:FirstID;constraint:OnDelete:CASCADE" json:"-"`
	Second   *EvidenceDocument `gorm:"foreignKey:SecondID;constraint:OnDelete:CASCADE" json:"-"`

	Similarity `gorm:"embedded"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DocumentComparison) TableName() string { return "document_comparison" }

// Involves reports whether documentID is one side of the comparison.
func (c *DocumentComparison) Involves(documentID uint) bool {
	return c != nil && (c.FirstID == documentID || c.SecondID == documentID)
}

// SectionComparison compares two Sections under one DocumentComparison, scoped
// to a rubric element. Uniqueness is on the section pair alone.
type SectionComparison struct {
	ID                 uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	ParentComparisonID uint                `gorm:"column:parent_comparison_id;not null;index" json:"parent_comparison_id"`
	Parent             *DocumentComparison `gorm:"foreignKey:ParentComparisonID;constraint:OnDelete:CASCADE" json:"-"`

	FirstSectionID  uint     `gorm:"column:first_section_id;not null;uniqueIndex:idx_section_comparison_pair,priority:1;check:chk_section_comparison_order,first_section_id < second_section_id" json:"first_section_id"`
	SecondSectionID uint     `gorm:"column:second_section_id;not null;index;uniqueIndex:idx_section_comparison_pair,priority:2" json:"second_section_id"`
	FirstSection    *Section `gorm:"foreignKey:FirstSectionID;constraint:OnDelete:CASCADE" json:"-"`
	SecondSection   *Section `gorm:"foreignKey:SecondSectionID;constraint:OnDelete:CASCADE" json:"-"`

	ElementID uint `gorm:"column:element_id;not null;index" json:"element_id"`

	Similarity `gorm:"embedded"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SectionComparison) TableName() string { return "section_comparison" }

// CanonicalPair orders two identifiers so the lower one comes first.
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}
