package domain

import (
	"github.com/yungbote/research-evidence-backend/internal/domain/evidence"
)

const (
	DocumentStatusSubmitted = evidence.DocumentStatusSubmitted
	DocumentStatusApproved  = evidence.DocumentStatusApproved
	DocumentStatusRejected  = evidence.DocumentStatusRejected
	DocumentStatusArchived  = evidence.DocumentStatusArchived

	AnalysisPending     = evidence.AnalysisPending
	AnalysisCompleted   = evidence.AnalysisCompleted
	AnalysisUnavailable = evidence.AnalysisUnavailable
	AnalysisSkipped     = evidence.AnalysisSkipped

	EntityWorkPlan         = evidence.EntityWorkPlan
	EntityProduct          = evidence.EntityProduct
	EntityProgressReport   = evidence.EntityProgressReport
	EntityEvidenceDocument = evidence.EntityEvidenceDocument

	ReviewComment     = evidence.ReviewComment
	ReviewApprove     = evidence.ReviewApprove
	ReviewReject      = evidence.ReviewReject
	ReviewRecalculate = evidence.ReviewRecalculate
)

type EvidenceDocument = evidence.EvidenceDocument
type Section = evidence.Section
type Similarity = evidence.Similarity
type DocumentComparison = evidence.DocumentComparison
type SectionComparison = evidence.SectionComparison
type ReviewEntry = evidence.ReviewEntry
type EntityKind = evidence.EntityKind
type EntityRef = evidence.EntityRef

// AllModels lists every table in migration order.
func AllModels() []any {
	return []any{
		&EvidenceDocument{},
		&Section{},
		&DocumentComparison{},
		&SectionComparison{},
		&ReviewEntry{},
	}
}

var (
	ErrNotFound             = evidence.ErrNotFound
	ErrConfirmationRequired = evidence.ErrConfirmationRequired
	CanonicalPair           = evidence.CanonicalPair

	IsExtractionError      = evidence.IsExtractionError
	IsInvalidPair          = evidence.IsInvalidPair
	IsAnalysisServiceError = evidence.IsAnalysisServiceError
)

type ExtractionError = evidence.ExtractionError
type InvalidPairError = evidence.InvalidPairError
type AnalysisServiceError = evidence.AnalysisServiceError
