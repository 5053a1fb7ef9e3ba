package services

import (
	"math"

	types "github.com/yungbote/research-evidence-backend/internal/domain"
)

// EvidenceProgress is the reported completion of one evidence document.
type EvidenceProgress struct {
	DocumentID uint    `json:"document_id"`
	Percentage float64 `json:"percentage"`
	Status     string  `json:"status"`
}

// ActivityProgress groups the evidence reported for one activity of a work plan.
type ActivityProgress struct {
	ActivityID uint               `json:"activity_id"`
	Weight     float64            `json:"weight"`
	Evidence   []EvidenceProgress `json:"evidence"`
}

// EvidencePercent is the evidence's own percentage; approved evidence counts as done.
func EvidencePercent(e EvidenceProgress) float64 {
	if e.Status == types.DocumentStatusApproved {
		return 100
	}
	return roundPercent(e.Percentage)
}

// ActivityPercent is the mean of the activity's evidence, 0 when it has none.
func ActivityPercent(a ActivityProgress) float64 {
	if len(a.Evidence) == 0 {
		return 0
	}
	var sum float64
	for _, e := range a.Evidence {
		sum += EvidencePercent(e)
	}
	return roundPercent(sum / float64(len(a.Evidence)))
}

// PlanPercent weights each activity by Weight. Negative weights count as 0;
// when every weight is 0 the activities count equally.
func PlanPercent(activities []ActivityProgress) float64 {
	if len(activities) == 0 {
		return 0
	}
	var total float64
	for _, a := range activities {
		total += math.Max(a.Weight, 0)
	}
	var sum float64
	for _, a := range activities {
		w := 1.0
		if total > 0 {
			w = math.Max(a.Weight, 0)
		}
		sum += w * ActivityPercent(a)
	}
	if total <= 0 {
		total = float64(len(activities))
	}
	return roundPercent(sum / total)
}

func roundPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(0, math.Min(100, v))
	return math.Round(v*100) / 100
}
