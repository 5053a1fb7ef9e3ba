package similarity

import (
	"context"
)

// Analysis is the external service's view of two texts.
type Analysis struct {
	Score   float64
	Verdict string
}

// Analyzer is the external text-analysis collaborator. Implementations may be
// slow; the Engine bounds every call with its own timeout.
type Analyzer interface {
	Analyze(ctx context.Context, textA, textB string) (Analysis, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, textA, textB string) (Analysis, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, textA, textB string) (Analysis, error) {
	return f(ctx, textA, textB)
}
