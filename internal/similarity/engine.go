package similarity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	types "github.com/yungbote/research-evidence-backend/internal/domain"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

const (
	DefaultAnalysisTimeout = 45 * time.Second
	IdenticalVerdict       = "Identical content"
)

// Result keeps the local and external measurements apart. Score is always set;
// the rest depends on whether the analyzer ran and succeeded.
type Result struct {
	Score         float64
	ExternalScore *float64
	Verdict       *string
	Status        string
	AnalysisErr   error
}

// Similarity converts the result into the columns stored on a comparison row.
func (r Result) Similarity() types.Similarity {
	score := r.Score
	sim := types.Similarity{
		SimilarityDegree:         &score,
		ExternalSimilarityDegree: r.ExternalScore,
		SimilarityVerdict:        r.Verdict,
		AnalysisStatus:           r.Status,
	}
	if r.AnalysisErr != nil {
		msg := r.AnalysisErr.Error()
		sim.AnalysisError = &msg
	}
	now := time.Now().UTC()
	sim.ComputedAt = &now
	return sim
}

type Engine struct {
	analyzer Analyzer
	timeout  time.Duration
	log      *logger.Logger
}

// NewEngine builds an engine. A nil analyzer disables the external verdict.
func NewEngine(log *logger.Logger, analyzer Analyzer, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		analyzer: analyzer,
		timeout:  timeout,
		log:      log.With("service", "SimilarityEngine"),
	}
}

// Compute never fails: analyzer problems are reported through Status and
// AnalysisErr while the local score stands.
func (e *Engine) Compute(ctx context.Context, textA, textB string) Result {
	if strings.TrimSpace(textA) == "" || strings.TrimSpace(textB) == "" {
		return Result{Score: 0, Status: types.AnalysisSkipped}
	}
	if textA == textB {
		verdict := IdenticalVerdict
		return Result{Score: 100, Verdict: &verdict, Status: types.AnalysisSkipped}
	}

	res := Result{Score: Score(textA, textB), Status: types.AnalysisSkipped}
	if e.analyzer == nil {
		return res
	}

	analysis, err := e.analyze(ctx, textA, textB)
	if err != nil {
		e.log.Warn("External analysis unavailable; keeping local score", "score", res.Score, "error", err)
		res.Status = types.AnalysisUnavailable
		res.AnalysisErr = &types.AnalysisServiceError{Op: "analyze", Err: err}
		return res
	}
	external := round2(clampScore(analysis.Score))
	verdict := analysis.Verdict
	res.ExternalScore = &external
	res.Verdict = &verdict
	res.Status = types.AnalysisCompleted
	return res
}

type analyzeOutcome struct {
	analysis Analysis
	err      error
}

// analyze bounds the call even when the analyzer ignores ctx.
func (e *Engine) analyze(ctx context.Context, textA, textB string) (Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan analyzeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- analyzeOutcome{err: fmt.Errorf("analyzer panic: %v", r)}
			}
		}()
		a, err := e.analyzer.Analyze(ctx, textA, textB)
		done <- analyzeOutcome{analysis: a, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return Analysis{}, fmt.Errorf("timed out after %s: %w", e.timeout, out.err)
		}
		return out.analysis, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Analysis{}, fmt.Errorf("timed out after %s: %w", e.timeout, ctx.Err())
		}
		return Analysis{}, ctx.Err()
	}
}
