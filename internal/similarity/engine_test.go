package similarity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/research-evidence-backend/internal/domain"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

type countingAnalyzer struct {
	calls int32
	fn    func(ctx context.Context) (Analysis, error)
}

func (c *countingAnalyzer) Analyze(ctx context.Context, a, b string) (Analysis, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.fn(ctx)
}

func fixed(score float64, verdict string) *countingAnalyzer {
	return &countingAnalyzer{fn: func(context.Context) (Analysis, error) {
		return Analysis{Score: score, Verdict: verdict}, nil
	}}
}

func TestComputeEmptyTextSkipsAnalyzer(t *testing.T) {
	an := fixed(50, "x")
	e := NewEngine(logger.Nop(), an, time.Second)

	res := e.Compute(context.Background(), "", "anything")
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, types.AnalysisSkipped, res.Status)
	assert.Nil(t, res.Verdict)

	res = e.Compute(context.Background(), "anything", "  \n ")
	assert.Equal(t, 0.0, res.Score)
	assert.Zero(t, atomic.LoadInt32(&an.calls))
}

func TestComputeIdenticalText(t *testing.T) {
	an := fixed(50, "x")
	e := NewEngine(logger.Nop(), an, time.Second)

	res := e.Compute(context.Background(), "Informe de avance", "Informe de avance")
	assert.Equal(t, 100.0, res.Score)
	require.NotNil(t, res.Verdict)
	assert.Equal(t, IdenticalVerdict, *res.Verdict)
	assert.Zero(t, atomic.LoadInt32(&an.calls))
}

func TestComputeStoresVerdictVerbatim(t *testing.T) {
	an := fixed(75, "Highly similar, B extends A")
	e := NewEngine(logger.Nop(), an, time.Second)

	res := e.Compute(context.Background(), "The quick fox", "The quick fox runs")
	assert.InDelta(t, 86.60, res.Score, 0.001)
	assert.Equal(t, types.AnalysisCompleted, res.Status)
	require.NotNil(t, res.Verdict)
	assert.Equal(t, "Highly similar, B extends A", *res.Verdict)
	require.NotNil(t, res.ExternalScore)
	assert.Equal(t, 75.0, *res.ExternalScore)
	assert.EqualValues(t, 1, atomic.LoadInt32(&an.calls))

	sim := res.Similarity()
	require.NotNil(t, sim.SimilarityDegree)
	assert.InDelta(t, 86.60, *sim.SimilarityDegree, 0.001)
	assert.Nil(t, sim.AnalysisError)
	assert.NotNil(t, sim.ComputedAt)
}

func TestComputeAnalyzerTimeoutKeepsScore(t *testing.T) {
	// Ignores ctx on purpose: the engine must not wait for it.
	release := make(chan struct{})
	defer close(release)
	an := &countingAnalyzer{fn: func(context.Context) (Analysis, error) {
		<-release
		return Analysis{Score: 1, Verdict: "late"}, nil
	}}
	e := NewEngine(logger.Nop(), an, 20*time.Millisecond)

	res := e.Compute(context.Background(), "The quick fox", "The quick fox runs")
	assert.InDelta(t, 86.60, res.Score, 0.001)
	assert.Nil(t, res.Verdict)
	assert.Nil(t, res.ExternalScore)
	assert.Equal(t, types.AnalysisUnavailable, res.Status)
	assert.True(t, types.IsAnalysisServiceError(res.AnalysisErr))
	assert.ErrorIs(t, res.AnalysisErr, context.DeadlineExceeded)

	sim := res.Similarity()
	require.NotNil(t, sim.AnalysisError)
	assert.Contains(t, *sim.AnalysisError, "timed out")
}

func TestComputeAnalyzerErrorIsNotFatal(t *testing.T) {
	an := &countingAnalyzer{fn: func(context.Context) (Analysis, error) {
		return Analysis{}, errors.New("openai http 503: overloaded")
	}}
	e := NewEngine(logger.Nop(), an, time.Second)

	res := e.Compute(context.Background(), "alpha beta", "alpha gamma")
	assert.InDelta(t, 50.0, res.Score, 0.001)
	assert.Equal(t, types.AnalysisUnavailable, res.Status)
	assert.Nil(t, res.Verdict)
	assert.Error(t, res.AnalysisErr)
}

func TestComputeAnalyzerPanicIsContained(t *testing.T) {
	an := &countingAnalyzer{fn: func(context.Context) (Analysis, error) { panic("boom") }}
	e := NewEngine(logger.Nop(), an, time.Second)

	res := e.Compute(context.Background(), "alpha beta", "alpha gamma")
	assert.Equal(t, types.AnalysisUnavailable, res.Status)
}

func TestComputeWithoutAnalyzer(t *testing.T) {
	e := NewEngine(logger.Nop(), nil, 0)
	res := e.Compute(context.Background(), "alpha beta", "alpha gamma")
	assert.InDelta(t, 50.0, res.Score, 0.001)
	assert.Equal(t, types.AnalysisSkipped, res.Status)
	assert.Nil(t, res.AnalysisErr)
}

func TestComputeClampsExternalScore(t *testing.T) {
	e := NewEngine(logger.Nop(), fixed(100, "same"), time.Second)
	res := e.Compute(context.Background(), "alpha beta", "alpha gamma")
	require.NotNil(t, res.ExternalScore)
	assert.Equal(t, 100.0, *res.ExternalScore)
}
