package similarity

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/research-evidence-backend/internal/platform/openai"
)

const DefaultMaxRunes = 12000

const analysisSystemPrompt = `You review research evidence for duplication.
Compare the two texts and judge how similar their substance is.
Return similarity_score from 0 (unrelated) to 100 (same content) and a verdict:
one or two sentences, in the language of the texts, naming what overlaps and what differs.`

var analysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"similarity_score": map[string]any{"type": "number"},
		"verdict":          map[string]any{"type": "string"},
	},
	"required":             []string{"similarity_score", "verdict"},
	"additionalProperties": false,
}

// OpenAIAnalyzer asks an OpenAI model for a structured similarity judgement.
type OpenAIAnalyzer struct {
	client   openai.Client
	maxRunes int
}

func NewOpenAIAnalyzer(client openai.Client, maxRunes int) *OpenAIAnalyzer {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	return &OpenAIAnalyzer{client: client, maxRunes: maxRunes}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, textA, textB string) (Analysis, error) {
	user := fmt.Sprintf("TEXT A:\n%s\n\nTEXT B:\n%s", truncateRunes(textA, a.maxRunes), truncateRunes(textB, a.maxRunes))
	obj, err := a.client.GenerateJSON(ctx, analysisSystemPrompt, user, "evidence_similarity", analysisSchema)
	if err != nil {
		return Analysis{}, err
	}
	return parseAnalysis(obj)
}

func parseAnalysis(obj map[string]any) (Analysis, error) {
	score, ok := obj["similarity_score"].(float64)
	if !ok {
		return Analysis{}, fmt.Errorf("malformed response: similarity_score missing or not a number")
	}
	verdict, _ := obj["verdict"].(string)
	verdict = strings.TrimSpace(verdict)
	if verdict == "" {
		return Analysis{}, fmt.Errorf("malformed response: empty verdict")
	}
	if score < 0 || score > 100 {
		return Analysis{}, fmt.Errorf("malformed response: similarity_score %.2f out of range", score)
	}
	return Analysis{Score: score, Verdict: verdict}, nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
