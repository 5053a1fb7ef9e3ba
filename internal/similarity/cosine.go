package similarity

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokenize lowercases text, folds accents ("Introducción" -> "introduccion")
// and splits on anything that is not a letter or digit.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	folded := foldAccents(strings.ToLower(text))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func termFrequencies(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf
}

// Cosine is the cosine similarity of the term-frequency vectors of a and b,
// in [0,1]. Texts without tokens score 0.
func Cosine(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	va, vb := termFrequencies(ta), termFrequencies(tb)

	var dot, na, nb float64
	for term, x := range va {
		na += x * x
		if y, ok := vb[term]; ok {
			dot += x * y
		}
	}
	for _, y := range vb {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	c := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if c > 1 {
		c = 1
	}
	return c
}

// Score is Cosine scaled to 0-100 and rounded to two decimals.
func Score(a, b string) float64 {
	return round2(Cosine(a, b) * 100)
}

// IsSimilar evaluates a threshold against the locally computed score only.
func IsSimilar(score, threshold float64) bool {
	return score >= threshold
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
