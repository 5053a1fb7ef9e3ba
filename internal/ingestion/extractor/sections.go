package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	PreambleTitle = "Introducción"
	chunkTitle    = "Parte "

	maxHeadingRunes = 90
	maxHeadingWords = 12
)

// SectionDraft is an extracted section before it is persisted.
type SectionDraft struct {
	Title       string
	Content     string
	HeadingKind string
}

var (
	markdownHeadingRe = regexp.MustCompile(`^#{1,6}\s+(\S.*)$`)
	numberedHeadingRe = regexp.MustCompile(`^(\d{1,2}(?:\.\d{1,2})*[.)]|\d{1,2}(?:\.\d{1,2})+)\s+(\p{Lu}.*)$`)
	romanHeadingRe    = regexp.MustCompile(`^([IVXLC]{1,6})[.)]\s+(\S.*)$`)
)

// headingOf reports whether line starts a new section and, if so, its title.
func headingOf(line string) (title, kind string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || len([]rune(line)) > maxHeadingRunes {
		return "", "", false
	}
	if m := markdownHeadingRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(strings.TrimRight(m[1], "# ")), "markdown", true
	}
	if len(strings.Fields(line)) > maxHeadingWords || strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") {
		return "", "", false
	}
	if numberedHeadingRe.MatchString(line) || romanHeadingRe.MatchString(line) {
		return line, "numbered", true
	}
	if isCapsHeading(line) {
		return line, "caps", true
	}
	return "", "", false
}

func isCapsHeading(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 4
}

// SplitSections groups text under detected headings. Text ahead of the first
// heading becomes PreambleTitle; headings with no body are dropped. Without
// any heading the text is cut into overlapping chunks titled "Parte N".
func SplitSections(text string, chunkSize, overlap int) []SectionDraft {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		out      []SectionDraft
		cur      = SectionDraft{Title: PreambleTitle, HeadingKind: "preamble"}
		body     []string
		headings int
	)
	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content != "" {
			cur.Content = content
			out = append(out, cur)
		}
		body = body[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if title, kind, ok := headingOf(line); ok {
			flush()
			headings++
			cur = SectionDraft{Title: title, HeadingKind: kind}
			continue
		}
		body = append(body, line)
	}
	flush()

	if headings == 0 || len(out) == 0 {
		return chunkSections(text, chunkSize, overlap)
	}
	return out
}

func chunkSections(text string, chunkSize, overlap int) []SectionDraft {
	chunks := SplitIntoChunks(text, chunkSize, overlap)
	out := make([]SectionDraft, 0, len(chunks))
	for i, c := range chunks {
		out = append(out, SectionDraft{
			Title:       chunkTitle + strconv.Itoa(i+1),
			Content:     c,
			HeadingKind: "chunk",
		})
	}
	return out
}

// SplitIntoChunks splits long text into overlapping chunks.
func SplitIntoChunks(text string, chunkSize int, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Work in runes so we never cut a UTF-8 sequence in half
	r := []rune(text)

	if chunkSize < 200 {
		chunkSize = 200
	}
	if overlap < 0 {
		overlap = 0
	}
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	out := make([]string, 0, (len(r)/step)+1)
	for start := 0; start < len(r); start += step {
		end := start + chunkSize
		if end > len(r) {
			end = len(r)
		}

		p := strings.TrimSpace(string(r[start:end]))
		if p != "" {
			out = append(out, p)
		}

		if end == len(r) {
			break
		}
	}

	return out
}
