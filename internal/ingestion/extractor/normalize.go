package extractor

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	htmlTagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlBlockRe = regexp.MustCompile(`(?i)<\s*/?\s*(p|div|br|li|tr|h[1-6]|section|article)[^>]*>`)
)

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func sanitizeUTF8(s string) string {
	if s == "" || utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, " ")
}

// normalizeLines keeps line structure (headings depend on it) but collapses
// runs of spaces inside each line and runs of blank lines between them.
func normalizeLines(s string) string {
	s = sanitizeUTF8(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, ln := range lines {
		ln = collapseWhitespace(ln)
		if ln == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, ln)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func stripHTML(s string) string {
	s = htmlBlockRe.ReplaceAllString(s, "\n")
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// -------------------- Kind detection --------------------

func ClassifyKind(name, mime string, smallBytes []byte) string {
	m := strings.ToLower(strings.TrimSpace(mime))
	ext := strings.ToLower(filepath.Ext(name))

	if m == "application/pdf" || ext == ".pdf" || isPDFHeader(smallBytes) {
		return "pdf"
	}
	if isZipHeader(smallBytes) || ext == ".docx" || ext == ".pptx" ||
		strings.Contains(m, "wordprocessingml") || strings.Contains(m, "presentationml") {
		return "openxml"
	}
	if m == "text/html" || ext == ".html" || ext == ".htm" || looksLikeHTML(smallBytes) {
		return "html"
	}
	if strings.HasPrefix(m, "text/") || ext == ".txt" || ext == ".md" || ext == ".markdown" {
		return "text"
	}
	if strings.HasPrefix(m, "image/") || imageExts[ext] {
		return "image"
	}
	if strings.HasPrefix(m, "video/") || strings.HasPrefix(m, "audio/") {
		return "media"
	}
	return "unknown"
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
	".gif": true, ".bmp": true, ".webp": true,
}

func isPDFHeader(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func isZipHeader(b []byte) bool {
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func looksLikeHTML(b []byte) bool {
	n := len(b)
	if n > 2048 {
		n = 2048
	}
	s := strings.TrimSpace(strings.ToLower(string(b[:n])))
	return strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html") ||
		(strings.Contains(s, "<html") && strings.Contains(s, "</html>"))
}

// -------------------- Strict native extraction --------------------

// ExtractTextStrict handles text-like payloads without any parser library.
func ExtractTextStrict(name, mime string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no data")
	}

	m := strings.ToLower(strings.TrimSpace(mime))
	ext := strings.ToLower(filepath.Ext(name))

	if strings.HasPrefix(m, "text/") || m == "application/json" || m == "application/xml" ||
		ext == ".txt" || ext == ".md" || ext == ".csv" || ext == ".json" ||
		ext == ".xml" || ext == ".html" || ext == ".htm" {

		s := string(data)
		if m == "text/html" || ext == ".html" || ext == ".htm" || looksLikeHTML(data) {
			s = stripHTML(s)
		}
		return s, nil
	}

	// if it "looks like text", return it rather than erroring
	printable := 0
	total := 0
	for _, r := range string(data) {
		total++
		if r == '\n' || r == '\r' || r == '\t' || r == ' ' {
			printable++
			continue
		}
		if r >= 32 && r != 127 && r != utf8.RuneError {
			printable++
		}
	}
	if total > 0 && float64(printable)/float64(total) > 0.90 {
		return string(data), nil
	}

	return "", fmt.Errorf("unsupported file type mime=%q ext=%q", mime, ext)
}
