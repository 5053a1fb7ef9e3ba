package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/yungbote/research-evidence-backend/internal/platform/gcp"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

// TextExtractor turns raw file bytes into plain text with line breaks intact.
type TextExtractor interface {
	ExtractText(ctx context.Context, name, mime string, data []byte) (string, error)
}

type textExtractor struct {
	log   *logger.Logger
	docAI gcp.Document
	ocr   gcp.OCR
}

// ErrNoOCR means an image arrived but no OCR provider is configured.
var ErrNoOCR = errors.New("image evidence needs an OCR provider")

// NewTextExtractor builds the local extractor. docAI and ocr are optional.
// docAI is tried first for PDFs, with the local reader as fallback. Images go
// to ocr, or to docAI when only that is configured.
func NewTextExtractor(log *logger.Logger, docAI gcp.Document, ocr gcp.OCR) TextExtractor {
	if log == nil {
		log = logger.Nop()
	}
	return &textExtractor{log: log.With("component", "TextExtractor"), docAI: docAI, ocr: ocr}
}

func (t *textExtractor) ExtractText(ctx context.Context, name, mime string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty file")
	}
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}

	var (
		text string
		err  error
	)
	switch kind := ClassifyKind(name, mime, head); kind {
	case "pdf":
		if !isPDFHeader(data) {
			return "", fmt.Errorf("file claims pdf but has no %%PDF header")
		}
		text, err = t.extractPDF(ctx, data)
	case "openxml":
		text, err = extractOpenXML(data)
	case "image":
		text, err = t.extractImage(ctx, imageMime(name, mime), data)
	case "media":
		return "", fmt.Errorf("unsupported media type %q", mime)
	default:
		text, err = ExtractTextStrict(name, mime, data)
	}
	if err != nil {
		return "", err
	}
	return normalizeLines(text), nil
}

func (t *textExtractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	if t.docAI != nil {
		doc, err := t.docAI.Process(ctx, "application/pdf", data)
		switch {
		case err != nil:
			t.log.Warn("Document AI failed; falling back to local PDF reader", "error", err)
		case doc.PlainText() != "":
			return doc.PlainText(), nil
		default:
			t.log.Warn("Document AI returned no text; falling back to local PDF reader")
		}
	}
	return extractPDFLocal(data)
}

func (t *textExtractor) extractImage(ctx context.Context, mime string, data []byte) (string, error) {
	var (
		doc *gcp.ProcessedDocument
		err error
	)
	switch {
	case t.ocr != nil:
		doc, err = t.ocr.OCRImage(ctx, mime, data)
	case t.docAI != nil && docAIImageTypes[mime]:
		doc, err = t.docAI.Process(ctx, mime, data)
	default:
		return "", fmt.Errorf("%s: %w", mime, ErrNoOCR)
	}
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return doc.PlainText(), nil
}

// Image types Document AI's OCR processor accepts.
var docAIImageTypes = map[string]bool{
	"image/png": true, "image/jpeg": true, "image/tiff": true,
	"image/gif": true, "image/bmp": true, "image/webp": true,
}

func imageMime(name, mime string) string {
	m := strings.ToLower(strings.TrimSpace(mime))
	if strings.HasPrefix(m, "image/") {
		return m
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "image/" + strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	}
}

// extractPDFLocal reads page by page so a single bad page does not lose the
// whole document.
func extractPDFLocal(data []byte) (text string, err error) {
	defer func() {
		// the pdf reader panics on some malformed xref tables
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("corrupted pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var line strings.Builder
			for _, word := range row.Content {
				if line.Len() > 0 {
					line.WriteString(" ")
				}
				line.WriteString(word.S)
			}
			if s := strings.TrimSpace(line.String()); s != "" {
				b.WriteString(s)
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
