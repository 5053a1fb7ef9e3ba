package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/yungbote/research-evidence-backend/internal/platform/ctxutil"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

const documentTimeout = 3 * time.Minute

// Document runs a Document AI processor over raw file bytes.
type Document interface {
	Process(ctx context.Context, mimeType string, data []byte) (*ProcessedDocument, error)
	Close() error
}

type DocumentConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Credentials      string
}

// Enabled reports whether enough is configured to call a processor.
func (c DocumentConfig) Enabled() bool {
	return c.processorName() != ""
}

func (c DocumentConfig) location() string {
	if loc := strings.TrimSpace(c.Location); loc != "" {
		return loc
	}
	return "us"
}

func (c DocumentConfig) processorName() string {
	project := strings.TrimSpace(c.ProjectID)
	id := strings.TrimSpace(c.ProcessorID)
	if project == "" || id == "" {
		return ""
	}
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, c.location(), id)
	if v := strings.TrimSpace(c.ProcessorVersion); v != "" {
		name += "/processorVersions/" + v
	}
	return name
}

// ProcessedDocument is the layout Document AI recovered: the full text and,
// per page, the paragraphs in reading order.
type ProcessedDocument struct {
	Text  string
	Pages [][]string
}

// PlainText renders paragraphs separated by blank lines so heading
// detection sees layout boundaries. Falls back to the raw text when the
// processor returned no layout.
func (d *ProcessedDocument) PlainText() string {
	if d == nil {
		return ""
	}
	var paras []string
	for _, page := range d.Pages {
		paras = append(paras, page...)
	}
	if len(paras) == 0 {
		return strings.TrimSpace(d.Text)
	}
	return strings.Join(paras, "\n\n")
}

type documentService struct {
	log       *logger.Logger
	client    *documentai.DocumentProcessorClient
	processor string
}

func NewDocument(log *logger.Logger, cfg DocumentConfig) (Document, error) {
	name := cfg.processorName()
	if name == "" {
		return nil, fmt.Errorf("documentai: project and processor id required")
	}
	if log == nil {
		log = logger.Nop()
	}
	endpoint := cfg.location() + "-documentai.googleapis.com:443"
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptions(cfg.Credentials)...)
	c, err := documentai.NewDocumentProcessorClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	dlog := log.With("client", "DocumentAI", "processor", name)
	dlog.Info("Document AI initialized", "endpoint", endpoint)
	return &documentService{log: dlog, client: c, processor: name}, nil
}

func (s *documentService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *documentService) Process(ctx context.Context, mimeType string, data []byte) (*ProcessedDocument, error) {
	if len(data) == 0 {
		return &ProcessedDocument{}, nil
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), documentTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: s.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: data, MimeType: mimeType},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("documentai process: %w", err)
	}
	out := fromDocumentAI(resp.GetDocument())
	s.log.Debug("Document processed", "bytes", len(data), "pages", len(out.Pages), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

func fromDocumentAI(doc *documentaipb.Document) *ProcessedDocument {
	out := &ProcessedDocument{Text: strings.TrimSpace(doc.GetText())}
	for _, page := range doc.GetPages() {
		var paras []string
		for _, para := range page.GetParagraphs() {
			if t := strings.TrimSpace(anchorText(doc.GetText(), para.GetLayout().GetTextAnchor())); t != "" {
				paras = append(paras, t)
			}
		}
		if len(paras) > 0 {
			out.Pages = append(out.Pages, paras)
		}
	}
	return out
}

// anchorText resolves a text anchor's byte segments against the full text,
// clamping out-of-range offsets.
func anchorText(full string, anchor *documentaipb.Document_TextAnchor) string {
	var b strings.Builder
	for _, seg := range anchor.GetTextSegments() {
		start, end := int(seg.GetStartIndex()), int(seg.GetEndIndex())
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start < end {
			b.WriteString(full[start:end])
		}
	}
	return b.String()
}
