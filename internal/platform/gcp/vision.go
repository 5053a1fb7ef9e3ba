package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/research-evidence-backend/internal/platform/ctxutil"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

const ocrTimeout = 60 * time.Second

// OCR reads the text out of a scanned or photographed page.
type OCR interface {
	OCRImage(ctx context.Context, mimeType string, data []byte) (*ProcessedDocument, error)
	Close() error
}

type VisionConfig struct {
	Enabled     bool
	Credentials string
}

type visionOCR struct {
	log    *logger.Logger
	client *vision.ImageAnnotatorClient
}

func NewVisionOCR(log *logger.Logger, cfg VisionConfig) (OCR, error) {
	if log == nil {
		log = logger.Nop()
	}
	c, err := vision.NewImageAnnotatorClient(context.Background(), ClientOptions(cfg.Credentials)...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	vlog := log.With("client", "VisionOCR")
	vlog.Info("Vision OCR initialized")
	return &visionOCR{log: vlog, client: c}, nil
}

func (v *visionOCR) Close() error {
	if v == nil || v.client == nil {
		return nil
	}
	return v.client.Close()
}

func (v *visionOCR) OCRImage(ctx context.Context, mimeType string, data []byte) (*ProcessedDocument, error) {
	if len(data) == 0 {
		return &ProcessedDocument{}, nil
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), ocrTimeout)
	defer cancel()

	start := time.Now()
	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: data},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return &ProcessedDocument{}, nil
	}
	r := resp.GetResponses()[0]
	if msg := r.GetError().GetMessage(); msg != "" {
		return nil, fmt.Errorf("vision annotate: %s", msg)
	}
	out := fromVision(r.GetFullTextAnnotation())
	v.log.Debug("Image OCR done", "mime_type", mimeType, "bytes", len(data), "pages", len(out.Pages), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// fromVision rebuilds paragraph text from the symbol tree, honouring the
// detected breaks between symbols.
func fromVision(ann *visionpb.TextAnnotation) *ProcessedDocument {
	out := &ProcessedDocument{Text: strings.TrimSpace(ann.GetText())}
	for _, page := range ann.GetPages() {
		var paras []string
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				var b strings.Builder
				for _, word := range para.GetWords() {
					for _, sym := range word.GetSymbols() {
						b.WriteString(sym.GetText())
						switch sym.GetProperty().GetDetectedBreak().GetType() {
						case visionpb.TextAnnotation_DetectedBreak_SPACE, visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
							b.WriteByte(' ')
						case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE, visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
							b.WriteByte('\n')
						}
					}
				}
				if t := strings.TrimSpace(b.String()); t != "" {
					paras = append(paras, t)
				}
			}
		}
		if len(paras) > 0 {
			out.Pages = append(out.Pages, paras)
		}
	}
	return out
}
