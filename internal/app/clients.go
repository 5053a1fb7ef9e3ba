package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/research-evidence-backend/internal/platform/gcp"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
	"github.com/yungbote/research-evidence-backend/internal/platform/openai"
	"github.com/yungbote/research-evidence-backend/internal/platform/redis"
)

// Clients holds the external collaborators. Every one of them is optional.
type Clients struct {
	Objects     gcp.ObjectReader
	DocumentAI  gcp.Document
	OCR         gcp.OCR
	OpenAI      openai.Client
	Locker      redis.Locker
	redisLocker bool
}

func wireClients(log *logger.Logger, cfg Config) (*Clients, error) {
	log.Info("Wiring clients...")
	c := &Clients{Locker: redis.NopLocker{}}

	// Gcs
	objects, err := resolveObjectReader(log, cfg)
	if err != nil {
		return nil, err
	}
	c.Objects = objects

	// Document AI
	if cfg.DocumentAI.Enabled() {
		doc, err := gcp.NewDocument(log, cfg.DocumentAI)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init document ai client: %w", err)
		}
		c.DocumentAI = doc
	} else {
		log.Info("Document AI not configured; PDFs use local extraction")
	}

	// Vision
	if cfg.Vision.Enabled {
		ocr, err := gcp.NewVisionOCR(log, cfg.Vision)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init vision client: %w", err)
		}
		c.OCR = ocr
	} else if c.DocumentAI == nil {
		log.Warn("No OCR provider configured; image evidence will fail extraction")
	}

	// Openai
	if strings.TrimSpace(cfg.OpenAI.APIKey) != "" {
		client, err := openai.NewClient(log, cfg.OpenAI)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init openai client: %w", err)
		}
		c.OpenAI = client
	} else {
		log.Warn("OPENAI_API_KEY not set; comparisons will store scores without a verdict")
	}

	// Redis
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		locker, err := redis.NewLocker(log, cfg.Redis)
		if err != nil {
			// Locking is best effort; a single replica is still correct without it.
			log.Warn("Redis lock unavailable; using in-process deduplication only", "error", err)
		} else {
			c.Locker = locker
			c.redisLocker = true
		}
	}
	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.redisLocker && c.Locker != nil {
		_ = c.Locker.Close()
	}
	if c.OCR != nil {
		_ = c.OCR.Close()
	}
	if c.DocumentAI != nil {
		_ = c.DocumentAI.Close()
	}
	if c.Objects != nil {
		_ = c.Objects.Close()
	}
}
