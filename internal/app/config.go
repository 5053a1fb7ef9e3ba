package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/research-evidence-backend/internal/data/db"
	"github.com/yungbote/research-evidence-backend/internal/ingestion/extractor"
	"github.com/yungbote/research-evidence-backend/internal/observability"
	"github.com/yungbote/research-evidence-backend/internal/platform/gcp"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
	"github.com/yungbote/research-evidence-backend/internal/platform/openai"
	"github.com/yungbote/research-evidence-backend/internal/platform/redis"
	"github.com/yungbote/research-evidence-backend/internal/similarity"
)

type Config struct {
	Log            logger.Options
	HTTPAddr       string
	AllowedOrigins []string

	DB db.Config

	OpenAI           openai.Config
	AnalysisTimeout  time.Duration
	AnalysisMaxRunes int

	Extract extractor.Options
	Source  extractor.SourceConfig

	ObjectStorageEnabled bool
	ObjectStorage        gcp.ObjectStorageConfig
	DocumentAI           gcp.DocumentConfig
	Vision               gcp.VisionConfig

	Redis    redis.Config
	LockTTL  time.Duration
	LockWait time.Duration

	Otel observability.OtelConfig
}

var defaults = map[string]any{
	"LOG_MODE":              "development",
	"LOG_REDACTION_ENABLED": true,
	"LOG_HASH_SALT":         "",

	"HTTP_ADDR":       ":8080",
	"ALLOWED_ORIGINS": "",

	"DB_DRIVER":         db.DriverPostgres,
	"POSTGRES_HOST":     "localhost",
	"POSTGRES_PORT":     "5432",
	"POSTGRES_USER":     "postgres",
	"POSTGRES_PASSWORD": "",
	"POSTGRES_NAME":     "research_evidence",
	"POSTGRES_SSLMODE":  "disable",
	"SQLITE_PATH":       "research_evidence.db",
	"DB_MAX_OPEN_CONNS": 0,

	"OPENAI_API_KEY":           "",
	"OPENAI_BASE_URL":          "https://api.openai.com",
	"OPENAI_MODEL":             "gpt-4o-mini",
	"OPENAI_TIMEOUT_SECONDS":   60,
	"OPENAI_MAX_RETRIES":       2,
	"ANALYSIS_TIMEOUT_SECONDS": int(similarity.DefaultAnalysisTimeout / time.Second),
	"ANALYSIS_MAX_RUNES":       similarity.DefaultMaxRunes,

	"EXTRACT_TIMEOUT_SECONDS": int(extractor.DefaultTimeout / time.Second),
	"EXTRACT_MAX_BYTES":       extractor.DefaultMaxBytes,
	"EXTRACT_CHUNK_SIZE":      extractor.DefaultChunkSize,
	"EXTRACT_CHUNK_OVERLAP":   extractor.DefaultChunkOverlap,
	"EXTRACT_HTTP_RETRIES":    2,
	"EVIDENCE_LOCAL_ROOT":     "",

	"OBJECT_STORAGE_ENABLED":         false,
	"OBJECT_STORAGE_MODE":            "",
	"STORAGE_EMULATOR_HOST":          "",
	"GOOGLE_APPLICATION_CREDENTIALS": "",
	"GCP_PROJECT_ID":                 "",
	"DOCUMENTAI_LOCATION":            "us",
	"DOCUMENTAI_PROCESSOR_ID":        "",
	"DOCUMENTAI_PROCESSOR_VERSION":   "",
	"VISION_OCR_ENABLED":             false,

	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"REDIS_LOCK_PREFIX":         "evidence:lock:",
	"COMPARE_LOCK_TTL_SECONDS":  120,
	"COMPARE_LOCK_WAIT_SECONDS": 30,

	"OTEL_ENABLED":                false,
	"OTEL_SERVICE_NAME":           "research-evidence-backend",
	"OTEL_ENVIRONMENT":            "development",
	"OTEL_SERVICE_VERSION":        "dev",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_HEADERS":  "",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
	"OTEL_TRACES_SAMPLER_RATIO":   1.0,
}

// NewViper reads defaults, then configFile when given, then the environment.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Log: logger.Options{
			Mode:             v.GetString("LOG_MODE"),
			DisableRedaction: !v.GetBool("LOG_REDACTION_ENABLED"),
			HashSalt:         v.GetString("LOG_HASH_SALT"),
		},
		HTTPAddr: v.GetString("HTTP_ADDR"),

		DB: db.Config{
			Driver:           v.GetString("DB_DRIVER"),
			PostgresHost:     v.GetString("POSTGRES_HOST"),
			PostgresPort:     v.GetString("POSTGRES_PORT"),
			PostgresUser:     v.GetString("POSTGRES_USER"),
			PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
			PostgresName:     v.GetString("POSTGRES_NAME"),
			PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),
			SQLitePath:       v.GetString("SQLITE_PATH"),
			MaxOpenConns:     v.GetInt("DB_MAX_OPEN_CONNS"),
		},

		OpenAI: openai.Config{
			APIKey:     v.GetString("OPENAI_API_KEY"),
			BaseURL:    v.GetString("OPENAI_BASE_URL"),
			Model:      v.GetString("OPENAI_MODEL"),
			Timeout:    seconds(v, "OPENAI_TIMEOUT_SECONDS"),
			MaxRetries: v.GetInt("OPENAI_MAX_RETRIES"),
		},
		AnalysisTimeout:  seconds(v, "ANALYSIS_TIMEOUT_SECONDS"),
		AnalysisMaxRunes: v.GetInt("ANALYSIS_MAX_RUNES"),

		Extract: extractor.Options{
			Timeout:      seconds(v, "EXTRACT_TIMEOUT_SECONDS"),
			ChunkSize:    v.GetInt("EXTRACT_CHUNK_SIZE"),
			ChunkOverlap: v.GetInt("EXTRACT_CHUNK_OVERLAP"),
		},
		Source: extractor.SourceConfig{
			LocalRoot:  v.GetString("EVIDENCE_LOCAL_ROOT"),
			MaxBytes:   v.GetInt64("EXTRACT_MAX_BYTES"),
			MaxRetries: v.GetInt("EXTRACT_HTTP_RETRIES"),
		},

		ObjectStorageEnabled: v.GetBool("OBJECT_STORAGE_ENABLED") || v.GetString("STORAGE_EMULATOR_HOST") != "",
		ObjectStorage: gcp.ObjectStorageConfig{
			Mode:         gcp.ObjectStorageMode(v.GetString("OBJECT_STORAGE_MODE")),
			EmulatorHost: v.GetString("STORAGE_EMULATOR_HOST"),
			Credentials:  v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
		},
		DocumentAI: gcp.DocumentConfig{
			ProjectID:        v.GetString("GCP_PROJECT_ID"),
			Location:         v.GetString("DOCUMENTAI_LOCATION"),
			ProcessorID:      v.GetString("DOCUMENTAI_PROCESSOR_ID"),
			ProcessorVersion: v.GetString("DOCUMENTAI_PROCESSOR_VERSION"),
			Credentials:      v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
		},
		Vision: gcp.VisionConfig{
			Enabled:     v.GetBool("VISION_OCR_ENABLED"),
			Credentials: v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
		},

		Redis: redis.Config{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Prefix:   v.GetString("REDIS_LOCK_PREFIX"),
		},
		LockTTL:  seconds(v, "COMPARE_LOCK_TTL_SECONDS"),
		LockWait: seconds(v, "COMPARE_LOCK_WAIT_SECONDS"),

		Otel: observability.OtelConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
			Environment: v.GetString("OTEL_ENVIRONMENT"),
			Version:     v.GetString("OTEL_SERVICE_VERSION"),
			Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Headers:     v.GetString("OTEL_EXPORTER_OTLP_HEADERS"),
			Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			SampleRatio: v.GetFloat64("OTEL_TRACES_SAMPLER_RATIO"),
		},
	}
	for _, o := range strings.Split(v.GetString("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.DB.Driver)) {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q (allowed: %s, %s)", cfg.DB.Driver, db.DriverPostgres, db.DriverSQLite)
	}
	if cfg.ObjectStorageEnabled {
		cfg.ObjectStorage = cfg.ObjectStorage.Normalize()
		if err := cfg.ObjectStorage.Validate(); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
