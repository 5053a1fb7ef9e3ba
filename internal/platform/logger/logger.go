package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yungbote/research-evidence-backend/internal/platform/ctxutil"
)

// Options configures a Logger. Mode "prod"/"production" emits JSON, "test" is
// quiet below warn, anything else is the human-readable dev config.
type Options struct {
	Mode string
	// DisableRedaction turns off secret masking and id hashing.
	DisableRedaction bool
	HashSalt         string
}

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	scrub         *scrubber
}

func New(mode string) (*Logger, error) {
	return NewWithOptions(Options{Mode: mode})
}

func NewWithOptions(opts Options) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{
		SugaredLogger: zl.Sugar(),
		scrub:         &scrubber{enabled: !opts.DisableRedaction, salt: strings.TrimSpace(opts.HashSalt)},
	}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), scrub: &scrubber{}}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.scrub.kvs(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.scrub.kvs(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.scrub.kvs(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.scrub.kvs(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.scrub.kvs(keysAndValues)...)
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.scrub.kvs(keysAndValues)...), scrub: l.scrub}
}

// WithContext tags the logger with the request trace carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	rt := ctxutil.RequestTraceFrom(ctx)
	if rt == nil {
		return l
	}
	var kv []interface{}
	if rt.TraceID != "" {
		kv = append(kv, "trace_id", rt.TraceID)
	}
	if rt.RequestID != "" {
		kv = append(kv, "request_id", rt.RequestID)
	}
	if len(kv) == 0 {
		return l
	}
	return l.With(kv...)
}

type scrubber struct {
	enabled bool
	salt    string
}

var redactFragments = []string{"token", "authorization", "password", "secret", "api_key", "apikey", "dsn"}

// Actor and owner ids are hashed, not dropped, so lines for one person still correlate.
var hashFragments = []string{"actor_id", "owner_id"}

func (s *scrubber) kvs(kv []interface{}) []interface{} {
	if s == nil || !s.enabled || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		name := toString(kv[i])
		out = append(out, name, s.value(normKey(name), kv[i+1]))
	}
	return out
}

func (s *scrubber) value(key string, val interface{}) interface{} {
	switch {
	case key == "":
		return val
	case containsAny(key, redactFragments):
		return "[REDACTED]"
	case containsAny(key, hashFragments):
		return s.hash(val)
	}
	if m, ok := val.(map[string]interface{}); ok && m != nil {
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[k] = s.value(normKey(k), v)
		}
		return out
	}
	return val
}

func (s *scrubber) hash(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	h := sha256.New()
	_, _ = h.Write([]byte(s.salt))
	_, _ = h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

func normKey(k string) string { return strings.ToLower(strings.TrimSpace(k)) }

func containsAny(key string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
