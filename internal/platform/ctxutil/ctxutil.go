package ctxutil

import "context"

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

type requestTraceKey struct{}

// RequestTrace identifies the inbound request a unit of work belongs to.
type RequestTrace struct {
	TraceID   string
	RequestID string
}

func WithRequestTrace(ctx context.Context, rt *RequestTrace) context.Context {
	return context.WithValue(Default(ctx), requestTraceKey{}, rt)
}

func RequestTraceFrom(ctx context.Context) *RequestTrace {
	if ctx == nil {
		return nil
	}
	rt, _ := ctx.Value(requestTraceKey{}).(*RequestTrace)
	return rt
}
