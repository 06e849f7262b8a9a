package common

import "context"

type contextKey string

const ContextKeyRequestID contextKey = "request_id"

// WithRequestID tags ctx with the id sent downstream (X-Request-ID, Kafka request_id header).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}
