package common

import "context"

type ctxKey string

const requestIDKey ctxKey = "requestID"

// WithRequestID stores the inbound correlation id so outbound origin calls
// can forward it unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the inbound correlation id, or "" if the
// request did not carry one.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
