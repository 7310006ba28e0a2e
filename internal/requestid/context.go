// Package requestid carries the request correlation id through
// contexts, so services can stamp it onto the records they write.
package requestid

import "context"

type contextKey struct{}

// WithRequestID returns a context carrying the correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the correlation id from ctx. The second return
// is false when none is set.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
