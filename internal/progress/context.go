package progress

import "context"

type queryIDKey struct{}

// WithQueryID attaches the aggregation query id so adapter events can be correlated.
func WithQueryID(ctx context.Context, id [16]byte) context.Context {
	return context.WithValue(ctx, queryIDKey{}, id)
}

// QueryIDFrom returns the query id stored in ctx, or the zero id.
func QueryIDFrom(ctx context.Context) [16]byte {
	id, _ := ctx.Value(queryIDKey{}).([16]byte)
	return id
}
