package fieldgate

import "context"

type contextKey int

const ctxKeyUser contextKey = iota

// WithUser returns a context carrying the given user context. HTTP
// middleware attaches the resolved identity here; handlers and the
// realtime hubs read it back with UserFromContext.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

// UserFromContext returns the user context attached by WithUser, or nil.
func UserFromContext(ctx context.Context) *UserContext {
	u, ok := ctx.Value(ctxKeyUser).(*UserContext)
	if !ok {
		return nil
	}
	return u
}
