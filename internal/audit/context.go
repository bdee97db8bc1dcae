package audit

import "context"

type requestContextKey struct{}

// WithRequestContext attaches API-layer correlation ids (IP, user agent,
// request/session ids) to ctx so services can stamp them onto audit entries
// without widening every signature.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the attached correlation ids, or the zero value.
func RequestContextFrom(ctx context.Context) RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(RequestContext)
	return rc
}
