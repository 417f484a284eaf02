package adminauth

import "context"

// requestKey keys request metadata the Engine reads from a context.
type requestKey int

const (
	clientIPKey requestKey = iota
	userAgentKey
)

// WithClientIP attaches the caller's IP address to ctx. The Engine records it
// in the online-session registry, the login log and audit events, and uses it
// for per-IP login lockout.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func clientIPFromContext(ctx context.Context) string  { return requestValue(ctx, clientIPKey) }
func userAgentFromContext(ctx context.Context) string { return requestValue(ctx, userAgentKey) }

func requestValue(ctx context.Context, key requestKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
