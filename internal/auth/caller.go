package auth

import "context"

// Caller is an identity proven by a bearer token for one tenant. The zero
// value is unauthenticated; VerifyCaller is the only way to build another.
type Caller struct {
	tenant   string
	username string
}

func (c Caller) Tenant() string   { return c.tenant }
func (c Caller) Username() string { return c.username }

func (c Caller) IsZero() bool {
	return c.tenant == "" || c.username == ""
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || c.IsZero() {
		return Caller{}, false
	}
	return c, true
}
