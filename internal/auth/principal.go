package auth

import "context"

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func ValidRole(r Role) bool { return r == RoleBuyer || r == RoleSeller }

// Principal is the authenticated caller. It is threaded explicitly into
// every core operation instead of living in a request-global.
type Principal struct {
	UserID string
	Role   Role
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
