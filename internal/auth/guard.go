package auth

import (
	"context"
	"net/http"
	"slices"

	"github.com/hackgods/dental-clinic-records/internal/clinic"
)

const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Decide applies the route guard to an identity. An empty role list admits
// any authenticated identity.
func Decide(id Identity, authenticated bool, roles []clinic.Role) Decision {
	if !authenticated {
		return RedirectLogin
	}
	if len(roles) > 0 && !slices.Contains(roles, id.Role) {
		return RedirectUnauthorized
	}
	return Allow
}

// Authorize applies the route guard to the current session.
func (g *Gate) Authorize(roles ...clinic.Role) Decision {
	id, ok := g.Current()
	return Decide(id, ok, roles)
}

// RequireRoles is router middleware that lets a request through only when
// the session passes the route guard, redirecting it otherwise.
func RequireRoles(g *Gate, roles ...clinic.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := g.Current()
			switch Decide(id, ok, roles) {
			case RedirectLogin:
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			case RedirectUnauthorized:
				http.Redirect(w, r, UnauthorizedPath, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
			}
		})
	}
}

type identityKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// MustIdentity returns the identity RequireRoles attached to ctx. Calling it
// from a handler that is not behind RequireRoles is a programming error and
// panics.
func MustIdentity(ctx context.Context) Identity {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok {
		panic("auth: MustIdentity called outside a guarded route")
	}
	return id
}
