// Package auth holds the authenticated identity of the running session and
// decides which routes it may reach.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hackgods/dental-clinic-records/internal/clinic"
	"github.com/hackgods/dental-clinic-records/internal/kv"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Storage is the slice of the key-value adapter the gate needs.
type Storage interface {
	Read(ctx context.Context, key string, dst any) bool
	Write(ctx context.Context, key string, v any) bool
	Remove(ctx context.Context, key string) bool
}

// Identity is a user as seen after sign-in. It has no credential field.
type Identity struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      clinic.Role `json:"role"`
	PatientID string      `json:"patientId,omitempty"`
	Name      string      `json:"name"`
	Avatar    string      `json:"avatar,omitempty"`
}

type LoginResult struct {
	Success  bool      `json:"success"`
	Identity *Identity `json:"user,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// LoginRecorder is told the outcome of every login attempt.
type LoginRecorder interface {
	LoginAttempt(success bool)
}

type Option func(*Gate)

func WithLoginRecorder(r LoginRecorder) Option {
	return func(g *Gate) { g.recorder = r }
}

// Gate is either unauthenticated (current == nil) or authenticated as one
// identity. The authenticated identity is mirrored to the current-session
// key.
type Gate struct {
	mu       sync.RWMutex
	storage  Storage
	log      *slog.Logger
	recorder LoginRecorder
	current  *Identity
}

func NewGate(storage Storage, logger *slog.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{storage: storage, log: logger.With(slog.String("component", "auth"))}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Restore resumes the persisted session, if any. A missing or unreadable
// record leaves the gate unauthenticated.
func (g *Gate) Restore(ctx context.Context) {
	var id Identity
	ok := g.storage.Read(ctx, kv.KeyCurrentUser, &id) && id.ID != "" && id.Role != ""

	g.mu.Lock()
	defer g.mu.Unlock()
	if !ok {
		g.current = nil
		return
	}
	g.current = &id
	g.log.InfoContext(ctx, "session restored", slog.String("user_id", id.ID), slog.String("role", string(id.Role)))
}

// Login signs in the seeded user whose email matches exactly and whose
// credential matches password. Failure never says which of the two was
// wrong and leaves the gate as it was.
func (g *Gate) Login(ctx context.Context, email, password string) LoginResult {
	var users []clinic.User
	_ = g.storage.Read(ctx, kv.KeyUsers, &users)

	var match *clinic.User
	for i := range users {
		if users[i].Email == email {
			if credentialMatches(users[i].Password, password) {
				match = &users[i]
			}
			break
		}
	}

	if match == nil {
		g.record(false)
		g.log.InfoContext(ctx, "login rejected")
		return LoginResult{Success: false, Error: ErrInvalidCredentials.Error()}
	}

	id := identityOf(*match)

	g.mu.Lock()
	g.current = &id
	g.mu.Unlock()

	if !g.storage.Write(ctx, kv.KeyCurrentUser, id) {
		g.log.WarnContext(ctx, "session not persisted", slog.String("user_id", id.ID))
	}
	g.record(true)
	g.log.InfoContext(ctx, "user logged in", slog.String("user_id", id.ID), slog.String("role", string(id.Role)))

	out := id
	return LoginResult{Success: true, Identity: &out}
}

// Logout ends the session. Calling it while signed out is harmless.
func (g *Gate) Logout(ctx context.Context) {
	g.mu.Lock()
	prev := g.current
	g.current = nil
	g.mu.Unlock()

	g.storage.Remove(ctx, kv.KeyCurrentUser)
	if prev != nil {
		g.log.InfoContext(ctx, "user logged out", slog.String("user_id", prev.ID))
	}
}

// Current returns the signed-in identity.
func (g *Gate) Current() (Identity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.current == nil {
		return Identity{}, false
	}
	return *g.current, true
}

func (g *Gate) IsAdmin() bool   { return g.hasRole(clinic.RoleAdmin) }
func (g *Gate) IsPatient() bool { return g.hasRole(clinic.RolePatient) }

func (g *Gate) hasRole(r clinic.Role) bool {
	id, ok := g.Current()
	return ok && id.Role == r
}

func (g *Gate) record(success bool) {
	if g.recorder != nil {
		g.recorder.LoginAttempt(success)
	}
}

func identityOf(u clinic.User) Identity {
	return Identity{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		PatientID: u.PatientID,
		Name:      u.Name,
		Avatar:    u.Avatar,
	}
}
