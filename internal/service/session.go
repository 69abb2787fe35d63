// Package service holds the collaborators shared by several handlers:
// session management, publishing with downstream revalidation, and
// transactional email.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/linkbio/internal/model"
	"github.com/iliyamo/linkbio/internal/repository"
	"github.com/iliyamo/linkbio/internal/utils"
)

// DefaultSessionTTL is how long a session stays valid after sign-in.
const DefaultSessionTTL = 30 * 24 * time.Hour

// Identity is the outcome of resolving a session token.  The zero value is
// the anonymous identity.
type Identity struct {
	User    *model.User
	Client  *model.Client
	Session *model.Session
}

// Authenticated reports whether a user was resolved.
func (i Identity) Authenticated() bool { return i.User != nil }

type sessionStore interface {
	Create(ctx context.Context, s model.Session) error
	FindActive(ctx context.Context, token string, now time.Time) (model.Session, model.User, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type clientLoader interface {
	GetByID(ctx context.Context, id string) (model.Client, error)
}

// SessionManager issues, resolves and revokes sessions.
type SessionManager struct {
	Sessions sessionStore
	Clients  clientLoader
	TTL      time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

func NewSessionManager(sessions *repository.SessionRepo, clients *repository.ClientRepo, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{Sessions: sessions, Clients: clients, TTL: ttl, Now: repository.Now, Logger: slog.Default()}
}

func (m *SessionManager) now() time.Time { return m.Now().UTC().Truncate(time.Second) }

// Create starts a session for userID.  The random identifier is stored as
// both id and token.
func (m *SessionManager) Create(ctx context.Context, userID, ip, userAgent string) (model.Session, error) {
	tok, err := utils.RandomToken(32)
	if err != nil {
		return model.Session{}, err
	}
	now := m.now()
	s := model.Session{
		ID:        tok,
		Token:     tok,
		UserID:    userID,
		ExpiresAt: now.Add(m.TTL),
		IPAddress: ip,
		UserAgent: truncate(userAgent, 512),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.Sessions.Create(ctx, s); err != nil {
		return model.Session{}, err
	}
	return s, nil
}

// Resolve maps a token to its user and client.  A single "now" is used for
// the expiry check.  Lookup failures of any kind resolve to the anonymous
// identity; they are logged, never returned.
func (m *SessionManager) Resolve(ctx context.Context, token string) Identity {
	if token == "" {
		return Identity{}
	}
	s, u, err := m.Sessions.FindActive(ctx, token, m.now())
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			m.Logger.WarnContext(ctx, "session resolve failed", "err", err)
		}
		return Identity{}
	}
	id := Identity{User: &u, Session: &s}
	if u.HasClient() {
		c, err := m.Clients.GetByID(ctx, *u.ClientID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				m.Logger.WarnContext(ctx, "session client load failed", "err", err)
				return Identity{}
			}
			return id
		}
		id.Client = &c
	}
	return id
}

// Revoke deletes the session; unknown tokens are ignored.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.Sessions.Delete(ctx, token)
}

// RevokeAll signs userID out everywhere.
func (m *SessionManager) RevokeAll(ctx context.Context, userID string) error {
	return m.Sessions.DeleteByUser(ctx, userID)
}

// PurgeExpired removes sessions past their expiry.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.Sessions.PurgeExpired(ctx, m.now())
}

// RunPurge calls PurgeExpired every interval until ctx is done.
func (m *SessionManager) RunPurge(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := m.PurgeExpired(ctx)
			if err != nil {
				m.Logger.WarnContext(ctx, "session purge failed", "err", err)
				continue
			}
			if n > 0 {
				m.Logger.InfoContext(ctx, "expired sessions purged", "count", n)
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
