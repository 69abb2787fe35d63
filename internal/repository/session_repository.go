package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/linkbio/internal/model"
)

// SessionRepo persists login sessions (`sessions` table).
type SessionRepo struct{ db *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// Create inserts s as given.  Callers write the same value to ID and Token.
func (r *SessionRepo) Create(ctx context.Context, s model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, token, user_id, expires_at, ip_address, user_agent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, nullString(s.Token), s.UserID, s.ExpiresAt, nullString(s.IPAddress), nullString(s.UserAgent),
		s.CreatedAt, s.UpdatedAt)
	return err
}

// FindActive returns the unexpired session matching token together with its
// user in one round trip.  The token is compared against both id and token
// because rows written by older code paths only filled one of them.
func (r *SessionRepo) FindActive(ctx context.Context, token string, now time.Time) (model.Session, model.User, error) {
	const q = `SELECT s.id, s.token, s.user_id, s.expires_at, s.ip_address, s.user_agent, s.created_at, s.updated_at,
	                  u.id, u.email, u.password_hash, u.password_needs_upgrade, u.email_verified, u.role, u.client_id,
	                  u.created_at, u.updated_at
	           FROM sessions s
	           JOIN users u ON u.id = s.user_id
	           WHERE (s.id = ? OR s.token = ?) AND s.expires_at > ?
	           LIMIT 1`
	var (
		s           model.Session
		u           model.User
		tok, ip, ua sql.NullString
		role        string
	)
	err := r.db.QueryRowContext(ctx, q, token, token, now).Scan(
		&s.ID, &tok, &s.UserID, &s.ExpiresAt, &ip, &ua, &s.CreatedAt, &s.UpdatedAt,
		&u.ID, &u.Email, &u.PasswordHash, &u.PasswordNeedsUpgrade, &u.EmailVerified, &role, &u.ClientID,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return model.Session{}, model.User{}, notFound(err)
	}
	s.Token, s.IPAddress, s.UserAgent = tok.String, ip.String, ua.String
	u.Role = model.ParseRole(role)
	return s, u, nil
}

// Delete removes the session identified by token.  Unknown tokens are not
// an error.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? OR token = ?`, token, token)
	return err
}

// DeleteByUser revokes every session of userID.
func (r *SessionRepo) DeleteByUser(ctx context.Context, userID string) error {
	return r.deleteByUser(ctx, r.db, userID)
}

// DeleteByUserTx is DeleteByUser inside the caller's transaction.
func (r *SessionRepo) DeleteByUserTx(ctx context.Context, tx *sql.Tx, userID string) error {
	return r.deleteByUser(ctx, tx, userID)
}

func (r *SessionRepo) deleteByUser(ctx context.Context, q querier, userID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

// PurgeExpired deletes sessions whose expiry is at or before now and returns
// how many were removed.
func (r *SessionRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
