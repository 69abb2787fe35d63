package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/linkbio/internal/model"
)

const userColumns = `id, email, password_hash, password_needs_upgrade, email_verified, role, client_id, created_at, updated_at`

// UserRepo persists accounts in the `users` table.
type UserRepo struct {
	db  *sql.DB
	Now Clock
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// NormalizeEmail is the canonical form stored and looked up.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (model.User, error) {
	var (
		u    model.User
		role string
	)
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.PasswordNeedsUpgrade, &u.EmailVerified,
		&role, &u.ClientID, &u.CreatedAt, &u.UpdatedAt)
	u.Role = model.ParseRole(role)
	return u, err
}

// Create inserts a user.  A duplicate email yields ErrEmailTaken.
func (r *UserRepo) Create(ctx context.Context, in model.UserCreate) (model.User, error) {
	return r.create(ctx, r.db, in)
}

// CreateTx is Create inside the caller's transaction.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, in model.UserCreate) (model.User, error) {
	return r.create(ctx, tx, in)
}

func (r *UserRepo) create(ctx context.Context, q querier, in model.UserCreate) (model.User, error) {
	now := r.Now.now()
	role := in.Role
	if role == "" {
		role = model.RoleClient
	}
	u := model.User{
		ID:            uuid.NewString(),
		Email:         NormalizeEmail(in.Email),
		EmailVerified: in.EmailVerified,
		Role:          role,
		ClientID:      in.ClientID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.PasswordHash != "" {
		h := in.PasswordHash
		u.PasswordHash = &h
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, password_needs_upgrade, email_verified, role, client_id, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.EmailVerified, string(u.Role), u.ClientID, now, now)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailTaken
		}
		return model.User{}, err
	}
	return u, nil
}

// EmailExists reports whether an account already uses email.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, NormalizeEmail(email)).Scan(&n)
	return n > 0, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`, NormalizeEmail(email)))
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id))
	return u, notFound(err)
}

// UpdatePassword stores a modern hash and clears the legacy flag.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.updatePassword(ctx, r.db, id, hash)
}

// UpdatePasswordTx is UpdatePassword inside the caller's transaction.
func (r *UserRepo) UpdatePasswordTx(ctx context.Context, tx *sql.Tx, id, hash string) error {
	return r.updatePassword(ctx, tx, id, hash)
}

func (r *UserRepo) updatePassword(ctx context.Context, q querier, id, hash string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, password_needs_upgrade = 0, updated_at = ? WHERE id = ?`,
		hash, r.Now.now(), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// SetLegacyPassword stores an unsalted legacy digest and raises the upgrade
// flag.  It exists for importing accounts from the previous system.
func (r *UserRepo) SetLegacyPassword(ctx context.Context, id, digest string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, password_needs_upgrade = 1, updated_at = ? WHERE id = ?`,
		digest, r.Now.now(), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// MarkEmailVerified flags the account's email as confirmed.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id string) error {
	return r.markEmailVerified(ctx, r.db, id)
}

// MarkEmailVerifiedTx is MarkEmailVerified inside the caller's transaction.
func (r *UserRepo) MarkEmailVerifiedTx(ctx context.Context, tx *sql.Tx, id string) error {
	return r.markEmailVerified(ctx, tx, id)
}

func (r *UserRepo) markEmailVerified(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`, r.Now.now(), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeleteTx removes the user row.  Sessions and verification tokens go with
// it through ON DELETE CASCADE.
func (r *UserRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
