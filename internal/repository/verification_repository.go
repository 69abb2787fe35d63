package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/linkbio/internal/model"
	"github.com/iliyamo/linkbio/internal/utils"
)

const verificationColumns = `id, user_id, identifier, purpose, token, expires_at, created_at`

// VerificationRepo stores single-use tokens for email verification and
// password reset.  At most one token per user and purpose exists at a time.
type VerificationRepo struct {
	db  *sql.DB
	Now Clock
}

func NewVerificationRepo(db *sql.DB) *VerificationRepo { return &VerificationRepo{db: db} }

func scanVerification(s rowScanner) (model.Verification, error) {
	var (
		v       model.Verification
		purpose string
	)
	err := s.Scan(&v.ID, &v.UserID, &v.Identifier, &purpose, &v.Token, &v.ExpiresAt, &v.CreatedAt)
	v.Purpose = model.Purpose(purpose)
	return v, err
}

// Issue replaces any previous token of the same user and purpose with a new
// one valid for ttl.
func (r *VerificationRepo) Issue(ctx context.Context, userID, identifier string, purpose model.Purpose, ttl time.Duration) (model.Verification, error) {
	token, err := utils.RandomToken(32)
	if err != nil {
		return model.Verification{}, err
	}
	now := r.Now.now()
	v := model.Verification{
		ID:         uuid.NewString(),
		UserID:     userID,
		Identifier: NormalizeEmail(identifier),
		Purpose:    purpose,
		Token:      token,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
	err = WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM verifications WHERE user_id = ? AND purpose = ?`, userID, string(purpose)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO verifications (`+verificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.UserID, v.Identifier, string(v.Purpose), v.Token, v.ExpiresAt, v.CreatedAt)
		return err
	})
	if err != nil {
		return model.Verification{}, err
	}
	return v, nil
}

// FindActive returns the unexpired token of userID for purpose.
func (r *VerificationRepo) FindActive(ctx context.Context, userID string, purpose model.Purpose) (model.Verification, error) {
	v, err := scanVerification(r.db.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM verifications
		 WHERE user_id = ? AND purpose = ? AND expires_at > ? LIMIT 1`,
		userID, string(purpose), r.Now.now()))
	return v, notFound(err)
}

// ConsumeTx looks up an unexpired token for purpose and deletes it within
// tx, so the token cannot be used twice even by concurrent requests.
func (r *VerificationRepo) ConsumeTx(ctx context.Context, tx *sql.Tx, token string, purpose model.Purpose) (model.Verification, error) {
	v, err := scanVerification(tx.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM verifications
		 WHERE token = ? AND purpose = ? AND expires_at > ? LIMIT 1`,
		token, string(purpose), r.Now.now()))
	if err != nil {
		return model.Verification{}, notFound(err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM verifications WHERE id = ?`, v.ID)
	if err != nil {
		return model.Verification{}, err
	}
	if err := checkAffected(res); err != nil {
		return model.Verification{}, err
	}
	return v, nil
}

// Consume is ConsumeTx in its own transaction.
func (r *VerificationRepo) Consume(ctx context.Context, token string, purpose model.Purpose) (model.Verification, error) {
	var v model.Verification
	err := WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		v, err = r.ConsumeTx(ctx, tx, token, purpose)
		return err
	})
	return v, err
}
