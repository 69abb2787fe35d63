package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/linkbio/internal/model"
)

const linkColumns = `id, client_id, title, url, description, icon, thumbnail_url, social_preset,
	custom_bg_color, custom_text_color, is_active, sort_order, is_draft, created_at, updated_at`

// LinkRepo persists the ordered links of each client.  Every query that
// touches an existing link filters by both id and client_id; a link owned by
// another client is reported as ErrNotFound.  Every mutation marks the owning
// client as having draft changes in the same transaction.
type LinkRepo struct {
	db  *sql.DB
	Now Clock
}

func NewLinkRepo(db *sql.DB) *LinkRepo { return &LinkRepo{db: db} }

func scanLink(s rowScanner) (model.Link, error) {
	var l model.Link
	err := s.Scan(&l.ID, &l.ClientID, &l.Title, &l.URL, &l.Description, &l.Icon, &l.ThumbnailURL, &l.SocialPreset,
		&l.CustomBgColor, &l.CustomTextColor, &l.IsActive, &l.SortOrder, &l.IsDraft, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func listLinks(ctx context.Context, q querier, where string, args ...any) ([]model.Link, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE `+where+` ORDER BY sort_order, created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListByClient returns all links of a client in display order.
func (r *LinkRepo) ListByClient(ctx context.Context, clientID string) ([]model.Link, error) {
	return listLinks(ctx, r.db, `client_id = ?`, clientID)
}

// ListActiveByClient returns only the links shown on the public page.
func (r *LinkRepo) ListActiveByClient(ctx context.Context, clientID string) ([]model.Link, error) {
	return listLinks(ctx, r.db, `client_id = ? AND is_active = 1`, clientID)
}

// GetByIDAndClient fetches a link only if clientID owns it.
func (r *LinkRepo) GetByIDAndClient(ctx context.Context, id, clientID string) (model.Link, error) {
	return getLink(ctx, r.db, id, clientID)
}

func getLink(ctx context.Context, q querier, id, clientID string) (model.Link, error) {
	l, err := scanLink(q.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE id = ? AND client_id = ? LIMIT 1`, id, clientID))
	return l, notFound(err)
}

// Create appends a link to the client's list.  The client row is updated
// first, which locks it for the rest of the transaction, so two concurrent
// creates cannot read the same MAX(sort_order).  Free-plan clients are
// capped at model.FreeMaxLinks links.
func (r *LinkRepo) Create(ctx context.Context, clientID string, in model.LinkCreate) (model.Link, error) {
	var l model.Link
	err := WithTx(ctx, r.db, func(tx *sql.Tx) error {
		now := r.Now.now()
		if err := markDraft(ctx, tx, clientID, now); err != nil {
			return err
		}
		var plan string
		var count, next int
		if err := tx.QueryRowContext(ctx, `SELECT plan FROM clients WHERE id = ?`, clientID).Scan(&plan); err != nil {
			return notFound(err)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(MAX(sort_order), -1) + 1 FROM links WHERE client_id = ?`, clientID).
			Scan(&count, &next); err != nil {
			return err
		}
		if limit := model.Plan(plan).MaxLinks(); limit > 0 && count >= limit {
			return ErrPlanLimit
		}
		var err error
		l, err = insertLink(ctx, tx, clientID, in, next, r.Now)
		return err
	})
	return l, err
}

// CreateInitialTx inserts the links chosen at sign-up, ordered as given.  The
// client is brand new, so it is not marked as having draft changes.
func (r *LinkRepo) CreateInitialTx(ctx context.Context, tx *sql.Tx, clientID string, in []model.LinkCreate) ([]model.Link, error) {
	out := make([]model.Link, 0, len(in))
	for i, lc := range in {
		l, err := insertLink(ctx, tx, clientID, lc, i, r.Now)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func insertLink(ctx context.Context, q querier, clientID string, in model.LinkCreate, order int, clock Clock) (model.Link, error) {
	now := clock.now()
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	l := model.Link{
		ID:              uuid.NewString(),
		ClientID:        clientID,
		Title:           in.Title,
		URL:             in.URL,
		Description:     in.Description,
		Icon:            in.Icon,
		ThumbnailURL:    in.ThumbnailURL,
		SocialPreset:    in.SocialPreset,
		CustomBgColor:   in.CustomBgColor,
		CustomTextColor: in.CustomTextColor,
		IsActive:        active,
		SortOrder:       order,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		l.ID, l.ClientID, l.Title, l.URL, l.Description, l.Icon, l.ThumbnailURL, l.SocialPreset,
		l.CustomBgColor, l.CustomTextColor, l.IsActive, l.SortOrder, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return model.Link{}, err
	}
	return l, nil
}

// UpdateByIDAndClient applies the non-nil fields of p to a link clientID owns.
func (r *LinkRepo) UpdateByIDAndClient(ctx context.Context, id, clientID string, p model.LinkPatch) (model.Link, error) {
	var l model.Link
	err := WithTx(ctx, r.db, func(tx *sql.Tx) error {
		now := r.Now.now()
		if err := markDraft(ctx, tx, clientID, now); err != nil {
			return err
		}
		var s setList
		addIf(&s, "title", p.Title)
		addIf(&s, "url", p.URL)
		addIf(&s, "description", p.Description)
		addIf(&s, "icon", p.Icon)
		addIf(&s, "thumbnail_url", p.ThumbnailURL)
		addIf(&s, "social_preset", p.SocialPreset)
		addIf(&s, "custom_bg_color", p.CustomBgColor)
		addIf(&s, "custom_text_color", p.CustomTextColor)
		addIf(&s, "is_active", p.IsActive)
		s.add("updated_at", now)
		args := append(s.args, id, clientID)
		res, err := tx.ExecContext(ctx,
			`UPDATE links SET `+strings.Join(s.cols, ", ")+` WHERE id = ? AND client_id = ?`, args...)
		if err != nil {
			return err
		}
		if err := checkAffected(res); err != nil {
			return err
		}
		l, err = getLink(ctx, tx, id, clientID)
		return err
	})
	return l, err
}

// DeleteByIDAndClient removes a link clientID owns.  Remaining sort orders
// are left as they are.
func (r *LinkRepo) DeleteByIDAndClient(ctx context.Context, id, clientID string) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := markDraft(ctx, tx, clientID, r.Now.now()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM links WHERE id = ? AND client_id = ?`, id, clientID)
		if err != nil {
			return err
		}
		return checkAffected(res)
	})
}

// Reorder assigns the given sort orders in one transaction: either every
// update lands or none does.  Each update is scoped to clientID, so ids of
// other clients' links match nothing.  Links absent from order keep their
// position.
func (r *LinkRepo) Reorder(ctx context.Context, clientID string, order []model.LinkOrder) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		now := r.Now.now()
		if err := markDraft(ctx, tx, clientID, now); err != nil {
			return err
		}
		for _, o := range order {
			if _, err := tx.ExecContext(ctx,
				`UPDATE links SET sort_order = ?, updated_at = ? WHERE id = ? AND client_id = ?`,
				o.SortOrder, now, o.ID, clientID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Toggle flips is_active of a link clientID owns and returns the new row.
// Toggling twice restores the original value.
func (r *LinkRepo) Toggle(ctx context.Context, id, clientID string) (model.Link, error) {
	var l model.Link
	err := WithTx(ctx, r.db, func(tx *sql.Tx) error {
		now := r.Now.now()
		if err := markDraft(ctx, tx, clientID, now); err != nil {
			return err
		}
		cur, err := getLink(ctx, tx, id, clientID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE links SET is_active = ?, updated_at = ? WHERE id = ? AND client_id = ?`,
			!cur.IsActive, now, id, clientID); err != nil {
			return err
		}
		l, err = getLink(ctx, tx, id, clientID)
		return err
	})
	return l, err
}
