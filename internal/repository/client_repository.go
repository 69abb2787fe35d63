package repository

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/linkbio/internal/model"
)

const clientColumns = `id, slug, name, logo_url, profile_image_url, profile_image_size, profile_image_shape,
	primary_color, secondary_color, button_opacity, background_type, background_value, outer_background_color,
	font_preset, font_title, font_text, layout_type, button_style, bio, meta_title, meta_description,
	is_published, has_draft_changes, vcard_enabled, vcard_name, vcard_email, vcard_phone, vcard_company,
	vcard_website, plan, plan_expires_at, created_at, updated_at, published_at`

var slugRe = regexp.MustCompile(`^[a-z0-9-]{3,50}$`)

// NormalizeSlug trims and lowercases a slug so uniqueness is case-insensitive.
func NormalizeSlug(slug string) string { return strings.ToLower(strings.TrimSpace(slug)) }

// ValidSlug reports whether slug (already normalized) is acceptable.
func ValidSlug(slug string) bool { return slugRe.MatchString(slug) }

// ClientRepo persists tenant profiles (`clients` table).
type ClientRepo struct {
	db  *sql.DB
	Now Clock
}

func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{db: db} }

func scanClient(s rowScanner) (model.Client, error) {
	var (
		c    model.Client
		plan string
	)
	err := s.Scan(&c.ID, &c.Slug, &c.Name, &c.LogoURL, &c.ProfileImageURL, &c.ProfileImageSize, &c.ProfileImageShape,
		&c.PrimaryColor, &c.SecondaryColor, &c.ButtonOpacity, &c.BackgroundType, &c.BackgroundValue, &c.OuterBackgroundColor,
		&c.FontPreset, &c.FontTitle, &c.FontText, &c.LayoutType, &c.ButtonStyle, &c.Bio, &c.MetaTitle, &c.MetaDescription,
		&c.IsPublished, &c.HasDraftChanges, &c.VCardEnabled, &c.VCardName, &c.VCardEmail, &c.VCardPhone, &c.VCardCompany,
		&c.VCardWebsite, &plan, &c.PlanExpiresAt, &c.CreatedAt, &c.UpdatedAt, &c.PublishedAt)
	c.Plan = model.Plan(plan)
	return c, err
}

// SlugExists reports whether slug is already used by a client.
func (r *ClientRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	return slugExists(ctx, r.db, NormalizeSlug(slug), "")
}

// slugExists ignores the client exceptID so a client can keep its own slug.
func slugExists(ctx context.Context, q querier, slug, exceptID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients WHERE slug = ? AND id <> ?`, slug, exceptID).Scan(&n)
	return n > 0, err
}

// Create validates the slug, checks it is free and inserts an unpublished
// client.  The unique index backs the pre-check against concurrent inserts;
// either way a taken slug yields ErrSlugTaken and nothing is written.
func (r *ClientRepo) Create(ctx context.Context, in model.ClientCreate) (model.Client, error) {
	return r.create(ctx, r.db, in)
}

// CreateTx is Create inside the caller's transaction.
func (r *ClientRepo) CreateTx(ctx context.Context, tx *sql.Tx, in model.ClientCreate) (model.Client, error) {
	return r.create(ctx, tx, in)
}

func (r *ClientRepo) create(ctx context.Context, q querier, in model.ClientCreate) (model.Client, error) {
	slug := NormalizeSlug(in.Slug)
	if !ValidSlug(slug) {
		return model.Client{}, ErrInvalidSlug
	}
	taken, err := slugExists(ctx, q, slug, "")
	if err != nil {
		return model.Client{}, err
	}
	if taken {
		return model.Client{}, ErrSlugTaken
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = slug
	}
	plan := in.Plan
	if plan == "" {
		plan = model.PlanPro
	}
	id := uuid.NewString()
	now := r.Now.now()
	_, err = q.ExecContext(ctx,
		`INSERT INTO clients (id, slug, name, plan, is_published, has_draft_changes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, 0, ?, ?)`,
		id, slug, name, string(plan), now, now)
	if err != nil {
		if isDuplicate(err) {
			return model.Client{}, ErrSlugTaken
		}
		return model.Client{}, err
	}
	// Read back so column defaults are populated.
	return getClient(ctx, q, `id = ?`, id)
}

func getClient(ctx context.Context, q querier, where string, args ...any) (model.Client, error) {
	c, err := scanClient(q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE `+where+` LIMIT 1`, args...))
	return c, notFound(err)
}

// GetByID fetches a client by id.
func (r *ClientRepo) GetByID(ctx context.Context, id string) (model.Client, error) {
	return getClient(ctx, r.db, `id = ?`, id)
}

// GetBySlug fetches a client by slug, published or not.
func (r *ClientRepo) GetBySlug(ctx context.Context, slug string) (model.Client, error) {
	return getClient(ctx, r.db, `slug = ?`, NormalizeSlug(slug))
}

// GetPublishedBySlug fetches a live client; unpublished ones are ErrNotFound.
func (r *ClientRepo) GetPublishedBySlug(ctx context.Context, slug string) (model.Client, error) {
	return getClient(ctx, r.db, `slug = ? AND is_published = 1`, NormalizeSlug(slug))
}

// List returns every client, newest first.
func (r *ClientRepo) List(ctx context.Context) ([]model.Client, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListPublished returns the directory of live clients ordered by slug.
func (r *ClientRepo) ListPublished(ctx context.Context) ([]model.PublishedClient, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, slug, name, updated_at FROM clients WHERE is_published = 1 ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PublishedClient{}
	for rows.Next() {
		var p model.PublishedClient
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type setList struct {
	cols []string
	args []any
}

func (s *setList) add(col string, v any) {
	s.cols = append(s.cols, col+" = ?")
	s.args = append(s.args, v)
}

func addIf[T any](s *setList, col string, v *T) {
	if v != nil {
		s.add(col, *v)
	}
}

// Update applies the non-nil fields of p.  Any edit, even an empty one,
// marks the client as having draft changes and bumps updated_at.
func (r *ClientRepo) Update(ctx context.Context, id string, p model.ClientPatch) (model.Client, error) {
	var s setList
	addIf(&s, "name", p.Name)
	addIf(&s, "bio", p.Bio)
	addIf(&s, "meta_title", p.MetaTitle)
	addIf(&s, "meta_description", p.MetaDescription)
	addIf(&s, "primary_color", p.PrimaryColor)
	addIf(&s, "secondary_color", p.SecondaryColor)
	addIf(&s, "button_opacity", p.ButtonOpacity)
	addIf(&s, "background_type", p.BackgroundType)
	addIf(&s, "background_value", p.BackgroundValue)
	addIf(&s, "outer_background_color", p.OuterBackgroundColor)
	addIf(&s, "font_preset", p.FontPreset)
	addIf(&s, "font_title", p.FontTitle)
	addIf(&s, "font_text", p.FontText)
	addIf(&s, "layout_type", p.LayoutType)
	addIf(&s, "button_style", p.ButtonStyle)
	addIf(&s, "logo_url", p.LogoURL)
	addIf(&s, "profile_image_url", p.ProfileImageURL)
	addIf(&s, "profile_image_size", p.ProfileImageSize)
	addIf(&s, "profile_image_shape", p.ProfileImageShape)
	addIf(&s, "vcard_enabled", p.VCardEnabled)
	addIf(&s, "vcard_name", p.VCardName)
	addIf(&s, "vcard_email", p.VCardEmail)
	addIf(&s, "vcard_phone", p.VCardPhone)
	addIf(&s, "vcard_company", p.VCardCompany)
	addIf(&s, "vcard_website", p.VCardWebsite)
	return r.update(ctx, id, s)
}

// AdminUpdate changes slug, name or plan.  A new slug is validated and
// checked against every other client first.
func (r *ClientRepo) AdminUpdate(ctx context.Context, id string, p model.AdminClientPatch) (model.Client, error) {
	var s setList
	if p.Slug != nil {
		slug := NormalizeSlug(*p.Slug)
		if !ValidSlug(slug) {
			return model.Client{}, ErrInvalidSlug
		}
		taken, err := slugExists(ctx, r.db, slug, id)
		if err != nil {
			return model.Client{}, err
		}
		if taken {
			return model.Client{}, ErrSlugTaken
		}
		s.add("slug", slug)
	}
	addIf(&s, "name", p.Name)
	if p.Plan != nil {
		s.add("plan", string(*p.Plan))
	}
	return r.update(ctx, id, s)
}

func (r *ClientRepo) update(ctx context.Context, id string, s setList) (model.Client, error) {
	s.add("has_draft_changes", true)
	s.add("updated_at", r.Now.now())
	args := append(s.args, id)
	res, err := r.db.ExecContext(ctx,
		`UPDATE clients SET `+strings.Join(s.cols, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isDuplicate(err) {
			return model.Client{}, ErrSlugTaken
		}
		return model.Client{}, err
	}
	if err := checkAffected(res); err != nil {
		return model.Client{}, err
	}
	return r.GetByID(ctx, id)
}

// markDraft flags a client as changed.  Link mutations call it first inside
// their transaction: the row lock it takes serializes concurrent link
// writes of the same client.
func markDraft(ctx context.Context, q querier, clientID string, now time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE clients SET has_draft_changes = 1, updated_at = ? WHERE id = ?`, now, clientID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// Delete removes a client.  Its links cascade; an owning user keeps its
// account with client_id cleared.
func (r *ClientRepo) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, r.db, id)
}

// DeleteTx is Delete inside the caller's transaction.
func (r *ClientRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	return r.delete(ctx, tx, id)
}

func (r *ClientRepo) delete(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// MarkPublished moves the client to the published-clean state.
func (r *ClientRepo) MarkPublished(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clients SET is_published = 1, has_draft_changes = 0, published_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// PublishStatus reads the publication flags straight from the table.
func (r *ClientRepo) PublishStatus(ctx context.Context, id string) (model.PublishStatus, error) {
	var st model.PublishStatus
	err := r.db.QueryRowContext(ctx,
		`SELECT is_published, has_draft_changes, published_at FROM clients WHERE id = ?`, id).
		Scan(&st.IsPublished, &st.HasDraftChanges, &st.LastPublishedAt)
	if err != nil {
		return model.PublishStatus{}, notFound(err)
	}
	st.State = model.StateOf(st.IsPublished, st.HasDraftChanges)
	return st, nil
}
