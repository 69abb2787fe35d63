package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/linkbio/internal/model"
	"github.com/iliyamo/linkbio/internal/queue"
	"github.com/iliyamo/linkbio/internal/router"
	"github.com/iliyamo/linkbio/internal/utils"
)

type sessionBody struct {
	User   *model.User   `json:"user"`
	Client *model.Client `json:"client"`
}

func (v *env) signIn(t *testing.T, email, password string) (int, string) {
	t.Helper()
	rec := v.do(t, http.MethodPost, "/auth/sign-in", map[string]string{"email": email, "password": password}, "")
	tok := ""
	if c := sessionCookie(rec); c != nil {
		tok = c.Value
	}
	return rec.Code, tok
}

func TestSignInSetsSessionCookie(t *testing.T) {
	v := newEnv(t)
	_, c, _ := v.account(t, "acme", "owner@example.com", "correct-horse")

	rec := v.do(t, http.MethodPost, "/auth/sign-in",
		map[string]string{"email": "  Owner@Example.com ", "password": "correct-horse"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ck := sessionCookie(rec)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.Equal(t, "/", ck.Path)
	assert.False(t, ck.Secure, "secure cookies only in production")
	assert.InDelta(t, 30*24*3600, ck.MaxAge, 5)

	body := decode[sessionBody](t, rec)
	require.NotNil(t, body.User)
	assert.Equal(t, "owner@example.com", body.User.Email)
	require.NotNil(t, body.Client)
	assert.Equal(t, c.ID, body.Client.ID)
	assert.NotContains(t, rec.Body.String(), "argon2id", "hash never leaves the server")

	rec = v.do(t, http.MethodGet, "/auth/session", nil, ck.Value)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner@example.com", decode[sessionBody](t, rec).User.Email)
}

func TestSignInDoesNotRevealWhichPartWasWrong(t *testing.T) {
	v := newEnv(t)
	v.account(t, "acme", "owner@example.com", "correct-horse")

	wrongPass := v.do(t, http.MethodPost, "/auth/sign-in", map[string]string{"email": "owner@example.com", "password": "nope"}, "")
	unknown := v.do(t, http.MethodPost, "/auth/sign-in", map[string]string{"email": "ghost@example.com", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrongPass.Body.String(), unknown.Body.String())
}

func TestSignInRateLimit(t *testing.T) {
	v := newEnv(t)
	v.account(t, "acme", "owner@example.com", "correct-horse")

	for i := 1; i <= 5; i++ {
		code, _ := v.signIn(t, "owner@example.com", "wrong")
		require.Equal(t, http.StatusUnauthorized, code, "attempt %d", i)
	}

	rec := v.do(t, http.MethodPost, "/auth/sign-in", map[string]string{"email": "owner@example.com", "password": "wrong"}, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retry)
	assert.Equal(t, "rate_limited", decode[errorResp](t, rec).Code)

	v.advance(15*time.Minute + time.Second)
	code, _ := v.signIn(t, "owner@example.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, code, "window elapsed")
}

// signInFrom sends a wrong-password sign-in from peer with the given
// X-Forwarded-For value.
func (v *env) signInFrom(t *testing.T, peer, forwarded string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in",
		strings.NewReader(`{"email":"owner@example.com","password":"wrong"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXForwardedFor, forwarded)
	req.RemoteAddr = peer + ":40000"
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec.Code
}

func TestSignInRateLimitIgnoresForwardedForFromClients(t *testing.T) {
	v := newEnv(t)
	v.account(t, "acme", "owner@example.com", "correct-horse")

	var codes []int
	for i := 1; i <= 6; i++ {
		codes = append(codes, v.signInFrom(t, "203.0.113.7", "10.9.0."+strconv.Itoa(i)))
	}
	assert.Equal(t, []int{401, 401, 401, 401, 401, 429}, codes)
	assert.Equal(t, http.StatusUnauthorized, v.signInFrom(t, "203.0.113.8", "10.9.0.1"),
		"another peer has its own counter")
}

func TestSignInRateLimitBehindTrustedProxy(t *testing.T) {
	v := newEnv(t, func(d *router.Deps) { d.Config.TrustedProxies = []string{"198.51.100.0/24"} })
	v.account(t, "acme", "owner@example.com", "correct-horse")

	for i := 1; i <= 6; i++ {
		assert.Equal(t, http.StatusUnauthorized, v.signInFrom(t, "198.51.100.10", "203.0.113."+strconv.Itoa(i)),
			"distinct clients behind the proxy, attempt %d", i)
	}
	for i := 1; i <= 5; i++ {
		v.signInFrom(t, "198.51.100.10", "203.0.113.50")
	}
	assert.Equal(t, http.StatusTooManyRequests, v.signInFrom(t, "198.51.100.10", "203.0.113.50"))
	assert.Equal(t, http.StatusTooManyRequests, v.signInFrom(t, "198.51.100.10", "203.0.113.60, 203.0.113.50"),
		"only the hop the proxy appended counts")
}

func TestSuccessfulSignInResetsCounter(t *testing.T) {
	v := newEnv(t)
	v.account(t, "acme", "owner@example.com", "correct-horse")

	for i := 0; i < 4; i++ {
		v.signIn(t, "owner@example.com", "wrong")
	}
	code, _ := v.signIn(t, "owner@example.com", "correct-horse")
	require.Equal(t, http.StatusOK, code)
	for i := 0; i < 5; i++ {
		code, _ = v.signIn(t, "owner@example.com", "wrong")
		assert.Equal(t, http.StatusUnauthorized, code)
	}
}

func TestSignInUpgradesLegacyPassword(t *testing.T) {
	v := newEnv(t)
	u, _, _ := v.account(t, "acme", "legacy@example.com", "placeholder")
	ctx := context.Background()
	require.NoError(t, v.users.SetLegacyPassword(ctx, u.ID, utils.LegacyDigest("secret123")))

	code, tok := v.signIn(t, "legacy@example.com", "secret123")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, tok)

	got, err := v.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.PasswordNeedsUpgrade)
	require.NotNil(t, got.PasswordHash)
	assert.True(t, strings.HasPrefix(*got.PasswordHash, "$argon2id$"))
	assert.True(t, utils.VerifyPassword("secret123", *got.PasswordHash, false))

	code, _ = v.signIn(t, "legacy@example.com", "secret123")
	assert.Equal(t, http.StatusOK, code, "modern hash verifies")
}

func TestExpiredSessionIsAnonymous(t *testing.T) {
	v := newEnv(t)
	u, _, _ := v.account(t, "acme", "owner@example.com", "correct-horse")
	past := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, v.rows.Create(context.Background(), model.Session{
		ID: "stale", Token: "stale", UserID: u.ID, ExpiresAt: past, CreatedAt: past.Add(-time.Hour), UpdatedAt: past,
	}))

	rec := v.do(t, http.MethodGet, "/auth/session", nil, "stale")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":null,"client":null}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, v.do(t, http.MethodGet, "/links", nil, "stale").Code)
}

func TestBearerTokenIsAccepted(t *testing.T) {
	v := newEnv(t)
	_, _, tok := v.account(t, "acme", "owner@example.com", "correct-horse")
	assert.Equal(t, http.StatusUnauthorized, v.do(t, http.MethodGet, "/links", nil, "").Code)

	req := httptest.NewRequest(http.MethodGet, "/links", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignOut(t *testing.T) {
	v := newEnv(t)
	_, _, tok := v.account(t, "acme", "owner@example.com", "correct-horse")

	rec := v.do(t, http.MethodPost, "/auth/sign-out", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	ck := sessionCookie(rec)
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
	assert.Negative(t, ck.MaxAge)

	assert.JSONEq(t, `{"user":null,"client":null}`, v.do(t, http.MethodGet, "/auth/session", nil, tok).Body.String())
	assert.Equal(t, http.StatusOK, v.do(t, http.MethodPost, "/auth/sign-out", nil, "").Code, "anonymous sign-out is fine")
}

func TestRegisterAndVerifyEmail(t *testing.T) {
	v := newEnv(t)
	rec := v.do(t, http.MethodPost, "/auth/register", map[string]any{
		"email":    "New@Example.com",
		"password": "long-enough",
		"slug":     "NewSlug",
		"socialLinks": []map[string]string{
			{"title": "Instagram", "url": "https://instagram.com/new", "socialPreset": "instagram"},
			{"title": "Site", "url": "https://new.example.com"},
		},
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Nil(t, sessionCookie(rec), "no session before verification")

	ctx := context.Background()
	c, err := v.clients.GetBySlug(ctx, "newslug")
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, c.Plan)
	assert.Equal(t, model.StateUnpublished, c.State())
	links, err := v.links.ListByClient(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "Instagram", links[0].Title)
	assert.Equal(t, 0, links[0].SortOrder)
	assert.Equal(t, 1, links[1].SortOrder)
	require.NotNil(t, links[1].SocialPreset)
	assert.Equal(t, "theme", *links[1].SocialPreset)

	job := v.emails.last(t)
	assert.Equal(t, queue.JobVerification, job.Type)
	assert.Equal(t, "new@example.com", job.Email)

	assert.Equal(t, http.StatusBadRequest, v.do(t, http.MethodGet, "/auth/verify-email?token=bogus", nil, "").Code)

	rec = v.do(t, http.MethodGet, "/auth/verify-email?token="+url.QueryEscape(job.Token), nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ck := sessionCookie(rec)
	require.NotNil(t, ck)

	u, err := v.users.GetByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.True(t, u.EmailVerified)

	body := decode[sessionBody](t, v.do(t, http.MethodGet, "/auth/session", nil, ck.Value))
	require.NotNil(t, body.Client)
	assert.Equal(t, "newslug", body.Client.Slug)

	assert.Equal(t, http.StatusBadRequest, v.do(t, http.MethodGet, "/auth/verify-email?token="+url.QueryEscape(job.Token), nil, "").Code,
		"tokens are single use")
}

func TestRegisterConflictsAndValidation(t *testing.T) {
	v := newEnv(t)
	v.account(t, "taken", "used@example.com", "correct-horse")

	rec := v.do(t, http.MethodPost, "/auth/register",
		map[string]any{"email": "used@example.com", "password": "long-enough", "slug": "fresh"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already exists", decode[errorResp](t, rec).Error)

	rec = v.do(t, http.MethodPost, "/auth/register",
		map[string]any{"email": "other@example.com", "password": "long-enough", "slug": "TAKEN"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Slug already taken", decode[errorResp](t, rec).Error)

	rec = v.do(t, http.MethodPost, "/auth/register",
		map[string]any{"email": "not-an-email", "password": "short", "slug": "a!"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	e := decode[errorResp](t, rec)
	assert.Equal(t, "validation_error", e.Code)
	assert.Contains(t, e.Details, "email")
	assert.Contains(t, e.Details, "password")
	assert.Contains(t, e.Details, "slug")

	_, err := v.users.GetByEmail(context.Background(), "other@example.com")
	assert.Error(t, err, "nothing written on conflict")
	assert.Zero(t, v.emails.count())
}

func TestResendVerification(t *testing.T) {
	v := newEnv(t)
	rec := v.do(t, http.MethodPost, "/auth/register",
		map[string]any{"email": "new@example.com", "password": "long-enough", "slug": "newbie"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	first := v.emails.last(t)

	rec = v.do(t, http.MethodPost, "/auth/resend-verification", map[string]string{"email": "new@example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.Token, v.emails.last(t).Token, "unexpired token is reused")

	rec = v.do(t, http.MethodPost, "/auth/resend-verification", map[string]string{"email": "new@example.com"}, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "one resend per minute")

	rec = v.do(t, http.MethodPost, "/auth/resend-verification", map[string]string{"email": "ghost@example.com"}, "")
	assert.Equal(t, http.StatusOK, rec.Code, "unknown emails look the same")
	assert.Equal(t, 2, v.emails.count())
}

func TestForgotAndResetPassword(t *testing.T) {
	v := newEnv(t)
	_, _, tok := v.account(t, "acme", "owner@example.com", "old-password")

	rec := v.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "ghost@example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, v.emails.count())

	rec = v.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "owner@example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	job := v.emails.last(t)
	assert.Equal(t, queue.JobPasswordReset, job.Type)

	rec = v.do(t, http.MethodPost, "/auth/reset-password", map[string]string{"token": "bogus", "password": "new-password"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = v.do(t, http.MethodPost, "/auth/reset-password", map[string]string{"token": job.Token, "password": "new-password"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.JSONEq(t, `{"user":null,"client":null}`, v.do(t, http.MethodGet, "/auth/session", nil, tok).Body.String(),
		"every session is revoked")
	code, _ := v.signIn(t, "owner@example.com", "old-password")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = v.signIn(t, "owner@example.com", "new-password")
	assert.Equal(t, http.StatusOK, code)

	rec = v.do(t, http.MethodPost, "/auth/reset-password", map[string]string{"token": job.Token, "password": "third-password"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "tokens are single use")
}

func TestChangePassword(t *testing.T) {
	v := newEnv(t)
	_, _, tok := v.account(t, "acme", "owner@example.com", "old-password")

	assert.Equal(t, http.StatusUnauthorized,
		v.do(t, http.MethodPost, "/auth/change-password", map[string]string{"currentPassword": "x", "newPassword": "new-password"}, "").Code)

	rec := v.do(t, http.MethodPost, "/auth/change-password",
		map[string]string{"currentPassword": "wrong", "newPassword": "new-password"}, tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = v.do(t, http.MethodPost, "/auth/change-password",
		map[string]string{"currentPassword": "old-password", "newPassword": "short"}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = v.do(t, http.MethodPost, "/auth/change-password",
		map[string]string{"currentPassword": "old-password", "newPassword": "new-password"}, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	code, _ := v.signIn(t, "owner@example.com", "new-password")
	assert.Equal(t, http.StatusOK, code)
}

func TestDeleteAccount(t *testing.T) {
	v := newEnv(t)
	u, c, tok := v.account(t, "acme", "owner@example.com", "correct-horse")
	ctx := context.Background()
	_, err := v.links.Create(ctx, c.ID, model.LinkCreate{Title: "a", URL: "https://a.example"})
	require.NoError(t, err)

	rec := v.do(t, http.MethodDelete, "/auth/account", map[string]string{"password": "wrong"}, tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = v.do(t, http.MethodDelete, "/auth/account", map[string]string{"password": "correct-horse"}, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err = v.users.GetByID(ctx, u.ID)
	assert.Error(t, err)
	_, err = v.clients.GetByID(ctx, c.ID)
	assert.Error(t, err)
	links, err := v.links.ListByClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.Equal(t, http.StatusUnauthorized, v.do(t, http.MethodGet, "/links", nil, tok).Code)
}
