package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/linkbio/internal/config"
	"github.com/iliyamo/linkbio/internal/database/dbtest"
	"github.com/iliyamo/linkbio/internal/middleware"
	"github.com/iliyamo/linkbio/internal/model"
	"github.com/iliyamo/linkbio/internal/queue"
	"github.com/iliyamo/linkbio/internal/ratelimit"
	"github.com/iliyamo/linkbio/internal/repository"
	"github.com/iliyamo/linkbio/internal/router"
	"github.com/iliyamo/linkbio/internal/service"
	"github.com/iliyamo/linkbio/internal/utils"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fastArgon keeps password hashing cheap in tests.
var fastArgon = utils.Argon2Params{Memory: 64, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []queue.EmailJob
}

func (q *recordingQueue) Enqueue(_ context.Context, job queue.EmailJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Handle(ctx context.Context, job queue.EmailJob) error {
	return q.Enqueue(ctx, job)
}

func (q *recordingQueue) last(t *testing.T) queue.EmailJob {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	require.NotEmpty(t, q.jobs, "no email job recorded")
	return q.jobs[len(q.jobs)-1]
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type env struct {
	e        *echo.Echo
	db       *sql.DB
	users    *repository.UserRepo
	clients  *repository.ClientRepo
	links    *repository.LinkRepo
	rows     *repository.SessionRepo
	sessions *service.SessionManager
	limiter  *ratelimit.MemoryLimiter
	emails   *recordingQueue
	clock    time.Time
}

func newEnv(t *testing.T, opts ...func(*router.Deps)) *env {
	t.Helper()
	db := dbtest.New(t)
	v := &env{
		db:      db,
		users:   repository.NewUserRepo(db),
		clients: repository.NewClientRepo(db),
		links:   repository.NewLinkRepo(db),
		rows:    repository.NewSessionRepo(db),
		limiter: ratelimit.NewMemoryLimiter(0),
		emails:  &recordingQueue{},
		clock:   time.Now(),
	}
	v.limiter.Now = func() time.Time { return v.clock }

	d := router.Deps{
		DB: db,
		Config: config.Config{
			Env:        "test",
			SessionTTL: service.DefaultSessionTTL,
			Argon2:     fastArgon,
			AdminURL:   "http://admin.test",
		},
		Limiter:      v.limiter,
		Emails:       v.emails,
		EmailHandler: v.emails,
		Logger:       discardLogger(),
	}
	for _, o := range opts {
		o(&d)
	}
	v.e, v.sessions = router.New(d)
	return v
}

// advance moves the rate limiter clock.
func (v *env) advance(d time.Duration) { v.clock = v.clock.Add(d) }

// do sends a JSON request, optionally authenticated by a session token.
func (v *env) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

// account creates a client owned by a fresh user and returns a session
// token for that user.
func (v *env) account(t *testing.T, slug, email, password string) (model.User, model.Client, string) {
	t.Helper()
	ctx := context.Background()
	c, err := v.clients.Create(ctx, model.ClientCreate{Slug: slug})
	require.NoError(t, err)
	hash, err := utils.HashPassword(password, fastArgon)
	require.NoError(t, err)
	u, err := v.users.Create(ctx, model.UserCreate{Email: email, PasswordHash: hash, EmailVerified: true, ClientID: &c.ID})
	require.NoError(t, err)
	return u, c, v.login(t, u.ID)
}

// admin creates a super admin without a client.
func (v *env) admin(t *testing.T) string {
	t.Helper()
	hash, err := utils.HashPassword("admin-password", fastArgon)
	require.NoError(t, err)
	u, err := v.users.Create(context.Background(), model.UserCreate{
		Email: "root@example.com", PasswordHash: hash, EmailVerified: true, Role: model.RoleSuperAdmin,
	})
	require.NoError(t, err)
	return v.login(t, u.ID)
}

func (v *env) login(t *testing.T, userID string) string {
	t.Helper()
	s, err := v.sessions.Create(context.Background(), userID, "", "")
	require.NoError(t, err)
	return s.Token
}

func (v *env) status(t *testing.T, clientID string) model.PublishStatus {
	t.Helper()
	st, err := v.clients.PublishStatus(context.Background(), clientID)
	require.NoError(t, err)
	return st
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

type errorResp struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details"`
}
