package handler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/middleware"
	"github.com/iliyamo/linkbio/internal/model"
	"github.com/iliyamo/linkbio/internal/queue"
	"github.com/iliyamo/linkbio/internal/ratelimit"
	"github.com/iliyamo/linkbio/internal/repository"
	"github.com/iliyamo/linkbio/internal/service"
	"github.com/iliyamo/linkbio/internal/utils"
)

const (
	dbTimeout         = 5 * time.Second
	verificationTTL   = 24 * time.Hour
	passwordResetTTL  = time.Hour
	msgBadCredentials = "Invalid email or password"
	msgBadToken       = "Invalid or expired token"
)

// reqCtx bounds the store calls of one request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	DB            *sql.DB
	Users         *repository.UserRepo
	Clients       *repository.ClientRepo
	Links         *repository.LinkRepo
	Verifications *repository.VerificationRepo
	SessionRows   *repository.SessionRepo
	Sessions      *service.SessionManager
	Limiter       ratelimit.Limiter
	Emails        service.EmailQueue
	Argon2        utils.Argon2Params
	SecureCookies bool
	Logger        *slog.Logger
}

func (h *AuthHandler) log() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// ----- DTOs -----

type signInReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *signInReq) normalize() { r.Email = repository.NormalizeEmail(r.Email) }

type socialLinkReq struct {
	Title        string  `json:"title" validate:"required,max=100"`
	URL          string  `json:"url" validate:"required,max=2048"`
	SocialPreset *string `json:"socialPreset" validate:"omitempty,max=50"`
}

type registerReq struct {
	Email       string          `json:"email" validate:"required,email,max=254"`
	Password    string          `json:"password" validate:"required,min=8,max=128"`
	Slug        string          `json:"slug" validate:"required,slug"`
	SocialLinks []socialLinkReq `json:"socialLinks" validate:"omitempty,max=6,dive"`
}

func (r *registerReq) normalize() {
	r.Email = repository.NormalizeEmail(r.Email)
	r.Slug = repository.NormalizeSlug(r.Slug)
}

type emailReq struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *emailReq) normalize() { r.Email = repository.NormalizeEmail(r.Email) }

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=128"`
}

type resetPasswordReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type deleteAccountReq struct {
	Password string `json:"password" validate:"required"`
}

type sessionResp struct {
	User   *model.User   `json:"user"`
	Client *model.Client `json:"client"`
}

type successResp struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

var okResp = successResp{Success: true}

// SignIn verifies credentials, upgrades an outdated password hash and
// starts a session.  Unknown email and wrong password look the same.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return unauthorized(msgBadCredentials)
	}
	if err != nil {
		return err
	}
	if u.PasswordHash == nil || !utils.VerifyPassword(req.Password, *u.PasswordHash, u.PasswordNeedsUpgrade) {
		return unauthorized(msgBadCredentials)
	}

	if utils.NeedsRehash(*u.PasswordHash, u.PasswordNeedsUpgrade, h.Argon2) {
		h.upgradePassword(ctx, u.ID, req.Password)
	}

	s, err := h.Sessions.Create(ctx, u.ID, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return err
	}
	setSessionCookie(c, s, h.SecureCookies)
	middleware.ResetRateLimit(c, h.Limiter)

	id := h.Sessions.Resolve(ctx, s.Token)
	if !id.Authenticated() {
		u.PasswordHash = nil
		id.User = &u
	}
	return c.JSON(http.StatusOK, sessionResp{User: id.User, Client: id.Client})
}

// upgradePassword replaces a legacy or weaker hash after a successful
// verification.  A failure leaves the old hash in place for the next
// sign-in and is only logged.
func (h *AuthHandler) upgradePassword(ctx context.Context, userID, plain string) {
	hash, err := utils.HashPassword(plain, h.Argon2)
	if err == nil {
		err = h.Users.UpdatePassword(ctx, userID, hash)
	}
	if err != nil {
		h.log().WarnContext(ctx, "password upgrade failed", "user_id", userID, "err", err)
	}
}

// SignOut deletes the current session and clears the cookie.
func (h *AuthHandler) SignOut(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Sessions.Revoke(ctx, middleware.SessionToken(c)); err != nil {
		h.log().WarnContext(ctx, "session revoke failed", "err", err)
	}
	clearSessionCookie(c, h.SecureCookies)
	return c.JSON(http.StatusOK, okResp)
}

// Session returns the caller's user and client, both null when anonymous.
func (h *AuthHandler) Session(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	return c.JSON(http.StatusOK, sessionResp{User: id.User, Client: id.Client})
}

// Register creates a client, its owner and the chosen social links in one
// transaction, then sends the verification email.  No session is started
// until the email is verified.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if exists, err := h.Users.EmailExists(ctx, req.Email); err != nil {
		return err
	} else if exists {
		return fromRepo(repository.ErrEmailTaken, "")
	}
	if exists, err := h.Clients.SlugExists(ctx, req.Slug); err != nil {
		return err
	} else if exists {
		return fromRepo(repository.ErrSlugTaken, "")
	}

	hash, err := utils.HashPassword(req.Password, h.Argon2)
	if err != nil {
		return err
	}

	var u model.User
	err = repository.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		cl, err := h.Clients.CreateTx(ctx, tx, model.ClientCreate{Slug: req.Slug, Name: req.Slug, Plan: model.PlanPro})
		if err != nil {
			return err
		}
		u, err = h.Users.CreateTx(ctx, tx, model.UserCreate{
			Email:        req.Email,
			PasswordHash: hash,
			Role:         model.RoleClient,
			ClientID:     &cl.ID,
		})
		if err != nil {
			return err
		}
		links := make([]model.LinkCreate, 0, len(req.SocialLinks))
		for _, sl := range req.SocialLinks {
			preset := sl.SocialPreset
			if preset == nil || *preset == "" {
				theme := "theme"
				preset = &theme
			}
			links = append(links, model.LinkCreate{Title: sl.Title, URL: sl.URL, SocialPreset: preset})
		}
		_, err = h.Links.CreateInitialTx(ctx, tx, cl.ID, links)
		return err
	})
	if err != nil {
		return fromRepo(err, "Client")
	}

	h.sendVerification(ctx, u)
	middleware.ResetRateLimit(c, h.Limiter)

	return c.JSON(http.StatusCreated, echo.Map{
		"success":              true,
		"requiresVerification": true,
		"message":              "Check your email to activate your account",
	})
}

// sendVerification issues a fresh email-verification token and queues the
// email.  Failures are logged; the user can ask for a resend.
func (h *AuthHandler) sendVerification(ctx context.Context, u model.User) {
	v, err := h.Verifications.Issue(ctx, u.ID, u.Email, model.PurposeEmailVerification, verificationTTL)
	if err != nil {
		h.log().WarnContext(ctx, "issue verification token failed", "user_id", u.ID, "err", err)
		return
	}
	service.SendOrQueue(ctx, h.Emails, queue.EmailJob{Type: queue.JobVerification, Email: u.Email, Token: v.Token})
}

// VerifyEmail consumes an email-verification token, marks the address
// verified and signs the user in.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return badRequest(msgBadToken)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	var userID string
	err := repository.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		v, err := h.Verifications.ConsumeTx(ctx, tx, token, model.PurposeEmailVerification)
		if err != nil {
			return err
		}
		userID = v.UserID
		return h.Users.MarkEmailVerifiedTx(ctx, tx, v.UserID)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return badRequest(msgBadToken)
	}
	if err != nil {
		return err
	}

	s, err := h.Sessions.Create(ctx, userID, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return err
	}
	setSessionCookie(c, s, h.SecureCookies)
	id := h.Sessions.Resolve(ctx, s.Token)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": id.User, "client": id.Client})
}

// ResendVerification answers success whatever the email, so it cannot be
// used to discover accounts.  A still-valid token is sent again.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := middleware.Allow(c, h.Limiter, ratelimit.ResendVerification, req.Email); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.log().WarnContext(ctx, "resend verification lookup failed", "err", err)
		}
		return c.JSON(http.StatusOK, okResp)
	}
	if u.EmailVerified {
		return c.JSON(http.StatusOK, okResp)
	}
	v, err := h.Verifications.FindActive(ctx, u.ID, model.PurposeEmailVerification)
	if err != nil {
		h.sendVerification(ctx, u)
		return c.JSON(http.StatusOK, okResp)
	}
	service.SendOrQueue(ctx, h.Emails, queue.EmailJob{Type: queue.JobVerification, Email: u.Email, Token: v.Token})
	return c.JSON(http.StatusOK, okResp)
}

// ChangePassword replaces the password of the signed-in user after checking
// the current one, whatever scheme it is stored in.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, middleware.IdentityFrom(c).User.ID)
	if err != nil {
		return fromRepo(err, "User")
	}
	if u.PasswordHash == nil || !utils.VerifyPassword(req.CurrentPassword, *u.PasswordHash, u.PasswordNeedsUpgrade) {
		return unauthorized("Current password is incorrect")
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Argon2)
	if err != nil {
		return err
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return fromRepo(err, "User")
	}
	return c.JSON(http.StatusOK, okResp)
}

// ForgotPassword always succeeds.  When the account exists a one-hour reset
// token is issued and emailed.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	resp := successResp{Success: true, Message: "If an account exists for this email, a reset link has been sent"}
	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.log().WarnContext(ctx, "forgot password lookup failed", "err", err)
		}
		return c.JSON(http.StatusOK, resp)
	}
	v, err := h.Verifications.Issue(ctx, u.ID, u.Email, model.PurposePasswordReset, passwordResetTTL)
	if err != nil {
		h.log().WarnContext(ctx, "issue reset token failed", "user_id", u.ID, "err", err)
		return c.JSON(http.StatusOK, resp)
	}
	service.SendOrQueue(ctx, h.Emails, queue.EmailJob{Type: queue.JobPasswordReset, Email: u.Email, Token: v.Token})
	return c.JSON(http.StatusOK, resp)
}

// ResetPassword consumes a reset token, stores the new password and signs
// the user out everywhere, all in one transaction.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	hash, err := utils.HashPassword(req.Password, h.Argon2)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	err = repository.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		v, err := h.Verifications.ConsumeTx(ctx, tx, req.Token, model.PurposePasswordReset)
		if err != nil {
			return err
		}
		if err := h.Users.UpdatePasswordTx(ctx, tx, v.UserID, hash); err != nil {
			return err
		}
		return h.SessionRows.DeleteByUserTx(ctx, tx, v.UserID)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return badRequest(msgBadToken)
	}
	if err != nil {
		return err
	}
	clearSessionCookie(c, h.SecureCookies)
	middleware.ResetRateLimit(c, h.Limiter)
	return c.JSON(http.StatusOK, successResp{Success: true, Message: "Password updated"})
}

// DeleteAccount removes the user, its sessions and its client with every
// link after re-checking the password.
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	var req deleteAccountReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, middleware.IdentityFrom(c).User.ID)
	if err != nil {
		return fromRepo(err, "User")
	}
	if u.PasswordHash == nil || !utils.VerifyPassword(req.Password, *u.PasswordHash, u.PasswordNeedsUpgrade) {
		return unauthorized("Invalid password")
	}

	err = repository.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		if err := h.SessionRows.DeleteByUserTx(ctx, tx, u.ID); err != nil {
			return err
		}
		if err := h.Users.DeleteTx(ctx, tx, u.ID); err != nil {
			return err
		}
		if u.HasClient() {
			err := h.Clients.DeleteTx(ctx, tx, *u.ClientID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fromRepo(err, "User")
	}
	clearSessionCookie(c, h.SecureCookies)
	h.log().InfoContext(ctx, "account deleted", "user_id", u.ID)
	return c.JSON(http.StatusOK, okResp)
}
