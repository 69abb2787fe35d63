// Package router wires repositories, services and handlers into an echo
// instance and registers every route.
package router

import (
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/linkbio/internal/config"
	"github.com/iliyamo/linkbio/internal/handler"
	"github.com/iliyamo/linkbio/internal/middleware"
	"github.com/iliyamo/linkbio/internal/queue"
	"github.com/iliyamo/linkbio/internal/ratelimit"
	"github.com/iliyamo/linkbio/internal/repository"
	"github.com/iliyamo/linkbio/internal/service"
)

// Deps are the process-wide collaborators the routes need.  Redis,
// Limiter, Revalidator and Emails may be nil; the matching feature is then
// off.
type Deps struct {
	DB          *sql.DB
	Config      config.Config
	Cache       config.CacheConfig
	Redis       *redis.Client
	Limiter     ratelimit.Limiter
	Revalidator service.Revalidator
	Emails      service.EmailQueue
	// EmailHandler sends jobs arriving on the webhook.
	EmailHandler queue.Handler
	Logger       *slog.Logger
}

// New builds the echo instance with global middleware and all routes.  The
// session manager is returned so the caller can run its purge loop.
func New(d Deps) (*echo.Echo, *service.SessionManager) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	users := repository.NewUserRepo(d.DB)
	clients := repository.NewClientRepo(d.DB)
	links := repository.NewLinkRepo(d.DB)
	sessionRows := repository.NewSessionRepo(d.DB)
	verifications := repository.NewVerificationRepo(d.DB)

	sessions := service.NewSessionManager(sessionRows, clients, d.Config.SessionTTL)
	sessions.Logger = d.Logger
	publisher := service.NewPublisher(clients, d.Revalidator)
	publisher.Logger = d.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor(d.Config.TrustedProxies, d.Logger)
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler(d.Logger)

	e.Use(echomw.Recover())
	e.Use(requestLogger(d.Logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     d.Config.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(middleware.Metrics())
	e.Use(middleware.LoadSession(sessions))

	RegisterRoutes(e)
	RegisterAuth(e, &handler.AuthHandler{
		DB:            d.DB,
		Users:         users,
		Clients:       clients,
		Links:         links,
		Verifications: verifications,
		SessionRows:   sessionRows,
		Sessions:      sessions,
		Limiter:       d.Limiter,
		Emails:        d.Emails,
		Argon2:        d.Config.Argon2,
		SecureCookies: d.Config.Production(),
		Logger:        d.Logger,
	}, d.Limiter)
	RegisterClients(e, &handler.ClientHandler{
		DB:      d.DB,
		Clients: clients,
		Links:   links,
		Users:   users,
		Argon2:  d.Config.Argon2,
	})
	RegisterLinks(e, &handler.LinkHandler{Links: links})
	RegisterPublish(e, &handler.PublishHandler{Publisher: publisher})
	RegisterPublic(e, &handler.PublicHandler{Clients: clients, Links: links}, d.Cache, d.Redis)
	switch {
	case d.EmailHandler == nil:
	case d.Config.WebhookSecret == "" && d.Config.Production():
		d.Logger.Warn("email webhook disabled: EMAIL_WEBHOOK_SECRET is required in production")
	default:
		RegisterWebhooks(e, &handler.WebhookHandler{Emails: d.EmailHandler, Logger: d.Logger}, d.Config.WebhookSecret)
	}
	return e, sessions
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// ipExtractor decides which address rate limits are keyed on.  With no
// trusted proxies only the TCP peer counts, so a client cannot pick its own
// key through X-Forwarded-For.  Otherwise the header is walked from the right
// and the first hop outside the trusted ranges wins.
func ipExtractor(trusted []string, logger *slog.Logger) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trusted {
		if !strings.Contains(cidr, "/") {
			if ip := net.ParseIP(cidr); ip != nil && ip.To4() != nil {
				cidr += "/32"
			} else {
				cidr += "/128"
			}
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn("ignoring invalid trusted proxy", "value", cidr, "err", err)
			continue
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// requestLogger emits one structured line per request.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("ip", v.RemoteIP),
				slog.String("user", middleware.UserID(c)),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				level = slog.LevelError
				attrs = append(attrs, slog.String("err", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
