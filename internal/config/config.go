package config // package config loads application configuration from environment variables

import (
	"log/slog" // slog reports configuration errors before exiting
	"os"       // os provides access to environment variables
	"strings"
	"time"

	"github.com/iliyamo/linkbio/internal/utils"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	AdminURL        string   // base URL of the admin app, used in email links
	PublicSiteURL   string   // base URL of the public renderer; empty disables revalidation
	RevalidateToken string   // sent as x-prerender-revalidate to the renderer
	AllowedOrigins  []string // CORS origins allowed to send credentials
	TrustedProxies  []string // CIDRs whose X-Forwarded-For is believed; empty uses the peer address
	WebhookSecret   string   // HS256 secret for POST /webhooks/email; empty accepts unsigned
	AMQPURL         string   // broker for email jobs; empty sends directly
	SessionTTL      time.Duration
	Argon2          utils.Argon2Params
	LogLevel        slog.Level
}

// Production reports whether cookies must be marked Secure.
func (c Config) Production() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit.
func Load() Config {
	argon := utils.DefaultArgon2Params
	argon.Memory = uint32(envInt("ARGON2_MEMORY_KIB", int(argon.Memory)))
	argon.Time = uint32(envInt("ARGON2_TIME", int(argon.Time)))

	amqpURL := os.Getenv("RABBITMQ_URL")
	if amqpURL == "" {
		amqpURL = os.Getenv("AMQP_URL")
	}

	return Config{
		Env:    must("APP_ENV"),      // environment (dev/test/prod)
		Port:   must("APP_PORT"),     // port to bind the HTTP server
		DBUser: must("DB_USER"),      // database user
		DBPass: os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost: must("DB_HOST"),      // database host
		DBPort: must("DB_PORT"),      // database port
		DBName: must("DB_NAME"),      // database name

		AdminURL:        strings.TrimRight(envStr("ADMIN_URL", "http://localhost:3000"), "/"),
		PublicSiteURL:   strings.TrimRight(os.Getenv("PUBLIC_SITE_URL"), "/"),
		RevalidateToken: os.Getenv("REVALIDATE_TOKEN"),
		AllowedOrigins:  splitList(envStr("ALLOWED_ORIGINS", "http://localhost:3000")),
		TrustedProxies:  splitList(os.Getenv("TRUSTED_PROXIES")),
		WebhookSecret:   os.Getenv("EMAIL_WEBHOOK_SECRET"),
		AMQPURL:         amqpURL,
		SessionTTL:      time.Duration(envInt("SESSION_TTL_DAYS", 30)) * 24 * time.Hour,
		Argon2:          argon,
		LogLevel:        ParseLevel(os.Getenv("LOG_LEVEL")),
	}
}

// ParseLevel maps LOG_LEVEL onto a slog level; unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs an error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		slog.Error("missing required env var", "key", key)
		os.Exit(1)
	}
	return v
}
