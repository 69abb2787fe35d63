// Package ratelimit counts attempts per key in fixed windows.  Callers depend
// on the Limiter interface only; MemoryLimiter serves a single process and
// RedisLimiter shares counters between instances.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Decision is the outcome of one Check.
type Decision struct {
	Allowed bool
	// Count is the number of attempts seen in the current window,
	// including this one.
	Count int
	// RetryAfter is the time left in the window when Allowed is false.
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below 1.
func (d Decision) RetryAfterSeconds() int {
	s := int(math.Ceil(d.RetryAfter.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// Limiter records an attempt for key and decides whether it is within max
// attempts per window.  Reset forgets the key, e.g. after a successful login.
type Limiter interface {
	Check(ctx context.Context, key string, max int, window time.Duration) (Decision, error)
	Reset(ctx context.Context, key string) error
}

// Policy names a limit applied to one operation.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
}

// Key builds the counter key for subject (a client IP or an email).
func (p Policy) Key(subject string) string { return p.Name + ":" + subject }

var (
	SignIn             = Policy{Name: "sign-in", Max: 5, Window: 15 * time.Minute}
	Register           = Policy{Name: "register", Max: 5, Window: 15 * time.Minute}
	ForgotPassword     = Policy{Name: "forgot-password", Max: 3, Window: 60 * time.Minute}
	ResetPassword      = Policy{Name: "reset-password", Max: 5, Window: 60 * time.Minute}
	DeleteAccount      = Policy{Name: "delete-account", Max: 3, Window: 60 * time.Minute}
	ResendVerification = Policy{Name: "resend-verification", Max: 1, Window: time.Minute}
)
