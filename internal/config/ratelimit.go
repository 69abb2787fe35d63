package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig selects and tunes the limiter behind the auth endpoints.
// The per-endpoint limits themselves are fixed policies in package ratelimit.
type RateLimitConfig struct {
	Enabled        bool
	Backend        string // "memory" or "redis"
	Prefix         string
	SweepThreshold int
}

func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Backend:        strings.ToLower(envStr("RATE_LIMIT_BACKEND", "memory")),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		SweepThreshold: envInt("RATE_LIMIT_SWEEP_THRESHOLD", 1024),
	}
	if cfg.Backend != "redis" {
		cfg.Backend = "memory"
	}
	if cfg.SweepThreshold < 1 {
		cfg.SweepThreshold = 1024
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
