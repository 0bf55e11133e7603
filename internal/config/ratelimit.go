package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ToolLimit is the admission policy for one named tool: at most Limit
// requests per user within each fixed Window.
type ToolLimit struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig holds the default policy plus per-tool overrides.
type RateLimitConfig struct {
	Enabled bool
	Default ToolLimit
	Tools   map[string]ToolLimit
}

// For returns the policy for a tool, falling back to the default when no
// override is configured.
func (c RateLimitConfig) For(tool string) ToolLimit {
	if tl, ok := c.Tools[tool]; ok {
		return tl
	}
	return c.Default
}

// LoadRateLimitConfig reads the rate-limit policy from the environment.
//
//	RATE_LIMIT_ENABLED   – master switch (default true)
//	RATE_LIMIT_DEFAULT   – default limit, requests per window (default 60)
//	RATE_LIMIT_WINDOW    – default window duration (default 1m)
//	RATE_LIMIT_TOOLS     – per-tool overrides, e.g. "train=3/60s,research=30/1m"
//
// Malformed override entries are skipped rather than fatal; the default
// policy always applies to an unknown or misconfigured tool.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Default: ToolLimit{
			Limit:  envIntRL("RATE_LIMIT_DEFAULT", 60),
			Window: envDur("RATE_LIMIT_WINDOW", time.Minute),
		},
		Tools: parseToolLimits(os.Getenv("RATE_LIMIT_TOOLS")),
	}
	if cfg.Default.Limit < 1 {
		cfg.Default.Limit = 1
	}
	if cfg.Default.Window <= 0 {
		cfg.Default.Window = time.Minute
	}
	return cfg
}

// parseToolLimits parses "tool=limit/window" pairs separated by commas.
func parseToolLimits(s string) map[string]ToolLimit {
	out := map[string]ToolLimit{}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, policy, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		limStr, winStr, ok := strings.Cut(policy, "/")
		if !ok {
			continue
		}
		lim, err := strconv.Atoi(strings.TrimSpace(limStr))
		if err != nil || lim < 1 {
			continue
		}
		win, err := time.ParseDuration(strings.TrimSpace(winStr))
		if err != nil || win <= 0 {
			continue
		}
		out[strings.TrimSpace(name)] = ToolLimit{Limit: lim, Window: win}
	}
	return out
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

func envIntRL(k string, d int) int {
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
