package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerAddr   string
	Outputs      []string // enabled sinks: log, kafka, postgres
	MaxBodyBytes int64    // bytes for /classify payload
	TestMode     bool

	ProbeTimeout     time.Duration // per HEAD request
	ProbeMaxAttempts int
	ProbeRetryDelay  time.Duration
	UserAgent        string

	RulesPath string // optional rule catalog merged into the built-in rules

	HMACSecret  string
	RequireHMAC bool
}

func getOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func getBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	switch v {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}
func getInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

// getDuration accepts Go durations ("2s") or plain milliseconds ("2000")
func getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func getStringSlice(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func Load() Config {
	return Config{
		ServerAddr:   getOr("SERVER_ADDR", ":19891"),
		Outputs:      getStringSlice("OUTPUTS", "log"),
		MaxBodyBytes: getInt64("MAX_BODY_BYTES", 64<<10),
		TestMode:     getBool("TEST_MODE", false),

		ProbeTimeout:     getDuration("PROBE_TIMEOUT", 10*time.Second),
		ProbeMaxAttempts: int(getInt64("PROBE_MAX_ATTEMPTS", 3)),
		ProbeRetryDelay:  getDuration("PROBE_RETRY_DELAY", 2*time.Second),
		UserAgent:        getOr("PROBE_USER_AGENT", "edgeprobe/1.0 (+https://github.com/shortontech/edgeprobe)"),

		RulesPath: getOr("RULES_PATH", ""),

		HMACSecret:  getOr("HMAC_SECRET", ""),
		RequireHMAC: getBool("REQUIRE_HMAC", false),
	}
}
