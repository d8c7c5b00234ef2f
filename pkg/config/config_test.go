package config

import (
	"os"
	"testing"
	"time"
)

func withEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, val := range vars {
		old, had := os.LookupEnv(key)
		if val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, val)
		}
		t.Cleanup(func() {
			if had {
				os.Setenv(key, old)
			} else {
				os.Unsetenv(key)
			}
		})
	}
}

func TestGetOr(t *testing.T) {
	withEnv(t, map[string]string{"CFG_TEST_SET": "from_env", "CFG_TEST_UNSET": ""})

	if got := getOr("CFG_TEST_SET", "default"); got != "from_env" {
		t.Errorf("getOr() = %q, want from_env", got)
	}
	if got := getOr("CFG_TEST_UNSET", "default"); got != "default" {
		t.Errorf("getOr() = %q, want default", got)
	}
}

func TestGetBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"1", false, true},
		{"t", false, true},
		{"TRUE", false, true},
		{" Yes ", false, true},
		{"0", true, false},
		{"no", true, false},
		{"F", true, false},
		{"", true, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			withEnv(t, map[string]string{"CFG_TEST_BOOL": tt.value})
			if got := getBool("CFG_TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("getBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetInt64(t *testing.T) {
	tests := []struct {
		value string
		want  int64
	}{
		{"42", 42},
		{"-7", -7},
		{"", 5},
		{"forty", 5},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			withEnv(t, map[string]string{"CFG_TEST_INT": tt.value})
			if got := getInt64("CFG_TEST_INT", 5); got != tt.want {
				t.Errorf("getInt64(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"2s", 2 * time.Second},
		{"150ms", 150 * time.Millisecond},
		{"2500", 2500 * time.Millisecond},
		{"", time.Minute},
		{"soon", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			withEnv(t, map[string]string{"CFG_TEST_DUR": tt.value})
			if got := getDuration("CFG_TEST_DUR", time.Minute); got != tt.want {
				t.Errorf("getDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetStringSlice(t *testing.T) {
	t.Run("splits and trims", func(t *testing.T) {
		withEnv(t, map[string]string{"CFG_TEST_SLICE": " log , kafka,,postgres "})
		got := getStringSlice("CFG_TEST_SLICE", "")
		want := []string{"log", "kafka", "postgres"}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("empty default is nil", func(t *testing.T) {
		withEnv(t, map[string]string{"CFG_TEST_SLICE": ""})
		if got := getStringSlice("CFG_TEST_SLICE", ""); got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})
}

func TestLoad(t *testing.T) {
	keys := []string{
		"SERVER_ADDR", "OUTPUTS", "MAX_BODY_BYTES", "TEST_MODE", "PROBE_TIMEOUT",
		"PROBE_MAX_ATTEMPTS", "PROBE_RETRY_DELAY", "PROBE_USER_AGENT", "RULES_PATH",
		"HMAC_SECRET", "REQUIRE_HMAC",
	}

	t.Run("defaults", func(t *testing.T) {
		vars := map[string]string{}
		for _, k := range keys {
			vars[k] = ""
		}
		withEnv(t, vars)

		cfg := Load()

		if cfg.ServerAddr != ":19891" {
			t.Errorf("ServerAddr = %q, want :19891", cfg.ServerAddr)
		}
		if len(cfg.Outputs) != 1 || cfg.Outputs[0] != "log" {
			t.Errorf("Outputs = %v, want [log]", cfg.Outputs)
		}
		if cfg.ProbeMaxAttempts != 3 {
			t.Errorf("ProbeMaxAttempts = %d, want 3", cfg.ProbeMaxAttempts)
		}
		if cfg.ProbeRetryDelay != 2*time.Second {
			t.Errorf("ProbeRetryDelay = %v, want 2s", cfg.ProbeRetryDelay)
		}
		if cfg.ProbeTimeout != 10*time.Second {
			t.Errorf("ProbeTimeout = %v, want 10s", cfg.ProbeTimeout)
		}
		if cfg.RulesPath != "" || cfg.HMACSecret != "" || cfg.RequireHMAC || cfg.TestMode {
			t.Errorf("unexpected non-zero defaults: %+v", cfg)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		withEnv(t, map[string]string{
			"SERVER_ADDR":        ":8080",
			"OUTPUTS":            "kafka,postgres",
			"MAX_BODY_BYTES":     "2048",
			"TEST_MODE":          "true",
			"PROBE_TIMEOUT":      "3s",
			"PROBE_MAX_ATTEMPTS": "5",
			"PROBE_RETRY_DELAY":  "500",
			"PROBE_USER_AGENT":   "probe-test",
			"RULES_PATH":         "/etc/edgeprobe/rules.json",
			"HMAC_SECRET":        "s3cret",
			"REQUIRE_HMAC":       "yes",
		})

		cfg := Load()

		if cfg.ServerAddr != ":8080" {
			t.Errorf("ServerAddr = %q, want :8080", cfg.ServerAddr)
		}
		if len(cfg.Outputs) != 2 || cfg.Outputs[1] != "postgres" {
			t.Errorf("Outputs = %v, want [kafka postgres]", cfg.Outputs)
		}
		if cfg.MaxBodyBytes != 2048 {
			t.Errorf("MaxBodyBytes = %d, want 2048", cfg.MaxBodyBytes)
		}
		if !cfg.TestMode {
			t.Error("TestMode should be true")
		}
		if cfg.ProbeTimeout != 3*time.Second {
			t.Errorf("ProbeTimeout = %v, want 3s", cfg.ProbeTimeout)
		}
		if cfg.ProbeMaxAttempts != 5 {
			t.Errorf("ProbeMaxAttempts = %d, want 5", cfg.ProbeMaxAttempts)
		}
		if cfg.ProbeRetryDelay != 500*time.Millisecond {
			t.Errorf("ProbeRetryDelay = %v, want 500ms", cfg.ProbeRetryDelay)
		}
		if cfg.UserAgent != "probe-test" {
			t.Errorf("UserAgent = %q, want probe-test", cfg.UserAgent)
		}
		if cfg.RulesPath != "/etc/edgeprobe/rules.json" {
			t.Errorf("RulesPath = %q", cfg.RulesPath)
		}
		if cfg.HMACSecret != "s3cret" || !cfg.RequireHMAC {
			t.Errorf("HMAC = %q/%v, want s3cret/true", cfg.HMACSecret, cfg.RequireHMAC)
		}
	})
}
