package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shortontech/edgeprobe/internal/detection"
)

func TestNew(t *testing.T) {
	res := detection.Result{Provider: "Vercel", Cache: detection.CacheHit, POP: "IAD", Extra: "ID: iad1::x", Priority: 9}
	r := New("https://www.example.co.uk/docs", res, 2)

	t.Run("has a uuid", func(t *testing.T) {
		if _, err := uuid.Parse(r.ID); err != nil {
			t.Errorf("ID %q is not a uuid: %v", r.ID, err)
		}
	})

	t.Run("timestamp is RFC3339", func(t *testing.T) {
		if _, err := time.Parse(time.RFC3339Nano, r.TS); err != nil {
			t.Errorf("TS %q: %v", r.TS, err)
		}
	})

	t.Run("site is eTLD+1", func(t *testing.T) {
		if r.Site != "example.co.uk" {
			t.Errorf("Site = %q, want example.co.uk", r.Site)
		}
	})

	t.Run("json shape", func(t *testing.T) {
		b, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		s := string(b)
		for _, want := range []string{`"provider":"Vercel"`, `"cache":"HIT"`, `"pop":"IAD"`, `"attempts":2`} {
			if !strings.Contains(s, want) {
				t.Errorf("json %s missing %s", s, want)
			}
		}
	})
}

func TestSiteOf(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"https://blog.example.com/a", "example.com"},
		{"https://EXAMPLE.org", "example.org"},
		{"http://127.0.0.1:8080/", "127.0.0.1"},
		{"http://localhost/", "localhost"},
		{"not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := SiteOf(tt.target); got != tt.want {
				t.Errorf("SiteOf(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

func TestFormatPanel(t *testing.T) {
	r := Report{
		Target: "https://example.com/",
		Result: detection.Result{Provider: "nginx", Cache: detection.CacheNA, POP: detection.NA, Extra: detection.NoCDNDetected},
	}
	out := FormatPanel(r)
	for _, want := range []string{"https://example.com/", "Provider: nginx", "Cache:    N/A", "Extra:    No CDN detected"} {
		if !strings.Contains(out, want) {
			t.Errorf("panel missing %q:\n%s", want, out)
		}
	}
}
