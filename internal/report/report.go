package report

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/shortontech/edgeprobe/internal/detection"
)

// Report is the envelope handed to renderers and sinks for one detection
type Report struct {
	ID       string           `json:"id"`
	TS       string           `json:"ts"` // RFC3339Nano, UTC
	Target   string           `json:"target"`
	Site     string           `json:"site,omitempty"` // registrable domain (eTLD+1)
	Attempts int              `json:"attempts,omitempty"`
	Result   detection.Result `json:"result"`
}

// New builds a report for target with a fresh id and timestamp
func New(target string, res detection.Result, attempts int) Report {
	return Report{
		ID:       uuid.New().String(),
		TS:       time.Now().UTC().Format(time.RFC3339Nano),
		Target:   target,
		Site:     SiteOf(target),
		Attempts: attempts,
		Result:   res,
	}
}

// SiteOf returns the registrable domain of target, or its bare host when the
// public suffix list has no answer (IPs, localhost).
func SiteOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if net.ParseIP(host) != nil {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}

// FormatPanel renders the result the way the floating panel shows it
func FormatPanel(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Target)
	fmt.Fprintf(&b, "  Provider: %s\n", r.Result.Provider)
	fmt.Fprintf(&b, "  Cache:    %s\n", r.Result.Cache)
	fmt.Fprintf(&b, "  POP:      %s\n", r.Result.POP)
	fmt.Fprintf(&b, "  Extra:    %s\n", r.Result.Extra)
	return b.String()
}
