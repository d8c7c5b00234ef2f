package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/shortontech/edgeprobe/internal/detection"
	"github.com/shortontech/edgeprobe/internal/metrics"
	"github.com/shortontech/edgeprobe/internal/probe"
	"github.com/shortontech/edgeprobe/internal/report"
	cfg "github.com/shortontech/edgeprobe/pkg/config"
)

type Env struct {
	Cfg      cfg.Config
	Prober   *probe.Prober // emits every report it builds to the sinks
	HMACAuth *HMACAuth     // nil disables signature checks on /classify
	Metrics  *metrics.Metrics
}

// classifyRequest carries headers observed by a client that already made the
// request itself, e.g. a browser extension.
type classifyRequest struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

func (e Env) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (e Env) Readyz(w http.ResponseWriter, r *http.Request) {
	if e.Prober == nil {
		http.Error(w, "prober not configured", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// GET /detect?url=<target>[&format=panel]
func (e Env) Detect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if e.Prober == nil {
		http.Error(w, "prober not configured", http.StatusServiceUnavailable)
		return
	}

	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}
	if _, err := probe.NormalizeTarget(raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rep, err := e.Prober.Probe(r.Context(), raw)
	if !errors.Is(err, probe.ErrInFlight) && !errors.Is(err, probe.ErrAlreadyDone) {
		// each request is its own navigation
		e.Prober.Release(raw)
	}
	if err != nil {
		status := probeErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Printf("detect: %v", err)
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeReport(w, r, rep)
}

func probeErrorStatus(err error) int {
	switch {
	case errors.Is(err, probe.ErrInFlight), errors.Is(err, probe.ErrAlreadyDone):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// POST /classify with {"url": "...", "headers": {...}}
func (e Env) Classify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if e.Prober == nil {
		http.Error(w, "prober not configured", http.StatusServiceUnavailable)
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, e.Cfg.MaxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if e.HMACAuth != nil && !e.HMACAuth.VerifyHMAC(r, body) {
		http.Error(w, "invalid or missing HMAC signature", http.StatusUnauthorized)
		return
	}

	var req classifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	target, err := probe.NormalizeTarget(req.URL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rep := e.Prober.Classify(target, detection.HeaderSetFromMap(req.Headers))
	writeReport(w, r, rep)
}

func writeReport(w http.ResponseWriter, r *http.Request, rep report.Report) {
	if r.URL.Query().Get("format") == "panel" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, report.FormatPanel(rep))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rep)
}
