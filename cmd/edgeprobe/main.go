package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shortontech/edgeprobe/internal/detection"
	httpx "github.com/shortontech/edgeprobe/internal/http"
	"github.com/shortontech/edgeprobe/internal/metrics"
	"github.com/shortontech/edgeprobe/internal/probe"
	"github.com/shortontech/edgeprobe/internal/report"
	"github.com/shortontech/edgeprobe/internal/rules"
	"github.com/shortontech/edgeprobe/internal/sink"
	"github.com/shortontech/edgeprobe/pkg/config"
)

// Usage:
//
//	edgeprobe                 serve the HTTP API on SERVER_ADDR
//	edgeprobe URL [URL...]    probe each URL in turn and print a panel
//	edgeprobe healthcheck     exit 0 when the local server answers /healthz
func main() {
	cfg := config.Load()

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		host, port := healthcheckTarget(cfg.ServerAddr)
		if err := performHealthCheck(host, port); err != nil {
			fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.InitMetrics()
	metricsServer := metrics.NewServer(metrics.LoadConfig())
	if err := metricsServer.Start(ctx); err != nil {
		log.Fatalf("metrics: failed to start: %v", err)
	}

	sinks := initializeSinks(ctx, cfg.Outputs, appMetrics)
	emit := createEmitFunc(sinks, appMetrics)

	classifier, err := loadClassifier(cfg.RulesPath)
	if err != nil {
		log.Fatalf("rules: %v", err)
	}

	prober := probe.NewProber(
		probe.NewHTTPFetcher(cfg.ProbeTimeout, cfg.UserAgent),
		classifier,
		probe.Config{MaxAttempts: cfg.ProbeMaxAttempts, RetryDelay: cfg.ProbeRetryDelay},
		probe.WithMetrics(appMetrics),
		probe.WithEmit(emit),
	)

	if cfg.TestMode {
		reports := runTestMode(prober)
		log.Printf("TEST MODE: %d reports handed to %d sinks", len(reports), len(sinks))
	}

	if targets := os.Args[1:]; len(targets) > 0 {
		failed := runOneShot(ctx, prober, targets, os.Stdout)
		closeSinks(sinks)
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	env := httpx.Env{
		Cfg:      cfg,
		Prober:   prober,
		HMACAuth: initializeHMACAuth(cfg),
		Metrics:  appMetrics,
	}
	srv := startHTTPServer(cfg, env)

	waitForShutdown(srv, metricsServer, sinks)
}

// loadClassifier merges the rule catalog at path, if any, into the built-ins
func loadClassifier(path string) (*detection.Classifier, error) {
	if path == "" {
		return detection.NewClassifier(), nil
	}
	catalog, err := rules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	extra := catalog.Rules()
	log.Printf("rules: loaded %d catalog providers from %s", len(extra), path)
	return detection.NewClassifier(extra...), nil
}

func initializeSinks(ctx context.Context, outputs []string, m *metrics.Metrics) []sink.Sink {
	var sinks []sink.Sink
	for _, out := range outputs {
		var s sink.Sink
		switch strings.ToLower(strings.TrimSpace(out)) {
		case "log":
			s = sink.NewLogSink()
		case "kafka":
			s = sink.NewKafkaSinkFromEnv()
		case "postgres", "pg":
			pg := sink.NewPGSinkFromEnv()
			pg.SetMetrics(m)
			s = pg
		default:
			log.Printf("sink: unknown output %q, skipping", out)
			continue
		}

		if err := s.Start(ctx); err != nil {
			log.Printf("sink: failed to start %s: %v", s.Name(), err)
			m.IncrementSinkErrors(s.Name(), "start")
			continue
		}
		log.Printf("sink: %s started", s.Name())
		sinks = append(sinks, s)
	}
	return sinks
}

// createEmitFunc fans a report out to every sink. A failing sink does not
// stop delivery to the others.
func createEmitFunc(sinks []sink.Sink, m *metrics.Metrics) func(report.Report) {
	return func(r report.Report) {
		for _, s := range sinks {
			if err := s.Enqueue(r); err != nil {
				log.Printf("sink: %s enqueue failed for %s: %v", s.Name(), r.ID, err)
				m.IncrementSinkErrors(s.Name(), "enqueue")
				continue
			}
			m.IncrementReportsEmitted(s.Name())
		}
	}
}

func initializeHMACAuth(cfg config.Config) *httpx.HMACAuth {
	if cfg.HMACSecret == "" && !cfg.RequireHMAC {
		return nil
	}
	if cfg.HMACSecret == "" {
		log.Printf("hmac: REQUIRE_HMAC is set without HMAC_SECRET, /classify will reject every request")
	}
	return httpx.NewHMACAuth(cfg.HMACSecret, cfg.RequireHMAC)
}

// runOneShot probes targets as successive navigations of one session and
// prints a panel per target. It returns the number of failed probes.
func runOneShot(ctx context.Context, p *probe.Prober, targets []string, out io.Writer) int {
	session := probe.NewSession(p)
	defer session.Close()

	failed := 0
	for _, target := range targets {
		rep, err := session.Navigate(ctx, target)
		if err != nil {
			fmt.Fprintf(out, "%s\n  error: %v\n", target, err)
			failed++
			continue
		}
		fmt.Fprint(out, report.FormatPanel(rep))
	}
	return failed
}

func startHTTPServer(cfg config.Config, env httpx.Env) *http.Server {
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           httpx.NewMux(env),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("edgeprobe listening on %s", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()
	return srv
}

// healthcheckTarget maps SERVER_ADDR to something dialable from the same host
func healthcheckTarget(addr string) (string, string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "127.0.0.1", "19891"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return host, port
}

func performHealthCheck(host, port string) error {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://" + net.JoinHostPort(host, port) + "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if strings.TrimSpace(string(body)) != "ok" {
		return fmt.Errorf("unexpected response %q", body)
	}
	return nil
}

func closeSinks(sinks []sink.Sink) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			log.Printf("sink: failed to close %s: %v", s.Name(), err)
		}
	}
}

func waitForShutdown(srv *http.Server, metricsServer *metrics.Server, sinks []sink.Sink) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		log.Printf("metrics shutdown: %v", err)
	}
	closeSinks(sinks)
}
