package probe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shortontech/edgeprobe/internal/detection"
	"github.com/shortontech/edgeprobe/internal/metrics"
	"github.com/shortontech/edgeprobe/internal/report"
)

// Config bounds the retry loop
type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

// Prober fetches headers for a target, classifies them and emits a report
type Prober struct {
	fetcher    Fetcher
	classifier *detection.Classifier
	tracker    *Tracker
	cfg        Config
	metrics    *metrics.Metrics
	emit       func(report.Report)
}

// Option customizes a Prober
type Option func(*Prober)

// WithMetrics records probe outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Prober) { p.metrics = m }
}

// WithEmit hands every successful report to fn
func WithEmit(fn func(report.Report)) Option {
	return func(p *Prober) { p.emit = fn }
}

// WithTracker shares a tracker between probers
func WithTracker(t *Tracker) Option {
	return func(p *Prober) { p.tracker = t }
}

// NewProber creates a prober. A nil classifier uses the built-in rules.
func NewProber(f Fetcher, c *detection.Classifier, cfg Config, opts ...Option) *Prober {
	if c == nil {
		c = detection.NewClassifier()
	}
	p := &Prober{
		fetcher:    f,
		classifier: c,
		tracker:    NewTracker(),
		cfg:        cfg.normalized(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tracker exposes the per-target state map
func (p *Prober) Tracker() *Tracker { return p.tracker }

// Classifier exposes the rule table used by the prober
func (p *Prober) Classifier() *detection.Classifier { return p.classifier }

// Probe classifies target. Attempts run one after another with a fixed delay
// and stop early when ctx is cancelled. A target that is already pending or
// done is rejected with ErrInFlight or ErrAlreadyDone.
func (p *Prober) Probe(ctx context.Context, target string) (report.Report, error) {
	key, err := NormalizeTarget(target)
	if err != nil {
		return report.Report{}, err
	}
	if err := p.tracker.Begin(key); err != nil {
		return report.Report{}, fmt.Errorf("%s: %w", key, err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		headers, err := p.fetcher.Head(ctx, key)
		if err == nil {
			res := p.classifier.Classify(headers)
			p.tracker.Succeed(key)
			p.metrics.ObserveProbe(res.Provider, string(res.Cache), time.Since(start))

			rep := report.New(key, res, attempt)
			if p.emit != nil {
				p.emit(rep)
			}
			return rep, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.Printf("probe: attempt %d/%d for %s failed: %v", attempt, p.cfg.MaxAttempts, key, err)
		if attempt == p.cfg.MaxAttempts {
			break
		}

		p.metrics.IncrementProbeRetries()
		if err := sleep(ctx, p.cfg.RetryDelay); err != nil {
			lastErr = err
			break
		}
	}

	if ctx.Err() != nil {
		// the navigation moved on; a later visit may probe again
		p.tracker.Forget(key)
		p.metrics.IncrementProbeFailures("canceled")
		return report.Report{}, fmt.Errorf("probe of %s canceled: %w", key, ctx.Err())
	}

	p.tracker.Fail(key)
	p.metrics.IncrementProbeFailures(failureReason(lastErr))
	log.Printf("probe: giving up on %s after %d attempts", key, p.cfg.MaxAttempts)
	return report.Report{}, fmt.Errorf("probe of %s failed after %d attempts: %w", key, p.cfg.MaxAttempts, lastErr)
}

// Release ends the navigation of target so a later navigation probes it
// again. Invalid targets are ignored.
func (p *Prober) Release(target string) {
	key, err := NormalizeTarget(target)
	if err != nil {
		return
	}
	p.tracker.Release(key)
}

// Classify runs the classifier on headers collected elsewhere and builds a
// report without touching the tracker.
func (p *Prober) Classify(target string, headers detection.HeaderSet) report.Report {
	res := p.classifier.Classify(headers)
	p.metrics.ObserveProbe(res.Provider, string(res.Cache), 0)
	rep := report.New(target, res, 0)
	if p.emit != nil {
		p.emit(rep)
	}
	return rep
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrChallenge):
		return "challenge"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "network"
	}
}
