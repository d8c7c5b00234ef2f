package probe

import (
	"context"
	"sync"

	"github.com/shortontech/edgeprobe/internal/report"
)

// Session follows a sequence of navigations. Starting a new navigation
// cancels the probe of the previous one.
type Session struct {
	prober *Prober

	mu      sync.Mutex
	cancel  context.CancelFunc
	current string
}

// NewSession creates a session backed by p
func NewSession(p *Prober) *Session {
	return &Session{prober: p}
}

// Navigate probes target, cancelling any probe still running for an earlier
// navigation and releasing that navigation's target.
func (s *Session) Navigate(ctx context.Context, target string) (report.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.current != "" {
		s.prober.Release(s.current)
	}
	s.cancel = cancel
	s.current = target
	s.mu.Unlock()

	return s.prober.Probe(ctx, target)
}

// Close cancels the running navigation, if any
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
