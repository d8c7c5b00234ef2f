package probe

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/idna"
)

var (
	// ErrInFlight is returned when a probe for the same target is running
	ErrInFlight = errors.New("probe already in flight for target")
	// ErrAlreadyDone is returned when the target was already classified
	ErrAlreadyDone = errors.New("target already probed")
)

// State is the lifecycle of a target in the Tracker
type State int

const (
	StatePending State = iota + 1
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Tracker records per-target probe state so one navigation target is never
// probed twice concurrently.
type Tracker struct {
	mu     sync.Mutex
	states map[string]State
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]State)}
}

// Begin marks key pending. It fails when key is already pending or done;
// failed keys may start again.
func (t *Tracker) Begin(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.states[key] {
	case StatePending:
		return ErrInFlight
	case StateDone:
		return ErrAlreadyDone
	}
	t.states[key] = StatePending
	return nil
}

func (t *Tracker) Succeed(key string) { t.set(key, StateDone) }

func (t *Tracker) Fail(key string) { t.set(key, StateFailed) }

// Forget drops key so the next Begin starts fresh
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, key)
}

// Release ends the navigation that owned key. Done and failed markers are
// dropped; a pending probe keeps its marker until it finishes.
func (t *Tracker) Release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[key] != StatePending {
		delete(t.states, key)
	}
}

// Len returns the number of tracked targets
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

// State returns the recorded state of key
func (t *Tracker) State(key string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[key]
	return s, ok
}

func (t *Tracker) set(key string, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[key] = s
}

// NormalizeTarget canonicalizes a navigation target: https is assumed when no
// scheme is given, the host is lowercased and converted to its ASCII form, and
// the fragment is dropped.
func NormalizeTarget(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("empty target")
	}
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", target, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("target %q has no host", target)
	}

	host := strings.ToLower(u.Hostname())
	if net.ParseIP(host) == nil {
		host, err = idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("invalid host %q: %w", u.Hostname(), err)
		}
	}
	switch {
	case u.Port() != "":
		u.Host = net.JoinHostPort(host, u.Port())
	case strings.Contains(host, ":"):
		u.Host = "[" + host + "]"
	default:
		u.Host = host
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
