package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/shortontech/edgeprobe/internal/report"
)

// LogSink appends one JSON report per line to LOG_PATH. The special
// destination "stdout" writes to standard output instead of a file.
type LogSink struct {
	dst string

	mu sync.Mutex
	f  *os.File
}

func NewLogSink() *LogSink {
	return &LogSink{dst: getEnvOr("LOG_PATH", "ndjson.log")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Start(ctx context.Context) error {
	if s.dst == "stdout" {
		return nil
	}
	f, err := os.OpenFile(s.dst, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.dst, err)
	}
	s.mu.Lock()
	s.f = f
	s.mu.Unlock()
	return nil
}

func (s *LogSink) Enqueue(r report.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dst == "stdout" {
		_, err = os.Stdout.Write(b)
		return err
	}
	if s.f == nil {
		return fmt.Errorf("log sink not started")
	}
	_, err = s.f.Write(b)
	return err
}

func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
