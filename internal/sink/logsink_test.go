package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shortontech/edgeprobe/internal/report"
)

func TestNewLogSink(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		unsetEnv(t, "LOG_PATH")
		if s := NewLogSink(); s.dst != "ndjson.log" {
			t.Errorf("dst = %q, want ndjson.log", s.dst)
		}
	})

	t.Run("LOG_PATH override", func(t *testing.T) {
		t.Setenv("LOG_PATH", "/tmp/reports.log")
		if s := NewLogSink(); s.dst != "/tmp/reports.log" {
			t.Errorf("dst = %q, want /tmp/reports.log", s.dst)
		}
	})
}

func TestLogSinkStart(t *testing.T) {
	t.Run("creates file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports.log")
		t.Setenv("LOG_PATH", path)

		s := NewLogSink()
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() failed: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("log file not created: %v", err)
		}
	})

	t.Run("stdout mode", func(t *testing.T) {
		t.Setenv("LOG_PATH", "stdout")

		s := NewLogSink()
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() failed: %v", err)
		}
		if s.f != nil {
			t.Error("stdout mode should not open a file")
		}
		if err := s.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Setenv("LOG_PATH", filepath.Join(t.TempDir(), "missing", "reports.log"))

		s := NewLogSink()
		if err := s.Start(context.Background()); err == nil {
			s.Close()
			t.Error("Start() should fail when the directory does not exist")
		}
	})
}

func TestLogSinkEnqueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.log")
	t.Setenv("LOG_PATH", path)

	s := NewLogSink()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	for _, id := range []string{"r-1", "r-2"} {
		if err := s.Enqueue(testReport(id)); err != nil {
			t.Fatalf("Enqueue(%s) failed: %v", id, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var got []report.Report
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r report.Report
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %q is not JSON: %v", sc.Text(), err)
		}
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	if got[0].ID != "r-1" || got[1].ID != "r-2" {
		t.Errorf("ids = %s,%s, want r-1,r-2", got[0].ID, got[1].ID)
	}
	if got[0].Result.POP != "SJC" {
		t.Errorf("POP = %q, want SJC", got[0].Result.POP)
	}
}

func TestLogSinkClose(t *testing.T) {
	t.Run("enqueue after close errors", func(t *testing.T) {
		t.Setenv("LOG_PATH", filepath.Join(t.TempDir(), "reports.log"))

		s := NewLogSink()
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() failed: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() failed: %v", err)
		}
		if err := s.Enqueue(testReport("late")); err == nil {
			t.Error("Enqueue() after Close() should fail")
		}
	})

	t.Run("close without start", func(t *testing.T) {
		if err := NewLogSink().Close(); err != nil {
			t.Errorf("Close() on unstarted sink: %v", err)
		}
	})
}

func TestLogSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.log")
	t.Setenv("LOG_PATH", path)

	for _, id := range []string{"first", "second"} {
		s := NewLogSink()
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() failed: %v", err)
		}
		if err := s.Enqueue(testReport(id)); err != nil {
			t.Fatalf("Enqueue() failed: %v", err)
		}
		s.Close()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := 0
	for _, b := range content {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("got %d lines after two runs, want 2", lines)
	}
}
