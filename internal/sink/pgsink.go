package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/shortontech/edgeprobe/internal/metrics"
	"github.com/shortontech/edgeprobe/internal/report"
)

// PGConfig holds configuration for the Postgres sink
type PGConfig struct {
	DSN       string
	Table     string
	BatchSize int
	FlushMS   int
	UseCopy   bool // COPY FROM STDIN instead of a multi-row INSERT
}

// PGSink batches reports into a JSONB table, flushing on size or interval
type PGSink struct {
	config  PGConfig
	db      *sql.DB
	metrics *metrics.Metrics

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	flushCh chan struct{}

	flushMu sync.Mutex // serializes writes to the database
	mu      sync.Mutex
	batch   []report.Report
}

const (
	defaultPGTable = "probe_reports"
	flushTimeout   = 10 * time.Second
	// batches are kept across failed flushes up to this many multiples of BatchSize
	maxPendingBatches = 10
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateTableName(name string) error {
	if name == "" || len(name) > 63 || !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

func NewPGSinkFromEnv() *PGSink {
	return &PGSink{config: PGConfig{
		DSN:       getEnvOr("PG_DSN", "postgres://localhost:5432/edgeprobe?sslmode=disable"),
		Table:     getEnvOr("PG_TABLE", defaultPGTable),
		BatchSize: getIntEnv("PG_BATCH_SIZE", 500),
		FlushMS:   getIntEnv("PG_FLUSH_MS", 500),
		UseCopy:   getBoolEnv("PG_COPY", true),
	}}
}

func NewPGSink(dsn string) *PGSink {
	return &PGSink{config: PGConfig{
		DSN:       dsn,
		Table:     defaultPGTable,
		BatchSize: 500,
		FlushMS:   500,
		UseCopy:   true,
	}}
}

func (s *PGSink) Name() string { return "postgres" }

// SetMetrics attaches queue depth and flush latency reporting
func (s *PGSink) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *PGSink) Start(ctx context.Context) error {
	if err := validateTableName(s.config.Table); err != nil {
		return err
	}
	if s.config.BatchSize <= 0 {
		s.config.BatchSize = 500
	}
	if s.config.FlushMS <= 0 {
		s.config.FlushMS = 500
	}

	db, err := sql.Open("postgres", s.config.DSN)
	if err != nil {
		return fmt.Errorf("failed to open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s.db = db

	if err := s.ensureSchema(); err != nil {
		db.Close()
		s.db = nil
		return err
	}

	s.batch = make([]report.Report, 0, s.config.BatchSize)
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.flushCh = make(chan struct{}, 1)
	go s.flushRoutine()

	log.Printf("postgres: writing reports to %s (copy=%v, batch=%d)", s.config.Table, s.config.UseCopy, s.config.BatchSize)
	return nil
}

func (s *PGSink) ensureSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	t := s.config.Table
	table := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id uuid PRIMARY KEY,
		ts timestamptz NOT NULL,
		payload jsonb NOT NULL
	)`, t)
	if _, err := s.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t, err)
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_ts ON %s (ts)", t, t),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_gin ON %s USING GIN (payload)", t, t),
	}
	for _, stmt := range indexes {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", t, err)
		}
	}
	return nil
}

// Enqueue adds r to the pending batch. A full batch wakes the flush routine;
// the write itself never runs on the caller's goroutine.
func (s *PGSink) Enqueue(r report.Report) error {
	s.mu.Lock()
	s.batch = append(s.batch, r)
	s.trimBacklog()
	full := len(s.batch) >= s.config.BatchSize
	s.metrics.SetQueueDepth(s.Name(), float64(len(s.batch)))
	s.mu.Unlock()

	if full && s.flushCh != nil {
		select {
		case s.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// trimBacklog drops the oldest reports beyond the backlog limit. Caller holds s.mu.
func (s *PGSink) trimBacklog() {
	limit := s.config.BatchSize * maxPendingBatches
	if limit <= 0 || len(s.batch) <= limit {
		return
	}
	dropped := len(s.batch) - limit
	s.batch = append(s.batch[:0], s.batch[dropped:]...)
	log.Printf("postgres: dropped %d oldest reports, backlog full", dropped)
	s.metrics.IncrementSinkErrors(s.Name(), "dropped")
}

// flushBatch writes the pending batch. Enqueue keeps working while the write
// runs; on error the reports go back to the front of the batch so the next
// flush retries them.
func (s *PGSink) flushBatch() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	pending := s.batch
	s.batch = make([]report.Report, 0, s.config.BatchSize)
	s.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}
	start := time.Now()

	var err error
	if s.config.UseCopy {
		err = s.flushWithCopy(pending)
	} else {
		err = s.flushWithInsert(pending)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.batch = append(pending, s.batch...)
		s.trimBacklog()
		s.metrics.SetQueueDepth(s.Name(), float64(len(s.batch)))
		s.metrics.IncrementSinkErrors(s.Name(), "flush")
		return err
	}

	s.metrics.ObserveBatchFlushLatency(s.Name(), time.Since(start))
	s.metrics.SetQueueDepth(s.Name(), float64(len(s.batch)))
	return nil
}

// row returns the column values stored for r
func row(r report.Report) (string, time.Time, string, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("failed to serialize report %s: %w", r.ID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, r.TS)
	if err != nil {
		ts = time.Now().UTC()
	}
	return r.ID, ts, string(payload), nil
}

func (s *PGSink) flushWithInsert(reports []report.Report) error {
	if len(reports) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (id, ts, payload) VALUES ", s.config.Table)
	args := make([]any, 0, len(reports)*3)
	for i, r := range reports {
		id, ts, payload, err := row(r)
		if err != nil {
			return err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 3
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", n+1, n+2, n+3)
		args = append(args, id, ts, payload)
	}
	sb.WriteString(" ON CONFLICT (id) DO NOTHING")

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert %d reports: %w", len(reports), err)
	}
	return nil
}

func (s *PGSink) flushWithCopy(reports []report.Report) error {
	if len(reports) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.config.Table, "id", "ts", "payload"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	for _, r := range reports {
		id, ts, payload, err := row(r)
		if err != nil {
			stmt.Close()
			return err
		}
		if _, err := stmt.ExecContext(ctx, id, ts, payload); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy report %s: %w", id, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to finish copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit copy: %w", err)
	}
	return nil
}

func (s *PGSink) flushRoutine() {
	defer close(s.done)

	ticker := time.NewTicker(time.Duration(s.config.FlushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.flushBatch(); err != nil {
				log.Printf("postgres: periodic flush failed: %v", err)
			}
		case <-s.flushCh:
			if err := s.flushBatch(); err != nil {
				log.Printf("postgres: batch flush failed: %v", err)
			}
		}
	}
}

func (s *PGSink) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	if s.db == nil {
		return nil
	}

	flushErr := s.flushBatch()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close postgres: %w", err)
	}
	if flushErr != nil {
		return fmt.Errorf("failed to flush on close: %w", flushErr)
	}
	return nil
}
