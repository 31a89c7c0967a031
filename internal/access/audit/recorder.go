// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/xdg"
	"github.com/shopfront/shopfront/pkg/errutil"
)

// CodeWriteFailed is returned when an entry reached neither the database nor the WAL.
const CodeWriteFailed = "AUDIT_WRITE_FAILED"

// Writer persists audit entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

var (
	entriesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shopfront_audit_entries_total",
		Help: "Total number of audit entries accepted",
	})

	failuresCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopfront_audit_failures_total",
		Help: "Total number of audit logging failures",
	}, []string{"reason"})

	walEntriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shopfront_audit_wal_entries",
		Help: "Current number of entries in the WAL",
	})
)

// Collectors returns the package's Prometheus collectors for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{entriesCounter, failuresCounter, walEntriesGauge}
}

// Recorder writes audit entries, falling back to a local WAL.
type Recorder struct {
	writer  Writer
	walPath string
	walMu   sync.Mutex
	walFile *os.File
	logger  *slog.Logger
	now     func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithWALPath overrides the default WAL location.
func WithWALPath(path string) RecorderOption {
	return func(r *Recorder) { r.walPath = path }
}

// WithLogger sets the logger used for failures.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a Recorder. Without WithWALPath the WAL lives in the XDG
// state directory.
func NewRecorder(writer Writer, opts ...RecorderOption) (*Recorder, error) {
	if writer == nil {
		return nil, oops.Code("AUDIT_INVALID_CONFIG").Errorf("audit writer is required")
	}
	r := &Recorder{
		writer: writer,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.walPath == "" {
		stateDir, err := xdg.StateDir()
		if err != nil {
			r.logger.Error("failed to get state directory for WAL", "error", err)
			stateDir = os.TempDir()
		}
		r.walPath = filepath.Join(stateDir, "audit-wal.jsonl")
	}
	return r, nil
}

// WALPath returns the write-ahead log location.
func (r *Recorder) WALPath() string {
	return r.walPath
}

// Record writes entry, assigning an ID and timestamp when unset. When the
// writer fails the entry goes to the WAL; an error is returned only if both fail.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}
	if entry.ID == (ulid.ULID{}) {
		entry.ID = ulid.MustNew(ulid.Timestamp(entry.Timestamp), ulid.DefaultEntropy())
	}

	dbErr := r.writer.Write(ctx, entry)
	if dbErr == nil {
		entriesCounter.Inc()
		return nil
	}
	failuresCounter.WithLabelValues("db_write_failed").Inc()
	r.logger.WarnContext(ctx, "audit write failed, falling back to WAL",
		"error", dbErr,
		"actor_id", entry.ActorID,
		"target_table", entry.TargetTable,
		"target_id", entry.TargetID)

	if walErr := r.writeToWAL(entry); walErr != nil {
		failuresCounter.WithLabelValues("wal_failed").Inc()
		err := oops.Code(CodeWriteFailed).
			With("actor_id", entry.ActorID).
			With("action", entry.Action).
			With("target_table", entry.TargetTable).
			With("target_id", entry.TargetID).
			With("db_error", dbErr.Error()).
			Wrap(walErr)
		errutil.LogErrorContext(ctx, r.logger, "audit write failed: both DB and WAL failed", err)
		return err
	}
	entriesCounter.Inc()
	return nil
}

func (r *Recorder) writeToWAL(entry Entry) error {
	r.walMu.Lock()
	defer r.walMu.Unlock()

	if r.walFile == nil {
		if err := xdg.EnsureDir(filepath.Dir(r.walPath)); err != nil {
			return err
		}
		file, err := os.OpenFile(r.walPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY|os.O_SYNC, 0o600)
		if err != nil {
			return oops.With("path", r.walPath).Wrap(err)
		}
		r.walFile = file
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return oops.Wrap(err)
	}
	if _, err := fmt.Fprintf(r.walFile, "%s\n", data); err != nil {
		return oops.With("path", r.walPath).Wrap(err)
	}

	walEntriesGauge.Inc()
	return nil
}

// ReplayWAL writes every WAL entry to the writer and truncates the WAL.
// Entries that fail to replay are kept for the next attempt. Returns the
// number of entries replayed.
func (r *Recorder) ReplayWAL(ctx context.Context) (int, error) {
	r.walMu.Lock()
	defer r.walMu.Unlock()

	data, err := os.ReadFile(r.walPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, oops.With("path", r.walPath).Wrap(err)
	}
	if len(data) == 0 {
		return 0, nil
	}

	var (
		replayed int
		kept     bytes.Buffer
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			r.logger.ErrorContext(ctx, "failed to unmarshal WAL entry", "error", err)
			failuresCounter.WithLabelValues("wal_unmarshal_failed").Inc()
			continue
		}
		if err := r.writer.Write(ctx, entry); err != nil {
			r.logger.ErrorContext(ctx, "failed to replay WAL entry", "error", err, "id", entry.ID.String())
			failuresCounter.WithLabelValues("wal_replay_failed").Inc()
			kept.Write(line)
			kept.WriteByte('\n')
			continue
		}
		replayed++
	}
	if err := scanner.Err(); err != nil {
		return replayed, oops.With("path", r.walPath).Wrap(err)
	}

	if r.walFile != nil {
		if err := r.walFile.Close(); err != nil {
			return replayed, oops.Wrap(err)
		}
		r.walFile = nil
	}
	if err := os.WriteFile(r.walPath, kept.Bytes(), 0o600); err != nil {
		return replayed, oops.With("path", r.walPath).Wrap(err)
	}

	walEntriesGauge.Set(float64(bytes.Count(kept.Bytes(), []byte{'\n'})))
	if replayed > 0 {
		r.logger.InfoContext(ctx, "replayed WAL entries", "count", replayed)
	}
	return replayed, nil
}

// Close releases the WAL file handle.
func (r *Recorder) Close() error {
	r.walMu.Lock()
	defer r.walMu.Unlock()
	if r.walFile == nil {
		return nil
	}
	err := r.walFile.Close()
	r.walFile = nil
	if err != nil {
		return oops.Wrap(err)
	}
	return nil
}
