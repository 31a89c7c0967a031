// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package audit records administrative mutations in an append-only log.
//
// Each successful change made through the admin API produces one Entry with
// the acting subject, the target row, and JSON snapshots of the row before and
// after the change. Entries are only ever inserted; nothing in this module
// updates or deletes them.
//
// # Resilience
//
// The Recorder writes synchronously. When the database write fails, the entry
// is appended to a JSON-lines write-ahead log at
// $XDG_STATE_HOME/shopfront/audit-wal.jsonl. ReplayWAL pushes those entries
// back to the writer on the next start and truncates the file.
//
// # Metrics
//
//   - shopfront_audit_entries_total: entries accepted (database or WAL)
//   - shopfront_audit_failures_total{reason}: write failures by stage
package audit
