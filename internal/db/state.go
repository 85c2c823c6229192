// Package db keeps the preparation event history in a DuckDB database. The
// log is best-effort observability: callers record events as they go and the
// `state` command renders the history.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // driver
)

// Event types recorded by the pipeline.
const (
	EventPrepareStart  = "prepare_start"
	EventPrepareEnd    = "prepare_end"
	EventTaskEnd       = "task_end"
	EventMergeMonth    = "merge_month"
	EventPurge         = "purge"
	EventError         = "error"
	EventDiscovered    = "discovered"
	EventDownloadStart = "download_start"
	EventDownloadEnd   = "download_end"
	EventSkipDownload  = "skip_download"
)

const schemaSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS cutout_event_log_id_seq;`

const schemaTableSQL = `
CREATE TABLE IF NOT EXISTS cutout_event_log (
    log_id          BIGINT PRIMARY KEY DEFAULT nextval('cutout_event_log_id_seq'),
    cutout          VARCHAR NOT NULL,      -- cutout name or source URL
    series          VARCHAR,               -- series name, when applicable
    event           VARCHAR NOT NULL,
    event_timestamp TIMESTAMP NOT NULL,
    path            VARCHAR,               -- file the event refers to
    message         VARCHAR,
    duration_ms     BIGINT
);
CREATE INDEX IF NOT EXISTS idx_cutout_event_log_cutout ON cutout_event_log (cutout, event);
CREATE INDEX IF NOT EXISTS idx_cutout_event_log_time ON cutout_event_log (event, event_timestamp);
`

// InitializeSchema creates the sequence and event table.
func InitializeSchema(conn *sql.DB) error {
	if _, err := conn.Exec(schemaSequenceSQL); err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("create event log sequence: %w", err)
	}
	if _, err := conn.Exec(schemaTableSQL); err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("create event log table: %w", err)
	}
	return nil
}

// LogEvent inserts one event record. A nil connection makes it a no-op so
// library callers can run without a state database.
func LogEvent(ctx context.Context, conn *sql.DB, cutout, series, event, path, message string, duration *time.Duration) error {
	if conn == nil {
		return nil
	}
	var durationMs sql.NullInt64
	if duration != nil {
		durationMs = sql.NullInt64{Int64: duration.Milliseconds(), Valid: true}
	}
	_, err := conn.ExecContext(ctx, `
        INSERT INTO cutout_event_log (cutout, series, event, event_timestamp, path, message, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?);
    `,
		cutout,
		sql.NullString{String: series, Valid: series != ""},
		event,
		time.Now().UTC(),
		sql.NullString{String: path, Valid: path != ""},
		sql.NullString{String: message, Valid: message != ""},
		durationMs,
	)
	if err != nil {
		return fmt.Errorf("log event %q for %q: %w", event, cutout, err)
	}
	return nil
}

// HasEventOccurred checks whether an event was ever recorded for a cutout.
func HasEventOccurred(ctx context.Context, conn *sql.DB, cutout, event string) (bool, error) {
	row := conn.QueryRowContext(ctx,
		`SELECT 1 FROM cutout_event_log WHERE cutout = ? AND event = ? LIMIT 1;`, cutout, event)
	var exists int
	if err := row.Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check event %q for %q: %w", event, cutout, err)
	}
	return true, nil
}

// DisplayHistory prints the most recent event records, optionally filtered
// by cutout name and event type.
func DisplayHistory(ctx context.Context, conn *sql.DB, cutoutFilter, eventFilter string, limit int) error {
	query := `
        SELECT cutout, series, event, event_timestamp, path, message, duration_ms
        FROM cutout_event_log
    `
	conditions := []string{}
	args := []any{}
	argCounter := 1
	if cutoutFilter != "" {
		conditions = append(conditions, fmt.Sprintf("cutout = $%d", argCounter))
		args = append(args, cutoutFilter)
		argCounter++
	}
	if eventFilter != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", argCounter))
		args = append(args, eventFilter)
		argCounter++
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY event_timestamp DESC, log_id DESC LIMIT $%d", argCounter)
	args = append(args, limit)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query event log: %w", err)
	}
	defer rows.Close()

	fmt.Printf("--- Preparation Event Log (limit %d) ---\n", limit)
	fmt.Printf("%-30s | %-15s | %-15s | %-25s | %-10s | %s\n", "Cutout", "Series", "Event", "Timestamp (UTC)", "DurationMS", "Details")
	fmt.Println(strings.Repeat("-", 130))

	count := 0
	for rows.Next() {
		var cutoutName, event string
		var series, path, message sql.NullString
		var timestamp time.Time
		var durationMs sql.NullInt64
		if err := rows.Scan(&cutoutName, &series, &event, &timestamp, &path, &message, &durationMs); err != nil {
			return fmt.Errorf("scan event log row: %w", err)
		}
		durationStr := ""
		if durationMs.Valid {
			durationStr = fmt.Sprintf("%d", durationMs.Int64)
		}
		details := message.String
		if path.Valid && path.String != "" {
			details += fmt.Sprintf(" (%s)", filepath.Base(path.String))
		}
		fmt.Printf("%-30s | %-15s | %-15s | %-25s | %-10s | %s\n",
			cutoutName, series.String, event, timestamp.Format(time.RFC3339), durationStr, details)
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate event log rows: %w", err)
	}
	fmt.Printf("Displayed %d records.\n", count)
	return nil
}
