package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// maxStatusErrors bounds the error list kept on the singleton status row.
const maxStatusErrors = 20

// UpsertRunStatus writes the singleton parser status row, creating it on
// first run. The error list is truncated to the most recent entries.
func (s *Store) UpsertRunStatus(rs *RunStatus) error {
	if len(rs.Errors) > maxStatusErrors {
		rs.Errors = rs.Errors[len(rs.Errors)-maxStatusErrors:]
	}
	errsJSON, err := json.Marshal(rs.Errors)
	if err != nil {
		return fmt.Errorf("marshal status errors: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO parser_status (id, status, last_run, processed_items, errors)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			last_run = excluded.last_run,
			processed_items = excluded.processed_items,
			errors = excluded.errors`,
		rs.Status, rs.LastRun, rs.ProcessedItems, string(errsJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert run status: %w", mapSQLiteError(err))
	}
	return nil
}

// GetRunStatus reads the singleton parser status row.
// Returns an inactive zero status if no run has happened yet.
func (s *Store) GetRunStatus() (*RunStatus, error) {
	rs := &RunStatus{}
	var lastRun sql.NullTime
	var errsJSON string
	err := s.db.QueryRow(
		"SELECT status, last_run, processed_items, errors FROM parser_status WHERE id = 1",
	).Scan(&rs.Status, &lastRun, &rs.ProcessedItems, &errsJSON)
	if err == sql.ErrNoRows {
		return &RunStatus{Status: RunInactive}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run status: %w", err)
	}
	if lastRun.Valid {
		rs.LastRun = &lastRun.Time
	}
	if err := json.Unmarshal([]byte(errsJSON), &rs.Errors); err != nil {
		return nil, fmt.Errorf("unmarshal status errors: %w", err)
	}
	return rs, nil
}

// AppendLog writes one append-only parser log entry.
func (s *Store) AppendLog(message, detail string) error {
	_, err := s.db.Exec(
		"INSERT INTO parser_log (message, detail, created_at) VALUES (?, ?, ?)",
		message, nullable(detail), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("append parser log: %w", err)
	}
	return nil
}

// RecentLogs returns the most recent log entries, newest first.
func (s *Store) RecentLogs(limit int) ([]*LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		"SELECT id, message, detail, created_at FROM parser_log ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list parser log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*LogEntry
	for rows.Next() {
		e := &LogEntry{}
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Message, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan parser log: %w", err)
		}
		e.Detail = detail.String
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parser log: %w", err)
	}
	return results, nil
}
