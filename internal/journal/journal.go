// Package journal records every CRM write made while onboarding a supplier so
// partially committed submissions can be reconciled by an operator.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Status of a journaled write.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusFailed    Status = "failed"
)

// Entry is one CRM write attempt.
type Entry struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	Step         string    `json:"step"`
	Object       string    `json:"object"`
	RecordID     string    `json:"record_id,omitempty"`
	Status       Status    `json:"status"`
	ErrorCodes   []string  `json:"error_codes,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Recorder is the write side used by the submission orchestrator.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Store persists journal entries in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a new journal store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts a journal entry.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ErrorCodes == nil {
		entry.ErrorCodes = []string{}
	}

	query := `
		INSERT INTO crm_write_journal (
			id, submission_id, step, object, record_id,
			status, error_codes, detail, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.SubmissionID,
		entry.Step,
		entry.Object,
		nullString(entry.RecordID),
		string(entry.Status),
		pq.Array(entry.ErrorCodes),
		nullString(entry.Detail),
		nullString(entry.RequestID),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: failed to record %s write: %w", entry.Object, err)
	}
	return nil
}

// Filter narrows List results.
type Filter struct {
	SubmissionID string
	Status       Status
	Since        time.Time
	Limit        int
}

// List returns entries matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, submission_id, step, object, record_id,
		       status, error_codes, detail, request_id, created_at
		FROM crm_write_journal
		WHERE 1=1
	`
	var args []interface{}
	argIdx := 1

	if filter.SubmissionID != "" {
		query += fmt.Sprintf(" AND submission_id = $%d", argIdx)
		args = append(args, filter.SubmissionID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.Since)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status string
		var recordID, detail, requestID sql.NullString
		if err := rows.Scan(
			&e.ID, &e.SubmissionID, &e.Step, &e.Object, &recordID,
			&status, pq.Array(&e.ErrorCodes), &detail, &requestID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("journal: failed to scan entry: %w", err)
		}
		e.Status = Status(status)
		e.RecordID = recordID.String
		e.Detail = detail.String
		e.RequestID = requestID.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: failed to iterate entries: %w", err)
	}
	return entries, nil
}

// Nop discards entries. Used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
