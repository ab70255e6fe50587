// Package records persists collected answers into the raw_data table.
package records

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Entry is one collected data point.
type Entry struct {
	Timestamp   int64  `db:"timestamp" json:"timestamp"`
	QuestionKey string `db:"key" json:"question_key"`
	Value       string `db:"value" json:"value"`
	Source      string `db:"source" json:"source"`
	UserID      int64  `db:"user_id" json:"user_id"`
}

// Sink accepts answers from the conversation engine. Callers treat failures
// as log-only; the engine never retries or surfaces them.
type Sink interface {
	RecordAnswer(ctx context.Context, userID int64, questionKey, value, source string) error
}

// SQLSink implements Sink plus the read API over raw_data.
type SQLSink struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLSink wraps a live database handle.
func NewSQLSink(db *sqlx.DB) *SQLSink {
	return &SQLSink{db: db, now: time.Now}
}

func (s *SQLSink) RecordAnswer(ctx context.Context, userID int64, questionKey, value, source string) error {
	return s.Insert(ctx, Entry{
		Timestamp:   s.now().Unix(),
		QuestionKey: questionKey,
		Value:       value,
		Source:      source,
		UserID:      userID,
	})
}

// Insert stores a fully specified entry.
func (s *SQLSink) Insert(ctx context.Context, e Entry) error {
	const query = `INSERT INTO raw_data (timestamp, key, value, source, user_id)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, query, e.Timestamp, e.QuestionKey, e.Value, e.Source, e.UserID); err != nil {
		return fmt.Errorf("records: insert %s: %w", e.QuestionKey, err)
	}
	return nil
}

// List returns all stored entries, newest first.
func (s *SQLSink) List(ctx context.Context) ([]Entry, error) {
	var list []Entry
	const query = `SELECT timestamp, key, value, source, user_id FROM raw_data ORDER BY timestamp DESC`
	if err := s.db.SelectContext(ctx, &list, query); err != nil {
		return nil, fmt.Errorf("records: list: %w", err)
	}
	return list, nil
}

// ByKey returns entries for one question key, newest first.
func (s *SQLSink) ByKey(ctx context.Context, key string) ([]Entry, error) {
	var list []Entry
	const query = `SELECT timestamp, key, value, source, user_id FROM raw_data WHERE key = $1 ORDER BY timestamp DESC`
	if err := s.db.SelectContext(ctx, &list, query, key); err != nil {
		return nil, fmt.Errorf("records: by key %s: %w", key, err)
	}
	return list, nil
}
