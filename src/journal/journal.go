// Package journal persists batch outcomes in SQLite.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"kakao-autopilot/src/workflow"
)

const (
	KindFriendAdd   = "friend_add"
	KindMessageSend = "message_send"
)

type Batch struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
}

type Journal struct {
	db *sql.DB
}

func Open(dbPath string) (*Journal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create journal directory %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		started_at  DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		total       INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id    TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		subject     TEXT NOT NULL,
		username    TEXT,
		phone       TEXT,
		status      TEXT NOT NULL,
		reason      TEXT,
		items       TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_results_batch ON results(batch_id, position);
	CREATE INDEX IF NOT EXISTS idx_results_phone ON results(phone, created_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores a batch and its results in one transaction.
func (j *Journal) Record(ctx context.Context, b Batch, results []workflow.Result) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, kind, started_at, finished_at, total) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Kind, b.StartedAt.UTC(), b.FinishedAt.UTC(), len(results),
	); err != nil {
		return fmt.Errorf("insert batch %s: %w", b.ID, err)
	}
	for i, r := range results {
		var items []byte
		if len(r.Items) > 0 {
			if items, err = json.Marshal(r.Items); err != nil {
				return fmt.Errorf("encode items: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (batch_id, position, subject, username, phone, status, reason, items)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, i, r.Key, r.Username, r.Phone, string(r.Status), r.Reason, string(items),
		); err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Results returns a batch's results in input order.
func (j *Journal) Results(ctx context.Context, batchID string) ([]workflow.Result, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT subject, username, phone, status, reason, items FROM results WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workflow.Result
	for rows.Next() {
		var r workflow.Result
		var username, phone, reason, items sql.NullString
		var status string
		if err := rows.Scan(&r.Key, &username, &phone, &status, &reason, &items); err != nil {
			return nil, err
		}
		r.Username, r.Phone, r.Reason = username.String, phone.String, reason.String
		r.Status = workflow.Status(status)
		if items.String != "" {
			if err := json.Unmarshal([]byte(items.String), &r.Items); err != nil {
				return nil, fmt.Errorf("decode items: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *Journal) Batch(ctx context.Context, id string) (*Batch, error) {
	var b Batch
	err := j.db.QueryRowContext(ctx,
		`SELECT id, kind, started_at, finished_at, total FROM batches WHERE id = ?`, id,
	).Scan(&b.ID, &b.Kind, &b.StartedAt, &b.FinishedAt, &b.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FriendStatus returns the latest friend-add status recorded for phone.
func (j *Journal) FriendStatus(ctx context.Context, phone string) (workflow.Status, bool, error) {
	var status string
	err := j.db.QueryRowContext(ctx,
		`SELECT r.status FROM results r JOIN batches b ON b.id = r.batch_id
		 WHERE b.kind = ? AND r.phone = ? ORDER BY r.id DESC LIMIT 1`, KindFriendAdd, phone,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return workflow.Status(status), true, nil
}
