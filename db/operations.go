package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation is one audit row for a channel lifecycle operation.
type Operation struct {
	ID         string     `json:"id"`
	ChannelID  string     `json:"channel_id"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	Detail     string     `json:"detail,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// BeginOperation inserts a running audit row and returns its id.
func BeginOperation(ctx context.Context, dbx *sql.DB, channelID, kind string) (string, error) {
	id := uuid.NewString()
	_, err := dbx.ExecContext(ctx,
		`INSERT INTO operations (id, channel_id, kind, status, started_at) VALUES ($1,$2,$3,'running',NOW())`,
		id, channelID, kind)
	if err != nil {
		return "", fmt.Errorf("insert operation: %w", err)
	}
	return id, nil
}

// FinishOperation marks the audit row ok or failed and records detail / error text.
func FinishOperation(ctx context.Context, dbx *sql.DB, id string, opErr error, detail string) error {
	status := "ok"
	errText := ""
	if opErr != nil {
		status = "failed"
		errText = opErr.Error()
	}
	_, err := dbx.ExecContext(ctx,
		`UPDATE operations SET status=$1, detail=$2, error=NULLIF($3,''), finished_at=NOW() WHERE id=$4`,
		status, detail, errText, id)
	if err != nil {
		return fmt.Errorf("finish operation: %w", err)
	}
	return nil
}

// GetOperation fetches a single audit row by id.
func GetOperation(ctx context.Context, dbx *sql.DB, id string) (*Operation, error) {
	row := dbx.QueryRowContext(ctx,
		`SELECT id, channel_id, kind, status, COALESCE(detail,''), COALESCE(error,''), started_at, finished_at
		 FROM operations WHERE id=$1`, id)
	var op Operation
	var finished sql.NullTime
	if err := row.Scan(&op.ID, &op.ChannelID, &op.Kind, &op.Status, &op.Detail, &op.Error, &op.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		op.FinishedAt = &t
	}
	return &op, nil
}

// ListOperations returns recent audit rows, newest first, optionally filtered by channel.
func ListOperations(ctx context.Context, dbx *sql.DB, channelID string, limit int) ([]Operation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if channelID != "" {
		rows, err = dbx.QueryContext(ctx,
			`SELECT id, channel_id, kind, status, COALESCE(detail,''), COALESCE(error,''), started_at, finished_at
			 FROM operations WHERE channel_id=$1 ORDER BY started_at DESC LIMIT $2`, channelID, limit)
	} else {
		rows, err = dbx.QueryContext(ctx,
			`SELECT id, channel_id, kind, status, COALESCE(detail,''), COALESCE(error,''), started_at, finished_at
			 FROM operations ORDER BY started_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		var op Operation
		var finished sql.NullTime
		if err := rows.Scan(&op.ID, &op.ChannelID, &op.Kind, &op.Status, &op.Detail, &op.Error, &op.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		out = append(out, op)
	}
	return out, rows.Err()
}
