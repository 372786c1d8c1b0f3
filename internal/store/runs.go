package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Output roles.
const (
	RoleSegment   = "segment"
	RoleAssembled = "assembled"
	RolePart      = "part"
	RoleCut       = "cut"
	RoleSubtitles = "subtitles"
	RoleBundle    = "bundle"
)

var ErrNotFound = errors.New("run not found")

// timeFormat is fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type Run struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Input      string     `json:"input"`
	OutDir     string     `json:"out_dir"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Outputs    []Output   `json:"outputs,omitempty"`
}

type Output struct {
	Ordinal  int     `json:"ordinal"`
	Path     string  `json:"path"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Role     string  `json:"role"`
}

// CreateRun inserts a running row with a time-ordered ID.
func (s *Store) CreateRun(ctx context.Context, kind, input, outDir string) (*Run, error) {
	r := &Run{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      kind,
		Input:     input,
		OutDir:    outDir,
		Status:    StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO runs (id, kind, input, out_dir, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Kind, r.Input, r.OutDir, r.Status, r.CreatedAt.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return r, nil
}

// FinishRun records the outcome and the files written. A nil runErr marks
// the run completed.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error, outputs []Output) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	status, msg := StatusCompleted, sql.NullString{}
	if runErr != nil {
		status, msg = StatusFailed, sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := tx.ExecContext(ctx, `UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, msg, now(), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	for _, o := range outputs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO outputs (run_id, ordinal, path, start_sec, end_sec, role)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, o.Ordinal, o.Path, o.StartSec, o.EndSec, o.Role); err != nil {
			return fmt.Errorf("record output %s: %w", o.Path, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, kind, input, out_dir, status, error, created_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT ordinal, path, start_sec, end_sec, role
		FROM outputs WHERE run_id = ? ORDER BY role, ordinal
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o Output
		if err := rows.Scan(&o.Ordinal, &o.Path, &o.StartSec, &o.EndSec, &o.Role); err != nil {
			return nil, err
		}
		r.Outputs = append(r.Outputs, o)
	}
	return r, rows.Err()
}

// ListRuns returns the newest runs first, without outputs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, kind, input, out_dir, status, error, created_at, finished_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var errMsg, finishedAt sql.NullString
	var createdAt string
	if err := sc.Scan(&r.ID, &r.Kind, &r.Input, &r.OutDir, &r.Status, &errMsg, &createdAt, &finishedAt); err != nil {
		return nil, err
	}
	r.Error = errMsg.String
	r.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	if finishedAt.Valid {
		if t, err := time.Parse(timeFormat, finishedAt.String); err == nil {
			r.FinishedAt = &t
		}
	}
	return &r, nil
}

func now() string { return time.Now().UTC().Format(timeFormat) }
