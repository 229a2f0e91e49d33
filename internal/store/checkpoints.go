package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/scribe/internal/checkpoint"
)

var _ checkpoint.Store = (*Store)(nil)

// Load fetches the checkpoint for path. It returns nil, nil when none exists.
func (s *Store) Load(ctx context.Context, path string) (*checkpoint.Checkpoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT path, watch_id, session_id, byte_offset, updated_at
		FROM transcript_checkpoints
		WHERE path = $1`,
		path,
	)

	cp, err := scanCheckpoint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return &cp, nil
}

// Save upserts cp. The offset never moves backwards for a path.
func (s *Store) Save(ctx context.Context, cp checkpoint.Checkpoint) error {
	if cp.Path == "" {
		return fmt.Errorf("save checkpoint: empty path")
	}

	var watchID *uuid.UUID
	if cp.WatchID != "" {
		id, err := uuid.Parse(cp.WatchID)
		if err != nil {
			return fmt.Errorf("save checkpoint: invalid watch id %q: %w", cp.WatchID, err)
		}
		watchID = &id
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO transcript_checkpoints (path, watch_id, session_id, byte_offset, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (path)
		DO UPDATE SET
			watch_id = $2,
			session_id = CASE WHEN $3 = '' THEN transcript_checkpoints.session_id ELSE $3 END,
			byte_offset = GREATEST(transcript_checkpoints.byte_offset, $4),
			updated_at = now()`,
		cp.Path, watchID, cp.SessionID, cp.Offset,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// List returns all checkpoints ordered by path.
func (s *Store) List(ctx context.Context) ([]checkpoint.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT path, watch_id, session_id, byte_offset, updated_at
		FROM transcript_checkpoints
		ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// Delete removes the checkpoint for path, if any.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM transcript_checkpoints WHERE path = $1`, path); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

func scanCheckpoint(row pgx.Row) (checkpoint.Checkpoint, error) {
	var (
		cp      checkpoint.Checkpoint
		watchID *uuid.UUID
	)
	if err := row.Scan(&cp.Path, &watchID, &cp.SessionID, &cp.Offset, &cp.UpdatedAt); err != nil {
		return checkpoint.Checkpoint{}, err
	}
	if watchID != nil {
		cp.WatchID = watchID.String()
	}
	return cp, nil
}
