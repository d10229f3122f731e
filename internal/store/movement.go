package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rcliao/canvas-graph/internal/model"
)

// FlushMovementBatch appends a movement batch and applies its snapshots to the frame's
// placements in one transaction. Snapshots are applied in order so a later entry for an
// instance wins; instance ids not placed in the frame are ignored.
func (s *SQLiteStore) FlushMovementBatch(ctx context.Context, frameID string, batch []model.PlacementSnapshot) (string, error) {
	if len(batch) == 0 {
		return "", fmt.Errorf("empty movement batch: %w", ErrInvalidInput)
	}

	var id string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM frames WHERE id = ?`, frameID); err != nil {
			return fmt.Errorf("frame %s: %w", frameID, err)
		}

		var err error
		id, err = s.appendBatch(ctx, tx, frameID, batch)
		if err != nil {
			return err
		}

		ts := now().Format(timeFormat)
		for _, snap := range batch {
			_, err := tx.ExecContext(ctx,
				`UPDATE placements SET x = ?, y = ?,
				        width = COALESCE(?, width), height = COALESCE(?, height), updated_at = ?
				 WHERE frame_id = ? AND instance_id = ?`,
				snap.X, snap.Y, nullFloat(snap.Width), nullFloat(snap.Height), ts, frameID, snap.InstanceID)
			if err != nil {
				return fmt.Errorf("apply snapshot %s: %w", snap.InstanceID, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) appendBatch(ctx context.Context, tx *sql.Tx, frameID string, batch []model.PlacementSnapshot) (string, error) {
	b, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}
	id := s.newID()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO movement_batches (id, frame_id, snapshots, created_at) VALUES (?, ?, ?, ?)`,
		id, frameID, string(b), now().Format(timeFormat))
	if err != nil {
		return "", fmt.Errorf("insert movement batch: %w", err)
	}
	return id, nil
}

// ListMovements returns a frame's movement batches in append order.
// With limit > 0 only the most recent limit batches are returned, still oldest-first.
func (s *SQLiteStore) ListMovements(ctx context.Context, frameID string, limit int) ([]model.MovementBatch, error) {
	if err := requireRow(ctx, s.db, `SELECT 1 FROM frames WHERE id = ?`, frameID); err != nil {
		return nil, fmt.Errorf("frame %s: %w", frameID, err)
	}

	query := `SELECT id, frame_id, snapshots, created_at, seq FROM movement_batches WHERE frame_id = ? ORDER BY seq`
	args := []any{frameID}
	if limit > 0 {
		query = `SELECT * FROM (
			SELECT id, frame_id, snapshots, created_at, seq FROM movement_batches
			WHERE frame_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := []model.MovementBatch{}
	for rows.Next() {
		var b model.MovementBatch
		var snapshots, createdAt string
		var seq int64
		if err := rows.Scan(&b.ID, &b.FrameID, &snapshots, &createdAt, &seq); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(snapshots), &b.Snapshots); err != nil {
			return nil, fmt.Errorf("decode batch %s: %w", b.ID, err)
		}
		b.Timestamp = parseTime(createdAt)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
