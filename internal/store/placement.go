package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rcliao/canvas-graph/internal/model"
)

// AddToFrame places existing content on a frame. A content node can be placed at most
// once per frame; a second placement returns ErrConflict.
func (s *SQLiteStore) AddToFrame(ctx context.Context, p AddToFrameParams) (*model.Placement, error) {
	var pl *model.Placement
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		frame, err := getFrame(ctx, tx, p.FrameID)
		if err != nil {
			return err
		}
		n, err := getContent(ctx, tx, p.ContentID)
		if err != nil {
			return err
		}
		if frame.WorkspaceID != n.WorkspaceID {
			return fmt.Errorf("content %s belongs to another workspace: %w", p.ContentID, ErrInvalidInput)
		}
		pl, err = s.addToFrame(ctx, tx, p, n.Variant)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pl, nil
}

// addToFrame inserts the placement and records its initial position as a movement batch.
func (s *SQLiteStore) addToFrame(ctx context.Context, tx *sql.Tx, p AddToFrameParams, variant model.Variant) (*model.Placement, error) {
	var existing string
	err := tx.QueryRowContext(ctx,
		`SELECT instance_id FROM placements WHERE frame_id = ? AND content_id = ?`,
		p.FrameID, p.ContentID).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("content %s is already in frame %s: %w", p.ContentID, p.FrameID, ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check placement: %w", err)
	}

	instanceID := p.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	} else if err := requireRow(ctx, tx,
		`SELECT 1 FROM placements WHERE frame_id = ? AND instance_id = ?`, p.FrameID, instanceID); err == nil {
		return nil, fmt.Errorf("instance %s already exists in frame %s: %w", instanceID, p.FrameID, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check instance: %w", err)
	}

	ts := now()
	pl := &model.Placement{
		FrameID:    p.FrameID,
		InstanceID: instanceID,
		ContentID:  p.ContentID,
		Type:       variant,
		X:          p.X,
		Y:          p.Y,
		Width:      p.Width,
		Height:     p.Height,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO placements (frame_id, instance_id, content_id, type, x, y, width, height, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pl.FrameID, pl.InstanceID, pl.ContentID, string(pl.Type), pl.X, pl.Y, pl.Width, pl.Height,
		ts.Format(timeFormat), ts.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert placement: %w", err)
	}

	w, h := pl.Width, pl.Height
	if _, err := s.appendBatch(ctx, tx, p.FrameID, []model.PlacementSnapshot{
		{InstanceID: instanceID, X: pl.X, Y: pl.Y, Width: &w, Height: &h},
	}); err != nil {
		return nil, err
	}
	return pl, nil
}

// ListPlacements returns a frame's placements in the order they were added.
func (s *SQLiteStore) ListPlacements(ctx context.Context, frameID string) ([]model.Placement, error) {
	if err := requireRow(ctx, s.db, `SELECT 1 FROM frames WHERE id = ?`, frameID); err != nil {
		return nil, fmt.Errorf("frame %s: %w", frameID, err)
	}
	return listPlacements(ctx, s.db, frameID)
}

func listPlacements(ctx context.Context, q queryer, frameID string) ([]model.Placement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT p.frame_id, p.instance_id, p.content_id, COALESCE(c.variant, p.type),
		        p.x, p.y, p.width, p.height, p.created_at, p.updated_at
		 FROM placements p LEFT JOIN content_nodes c ON c.id = p.content_id
		 WHERE p.frame_id = ? ORDER BY p.created_at, p.rowid`, frameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	placements := []model.Placement{}
	for rows.Next() {
		var pl model.Placement
		var typ, createdAt, updatedAt string
		if err := rows.Scan(&pl.FrameID, &pl.InstanceID, &pl.ContentID, &typ,
			&pl.X, &pl.Y, &pl.Width, &pl.Height, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		pl.Type = model.Variant(typ)
		pl.CreatedAt = parseTime(createdAt)
		pl.UpdatedAt = parseTime(updatedAt)
		placements = append(placements, pl)
	}
	return placements, rows.Err()
}

// RemovePlacements removes instances from a frame together with every edge touching them.
// Unknown instance ids are skipped; ErrNotFound is returned when none matched.
func (s *SQLiteStore) RemovePlacements(ctx context.Context, frameID string, instanceIDs []string) (*RemoveResult, error) {
	if len(instanceIDs) == 0 {
		return nil, fmt.Errorf("no instance ids given: %w", ErrInvalidInput)
	}

	res := &RemoveResult{DeletedIDs: []string{}}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM frames WHERE id = ?`, frameID); err != nil {
			return fmt.Errorf("frame %s: %w", frameID, err)
		}
		for _, id := range instanceIDs {
			edges, err := deletePlacement(ctx, tx, frameID, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			res.DeletedCount++
			res.DeletedIDs = append(res.DeletedIDs, id)
			res.DeletedEdgeCount += edges
		}
		if res.DeletedCount == 0 {
			return fmt.Errorf("no matching instances in frame %s: %w", frameID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// deletePlacement removes one placement and the edges that reference it.
// It returns the number of edges deleted.
func deletePlacement(ctx context.Context, tx *sql.Tx, frameID, instanceID string) (int, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM placements WHERE frame_id = ? AND instance_id = ?`, frameID, instanceID)
	if err != nil {
		return 0, fmt.Errorf("delete placement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("instance %s: %w", instanceID, ErrNotFound)
	}

	res, err = tx.ExecContext(ctx,
		`DELETE FROM edges WHERE frame_id = ? AND (source = ? OR target = ?)`,
		frameID, instanceID, instanceID)
	if err != nil {
		return 0, fmt.Errorf("delete placement edges: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// instanceSet returns the instance ids placed in a frame.
func instanceSet(ctx context.Context, q queryer, frameID string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT instance_id FROM placements WHERE frame_id = ?`, frameID)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	set := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = true
	}
	return set, rows.Err()
}
