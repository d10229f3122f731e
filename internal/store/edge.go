package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/reconcile"
)

// ListEdges returns a frame's edges in insertion order. Duplicate rows for one id are
// returned as stored.
func (s *SQLiteStore) ListEdges(ctx context.Context, frameID string) ([]model.Edge, error) {
	if err := requireRow(ctx, s.db, `SELECT 1 FROM frames WHERE id = ?`, frameID); err != nil {
		return nil, fmt.Errorf("frame %s: %w", frameID, err)
	}
	return listEdges(ctx, s.db, frameID)
}

// ReconcileEdges merges a client change-list into the frame's persisted edge set and
// writes the resulting delta. Every inserted or changed edge must connect two placements
// of the frame, otherwise nothing is written and ErrDanglingReference is returned.
func (s *SQLiteStore) ReconcileEdges(ctx context.Context, frameID string, changes []model.EdgeChange) (reconcile.Plan, error) {
	var plan reconcile.Plan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM frames WHERE id = ?`, frameID); err != nil {
			return fmt.Errorf("frame %s: %w", frameID, err)
		}

		current, err := listEdges(ctx, tx, frameID)
		if err != nil {
			return err
		}
		plan = reconcile.Diff(current, reconcile.Apply(current, changes))
		if plan.Empty() {
			return nil
		}

		live, err := instanceSet(ctx, tx, frameID)
		if err != nil {
			return err
		}
		for _, e := range plan.Written() {
			if !live[e.Source] || !live[e.Target] {
				return fmt.Errorf("edge %s (%s -> %s): %w", e.ID, e.Source, e.Target, ErrDanglingReference)
			}
		}

		for _, id := range plan.Delete {
			if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE frame_id = ? AND id = ?`, frameID, id); err != nil {
				return fmt.Errorf("delete edge %s: %w", id, err)
			}
		}
		for _, e := range plan.Update {
			_, err := tx.ExecContext(ctx,
				`UPDATE edges SET source = ?, target = ?, source_handle = ?, target_handle = ?, label = ?
				 WHERE frame_id = ? AND id = ?`,
				e.Source, e.Target, e.SourceHandle, e.TargetHandle, e.Label, frameID, e.ID)
			if err != nil {
				return fmt.Errorf("update edge %s: %w", e.ID, err)
			}
		}
		for _, e := range plan.Insert {
			e.FrameID = frameID
			if err := insertEdge(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return reconcile.Plan{}, err
	}
	return plan, nil
}

// Connect replaces every edge for the ordered (source, target) pair with a single new edge.
// The reverse pair is left alone.
func (s *SQLiteStore) Connect(ctx context.Context, p ConnectParams) (*model.Edge, error) {
	if p.Source == "" || p.Target == "" {
		return nil, fmt.Errorf("source and target required: %w", ErrInvalidInput)
	}

	e := reconcile.Normalize(model.Edge{
		ID:           reconcile.PairID(p.Source, p.Target),
		FrameID:      p.FrameID,
		Source:       p.Source,
		Target:       p.Target,
		SourceHandle: p.SourceHandle,
		TargetHandle: p.TargetHandle,
	})

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM frames WHERE id = ?`, p.FrameID); err != nil {
			return fmt.Errorf("frame %s: %w", p.FrameID, err)
		}
		for _, id := range []string{p.Source, p.Target} {
			err := requireRow(ctx, tx,
				`SELECT 1 FROM placements WHERE frame_id = ? AND instance_id = ?`, p.FrameID, id)
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("instance %s: %w", id, ErrEndpointNotFound)
			}
			if err != nil {
				return fmt.Errorf("check endpoint: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM edges WHERE frame_id = ? AND source = ? AND target = ?`,
			p.FrameID, p.Source, p.Target); err != nil {
			return fmt.Errorf("evict pair: %w", err)
		}
		return insertEdge(ctx, tx, e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteEdge deletes every row with the logical edge id in the frame.
func (s *SQLiteStore) DeleteEdge(ctx context.Context, frameID, edgeID string) (*DeleteEdgeResult, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM edges WHERE frame_id = ? AND id = ?`, frameID, edgeID)
	if err != nil {
		return nil, fmt.Errorf("delete edge: %w", err)
	}
	n, _ := res.RowsAffected()
	return &DeleteEdgeResult{Found: n > 0, DeletedCount: int(n)}, nil
}

func insertEdge(ctx context.Context, tx *sql.Tx, e model.Edge) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO edges (id, frame_id, source, target, source_handle, target_handle, label, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FrameID, e.Source, e.Target, e.SourceHandle, e.TargetHandle, e.Label, now().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert edge %s: %w", e.ID, err)
	}
	return nil
}

func listEdges(ctx context.Context, q queryer, frameID string) ([]model.Edge, error) {
	return queryEdges(ctx, q,
		`SELECT id, frame_id, source, target, source_handle, target_handle, label
		 FROM edges WHERE frame_id = ? ORDER BY seq`, frameID)
}

func queryEdges(ctx context.Context, q queryer, query string, args ...any) ([]model.Edge, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	edges := []model.Edge{}
	for rows.Next() {
		var e model.Edge
		if err := rows.Scan(&e.ID, &e.FrameID, &e.Source, &e.Target, &e.SourceHandle, &e.TargetHandle, &e.Label); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
