package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/reconcile"
)

// ExportVersion is the current frame export format version.
const ExportVersion = 1

// FrameExport is a self-contained snapshot of one frame.
type FrameExport struct {
	Version    int                 `json:"version"`
	ExportedAt time.Time           `json:"exported_at"`
	Frame      model.Frame         `json:"frame"`
	Content    []model.ContentNode `json:"content"`
	Placements []model.Placement   `json:"placements"`
	Edges      []model.Edge        `json:"edges"`
}

// ImportResult reports what ImportFrame created.
type ImportResult struct {
	FrameID    string `json:"frame_id"`
	Content    int    `json:"content"`
	Placements int    `json:"placements"`
	Edges      int    `json:"edges"`
	Skipped    int    `json:"skipped_edges"`
}

// ExportFrame returns the frame with its placements, edges, and referenced content.
func (s *SQLiteStore) ExportFrame(ctx context.Context, frameID string) (*FrameExport, error) {
	frame, err := s.GetFrame(ctx, frameID)
	if err != nil {
		return nil, err
	}
	placements, err := listPlacements(ctx, s.db, frameID)
	if err != nil {
		return nil, err
	}
	edges, err := listEdges(ctx, s.db, frameID)
	if err != nil {
		return nil, err
	}

	exp := &FrameExport{
		Version:    ExportVersion,
		ExportedAt: now(),
		Frame:      *frame,
		Content:    []model.ContentNode{},
		Placements: placements,
		Edges:      edges,
	}
	for _, pl := range placements {
		n, err := getContent(ctx, s.db, pl.ContentID)
		if err != nil {
			return nil, err
		}
		exp.Content = append(exp.Content, *n)
	}
	return exp, nil
}

// ImportFrame recreates an exported frame as a new frame in channelID. Content nodes get
// new ids; instance and edge ids are kept. Threads are kept only between imported nodes,
// and edges whose endpoints are missing from the export are skipped.
func (s *SQLiteStore) ImportFrame(ctx context.Context, channelID string, exp *FrameExport) (*ImportResult, error) {
	if exp == nil || exp.Version != ExportVersion {
		return nil, fmt.Errorf("unsupported export version: %w", ErrInvalidInput)
	}

	res := &ImportResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ws, err := lookupString(ctx, tx, "channel "+channelID,
			`SELECT workspace_id FROM channels WHERE id = ?`, channelID)
		if err != nil {
			return err
		}

		ts := now().Format(timeFormat)
		frameID := s.newID()
		var order int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM frames WHERE channel_id = ?`, channelID).Scan(&order); err != nil {
			return fmt.Errorf("next sort order: %w", err)
		}
		title := exp.Frame.Title
		if title == "" {
			title = "Imported frame"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO frames (id, channel_id, title, sort_order, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			frameID, channelID, title, order, ts, ts); err != nil {
			return fmt.Errorf("insert frame: %w", err)
		}
		res.FrameID = frameID

		ids := make(map[string]string, len(exp.Content))
		for _, n := range exp.Content {
			if _, ok := ids[n.ID]; ok {
				continue
			}
			ids[n.ID] = s.newID()
		}

		inserted := map[string]bool{}
		for _, n := range exp.Content {
			if inserted[n.ID] {
				continue
			}
			inserted[n.ID] = true
			if !model.ValidVariants[n.Variant] {
				return fmt.Errorf("content %s has invalid variant %q: %w", n.ID, n.Variant, ErrInvalidInput)
			}
			threads := []string{}
			for _, t := range n.Threads {
				if mapped, ok := ids[t]; ok && t != n.ID && !slices.Contains(threads, mapped) {
					threads = append(threads, mapped)
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO content_nodes (`+contentColumns+`)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', ?, ?, ?)`,
				ids[n.ID], ws, channelID, string(n.Variant), n.Title, n.Value, n.Thought,
				nullFloat(n.X), nullFloat(n.Y), nullFloat(n.Width), nullFloat(n.Height),
				n.CreatedBy, ts, ts)
			if err != nil {
				return fmt.Errorf("insert content: %w", err)
			}
			if err := writeThreads(ctx, tx, ids[n.ID], threads, ts); err != nil {
				return err
			}
			res.Content++
		}

		live := map[string]bool{}
		placed := map[string]bool{}
		var initial []model.PlacementSnapshot
		for _, pl := range exp.Placements {
			contentID, ok := ids[pl.ContentID]
			if !ok || live[pl.InstanceID] || placed[contentID] {
				continue
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO placements (frame_id, instance_id, content_id, type, x, y, width, height, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				frameID, pl.InstanceID, contentID, string(pl.Type), pl.X, pl.Y, pl.Width, pl.Height, ts, ts)
			if err != nil {
				return fmt.Errorf("insert placement: %w", err)
			}
			live[pl.InstanceID] = true
			placed[contentID] = true
			w, h := pl.Width, pl.Height
			initial = append(initial, model.PlacementSnapshot{InstanceID: pl.InstanceID, X: pl.X, Y: pl.Y, Width: &w, Height: &h})
			res.Placements++
		}
		if len(initial) > 0 {
			if _, err := s.appendBatch(ctx, tx, frameID, initial); err != nil {
				return err
			}
		}

		// Re-run the exported edges through the reconciler so the pair rule holds.
		var changes []model.EdgeChange
		for _, e := range exp.Edges {
			if !live[e.Source] || !live[e.Target] {
				res.Skipped++
				continue
			}
			item := e
			changes = append(changes, model.EdgeChange{Type: model.ChangeAdd, Item: &item})
		}
		for _, e := range reconcile.Apply(nil, changes) {
			e.FrameID = frameID
			if err := insertEdge(ctx, tx, e); err != nil {
				return err
			}
			res.Edges++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
