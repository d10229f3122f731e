package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/rcliao/canvas-graph/internal/model"
)

const contentColumns = `id, workspace_id, channel_id, variant, title, value, thought,
	x, y, width, height, threads, created_by, created_at, updated_at`

// CreateContent creates a content node in a channel. When p.FrameID is set the node is
// placed on that frame in the same transaction and the placement is returned too.
func (s *SQLiteStore) CreateContent(ctx context.Context, p CreateContentParams) (*model.ContentNode, *model.Placement, error) {
	if !model.ValidVariants[p.Variant] {
		return nil, nil, fmt.Errorf("invalid variant %q: %w", p.Variant, ErrInvalidInput)
	}

	ts := now()
	n := &model.ContentNode{
		ID:        s.newID(),
		ChannelID: p.ChannelID,
		Variant:   p.Variant,
		Title:     p.Title,
		Value:     p.Value,
		Thought:   p.Thought,
		X:         p.X,
		Y:         p.Y,
		Width:     p.Width,
		Height:    p.Height,
		Threads:   []string{},
		CreatedBy: p.CreatedBy,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	var pl *model.Placement
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ws, err := lookupString(ctx, tx, "channel "+p.ChannelID,
			`SELECT workspace_id FROM channels WHERE id = ?`, p.ChannelID)
		if err != nil {
			return err
		}
		n.WorkspaceID = ws

		_, err = tx.ExecContext(ctx,
			`INSERT INTO content_nodes (`+contentColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', ?, ?, ?)`,
			n.ID, n.WorkspaceID, n.ChannelID, string(n.Variant), n.Title, n.Value, n.Thought,
			nullFloat(n.X), nullFloat(n.Y), nullFloat(n.Width), nullFloat(n.Height),
			n.CreatedBy, ts.Format(timeFormat), ts.Format(timeFormat))
		if err != nil {
			return fmt.Errorf("insert content: %w", err)
		}

		if p.FrameID == "" {
			return nil
		}
		frame, err := getFrame(ctx, tx, p.FrameID)
		if err != nil {
			return err
		}
		if frame.WorkspaceID != n.WorkspaceID {
			return fmt.Errorf("frame %s belongs to another workspace: %w", p.FrameID, ErrInvalidInput)
		}
		pl, err = s.addToFrame(ctx, tx, AddToFrameParams{
			FrameID:    p.FrameID,
			ContentID:  n.ID,
			InstanceID: p.InstanceID,
			X:          deref(p.X),
			Y:          deref(p.Y),
			Width:      deref(p.Width),
			Height:     deref(p.Height),
		}, n.Variant)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return n, pl, nil
}

func (s *SQLiteStore) GetContent(ctx context.Context, id string) (*model.ContentNode, error) {
	return getContent(ctx, s.db, id)
}

func getContent(ctx context.Context, q queryer, id string) (*model.ContentNode, error) {
	n, err := scanContent(q.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content_nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return &n, nil
}

// ListContent returns a channel's content nodes, newest first.
func (s *SQLiteStore) ListContent(ctx context.Context, channelID string) ([]model.ContentNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentColumns+` FROM content_nodes WHERE channel_id = ? ORDER BY created_at DESC`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContent(rows)
}

// UpdateContent edits a node's fields. A variant change is mirrored onto its placements.
func (s *SQLiteStore) UpdateContent(ctx context.Context, p UpdateContentParams) (*model.ContentNode, error) {
	if p.Variant != nil && !model.ValidVariants[*p.Variant] {
		return nil, fmt.Errorf("invalid variant %q: %w", *p.Variant, ErrInvalidInput)
	}

	var n *model.ContentNode
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getContent(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if p.Title != nil {
			cur.Title = *p.Title
		}
		if p.Value != nil {
			cur.Value = *p.Value
		}
		if p.Thought != nil {
			cur.Thought = *p.Thought
		}
		variantChanged := p.Variant != nil && *p.Variant != cur.Variant
		if p.Variant != nil {
			cur.Variant = *p.Variant
		}
		cur.UpdatedAt = now()

		_, err = tx.ExecContext(ctx,
			`UPDATE content_nodes SET variant = ?, title = ?, value = ?, thought = ?, updated_at = ? WHERE id = ?`,
			string(cur.Variant), cur.Title, cur.Value, cur.Thought, cur.UpdatedAt.Format(timeFormat), cur.ID)
		if err != nil {
			return fmt.Errorf("update content: %w", err)
		}
		if variantChanged {
			if _, err := tx.ExecContext(ctx,
				`UPDATE placements SET type = ? WHERE content_id = ?`, string(cur.Variant), cur.ID); err != nil {
				return fmt.Errorf("update placement type: %w", err)
			}
		}
		n = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// DeleteContent removes a content node, its placements with their edges, and scrubs its
// id from every other node's threads in the workspace. It reports what was removed from
// each frame the node was placed on.
func (s *SQLiteStore) DeleteContent(ctx context.Context, id string) ([]RemoveResult, error) {
	results := []RemoveResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := getContent(ctx, tx, id)
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT frame_id, instance_id FROM placements WHERE content_id = ? ORDER BY frame_id`, id)
		if err != nil {
			return fmt.Errorf("list placements: %w", err)
		}
		type ref struct{ frameID, instanceID string }
		var refs []ref
		for rows.Next() {
			var r ref
			if err := rows.Scan(&r.frameID, &r.instanceID); err != nil {
				rows.Close()
				return err
			}
			refs = append(refs, r)
		}
		rows.Close()

		for _, r := range refs {
			edges, err := deletePlacement(ctx, tx, r.frameID, r.instanceID)
			if err != nil {
				return err
			}
			if len(results) == 0 || results[len(results)-1].FrameID != r.frameID {
				results = append(results, RemoveResult{FrameID: r.frameID, DeletedIDs: []string{}})
			}
			res := &results[len(results)-1]
			res.DeletedCount++
			res.DeletedIDs = append(res.DeletedIDs, r.instanceID)
			res.DeletedEdgeCount += edges
		}

		if err := scrubThreads(ctx, tx, n.WorkspaceID, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM content_nodes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete content: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ConnectThreads links two content nodes symmetrically.
func (s *SQLiteStore) ConnectThreads(ctx context.Context, a, b string) error {
	return s.updateThreads(ctx, a, b, func(threads []string, other string) []string {
		if slices.Contains(threads, other) {
			return threads
		}
		return append(threads, other)
	})
}

// DisconnectThreads unlinks two content nodes symmetrically.
func (s *SQLiteStore) DisconnectThreads(ctx context.Context, a, b string) error {
	return s.updateThreads(ctx, a, b, func(threads []string, other string) []string {
		return slices.DeleteFunc(threads, func(id string) bool { return id == other })
	})
}

func (s *SQLiteStore) updateThreads(ctx context.Context, a, b string, fn func([]string, string) []string) error {
	if a == b {
		return fmt.Errorf("cannot thread a node to itself: %w", ErrInvalidInput)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		na, err := getContent(ctx, tx, a)
		if err != nil {
			return err
		}
		nb, err := getContent(ctx, tx, b)
		if err != nil {
			return err
		}
		if na.WorkspaceID != nb.WorkspaceID {
			return fmt.Errorf("nodes belong to different workspaces: %w", ErrInvalidInput)
		}
		ts := now().Format(timeFormat)
		if err := writeThreads(ctx, tx, a, fn(na.Threads, b), ts); err != nil {
			return err
		}
		return writeThreads(ctx, tx, b, fn(nb.Threads, a), ts)
	})
}

func scrubThreads(ctx context.Context, tx *sql.Tx, workspaceID, id string) error {
	needle, _ := json.Marshal(id)
	rows, err := tx.QueryContext(ctx,
		`SELECT id, threads FROM content_nodes WHERE workspace_id = ? AND id != ? AND instr(threads, ?) > 0`,
		workspaceID, id, string(needle))
	if err != nil {
		return fmt.Errorf("find threads: %w", err)
	}
	updates := map[string][]string{}
	for rows.Next() {
		var nodeID, raw string
		if err := rows.Scan(&nodeID, &raw); err != nil {
			rows.Close()
			return err
		}
		var threads []string
		if err := json.Unmarshal([]byte(raw), &threads); err != nil {
			rows.Close()
			return fmt.Errorf("decode threads of %s: %w", nodeID, err)
		}
		updates[nodeID] = slices.DeleteFunc(threads, func(t string) bool { return t == id })
	}
	rows.Close()

	ts := now().Format(timeFormat)
	for nodeID, threads := range updates {
		if err := writeThreads(ctx, tx, nodeID, threads, ts); err != nil {
			return err
		}
	}
	return nil
}

func writeThreads(ctx context.Context, tx *sql.Tx, id string, threads []string, ts string) error {
	if threads == nil {
		threads = []string{}
	}
	b, _ := json.Marshal(threads)
	if _, err := tx.ExecContext(ctx,
		`UPDATE content_nodes SET threads = ?, updated_at = ? WHERE id = ?`, string(b), ts, id); err != nil {
		return fmt.Errorf("update threads: %w", err)
	}
	return nil
}

func collectContent(rows *sql.Rows) ([]model.ContentNode, error) {
	nodes := []model.ContentNode{}
	for rows.Next() {
		n, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func scanContent(row scanner) (model.ContentNode, error) {
	var n model.ContentNode
	var variant, threads, createdAt, updatedAt string
	var x, y, w, h sql.NullFloat64

	err := row.Scan(
		&n.ID, &n.WorkspaceID, &n.ChannelID, &variant, &n.Title, &n.Value, &n.Thought,
		&x, &y, &w, &h, &threads, &n.CreatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return n, err
	}

	n.Variant = model.Variant(variant)
	n.X, n.Y, n.Width, n.Height = floatPtr(x), floatPtr(y), floatPtr(w), floatPtr(h)
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(threads), &n.Threads); err != nil {
		return n, fmt.Errorf("decode threads of %s: %w", n.ID, err)
	}
	if n.Threads == nil {
		n.Threads = []string{}
	}
	return n, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
