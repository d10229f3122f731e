package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/canvas-graph/internal/model"
)

const frameColumns = `f.id, f.channel_id, c.workspace_id, f.title, f.sort_order, f.created_at, f.updated_at`

// CreateFrame appends a frame to the end of its channel's ordering.
func (s *SQLiteStore) CreateFrame(ctx context.Context, p CreateFrameParams) (*model.Frame, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, fmt.Errorf("frame title required: %w", ErrInvalidInput)
	}

	ts := now()
	f := &model.Frame{ID: s.newID(), ChannelID: p.ChannelID, Title: title, CreatedAt: ts, UpdatedAt: ts}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ws, err := lookupString(ctx, tx, "channel "+p.ChannelID,
			`SELECT workspace_id FROM channels WHERE id = ?`, p.ChannelID)
		if err != nil {
			return err
		}
		f.WorkspaceID = ws

		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM frames WHERE channel_id = ?`,
			p.ChannelID).Scan(&f.SortOrder); err != nil {
			return fmt.Errorf("next sort order: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO frames (id, channel_id, title, sort_order, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			f.ID, f.ChannelID, f.Title, f.SortOrder, ts.Format(timeFormat), ts.Format(timeFormat))
		if err != nil {
			return fmt.Errorf("insert frame: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SQLiteStore) GetFrame(ctx context.Context, id string) (*model.Frame, error) {
	return getFrame(ctx, s.db, id)
}

func getFrame(ctx context.Context, q queryer, id string) (*model.Frame, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+frameColumns+` FROM frames f JOIN channels c ON c.id = f.channel_id WHERE f.id = ?`, id)
	f, err := scanFrame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("frame %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get frame: %w", err)
	}
	return &f, nil
}

// ListFrames returns a channel's frames in sort order.
func (s *SQLiteStore) ListFrames(ctx context.Context, channelID string) ([]model.Frame, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+frameColumns+` FROM frames f JOIN channels c ON c.id = f.channel_id
		 WHERE f.channel_id = ? ORDER BY f.sort_order, f.created_at`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	frames := []model.Frame{}
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// UpdateFrame renames and/or reorders a frame.
func (s *SQLiteStore) UpdateFrame(ctx context.Context, p UpdateFrameParams) (*model.Frame, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return nil, fmt.Errorf("frame title required: %w", ErrInvalidInput)
	}

	var f *model.Frame
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getFrame(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if p.Title != nil {
			cur.Title = strings.TrimSpace(*p.Title)
		}
		if p.SortOrder != nil {
			cur.SortOrder = *p.SortOrder
		}
		cur.UpdatedAt = now()
		_, err = tx.ExecContext(ctx,
			`UPDATE frames SET title = ?, sort_order = ?, updated_at = ? WHERE id = ?`,
			cur.Title, cur.SortOrder, cur.UpdatedAt.Format(timeFormat), cur.ID)
		if err != nil {
			return fmt.Errorf("update frame: %w", err)
		}
		f = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFrame removes a frame with its placements, edges, and movement history.
func (s *SQLiteStore) DeleteFrame(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM edges WHERE frame_id = ?`,
			`DELETE FROM movement_batches WHERE frame_id = ?`,
			`DELETE FROM placements WHERE frame_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete frame children: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete frame: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("frame %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

func scanFrame(row scanner) (model.Frame, error) {
	var f model.Frame
	var createdAt, updatedAt string
	if err := row.Scan(&f.ID, &f.ChannelID, &f.WorkspaceID, &f.Title, &f.SortOrder, &createdAt, &updatedAt); err != nil {
		return f, err
	}
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	return f, nil
}
