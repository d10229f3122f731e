package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/canvas-graph/internal/model"
)

// CreateWorkspace creates a workspace and, when OwnerID is set, its owner membership.
func (s *SQLiteStore) CreateWorkspace(ctx context.Context, p CreateWorkspaceParams) (*model.Workspace, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("workspace name required: %w", ErrInvalidInput)
	}

	ts := now()
	ws := &model.Workspace{ID: s.newID(), Name: name, CreatedAt: ts}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workspaces (id, name, created_at) VALUES (?, ?, ?)`,
			ws.ID, ws.Name, ts.Format(timeFormat)); err != nil {
			return fmt.Errorf("insert workspace: %w", err)
		}
		if p.OwnerID == "" {
			return nil
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO workspace_members (workspace_id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
			ws.ID, p.OwnerID, string(model.RoleOwner), ts.Format(timeFormat))
		if err != nil {
			return fmt.Errorf("insert owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// AddMember adds a user to a workspace, or changes the role of an existing member.
func (s *SQLiteStore) AddMember(ctx context.Context, p AddMemberParams) (*model.Member, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("user id required: %w", ErrInvalidInput)
	}
	if !model.ValidRoles[p.Role] {
		return nil, fmt.Errorf("invalid role %q (valid: owner, editor, viewer): %w", p.Role, ErrInvalidInput)
	}

	ts := now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM workspaces WHERE id = ?`, p.WorkspaceID); err != nil {
			return fmt.Errorf("workspace %s: %w", p.WorkspaceID, err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO workspace_members (workspace_id, user_id, role, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = excluded.role`,
			p.WorkspaceID, p.UserID, string(p.Role), ts.Format(timeFormat))
		if err != nil {
			return fmt.Errorf("upsert member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model.Member{WorkspaceID: p.WorkspaceID, UserID: p.UserID, Role: p.Role, CreatedAt: ts}, nil
}

func (s *SQLiteStore) MemberRole(ctx context.Context, workspaceID, userID string) (model.Role, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM workspace_members WHERE workspace_id = ? AND user_id = ?`,
		workspaceID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("member %s in %s: %w", userID, workspaceID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get member: %w", err)
	}
	return model.Role(role), nil
}

// CreateChannel creates a channel in a workspace.
func (s *SQLiteStore) CreateChannel(ctx context.Context, p CreateChannelParams) (*model.Channel, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, fmt.Errorf("channel title required: %w", ErrInvalidInput)
	}

	ts := now()
	ch := &model.Channel{
		ID:          s.newID(),
		WorkspaceID: p.WorkspaceID,
		Title:       title,
		Description: p.Description,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM workspaces WHERE id = ?`, p.WorkspaceID); err != nil {
			return fmt.Errorf("workspace %s: %w", p.WorkspaceID, err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO channels (id, workspace_id, title, description, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			ch.ID, ch.WorkspaceID, ch.Title, ch.Description, ts.Format(timeFormat), ts.Format(timeFormat))
		if err != nil {
			return fmt.Errorf("insert channel: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// ChannelWorkspace returns the id of the workspace owning a channel.
func (s *SQLiteStore) ChannelWorkspace(ctx context.Context, channelID string) (string, error) {
	return lookupString(ctx, s.db, "channel "+channelID,
		`SELECT workspace_id FROM channels WHERE id = ?`, channelID)
}

// FrameWorkspace returns the id of the workspace owning a frame.
func (s *SQLiteStore) FrameWorkspace(ctx context.Context, frameID string) (string, error) {
	return lookupString(ctx, s.db, "frame "+frameID,
		`SELECT c.workspace_id FROM frames f JOIN channels c ON c.id = f.channel_id WHERE f.id = ?`, frameID)
}

// ContentFrames returns the ids of the frames a content node is placed on.
func (s *SQLiteStore) ContentFrames(ctx context.Context, contentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT frame_id FROM placements WHERE content_id = ? ORDER BY frame_id`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list content frames: %w", err)
	}
	defer rows.Close()

	frames := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		frames = append(frames, id)
	}
	return frames, rows.Err()
}

// ContentWorkspace returns the id of the workspace owning a content node.
func (s *SQLiteStore) ContentWorkspace(ctx context.Context, contentID string) (string, error) {
	return lookupString(ctx, s.db, "content "+contentID,
		`SELECT workspace_id FROM content_nodes WHERE id = ?`, contentID)
}

func lookupString(ctx context.Context, q queryer, what, query string, args ...any) (string, error) {
	var v string
	err := q.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", what, err)
	}
	return v, nil
}

// requireRow returns ErrNotFound when query yields no row.
func requireRow(ctx context.Context, q queryer, query string, args ...any) error {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
