package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/canvas-graph/internal/model"
)

// SearchParams holds parameters for searching content.
type SearchParams struct {
	WorkspaceID string
	ChannelID   string
	Query       string
	Variant     model.Variant
	Limit       int
}

// Search finds content nodes whose title, value, or thought match the query substring.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.ContentNode, error) {
	if p.WorkspaceID == "" {
		return nil, fmt.Errorf("workspace required: %w", ErrInvalidInput)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "%" + p.Query + "%"
	where := []string{"workspace_id = ?"}
	args := []interface{}{p.WorkspaceID}

	if p.ChannelID != "" {
		where = append(where, "channel_id = ?")
		args = append(args, p.ChannelID)
	}
	if p.Variant != "" {
		where = append(where, "variant = ?")
		args = append(args, string(p.Variant))
	}

	sql := fmt.Sprintf(`
		SELECT %s FROM content_nodes
		WHERE %s AND (title LIKE ? OR value LIKE ? OR thought LIKE ?)
		ORDER BY updated_at DESC
		LIMIT ?`, contentColumns, strings.Join(where, " AND "))
	args = append(args, query, query, query, limit)

	rows, err := s.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContent(rows)
}
