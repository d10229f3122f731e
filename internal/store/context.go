package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/canvas-graph/internal/model"
)

// GatherUpstreamContext collects the text-bearing content connected into a node's
// placement and renders it as prompt context. Sources are kept in edge insertion order.
// A node with no placement yields an empty result.
//
// When the node is placed in more than one frame, its oldest placement is used.
func (s *SQLiteStore) GatherUpstreamContext(ctx context.Context, contentID string) (*UpstreamContext, error) {
	result := &UpstreamContext{ConnectedNodes: []model.ConnectedNode{}}

	var frameID, instanceID string
	err := s.db.QueryRowContext(ctx,
		`SELECT frame_id, instance_id FROM placements WHERE content_id = ?
		 ORDER BY created_at, rowid LIMIT 1`, contentID).Scan(&frameID, &instanceID)
	if errors.Is(err, sql.ErrNoRows) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve placement: %w", err)
	}

	incoming, err := queryEdges(ctx, s.db,
		`SELECT id, frame_id, source, target, source_handle, target_handle, label
		 FROM edges WHERE frame_id = ? AND target = ? ORDER BY seq`, frameID, instanceID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, e := range incoming {
		if seen[e.Source] {
			continue
		}
		seen[e.Source] = true

		n, err := s.sourceContent(ctx, frameID, e.Source)
		if err != nil {
			return nil, err
		}
		if n == nil || !n.Variant.TextBearing() || strings.TrimSpace(n.Value) == "" {
			continue
		}

		cn := model.ConnectedNode{
			ID:      e.Source,
			Type:    n.Variant,
			Title:   n.Title,
			Value:   n.Value,
			Thought: n.Thought,
		}
		if cn.Title == "" {
			cn.Title = string(n.Variant) + " Node"
		}
		if n.Variant == model.VariantLink {
			meta, err := s.GetLinkMetadata(ctx, n.Value)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			cn.Metadata = meta
		}
		result.ConnectedNodes = append(result.ConnectedNodes, cn)
	}

	result.ContextText = renderContext(result.ConnectedNodes)
	return result, nil
}

// sourceContent returns the content behind a placement, or nil when the placement or
// its content no longer exists.
func (s *SQLiteStore) sourceContent(ctx context.Context, frameID, instanceID string) (*model.ContentNode, error) {
	var contentID string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_id FROM placements WHERE frame_id = ? AND instance_id = ?`,
		frameID, instanceID).Scan(&contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve source %s: %w", instanceID, err)
	}

	n, err := getContent(ctx, s.db, contentID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return n, err
}

func renderContext(nodes []model.ConnectedNode) string {
	if len(nodes) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("CONNECTED NODE CONTEXT:\n\n")
	for _, n := range nodes {
		fmt.Fprintf(&b, "--- %s (%s) ---\n", n.Title, n.Type)
		if n.Type == model.VariantText {
			fmt.Fprintf(&b, "Content: %s\n", n.Value)
		} else {
			fmt.Fprintf(&b, "URL: %s\n", n.Value)
		}
		if strings.TrimSpace(n.Thought) != "" {
			fmt.Fprintf(&b, "Thought: %s\n", n.Thought)
		}
		if m := n.Metadata; m != nil {
			writeLine(&b, "Title", m.Title)
			writeLine(&b, "Description", m.Description)
			writeLine(&b, "Author", m.Author)
			writeLine(&b, "Site", m.SiteName)
			writeLine(&b, "Published", m.PublishedAt)
		}
		b.WriteString("\n")
	}
	b.WriteString("END CONNECTED NODE CONTEXT\n\n")
	return b.String()
}

func writeLine(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}
