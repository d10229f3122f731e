package store

import (
	"context"
	"os"
)

// StatsParams holds parameters for collecting statistics.
type StatsParams struct {
	DBPath      string
	WorkspaceID string // optional
}

// Stats holds database statistics.
type Stats struct {
	DBPath          string         `json:"db_path,omitempty"`
	DBSizeBytes     int64          `json:"db_size_bytes,omitempty"`
	WorkspaceID     string         `json:"workspace_id,omitempty"`
	Channels        int            `json:"channels"`
	Frames          int            `json:"frames"`
	ContentNodes    int            `json:"content_nodes"`
	Placements      int            `json:"placements"`
	Edges           int            `json:"edges"`
	MovementBatches int            `json:"movement_batches"`
	Variants        []VariantStats `json:"variants"`
	FrameStats      []FrameStats   `json:"frame_stats"`
}

// VariantStats holds per-variant content counts.
type VariantStats struct {
	Variant string `json:"variant"`
	Count   int    `json:"count"`
}

// FrameStats holds per-frame graph counts.
type FrameStats struct {
	FrameID    string `json:"frame_id"`
	Title      string `json:"title"`
	Placements int    `json:"placements"`
	Edges      int    `json:"edges"`
}

// Stats returns database statistics, optionally scoped to one workspace.
func (s *SQLiteStore) Stats(ctx context.Context, p StatsParams) (*Stats, error) {
	st := &Stats{DBPath: p.DBPath, WorkspaceID: p.WorkspaceID, Variants: []VariantStats{}, FrameStats: []FrameStats{}}

	if p.DBPath != "" {
		if info, err := os.Stat(p.DBPath); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}

	// frameScope restricts a frame_id column to the workspace's frames.
	ws := p.WorkspaceID
	frameScope := `(? = '' OR frame_id IN (SELECT f.id FROM frames f JOIN channels c ON c.id = f.channel_id WHERE c.workspace_id = ?))`

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels WHERE (? = '' OR workspace_id = ?)`, ws, ws).Scan(&st.Channels)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames f JOIN channels c ON c.id = f.channel_id
		WHERE (? = '' OR c.workspace_id = ?)`, ws, ws).Scan(&st.Frames)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_nodes WHERE (? = '' OR workspace_id = ?)`, ws, ws).Scan(&st.ContentNodes)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM placements WHERE `+frameScope, ws, ws).Scan(&st.Placements)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges WHERE `+frameScope, ws, ws).Scan(&st.Edges)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movement_batches WHERE `+frameScope, ws, ws).Scan(&st.MovementBatches)

	rows, err := s.db.QueryContext(ctx, `
		SELECT variant, COUNT(*) AS cnt FROM content_nodes
		WHERE (? = '' OR workspace_id = ?)
		GROUP BY variant ORDER BY cnt DESC, variant`, ws, ws)
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var v VariantStats
		rows.Scan(&v.Variant, &v.Count)
		st.Variants = append(st.Variants, v)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT f.id, f.title,
		       (SELECT COUNT(*) FROM placements p WHERE p.frame_id = f.id),
		       (SELECT COUNT(*) FROM edges e WHERE e.frame_id = f.id)
		FROM frames f JOIN channels c ON c.id = f.channel_id
		WHERE (? = '' OR c.workspace_id = ?)
		ORDER BY c.id, f.sort_order`, ws, ws)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var fs FrameStats
		rows.Scan(&fs.FrameID, &fs.Title, &fs.Placements, &fs.Edges)
		st.FrameStats = append(st.FrameStats, fs)
	}

	return st, nil
}
