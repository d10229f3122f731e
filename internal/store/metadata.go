package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/canvas-graph/internal/model"
)

// DefaultMetadataTTL is how long cached link metadata stays valid.
const DefaultMetadataTTL = 30 * 24 * time.Hour

// PutLinkMetadata caches page metadata for a URL, replacing any earlier entry.
// ttl <= 0 uses DefaultMetadataTTL.
func (s *SQLiteStore) PutLinkMetadata(ctx context.Context, m model.LinkMetadata, ttl time.Duration) (*model.LinkMetadata, error) {
	if strings.TrimSpace(m.URL) == "" {
		return nil, fmt.Errorf("url required: %w", ErrInvalidInput)
	}
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}

	m.CreatedAt = now()
	m.ExpiresAt = m.CreatedAt.Add(ttl)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO link_metadata (url, platform, title, description, author, site_name, published_at, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET
		   platform = excluded.platform, title = excluded.title, description = excluded.description,
		   author = excluded.author, site_name = excluded.site_name, published_at = excluded.published_at,
		   created_at = excluded.created_at, expires_at = excluded.expires_at`,
		m.URL, m.Platform, m.Title, m.Description, m.Author, m.SiteName, m.PublishedAt,
		m.CreatedAt.Format(timeFormat), m.ExpiresAt.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("upsert link metadata: %w", err)
	}
	return &m, nil
}

// GetLinkMetadata returns cached metadata for a URL. Expired entries are reported as ErrNotFound.
func (s *SQLiteStore) GetLinkMetadata(ctx context.Context, url string) (*model.LinkMetadata, error) {
	var m model.LinkMetadata
	var createdAt, expiresAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT url, platform, title, description, author, site_name, published_at, created_at, expires_at
		 FROM link_metadata WHERE url = ? AND expires_at > ?`,
		url, now().Format(timeFormat)).Scan(
		&m.URL, &m.Platform, &m.Title, &m.Description, &m.Author, &m.SiteName, &m.PublishedAt,
		&createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link metadata %s: %w", url, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get link metadata: %w", err)
	}
	m.CreatedAt = parseTime(createdAt)
	m.ExpiresAt = parseTime(expiresAt)
	return &m, nil
}

// CleanExpiredLinkMetadata deletes expired cache entries and returns how many were removed.
func (s *SQLiteStore) CleanExpiredLinkMetadata(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM link_metadata WHERE expires_at <= ?`, now().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("clean link metadata: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
