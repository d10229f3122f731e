// Package canvas is the application service for the canvas graph. It checks
// workspace membership, serializes writes per frame and publishes frame
// events around the store.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/canvas-graph/internal/auth"
	"github.com/rcliao/canvas-graph/internal/framelock"
	"github.com/rcliao/canvas-graph/internal/metrics"
	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/reconcile"
	"github.com/rcliao/canvas-graph/internal/store"
)

// Options configures a Service. Zero fields get in-process defaults.
type Options struct {
	Authorizer  *auth.Authorizer
	Locker      framelock.Locker
	Metrics     *metrics.Collector
	Events      Broadcaster
	Logger      *zap.Logger
	MetadataTTL time.Duration
}

// Service implements the canvas operations on top of a store.
type Service struct {
	store       store.Store
	authz       *auth.Authorizer
	locks       framelock.Locker
	metrics     *metrics.Collector
	events      Broadcaster
	logger      *zap.Logger
	metadataTTL time.Duration
}

// NewService creates a Service.
func NewService(st store.Store, opts Options) *Service {
	s := &Service{
		store:       st,
		authz:       opts.Authorizer,
		locks:       opts.Locker,
		metrics:     opts.Metrics,
		events:      opts.Events,
		logger:      opts.Logger,
		metadataTTL: opts.MetadataTTL,
	}
	if s.authz == nil {
		s.authz = auth.NewAuthorizer(st)
	}
	if s.locks == nil {
		s.locks = framelock.NewLocalLocker(0)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewCollector()
	}
	if s.events == nil {
		s.events = nopBroadcaster{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metadataTTL == 0 {
		s.metadataTTL = store.DefaultMetadataTTL
	}
	return s
}

// finish records metrics and logs the outcome of op.
func (s *Service) finish(op string, start time.Time, err error, fields ...zap.Field) {
	s.metrics.ObserveOperation(op, start, err)
	fields = append(fields, zap.String("operation", op), zap.Duration("duration", time.Since(start)))
	switch {
	case err == nil:
	case IsClientError(err):
		s.logger.Warn("Canvas operation rejected", append(fields, zap.Error(err))...)
		return
	default:
		s.logger.Error("Canvas operation failed", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Debug("Canvas operation", fields...)
}

func (s *Service) authorize(ctx context.Context, workspaceID string, write bool) (auth.Identity, error) {
	if write {
		return s.authz.RequireWriter(ctx, workspaceID)
	}
	return s.authz.RequireMembership(ctx, workspaceID)
}

func (s *Service) authorizeFrame(ctx context.Context, frameID string, write bool) error {
	ws, err := s.store.FrameWorkspace(ctx, frameID)
	if err != nil {
		return err
	}
	_, err = s.authorize(ctx, ws, write)
	return err
}

func (s *Service) authorizeChannel(ctx context.Context, channelID string, write bool) error {
	ws, err := s.store.ChannelWorkspace(ctx, channelID)
	if err != nil {
		return err
	}
	_, err = s.authorize(ctx, ws, write)
	return err
}

func (s *Service) authorizeContent(ctx context.Context, contentID string, write bool) error {
	ws, err := s.store.ContentWorkspace(ctx, contentID)
	if err != nil {
		return err
	}
	_, err = s.authorize(ctx, ws, write)
	return err
}

// withFrameLock runs fn while holding the frame's lock.
func (s *Service) withFrameLock(ctx context.Context, frameID string, fn func() error) error {
	release, err := s.locks.Lock(ctx, frameID)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			s.logger.Warn("Failed to release frame lock", zap.String("frameID", frameID), zap.Error(rerr))
		}
	}()
	return fn()
}

// mutateFrame authorizes a write to frameID and runs fn under its lock.
func (s *Service) mutateFrame(ctx context.Context, frameID string, fn func() error) error {
	if err := s.authorizeFrame(ctx, frameID, true); err != nil {
		return err
	}
	return s.withFrameLock(ctx, frameID, fn)
}

func (s *Service) publish(typ EventType, frameID string, payload any) {
	s.events.Publish(Event{Type: typ, FrameID: frameID, Payload: payload, At: time.Now().UTC()})
}

// FlushMovementBatch appends a movement batch and applies its snapshots.
func (s *Service) FlushMovementBatch(ctx context.Context, frameID string, batch []model.PlacementSnapshot) (id string, err error) {
	defer func(start time.Time) {
		s.finish("flush_movement_batch", start, err, zap.String("frameID", frameID), zap.Int("snapshots", len(batch)))
	}(time.Now())

	err = s.mutateFrame(ctx, frameID, func() error {
		var err error
		id, err = s.store.FlushMovementBatch(ctx, frameID, batch)
		return err
	})
	if err != nil {
		return "", err
	}
	s.metrics.MovementSnapshots.Add(float64(len(batch)))
	s.publish(EventMovementFlushed, frameID, model.MovementBatch{ID: id, FrameID: frameID, Snapshots: batch})
	return id, nil
}

// ListMovements returns a frame's movement history oldest-first.
func (s *Service) ListMovements(ctx context.Context, frameID string, limit int) (batches []model.MovementBatch, err error) {
	defer func(start time.Time) { s.finish("list_movements", start, err, zap.String("frameID", frameID)) }(time.Now())

	if err = s.authorizeFrame(ctx, frameID, false); err != nil {
		return nil, err
	}
	return s.store.ListMovements(ctx, frameID, limit)
}

// ListEdges returns a frame's edges in insertion order.
func (s *Service) ListEdges(ctx context.Context, frameID string) (edges []model.Edge, err error) {
	defer func(start time.Time) { s.finish("list_edges", start, err, zap.String("frameID", frameID)) }(time.Now())

	if err = s.authorizeFrame(ctx, frameID, false); err != nil {
		return nil, err
	}
	return s.store.ListEdges(ctx, frameID)
}

// ReconcileEdges applies a client change list to the frame's edge set.
func (s *Service) ReconcileEdges(ctx context.Context, frameID string, changes []model.EdgeChange) (plan reconcile.Plan, err error) {
	defer func(start time.Time) {
		s.finish("reconcile_edges", start, err, zap.String("frameID", frameID), zap.Int("changes", len(changes)))
	}(time.Now())

	err = s.mutateFrame(ctx, frameID, func() error {
		var err error
		plan, err = s.store.ReconcileEdges(ctx, frameID, changes)
		return err
	})
	if err != nil {
		return reconcile.Plan{}, err
	}

	s.metrics.EdgesWritten.WithLabelValues("insert").Add(float64(len(plan.Insert)))
	s.metrics.EdgesWritten.WithLabelValues("update").Add(float64(len(plan.Update)))
	s.metrics.EdgesWritten.WithLabelValues("delete").Add(float64(len(plan.Delete)))
	if !plan.Empty() {
		s.publish(EventEdgesChanged, frameID, plan)
	}
	return plan, nil
}

// Connect creates or replaces the single edge between two placements.
func (s *Service) Connect(ctx context.Context, p store.ConnectParams) (edge *model.Edge, err error) {
	defer func(start time.Time) {
		s.finish("connect", start, err, zap.String("frameID", p.FrameID), zap.String("source", p.Source), zap.String("target", p.Target))
	}(time.Now())

	err = s.mutateFrame(ctx, p.FrameID, func() error {
		var err error
		edge, err = s.store.Connect(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.EdgesWritten.WithLabelValues("connect").Inc()
	s.publish(EventEdgesChanged, p.FrameID, reconcile.Plan{Insert: []model.Edge{*edge}})
	return edge, nil
}

// DeleteEdge removes every row carrying edgeID in the frame.
func (s *Service) DeleteEdge(ctx context.Context, frameID, edgeID string) (res *store.DeleteEdgeResult, err error) {
	defer func(start time.Time) {
		s.finish("delete_edge", start, err, zap.String("frameID", frameID), zap.String("edgeID", edgeID))
	}(time.Now())

	err = s.mutateFrame(ctx, frameID, func() error {
		var err error
		res, err = s.store.DeleteEdge(ctx, frameID, edgeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.Found {
		s.metrics.EdgesWritten.WithLabelValues("delete").Add(float64(res.DeletedCount))
		s.publish(EventEdgesChanged, frameID, reconcile.Plan{Delete: []string{edgeID}})
	}
	return res, nil
}

// GatherUpstreamContext assembles the prompt context for an AI node.
func (s *Service) GatherUpstreamContext(ctx context.Context, contentID string) (uc *store.UpstreamContext, err error) {
	defer func(start time.Time) {
		s.finish("gather_upstream_context", start, err, zap.String("contentID", contentID))
	}(time.Now())

	if err = s.authorizeContent(ctx, contentID, false); err != nil {
		return nil, err
	}
	return s.store.GatherUpstreamContext(ctx, contentID)
}

// CreateWorkspace creates a workspace owned by the caller.
func (s *Service) CreateWorkspace(ctx context.Context, name string) (ws *model.Workspace, err error) {
	defer func(start time.Time) { s.finish("create_workspace", start, err) }(time.Now())

	userID, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return s.store.CreateWorkspace(ctx, store.CreateWorkspaceParams{Name: name, OwnerID: userID})
}

// AddMember adds or updates a member. Only owners may manage members.
func (s *Service) AddMember(ctx context.Context, p store.AddMemberParams) (m *model.Member, err error) {
	defer func(start time.Time) { s.finish("add_member", start, err, zap.String("workspaceID", p.WorkspaceID)) }(time.Now())

	id, err := s.authz.RequireMembership(ctx, p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if id.Role != model.RoleOwner {
		return nil, fmt.Errorf("%w: only owners manage members", auth.ErrAccessDenied)
	}
	return s.store.AddMember(ctx, p)
}

// CreateChannel creates a channel in a workspace.
func (s *Service) CreateChannel(ctx context.Context, p store.CreateChannelParams) (ch *model.Channel, err error) {
	defer func(start time.Time) {
		s.finish("create_channel", start, err, zap.String("workspaceID", p.WorkspaceID))
	}(time.Now())

	if _, err = s.authorize(ctx, p.WorkspaceID, true); err != nil {
		return nil, err
	}
	return s.store.CreateChannel(ctx, p)
}

// CreateFrame creates a frame at the end of its channel.
func (s *Service) CreateFrame(ctx context.Context, p store.CreateFrameParams) (f *model.Frame, err error) {
	defer func(start time.Time) { s.finish("create_frame", start, err, zap.String("channelID", p.ChannelID)) }(time.Now())

	if err = s.authorizeChannel(ctx, p.ChannelID, true); err != nil {
		return nil, err
	}
	return s.store.CreateFrame(ctx, p)
}

// GetFrame returns a frame.
func (s *Service) GetFrame(ctx context.Context, frameID string) (f *model.Frame, err error) {
	defer func(start time.Time) { s.finish("get_frame", start, err, zap.String("frameID", frameID)) }(time.Now())

	if err = s.authorizeFrame(ctx, frameID, false); err != nil {
		return nil, err
	}
	return s.store.GetFrame(ctx, frameID)
}

// ListFrames returns a channel's frames in sort order.
func (s *Service) ListFrames(ctx context.Context, channelID string) (frames []model.Frame, err error) {
	defer func(start time.Time) { s.finish("list_frames", start, err, zap.String("channelID", channelID)) }(time.Now())

	if err = s.authorizeChannel(ctx, channelID, false); err != nil {
		return nil, err
	}
	return s.store.ListFrames(ctx, channelID)
}

// UpdateFrame renames or reorders a frame.
func (s *Service) UpdateFrame(ctx context.Context, p store.UpdateFrameParams) (f *model.Frame, err error) {
	defer func(start time.Time) { s.finish("update_frame", start, err, zap.String("frameID", p.ID)) }(time.Now())

	err = s.mutateFrame(ctx, p.ID, func() error {
		var err error
		f, err = s.store.UpdateFrame(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(EventFrameChanged, f.ID, f)
	return f, nil
}

// DeleteFrame deletes a frame with its placements, edges and movements.
func (s *Service) DeleteFrame(ctx context.Context, frameID string) (err error) {
	defer func(start time.Time) { s.finish("delete_frame", start, err, zap.String("frameID", frameID)) }(time.Now())

	err = s.mutateFrame(ctx, frameID, func() error {
		return s.store.DeleteFrame(ctx, frameID)
	})
	if err != nil {
		return err
	}
	s.publish(EventFrameDeleted, frameID, nil)
	return nil
}

// CreateContent creates a content node, placing it on p.FrameID when set.
func (s *Service) CreateContent(ctx context.Context, p store.CreateContentParams) (n *model.ContentNode, pl *model.Placement, err error) {
	defer func(start time.Time) {
		s.finish("create_content", start, err, zap.String("channelID", p.ChannelID), zap.String("frameID", p.FrameID))
	}(time.Now())

	if err = s.authorizeChannel(ctx, p.ChannelID, true); err != nil {
		return nil, nil, err
	}
	if p.CreatedBy == "" {
		p.CreatedBy, _ = auth.UserFromContext(ctx)
	}
	if p.FrameID == "" {
		n, pl, err = s.store.CreateContent(ctx, p)
		return n, pl, err
	}

	err = s.withFrameLock(ctx, p.FrameID, func() error {
		var err error
		n, pl, err = s.store.CreateContent(ctx, p)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.publish(EventPlacementsChanged, p.FrameID, []model.Placement{*pl})
	return n, pl, nil
}

// GetContent returns a content node.
func (s *Service) GetContent(ctx context.Context, contentID string) (n *model.ContentNode, err error) {
	defer func(start time.Time) { s.finish("get_content", start, err, zap.String("contentID", contentID)) }(time.Now())

	if err = s.authorizeContent(ctx, contentID, false); err != nil {
		return nil, err
	}
	return s.store.GetContent(ctx, contentID)
}

// ListContent returns a channel's content nodes.
func (s *Service) ListContent(ctx context.Context, channelID string) (nodes []model.ContentNode, err error) {
	defer func(start time.Time) { s.finish("list_content", start, err, zap.String("channelID", channelID)) }(time.Now())

	if err = s.authorizeChannel(ctx, channelID, false); err != nil {
		return nil, err
	}
	return s.store.ListContent(ctx, channelID)
}

// UpdateContent edits a content node.
func (s *Service) UpdateContent(ctx context.Context, p store.UpdateContentParams) (n *model.ContentNode, err error) {
	defer func(start time.Time) { s.finish("update_content", start, err, zap.String("contentID", p.ID)) }(time.Now())

	if err = s.authorizeContent(ctx, p.ID, true); err != nil {
		return nil, err
	}
	var prev model.Variant
	if p.Variant != nil {
		cur, err := s.store.GetContent(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		prev = cur.Variant
	}
	if n, err = s.store.UpdateContent(ctx, p); err != nil {
		return nil, err
	}
	if p.Variant != nil && n.Variant != prev {
		frames, err := s.store.ContentFrames(ctx, n.ID)
		if err != nil {
			s.logger.Warn("Failed to list frames for variant change", zap.String("contentID", n.ID), zap.Error(err))
		}
		for _, frameID := range frames {
			s.publish(EventPlacementsChanged, frameID, n)
		}
	}
	return n, nil
}

// DeleteContent deletes a content node, its placements and their edges.
func (s *Service) DeleteContent(ctx context.Context, contentID string) (err error) {
	defer func(start time.Time) { s.finish("delete_content", start, err, zap.String("contentID", contentID)) }(time.Now())

	if err = s.authorizeContent(ctx, contentID, true); err != nil {
		return err
	}
	removed, err := s.store.DeleteContent(ctx, contentID)
	if err != nil {
		return err
	}
	for _, res := range removed {
		s.publish(EventPlacementsChanged, res.FrameID, res)
	}
	return nil
}

// ConnectThreads links two content nodes in both directions.
func (s *Service) ConnectThreads(ctx context.Context, a, b string) (err error) {
	defer func(start time.Time) { s.finish("connect_threads", start, err, zap.String("a", a), zap.String("b", b)) }(time.Now())

	if err = s.authorizeContent(ctx, a, true); err != nil {
		return err
	}
	return s.store.ConnectThreads(ctx, a, b)
}

// DisconnectThreads removes the link between two content nodes.
func (s *Service) DisconnectThreads(ctx context.Context, a, b string) (err error) {
	defer func(start time.Time) {
		s.finish("disconnect_threads", start, err, zap.String("a", a), zap.String("b", b))
	}(time.Now())

	if err = s.authorizeContent(ctx, a, true); err != nil {
		return err
	}
	return s.store.DisconnectThreads(ctx, a, b)
}

// Search finds content by substring within a workspace.
func (s *Service) Search(ctx context.Context, p store.SearchParams) (nodes []model.ContentNode, err error) {
	defer func(start time.Time) { s.finish("search", start, err, zap.String("workspaceID", p.WorkspaceID)) }(time.Now())

	if p.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: workspace is required", store.ErrInvalidInput)
	}
	if _, err = s.authorize(ctx, p.WorkspaceID, false); err != nil {
		return nil, err
	}
	return s.store.Search(ctx, p)
}

// AddToFrame places existing content on a frame.
func (s *Service) AddToFrame(ctx context.Context, p store.AddToFrameParams) (pl *model.Placement, err error) {
	defer func(start time.Time) {
		s.finish("add_to_frame", start, err, zap.String("frameID", p.FrameID), zap.String("contentID", p.ContentID))
	}(time.Now())

	err = s.mutateFrame(ctx, p.FrameID, func() error {
		var err error
		pl, err = s.store.AddToFrame(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(EventPlacementsChanged, p.FrameID, []model.Placement{*pl})
	return pl, nil
}

// ListPlacements returns a frame's placements.
func (s *Service) ListPlacements(ctx context.Context, frameID string) (pls []model.Placement, err error) {
	defer func(start time.Time) { s.finish("list_placements", start, err, zap.String("frameID", frameID)) }(time.Now())

	if err = s.authorizeFrame(ctx, frameID, false); err != nil {
		return nil, err
	}
	return s.store.ListPlacements(ctx, frameID)
}

// RemovePlacements removes placements and their edges from a frame.
func (s *Service) RemovePlacements(ctx context.Context, frameID string, instanceIDs []string) (res *store.RemoveResult, err error) {
	defer func(start time.Time) {
		s.finish("remove_placements", start, err, zap.String("frameID", frameID), zap.Int("instances", len(instanceIDs)))
	}(time.Now())

	err = s.mutateFrame(ctx, frameID, func() error {
		var err error
		res, err = s.store.RemovePlacements(ctx, frameID, instanceIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(EventPlacementsChanged, frameID, res)
	return res, nil
}

// PutLinkMetadata caches metadata for a URL using the configured TTL.
func (s *Service) PutLinkMetadata(ctx context.Context, m model.LinkMetadata) (out *model.LinkMetadata, err error) {
	defer func(start time.Time) { s.finish("put_link_metadata", start, err, zap.String("url", m.URL)) }(time.Now())

	if _, ok := auth.UserFromContext(ctx); !ok {
		return nil, auth.ErrUnauthenticated
	}
	return s.store.PutLinkMetadata(ctx, m, s.metadataTTL)
}

// GetLinkMetadata returns unexpired metadata for a URL.
func (s *Service) GetLinkMetadata(ctx context.Context, url string) (m *model.LinkMetadata, err error) {
	defer func(start time.Time) { s.finish("get_link_metadata", start, err, zap.String("url", url)) }(time.Now())

	if _, ok := auth.UserFromContext(ctx); !ok {
		return nil, auth.ErrUnauthenticated
	}
	return s.store.GetLinkMetadata(ctx, url)
}

// Stats returns counts for one workspace.
func (s *Service) Stats(ctx context.Context, workspaceID string) (st *store.Stats, err error) {
	defer func(start time.Time) { s.finish("stats", start, err, zap.String("workspaceID", workspaceID)) }(time.Now())

	if workspaceID == "" {
		return nil, fmt.Errorf("%w: workspace is required", store.ErrInvalidInput)
	}
	if _, err = s.authorize(ctx, workspaceID, false); err != nil {
		return nil, err
	}
	return s.store.Stats(ctx, store.StatsParams{WorkspaceID: workspaceID})
}

// ExportFrame snapshots a frame.
func (s *Service) ExportFrame(ctx context.Context, frameID string) (exp *store.FrameExport, err error) {
	defer func(start time.Time) { s.finish("export_frame", start, err, zap.String("frameID", frameID)) }(time.Now())

	if err = s.authorizeFrame(ctx, frameID, false); err != nil {
		return nil, err
	}
	return s.store.ExportFrame(ctx, frameID)
}

// ImportFrame recreates an exported frame in a channel.
func (s *Service) ImportFrame(ctx context.Context, channelID string, exp *store.FrameExport) (res *store.ImportResult, err error) {
	defer func(start time.Time) { s.finish("import_frame", start, err, zap.String("channelID", channelID)) }(time.Now())

	if exp == nil {
		return nil, fmt.Errorf("%w: empty export", store.ErrInvalidInput)
	}
	if err = s.authorizeChannel(ctx, channelID, true); err != nil {
		return nil, err
	}
	return s.store.ImportFrame(ctx, channelID, exp)
}

// IsClientError reports whether err is caused by the request rather than the server.
func IsClientError(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrInvalidInput) ||
		errors.Is(err, store.ErrDanglingReference) ||
		errors.Is(err, store.ErrConflict) ||
		errors.Is(err, auth.ErrAccessDenied) ||
		errors.Is(err, auth.ErrUnauthenticated)
}
