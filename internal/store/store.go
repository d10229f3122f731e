// Package store provides the canvas storage interface and SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/reconcile"
)

// CreateWorkspaceParams holds parameters for creating a workspace.
// OwnerID, when set, is added as the owner member.
type CreateWorkspaceParams struct {
	Name    string
	OwnerID string
}

// AddMemberParams holds parameters for adding or updating a workspace member.
type AddMemberParams struct {
	WorkspaceID string
	UserID      string
	Role        model.Role
}

// CreateChannelParams holds parameters for creating a channel.
type CreateChannelParams struct {
	WorkspaceID string
	Title       string
	Description string
}

// CreateFrameParams holds parameters for creating a frame.
type CreateFrameParams struct {
	ChannelID string
	Title     string
}

// UpdateFrameParams holds parameters for renaming or reordering a frame.
// Nil fields are left unchanged.
type UpdateFrameParams struct {
	ID        string
	Title     *string
	SortOrder *int
}

// CreateContentParams holds parameters for creating a content node.
// When FrameID is set the node is also placed on that frame.
type CreateContentParams struct {
	ChannelID  string
	Variant    model.Variant
	Title      string
	Value      string
	Thought    string
	X, Y       *float64
	Width      *float64
	Height     *float64
	CreatedBy  string
	FrameID    string
	InstanceID string
}

// UpdateContentParams holds parameters for editing a content node.
// Nil fields are left unchanged.
type UpdateContentParams struct {
	ID      string
	Variant *model.Variant
	Title   *string
	Value   *string
	Thought *string
}

// AddToFrameParams holds parameters for placing content on a frame.
// An empty InstanceID gets a generated UUID.
type AddToFrameParams struct {
	FrameID    string
	ContentID  string
	InstanceID string
	X, Y       float64
	Width      float64
	Height     float64
}

// ConnectParams holds parameters for the connect protocol.
type ConnectParams struct {
	FrameID      string
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string
}

// RemoveResult reports what a placement removal deleted.
type RemoveResult struct {
	FrameID          string   `json:"frame_id,omitempty"`
	DeletedCount     int      `json:"deleted_count"`
	DeletedIDs       []string `json:"deleted_node_ids"`
	DeletedEdgeCount int      `json:"deleted_edge_count"`
}

// DeleteEdgeResult reports whether delete-edge matched any rows.
type DeleteEdgeResult struct {
	Found        bool `json:"found"`
	DeletedCount int  `json:"deleted_count"`
}

// UpstreamContext is the AI context assembled from a node's incoming edges.
type UpstreamContext struct {
	ConnectedNodes []model.ConnectedNode `json:"connected_nodes"`
	ContextText    string                `json:"context_text"`
}

// Store defines the canvas storage interface.
type Store interface {
	CreateWorkspace(ctx context.Context, p CreateWorkspaceParams) (*model.Workspace, error)
	AddMember(ctx context.Context, p AddMemberParams) (*model.Member, error)
	// MemberRole returns the user's role in the workspace, or ErrNotFound.
	MemberRole(ctx context.Context, workspaceID, userID string) (model.Role, error)

	CreateChannel(ctx context.Context, p CreateChannelParams) (*model.Channel, error)
	ChannelWorkspace(ctx context.Context, channelID string) (string, error)

	CreateFrame(ctx context.Context, p CreateFrameParams) (*model.Frame, error)
	GetFrame(ctx context.Context, id string) (*model.Frame, error)
	ListFrames(ctx context.Context, channelID string) ([]model.Frame, error)
	UpdateFrame(ctx context.Context, p UpdateFrameParams) (*model.Frame, error)
	DeleteFrame(ctx context.Context, id string) error
	FrameWorkspace(ctx context.Context, frameID string) (string, error)

	CreateContent(ctx context.Context, p CreateContentParams) (*model.ContentNode, *model.Placement, error)
	GetContent(ctx context.Context, id string) (*model.ContentNode, error)
	ListContent(ctx context.Context, channelID string) ([]model.ContentNode, error)
	UpdateContent(ctx context.Context, p UpdateContentParams) (*model.ContentNode, error)
	DeleteContent(ctx context.Context, id string) ([]RemoveResult, error)
	ConnectThreads(ctx context.Context, a, b string) error
	DisconnectThreads(ctx context.Context, a, b string) error
	ContentWorkspace(ctx context.Context, contentID string) (string, error)
	ContentFrames(ctx context.Context, contentID string) ([]string, error)

	AddToFrame(ctx context.Context, p AddToFrameParams) (*model.Placement, error)
	ListPlacements(ctx context.Context, frameID string) ([]model.Placement, error)
	RemovePlacements(ctx context.Context, frameID string, instanceIDs []string) (*RemoveResult, error)

	FlushMovementBatch(ctx context.Context, frameID string, batch []model.PlacementSnapshot) (string, error)
	// ListMovements returns batches oldest-first. limit > 0 keeps only the most recent batches.
	ListMovements(ctx context.Context, frameID string, limit int) ([]model.MovementBatch, error)

	ListEdges(ctx context.Context, frameID string) ([]model.Edge, error)
	ReconcileEdges(ctx context.Context, frameID string, changes []model.EdgeChange) (reconcile.Plan, error)
	Connect(ctx context.Context, p ConnectParams) (*model.Edge, error)
	DeleteEdge(ctx context.Context, frameID, edgeID string) (*DeleteEdgeResult, error)

	GatherUpstreamContext(ctx context.Context, contentID string) (*UpstreamContext, error)

	PutLinkMetadata(ctx context.Context, m model.LinkMetadata, ttl time.Duration) (*model.LinkMetadata, error)
	GetLinkMetadata(ctx context.Context, url string) (*model.LinkMetadata, error)
	CleanExpiredLinkMetadata(ctx context.Context) (int, error)

	Search(ctx context.Context, p SearchParams) ([]model.ContentNode, error)
	Stats(ctx context.Context, p StatsParams) (*Stats, error)
	ExportFrame(ctx context.Context, frameID string) (*FrameExport, error)
	ImportFrame(ctx context.Context, channelID string, exp *FrameExport) (*ImportResult, error)

	// Close closes the store.
	Close() error
}
