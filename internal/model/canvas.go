// Package model defines the core canvas data types.
package model

import "time"

// Variant tags the kind of content a node holds.
type Variant string

const (
	VariantText       Variant = "Text"
	VariantLink       Variant = "Link"
	VariantImage      Variant = "Image"
	VariantVideo      Variant = "Video"
	VariantAudio      Variant = "Audio"
	VariantYouTube    Variant = "YouTube"
	VariantSpotify    Variant = "Spotify"
	VariantAppleMusic Variant = "AppleMusic"
	VariantNotion     Variant = "Notion"
	VariantFigma      Variant = "Figma"
	VariantGitHub     Variant = "GitHub"
	VariantTwitter    Variant = "Twitter"
	VariantAI         Variant = "AI"
	VariantLoom       Variant = "Loom"
	VariantExcalidraw Variant = "Excalidraw"
)

// ValidVariants are the allowed content variants.
var ValidVariants = map[Variant]bool{
	VariantText:       true,
	VariantLink:       true,
	VariantImage:      true,
	VariantVideo:      true,
	VariantAudio:      true,
	VariantYouTube:    true,
	VariantSpotify:    true,
	VariantAppleMusic: true,
	VariantNotion:     true,
	VariantFigma:      true,
	VariantGitHub:     true,
	VariantTwitter:    true,
	VariantAI:         true,
	VariantLoom:       true,
	VariantExcalidraw: true,
}

// TextBearing reports whether content of this variant can be flattened into prompt text.
func (v Variant) TextBearing() bool {
	return v == VariantText || v == VariantLink
}

// Role is a workspace membership role.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ValidRoles are the allowed membership roles.
var ValidRoles = map[Role]bool{
	RoleOwner:  true,
	RoleEditor: true,
	RoleViewer: true,
}

// CanWrite reports whether the role may mutate canvas state.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleEditor
}

// Workspace groups channels and members.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a user's membership in a workspace.
type Member struct {
	WorkspaceID string    `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// Channel groups frames inside a workspace.
type Channel struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Frame is a named canvas holding placements and edges.
type Frame struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channel_id"`
	WorkspaceID string    `json:"workspace_id"`
	Title       string    `json:"title"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContentNode is the durable unit of canvas content.
type ContentNode struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	ChannelID   string    `json:"channel_id"`
	Variant     Variant   `json:"variant"`
	Title       string    `json:"title"`
	Value       string    `json:"value"`
	Thought     string    `json:"thought,omitempty"`
	X           *float64  `json:"x,omitempty"`
	Y           *float64  `json:"y,omitempty"`
	Width       *float64  `json:"width,omitempty"`
	Height      *float64  `json:"height,omitempty"`
	Threads     []string  `json:"threads"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Placement is one visual instance of a ContentNode inside a frame.
type Placement struct {
	FrameID    string    `json:"frame_id"`
	InstanceID string    `json:"id"`
	ContentID  string    `json:"content_id"`
	Type       Variant   `json:"type"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Width      float64   `json:"width"`
	Height     float64   `json:"height"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Edge is a directed connection between two placements in one frame.
// Source and Target are placement instance ids.
type Edge struct {
	ID           string `json:"id"`
	FrameID      string `json:"frame_id,omitempty"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// Same reports whether two edges carry an identical payload.
func (e Edge) Same(o Edge) bool {
	return e.ID == o.ID &&
		e.Source == o.Source &&
		e.Target == o.Target &&
		e.SourceHandle == o.SourceHandle &&
		e.TargetHandle == o.TargetHandle &&
		e.Label == o.Label
}

// ChangeType is the kind of an edge change.
type ChangeType string

const (
	ChangeAdd     ChangeType = "add"
	ChangeReplace ChangeType = "replace"
	ChangeRemove  ChangeType = "remove"
)

// EdgeChange is one client-submitted change against a frame's edge set.
// Add and replace carry Item; replace and remove name ID.
type EdgeChange struct {
	Type ChangeType `json:"type"`
	ID   string     `json:"id,omitempty"`
	Item *Edge      `json:"item,omitempty"`
}

// PlacementSnapshot is the position/size of one placement at flush time.
type PlacementSnapshot struct {
	InstanceID string   `json:"id"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      *float64 `json:"width,omitempty"`
	Height     *float64 `json:"height,omitempty"`
}

// MovementBatch is an immutable, timestamped list of placement snapshots.
type MovementBatch struct {
	ID        string              `json:"id"`
	FrameID   string              `json:"frame_id"`
	Timestamp time.Time           `json:"timestamp"`
	Snapshots []PlacementSnapshot `json:"batch"`
}

// ConnectedNode is one upstream content node fed into an AI node.
type ConnectedNode struct {
	ID       string        `json:"id"`
	Type     Variant       `json:"type"`
	Title    string        `json:"title"`
	Value    string        `json:"value"`
	Thought  string        `json:"thought,omitempty"`
	Metadata *LinkMetadata `json:"metadata,omitempty"`
}

// LinkMetadata is cached page metadata for a link value.
type LinkMetadata struct {
	URL         string    `json:"url"`
	Platform    string    `json:"platform,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	SiteName    string    `json:"site_name,omitempty"`
	PublishedAt string    `json:"published_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
