// Package auth carries the caller identity and enforces workspace membership.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/store"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrAccessDenied    = errors.New("access denied")
)

type contextKey string

const userIDKey contextKey = "userID"

// Identity is an authenticated caller and their role in one workspace.
type Identity struct {
	UserID      string     `json:"user_id"`
	WorkspaceID string     `json:"workspace_id"`
	Role        model.Role `json:"role"`
}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserFromContext returns the user id stored by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// MemberLookup resolves a user's role in a workspace.
type MemberLookup interface {
	MemberRole(ctx context.Context, workspaceID, userID string) (model.Role, error)
}

// Authorizer checks workspace membership against the members table.
type Authorizer struct {
	members MemberLookup
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(members MemberLookup) *Authorizer {
	return &Authorizer{members: members}
}

// RequireMembership returns the caller's identity if they belong to the workspace.
func (a *Authorizer) RequireMembership(ctx context.Context, workspaceID string) (Identity, error) {
	userID, ok := UserFromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	role, err := a.members.MemberRole(ctx, workspaceID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, fmt.Errorf("%w: %s is not a member of workspace %s", ErrAccessDenied, userID, workspaceID)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup membership: %w", err)
	}
	return Identity{UserID: userID, WorkspaceID: workspaceID, Role: role}, nil
}

// RequireWriter is RequireMembership restricted to roles that may mutate.
func (a *Authorizer) RequireWriter(ctx context.Context, workspaceID string) (Identity, error) {
	id, err := a.RequireMembership(ctx, workspaceID)
	if err != nil {
		return id, err
	}
	if !id.Role.CanWrite() {
		return Identity{}, fmt.Errorf("%w: role %s is read-only", ErrAccessDenied, id.Role)
	}
	return id, nil
}
