package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rcliao/canvas-graph/internal/model"
)

// edgeFixture places a, b and c on a fresh frame.
func edgeFixture(t *testing.T) (*SQLiteStore, fixture) {
	t.Helper()
	s := newTestStore(t)
	fx := newFixture(t, s)
	for _, id := range []string{"a", "b", "c"} {
		place(t, s, fx.channel.ID, fx.frame.ID, id, model.VariantText, id)
	}
	return s, fx
}

func countPair(t *testing.T, s *SQLiteStore, frameID, source, target string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM edges WHERE frame_id = ? AND source = ? AND target = ?`,
		frameID, source, target).Scan(&n); err != nil {
		t.Fatalf("count pair: %v", err)
	}
	return n
}

func insertRawEdge(t *testing.T, s *SQLiteStore, frameID, id, source, target string) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO edges (id, frame_id, source, target, source_handle, target_handle, label, created_at)
		VALUES (?, ?, ?, ?, 'bottom', 'left', '', ?)`, id, frameID, source, target, now().Format(timeFormat))
	if err != nil {
		t.Fatalf("insert raw edge: %v", err)
	}
}

func TestConnectDefaults(t *testing.T) {
	ctx := context.Background()
	s, fx := edgeFixture(t)

	e, err := s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "a", Target: "b"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if e.ID != "a-b" {
		t.Errorf("expected id a-b, got %s", e.ID)
	}
	if e.SourceHandle != "bottom" || e.TargetHandle != "left" {
		t.Errorf("expected default handles, got %s/%s", e.SourceHandle, e.TargetHandle)
	}
	if e.Label != "" {
		t.Errorf("expected empty label, got %q", e.Label)
	}

	edges, _ := s.ListEdges(ctx, fx.frame.ID)
	if len(edges) != 1 || edges[0].SourceHandle != "bottom" || edges[0].TargetHandle != "left" {
		t.Errorf("expected stored default handles, got %+v", edges)
	}
}

func TestConnectEvictsDuplicates(t *testing.T) {
	ctx := context.Background()
	s, fx := edgeFixture(t)

	insertRawEdge(t, s, fx.frame.ID, "old-1", "a", "b")
	insertRawEdge(t, s, fx.frame.ID, "old-2", "a", "b")
	insertRawEdge(t, s, fx.frame.ID, "b-a", "b", "a")

	if _, err := s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "a", Target: "b", SourceHandle: "right"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if n := countPair(t, s, fx.frame.ID, "a", "b"); n != 1 {
		t.Errorf("expected exactly one a->b edge, got %d", n)
	}
	if n := countPair(t, s, fx.frame.ID, "b", "a"); n != 1 {
		t.Errorf("expected reverse pair untouched, got %d", n)
	}

	edges, _ := s.ListEdges(ctx, fx.frame.ID)
	for _, e := range edges {
		if e.Source == "a" && e.Target == "b" && (e.ID != "a-b" || e.SourceHandle != "right") {
			t.Errorf("unexpected surviving edge: %+v", e)
		}
	}
}

func TestConnectMissingEndpoint(t *testing.T) {
	ctx := context.Background()
	s, fx := edgeFixture(t)

	_, err := s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "a", Target: "ghost"})
	if !errors.Is(err, ErrEndpointNotFound) {
		t.Errorf("expected ErrEndpointNotFound, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrEndpointNotFound to wrap ErrNotFound, got %v", err)
	}
	if n := countPair(t, s, fx.frame.ID, "a", "ghost"); n != 0 {
		t.Errorf("expected no edge written, got %d", n)
	}
}

func TestConcurrentConnectKeepsOneEdge(t *testing.T) {
	ctx := context.Background()
	s, fx := edgeFixture(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "a", Target: "b"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("connect: %v", err)
	}

	if n := countPair(t, s, fx.frame.ID, "a", "b"); n != 1 {
		t.Errorf("expected exactly one a->b edge after concurrent connects, got %d", n)
	}
}

func TestDeleteEdgeRemovesDuplicates(t *testing.T) {
	ctx := context.Background()
	s, fx := edgeFixture(t)

	insertRawEdge(t, s, fx.frame.ID, "e1", "a", "b")
	insertRawEdge(t, s, fx.frame.ID, "e1", "a", "b")

	res, err := s.DeleteEdge(ctx, fx.frame.ID, "e1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !res.Found || res.DeletedCount != 2 {
		t.Errorf("expected found with 2 rows, got %+v", res)
	}

	res, _ = s.DeleteEdge(ctx, fx.frame.ID, "e1")
	if res.Found || res.DeletedCount != 0 {
		t.Errorf("expected not found on second delete, got %+v", res)
	}
}

func TestReconcileAddRemoveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, fx := edgeFixture(t)
	s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "a", Target: "b"})
	before, _ := s.ListEdges(ctx, fx.frame.ID)

	plan, err := s.ReconcileEdges(ctx, fx.frame.ID, []model.EdgeChange{
		{Type: model.ChangeAdd, Item: &model.Edge{ID: "b-c", Source: "b", Target: "c"}},
	})
	if err != nil {
		t.Fatalf("reconcile add: %v", err)
	}
	if len(plan.Insert) != 1 {
		t.Errorf("expected one insert, got %+v", plan)
	}
	mid, _ := s.ListEdges(ctx, fx.frame.ID)
	if len(mid) != 2 || mid[1].SourceHandle != "bottom" || mid[1].TargetHandle != "left" {
		t.Errorf("expected added edge with default handles, got %+v", mid)
	}

	if _, err := s.ReconcileEdges(ctx, fx.frame.ID, []model.EdgeChange{{Type: model.ChangeRemove, ID: "b-c"}}); err != nil {
		t.Fatalf("reconcile remove: %v", err)
	}
	after, _ := s.ListEdges(ctx, fx.frame.ID)
	if len(after) != len(before) || after[0].ID != before[0].ID {
		t.Errorf("expected edge set restored, before=%+v after=%+v", before, after)
	}
}

func TestReconcileReplaceAndRemoveDuplicates(t *testing.T) {
	ctx := context.Background()
	s, fx := edgeFixture(t)
	insertRawEdge(t, s, fx.frame.ID, "x", "a", "b")
	insertRawEdge(t, s, fx.frame.ID, "x", "a", "b")
	s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "b", Target: "c"})

	_, err := s.ReconcileEdges(ctx, fx.frame.ID, []model.EdgeChange{
		{Type: model.ChangeReplace, ID: "b-c", Item: &model.Edge{Source: "b", Target: "c", Label: "next"}},
		{Type: model.ChangeRemove, ID: "x"},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	edges, _ := s.ListEdges(ctx, fx.frame.ID)
	if len(edges) != 1 {
		t.Fatalf("expected every row of x removed, got %+v", edges)
	}
	if edges[0].ID != "b-c" || edges[0].Label != "next" {
		t.Errorf("expected b-c relabelled, got %+v", edges[0])
	}
}

func TestReconcileRejectsDanglingEdge(t *testing.T) {
	ctx := context.Background()
	s, fx := edgeFixture(t)
	s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "a", Target: "b"})
	before, _ := s.ListEdges(ctx, fx.frame.ID)

	_, err := s.ReconcileEdges(ctx, fx.frame.ID, []model.EdgeChange{
		{Type: model.ChangeRemove, ID: "a-b"},
		{Type: model.ChangeAdd, Item: &model.Edge{ID: "a-ghost", Source: "a", Target: "ghost"}},
	})
	if !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("expected ErrDanglingReference, got %v", err)
	}

	after, _ := s.ListEdges(ctx, fx.frame.ID)
	if len(after) != len(before) || after[0].ID != "a-b" {
		t.Errorf("expected edge set unchanged, before=%+v after=%+v", before, after)
	}
}

func TestReconcileRejectsEndpointInOtherFrame(t *testing.T) {
	ctx := context.Background()
	s, fx := edgeFixture(t)
	other, _ := s.CreateFrame(ctx, CreateFrameParams{ChannelID: fx.channel.ID, Title: "other"})
	place(t, s, fx.channel.ID, other.ID, "z", model.VariantText, "z")

	_, err := s.ReconcileEdges(ctx, fx.frame.ID, []model.EdgeChange{
		{Type: model.ChangeAdd, Item: &model.Edge{Source: "a", Target: "z"}},
	})
	if !errors.Is(err, ErrDanglingReference) {
		t.Errorf("expected ErrDanglingReference for cross-frame edge, got %v", err)
	}
}

func TestReconcileAddEvictsSamePair(t *testing.T) {
	ctx := context.Background()
	s, fx := edgeFixture(t)
	insertRawEdge(t, s, fx.frame.ID, "legacy", "a", "b")

	_, err := s.ReconcileEdges(ctx, fx.frame.ID, []model.EdgeChange{
		{Type: model.ChangeAdd, Item: &model.Edge{ID: "a-b", Source: "a", Target: "b"}},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n := countPair(t, s, fx.frame.ID, "a", "b"); n != 1 {
		t.Errorf("expected one a->b edge, got %d", n)
	}
}

func TestReconcileMissingFrame(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReconcileEdges(context.Background(), "missing", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
