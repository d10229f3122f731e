package canvas

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/canvas-graph/internal/auth"
	"github.com/rcliao/canvas-graph/internal/metrics"
	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/store"
)

type harness struct {
	svc     *Service
	store   *store.SQLiteStore
	hub     *Hub
	metrics *metrics.Collector
	owner   context.Context
	ws      *model.Workspace
	channel *model.Channel
	frame   *model.Frame
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{store: st, hub: NewHub(16), metrics: metrics.NewCollector()}
	h.svc = NewService(st, Options{Events: h.hub, Metrics: h.metrics})
	h.owner = auth.WithUser(context.Background(), "alice")

	h.ws, err = h.svc.CreateWorkspace(h.owner, "studio")
	require.NoError(t, err)
	h.channel, err = h.svc.CreateChannel(h.owner, store.CreateChannelParams{WorkspaceID: h.ws.ID, Title: "ideas"})
	require.NoError(t, err)
	h.frame, err = h.svc.CreateFrame(h.owner, store.CreateFrameParams{ChannelID: h.channel.ID, Title: "board"})
	require.NoError(t, err)
	return h
}

func (h *harness) place(t *testing.T, instanceID string, variant model.Variant, value string) *model.ContentNode {
	t.Helper()
	n, pl, err := h.svc.CreateContent(h.owner, store.CreateContentParams{
		ChannelID:  h.channel.ID,
		Variant:    variant,
		Value:      value,
		FrameID:    h.frame.ID,
		InstanceID: instanceID,
	})
	require.NoError(t, err)
	require.Equal(t, instanceID, pl.InstanceID)
	return n
}

func (h *harness) as(t *testing.T, userID string, role model.Role) context.Context {
	t.Helper()
	_, err := h.svc.AddMember(h.owner, store.AddMemberParams{WorkspaceID: h.ws.ID, UserID: userID, Role: role})
	require.NoError(t, err)
	return auth.WithUser(context.Background(), userID)
}

func TestServiceRequiresMembership(t *testing.T) {
	h := newHarness(t)
	h.place(t, "a", model.VariantText, "a")
	h.place(t, "b", model.VariantText, "b")

	_, err := h.svc.Connect(context.Background(), store.ConnectParams{FrameID: h.frame.ID, Source: "a", Target: "b"})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	stranger := auth.WithUser(context.Background(), "mallory")
	_, err = h.svc.Connect(stranger, store.ConnectParams{FrameID: h.frame.ID, Source: "a", Target: "b"})
	assert.ErrorIs(t, err, auth.ErrAccessDenied)
	_, err = h.svc.ListEdges(stranger, h.frame.ID)
	assert.ErrorIs(t, err, auth.ErrAccessDenied)

	edges, err := h.svc.ListEdges(h.owner, h.frame.ID)
	require.NoError(t, err)
	assert.Empty(t, edges, "rejected calls must not write")
}

func TestServiceViewerIsReadOnly(t *testing.T) {
	h := newHarness(t)
	h.place(t, "a", model.VariantText, "a")
	h.place(t, "b", model.VariantText, "b")
	viewer := h.as(t, "vic", model.RoleViewer)

	_, err := h.svc.Connect(viewer, store.ConnectParams{FrameID: h.frame.ID, Source: "a", Target: "b"})
	assert.ErrorIs(t, err, auth.ErrAccessDenied)
	_, err = h.svc.FlushMovementBatch(viewer, h.frame.ID, []model.PlacementSnapshot{{InstanceID: "a", X: 1}})
	assert.ErrorIs(t, err, auth.ErrAccessDenied)

	_, err = h.svc.ListPlacements(viewer, h.frame.ID)
	assert.NoError(t, err)
	_, err = h.svc.AddMember(viewer, store.AddMemberParams{WorkspaceID: h.ws.ID, UserID: "x", Role: model.RoleOwner})
	assert.ErrorIs(t, err, auth.ErrAccessDenied)
}

func TestServiceEditorCanWrite(t *testing.T) {
	h := newHarness(t)
	h.place(t, "a", model.VariantText, "a")
	h.place(t, "b", model.VariantText, "b")
	editor := h.as(t, "eve", model.RoleEditor)

	e, err := h.svc.Connect(editor, store.ConnectParams{FrameID: h.frame.ID, Source: "a", Target: "b"})
	require.NoError(t, err)
	assert.Equal(t, "a-b", e.ID)
}

func TestServiceConnectTwiceKeepsOneEdge(t *testing.T) {
	h := newHarness(t)
	h.place(t, "n1", model.VariantText, "one")
	h.place(t, "n2", model.VariantText, "two")

	for i := 0; i < 2; i++ {
		_, err := h.svc.Connect(h.owner, store.ConnectParams{FrameID: h.frame.ID, Source: "n1", Target: "n2"})
		require.NoError(t, err)
	}

	edges, err := h.svc.ListEdges(h.owner, h.frame.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "n1", edges[0].Source)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.EdgesWritten.WithLabelValues("connect")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Operations.WithLabelValues("connect", "ok")))
}

func TestServiceConcurrentConnects(t *testing.T) {
	h := newHarness(t)
	h.place(t, "n1", model.VariantText, "one")
	h.place(t, "n2", model.VariantText, "two")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Connect(h.owner, store.ConnectParams{FrameID: h.frame.ID, Source: "n1", Target: "n2"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	edges, err := h.svc.ListEdges(h.owner, h.frame.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestServicePublishesFrameEvents(t *testing.T) {
	h := newHarness(t)
	h.place(t, "a", model.VariantText, "a")
	h.place(t, "b", model.VariantText, "b")

	events, unsubscribe := h.hub.Subscribe(h.frame.ID)
	defer unsubscribe()

	_, err := h.svc.FlushMovementBatch(h.owner, h.frame.ID, []model.PlacementSnapshot{{InstanceID: "a", X: 5, Y: 6}})
	require.NoError(t, err)
	_, err = h.svc.ReconcileEdges(h.owner, h.frame.ID, []model.EdgeChange{
		{Type: model.ChangeAdd, Item: &model.Edge{Source: "a", Target: "b"}},
	})
	require.NoError(t, err)

	// An empty change list writes nothing and publishes nothing.
	_, err = h.svc.ReconcileEdges(h.owner, h.frame.ID, nil)
	require.NoError(t, err)

	var got []EventType
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, got %v", got)
		}
	}
	assert.Equal(t, []EventType{EventMovementFlushed, EventEdgesChanged}, got)
	select {
	case ev := <-events:
		t.Errorf("unexpected extra event %+v", ev)
	default:
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.MovementSnapshots))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EdgesWritten.WithLabelValues("insert")))
}

func TestServiceGatherUpstreamContext(t *testing.T) {
	h := newHarness(t)
	h.place(t, "p1", model.VariantText, "Hello")
	h.place(t, "p2", model.VariantImage, "https://img.example/cat.png")
	ai := h.place(t, "p3", model.VariantAI, "")

	for _, src := range []string{"p1", "p2"} {
		_, err := h.svc.Connect(h.owner, store.ConnectParams{FrameID: h.frame.ID, Source: src, Target: "p3"})
		require.NoError(t, err)
	}

	res, err := h.svc.GatherUpstreamContext(h.owner, ai.ID)
	require.NoError(t, err)
	require.Len(t, res.ConnectedNodes, 1)
	assert.Equal(t, "p1", res.ConnectedNodes[0].ID)
	assert.Contains(t, res.ContextText, "Hello")
	assert.NotContains(t, res.ContextText, "cat.png")
}

func TestServiceDeleteContentCascades(t *testing.T) {
	h := newHarness(t)
	x := h.place(t, "x", model.VariantText, "x")
	y := h.place(t, "y", model.VariantText, "y")
	require.NoError(t, h.svc.ConnectThreads(h.owner, x.ID, y.ID))
	_, err := h.svc.Connect(h.owner, store.ConnectParams{FrameID: h.frame.ID, Source: "x", Target: "y"})
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteContent(h.owner, x.ID))

	got, err := h.svc.GetContent(h.owner, y.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.Threads, x.ID)

	pls, err := h.svc.ListPlacements(h.owner, h.frame.ID)
	require.NoError(t, err)
	require.Len(t, pls, 1)
	assert.Equal(t, "y", pls[0].InstanceID)

	edges, err := h.svc.ListEdges(h.owner, h.frame.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

// nextEvent waits for the next event on ch.
func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestServiceDeleteContentNotifiesEveryFrame(t *testing.T) {
	h := newHarness(t)
	x := h.place(t, "x", model.VariantText, "x")
	h.place(t, "y", model.VariantText, "y")
	_, err := h.svc.Connect(h.owner, store.ConnectParams{FrameID: h.frame.ID, Source: "x", Target: "y"})
	require.NoError(t, err)

	other, err := h.svc.CreateFrame(h.owner, store.CreateFrameParams{ChannelID: h.channel.ID, Title: "other"})
	require.NoError(t, err)
	_, err = h.svc.AddToFrame(h.owner, store.AddToFrameParams{FrameID: other.ID, ContentID: x.ID, InstanceID: "x2"})
	require.NoError(t, err)

	first, unsubFirst := h.hub.Subscribe(h.frame.ID)
	defer unsubFirst()
	second, unsubSecond := h.hub.Subscribe(other.ID)
	defer unsubSecond()

	require.NoError(t, h.svc.DeleteContent(h.owner, x.ID))

	ev := nextEvent(t, first)
	assert.Equal(t, EventPlacementsChanged, ev.Type)
	res, ok := ev.Payload.(store.RemoveResult)
	require.True(t, ok, "payload %T", ev.Payload)
	assert.Equal(t, []string{"x"}, res.DeletedIDs)
	assert.Equal(t, 1, res.DeletedEdgeCount)

	ev = nextEvent(t, second)
	assert.Equal(t, EventPlacementsChanged, ev.Type)
	res, ok = ev.Payload.(store.RemoveResult)
	require.True(t, ok, "payload %T", ev.Payload)
	assert.Equal(t, []string{"x2"}, res.DeletedIDs)
	assert.Zero(t, res.DeletedEdgeCount)
}

func TestServiceVariantChangeNotifiesFrames(t *testing.T) {
	h := newHarness(t)
	x := h.place(t, "x", model.VariantText, "x")
	events, unsubscribe := h.hub.Subscribe(h.frame.ID)
	defer unsubscribe()

	title := "renamed"
	_, err := h.svc.UpdateContent(h.owner, store.UpdateContentParams{ID: x.ID, Title: &title})
	require.NoError(t, err)

	ai := model.VariantAI
	_, err = h.svc.UpdateContent(h.owner, store.UpdateContentParams{ID: x.ID, Variant: &ai})
	require.NoError(t, err)

	ev := nextEvent(t, events)
	assert.Equal(t, EventPlacementsChanged, ev.Type)
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}

	pls, err := h.svc.ListPlacements(h.owner, h.frame.ID)
	require.NoError(t, err)
	require.Len(t, pls, 1)
	assert.Equal(t, model.VariantAI, pls[0].Type)
}

func TestServiceRejectsMissingFrame(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Connect(h.owner, store.ConnectParams{FrameID: "missing", Source: "a", Target: "b"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, IsClientError(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Operations.WithLabelValues("connect", "error")))
}

func TestServiceSearchAndStatsNeedWorkspace(t *testing.T) {
	h := newHarness(t)
	h.place(t, "a", model.VariantText, "needle in a haystack")

	_, err := h.svc.Search(h.owner, store.SearchParams{Query: "needle"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	found, err := h.svc.Search(h.owner, store.SearchParams{WorkspaceID: h.ws.ID, Query: "needle"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	st, err := h.svc.Stats(h.owner, h.ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Placements)
}

func TestServiceExportImport(t *testing.T) {
	h := newHarness(t)
	h.place(t, "a", model.VariantText, "a")
	h.place(t, "b", model.VariantText, "b")
	_, err := h.svc.Connect(h.owner, store.ConnectParams{FrameID: h.frame.ID, Source: "a", Target: "b"})
	require.NoError(t, err)

	exp, err := h.svc.ExportFrame(h.owner, h.frame.ID)
	require.NoError(t, err)

	res, err := h.svc.ImportFrame(h.owner, h.channel.ID, exp)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Edges)

	frames, err := h.svc.ListFrames(h.owner, h.channel.ID)
	require.NoError(t, err)
	assert.Len(t, frames, 2)

	_, err = h.svc.ImportFrame(h.owner, h.channel.ID, nil)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(1)
	events, unsubscribe := hub.Subscribe("f")
	assert.Equal(t, 1, hub.Subscribers("f"))

	hub.Publish(Event{Type: EventFrameChanged, FrameID: "f"})
	hub.Publish(Event{Type: EventFrameChanged, FrameID: "f"}) // dropped, buffer full
	hub.Publish(Event{Type: EventFrameChanged, FrameID: "other"})

	ev := <-events
	assert.Equal(t, "f", ev.FrameID)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, hub.Subscribers("f"))
	_, open := <-events
	assert.False(t, open)
}
