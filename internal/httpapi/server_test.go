package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/canvas-graph/internal/auth"
	"github.com/rcliao/canvas-graph/internal/canvas"
	"github.com/rcliao/canvas-graph/internal/metrics"
	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/store"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	hub     *canvas.Hub
	frameID string
	channel string
	ws      string
}

func newTestAPI(t *testing.T, tokens *auth.TokenValidator) *testAPI {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hub := canvas.NewHub(16)
	m := metrics.NewCollector()
	svc := canvas.NewService(st, canvas.Options{Events: hub, Metrics: m})
	srv := NewServer(Config{Service: svc, Hub: hub, Tokens: tokens, Metrics: m, MovementListLimit: 2})
	return &testAPI{t: t, handler: srv.Router(), hub: hub}
}

// do sends a request as user (X-User-ID) and decodes the response into out when non-nil.
func (a *testAPI) do(method, path, user string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

// seed creates a workspace owned by alice with one channel and frame.
func (a *testAPI) seed() {
	a.t.Helper()
	var ws model.Workspace
	require.Equal(a.t, http.StatusCreated, a.do("POST", "/api/v1/workspaces", "alice", map[string]string{"name": "studio"}, &ws))
	var ch model.Channel
	require.Equal(a.t, http.StatusCreated, a.do("POST", "/api/v1/workspaces/"+ws.ID+"/channels", "alice", map[string]string{"title": "ideas"}, &ch))
	var f model.Frame
	require.Equal(a.t, http.StatusCreated, a.do("POST", "/api/v1/channels/"+ch.ID+"/frames", "alice", map[string]string{"title": "board"}, &f))
	a.ws, a.channel, a.frameID = ws.ID, ch.ID, f.ID
}

func (a *testAPI) place(instanceID string, variant model.Variant, value string) contentResponse {
	a.t.Helper()
	var res contentResponse
	code := a.do("POST", "/api/v1/channels/"+a.channel+"/content", "alice", map[string]any{
		"variant": variant, "value": value, "frame_id": a.frameID, "instance_id": instanceID,
	}, &res)
	require.Equal(a.t, http.StatusCreated, code)
	return res
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t, nil)
	assert.Equal(t, http.StatusOK, a.do("GET", "/healthz", "", nil, nil))
}

func TestUnauthenticated(t *testing.T) {
	a := newTestAPI(t, nil)
	var body ErrorBody
	code := a.do("POST", "/api/v1/workspaces", "", map[string]string{"name": "x"}, &body)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
}

func TestBearerToken(t *testing.T) {
	v, err := auth.NewTokenValidator("secret", "canvas-graph")
	require.NoError(t, err)
	a := newTestAPI(t, v)

	tok, err := auth.IssueToken("secret", "canvas-graph", "alice", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/workspaces", strings.NewReader(`{"name":"studio"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest("POST", "/api/v1/workspaces", strings.NewReader(`{"name":"studio"}`))
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "header identity is ignored when tokens are configured")
}

func TestConnectAndEdgeRoutes(t *testing.T) {
	a := newTestAPI(t, nil)
	a.seed()
	a.place("n1", model.VariantText, "one")
	a.place("n2", model.VariantText, "two")

	var edge model.Edge
	for i := 0; i < 2; i++ {
		code := a.do("POST", "/api/v1/frames/"+a.frameID+"/connect", "alice", map[string]string{"source": "n1", "target": "n2"}, &edge)
		require.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, "n1-n2", edge.ID)
	assert.Equal(t, "bottom", edge.SourceHandle)

	var edges []model.Edge
	require.Equal(t, http.StatusOK, a.do("GET", "/api/v1/frames/"+a.frameID+"/edges", "alice", nil, &edges))
	assert.Len(t, edges, 1)

	var body ErrorBody
	code := a.do("POST", "/api/v1/frames/"+a.frameID+"/connect", "alice", map[string]string{"source": "n1", "target": "ghost"}, &body)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)

	code = a.do("POST", "/api/v1/frames/"+a.frameID+"/connect", "alice", map[string]string{"source": "n1"}, &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION", body.Error.Code)

	var del store.DeleteEdgeResult
	require.Equal(t, http.StatusOK, a.do("DELETE", "/api/v1/frames/"+a.frameID+"/edges/n1-n2", "alice", nil, &del))
	assert.True(t, del.Found)
	require.Equal(t, http.StatusOK, a.do("DELETE", "/api/v1/frames/"+a.frameID+"/edges/n1-n2", "alice", nil, &del))
	assert.False(t, del.Found)
}

func TestReconcileRoute(t *testing.T) {
	a := newTestAPI(t, nil)
	a.seed()
	a.place("a", model.VariantText, "a")
	a.place("b", model.VariantText, "b")

	var plan map[string]json.RawMessage
	code := a.do("PATCH", "/api/v1/frames/"+a.frameID+"/edges", "alice", map[string]any{
		"changes": []map[string]any{{"type": "add", "item": map[string]string{"source": "a", "target": "b"}}},
	}, &plan)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(plan["insert"]), `"a-b"`)

	var body ErrorBody
	code = a.do("PATCH", "/api/v1/frames/"+a.frameID+"/edges", "alice", map[string]any{
		"changes": []map[string]any{{"type": "add", "item": map[string]string{"source": "a", "target": "ghost"}}},
	}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "DANGLING_REFERENCE", body.Error.Code)

	code = a.do("PATCH", "/api/v1/frames/"+a.frameID+"/edges", "alice", map[string]any{
		"changes": []map[string]any{{"type": "upsert", "id": "a-b"}},
	}, &body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMovementRoutes(t *testing.T) {
	a := newTestAPI(t, nil)
	a.seed()
	a.place("p1", model.VariantText, "one")

	for i := 0; i < 3; i++ {
		code := a.do("POST", "/api/v1/frames/"+a.frameID+"/movements", "alice", map[string]any{
			"batch": []map[string]any{{"id": "p1", "x": i * 10, "y": 0}},
		}, nil)
		require.Equal(t, http.StatusCreated, code)
	}

	var pls []model.Placement
	require.Equal(t, http.StatusOK, a.do("GET", "/api/v1/frames/"+a.frameID+"/placements", "alice", nil, &pls))
	require.Len(t, pls, 1)
	assert.Equal(t, 20.0, pls[0].X)

	var batches []model.MovementBatch
	require.Equal(t, http.StatusOK, a.do("GET", "/api/v1/frames/"+a.frameID+"/movements", "alice", nil, &batches))
	assert.Len(t, batches, 2, "server default limit applies")
	require.Equal(t, http.StatusOK, a.do("GET", "/api/v1/frames/"+a.frameID+"/movements?limit=0", "alice", nil, &batches))
	assert.Len(t, batches, 4, "initial placement batch plus three flushes")

	assert.Equal(t, http.StatusBadRequest, a.do("POST", "/api/v1/frames/"+a.frameID+"/movements", "alice", map[string]any{"batch": []any{}}, nil))
	assert.Equal(t, http.StatusBadRequest, a.do("GET", "/api/v1/frames/"+a.frameID+"/movements?limit=-1", "alice", nil, nil))
}

func TestContextRoute(t *testing.T) {
	a := newTestAPI(t, nil)
	a.seed()
	a.place("p1", model.VariantText, "Hello")
	a.place("p2", model.VariantImage, "https://img.example/cat.png")
	ai := a.place("p3", model.VariantAI, "")
	for _, src := range []string{"p1", "p2"} {
		require.Equal(t, http.StatusOK, a.do("POST", "/api/v1/frames/"+a.frameID+"/connect", "alice", map[string]string{"source": src, "target": "p3"}, nil))
	}

	var uc store.UpstreamContext
	require.Equal(t, http.StatusOK, a.do("GET", "/api/v1/content/"+ai.Content.ID+"/context", "alice", nil, &uc))
	require.Len(t, uc.ConnectedNodes, 1)
	assert.Equal(t, "p1", uc.ConnectedNodes[0].ID)
	assert.Contains(t, uc.ContextText, "Hello")
}

func TestMembershipEnforced(t *testing.T) {
	a := newTestAPI(t, nil)
	a.seed()

	var body ErrorBody
	assert.Equal(t, http.StatusForbidden, a.do("GET", "/api/v1/frames/"+a.frameID+"/edges", "mallory", nil, &body))
	assert.Equal(t, "FORBIDDEN", body.Error.Code)

	require.Equal(t, http.StatusOK, a.do("POST", "/api/v1/workspaces/"+a.ws+"/members", "alice", map[string]string{"user_id": "vic", "role": "viewer"}, nil))
	assert.Equal(t, http.StatusOK, a.do("GET", "/api/v1/frames/"+a.frameID+"/edges", "vic", nil, nil))
	assert.Equal(t, http.StatusForbidden, a.do("DELETE", "/api/v1/frames/"+a.frameID, "vic", nil, nil))
}

func TestPlacementConflictAndRemove(t *testing.T) {
	a := newTestAPI(t, nil)
	a.seed()
	res := a.place("p1", model.VariantText, "one")

	var body ErrorBody
	code := a.do("POST", "/api/v1/frames/"+a.frameID+"/placements", "alice", map[string]string{"content_id": res.Content.ID}, &body)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", body.Error.Code)

	var removed store.RemoveResult
	require.Equal(t, http.StatusOK, a.do("DELETE", "/api/v1/frames/"+a.frameID+"/placements", "alice", map[string][]string{"ids": {"p1"}}, &removed))
	assert.Equal(t, 1, removed.DeletedCount)
}

func TestFrameEventsWebSocket(t *testing.T) {
	a := newTestAPI(t, nil)
	a.seed()
	a.place("a", model.VariantText, "a")
	a.place("b", model.VariantText, "b")

	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	header := http.Header{"X-User-ID": {"alice"}}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/frames/" + a.frameID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return a.hub.Subscribers(a.frameID) == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, http.StatusOK, a.do("POST", "/api/v1/frames/"+a.frameID+"/connect", "alice", map[string]string{"source": "a", "target": "b"}, nil))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev canvas.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, canvas.EventEdgesChanged, ev.Type)
	assert.Equal(t, a.frameID, ev.FrameID)

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User-ID": {"mallory"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t, nil)
	a.do("GET", "/healthz", "", nil, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `canvas_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
