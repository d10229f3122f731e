package store

import (
	"context"
	"strings"
	"testing"

	"github.com/rcliao/canvas-graph/internal/model"
)

func TestGatherUpstreamContextFiltersMedia(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fx := newFixture(t, s)

	place(t, s, fx.channel.ID, fx.frame.ID, "p1", model.VariantText, "Hello")
	place(t, s, fx.channel.ID, fx.frame.ID, "p2", model.VariantImage, "https://img.example/cat.png")
	ai := place(t, s, fx.channel.ID, fx.frame.ID, "p3", model.VariantAI, "")
	s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "p1", Target: "p3"})
	s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "p2", Target: "p3"})

	res, err := s.GatherUpstreamContext(ctx, ai.ID)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(res.ConnectedNodes) != 1 {
		t.Fatalf("expected 1 connected node, got %+v", res.ConnectedNodes)
	}
	cn := res.ConnectedNodes[0]
	if cn.ID != "p1" || cn.Type != model.VariantText || cn.Value != "Hello" {
		t.Errorf("unexpected connected node: %+v", cn)
	}
	if !strings.Contains(res.ContextText, "Hello") {
		t.Errorf("expected context text to contain Hello, got %q", res.ContextText)
	}
	if strings.Contains(res.ContextText, "cat.png") {
		t.Errorf("media node leaked into context: %q", res.ContextText)
	}
}

func TestGatherUpstreamContextFormat(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fx := newFixture(t, s)

	s.CreateContent(ctx, CreateContentParams{
		ChannelID: fx.channel.ID, Variant: model.VariantText, Value: "Draft intro",
		Thought: "tighten this", FrameID: fx.frame.ID, InstanceID: "t",
	})
	s.CreateContent(ctx, CreateContentParams{
		ChannelID: fx.channel.ID, Variant: model.VariantLink, Title: "Go", Value: "https://go.dev",
		FrameID: fx.frame.ID, InstanceID: "l",
	})
	ai := place(t, s, fx.channel.ID, fx.frame.ID, "ai", model.VariantAI, "")
	s.PutLinkMetadata(ctx, model.LinkMetadata{URL: "https://go.dev", Title: "The Go Programming Language"}, 0)

	// Link first: order follows edge insertion, not variant.
	s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "l", Target: "ai"})
	s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "t", Target: "ai"})

	res, err := s.GatherUpstreamContext(ctx, ai.ID)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	want := "CONNECTED NODE CONTEXT:\n\n" +
		"--- Go (Link) ---\n" +
		"URL: https://go.dev\n" +
		"Title: The Go Programming Language\n" +
		"\n" +
		"--- Text Node (Text) ---\n" +
		"Content: Draft intro\n" +
		"Thought: tighten this\n" +
		"\n" +
		"END CONNECTED NODE CONTEXT\n\n"
	if res.ContextText != want {
		t.Errorf("unexpected context text:\n%s\nwant:\n%s", res.ContextText, want)
	}
	if res.ConnectedNodes[0].Metadata == nil {
		t.Error("expected link metadata attached")
	}
}

func TestGatherUpstreamContextSkipsBlankAndOtherFrames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fx := newFixture(t, s)
	other, _ := s.CreateFrame(ctx, CreateFrameParams{ChannelID: fx.channel.ID, Title: "other"})

	place(t, s, fx.channel.ID, fx.frame.ID, "blank", model.VariantText, "   ")
	ai := place(t, s, fx.channel.ID, fx.frame.ID, "ai", model.VariantAI, "")
	s.Connect(ctx, ConnectParams{FrameID: fx.frame.ID, Source: "blank", Target: "ai"})

	// An edge in another frame that happens to target the same instance id.
	place(t, s, fx.channel.ID, other.ID, "far", model.VariantText, "far away")
	insertRawEdge(t, s, other.ID, "far-ai", "far", "ai")

	res, err := s.GatherUpstreamContext(ctx, ai.ID)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(res.ConnectedNodes) != 0 || res.ContextText != "" {
		t.Errorf("expected empty context, got %+v", res)
	}
}

func TestGatherUpstreamContextDedupesSources(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fx := newFixture(t, s)

	place(t, s, fx.channel.ID, fx.frame.ID, "src", model.VariantText, "once")
	ai := place(t, s, fx.channel.ID, fx.frame.ID, "ai", model.VariantAI, "")
	insertRawEdge(t, s, fx.frame.ID, "src-ai", "src", "ai")
	insertRawEdge(t, s, fx.frame.ID, "src-ai", "src", "ai")

	res, _ := s.GatherUpstreamContext(ctx, ai.ID)
	if len(res.ConnectedNodes) != 1 {
		t.Errorf("expected duplicate edges to yield one node, got %d", len(res.ConnectedNodes))
	}
}

func TestGatherUpstreamContextUnplaced(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fx := newFixture(t, s)

	n, _, _ := s.CreateContent(ctx, CreateContentParams{ChannelID: fx.channel.ID, Variant: model.VariantAI})
	res, err := s.GatherUpstreamContext(ctx, n.ID)
	if err != nil {
		t.Fatalf("expected no error for unplaced node, got %v", err)
	}
	if res.ContextText != "" || len(res.ConnectedNodes) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}
