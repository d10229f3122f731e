package reconcile

import (
	"testing"

	"github.com/rcliao/canvas-graph/internal/model"
)

func edge(id, source, target string) model.Edge {
	return model.Edge{ID: id, Source: source, Target: target, SourceHandle: "bottom", TargetHandle: "left"}
}

func TestNormalizeDefaults(t *testing.T) {
	e := Normalize(model.Edge{Source: "a", Target: "b"})
	if e.ID != "a-b" {
		t.Errorf("expected id a-b, got %s", e.ID)
	}
	if e.SourceHandle != "bottom" || e.TargetHandle != "left" {
		t.Errorf("expected bottom/left handles, got %s/%s", e.SourceHandle, e.TargetHandle)
	}

	kept := Normalize(model.Edge{ID: "x", Source: "a", Target: "b", SourceHandle: "right", TargetHandle: "top"})
	if kept.ID != "x" || kept.SourceHandle != "right" || kept.TargetHandle != "top" {
		t.Errorf("explicit fields overwritten: %+v", kept)
	}
}

func TestApplyAdd(t *testing.T) {
	current := []model.Edge{edge("a-b", "a", "b")}
	next := Apply(current, []model.EdgeChange{
		{Type: model.ChangeAdd, Item: &model.Edge{ID: "b-c", Source: "b", Target: "c"}},
	})
	if len(next) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(next))
	}
	if len(current) != 1 {
		t.Errorf("input slice modified: %d", len(current))
	}
}

func TestApplyAddExistingIsNoop(t *testing.T) {
	current := []model.Edge{edge("a-b", "a", "b")}
	next := Apply(current, []model.EdgeChange{
		{Type: model.ChangeAdd, Item: &model.Edge{ID: "a-b", Source: "a", Target: "b", Label: "new"}},
	})
	if len(next) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(next))
	}
	if next[0].Label != "" {
		t.Errorf("add must not overwrite existing edge, got label %q", next[0].Label)
	}
}

func TestApplyReplaceKeepsID(t *testing.T) {
	current := []model.Edge{edge("a-b", "a", "b")}
	next := Apply(current, []model.EdgeChange{
		{Type: model.ChangeReplace, ID: "a-b", Item: &model.Edge{ID: "other", Source: "a", Target: "b", Label: "hi"}},
	})
	if len(next) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(next))
	}
	if next[0].ID != "a-b" || next[0].Label != "hi" {
		t.Errorf("unexpected replace result: %+v", next[0])
	}
	if current[0].Label != "" {
		t.Error("input edge modified by replace")
	}
}

func TestApplyReplaceUnknownIsNoop(t *testing.T) {
	current := []model.Edge{edge("a-b", "a", "b")}
	next := Apply(current, []model.EdgeChange{
		{Type: model.ChangeReplace, ID: "zzz", Item: &model.Edge{Source: "a", Target: "c"}},
	})
	if len(next) != 1 || next[0].ID != "a-b" {
		t.Errorf("unexpected result: %+v", next)
	}
}

func TestApplyRemove(t *testing.T) {
	current := []model.Edge{edge("a-b", "a", "b"), edge("b-c", "b", "c")}
	next := Apply(current, []model.EdgeChange{{Type: model.ChangeRemove, ID: "a-b"}})
	if len(next) != 1 || next[0].ID != "b-c" {
		t.Fatalf("unexpected result: %+v", next)
	}
	if current[0].ID != "a-b" || current[1].ID != "b-c" {
		t.Errorf("input slice modified: %+v", current)
	}
}

func TestApplySkipsMissingItems(t *testing.T) {
	next := Apply(nil, []model.EdgeChange{
		{Type: model.ChangeAdd},
		{Type: model.ChangeReplace, ID: "a-b"},
	})
	if len(next) != 0 {
		t.Errorf("expected no edges, got %d", len(next))
	}
}

func TestApplyAddThenRemoveRoundTrip(t *testing.T) {
	current := []model.Edge{edge("a-b", "a", "b")}
	added := Apply(current, []model.EdgeChange{
		{Type: model.ChangeAdd, Item: &model.Edge{ID: "c-d", Source: "c", Target: "d"}},
	})
	removed := Apply(added, []model.EdgeChange{{Type: model.ChangeRemove, ID: "c-d"}})
	if p := Diff(current, removed); !p.Empty() {
		t.Errorf("expected empty plan after round trip, got %+v", p)
	}
}

func TestDiff(t *testing.T) {
	before := []model.Edge{
		edge("a-b", "a", "b"),
		edge("b-c", "b", "c"),
		edge("c-d", "c", "d"),
	}
	changed := edge("b-c", "b", "c")
	changed.Label = "renamed"
	after := []model.Edge{edge("a-b", "a", "b"), changed, edge("d-e", "d", "e")}

	p := Diff(before, after)
	if len(p.Insert) != 1 || p.Insert[0].ID != "d-e" {
		t.Errorf("unexpected inserts: %+v", p.Insert)
	}
	if len(p.Update) != 1 || p.Update[0].ID != "b-c" {
		t.Errorf("unexpected updates: %+v", p.Update)
	}
	if len(p.Delete) != 1 || p.Delete[0] != "c-d" {
		t.Errorf("unexpected deletes: %+v", p.Delete)
	}
	if len(p.Written()) != 2 {
		t.Errorf("expected 2 written edges, got %d", len(p.Written()))
	}
}

func TestDiffDuplicateRowsDeletedOnce(t *testing.T) {
	before := []model.Edge{edge("a-b", "a", "b"), edge("a-b", "a", "b")}
	p := Diff(before, nil)
	if len(p.Delete) != 1 {
		t.Errorf("expected a single delete for duplicated id, got %v", p.Delete)
	}
}

func TestApplyAddEvictsSamePair(t *testing.T) {
	current := []model.Edge{edge("legacy", "a", "b"), edge("b-a", "b", "a")}
	next := Apply(current, []model.EdgeChange{
		{Type: model.ChangeAdd, Item: &model.Edge{Source: "a", Target: "b"}},
	})
	if len(next) != 2 {
		t.Fatalf("expected 2 edges, got %+v", next)
	}
	if next[0].ID != "b-a" || next[1].ID != "a-b" {
		t.Errorf("expected reverse pair kept and legacy evicted, got %+v", next)
	}
}

// Adding a pair that already exists under another id replaces that edge, so removing
// the added id afterwards leaves the pair unconnected.
func TestApplyAddOverExistingPairThenRemove(t *testing.T) {
	current := []model.Edge{edge("a-b", "a", "b")}
	added := Apply(current, []model.EdgeChange{
		{Type: model.ChangeAdd, Item: &model.Edge{ID: "e1", Source: "a", Target: "b"}},
	})
	if len(added) != 1 || added[0].ID != "e1" {
		t.Fatalf("expected e1 to replace a-b, got %+v", added)
	}
	removed := Apply(added, []model.EdgeChange{{Type: model.ChangeRemove, ID: "e1"}})
	if len(removed) != 0 {
		t.Errorf("expected pair gone after removing e1, got %+v", removed)
	}
	p := Diff(current, removed)
	if len(p.Delete) != 1 || p.Delete[0] != "a-b" {
		t.Errorf("expected a-b deleted, got %+v", p)
	}
}

func TestApplyCollapsesDuplicateRows(t *testing.T) {
	current := []model.Edge{edge("a-b", "a", "b"), edge("a-b", "a", "b")}
	next := Apply(current, []model.EdgeChange{{Type: model.ChangeRemove, ID: "a-b"}})
	if len(next) != 0 {
		t.Fatalf("expected all rows for a-b removed, got %+v", next)
	}
	if p := Diff(current, next); len(p.Delete) != 1 || p.Delete[0] != "a-b" {
		t.Errorf("unexpected plan: %+v", p)
	}
}
