// Package reconcile merges a client's edge change-list into a frame's edge set
// and computes the storage delta that takes the old set to the new one.
package reconcile

import (
	"slices"

	"github.com/rcliao/canvas-graph/internal/model"
)

const (
	DefaultSourceHandle = "bottom"
	DefaultTargetHandle = "left"
)

// PairID is the logical id of the edge connecting source to target.
func PairID(source, target string) string {
	return source + "-" + target
}

// Normalize fills the defaults a client is allowed to omit.
func Normalize(e model.Edge) model.Edge {
	if e.ID == "" {
		e.ID = PairID(e.Source, e.Target)
	}
	if e.SourceHandle == "" {
		e.SourceHandle = DefaultSourceHandle
	}
	if e.TargetHandle == "" {
		e.TargetHandle = DefaultTargetHandle
	}
	return e
}

// Apply returns the edge set that results from applying changes to current, in order.
// current is not modified and may hold several rows for one id; only the first is kept.
// Add is a no-op when the id is already present, replace keeps the id and swaps the
// payload, remove drops the id. Add and replace without an item are skipped. An added or
// replaced edge evicts any other edge for the same ordered (source, target) pair.
func Apply(current []model.Edge, changes []model.EdgeChange) []model.Edge {
	out := dedup(current)
	for _, c := range changes {
		switch c.Type {
		case model.ChangeAdd:
			if c.Item == nil {
				continue
			}
			item := Normalize(*c.Item)
			if indexOf(out, item.ID) >= 0 {
				continue
			}
			out = append(evictPair(out, item), item)
		case model.ChangeReplace:
			if c.Item == nil {
				continue
			}
			id := c.ID
			if id == "" {
				id = c.Item.ID
			}
			i := indexOf(out, id)
			if i < 0 {
				continue
			}
			item := *c.Item
			item.ID = id
			item.FrameID = out[i].FrameID
			item = Normalize(item)
			out[i] = item
			out = evictPair(out, item)
		case model.ChangeRemove:
			if i := indexOf(out, c.ID); i >= 0 {
				out = slices.Delete(out, i, i+1)
			}
		}
	}
	return out
}

// Plan is the storage delta between two edge sets.
type Plan struct {
	Insert []model.Edge `json:"insert"`
	Update []model.Edge `json:"update"`
	Delete []string     `json:"delete"`
}

// Empty reports whether the plan writes nothing.
func (p Plan) Empty() bool {
	return len(p.Insert) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// Written returns the edges the plan inserts or patches.
func (p Plan) Written() []model.Edge {
	out := make([]model.Edge, 0, len(p.Insert)+len(p.Update))
	out = append(out, p.Insert...)
	return append(out, p.Update...)
}

// Diff computes the delta from before to after. before may hold several rows with the
// same id; a deleted id removes all of them.
func Diff(before, after []model.Edge) Plan {
	prev := make(map[string]model.Edge, len(before))
	for _, e := range before {
		if _, ok := prev[e.ID]; !ok {
			prev[e.ID] = e
		}
	}

	var plan Plan
	kept := make(map[string]bool, len(after))
	for _, e := range after {
		kept[e.ID] = true
		old, ok := prev[e.ID]
		switch {
		case !ok:
			plan.Insert = append(plan.Insert, e)
		case !old.Same(e):
			plan.Update = append(plan.Update, e)
		}
	}

	deleted := map[string]bool{}
	for _, e := range before {
		if kept[e.ID] || deleted[e.ID] {
			continue
		}
		deleted[e.ID] = true
		plan.Delete = append(plan.Delete, e.ID)
	}
	return plan
}

func dedup(edges []model.Edge) []model.Edge {
	out := make([]model.Edge, 0, len(edges))
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

// evictPair drops edges other than keep that connect the same ordered pair.
func evictPair(edges []model.Edge, keep model.Edge) []model.Edge {
	return slices.DeleteFunc(edges, func(e model.Edge) bool {
		return e.ID != keep.ID && e.Source == keep.Source && e.Target == keep.Target
	})
}

func indexOf(edges []model.Edge, id string) int {
	return slices.IndexFunc(edges, func(e model.Edge) bool { return e.ID == id })
}
