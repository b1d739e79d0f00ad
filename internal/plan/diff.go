package plan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/stratushq/stratus/internal/config"
	"github.com/stratushq/stratus/internal/ctxlog"
	"github.com/stratushq/stratus/internal/eval"
	"github.com/stratushq/stratus/internal/graph"
	"github.com/stratushq/stratus/internal/state"
)

// Compute resolves the desired-state graph and classifies every node against
// the snapshot. Nodes that disappeared from the configuration become deletes,
// ordered dependents-first from the dependency lists persisted in state.
func Compute(ctx context.Context, g *graph.Graph, scope *eval.Scope, snap *state.Snapshot) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	sorted, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	p := &Plan{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		StateSerial: snap.Serial,
	}

	// Deletes first, dependents before dependencies.
	for _, address := range deleteOrder(g, snap) {
		rec := snap.Resources[address]
		p.Changes = append(p.Changes, &Change{
			Address:      address,
			Kind:         rec.Kind,
			Action:       ActionDelete,
			Prior:        &rec.Attributes,
			Dependencies: rec.Dependencies,
		})
	}

	// Creates, updates and no-ops in topological order.
	for _, node := range sorted {
		desired, err := scope.ResolveNode(node)
		if err != nil {
			return nil, err
		}

		change := &Change{
			Address:      node.Address,
			Kind:         node.Kind,
			Attributes:   simple(desired),
			Dependencies: g.Dependencies(node.Address),
		}

		rec, exists := snap.Resources[node.Address]
		switch {
		case !exists:
			change.Action = ActionCreate
		case keyChanged(node.Kind, desired, rec.Attributes.Value):
			// The storage key is the object's remote identity: a changed key
			// is a delete of the old object plus a create at the new key,
			// never an in-place update. The delete precedes the create so the
			// old object is gone before the address is re-recorded.
			p.Changes = append(p.Changes, &Change{
				Address:      node.Address,
				Kind:         node.Kind,
				Action:       ActionDelete,
				Prior:        &rec.Attributes,
				Dependencies: rec.Dependencies,
			})
			change.Action = ActionCreate
		case attrsDiffer(desired, rec):
			change.Action = ActionUpdate
			change.Prior = &rec.Attributes
		default:
			change.Action = ActionNoop
			change.Prior = &rec.Attributes
		}
		p.Changes = append(p.Changes, change)
	}

	s := p.Summarize()
	logger.Debug("Plan computed.",
		"create", s.Create, "update", s.Update, "delete", s.Delete, "unchanged", s.Unchanged)
	return p, nil
}

// ComputeDestroy plans the removal of everything in the snapshot, ordered
// dependents-first. It needs no configuration: state alone describes what
// exists and how it is interlinked.
func ComputeDestroy(ctx context.Context, snap *state.Snapshot) *Plan {
	p := &Plan{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		StateSerial: snap.Serial,
	}
	for _, address := range destroyOrder(snap, nil) {
		rec := snap.Resources[address]
		p.Changes = append(p.Changes, &Change{
			Address:      address,
			Kind:         rec.Kind,
			Action:       ActionDelete,
			Prior:        &rec.Attributes,
			Dependencies: rec.Dependencies,
		})
	}
	return p
}

// keyChanged reports whether a stored object's storage key differs from the
// prior record. Keys are literal at plan time, so a changed key is always
// visible here.
func keyChanged(kind string, desired, prior cty.Value) bool {
	if kind != config.KindStoredObject {
		return false
	}
	key, ok := attrsMap(desired)["key"]
	if !ok || !key.IsKnown() {
		return false
	}
	prev, ok := attrsMap(prior)["key"]
	if !ok {
		return false
	}
	return !key.RawEquals(prev)
}

// attrsDiffer compares resolved desired attributes with the prior record.
// Unknown desired values (computed after apply) compare equal: the provider
// owns them, so they can never make a node dirty on their own. A declared
// argument that disappeared from the configuration is a change, restoring
// the provider default; the record's argument list distinguishes that case
// from the computed attributes prior records also carry.
func attrsDiffer(desired cty.Value, rec *state.Record) bool {
	priorAttrs := attrsMap(rec.Attributes.Value)
	desiredAttrs := attrsMap(desired)
	for name, val := range desiredAttrs {
		if !val.IsKnown() {
			continue
		}
		prev, ok := priorAttrs[name]
		if !ok {
			return true
		}
		if !val.RawEquals(prev) {
			return true
		}
	}
	for _, name := range rec.Arguments {
		if _, ok := desiredAttrs[name]; !ok {
			return true
		}
	}
	return false
}

// deleteOrder lists snapshot addresses that no longer appear in the graph,
// dependents first.
func deleteOrder(g *graph.Graph, snap *state.Snapshot) []string {
	doomed := make(map[string]bool)
	for address := range snap.Resources {
		if g.Node(address) == nil {
			doomed[address] = true
		}
	}
	return destroyOrder(snap, doomed)
}

// destroyOrder topologically sorts the given subset of the snapshot (nil
// means all of it) by the persisted dependency lists, dependencies first,
// then reverses so dependents are removed before what they depend on.
func destroyOrder(snap *state.Snapshot, subset map[string]bool) []string {
	include := func(address string) bool {
		if _, ok := snap.Resources[address]; !ok {
			return false
		}
		return subset == nil || subset[address]
	}

	addresses := make([]string, 0, len(snap.Resources))
	for address := range snap.Resources {
		if include(address) {
			addresses = append(addresses, address)
		}
	}
	sort.Strings(addresses)

	visited := make(map[string]bool)
	var ordered []string
	var visit func(address string)
	visit = func(address string) {
		if visited[address] {
			return
		}
		visited[address] = true
		for _, dep := range snap.Resources[address].Dependencies {
			if include(dep) {
				visit(dep)
			}
		}
		ordered = append(ordered, address)
	}
	for _, address := range addresses {
		visit(address)
	}

	// ordered is dependencies-first; deletes want the opposite.
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered
}

// Describe renders a one-line, human-readable form of a change.
func Describe(c *Change) string {
	switch c.Action {
	case ActionCreate:
		return fmt.Sprintf("  + %s", c.Address)
	case ActionUpdate:
		return fmt.Sprintf("  ~ %s", c.Address)
	case ActionDelete:
		return fmt.Sprintf("  - %s", c.Address)
	default:
		return fmt.Sprintf("    %s (unchanged)", c.Address)
	}
}
