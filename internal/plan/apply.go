package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/stratushq/stratus/internal/ctxlog"
	"github.com/stratushq/stratus/internal/eval"
	"github.com/stratushq/stratus/internal/graph"
	"github.com/stratushq/stratus/internal/provider"
	"github.com/stratushq/stratus/internal/state"
)

// Applier executes a confirmed plan: deletes in reverse-topological order,
// then creates and updates in topological order, mutating the snapshot as
// each node reaches a terminal state. There are no retries; the first
// provider error halts the run and the snapshot reflects exactly what
// completed before it.
type Applier struct {
	Graph    *graph.Graph
	Scope    *eval.Scope
	Provider provider.Provider
	Snapshot *state.Snapshot
}

// Apply runs the plan. It refuses a plan computed against a different state
// serial. The returned count is the number of nodes that were mutated, which
// the caller uses to decide whether the snapshot needs rewriting.
func (a *Applier) Apply(ctx context.Context, p *Plan) (int, error) {
	logger := ctxlog.FromContext(ctx)

	if p.StateSerial != a.Snapshot.Serial {
		return 0, &StaleError{PlanSerial: p.StateSerial, StateSerial: a.Snapshot.Serial}
	}

	applied := 0
	for _, change := range p.Changes {
		switch change.Action {
		case ActionNoop:
			// Seed the scope with last-known attributes so dependents and
			// outputs resolve against concrete values.
			rec := a.Snapshot.Resources[change.Address]
			if rec != nil && a.Scope != nil {
				a.Scope.SetNodeAttrs(change.Address, change.Kind, attrsMap(rec.Attributes.Value))
			}

		case ActionDelete:
			rec := a.Snapshot.Resources[change.Address]
			if rec == nil {
				continue
			}
			logger.Info("Deleting resource.", "address", change.Address)
			if err := a.Provider.Delete(ctx, change.Kind, change.Address, rec.Attributes.Value); err != nil {
				return applied, fmt.Errorf("failed to delete %s: %w", change.Address, err)
			}
			delete(a.Snapshot.Resources, change.Address)
			applied++

		case ActionCreate, ActionUpdate:
			if err := a.applyChange(ctx, change); err != nil {
				return applied, err
			}
			applied++
		}
	}

	return applied, nil
}

func (a *Applier) applyChange(ctx context.Context, change *Change) error {
	logger := ctxlog.FromContext(ctx)

	node := a.Graph.Node(change.Address)
	if node == nil {
		return fmt.Errorf("plan no longer matches the configuration (%s is not declared); run a fresh plan", change.Address)
	}

	// Re-resolve at apply time: upstream computed attributes are concrete
	// now, where the serialized plan only had placeholders.
	desired, err := a.Scope.ResolveNode(node)
	if err != nil {
		return err
	}

	var computed map[string]cty.Value
	if change.Action == ActionCreate {
		logger.Info("Creating resource.", "address", change.Address)
		computed, err = a.Provider.Create(ctx, change.Kind, change.Address, desired)
	} else {
		prior := a.Snapshot.Resources[change.Address].Attributes.Value
		logger.Info("Updating resource.", "address", change.Address)
		computed, err = a.Provider.Update(ctx, change.Kind, change.Address, desired, prior)
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", change.Address, err)
	}

	final := attrsMap(desired)
	for name, val := range computed {
		final[name] = val
	}
	// Anything still unknown was never assigned by the provider; persist it
	// as null rather than poisoning the snapshot.
	for name, val := range final {
		if !val.IsKnown() {
			final[name] = cty.NullVal(val.Type())
		}
	}

	a.Scope.SetNodeAttrs(change.Address, change.Kind, final)
	a.Snapshot.Resources[change.Address] = &state.Record{
		Kind:         change.Kind,
		Attributes:   ctyjson.SimpleJSONValue{Value: cty.ObjectVal(final)},
		Arguments:    declaredArguments(node),
		Dependencies: change.Dependencies,
	}
	return nil
}

// declaredArguments lists the attribute names the configuration declares for
// a node, sorted for stable snapshots.
func declaredArguments(node *graph.Node) []string {
	names := make([]string, 0, len(node.Arguments)+len(node.Literal))
	for name := range node.Arguments {
		names = append(names, name)
	}
	for name := range node.Literal {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
