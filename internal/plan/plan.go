// Package plan classifies every node of the desired-state graph against the
// persisted snapshot (Create, Update, Delete or Unchanged), serializes the
// result as a confirm-before-apply artifact, and executes confirmed plans in
// dependency order.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Action classifies one node's pending operation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionNoop   Action = "noop"
)

// Change is one classified node. Attributes is the resolved desired state
// (absent for deletes); Prior is the last-known state (absent for creates).
// Unknown (computed-later) values serialize as null; apply re-resolves from
// the graph, so nothing is lost.
type Change struct {
	Address      string                   `json:"address"`
	Kind         string                   `json:"kind"`
	Action       Action                   `json:"action"`
	Attributes   *ctyjson.SimpleJSONValue `json:"attributes,omitempty"`
	Prior        *ctyjson.SimpleJSONValue `json:"prior,omitempty"`
	Dependencies []string                 `json:"dependencies,omitempty"`
}

// Plan is the full set of pending operations, applied only if explicitly
// confirmed, and only against the state serial it was computed from.
// Changes are stored in execution order: deletes (dependents first), then
// creates, updates and no-ops in topological order.
type Plan struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	StateSerial uint64    `json:"state_serial"`
	Changes     []*Change `json:"changes"`
}

// Summary counts the plan's classifications.
type Summary struct {
	Create    int
	Update    int
	Delete    int
	Unchanged int
}

// Summarize tallies the plan's actions.
func (p *Plan) Summarize() Summary {
	var s Summary
	for _, c := range p.Changes {
		switch c.Action {
		case ActionCreate:
			s.Create++
		case ActionUpdate:
			s.Update++
		case ActionDelete:
			s.Delete++
		case ActionNoop:
			s.Unchanged++
		}
	}
	return s
}

// HasChanges reports whether the plan contains anything other than no-ops.
func (p *Plan) HasChanges() bool {
	for _, c := range p.Changes {
		if c.Action != ActionNoop {
			return true
		}
	}
	return false
}

// StaleError reports a plan computed against a different state serial than
// the one on disk. The remedy is always to compute a fresh plan, never to
// retry the stale one.
type StaleError struct {
	PlanSerial  uint64
	StateSerial uint64
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("plan was computed against state serial %d but the current serial is %d; run a fresh plan", e.PlanSerial, e.StateSerial)
}

// WriteFile serializes the plan artifact.
func WriteFile(path string, p *Plan) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	return nil
}

// ReadFile loads a previously written plan artifact.
func ReadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan file %s is corrupt: %w", path, err)
	}
	return &p, nil
}

// Discard removes a pending plan artifact so it can never be applied later
// by accident. A plan that was already gone is not an error.
func Discard(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to discard plan file: %w", err)
	}
	return nil
}

// simple wraps a cty value for JSON serialization, mapping any unknown
// values to nulls of the same type first.
func simple(v cty.Value) *ctyjson.SimpleJSONValue {
	known, _ := cty.Transform(v, func(_ cty.Path, val cty.Value) (cty.Value, error) {
		if !val.IsKnown() {
			return cty.NullVal(val.Type()), nil
		}
		return val, nil
	})
	return &ctyjson.SimpleJSONValue{Value: known}
}

// attrsMap flattens an object value into a name-to-value map.
func attrsMap(v cty.Value) map[string]cty.Value {
	attrs := make(map[string]cty.Value)
	if v == cty.NilVal || v.IsNull() || !v.Type().IsObjectType() {
		return attrs
	}
	for name := range v.Type().AttributeTypes() {
		attrs[name] = v.GetAttr(name)
	}
	return attrs
}
