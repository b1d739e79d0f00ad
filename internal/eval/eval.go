// Package eval resolves expressions against the variable store and the
// attributes of already-resolved nodes. Provider-computed attributes appear
// as unknown values until an apply fills them in, so the same scope serves
// both plan-time and apply-time resolution.
package eval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/stratushq/stratus/internal/config"
	"github.com/stratushq/stratus/internal/graph"
	"github.com/stratushq/stratus/internal/hclexpr"
	"github.com/stratushq/stratus/internal/provider"
)

// UnresolvedVariableError reports a reference to a variable that has neither
// a default nor an operator-supplied override.
type UnresolvedVariableError struct {
	Name string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("variable %q is referenced but has no default and no override", e.Name)
}

type nodeEntry struct {
	kind  string
	attrs map[string]cty.Value
}

// Scope holds resolved variable values and per-node attribute values, and
// builds the HCL evaluation context expressions are evaluated in.
type Scope struct {
	variables map[string]cty.Value
	missing   map[string]bool
	nodes     map[string]*nodeEntry
}

// NewScope resolves the variable store: an operator-supplied override wins,
// else the declared default; variables with neither are recorded as missing
// and fail lazily, when (and only when) something references them.
func NewScope(model *config.Model, overrides map[string]string) (*Scope, error) {
	s := &Scope{
		variables: make(map[string]cty.Value),
		missing:   make(map[string]bool),
		nodes:     make(map[string]*nodeEntry),
	}

	for name := range overrides {
		if model.Variable(name) == nil {
			return nil, fmt.Errorf("override supplied for undeclared variable %q", name)
		}
	}

	for _, v := range model.Variables {
		if raw, ok := overrides[v.Name]; ok {
			val, err := convert.Convert(cty.StringVal(raw), v.Type)
			if err != nil {
				return nil, fmt.Errorf("override for variable %q does not match type: %w", v.Name, err)
			}
			s.variables[v.Name] = val
			continue
		}
		if v.Default != nil {
			s.variables[v.Name] = *v.Default
			continue
		}
		s.missing[v.Name] = true
	}

	return s, nil
}

// SetNodeAttrs records (or replaces) the attribute values of a node.
func (s *Scope) SetNodeAttrs(address, kind string, attrs map[string]cty.Value) {
	s.nodes[address] = &nodeEntry{kind: kind, attrs: attrs}
}

// NodeAttrs returns the recorded attributes of a node, if any.
func (s *Scope) NodeAttrs(address string) (map[string]cty.Value, bool) {
	entry, ok := s.nodes[address]
	if !ok {
		return nil, false
	}
	return entry.attrs, true
}

// EvalContext builds the evaluation context: `var.<name>` for variables and
// `<kind>.<name>.<attr>` for every node whose attributes are recorded.
// Synthesized stored objects carry a slash in their name and surface one
// level deeper, keyed by relative path, so they are addressable as
// `stored_object.<content>["<relative path>"]`.
func (s *Scope) EvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)

	if len(s.variables) > 0 {
		vars[hclexpr.VariableRoot] = cty.ObjectVal(s.variables)
	} else {
		vars[hclexpr.VariableRoot] = cty.EmptyObjectVal
	}

	byKind := make(map[string]map[string]cty.Value)
	grouped := make(map[string]map[string]map[string]cty.Value)
	for address, entry := range s.nodes {
		name := address[len(entry.kind)+1:]
		obj := cty.ObjectVal(entry.attrs)
		if group, rel, ok := strings.Cut(name, "/"); ok {
			if grouped[entry.kind] == nil {
				grouped[entry.kind] = make(map[string]map[string]cty.Value)
			}
			if grouped[entry.kind][group] == nil {
				grouped[entry.kind][group] = make(map[string]cty.Value)
			}
			grouped[entry.kind][group][rel] = obj
			continue
		}
		if byKind[entry.kind] == nil {
			byKind[entry.kind] = make(map[string]cty.Value)
		}
		byKind[entry.kind][name] = obj
	}
	for kind, groups := range grouped {
		if byKind[kind] == nil {
			byKind[kind] = make(map[string]cty.Value)
		}
		for group, rels := range groups {
			byKind[kind][group] = cty.ObjectVal(rels)
		}
	}
	for kind, names := range byKind {
		vars[kind] = cty.ObjectVal(names)
	}

	return &hcl.EvalContext{Variables: vars}
}

// EvalExpr evaluates one expression, first verifying every variable it
// references is resolvable.
func (s *Scope) EvalExpr(expr hcl.Expression) (cty.Value, error) {
	for _, ref := range hclexpr.References(expr) {
		if ref.IsVariable() && s.missing[ref.Name] {
			return cty.NilVal, &UnresolvedVariableError{Name: ref.Name}
		}
	}
	val, diags := expr.Value(s.EvalContext())
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("expression evaluation failed: %s", diags.Error())
	}
	return val, nil
}

// ResolveNode evaluates a node's arguments, injects unknowns for any
// provider-computed attribute not yet filled in, and records the result in
// the scope so later nodes can reference it. The returned value is the
// node's desired-state attribute object.
func (s *Scope) ResolveNode(n *graph.Node) (cty.Value, error) {
	attrs := make(map[string]cty.Value, len(n.Literal)+len(n.Arguments))
	for name, val := range n.Literal {
		attrs[name] = val
	}

	// Evaluate in sorted order so any failure is reported deterministically.
	names := make([]string, 0, len(n.Arguments))
	for name := range n.Arguments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		val, err := s.EvalExpr(n.Arguments[name])
		if err != nil {
			return cty.NilVal, fmt.Errorf("%s: argument %q: %w", n.Address, name, err)
		}
		attrs[name] = val
	}

	for _, computed := range provider.ComputedAttrs(n.Kind) {
		if _, ok := attrs[computed]; !ok {
			attrs[computed] = cty.UnknownVal(cty.String)
		}
	}

	s.SetNodeAttrs(n.Address, n.Kind, attrs)
	return cty.ObjectVal(attrs), nil
}
