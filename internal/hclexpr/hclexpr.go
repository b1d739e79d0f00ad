// Package hclexpr analyzes HCL expressions and extracts the references they
// make to variables and to other resource nodes. The graph builder turns
// these references into dependency edges.
package hclexpr

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// VariableRoot is the traversal root reserved for variable references.
const VariableRoot = "var"

// Ref is a parsed reference: either a variable (Root == "var") or another
// node's attribute ("<kind>.<name>.<attr>"). For stored objects the name may
// arrive via index syntax, e.g. stored_object.assets["css/site.css"].
type Ref struct {
	Root string
	Name string
	Attr string
}

// IsVariable reports whether the reference targets a variable.
func (r Ref) IsVariable() bool {
	return r.Root == VariableRoot
}

// Address returns the node address a non-variable reference targets.
func (r Ref) Address() string {
	return r.Root + "." + r.Name
}

// ParseTraversal interprets a traversal as a Ref. The second return value is
// false when the traversal is too short to name anything resolvable.
func ParseTraversal(tr hcl.Traversal) (Ref, bool) {
	if len(tr) < 2 {
		return Ref{}, false
	}
	root, ok := tr[0].(hcl.TraverseRoot)
	if !ok {
		return Ref{}, false
	}

	name, ok := stepName(tr[1])
	if !ok {
		return Ref{}, false
	}

	ref := Ref{Root: root.Name, Name: name}
	if ref.IsVariable() {
		return ref, true
	}

	rest := tr[2:]
	// Stored objects address by relative path, so the name may continue with
	// an index step: stored_object.assets["css/site.css"].
	if len(rest) > 0 {
		if idx, ok := rest[0].(hcl.TraverseIndex); ok {
			if key, ok := indexKey(idx); ok {
				ref.Name = ref.Name + "/" + key
				rest = rest[1:]
			}
		}
	}
	if len(rest) > 0 {
		if attr, ok := stepName(rest[0]); ok {
			ref.Attr = attr
		}
	}
	return ref, true
}

// References returns the unique references made by the given expressions,
// sorted for deterministic edge ordering. Nil expressions are ignored.
func References(exprs ...hcl.Expression) []Ref {
	seen := make(map[Ref]bool)
	var refs []Ref
	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		for _, tr := range expr.Variables() {
			ref, ok := ParseTraversal(tr)
			if !ok || seen[ref] {
				continue
			}
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Root != refs[j].Root {
			return refs[i].Root < refs[j].Root
		}
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].Attr < refs[j].Attr
	})
	return refs
}

func stepName(step hcl.Traverser) (string, bool) {
	switch s := step.(type) {
	case hcl.TraverseAttr:
		return s.Name, true
	case hcl.TraverseIndex:
		return indexKey(s)
	}
	return "", false
}

func indexKey(idx hcl.TraverseIndex) (string, bool) {
	if idx.Key.Type() == cty.String && idx.Key.IsKnown() && !idx.Key.IsNull() {
		return idx.Key.AsString(), true
	}
	return "", false
}
