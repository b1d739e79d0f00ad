package graph

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/stratushq/stratus/internal/config"
	"github.com/stratushq/stratus/internal/content"
	"github.com/stratushq/stratus/internal/ctxlog"
	"github.com/stratushq/stratus/internal/hclexpr"
)

// Build constructs a complete, validated dependency graph from a config
// model plus the enumerated content objects, keyed by content block name.
// It fails with DanglingReferenceError for references to undeclared names
// and with CycleError when the reference graph is not acyclic.
func Build(ctx context.Context, model *config.Model, objects map[string][]*content.Object) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	g := New()

	// First pass: create all nodes, declared resources first, then the
	// synthesized stored objects in content-block order.
	declIndex := 0
	for _, r := range model.Resources {
		node := &Node{
			Address:   r.Address(),
			Kind:      r.Kind,
			Name:      r.Name,
			Arguments: r.Arguments,
			DeclIndex: declIndex,
		}
		declIndex++
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
	}
	for _, c := range model.Contents {
		for _, obj := range objects[c.Name] {
			node := synthesizeObjectNode(c, obj, declIndex)
			declIndex++
			if err := g.AddNode(node); err != nil {
				return nil, err
			}
		}
	}
	logger.Debug("Build: node creation complete.", "node_count", g.Len())

	// Second pass: link dependency edges from expression references and
	// explicit depends_on entries.
	if err := linkNodes(model, g); err != nil {
		return nil, err
	}
	logger.Debug("Build: node linking complete.")

	if err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("error validating dependency graph: %w", err)
	}
	logger.Debug("Build: cycle detection passed.")

	return g, nil
}

// synthesizeObjectNode turns one enumerated content file into a stored_object
// node. Everything about the object except its bucket is already concrete,
// so those attributes land in Literal rather than Arguments.
func synthesizeObjectNode(c *config.Content, obj *content.Object, declIndex int) *Node {
	name := c.Name + "/" + obj.RelPath
	return &Node{
		Address: config.KindStoredObject + "." + name,
		Kind:    config.KindStoredObject,
		Name:    name,
		Arguments: map[string]hcl.Expression{
			"bucket": c.Bucket,
		},
		Literal: map[string]cty.Value{
			"key":          cty.StringVal(obj.Key),
			"content_type": cty.StringVal(obj.ContentType),
			"fingerprint":  cty.StringVal(obj.Fingerprint),
			"source":       cty.StringVal(obj.SourcePath),
			"body":         cty.StringVal(string(obj.Body)),
		},
		DeclIndex: declIndex,
	}
}

// linkNodes resolves every reference in every node's arguments into an edge,
// validating along the way that each one targets a declared variable or node.
func linkNodes(model *config.Model, g *Graph) error {
	for _, node := range g.Nodes() {
		exprs := make([]hcl.Expression, 0, len(node.Arguments))
		for _, expr := range node.Arguments {
			exprs = append(exprs, expr)
		}
		for _, ref := range hclexpr.References(exprs...) {
			if ref.IsVariable() {
				if model.Variable(ref.Name) == nil {
					return &DanglingReferenceError{
						Address:   node.Address,
						Reference: "variable " + ref.Name,
					}
				}
				continue
			}
			if g.Node(ref.Address()) == nil {
				return &DanglingReferenceError{
					Address:   node.Address,
					Reference: ref.Address(),
				}
			}
			if err := g.AddEdge(ref.Address(), node.Address); err != nil {
				return err
			}
		}
	}

	// Explicit depends_on entries only exist on declared resources.
	for _, r := range model.Resources {
		for _, dep := range r.DependsOn {
			if g.Node(dep) == nil {
				return &DanglingReferenceError{Address: r.Address(), Reference: dep}
			}
			if err := g.AddEdge(dep, r.Address()); err != nil {
				return err
			}
		}
	}
	return nil
}
