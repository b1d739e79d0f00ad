// Package graph models the declarative resource dependency graph: nodes are
// declared (or synthesized) resources, edges are references between them.
// It validates that every reference resolves and that the graph is acyclic,
// and produces the deterministic topological evaluation order everything
// downstream relies on.
package graph
