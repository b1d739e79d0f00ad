package graph

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Node is one declared unit of desired infrastructure state. Arguments hold
// unevaluated expressions from the configuration; Literal holds attributes
// that were resolved during synthesis (stored objects get their key, content
// type and fingerprint this way).
type Node struct {
	Address   string
	Kind      string
	Name      string
	Arguments map[string]hcl.Expression
	Literal   map[string]cty.Value
	DeclIndex int

	deps       map[string]*Node
	dependents map[string]*Node
}

// Graph is the directed acyclic dependency graph over resource nodes. An
// edge A -> B means B references (depends on) A.
type Graph struct {
	nodes map[string]*Node
	order []string
}

// New creates an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddNode inserts a node. Addresses must be unique; a duplicate is a
// configuration error, not a merge.
func (g *Graph) AddNode(n *Node) error {
	if _, ok := g.nodes[n.Address]; ok {
		return fmt.Errorf("duplicate resource address %q", n.Address)
	}
	n.deps = make(map[string]*Node)
	n.dependents = make(map[string]*Node)
	g.nodes[n.Address] = n
	g.order = append(g.order, n.Address)
	return nil
}

// AddEdge records that the node at toAddr depends on the node at fromAddr.
// Self-references are rejected outright.
func (g *Graph) AddEdge(fromAddr, toAddr string) error {
	if fromAddr == toAddr {
		return fmt.Errorf("self-referential edge not allowed: %s", fromAddr)
	}
	from, ok := g.nodes[fromAddr]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromAddr)
	}
	to, ok := g.nodes[toAddr]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toAddr)
	}
	to.deps[fromAddr] = from
	from.dependents[toAddr] = to
	return nil
}

// Node returns the node with the given address, or nil.
func (g *Graph) Node(address string) *Node {
	return g.nodes[address]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, addr := range g.order {
		nodes = append(nodes, g.nodes[addr])
	}
	return nodes
}

// Dependencies returns the addresses the given node depends on, sorted.
func (g *Graph) Dependencies(address string) []string {
	n, ok := g.nodes[address]
	if !ok {
		return nil
	}
	deps := make([]string, 0, len(n.deps))
	for addr := range n.deps {
		deps = append(deps, addr)
	}
	sort.Strings(deps)
	return deps
}

// Dependents returns the addresses that depend on the given node, sorted.
func (g *Graph) Dependents(address string) []string {
	n, ok := g.nodes[address]
	if !ok {
		return nil
	}
	dependents := make([]string, 0, len(n.dependents))
	for addr := range n.dependents {
		dependents = append(dependents, addr)
	}
	sort.Strings(dependents)
	return dependents
}

// DetectCycles checks the graph for cycles using depth-first search with
// three node sets: permanent (fully visited, known safe), temporary (in the
// current recursion stack) and unvisited.
func (g *Graph) DetectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if permanent[n.Address] {
			return nil
		}
		if temporary[n.Address] {
			return &CycleError{Address: n.Address}
		}
		temporary[n.Address] = true
		for _, dependent := range sortedByDecl(n.dependents) {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, n.Address)
		permanent[n.Address] = true
		return nil
	}

	for _, addr := range g.order {
		if !permanent[addr] {
			if err := visit(g.nodes[addr]); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopoSort returns an evaluation order in which every node appears strictly
// after all nodes it references. Ties among independent nodes are broken by
// declaration order so plans are byte-identical across runs. Cycles are
// re-checked here even though Build already validated them.
func (g *Graph) TopoSort() ([]*Node, error) {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	sorted := make([]*Node, 0, len(g.nodes))

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if permanent[n.Address] {
			return nil
		}
		if temporary[n.Address] {
			return &CycleError{Address: n.Address}
		}
		temporary[n.Address] = true
		for _, dep := range sortedByDecl(n.deps) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(temporary, n.Address)
		permanent[n.Address] = true
		sorted = append(sorted, n)
		return nil
	}

	for _, addr := range g.order {
		if err := visit(g.nodes[addr]); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

// sortedByDecl orders a node set by declaration index, address as tiebreak.
func sortedByDecl(set map[string]*Node) []*Node {
	nodes := make([]*Node, 0, len(set))
	for _, n := range set {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].DeclIndex != nodes[j].DeclIndex {
			return nodes[i].DeclIndex < nodes[j].DeclIndex
		}
		return nodes[i].Address < nodes[j].Address
	})
	return nodes
}
