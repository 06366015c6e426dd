package graph

import "fmt"

// PipelineDefinition is the read-only root of a pipeline's node tree: its
// top-level nodes (in declaration order) plus the dependency structure
// wiring their inputs/outputs together, and the set of nodes present in the
// definition but excluded from the currently selected solid selection
// ("ignored" nodes, spec.md §4.2).
type PipelineDefinition struct {
	Name           string
	Nodes          []Node
	IgnoredNodes   []Node
	Deps           *DependencyStructure
}

// TopologicalOrder returns nodes ordered so that every node appears after
// all nodes whose outputs it singularly or fan-in depends on, breaking ties
// by declaration order within a layer (spec.md §5: "ties are broken by
// declaration order"). It panics if deps describes a cycle among nodes,
// which is a pipeline-construction invariant violation that should never
// reach this layer.
func TopologicalOrder(nodes []Node, deps *DependencyStructure) []Node {
	indexOf := make(map[string]int, len(nodes))
	for i, n := range nodes {
		indexOf[n.Name()] = i
	}

	// Build adjacency: node -> ordered, deduplicated list of node names it
	// depends on. An ordered slice (rather than a map) keeps traversal order
	// reproducible across runs, per spec.md §5's determinism guarantee.
	dependsOn := make(map[string][]string, len(nodes))
	seen := make(map[string]map[string]bool, len(nodes))
	for _, n := range nodes {
		seen[n.Name()] = map[string]bool{}
	}
	addDep := func(name, dep string) {
		if seen[name][dep] {
			return
		}
		seen[name][dep] = true
		dependsOn[name] = append(dependsOn[name], dep)
	}
	for _, n := range nodes {
		for _, in := range n.Inputs() {
			ih := InputHandle{NodeName: n.Name(), Input: in.Name}
			if out, ok := deps.GetSingularDep(ih); ok {
				addDep(n.Name(), out.NodeName)
			}
			for _, out := range deps.GetFanInDeps(ih) {
				addDep(n.Name(), out.NodeName)
			}
		}
	}

	visited := make(map[string]int) // 0=unvisited 1=visiting 2=done
	var order []Node
	var visit func(name string)
	visit = func(name string) {
		switch visited[name] {
		case 2:
			return
		case 1:
			panic(fmt.Sprintf("graph: cycle detected at node %q", name))
		}
		visited[name] = 1
		for _, dep := range dependsOn[name] {
			visit(dep)
		}
		visited[name] = 2
		order = append(order, nodes[indexOf[name]])
	}

	for _, n := range nodes {
		visit(n.Name())
	}
	return order
}
