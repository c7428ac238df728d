package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/weave/internal/ir"
)

// BindingCycle is a set of instances whose reactive bindings reach each
// other. Such an application can never mount.
type BindingCycle struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeCycles finds binding cycles among an app's instances.
//
// The algorithm:
//  1. Build the instance → bound-instance graph from the bindings
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-binding as a cycle
//
// Nodes are visited in declaration order so the report is stable.
// An acyclic app returns an empty list.
func AnalyzeCycles(spec *ir.AppSpec) []BindingCycle {
	if spec == nil || len(spec.Instances) == 0 {
		return []BindingCycle{}
	}

	graph, order := buildBindingGraph(spec)
	sccs := tarjanSCC(graph, order)

	cycles := []BindingCycle{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	return cycles
}

// bindingGraph maps instance id → ids of the instances it binds to.
type bindingGraph map[string][]string

// buildBindingGraph constructs the graph; references to unknown instances
// are left to Validate.
func buildBindingGraph(spec *ir.AppSpec) (bindingGraph, []string) {
	graph := make(bindingGraph, len(spec.Instances))
	order := make([]string, 0, len(spec.Instances))
	known := make(map[string]bool, len(spec.Instances))
	for _, inst := range spec.Instances {
		known[inst.ID] = true
	}
	for _, inst := range spec.Instances {
		if _, seen := graph[inst.ID]; !seen {
			order = append(order, inst.ID)
			graph[inst.ID] = []string{}
		}
		for _, name := range sortedArgs(inst.Bindings) {
			target := inst.Bindings[name].Instance
			if known[target] {
				graph[inst.ID] = append(graph[inst.ID], target)
			}
		}
	}
	return graph, order
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph bindingGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph bindingGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit the SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(scc []string, graph bindingGraph) BindingCycle {
	if len(scc) == 1 {
		id := scc[0]
		return BindingCycle{
			Path:    []string{id, id},
			Message: fmt.Sprintf("instance binds to its own output: %s → %s", id, id),
		}
	}
	path := reconstructCyclePath(scc, graph)
	return BindingCycle{
		Path:    path,
		Message: fmt.Sprintf("binding cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath walks edges inside the SCC from its last-popped
// member until it returns to the start.
func reconstructCyclePath(scc []string, graph bindingGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
