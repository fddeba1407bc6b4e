package assemble

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// plan is the execution graph for a saga.  Every declared operation becomes
// a node whose ID equals its declaration index, and each declaration adds
// an edge from its predecessor, so the graph is a chain.  The orchestrator
// derives its order from a stabilized topological sort; the choreography
// runner treats the steps as independent and takes the node set only.
type plan struct {
	graph *simple.DirectedGraph
	nodes map[int64]*planNode
}

// planNode is a graph node labeled with the operation's name for DOT
// export.
type planNode struct {
	id   int64
	name string
}

func (n *planNode) ID() int64 {
	return n.id
}

// DOTID implements dot.Node so exported plans are readable.
func (n *planNode) DOTID() string {
	return fmt.Sprintf("%d_%s", n.id, n.name)
}

func newPlan() *plan {
	return &plan{
		graph: simple.NewDirectedGraph(),
		nodes: make(map[int64]*planNode),
	}
}

// add appends an operation to the plan, chaining it after the previously
// added node.
func (p *plan) add(op *Operation) {
	node := &planNode{id: int64(op.index), name: op.name}
	p.graph.AddNode(node)
	p.nodes[node.id] = node

	if prev, ok := p.nodes[node.id-1]; ok {
		p.graph.SetEdge(simple.Edge{F: prev, T: node})
	}
}

// order returns the node IDs in execution order using a stabilized
// topological sort with ID tie-breaking, so the order is deterministic and,
// for the chain built by add, equal to declaration order.
func (p *plan) order() ([]int64, error) {
	sorted, err := topo.SortStabilized(p.graph, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool {
			return nodes[i].ID() < nodes[j].ID()
		})
	})
	if err != nil {
		return nil, fmt.Errorf("topological sort failed: %w", err)
	}

	order := make([]int64, len(sorted))
	for i, node := range sorted {
		order[i] = node.ID()
	}
	return order, nil
}

// operationIDs returns every node ID sorted ascending.  Choreography mode
// submits these as independent tasks, ignoring the chain edges.
func (p *plan) operationIDs() []int64 {
	ids := make([]int64, 0, len(p.nodes))
	nodes := p.graph.Nodes()
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// exportToDot renders the plan in Graphviz .dot format.
func (p *plan) exportToDot() (string, error) {
	data, err := dot.Marshal(p.graph, "", "", "")
	if err != nil {
		return "", fmt.Errorf("failed to export plan to DOT format: %v", err)
	}
	return string(data), nil
}
