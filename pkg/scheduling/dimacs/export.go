package dimacs

import (
	"fmt"
	"io"

	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
)

// Export writes a full DIMACS min-cost-flow problem description of graph to
// w: a problem line, one node descriptor per node with nonzero excess (plus
// a comment line for every node that carries a Comment), and one arc line
// per arc. This is used the first time a graph is handed to an
// external solver, or whenever the solver requests a fresh full graph
// instead of an incremental update.
func Export(graph *flowgraph.Graph, w io.Writer) error {
	fmt.Fprintf(w, "p min %d %d\n", graph.NumNodes(), graph.NumArcs())

	for id, node := range graph.NodeMap {
		if node.Excess != 0 {
			fmt.Fprintf(w, "n %d %d\n", id, node.Excess)
		}
		if node.Comment != "" {
			fmt.Fprintf(w, "c node %d: %s (%s)\n", id, node.Comment, node.Type)
		}
	}

	for arc := range graph.ArcSet {
		fmt.Fprintf(w, "a %d %d %d %d %d\n", arc.Src, arc.Dst, arc.CapLowerBound, arc.CapUpperBound, arc.Cost)
	}
	return nil
}

// ExportIncremental writes only the changes accumulated since the previous
// round, using the DIMACS extensions the solver's incremental mode expects:
// `n`/`x` for node add/remove, `a` for arc add or update. This is the path
// used on every steady-state round once a full graph has already been sent.
func ExportIncremental(changes []Change, w io.Writer) error {
	for _, c := range changes {
		switch v := c.(type) {
		case *NodeChange:
			if v.Type().Kind() == KindAddNode {
				fmt.Fprintf(w, "n %d %d\n", v.ID, v.Excess)
			} else {
				fmt.Fprintf(w, "x %d\n", v.ID)
			}
			if v.Comment_ != "" {
				fmt.Fprintf(w, "c %s: %s\n", v.ChangeType, v.Comment_)
			}
		case *ArcChange:
			fmt.Fprintf(w, "a %d %d %d %d %d\n", v.Src, v.Dst, v.CapLowerBound, v.CapUpperBound, v.Cost)
			if v.Comment_ != "" {
				fmt.Fprintf(w, "c %s: %s\n", v.ChangeType, v.Comment_)
			}
		}
	}
	return nil
}
