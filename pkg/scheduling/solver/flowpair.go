package placement

import "github.com/flowsched/flowsched/pkg/scheduling/flowgraph"

// flowPair records that flow units of flow are routed from srcNodeID into
// whichever node currently owns the flowPairMap it lives in.
type flowPair struct {
	srcNodeID flowgraph.NodeID
	flow      uint64
}

// flowPairMap is keyed by source node id so readFlowGraph can accumulate
// every arc feeding a given destination without a duplicate entry per line
// read from the solver's output.
type flowPairMap map[flowgraph.NodeID]*flowPair
