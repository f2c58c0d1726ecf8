package flowmanager

import "github.com/flowsched/flowsched/pkg/scheduling/flowgraph"

// TaskMapping records the flow solution's binding of task nodes to the
// resource nodes they were routed to, one entry per scheduled task.
type TaskMapping map[flowgraph.NodeID]flowgraph.NodeID
