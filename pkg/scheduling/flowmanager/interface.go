package flowmanager

import (
	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/dimacs"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	"github.com/flowsched/flowsched/pkg/scheduling/utility"
)

// GraphManager keeps a flow network in sync with the scheduler's view of
// jobs, tasks and the resource topology, and translates flow solutions back
// into scheduling decisions. It never touches a flowgraph.Graph directly;
// every mutation goes through the GraphChangeManager it exposes so that a
// DIMACS delta stream can be recorded alongside the mutation.
type GraphManager interface {
	LeafNodeIDs() map[flowgraph.NodeID]struct{}
	SinkNode() *flowgraph.Node
	GraphChangeManager() GraphChangeManager

	// AddOrUpdateJobNodes walks each job's task tree, creating any node the
	// graph doesn't yet have and refreshing the arcs of ones it does. It is
	// idempotent: calling it twice with the same job descriptors leaves the
	// graph unchanged the second time.
	AddOrUpdateJobNodes(jobs []*pb.JobDescriptor)

	// UpdateTimeDependentCosts recomputes arc costs that drift with wait
	// time (e.g. an unscheduled task's continuation cost) without touching
	// graph topology. Implemented as a call into AddOrUpdateJobNodes since
	// that already recomputes every cost-bearing arc for the given jobs.
	UpdateTimeDependentCosts(jobs []*pb.JobDescriptor)

	// AddResourceTopology adds an entire resource subtree rooted at topo and
	// refreshes aggregate capacity statistics from the new leaves up to the
	// root resource.
	AddResourceTopology(topo *pb.ResourceTopologyNodeDescriptor)

	UpdateResourceTopology(rtnd *pb.ResourceTopologyNodeDescriptor)

	ComputeTopologyStatistics(node *flowgraph.Node)

	JobCompleted(id utility.JobID)

	JobRemoved(id utility.JobID)

	// NodeBindingToSchedulingDelta turns one flow-solution arc (a task node
	// bound to a resource node) into the SchedulingDelta the caller should
	// apply. It reports the delta rather than appending to a caller-owned
	// slice, since Go has no convenient equivalent of an in/out parameter
	// for that.
	NodeBindingToSchedulingDelta(taskNodeID, resourceNodeID flowgraph.NodeID,
		taskBindings map[utility.TaskID]utility.ResourceID) *pb.SchedulingDelta

	// SchedulingDeltasForPreemptedTasks compares the previous and current
	// flow solutions and reports a PREEMPT delta for every task bound in
	// taskMapping's predecessor but not in taskMapping itself.
	SchedulingDeltasForPreemptedTasks(taskMapping TaskMapping, rmap *utility.ResourceMap) []pb.SchedulingDelta

	// PurgeUnconnectedEquivClassNodes removes equivalence class nodes left
	// dangling by a task state change, preference change, or resource
	// removal. Unscheduled-aggregator, task and resource nodes can never end
	// up dangling this way, so only equivalence class nodes need sweeping.
	PurgeUnconnectedEquivClassNodes()

	// RemoveResourceTopology removes the resource subtree rooted at rd and
	// refreshes aggregate statistics up to the root resource. It reports the
	// PU node IDs the caller must additionally free from any indexes it
	// keeps outside the flow graph.
	RemoveResourceTopology(rd *pb.ResourceDescriptor) []flowgraph.NodeID

	TaskCompleted(id utility.TaskID) flowgraph.NodeID
	TaskRemoved(id utility.TaskID)
	TaskEvicted(id utility.TaskID, rid utility.ResourceID)
	TaskFailed(id utility.TaskID)
	TaskKilled(id utility.TaskID)
	TaskMigrated(id utility.TaskID, from, to utility.ResourceID)
	TaskScheduled(id utility.TaskID, rid utility.ResourceID)

	// UpdateAllCostsToUnscheduledAggs refreshes every task's arc to its
	// job's unscheduled aggregator, and additionally recomputes running
	// tasks' continuation costs.
	UpdateAllCostsToUnscheduledAggs()
}

// GraphChangeManager is the only path GraphManager may use to mutate the
// underlying flow graph. Routing every mutation through here lets the
// manager record a DIMACS change log alongside the mutation and later
// collapse redundant or idempotent entries out of that log before it is
// handed to the solver.
type GraphChangeManager interface {
	AddArc(src, dst *flowgraph.Node,
		capLowerBound, capUpperBound uint64,
		cost int64,
		arcType flowgraph.ArcType,
		changeType dimacs.ChangeType,
		comment string) *flowgraph.Arc

	AddNode(nodeType flowgraph.NodeType,
		excess int64,
		changeType dimacs.ChangeType,
		comment string) *flowgraph.Node

	ChangeArc(arc *flowgraph.Arc, capLowerBound uint64,
		capUpperBound uint64, cost int64,
		changeType dimacs.ChangeType, comment string)

	ChangeArcCapacity(arc *flowgraph.Arc, capacity uint64,
		changeType dimacs.ChangeType, comment string)

	ChangeArcCost(arc *flowgraph.Arc, cost int64,
		changeType dimacs.ChangeType, comment string)

	DeleteArc(arc *flowgraph.Arc, changeType dimacs.ChangeType, comment string)

	DeleteNode(arc *flowgraph.Node, changeType dimacs.ChangeType, comment string)

	// GetGraphChanges returns every change recorded since the last
	// ResetChanges, in the order they were applied.
	GetGraphChanges() []dimacs.Change

	// GetOptimizedGraphChanges is GetGraphChanges with superfluous entries
	// collapsed out: a node added and deleted within one round is left out
	// entirely, and for each (src, dst) arc only its latest change is kept,
	// so an add-then-delete of the same arc leaves the delete entry.
	GetOptimizedGraphChanges() []dimacs.Change

	// ResetChanges clears the recorded change log. Callers invoke this after
	// a scheduling round has consumed GetGraphChanges/GetOptimizedGraphChanges.
	ResetChanges()

	// Graph returns the flow graph instance this manager mutates.
	Graph() *flowgraph.Graph

	CheckNodeType(flowgraph.NodeID, flowgraph.NodeType) bool
}
