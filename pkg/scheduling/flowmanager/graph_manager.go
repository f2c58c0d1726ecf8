// Copyright 2016 The ksched Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flowmanager

import (
	"strconv"

	"github.com/golang/glog"

	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/costmodel"
	"github.com/flowsched/flowsched/pkg/scheduling/dimacs"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	"github.com/flowsched/flowsched/pkg/scheduling/utility"
	"github.com/flowsched/flowsched/pkg/scheduling/utility/queue"
)

var _ GraphManager = &graphManager{}

// graphManager owns the live flow graph and keeps it in sync with cluster
// state: jobs and tasks arriving or finishing, resources joining or leaving,
// bindings being made. It never runs the solver itself; it only maintains
// the graph the solver reads and translates the solver's arc flows back into
// SchedulingDelta values the caller can act on.
type graphManager struct {
	// preemptionEnabled controls whether a scheduled task keeps its arcs to
	// the unscheduled aggregator and to alternative resources (so the solver
	// can preempt it in a future round) or has them stripped down to a
	// single pinned running arc.
	preemptionEnabled bool
	// updateRunningPreferences re-evaluates a running task's resource and
	// equivalence-class preference arcs on every round instead of only its
	// running-arc cost. Only meaningful when preemptionEnabled is set.
	updateRunningPreferences bool
	// maxSlotsPerPU is the fallback slot count assigned to a leaf resource
	// node the first time it is added, before any task ever reports actual
	// capacity for it.
	maxSlotsPerPU uint64

	// graphManager is not safe for concurrent use on its own: every mutating
	// method assumes the caller (flowscheduler.scheduler, via
	// schedulingMutex) already serializes access. It has no lock of its own
	// because the caller's critical section already spans a whole
	// scheduling round or lifecycle event, not just one graph mutation.
	cm          GraphChangeManager
	sinkNode    *flowgraph.Node
	costModeler costmodel.CostModeler

	resourceToNode map[utility.ResourceID]*flowgraph.Node
	taskToNode     map[utility.TaskID]*flowgraph.Node
	// taskECToNode maps each task equivalence class to its aggregator node.
	taskECToNode map[utility.EquivClass]*flowgraph.Node
	// jobUnschedToNode maps each job to its unscheduled-aggregator node.
	jobUnschedToNode map[utility.JobID]*flowgraph.Node
	// taskToRunningArc maps every currently-running task to the arc
	// carrying its flow to the resource it's bound to.
	taskToRunningArc map[utility.TaskID]*flowgraph.Arc
	nodeToParentNode map[*flowgraph.Node]*flowgraph.Node
	// leafResourceIDs is the set of resource IDs with a direct arc to the
	// sink (i.e. schedulable machines).
	leafResourceIDs map[utility.ResourceID]struct{}
	leafNodeIDs     map[flowgraph.NodeID]struct{}

	dimacsStats *dimacs.ChangeStats
	// curTraversalCounter marks nodes visited during a topology-statistics
	// walk, incremented once per walk so nodes don't need resetting between
	// traversals.
	curTraversalCounter uint32
}

// taskOrNode pairs a task descriptor with its flow graph node, used while
// walking the job tree looking for nodes that need updating. Node is nil
// for tasks that don't currently warrant a graph node (e.g. not runnable).
type taskOrNode struct {
	Node     *flowgraph.Node
	TaskDesc *pb.TaskDescriptor
}

// NewGraphManager creates an empty flow graph containing only the sink node
// and returns a manager ready to grow it via AddResourceTopology and
// AddOrUpdateJobNodes.
func NewGraphManager(costModeler costmodel.CostModeler, leafResourceIDs map[utility.ResourceID]struct{}, dimacsStats *dimacs.ChangeStats, maxSlotsPerPU uint64) GraphManager {
	cm := NewChangeManager(dimacsStats)
	sinkNode := cm.AddNode(flowgraph.NodeTypeSink, 0, dimacs.AddSinkNode, "SINK")
	// No cluster aggregator node is created here: not every cost model uses
	// one, and the ones that do add it themselves as a special equivalence
	// class node.
	return &graphManager{
		dimacsStats:         dimacsStats,
		leafResourceIDs:     leafResourceIDs,
		cm:                  cm,
		costModeler:         costModeler,
		resourceToNode:      make(map[utility.ResourceID]*flowgraph.Node),
		taskToNode:          make(map[utility.TaskID]*flowgraph.Node),
		taskECToNode:        make(map[utility.EquivClass]*flowgraph.Node),
		jobUnschedToNode:    make(map[utility.JobID]*flowgraph.Node),
		taskToRunningArc:    make(map[utility.TaskID]*flowgraph.Arc),
		nodeToParentNode:    make(map[*flowgraph.Node]*flowgraph.Node),
		leafNodeIDs:         make(map[flowgraph.NodeID]struct{}),
		sinkNode:            sinkNode,
		maxSlotsPerPU:       maxSlotsPerPU,
		curTraversalCounter: 0,
	}
}

func (gm *graphManager) GraphChangeManager() GraphChangeManager {
	return gm.cm
}

func (gm *graphManager) SinkNode() *flowgraph.Node {
	return gm.sinkNode
}

func (gm *graphManager) LeafNodeIDs() map[flowgraph.NodeID]struct{} {
	return gm.leafNodeIDs
}

// ---- Job and task lifecycle -----------------------------------------------

// AddOrUpdateJobNodes ensures every job in jobs has an unscheduled aggregator
// node and a root task node (when the root task warrants one), then walks
// the resulting frontier to bring every reachable task/equivalence-class/
// resource node's arcs up to date.
func (gm *graphManager) AddOrUpdateJobNodes(jobs []*pb.JobDescriptor) {
	nodeQueue := queue.NewFIFO()
	markedNodes := make(map[flowgraph.NodeID]struct{})
	for _, job := range jobs {
		jid := utility.MustJobIDFromString(job.Uuid)
		unschedAggNode := gm.jobUnschedToNode[jid]
		if unschedAggNode == nil {
			unschedAggNode = gm.addUnscheduledAggNode(jid)
		}

		rootTD := job.RootTask
		if rootTaskNode := gm.nodeForTaskID(utility.TaskID(rootTD.Uid)); rootTaskNode != nil {
			nodeQueue.Push(&taskOrNode{Node: rootTaskNode, TaskDesc: rootTD})
			markedNodes[rootTaskNode.ID] = struct{}{}
			continue
		}

		if taskNeedsNode(rootTD) {
			rootTaskNode := gm.addTaskNode(jid, rootTD)
			gm.updateUnscheduledAggNode(unschedAggNode, 1)
			nodeQueue.Push(&taskOrNode{Node: rootTaskNode, TaskDesc: rootTD})
			markedNodes[rootTaskNode.ID] = struct{}{}
		} else {
			// No node for this task; it still needs visiting because its
			// children may be schedulable even though it isn't.
			nodeQueue.Push(&taskOrNode{TaskDesc: rootTD})
		}
	}
	gm.updateFlowGraph(nodeQueue, markedNodes)
}

// UpdateTimeDependentCosts re-derives every arc whose cost depends on wall
// clock time (e.g. wait-time-scaled unscheduled cost) by re-running the same
// walk AddOrUpdateJobNodes does.
func (gm *graphManager) UpdateTimeDependentCosts(jobs []*pb.JobDescriptor) {
	gm.AddOrUpdateJobNodes(jobs)
}

// UpdateResourceTopology refreshes the capacity/slot/running-task counters
// for the subtree rooted at rtnd and propagates the deltas up to the root.
func (gm *graphManager) UpdateResourceTopology(rtnd *pb.ResourceTopologyNodeDescriptor) {
	rd := rtnd.ResourceDesc
	oldCapacity := int64(gm.capacityFromResNodeToParent(rd))
	oldNumSlots := int64(rd.NumSlotsBelow)
	oldNumRunningTasks := int64(rd.NumRunningTasksBelow)
	gm.updateResourceTopologyDFS(rtnd)

	if rtnd.ParentId == "" {
		return
	}
	// updateResourceTopologyDFS already refreshed the arc between rtnd and
	// its parent, so stats propagation starts one level up.
	curNode := gm.nodeForResourceID(utility.MustResourceIDFromString(rtnd.ParentId))
	capDelta := int64(gm.capacityFromResNodeToParent(rd)) - oldCapacity
	slotsDelta := int64(rd.NumSlotsBelow) - oldNumSlots
	runningTasksDelta := int64(rd.NumRunningTasksBelow) - oldNumRunningTasks
	gm.updateResourceStatsUpToRoot(curNode, capDelta, slotsDelta, runningTasksDelta)
}

// AddResourceTopology grafts the subtree rooted at rtnd onto the flow graph
// and propagates its capacity up to the root of the topology.
func (gm *graphManager) AddResourceTopology(rtnd *pb.ResourceTopologyNodeDescriptor) {
	if rtnd == nil {
		glog.Fatalf("flowmanager: AddResourceTopology called with nil descriptor")
	}
	rd := rtnd.ResourceDesc
	gm.addResourceTopologyDFS(rtnd)
	if rtnd.ParentId == "" {
		return
	}
	// addResourceTopologyDFS already added the arc between rtnd and its
	// parent, so propagation starts one level up.
	rID := utility.MustResourceIDFromString(rtnd.ParentId)
	currNode := gm.nodeForResourceID(rID)
	capacityToParent := gm.capacityFromResNodeToParent(rd)
	gm.updateResourceStatsUpToRoot(currNode, int64(capacityToParent), int64(rd.NumSlotsBelow), int64(rd.NumRunningTasksBelow))
}

// NodeBindingToSchedulingDelta translates one arc the solver routed flow
// across into the SchedulingDelta the caller should apply: PLACE for a task
// getting its first binding, MIGRATE if it was bound elsewhere, or nil (with
// the running-tasks list repaired) if it's simply confirming its existing
// placement.
func (gm *graphManager) NodeBindingToSchedulingDelta(tid, rid flowgraph.NodeID, tb map[utility.TaskID]utility.ResourceID) *pb.SchedulingDelta {
	taskNode := gm.cm.Graph().Node(tid)
	if !taskNode.IsTaskNode() {
		glog.Fatalf("flowmanager: node %d bound by solver is not a task node", tid)
	}
	resNode := gm.cm.Graph().Node(rid)
	var deltaType pb.SchedulingDelta_SchedulingDeltaType
	switch resNode.Type {
	case flowgraph.NodeTypeMachine, flowgraph.NodeTypePu:
		deltaType = pb.SchedulingDelta_PLACE
	case flowgraph.NodeTypeJobAggregator:
		// Flow terminated on the unscheduled aggregator: the task stays
		// unscheduled this round.
		return nil
	default:
		glog.Fatalf("flowmanager: node %d bound by solver is neither a leaf resource nor an unscheduled aggregator", rid)
	}

	task := taskNode.Task
	if task == nil {
		glog.Fatalf("flowmanager: task node %d has no task descriptor", tid)
	}
	res := resNode.ResourceDescriptor
	if res == nil {
		glog.Fatalf("flowmanager: resource node %d has no resource descriptor", rid)
	}

	boundRes, alreadyBound := tb[utility.TaskID(task.Uid)]
	if !alreadyBound {
		return &pb.SchedulingDelta{
			Type:       deltaType,
			TaskId:     task.Uid,
			ResourceId: res.Uuid,
		}
	}

	if boundRes != utility.MustResourceIDFromString(res.Uuid) {
		return &pb.SchedulingDelta{
			Type:       pb.SchedulingDelta_MIGRATE,
			TaskId:     task.Uid,
			ResourceId: res.Uuid,
		}
	}

	// Confirming an existing placement: no delta needed, but the resource's
	// running-tasks list was cleared earlier in the round and must be
	// restored.
	res.CurrentRunningTasks = append(res.CurrentRunningTasks, task.Uid)
	return nil
}

// SchedulingDeltasForPreemptedTasks compares every machine's running-tasks
// list against the tasks the latest solve actually kept bound, and emits a
// PREEMPT delta for each one that fell out. It also clears every machine's
// running-tasks list; callers repopulate it via NodeBindingToSchedulingDelta
// as they walk the new solution.
func (gm *graphManager) SchedulingDeltasForPreemptedTasks(taskMappings TaskMapping, rmap *utility.ResourceMap) []pb.SchedulingDelta {
	var deltas []pb.SchedulingDelta

	rmap.RLock()
	defer rmap.RUnlock()

	for _, resourceStatus := range rmap.UnsafeGet() {
		rd := resourceStatus.Descriptor
		for _, taskID := range rd.CurrentRunningTasks {
			taskNode := gm.nodeForTaskID(utility.TaskID(taskID))
			if taskNode == nil {
				// The task already finished; nothing to preempt.
				continue
			}
			if _, stillBound := taskMappings[taskNode.ID]; !stillBound {
				deltas = append(deltas, pb.SchedulingDelta{
					TaskId:     uint64(taskID),
					ResourceId: rd.Uuid,
					Type:       pb.SchedulingDelta_PREEMPT,
				})
			}
		}
		rd.CurrentRunningTasks = make([]uint64, 0)
	}
	return deltas
}

func (gm *graphManager) JobCompleted(id utility.JobID) {
	// The job's task nodes are already gone by this point; only the
	// unscheduled aggregator remains to clean up.
	gm.removeUnscheduledAggNode(id)
}

func (gm *graphManager) JobRemoved(id utility.JobID) {
	gm.removeUnscheduledAggNode(id)
}

// PurgeUnconnectedEquivClassNodes removes every equivalence class node with
// no incoming arcs. A node left dangling by one removal may only become
// unconnected after a later removal in the same batch, so a full purge can
// take more than one call before the graph settles.
func (gm *graphManager) PurgeUnconnectedEquivClassNodes() {
	for _, node := range gm.taskECToNode {
		if len(node.IncomingArcMap) == 0 {
			gm.removeEquivClassNode(node)
		}
	}
}

// RemoveResourceTopology deletes the subtree rooted at rd from the flow
// graph, propagates the capacity loss up to the root, and returns the IDs
// of every PU that was removed so the caller can evict tasks bound there.
func (gm *graphManager) RemoveResourceTopology(rd *pb.ResourceDescriptor) []flowgraph.NodeID {
	rID := utility.MustResourceIDFromString(rd.Uuid)
	rNode := gm.nodeForResourceID(rID)
	if rNode == nil {
		glog.Fatalf("flowmanager: RemoveResourceTopology: no node for resource %v", rID)
	}
	var removedPUs []flowgraph.NodeID
	var capDelta int64
	for _, arc := range rNode.OutgoingArcMap {
		capDelta -= int64(arc.CapUpperBound)
		if arc.DstNode.ResourceID != 0 {
			removedPUs = append(removedPUs, gm.traverseAndRemoveTopology(arc.DstNode)...)
		}
	}
	gm.updateResourceStatsUpToRoot(rNode, capDelta, -int64(rNode.ResourceDescriptor.NumSlotsBelow), -int64(rNode.ResourceDescriptor.NumRunningTasksBelow))

	if rNode.Type == flowgraph.NodeTypePu {
		removedPUs = append(removedPUs, rNode.ID)
	} else if rNode.Type == flowgraph.NodeTypeMachine {
		gm.costModeler.RemoveMachine(rNode.ResourceID)
	}
	gm.removeResourceNode(rNode)
	return removedPUs
}

// TaskCompleted removes a finished task's node from the graph, drops the
// task from the cost model's bookkeeping, and returns the node ID it used to
// occupy.
func (gm *graphManager) TaskCompleted(id utility.TaskID) flowgraph.NodeID {
	taskNode := gm.taskToNode[id]
	if taskNode == nil {
		glog.Fatalf("flowmanager: TaskCompleted: no node for task %v", id)
	}
	if gm.preemptionEnabled {
		// Without preemption, pinning the task already took its unit off
		// the unscheduled aggregator's capacity to the sink; with
		// preemption the task was never pinned, so the unit comes off here.
		gm.updateUnscheduledAggNode(gm.unschedAggNodeForJobID(taskNode.JobID), -1)
	}

	delete(gm.taskToRunningArc, id)
	nodeID := gm.removeTaskNode(taskNode)
	gm.costModeler.RemoveTask(id)
	return nodeID
}

func (gm *graphManager) TaskMigrated(id utility.TaskID, from, to utility.ResourceID) {
	gm.TaskEvicted(id, from)
	gm.TaskScheduled(id, to)
}

func (gm *graphManager) TaskRemoved(id utility.TaskID) {
	gm.removeTaskHelper(id)
}

func (gm *graphManager) TaskEvicted(taskID utility.TaskID, rid utility.ResourceID) {
	taskNode := gm.nodeForTaskID(taskID)
	if taskNode == nil {
		glog.Fatalf("flowmanager: TaskEvicted: no node for task %v", taskID)
	}
	taskNode.Type = flowgraph.NodeTypeUnscheduledTask

	arc, ok := gm.taskToRunningArc[taskID]
	if !ok {
		glog.Fatalf("flowmanager: TaskEvicted: no running arc for task %v", taskID)
	}
	delete(gm.taskToRunningArc, taskID)
	gm.cm.DeleteArc(arc, dimacs.DelArcEvictedTask, "TaskEvicted: delete running arc")

	if !gm.preemptionEnabled {
		// With preemption disabled the evicted task can now sit unscheduled
		// indefinitely, so the unscheduled aggregator's capacity to the
		// sink must grow to allow it.
		jobID := utility.MustJobIDFromString(taskNode.Task.JobId)
		unschedAggNode := gm.unschedAggNodeForJobID(jobID)
		if unschedAggNode == nil {
			glog.Fatalf("flowmanager: TaskEvicted: no unscheduled aggregator for job %v", jobID)
		}
		gm.updateUnscheduledAggNode(unschedAggNode, 1)
	}
	// The task's remaining arcs are refreshed on the next scheduling round.
}

func (gm *graphManager) removeTaskHelper(taskid utility.TaskID) {
	taskNode := gm.nodeForTaskID(taskid)
	if taskNode == nil {
		// Already gone, e.g. the task completed before this call arrived.
		return
	}
	if gm.preemptionEnabled {
		unschedAggNode := gm.unschedAggNodeForJobID(taskNode.JobID)
		gm.updateUnscheduledAggNode(unschedAggNode, -1)
	}
	delete(gm.taskToRunningArc, taskid)
	gm.removeTaskNode(taskNode)
	gm.costModeler.RemoveTask(taskid)
}

func (gm *graphManager) TaskFailed(id utility.TaskID) {
	gm.removeTaskHelper(id)
}

func (gm *graphManager) TaskKilled(id utility.TaskID) {
	gm.removeTaskHelper(id)
}

func (gm *graphManager) TaskScheduled(id utility.TaskID, rid utility.ResourceID) {
	taskNode := gm.nodeForTaskID(id)
	if taskNode == nil {
		glog.Fatalf("flowmanager: TaskScheduled: no node for task %v", id)
	}
	taskNode.Type = flowgraph.NodeTypeScheduledTask
	resNode := gm.nodeForResourceID(rid)
	gm.updateArcsForScheduledTask(taskNode, resNode)
}

// UpdateAllCostsToUnscheduledAggs refreshes every task's arc towards its
// unscheduled aggregator (or its running-arc cost, for tasks already bound)
// across every job in the graph. Used before a full solve when costs may
// have drifted since the last incremental update.
func (gm *graphManager) UpdateAllCostsToUnscheduledAggs() {
	for _, jobNode := range gm.jobUnschedToNode {
		for _, arc := range jobNode.IncomingArcMap {
			if arc.SrcNode.IsTaskAssignedOrRunning() {
				gm.updateRunningTaskNode(arc.SrcNode, false, nil, nil)
			} else {
				gm.updateTaskToUnscheduledAggArc(arc.SrcNode)
			}
		}
	}
}

// ComputeTopologyStatistics runs a BFS from node (normally the sink),
// propagating usage statistics backwards along incoming arcs via the cost
// model's Gather/Update hooks. Only correct when the resource topology is a
// tree: on a DAG a node's statistics could be read by the BFS before all of
// its children have contributed to them.
func (gm *graphManager) ComputeTopologyStatistics(node *flowgraph.Node) {
	toVisit := queue.NewFIFO()
	// curTraversalCounter marks nodes visited in this walk so we don't have
	// to reset every node's Visited field before each traversal.
	gm.curTraversalCounter++
	toVisit.Push(node)
	node.Visited = gm.curTraversalCounter
	for !toVisit.IsEmpty() {
		curNode := toVisit.Pop().(*flowgraph.Node)
		for _, incomingArc := range curNode.IncomingArcMap {
			if incomingArc.SrcNode.Visited != gm.curTraversalCounter {
				gm.costModeler.PrepareStats(incomingArc.SrcNode)
				toVisit.Push(incomingArc.SrcNode)
				incomingArc.SrcNode.Visited = gm.curTraversalCounter
			}
			incomingArc.SrcNode = gm.costModeler.GatherStats(incomingArc.SrcNode, curNode)
			incomingArc.SrcNode = gm.costModeler.UpdateStats(incomingArc.SrcNode, curNode)
		}
	}
}

// ---- Node construction ------------------------------------------------

func (gm *graphManager) addEquivClassNode(ec utility.EquivClass) *flowgraph.Node {
	ecNode := gm.cm.AddNode(flowgraph.NodeTypeEquivClass, 0, dimacs.AddEquivClassNode, "AddEquivClassNode")
	ecNode.EquivClass = ec
	if _, exists := gm.taskECToNode[ec]; exists {
		glog.Fatalf("flowmanager: equivalence class %v already has a node", ec)
	}
	gm.taskECToNode[ec] = ecNode
	return ecNode
}

func (gm *graphManager) addResourceNode(rd *pb.ResourceDescriptor) *flowgraph.Node {
	if rd == nil {
		glog.Fatalf("flowmanager: addResourceNode called with nil descriptor")
	}
	comment := "AddResourceNode"
	if rd.FriendlyName != "" {
		comment = rd.FriendlyName
	}

	resourceNode := gm.cm.AddNode(flowgraph.TransformToResourceNodeType(rd), 0, dimacs.AddResourceNode, comment)
	rID := utility.MustResourceIDFromString(rd.Uuid)
	resourceNode.ResourceID = rID
	resourceNode.ResourceDescriptor = rd
	if _, exists := gm.resourceToNode[rID]; exists {
		glog.Fatalf("flowmanager: resource %v already has a node", rID)
	}
	gm.resourceToNode[rID] = resourceNode

	if resourceNode.Type == flowgraph.NodeTypePu {
		gm.leafNodeIDs[resourceNode.ID] = struct{}{}
		gm.leafResourceIDs[rID] = struct{}{}
	}
	return resourceNode
}

// addResourceTopologyDFS adds every node in the subtree rooted at rtnd,
// connects any new PU/machine node to the sink, computes fresh statistics
// for every new node, and finally wires the subtree root to its parent.
func (gm *graphManager) addResourceTopologyDFS(rtnd *pb.ResourceTopologyNodeDescriptor) {
	rd := rtnd.ResourceDesc
	rID := utility.MustResourceIDFromString(rd.Uuid)
	resourceNode := gm.nodeForResourceID(rID)

	addedNewResNode := resourceNode == nil
	if addedNewResNode {
		resourceNode = gm.addResourceNode(rd)
		switch resourceNode.Type {
		case flowgraph.NodeTypePu:
			gm.updateResToSinkArc(resourceNode)
			if rd.NumSlotsBelow == 0 {
				rd.NumSlotsBelow = gm.maxSlotsPerPU
				if rd.NumRunningTasksBelow == 0 {
					rd.NumRunningTasksBelow = uint64(len(rd.CurrentRunningTasks))
				}
			}
		case flowgraph.NodeTypeMachine:
			gm.costModeler.AddMachine(rtnd)
			gm.updateResToSinkArc(resourceNode)
			rd.NumRunningTasksBelow = 0
		default:
			rd.NumRunningTasksBelow = 0
		}
	} else {
		// The resource was already registered; this call is refreshing its
		// slot count rather than adding it for the first time.
		rd.NumSlotsBelow = gm.costModeler.LeafResourceNodeToSink(rID).Capacity
		rd.NumRunningTasksBelow = 0
	}

	gm.visitTopologyChildren(rtnd)

	if !addedNewResNode || rtnd.ParentId == "" {
		return
	}

	pID := utility.MustResourceIDFromString(rtnd.ParentId)
	parentNode := gm.nodeForResourceID(pID)
	if parentNode == nil {
		glog.Fatalf("flowmanager: no node for parent resource %v", pID)
	}
	if _, exists := gm.nodeToParentNode[resourceNode]; exists {
		glog.Fatalf("flowmanager: resource %v already has a parent mapping", rd.Uuid)
	}
	gm.nodeToParentNode[resourceNode] = parentNode

	arcDescriptor := gm.costModeler.ResourceNodeToResourceNode(parentNode.ResourceDescriptor, rd)
	gm.cm.AddArc(parentNode, resourceNode, arcDescriptor.MinFlow, gm.capacityFromResNodeToParent(rd), arcDescriptor.Cost,
		flowgraph.ArcTypeOther, dimacs.AddArcBetweenRes, "AddResourceTopologyDFS")
}

func (gm *graphManager) addTaskNode(jobID utility.JobID, td *pb.TaskDescriptor) *flowgraph.Node {
	if td == nil {
		glog.Fatalf("flowmanager: addTaskNode called with nil descriptor")
	}
	gm.costModeler.AddTask(utility.TaskID(td.Uid))
	taskNode := gm.cm.AddNode(flowgraph.NodeTypeUnscheduledTask, 1, dimacs.AddTaskNode, "AddTaskNode")
	taskNode.Task = td
	taskNode.JobID = jobID
	gm.sinkNode.Excess--
	if _, exists := gm.taskToNode[utility.TaskID(td.Uid)]; exists {
		glog.Fatalf("flowmanager: task %v already has a node", td.Uid)
	}
	gm.taskToNode[utility.TaskID(td.Uid)] = taskNode
	return taskNode
}

func (gm *graphManager) addUnscheduledAggNode(jobID utility.JobID) *flowgraph.Node {
	comment := "UNSCHED_AGG_for_" + strconv.FormatInt(int64(jobID), 10)
	unschedAggNode := gm.cm.AddNode(flowgraph.NodeTypeJobAggregator, 0, dimacs.AddUnschedJobNode, comment)
	unschedAggNode.JobID = jobID
	if _, exists := gm.jobUnschedToNode[jobID]; exists {
		glog.Fatalf("flowmanager: job %v already has an unscheduled aggregator", jobID)
	}
	gm.jobUnschedToNode[jobID] = unschedAggNode
	return unschedAggNode
}

func (gm *graphManager) capacityFromResNodeToParent(rd *pb.ResourceDescriptor) uint64 {
	if gm.preemptionEnabled {
		return rd.NumSlotsBelow
	}
	return rd.NumSlotsBelow - rd.NumRunningTasksBelow
}

// pinTaskToNode restricts taskNode's outgoing arcs to a single running arc
// to resourceNode, deleting every other preference arc. If a preference arc
// to resourceNode already existed it's transformed into the running arc
// rather than replaced, since the graph doesn't support parallel arcs
// between the same two nodes.
func (gm *graphManager) pinTaskToNode(taskNode, resourceNode *flowgraph.Node) {
	const lowBoundCapacity = uint64(0)
	addedRunningArc := false

	for dstNodeID, arc := range taskNode.OutgoingArcMap {
		if dstNodeID != resourceNode.ID {
			gm.cm.DeleteArc(arc, dimacs.DelArcTaskToEquivClass, "PinTaskNode")
			continue
		}

		addedRunningArc = true
		arcDescriptor := gm.costModeler.TaskContinuation(utility.TaskID(taskNode.Task.Uid))
		arc.Type = flowgraph.ArcTypeRunning
		gm.cm.ChangeArc(arc, lowBoundCapacity, arcDescriptor.Capacity, arcDescriptor.Cost, dimacs.ChgArcRunningTask, "PinTaskToNode: transform to running arc")

		if _, exists := gm.taskToRunningArc[utility.TaskID(taskNode.Task.Uid)]; exists {
			glog.Fatalf("flowmanager: task %v already has a running arc", taskNode.Task.Uid)
		}
		gm.taskToRunningArc[utility.TaskID(taskNode.Task.Uid)] = arc
	}

	if !addedRunningArc {
		arcDescriptor := gm.costModeler.TaskContinuation(utility.TaskID(taskNode.Task.Uid))
		newArc := gm.cm.AddArc(taskNode, resourceNode, lowBoundCapacity, arcDescriptor.Capacity, arcDescriptor.Cost,
			flowgraph.ArcTypeRunning, dimacs.AddArcRunningTask, "PinTaskToNode: add running arc")

		if _, exists := gm.taskToRunningArc[utility.TaskID(taskNode.Task.Uid)]; exists {
			glog.Fatalf("flowmanager: task %v already has a running arc", taskNode.Task.Uid)
		}
		gm.taskToRunningArc[utility.TaskID(taskNode.Task.Uid)] = newArc
	}
}

// ---- Node/arc teardown -------------------------------------------------

func (gm *graphManager) removeEquivClassNode(ecNode *flowgraph.Node) {
	delete(gm.taskECToNode, ecNode.EquivClass)
	gm.cm.DeleteNode(ecNode, dimacs.DelEquivClassNode, "RemoveEquivClassNode")
}

// removeInvalidECPrefArcs deletes node's outgoing arcs to equivalence class
// nodes that are no longer in prefEcs.
func (gm *graphManager) removeInvalidECPrefArcs(node *flowgraph.Node, prefEcs []utility.EquivClass, changeType dimacs.ChangeType) {
	prefECSet := make(map[utility.EquivClass]struct{}, len(prefEcs))
	for _, ec := range prefEcs {
		prefECSet[ec] = struct{}{}
	}

	var toDelete []*flowgraph.Arc
	for _, arc := range node.OutgoingArcMap {
		if !arc.DstNode.IsEquivalenceClassNode() {
			continue
		}
		if _, stillPreferred := prefECSet[arc.DstNode.EquivClass]; stillPreferred {
			continue
		}
		toDelete = append(toDelete, arc)
	}

	for _, arc := range toDelete {
		gm.cm.DeleteArc(arc, changeType, "RemoveInvalidECPrefArcs")
	}
}

// removeInvalidPrefResArcs deletes node's outgoing preference arcs (never
// its running arc) to resource nodes no longer in prefResources.
func (gm *graphManager) removeInvalidPrefResArcs(node *flowgraph.Node, prefResources []utility.ResourceID, changeType dimacs.ChangeType) {
	prefResSet := make(map[utility.ResourceID]struct{}, len(prefResources))
	for _, rID := range prefResources {
		prefResSet[rID] = struct{}{}
	}

	var toDelete []*flowgraph.Arc
	for _, arc := range node.OutgoingArcMap {
		rID := arc.DstNode.ResourceID
		if rID == 0 {
			continue
		}
		if _, stillPreferred := prefResSet[rID]; stillPreferred {
			continue
		}
		if arc.Type == flowgraph.ArcTypeRunning {
			continue
		}
		toDelete = append(toDelete, arc)
	}

	for _, arc := range toDelete {
		gm.cm.DeleteArc(arc, changeType, "RemoveInvalidResPrefArcs")
	}
}

func (gm *graphManager) removeResourceNode(resNode *flowgraph.Node) {
	delete(gm.nodeToParentNode, resNode)
	delete(gm.leafNodeIDs, resNode.ID)
	delete(gm.leafResourceIDs, resNode.ResourceID)
	delete(gm.resourceToNode, resNode.ResourceID)
	gm.cm.DeleteNode(resNode, dimacs.DelResourceNode, "RemoveResourceNode")
}

func (gm *graphManager) removeTaskNode(n *flowgraph.Node) flowgraph.NodeID {
	if n == nil {
		glog.Fatalf("flowmanager: removeTaskNode called with nil node")
	}
	taskNodeID := n.ID
	n.Excess = 0
	gm.sinkNode.Excess++
	delete(gm.taskToNode, utility.TaskID(n.Task.Uid))
	gm.cm.DeleteNode(n, dimacs.DelTaskNode, "RemoveTaskNode")
	return taskNodeID
}

func (gm *graphManager) removeUnscheduledAggNode(jobID utility.JobID) {
	unschedAggNode := gm.unschedAggNodeForJobID(jobID)
	if unschedAggNode == nil {
		return
	}
	delete(gm.jobUnschedToNode, jobID)
	gm.cm.DeleteNode(unschedAggNode, dimacs.DelUnschedJobNode, "RemoveUnscheduledAggNode")
}

// traverseAndRemoveTopology removes the subtree rooted at resNode and
// returns the IDs of every PU node within it, for the caller to evict tasks
// from.
func (gm *graphManager) traverseAndRemoveTopology(resNode *flowgraph.Node) []flowgraph.NodeID {
	var removedPUs []flowgraph.NodeID
	for _, arc := range resNode.OutgoingArcMap {
		if arc.DstNode.ResourceID != 0 {
			removedPUs = append(removedPUs, gm.traverseAndRemoveTopology(arc.DstNode)...)
		}
	}
	switch resNode.Type {
	case flowgraph.NodeTypePu:
		removedPUs = append(removedPUs, resNode.ID)
	case flowgraph.NodeTypeMachine:
		gm.costModeler.RemoveMachine(resNode.ResourceID)
	}
	gm.removeResourceNode(resNode)
	return removedPUs
}

// ---- Arc maintenance ----------------------------------------------------

// updateArcsForScheduledTask reconciles taskNode's arcs with it now being
// bound to resourceNode. With preemption disabled every other arc is
// stripped away, leaving only the running arc. With preemption enabled the
// task keeps its other preference arcs (so it remains a preemption
// candidate) and only the running arc and the arc to its unscheduled
// aggregator are touched.
func (gm *graphManager) updateArcsForScheduledTask(taskNode, resourceNode *flowgraph.Node) {
	if taskNode == nil {
		glog.Fatalf("flowmanager: updateArcsForScheduledTask called with nil task node")
	}
	if resourceNode == nil {
		glog.Fatalf("flowmanager: updateArcsForScheduledTask called with nil resource node")
	}
	if !gm.preemptionEnabled {
		gm.updateUnscheduledAggNode(gm.unschedAggNodeForJobID(taskNode.JobID), -1)
		gm.pinTaskToNode(taskNode, resourceNode)
		return
	}

	taskID := utility.TaskID(taskNode.Task.Uid)
	arcDescriptor := gm.costModeler.TaskContinuation(taskID)
	if runningArc := gm.taskToRunningArc[taskID]; runningArc != nil {
		// A preference arc to this same destination already exists; turn it
		// into the running arc rather than adding a parallel one.
		runningArc.Type = flowgraph.ArcTypeRunning
		gm.cm.ChangeArc(runningArc, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, dimacs.ChgArcRunningTask, "UpdateArcsForScheduledTask: transform to running arc")
		gm.updateRunningTaskToUnscheduledAggArc(taskNode)
		return
	}

	runningArc := gm.cm.AddArc(taskNode, resourceNode, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost,
		flowgraph.ArcTypeRunning, dimacs.AddArcRunningTask, "UpdateArcsForScheduledTask: add running arc")
	if _, exists := gm.taskToRunningArc[taskID]; exists {
		glog.Fatalf("flowmanager: task %v already has a running arc", taskID)
	}
	gm.taskToRunningArc[taskID] = runningArc
	gm.updateRunningTaskToUnscheduledAggArc(taskNode)
}

// updateChildrenTasks pushes each of td's spawned child tasks onto
// nodeQueue, creating a graph node for any child that newly needs one.
// Children are visited even when td itself is completed, failed or
// running, since they may still be independently schedulable.
func (gm *graphManager) updateChildrenTasks(td *pb.TaskDescriptor, nodeQueue queue.FIFO, markedNodes map[flowgraph.NodeID]struct{}) {
	for _, childTask := range td.Spawned {
		if childTaskNode := gm.nodeForTaskID(utility.TaskID(childTask.Uid)); childTaskNode != nil {
			if _, visited := markedNodes[childTaskNode.ID]; !visited {
				nodeQueue.Push(&taskOrNode{Node: childTaskNode, TaskDesc: childTask})
				markedNodes[childTaskNode.ID] = struct{}{}
			}
			continue
		}

		if !taskNeedsNode(childTask) {
			nodeQueue.Push(&taskOrNode{Node: nil, TaskDesc: childTask})
			continue
		}

		jobID := utility.MustJobIDFromString(childTask.JobId)
		childTaskNode := gm.addTaskNode(jobID, childTask)
		gm.updateUnscheduledAggNode(gm.unschedAggNodeForJobID(jobID), 1)
		nodeQueue.Push(&taskOrNode{Node: childTaskNode, TaskDesc: childTask})
		markedNodes[childTaskNode.ID] = struct{}{}
	}
}

func (gm *graphManager) updateEquivClassNode(ecNode *flowgraph.Node, nodeQueue queue.FIFO, markedNodes map[flowgraph.NodeID]struct{}) {
	gm.updateEquivToEquivArcs(ecNode, nodeQueue, markedNodes)
	gm.updateEquivToResArcs(ecNode, nodeQueue, markedNodes)
}

// updateEquivToEquivArcs refreshes ecNode's preference arcs to other
// equivalence classes, adding a node/arc for any newly preferred class and
// queueing newly-discovered nodes for their own update pass.
func (gm *graphManager) updateEquivToEquivArcs(ecNode *flowgraph.Node, nodeQueue queue.FIFO, markedNodes map[flowgraph.NodeID]struct{}) {
	prefECs := gm.costModeler.GetEquivClassToEquivClassesArcs(ecNode.EquivClass)
	if len(prefECs) == 0 {
		gm.removeInvalidECPrefArcs(ecNode, prefECs, dimacs.DelArcBetweenEquivClass)
		return
	}

	for _, prefEC := range prefECs {
		prefECNode := gm.nodeForEquivClass(prefEC)
		if prefECNode == nil {
			prefECNode = gm.addEquivClassNode(prefEC)
		}

		arcDescriptor := gm.costModeler.EquivClassToEquivClass(ecNode.EquivClass, prefEC)
		if arc := gm.cm.Graph().GetArc(ecNode, prefECNode); arc == nil {
			gm.cm.AddArc(ecNode, prefECNode, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, flowgraph.ArcTypeOther, dimacs.AddArcBetweenEquivClass, "UpdateEquivClassNode")
		} else {
			gm.cm.ChangeArc(arc, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, dimacs.ChgArcBetweenEquivClass, "UpdateEquivClassNode")
		}

		if _, visited := markedNodes[prefECNode.ID]; !visited {
			markedNodes[prefECNode.ID] = struct{}{}
			nodeQueue.Push(&taskOrNode{Node: prefECNode, TaskDesc: prefECNode.Task})
		}
	}
	gm.removeInvalidECPrefArcs(ecNode, prefECs, dimacs.DelArcBetweenEquivClass)
}

// updateEquivToResArcs refreshes ecNode's preference arcs to resource nodes.
func (gm *graphManager) updateEquivToResArcs(ecNode *flowgraph.Node, nodeQueue queue.FIFO, markedNodes map[flowgraph.NodeID]struct{}) {
	prefResources := gm.costModeler.GetOutgoingEquivClassPrefArcs(ecNode.EquivClass)
	if len(prefResources) == 0 {
		gm.removeInvalidPrefResArcs(ecNode, prefResources, dimacs.DelArcEquivClassToRes)
		return
	}

	for _, prefRID := range prefResources {
		prefResNode := gm.nodeForResourceID(prefRID)
		if prefResNode == nil {
			// A cost model can never prefer a resource before it has been
			// added to the graph.
			glog.Fatalf("flowmanager: equivalence class prefers unknown resource %v", prefRID)
		}

		arcDescriptor := gm.costModeler.EquivClassToResourceNode(ecNode.EquivClass, prefRID)
		if arc := gm.cm.Graph().GetArc(ecNode, prefResNode); arc == nil {
			gm.cm.AddArc(ecNode, prefResNode, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, flowgraph.ArcTypeOther, dimacs.AddArcEquivClassToRes, "UpdateEquivToResArcs")
		} else {
			gm.cm.ChangeArc(arc, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, dimacs.ChgArcEquivClassToRes, "UpdateEquivToResArcs")
		}

		if _, visited := markedNodes[prefResNode.ID]; !visited {
			markedNodes[prefResNode.ID] = struct{}{}
			nodeQueue.Push(&taskOrNode{Node: prefResNode, TaskDesc: prefResNode.Task})
		}
	}
	gm.removeInvalidPrefResArcs(ecNode, prefResources, dimacs.DelArcEquivClassToRes)
}

// updateFlowGraph drains nodeQueue, dispatching each entry to the update
// routine for its node kind, until the frontier of nodes reachable from the
// original seed set has been fully refreshed.
func (gm *graphManager) updateFlowGraph(nodeQueue queue.FIFO, markedNodes map[flowgraph.NodeID]struct{}) {
	for !nodeQueue.IsEmpty() {
		entry := nodeQueue.Pop().(*taskOrNode)
		node, task := entry.Node, entry.TaskDesc
		switch {
		case node == nil:
			gm.updateChildrenTasks(task, nodeQueue, markedNodes)
		case node.IsTaskNode():
			gm.updateTaskNode(node, nodeQueue, markedNodes)
			gm.updateChildrenTasks(task, nodeQueue, markedNodes)
		case node.IsEquivalenceClassNode():
			gm.updateEquivClassNode(node, nodeQueue, markedNodes)
		case node.IsResourceNode():
			gm.updateResourceNode(node, nodeQueue, markedNodes)
		default:
			glog.Fatalf("flowmanager: updateFlowGraph: unexpected node type %v", node.Type)
		}
	}
}

func (gm *graphManager) updateResourceNode(resNode *flowgraph.Node, nodeQueue queue.FIFO, markedNodes map[flowgraph.NodeID]struct{}) {
	gm.updateResOutgoingArcs(resNode, nodeQueue, markedNodes)
}

// updateResourceStatsUpToRoot applies capDelta/slotsDelta/runningTasksDelta
// to every ancestor of currNode, one level at a time, stopping once it
// reaches the root of the topology (a node with no parent mapping).
func (gm *graphManager) updateResourceStatsUpToRoot(currNode *flowgraph.Node, capDelta, slotsDelta, runningTasksDelta int64) {
	for {
		parentNode := gm.nodeToParentNode[currNode]
		if parentNode == nil {
			return
		}

		parentArc := gm.cm.Graph().GetArc(parentNode, currNode)
		if parentArc == nil {
			glog.Fatalf("flowmanager: no arc from parent %v to child %v", parentNode.ID, currNode.ID)
		}

		newCapacity := uint64(int64(parentArc.CapUpperBound) + capDelta)
		gm.cm.ChangeArcCapacity(parentArc, newCapacity, dimacs.ChgArcBetweenRes, "UpdateCapacityUpToRoot")
		parentNode.ResourceDescriptor.NumSlotsBelow = uint64(int64(parentNode.ResourceDescriptor.NumSlotsBelow) + slotsDelta)
		parentNode.ResourceDescriptor.NumRunningTasksBelow = uint64(int64(parentNode.ResourceDescriptor.NumRunningTasksBelow) + runningTasksDelta)

		currNode = parentNode
	}
}

// updateResourceTopologyDFS recomputes NumSlotsBelow/NumRunningTasksBelow
// bottom-up across the subtree rooted at rtnd, then updates the arc to its
// parent to reflect the new capacity.
func (gm *graphManager) updateResourceTopologyDFS(rtnd *pb.ResourceTopologyNodeDescriptor) {
	rd := rtnd.ResourceDesc
	rd.NumSlotsBelow = 0
	rd.NumRunningTasksBelow = 0
	if rd.Type == pb.ResourceDescriptor_RESOURCE_PU {
		rd.NumSlotsBelow = gm.maxSlotsPerPU
		rd.NumRunningTasksBelow = uint64(len(rd.CurrentRunningTasks))
	}

	for _, child := range rtnd.Children {
		gm.updateResourceTopologyDFS(child)
		rd.NumSlotsBelow += child.ResourceDesc.NumSlotsBelow
		rd.NumRunningTasksBelow += child.ResourceDesc.NumRunningTasksBelow
	}

	if rtnd.ParentId == "" {
		return
	}
	currNode := gm.nodeForResourceID(utility.MustResourceIDFromString(rd.Uuid))
	if currNode == nil {
		glog.Fatalf("flowmanager: updateResourceTopologyDFS: no node for resource %v", rd.Uuid)
	}
	parentNode := gm.nodeToParentNode[currNode]
	if parentNode == nil {
		glog.Fatalf("flowmanager: updateResourceTopologyDFS: no parent for node %v", currNode.ID)
	}
	parentArc := gm.cm.Graph().GetArc(parentNode, currNode)
	gm.cm.ChangeArcCapacity(parentArc, gm.capacityFromResNodeToParent(rd), dimacs.ChgArcBetweenRes, "UpdateResourceTopologyDFS")
}

func (gm *graphManager) updateResOutgoingArcs(resNode *flowgraph.Node, nodeQueue queue.FIFO, markedNodes map[flowgraph.NodeID]struct{}) {
	for _, arc := range resNode.OutgoingArcMap {
		if arc.DstNode.ResourceID == 0 {
			gm.updateResToSinkArc(resNode)
			continue
		}

		arcDescriptor := gm.costModeler.ResourceNodeToResourceNode(resNode.ResourceDescriptor, arc.DstNode.ResourceDescriptor)
		gm.cm.ChangeArc(arc, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, dimacs.ChgArcBetweenRes, "UpdateResOutgoingArcs")
		if _, visited := markedNodes[arc.DstNode.ID]; !visited {
			markedNodes[arc.DstNode.ID] = struct{}{}
			nodeQueue.Push(&taskOrNode{Node: arc.DstNode, TaskDesc: arc.DstNode.Task})
		}
	}
}

// updateResToSinkArc adds or refreshes the arc from a machine or PU node
// directly to the sink.
func (gm *graphManager) updateResToSinkArc(resNode *flowgraph.Node) {
	if resNode.Type != flowgraph.NodeTypeMachine && resNode.Type != flowgraph.NodeTypePu {
		glog.Fatalf("flowmanager: updateResToSinkArc called on node %v that is neither a machine nor a PU", resNode.ID)
	}
	if gm.sinkNode == nil {
		glog.Fatalf("flowmanager: graph has no sink node")
	}
	arcDescriptor := gm.costModeler.LeafResourceNodeToSink(resNode.ResourceID)
	if arc := gm.cm.Graph().GetArc(resNode, gm.sinkNode); arc == nil {
		gm.cm.AddArc(resNode, gm.sinkNode, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, flowgraph.ArcTypeOther, dimacs.AddArcResToSink, "UpdateResToSinkArc")
	} else {
		gm.cm.ChangeArc(arc, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, dimacs.ChgArcResToSink, "UpdateResToSinkArc")
	}
}

// updateRunningTaskNode refreshes a running task's continuation cost and,
// when preemption is enabled, its preemption cost and (if
// updatePreferences) its resource/equivalence preference arcs. nodeQueue
// and markedNodes may be nil as long as updatePreferences is false.
func (gm *graphManager) updateRunningTaskNode(taskNode *flowgraph.Node, updatePreferences bool, nodeQueue queue.FIFO, markedNodes map[flowgraph.NodeID]struct{}) {
	taskID := utility.TaskID(taskNode.Task.Uid)
	runningArc := gm.taskToRunningArc[taskID]
	if runningArc == nil {
		glog.Fatalf("flowmanager: updateRunningTaskNode: no running arc for task %v", taskID)
	}
	arcDescriptor := gm.costModeler.TaskContinuation(taskID)
	gm.cm.ChangeArc(runningArc, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, dimacs.ChgArcTaskToRes, "UpdateRunningTaskNode: continuation cost")
	if !gm.preemptionEnabled {
		return
	}

	gm.updateRunningTaskToUnscheduledAggArc(taskNode)
	if updatePreferences {
		gm.updateTaskToResArcs(taskNode, nodeQueue, markedNodes)
		gm.updateTaskToEquivArcs(taskNode, nodeQueue, markedNodes)
	}
}

// updateRunningTaskToUnscheduledAggArc refreshes the preemption cost of the
// arc from a running task back to its unscheduled aggregator. Only valid
// when preemption is enabled, since that arc doesn't exist otherwise.
func (gm *graphManager) updateRunningTaskToUnscheduledAggArc(taskNode *flowgraph.Node) {
	if !gm.preemptionEnabled {
		glog.Fatalf("flowmanager: no unscheduled arc exists for a running task with preemption disabled")
	}

	unschedAggNode := gm.unschedAggNodeForJobID(taskNode.JobID)
	if unschedAggNode == nil {
		glog.Fatalf("flowmanager: no unscheduled aggregator for job %v", taskNode.JobID)
	}
	unschedArc := gm.cm.Graph().GetArc(taskNode, unschedAggNode)
	if unschedArc == nil {
		glog.Fatalf("flowmanager: no arc from running task %v to its unscheduled aggregator", taskNode.ID)
	}

	arcDescriptor := gm.costModeler.TaskPreemption(utility.TaskID(taskNode.Task.Uid))
	gm.cm.ChangeArc(unschedArc, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, dimacs.ChgArcToUnsched, "UpdateRunningTaskToUnscheduledAggArc")
}

func (gm *graphManager) updateTaskNode(taskNode *flowgraph.Node, nodeQueue queue.FIFO, markedNodes map[flowgraph.NodeID]struct{}) {
	if taskNode.IsTaskAssignedOrRunning() {
		gm.updateRunningTaskNode(taskNode, gm.updateRunningPreferences, nodeQueue, markedNodes)
		return
	}
	gm.updateTaskToUnscheduledAggArc(taskNode)
	gm.updateTaskToEquivArcs(taskNode, nodeQueue, markedNodes)
	gm.updateTaskToResArcs(taskNode, nodeQueue, markedNodes)
}

// updateTaskToEquivArcs refreshes taskNode's preference arcs to equivalence
// classes.
func (gm *graphManager) updateTaskToEquivArcs(taskNode *flowgraph.Node, nodeQueue queue.FIFO, markedNodes map[flowgraph.NodeID]struct{}) {
	prefECs := gm.costModeler.GetTaskEquivClasses(utility.TaskID(taskNode.Task.Uid))
	if len(prefECs) == 0 {
		gm.removeInvalidECPrefArcs(taskNode, prefECs, dimacs.DelArcTaskToEquivClass)
		return
	}

	for _, prefEC := range prefECs {
		prefECNode := gm.nodeForEquivClass(prefEC)
		if prefECNode == nil {
			prefECNode = gm.addEquivClassNode(prefEC)
		}
		arcDescriptor := gm.costModeler.TaskToEquivClassAggregator(utility.TaskID(taskNode.Task.Uid), prefEC)
		if arc := gm.cm.Graph().GetArc(taskNode, prefECNode); arc == nil {
			gm.cm.AddArc(taskNode, prefECNode, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, flowgraph.ArcTypeOther, dimacs.AddArcTaskToEquivClass, "UpdateTaskToEquivArcs")
		} else {
			gm.cm.ChangeArc(arc, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, dimacs.ChgArcTaskToEquivClass, "UpdateTaskToEquivArcs")
		}

		if _, visited := markedNodes[prefECNode.ID]; !visited {
			markedNodes[prefECNode.ID] = struct{}{}
			nodeQueue.Push(&taskOrNode{Node: prefECNode, TaskDesc: prefECNode.Task})
		}
	}
	gm.removeInvalidECPrefArcs(taskNode, prefECs, dimacs.DelArcTaskToEquivClass)
}

// updateTaskToResArcs refreshes taskNode's preference arcs to resources.
func (gm *graphManager) updateTaskToResArcs(taskNode *flowgraph.Node, nodeQueue queue.FIFO, markedNodes map[flowgraph.NodeID]struct{}) {
	prefRIDs := gm.costModeler.GetTaskPreferenceArcs(utility.TaskID(taskNode.Task.Uid))
	if len(prefRIDs) == 0 {
		gm.removeInvalidPrefResArcs(taskNode, prefRIDs, dimacs.DelArcTaskToRes)
		return
	}

	for _, prefRID := range prefRIDs {
		prefResNode := gm.nodeForResourceID(prefRID)
		if prefResNode == nil {
			glog.Fatalf("flowmanager: task prefers unknown resource %v", prefRID)
		}
		arcDescriptor := gm.costModeler.TaskToResourceNode(utility.TaskID(taskNode.Task.Uid), prefRID)
		prefResArc := gm.cm.Graph().GetArc(taskNode, prefResNode)

		if prefResArc == nil {
			gm.cm.AddArc(taskNode, prefResNode, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, flowgraph.ArcTypeOther, dimacs.AddArcTaskToRes, "UpdateTaskToResArcs")
		} else if prefResArc.Type != flowgraph.ArcTypeRunning {
			// A running arc's cost comes from TaskContinuation and is
			// updated elsewhere; a plain preference arc gets its cost and
			// capacity refreshed here.
			gm.cm.ChangeArcCost(prefResArc, arcDescriptor.Cost, dimacs.ChgArcTaskToRes, "UpdateTaskToResArcs")
			prefResArc.CapUpperBound = arcDescriptor.Capacity
		}

		if _, visited := markedNodes[prefResNode.ID]; !visited {
			markedNodes[prefResNode.ID] = struct{}{}
			nodeQueue.Push(&taskOrNode{Node: prefResNode, TaskDesc: prefResNode.Task})
		}
	}
	gm.removeInvalidPrefResArcs(taskNode, prefRIDs, dimacs.DelArcTaskToRes)
}

// updateTaskToUnscheduledAggArc adds or refreshes the arc from taskNode to
// its job's unscheduled aggregator, creating the aggregator node first if
// this is the job's first task. Returns the aggregator node.
func (gm *graphManager) updateTaskToUnscheduledAggArc(taskNode *flowgraph.Node) *flowgraph.Node {
	unschedAggNode := gm.unschedAggNodeForJobID(taskNode.JobID)
	if unschedAggNode == nil {
		unschedAggNode = gm.addUnscheduledAggNode(taskNode.JobID)
	}
	arcDescriptor := gm.costModeler.TaskToUnscheduledAgg(utility.TaskID(taskNode.Task.Uid))
	if arc := gm.cm.Graph().GetArc(taskNode, unschedAggNode); arc == nil {
		gm.cm.AddArc(taskNode, unschedAggNode, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, flowgraph.ArcTypeOther, dimacs.AddArcToUnsched, "UpdateTaskToUnscheduledAggArc")
	} else {
		gm.cm.ChangeArc(arc, arcDescriptor.MinFlow, arcDescriptor.Capacity, arcDescriptor.Cost, dimacs.ChgArcToUnsched, "UpdateTaskToUnscheduledAggArc")
	}
	return unschedAggNode
}

// updateUnscheduledAggNode adjusts the capacity of the arc from
// unschedAggNode to the sink by capDelta, or adds it if it doesn't yet
// exist (in which case capDelta must be positive).
func (gm *graphManager) updateUnscheduledAggNode(unschedAggNode *flowgraph.Node, capDelta int64) {
	if unschedAggNode == nil {
		glog.Fatalf("flowmanager: updateUnscheduledAggNode called with nil node")
	}
	arcDescriptor := gm.costModeler.UnscheduledAggToSink(unschedAggNode.JobID)
	if arc := gm.cm.Graph().GetArc(unschedAggNode, gm.sinkNode); arc != nil {
		newCapacity := int64(arc.CapUpperBound) + capDelta
		if newCapacity < 0 {
			glog.Fatalf("flowmanager: unscheduled arc capacity %d cannot drop by %d", arc.CapUpperBound, -capDelta)
		}
		gm.cm.ChangeArc(arc, arcDescriptor.MinFlow, uint64(newCapacity), arcDescriptor.Cost, dimacs.ChgArcFromUnsched, "UpdateUnscheduledAggNode")
		return
	}

	if capDelta < 1 {
		glog.Fatalf("flowmanager: cannot create unscheduled arc with capDelta %d < 1", capDelta)
	}
	gm.cm.AddArc(unschedAggNode, gm.sinkNode, arcDescriptor.MinFlow, uint64(capDelta), arcDescriptor.Cost, flowgraph.ArcTypeOther, dimacs.AddArcFromUnsched, "UpdateUnscheduledAggNode")
}

func (gm *graphManager) visitTopologyChildren(rtnd *pb.ResourceTopologyNodeDescriptor) {
	rd := rtnd.ResourceDesc
	for _, child := range rtnd.Children {
		gm.addResourceTopologyDFS(child)
		rd.NumSlotsBelow += child.ResourceDesc.NumSlotsBelow
		rd.NumRunningTasksBelow += child.ResourceDesc.NumRunningTasksBelow
	}
}

// ---- Lookups --------------------------------------------------------------

func (gm *graphManager) nodeForEquivClass(ec utility.EquivClass) *flowgraph.Node {
	return gm.taskECToNode[ec]
}

func (gm *graphManager) nodeForResourceID(resourceID utility.ResourceID) *flowgraph.Node {
	return gm.resourceToNode[resourceID]
}

func (gm *graphManager) nodeForTaskID(taskID utility.TaskID) *flowgraph.Node {
	return gm.taskToNode[taskID]
}

func (gm *graphManager) unschedAggNodeForJobID(jobID utility.JobID) *flowgraph.Node {
	return gm.jobUnschedToNode[jobID]
}

// taskNeedsNode reports whether td is in a state (runnable, running, or
// assigned) that warrants a flow graph node of its own.
func taskNeedsNode(td *pb.TaskDescriptor) bool {
	return td.State == pb.TaskDescriptor_RUNNABLE ||
		td.State == pb.TaskDescriptor_RUNNING ||
		td.State == pb.TaskDescriptor_ASSIGNED
}
