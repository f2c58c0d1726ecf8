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

package flowgraph

import (
	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/utility"
)

// NodeType enumerates the roles a flow graph node can play. The numbering
// mirrors the reference C++ FlowNodeType enum so DIMACS comments produced by
// this package read the same way across ports.
type NodeType int

const (
	NodeTypeRootTask NodeType = iota
	NodeTypeScheduledTask
	NodeTypeUnscheduledTask
	NodeTypeJobAggregator
	NodeTypeSink
	NodeTypeEquivClass
	NodeTypeCoordinator
	NodeTypeMachine
	NodeTypeNumaNode
	NodeTypeSocket
	NodeTypeCache
	NodeTypeCore
	NodeTypePu
	NodeTypeUnknown
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeRootTask:
		return "ROOT_TASK"
	case NodeTypeScheduledTask:
		return "SCHEDULED_TASK"
	case NodeTypeUnscheduledTask:
		return "UNSCHEDULED_TASK"
	case NodeTypeJobAggregator:
		return "JOB_AGGREGATOR"
	case NodeTypeSink:
		return "SINK"
	case NodeTypeEquivClass:
		return "EQUIVALENCE_CLASS"
	case NodeTypeCoordinator:
		return "COORDINATOR"
	case NodeTypeMachine:
		return "MACHINE"
	case NodeTypeNumaNode:
		return "NUMA_NODE"
	case NodeTypeSocket:
		return "SOCKET"
	case NodeTypeCache:
		return "CACHE"
	case NodeTypeCore:
		return "CORE"
	case NodeTypePu:
		return "PU"
	default:
		return "UNKNOWN"
	}
}

// Node is a vertex in the flow network. The graph arena (Graph) owns every
// Node and Arc; nothing outside this package holds a Node by value.
type Node struct {
	ID NodeID

	// Excess is the amount of unbalanced flow the min-cost flow solver must
	// route away from (positive) or into (negative) this node.
	Excess int64

	Type NodeType

	// JobID is set on job aggregator and unscheduled-task-aggregator nodes.
	JobID utility.JobID

	// ResourceID and ResourceDescriptor are set on resource-topology nodes
	// (machine, PU, socket, ...). ResourceDescriptor is a borrowed pointer
	// into the outer scheduler's resource map, never owned here.
	ResourceID         utility.ResourceID
	ResourceDescriptor *pb.ResourceDescriptor

	// Task is set on task nodes (scheduled or unscheduled). Borrowed pointer,
	// same ownership rule as ResourceDescriptor.
	Task *pb.TaskDescriptor

	// EquivClass is set on equivalence-class nodes.
	EquivClass utility.EquivClass

	// Comment is a free-form annotation carried into DIMACS `c` lines for
	// debugging; it has no effect on solving.
	Comment string

	OutgoingArcMap map[NodeID]*Arc
	IncomingArcMap map[NodeID]*Arc

	// Visited and Potential are solver scratch space: Visited tags the last
	// traversal counter that touched this node, Potential holds the reduced
	// cost potential used by Dijkstra-with-potentials.
	Visited   uint32
	Potential int64
}

func newNode(id NodeID) *Node {
	return &Node{
		ID:             id,
		Type:           NodeTypeUnknown,
		OutgoingArcMap: make(map[NodeID]*Arc),
		IncomingArcMap: make(map[NodeID]*Arc),
	}
}

// AddArc registers arc, which must originate at n, in n's outgoing map and
// in its destination's incoming map.
func (n *Node) AddArc(arc *Arc) {
	n.OutgoingArcMap[arc.DstNode.ID] = arc
	arc.DstNode.IncomingArcMap[n.ID] = arc
}

func (n *Node) IsEquivalenceClassNode() bool {
	return n.Type == NodeTypeEquivClass
}

func (n *Node) IsResourceNode() bool {
	switch n.Type {
	case NodeTypeMachine, NodeTypeNumaNode, NodeTypeSocket, NodeTypeCache, NodeTypeCore, NodeTypePu, NodeTypeCoordinator:
		return true
	default:
		return false
	}
}

func (n *Node) IsTaskNode() bool {
	return n.Type == NodeTypeRootTask || n.Type == NodeTypeScheduledTask || n.Type == NodeTypeUnscheduledTask
}

func (n *Node) IsTaskAssignedOrRunning() bool {
	if n.Task == nil {
		return false
	}
	return n.Task.State == pb.TaskDescriptor_ASSIGNED || n.Task.State == pb.TaskDescriptor_RUNNING
}

// IsScheduled reports whether this task node currently has flow routed to a
// resource, i.e. it is not sitting on the unscheduled aggregator path.
func (n *Node) IsScheduled() bool {
	return n.Type == NodeTypeScheduledTask
}

// GetResidualy returns the unused capacity remaining on this node's arc to
// sinkId. For a machine node after a min-cost flow solve, this is how many
// more task slots it can still accept; greedy post-solve repair uses it to
// pick the least-loaded machine for a displaced task.
func (n *Node) GetResidualy(sinkId NodeID) uint64 {
	if arc, ok := n.OutgoingArcMap[sinkId]; ok {
		return arc.CapUpperBound
	}
	return 0
}

// GetRandomArc returns an arbitrary outgoing arc. Used when collapsing a
// scheduled node out of a solver copy, where only "some" outgoing arc is
// needed to discover the capacity to push back upstream; map iteration
// order is unspecified but any single arc suffices.
func (n *Node) GetRandomArc() *Arc {
	for _, arc := range n.OutgoingArcMap {
		return arc
	}
	return nil
}

// TransformToResourceNodeType maps a resource descriptor's topology type to
// the corresponding flow graph NodeType.
func TransformToResourceNodeType(rd *pb.ResourceDescriptor) NodeType {
	switch rd.Type {
	case pb.ResourceDescriptor_RESOURCE_COORDINATOR:
		return NodeTypeCoordinator
	case pb.ResourceDescriptor_RESOURCE_MACHINE:
		return NodeTypeMachine
	case pb.ResourceDescriptor_RESOURCE_NUMA_NODE:
		return NodeTypeNumaNode
	case pb.ResourceDescriptor_RESOURCE_SOCKET:
		return NodeTypeSocket
	case pb.ResourceDescriptor_RESOURCE_CACHE:
		return NodeTypeCache
	case pb.ResourceDescriptor_RESOURCE_CORE:
		return NodeTypeCore
	case pb.ResourceDescriptor_RESOURCE_PU:
		return NodeTypePu
	default:
		return NodeTypeUnknown
	}
}
