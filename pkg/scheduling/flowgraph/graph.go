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
	"bytes"
	"math/rand"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/golang/glog"

	"github.com/flowsched/flowsched/pkg/scheduling/algorithms/datastructure"
	"github.com/flowsched/flowsched/pkg/scheduling/utility/queue"
)

// NodeID identifies a Node within a single Graph's NodeMap. IDs are recycled
// through UnusedIDs once a node is deleted, so an ID is only meaningful in
// the context of the Graph that issued it.
type NodeID uint64

// Graph is the arena that owns every Node and Arc of a flow network: nodes
// live in NodeMap keyed by NodeID, arcs live in ArcSet, and TaskSet/
// ResourceSet are convenience indexes for the two node kinds that dominate
// iteration in the scheduling hot path.
type Graph struct {
	// NextID is the next unassigned NodeID, used when UnusedIDs is empty.
	NextID NodeID

	ArcSet      map[*Arc]struct{}
	TaskSet     map[*Node]struct{}
	ResourceSet map[*Node]struct{}

	SinkID   NodeID
	SourceID NodeID

	NodeMap map[NodeID]*Node

	// UnusedIDs holds node ids freed by DeleteNode, recycled by NextId
	// before NextID is advanced.
	UnusedIDs queue.FIFO

	// OriginalIdToCopyIdMap and CopyIdToOriginalIdMap translate node ids
	// between an authoritative graph and a solver-private copy produced by
	// CopyGraph; the copy renumbers nodes densely from 1 so the in-process
	// solver's arrays stay small regardless of how sparse the original ID
	// space has become after repeated add/delete cycles.
	OriginalIdToCopyIdMap map[NodeID]NodeID
	CopyIdToOriginalIdMap map[NodeID]NodeID

	// RandomizeNodeIDs shuffles freshly minted node ids instead of handing
	// them out in order. This is a per-instance flag rather than a package
	// global because a process may run more than one Graph (e.g. tests).
	RandomizeNodeIDs bool
}

// NewGraph constructs an empty graph arena. When randomizeNodeIDs is true,
// node ids are drawn from a shuffled pool instead of being handed out
// sequentially.
func NewGraph(randomizeNodeIDs bool) *Graph {
	g := &Graph{
		ArcSet:      make(map[*Arc]struct{}),
		NodeMap:     make(map[NodeID]*Node),
		TaskSet:     make(map[*Node]struct{}),
		ResourceSet: make(map[*Node]struct{}),
		NextID:      1,
		UnusedIDs:   queue.NewFIFO(),
	}
	if randomizeNodeIDs {
		g.RandomizeNodeIDs = true
		g.reserveShuffledIDs(50)
	}
	return g
}

// CopyGraph produces a solver-private copy of graph with node ids renumbered
// densely from 1. When collapseScheduled is true, every already-scheduled
// task node is folded away first: its bound flow is subtracted from every
// arc reachable downstream of it and the node itself is dropped, so the copy only
// contains the part of the network the solver still needs to reason about.
func CopyGraph(graph *Graph, collapseScheduled bool) *Graph {
	cp := &Graph{
		ArcSet:                make(map[*Arc]struct{}),
		NodeMap:               make(map[NodeID]*Node),
		TaskSet:               make(map[*Node]struct{}),
		ResourceSet:           make(map[*Node]struct{}),
		OriginalIdToCopyIdMap: make(map[NodeID]NodeID),
		CopyIdToOriginalIdMap: make(map[NodeID]NodeID),
	}

	unscheduled, scheduled, totalRequest := partitionByScheduled(graph)
	nextIdx := NodeID(1)
	for origID, orig := range unscheduled {
		if origID == 1 {
			cp.SinkID = nextIdx
		}
		nextIdx = cp.cloneNodeInto(origID, orig, nextIdx)
	}
	glog.V(2).Infof("flowgraph: copying graph, %d units of unscheduled task demand outstanding", totalRequest)

	for _, orig := range scheduled {
		nextIdx = cp.cloneNodeInto(orig.ID, orig, nextIdx)
	}
	cp.NextID = nextIdx

	cp.copyArcsFrom(graph)
	cp.UnusedIDs = queue.NewFIFO()

	if collapseScheduled {
		cp.collapseScheduledNodes()
	}
	return cp
}

// partitionByScheduled splits graph's nodes into those still competing for
// placement and those already bound to a resource, and sums the pending
// demand of the former (the capacity of each unscheduled task's first
// nonzero-capacity outgoing arc, which is that task's resource request).
func partitionByScheduled(graph *Graph) (unscheduled map[NodeID]*Node, scheduled []*Node, totalRequest uint64) {
	unscheduled = make(map[NodeID]*Node)
	for id, node := range graph.NodeMap {
		if node.IsScheduled() {
			scheduled = append(scheduled, node)
			continue
		}
		if node.Type == NodeTypeUnscheduledTask {
			totalRequest += firstNonzeroCap(node)
		}
		unscheduled[id] = node
	}
	return unscheduled, scheduled, totalRequest
}

func firstNonzeroCap(node *Node) uint64 {
	for _, arc := range node.OutgoingArcMap {
		if arc.CapUpperBound != 0 {
			return arc.CapUpperBound
		}
	}
	return 0
}

// cloneNodeInto copies orig's scalar fields into a freshly allocated node at
// id nextIdx within cp, records the id translation in both directions, and
// returns the next id to hand out.
func (cp *Graph) cloneNodeInto(origID NodeID, orig *Node, nextIdx NodeID) NodeID {
	clone := &Node{
		ID:             nextIdx,
		IncomingArcMap: make(map[NodeID]*Arc),
		OutgoingArcMap: make(map[NodeID]*Arc),
		Visited:        orig.Visited,
		Type:           orig.Type,
		Excess:         orig.Excess,
		Potential:      orig.Potential,
		JobID:          orig.JobID,
	}
	cp.NodeMap[clone.ID] = clone
	cp.OriginalIdToCopyIdMap[origID] = clone.ID
	cp.CopyIdToOriginalIdMap[clone.ID] = origID
	return nextIdx + 1
}

// copyArcsFrom recreates every positive-capacity arc of graph inside cp
// using the id translation cloneNodeInto already recorded, and logs a cost
// histogram of the arcs copied as a coarse sanity check on the cost model's
// output range.
func (cp *Graph) copyArcsFrom(graph *Graph) {
	costCounts := make(map[int64]int)
	var costSamples []float64
	for arc := range graph.ArcSet {
		if arc.CapUpperBound == 0 {
			continue
		}
		if arc.Cost > 0 && arc.Cost < 10001 {
			costSamples = append(costSamples, float64(arc.Cost))
		}
		cp.AddArcWithCapAndCost(cp.OriginalIdToCopyIdMap[arc.Src], cp.OriginalIdToCopyIdMap[arc.Dst], arc.CapUpperBound, arc.Cost)
		costCounts[arc.Cost]++
	}

	if glog.V(3) {
		for cost, count := range costCounts {
			glog.Infof("flowgraph: arc cost %d occurs %d times", cost, count)
		}
		hist := histogram.Hist(20, costSamples)
		var buf bytes.Buffer
		if err := histogram.Fprint(&buf, hist, histogram.Linear(5)); err == nil {
			glog.Infof("flowgraph: arc cost distribution:\n%s", buf.String())
		}
	}
}

// collapseScheduledNodes removes every already-bound task node from cp,
// deducting its reserved capacity from every arc reachable downstream of it so
// the remaining unscheduled-task subproblem sees accurate residual
// capacity.
func (cp *Graph) collapseScheduledNodes() {
	var visitCount uint32 = 1
	for _, node := range cp.NodeMap {
		node.Visited = 0
	}
	for id, node := range cp.NodeMap {
		if !node.IsScheduled() {
			continue
		}
		glog.V(2).Infof("flowgraph: collapsing scheduled node %d and its reserved path", id)
		collapseBoundPath(cp, node, visitCount)
		visitCount++
	}
}

// collapseBoundPath walks outgoing arcs from a scheduled node depth-first,
// deducting its bound request from every arc capacity it
// crosses, then deletes the node's chosen outgoing arc and the node itself.
func collapseBoundPath(graph *Graph, scheduledNode *Node, visitMark uint32) {
	pathArc := scheduledNode.GetRandomArc()
	if pathArc == nil {
		graph.DeleteNode(scheduledNode)
		return
	}
	reserved := pathArc.CapUpperBound

	frontier := datastructure.NewDeque(5)
	frontier.PushEnd(scheduledNode)
	for !frontier.IsEmpty() {
		current := frontier.PopEnd().(*Node)
		for _, arc := range current.OutgoingArcMap {
			arc.CapUpperBound -= reserved
			if arc.DstNode.Visited < visitMark {
				arc.DstNode.Visited = visitMark
				frontier.PushEnd(arc.DstNode)
			}
		}
	}

	graph.DeleteArc(pathArc)
	graph.DeleteNode(scheduledNode)
}

// BuildIncrementalGraph produces a solver-ready copy of graph with
// already-scheduled tasks collapsed away and a synthetic super-source added,
// wired to every remaining unscheduled task node with an arc capacity equal
// to that task's resource request. This is the shape the successive-
// shortest-path solver expects: a single source, the existing sink, and
// nothing left to route except genuinely pending demand.
func BuildIncrementalGraph(graph *Graph) *Graph {
	incremental := CopyGraph(graph, true)
	source := incremental.AddNode()

	var totalRequest uint64
	for id, node := range incremental.NodeMap {
		node.Visited = 0
		if node.Type == NodeTypeUnscheduledTask {
			request := firstNonzeroCap(node)
			node.Excess = int64(request)
			totalRequest += request
			incremental.AddArcWithCapAndCost(source.ID, id, request, 0)
			incremental.TaskSet[node] = struct{}{}
		}
		if node.Type == NodeTypeMachine {
			incremental.ResourceSet[node] = struct{}{}
		}
	}
	incremental.SourceID = source.ID

	glog.V(2).Infof("flowgraph: incremental graph built, %d units of task demand to route", totalRequest)
	return incremental
}

// AddArc creates an arc from src to dst with zero capacity/cost; callers
// typically follow up with ChangeArc or use AddArcWithCapAndCost directly.
func (fg *Graph) AddArc(src, dst *Node) *Arc {
	return fg.AddArcById(src.ID, dst.ID)
}

// AddArcById is AddArc addressed by node id rather than node reference. It
// panics if either endpoint is not already present in the graph, since an
// arc to a nonexistent node is always a caller bug.
func (fg *Graph) AddArcById(src, dst NodeID) *Arc {
	srcNode, ok := fg.NodeMap[src]
	if !ok {
		glog.Fatalf("flowgraph: AddArc: src node %d not found", src)
	}
	dstNode, ok := fg.NodeMap[dst]
	if !ok {
		glog.Fatalf("flowgraph: AddArc: dst node %d not found", dst)
	}

	arc := NewArc(srcNode, dstNode)
	fg.ArcSet[arc] = struct{}{}
	srcNode.AddArc(arc)
	return arc
}

// AddArcWithCapAndCost is AddArcById followed by setting the arc's upper
// capacity bound and per-unit-flow cost in one call.
func (fg *Graph) AddArcWithCapAndCost(src, dst NodeID, cap uint64, cost int64) *Arc {
	arc := fg.AddArcById(src, dst)
	if arc != nil {
		arc.Cost = cost
		arc.CapUpperBound = cap
	}
	return arc
}

// ChangeArc updates arc's bounds and cost in place, or removes it from the
// arc set entirely if both bounds drop to zero.
func (fg *Graph) ChangeArc(arc *Arc, lower, upper uint64, cost int64) {
	if lower == 0 && upper == 0 {
		delete(fg.ArcSet, arc)
	}
	arc.CapLowerBound = lower
	arc.CapUpperBound = upper
	arc.Cost = cost
}

// AddNode allocates a new, otherwise-empty node and registers it under a
// freshly assigned id.
func (fg *Graph) AddNode() *Node {
	id := fg.NextId()
	node := &Node{
		ID:             id,
		IncomingArcMap: make(map[NodeID]*Arc),
		OutgoingArcMap: make(map[NodeID]*Arc),
	}
	if _, exists := fg.NodeMap[id]; exists {
		glog.Fatalf("flowgraph: AddNode: id %d already present", id)
	}
	fg.NodeMap[id] = node
	return node
}

// DeleteArc removes arc from both endpoints' adjacency maps and from the
// graph's arc set.
func (fg *Graph) DeleteArc(arc *Arc) {
	delete(arc.SrcNode.OutgoingArcMap, arc.DstNode.ID)
	delete(arc.DstNode.IncomingArcMap, arc.SrcNode.ID)
	delete(fg.ArcSet, arc)
}

func (fg *Graph) NumArcs() int { return len(fg.ArcSet) }

// Arcs returns the live arc set. Callers must not mutate the returned map;
// use DeleteArc/ChangeArc instead.
func (fg *Graph) Arcs() map[*Arc]struct{} { return fg.ArcSet }

func (fg *Graph) Node(id NodeID) *Node { return fg.NodeMap[id] }

func (fg *Graph) NumNodes() int { return len(fg.NodeMap) }

// Nodes returns the live node map. Callers must not mutate the returned map;
// use AddNode/DeleteNode instead.
func (fg *Graph) Nodes() map[NodeID]*Node { return fg.NodeMap }

// DeleteNode detaches node from every arc that touches it, discards those
// arcs, removes the node from NodeMap, and returns its id to UnusedIDs for
// reuse.
func (fg *Graph) DeleteNode(node *Node) {
	fg.UnusedIDs.Push(node.ID)

	for dstID, arc := range node.OutgoingArcMap {
		if dstID != arc.Dst || node.ID != arc.Src {
			glog.Fatalf("flowgraph: DeleteNode: outgoing arc endpoint mismatch for node %d", node.ID)
		}
		delete(arc.DstNode.IncomingArcMap, arc.Src)
		fg.DeleteArc(arc)
	}
	for srcID, arc := range node.IncomingArcMap {
		if srcID != arc.Src || node.ID != arc.Dst {
			glog.Fatalf("flowgraph: DeleteNode: incoming arc endpoint mismatch for node %d", node.ID)
		}
		delete(arc.SrcNode.OutgoingArcMap, arc.Dst)
		fg.DeleteArc(arc)
	}
	delete(fg.NodeMap, node.ID)
}

// GetArc returns the arc from src to dst, or nil if none exists.
func (fg *Graph) GetArc(src, dst *Node) *Arc {
	return src.OutgoingArcMap[dst.ID]
}

// GetArcByIds is GetArc addressed by node id.
func (fg *Graph) GetArcByIds(src, dst NodeID) *Arc {
	srcNode, ok := fg.NodeMap[src]
	if !ok {
		return nil
	}
	return srcNode.OutgoingArcMap[dst]
}

// NextId returns the id to assign to the next node added to the graph,
// drawing from UnusedIDs (recycled or pre-shuffled) before minting a fresh
// sequential id.
func (fg *Graph) NextId() NodeID {
	if fg.RandomizeNodeIDs && fg.UnusedIDs.IsEmpty() {
		fg.reserveShuffledIDs(fg.NextID * 2)
	}
	if !fg.UnusedIDs.IsEmpty() {
		return fg.UnusedIDs.Pop().(NodeID)
	}
	id := fg.NextID
	fg.NextID++
	return id
}

// reserveShuffledIDs extends the pool of ids up to (but excluding)
// newNextID in Fisher-Yates-shuffled order. Only meaningful when
// RandomizeNodeIDs is set; used both at construction time and whenever the
// shuffled pool runs dry.
func (fg *Graph) reserveShuffledIDs(newNextID NodeID) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	ids := make([]NodeID, 0, int(newNextID-fg.NextID))
	for i := fg.NextID; i < newNextID; i++ {
		ids = append(ids, i)
	}
	for i := range ids {
		j := r.Intn(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
	for _, id := range ids {
		fg.UnusedIDs.Push(id)
	}
	fg.NextID = newNextID
}
