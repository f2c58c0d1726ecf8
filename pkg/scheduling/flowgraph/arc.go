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

// ArcType classifies an arc by the kind of edge it represents in the flow
// network, mirroring the reference C++ FlowGraphArcType enum.
type ArcType int

const (
	ArcTypeOther ArcType = iota
	ArcTypeTaskToEquivClass
	ArcTypeTaskToResource
	ArcTypeResourceToResource
	ArcTypeTaskToUnscheduledAgg
	ArcTypeUnscheduledAggToSink
	ArcTypeResourceToSink
	ArcTypeRunning
)

// Arc is a directed edge in the flow network with a capacity range and a
// per-unit cost. Src/Dst are kept alongside SrcNode/DstNode so callers that
// only have ids on hand (as DIMACS records do) can still identify an arc,
// while graph traversal code can dereference SrcNode/DstNode directly
// without an extra NodeMap lookup.
type Arc struct {
	Src NodeID
	Dst NodeID

	SrcNode *Node
	DstNode *Node

	CapLowerBound uint64
	CapUpperBound uint64

	Cost int64

	Type ArcType

	// OldCost is populated by ChangeArc when negotiating a DIMACS incremental
	// change, so the change log can report both old and new cost.
	OldCost int64
}

// NewArc creates an arc between two nodes already present in a Graph. It
// neither wires the arc into the endpoints' adjacency maps nor inserts it
// into a Graph's ArcSet; callers (Graph.AddArcById) own that bookkeeping.
func NewArc(src, dst *Node) *Arc {
	arc := &Arc{
		Src:     src.ID,
		Dst:     dst.ID,
		SrcNode: src,
		DstNode: dst,
	}
	return arc
}
