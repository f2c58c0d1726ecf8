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
	"github.com/flowsched/flowsched/pkg/scheduling/dimacs"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
)

var _ GraphChangeManager = &changeManager{}

// changeManager is the sole owner of the authoritative flow graph. Every
// graph mutation flows through it so that a ChangeLog entry is always
// recorded alongside the mutation; nothing outside this package is allowed
// to touch a flowgraph.Graph directly.
type changeManager struct {
	graph   *flowgraph.Graph
	changes []dimacs.Change
	stats   *dimacs.ChangeStats
}

func NewChangeManager(stats *dimacs.ChangeStats) GraphChangeManager {
	return &changeManager{
		graph: flowgraph.NewGraph(false),
		stats: stats,
	}
}

func (cm *changeManager) record(c dimacs.Change) {
	cm.changes = append(cm.changes, c)
	if cm.stats != nil {
		cm.stats.Record(c.Type())
	}
}

func (cm *changeManager) AddNode(nodeType flowgraph.NodeType, excess int64, changeType dimacs.ChangeType, comment string) *flowgraph.Node {
	node := cm.graph.AddNode()
	node.Type = nodeType
	node.Excess = excess
	node.Comment = comment
	cm.record(&dimacs.NodeChange{
		ChangeType: changeType,
		ID:         uint64(node.ID),
		Excess:     excess,
		Comment_:   comment,
	})
	return node
}

func (cm *changeManager) DeleteNode(node *flowgraph.Node, changeType dimacs.ChangeType, comment string) {
	id := node.ID
	cm.graph.DeleteNode(node)
	cm.record(&dimacs.NodeChange{
		ChangeType: changeType,
		ID:         uint64(id),
		Comment_:   comment,
	})
}

func (cm *changeManager) AddArc(src, dst *flowgraph.Node, capLowerBound, capUpperBound uint64, cost int64,
	arcType flowgraph.ArcType, changeType dimacs.ChangeType, comment string) *flowgraph.Arc {
	arc := cm.graph.AddArcWithCapAndCost(src.ID, dst.ID, capUpperBound, cost)
	arc.CapLowerBound = capLowerBound
	arc.Type = arcType
	cm.record(&dimacs.ArcChange{
		ChangeType:    changeType,
		Src:           uint64(src.ID),
		Dst:           uint64(dst.ID),
		CapLowerBound: capLowerBound,
		CapUpperBound: capUpperBound,
		Cost:          cost,
		Comment_:      comment,
	})
	return arc
}

func (cm *changeManager) ChangeArc(arc *flowgraph.Arc, capLowerBound, capUpperBound uint64, cost int64,
	changeType dimacs.ChangeType, comment string) {
	oldCost := arc.Cost
	arc.CapLowerBound = capLowerBound
	arc.CapUpperBound = capUpperBound
	arc.Cost = cost
	cm.record(&dimacs.ArcChange{
		ChangeType:    changeType,
		Src:           uint64(arc.Src),
		Dst:           uint64(arc.Dst),
		CapLowerBound: capLowerBound,
		CapUpperBound: capUpperBound,
		Cost:          cost,
		OldCost:       oldCost,
		Comment_:      comment,
	})
}

func (cm *changeManager) ChangeArcCapacity(arc *flowgraph.Arc, capacity uint64, changeType dimacs.ChangeType, comment string) {
	cm.ChangeArc(arc, arc.CapLowerBound, capacity, arc.Cost, changeType, comment)
}

func (cm *changeManager) ChangeArcCost(arc *flowgraph.Arc, cost int64, changeType dimacs.ChangeType, comment string) {
	cm.ChangeArc(arc, arc.CapLowerBound, arc.CapUpperBound, cost, changeType, comment)
}

func (cm *changeManager) DeleteArc(arc *flowgraph.Arc, changeType dimacs.ChangeType, comment string) {
	src, dst, oldCost := arc.Src, arc.Dst, arc.Cost
	cm.graph.DeleteArc(arc)
	cm.record(&dimacs.ArcChange{
		ChangeType:    changeType,
		Src:           uint64(src),
		Dst:           uint64(dst),
		CapLowerBound: 0,
		CapUpperBound: 0,
		Cost:          0,
		OldCost:       oldCost,
		Comment_:      comment,
	})
}

func (cm *changeManager) GetGraphChanges() []dimacs.Change {
	return cm.changes
}

// GetOptimizedGraphChanges collapses redundant entries before handing the
// log to the incremental DIMACS exporter: a node added and then deleted
// again within the same round need not be reported at all, and only the
// most recent ChangeArc for a given (src, dst) pair matters to the solver.
func (cm *changeManager) GetOptimizedGraphChanges() []dimacs.Change {
	lastArcChange := make(map[[2]uint64]int)
	deletedNodes := make(map[uint64]bool)
	addedNodes := make(map[uint64]int)

	optimized := make([]dimacs.Change, 0, len(cm.changes))
	for _, c := range cm.changes {
		switch v := c.(type) {
		case *dimacs.NodeChange:
			if v.Type().Kind() == dimacs.KindAddNode {
				addedNodes[v.ID] = len(optimized)
			} else {
				if idx, ok := addedNodes[v.ID]; ok {
					// added and removed in the same round: drop both.
					optimized[idx] = nil
					delete(addedNodes, v.ID)
					continue
				}
				deletedNodes[v.ID] = true
			}
			optimized = append(optimized, c)
		case *dimacs.ArcChange:
			key := [2]uint64{v.Src, v.Dst}
			if idx, ok := lastArcChange[key]; ok {
				optimized[idx] = c
				continue
			}
			lastArcChange[key] = len(optimized)
			optimized = append(optimized, c)
		default:
			optimized = append(optimized, c)
		}
	}
	kept := optimized[:0]
	for _, c := range optimized {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return kept
}

func (cm *changeManager) ResetChanges() {
	cm.changes = nil
}

func (cm *changeManager) Graph() *flowgraph.Graph {
	return cm.graph
}

func (cm *changeManager) CheckNodeType(id flowgraph.NodeID, nodeType flowgraph.NodeType) bool {
	node := cm.graph.Node(id)
	if node == nil {
		return false
	}
	return node.Type == nodeType
}
