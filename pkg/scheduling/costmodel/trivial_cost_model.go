package costmodel

import (
	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	util "github.com/flowsched/flowsched/pkg/scheduling/utility"
)

// trivialUnscheduledCost is the fixed cost of leaving any task unscheduled
// under the trivial model; nonzero so the solver still prefers placing a
// task over stranding it, even though every placement itself costs 0.
const trivialUnscheduledCost int64 = 100

// trivialCostModel assigns cost 0 to every arc except the task-to-unscheduled
// path. It exists to make the solver's placement behaviour observable
// without any cost model logic getting in the way, and as a baseline for
// comparing the other models against.
type trivialCostModel struct {
	leafResIDset map[util.ResourceID]struct{}
}

// NewTrivialCostModel returns a cost model with a fixed, uniform cost for
// every placement and a fixed cost for leaving a task unscheduled.
func NewTrivialCostModel(leafResIDset map[util.ResourceID]struct{}) CostModeler {
	return &trivialCostModel{leafResIDset: leafResIDset}
}

func (t *trivialCostModel) TaskToUnscheduledAgg(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(trivialUnscheduledCost, 1, 0)
}

func (t *trivialCostModel) UnscheduledAggToSink(util.JobID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (t *trivialCostModel) TaskToResourceNode(util.TaskID, util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (t *trivialCostModel) ResourceNodeToResourceNode(source, destination *pb.ResourceDescriptor) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (t *trivialCostModel) LeafResourceNodeToSink(util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (t *trivialCostModel) TaskContinuation(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (t *trivialCostModel) TaskPreemption(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (t *trivialCostModel) TaskToEquivClassAggregator(util.TaskID, util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (t *trivialCostModel) EquivClassToResourceNode(util.EquivClass, util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (t *trivialCostModel) EquivClassToEquivClass(tec1, tec2 util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (t *trivialCostModel) GetTaskEquivClasses(util.TaskID) []util.EquivClass {
	return nil
}

func (t *trivialCostModel) GetOutgoingEquivClassPrefArcs(ec util.EquivClass) []util.ResourceID {
	return nil
}

func (t *trivialCostModel) GetTaskPreferenceArcs(util.TaskID) []util.ResourceID {
	ids := make([]util.ResourceID, 0, len(t.leafResIDset))
	for id := range t.leafResIDset {
		ids = append(ids, id)
	}
	return ids
}

func (t *trivialCostModel) GetEquivClassToEquivClassesArcs(util.EquivClass) []util.EquivClass {
	return nil
}

func (t *trivialCostModel) AddMachine(*pb.ResourceTopologyNodeDescriptor) {}
func (t *trivialCostModel) AddTask(util.TaskID)                          {}
func (t *trivialCostModel) RemoveMachine(util.ResourceID)                {}
func (t *trivialCostModel) RemoveTask(util.TaskID)                       {}

func (t *trivialCostModel) GatherStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	return accumulator
}

func (t *trivialCostModel) PrepareStats(accumulator *flowgraph.Node) {}

func (t *trivialCostModel) UpdateStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	return accumulator
}

func (t *trivialCostModel) DebugInfo() string    { return "trivial" }
func (t *trivialCostModel) DebugInfoCSV() string { return "trivial" }
