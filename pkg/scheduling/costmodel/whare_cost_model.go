package costmodel

import (
	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	util "github.com/flowsched/flowsched/pkg/scheduling/utility"
)

// defaultAffinityCost is charged for a (workload class, machine type) pair
// with no entry in the compatibility matrix, and for either side being
// unclassified.
const defaultAffinityCost int64 = 500

// CompatibilityMatrix scores how well a task's workload class runs on a
// given machine type; lower is better. Missing entries fall back to
// defaultAffinityCost.
type CompatibilityMatrix map[string]map[string]int64

func (m CompatibilityMatrix) cost(workloadClass, machineType string) int64 {
	if workloadClass == "" || machineType == "" {
		return defaultAffinityCost
	}
	row, ok := m[workloadClass]
	if !ok {
		return defaultAffinityCost
	}
	cost, ok := row[machineType]
	if !ok {
		return defaultAffinityCost
	}
	return cost
}

// whareCostModel scales placement cost by a static task-type/machine-type
// compatibility matrix, modelling the heterogeneity-awareness of the
// Whare-Map scheduler: a task placed on a machine type it is known to run
// well on costs less than the same task placed on an ill-suited machine.
type whareCostModel struct {
	taskMap      *util.TaskMap
	resourceMap  *util.ResourceMap
	leafResIDset map[util.ResourceID]struct{}
	matrix       CompatibilityMatrix
	machines     map[util.ResourceID]*pb.ResourceTopologyNodeDescriptor
}

// NewWhareMapCostModel returns a machine-heterogeneity-aware cost model.
// A nil matrix gives every placement the same cost, defaultAffinityCost;
// unlike the trivial model's placement cost, that cost is not zero.
func NewWhareMapCostModel(taskMap *util.TaskMap, resourceMap *util.ResourceMap, leafResIDset map[util.ResourceID]struct{}, matrix CompatibilityMatrix) CostModeler {
	if matrix == nil {
		matrix = CompatibilityMatrix{}
	}
	return &whareCostModel{
		taskMap:      taskMap,
		resourceMap:  resourceMap,
		leafResIDset: leafResIDset,
		matrix:       matrix,
		machines:     make(map[util.ResourceID]*pb.ResourceTopologyNodeDescriptor),
	}
}

func (w *whareCostModel) TaskToUnscheduledAgg(taskID util.TaskID) ArcDescriptor {
	td := w.taskMap.FindPtrOrNull(taskID)
	var wait uint64
	if td != nil {
		wait = td.TotalUnscheduledTime
	}
	return NewArcDescriptor(int64(wait*Unschedule_Factor)+baseDelta, 1, 0)
}

func (w *whareCostModel) UnscheduledAggToSink(util.JobID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (w *whareCostModel) TaskToResourceNode(taskID util.TaskID, resourceID util.ResourceID) ArcDescriptor {
	td := w.taskMap.FindPtrOrNull(taskID)
	rtnd, ok := w.machines[resourceID]
	if td == nil || !ok {
		return NewArcDescriptor(defaultAffinityCost, 1, 0)
	}
	cost := w.matrix.cost(td.WorkloadClass, rtnd.ResourceDesc.MachineType)
	return NewArcDescriptor(cost, 1, 0)
}

func (w *whareCostModel) ResourceNodeToResourceNode(source, destination *pb.ResourceDescriptor) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (w *whareCostModel) LeafResourceNodeToSink(util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (w *whareCostModel) TaskContinuation(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (w *whareCostModel) TaskPreemption(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (w *whareCostModel) TaskToEquivClassAggregator(util.TaskID, util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (w *whareCostModel) EquivClassToResourceNode(util.EquivClass, util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (w *whareCostModel) EquivClassToEquivClass(tec1, tec2 util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (w *whareCostModel) GetTaskEquivClasses(util.TaskID) []util.EquivClass {
	return nil
}

func (w *whareCostModel) GetOutgoingEquivClassPrefArcs(ec util.EquivClass) []util.ResourceID {
	return nil
}

func (w *whareCostModel) GetTaskPreferenceArcs(util.TaskID) []util.ResourceID {
	ids := make([]util.ResourceID, 0, len(w.machines))
	for id := range w.machines {
		ids = append(ids, id)
	}
	return ids
}

func (w *whareCostModel) GetEquivClassToEquivClassesArcs(util.EquivClass) []util.EquivClass {
	return nil
}

func (w *whareCostModel) AddMachine(r *pb.ResourceTopologyNodeDescriptor) {
	id, err := util.ResourceIDFromString(r.ResourceDesc.Uuid)
	if err != nil {
		return
	}
	w.machines[id] = r
}

func (w *whareCostModel) AddTask(util.TaskID) {}

func (w *whareCostModel) RemoveMachine(id util.ResourceID) {
	delete(w.machines, id)
}

func (w *whareCostModel) RemoveTask(util.TaskID) {}

func (w *whareCostModel) GatherStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	return accumulator
}

func (w *whareCostModel) PrepareStats(accumulator *flowgraph.Node) {}

func (w *whareCostModel) UpdateStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	return accumulator
}

func (w *whareCostModel) DebugInfo() string    { return "whare" }
func (w *whareCostModel) DebugInfoCSV() string { return "whare" }
