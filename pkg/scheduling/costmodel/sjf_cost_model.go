package costmodel

import (
	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	util "github.com/flowsched/flowsched/pkg/scheduling/utility"
)

// RuntimeEstimator supplies an estimated runtime for a task, in
// milliseconds. Runtime estimation itself is out of scope for this core;
// the default estimator below simply reads whatever the outer scheduler
// already recorded on the task descriptor.
type RuntimeEstimator interface {
	EstimateRuntimeMs(td *pb.TaskDescriptor) uint64
}

type descriptorRuntimeEstimator struct{}

func (descriptorRuntimeEstimator) EstimateRuntimeMs(td *pb.TaskDescriptor) uint64 {
	if td == nil {
		return 0
	}
	return td.EstimatedRuntimeMs
}

const sjfMaxCost int64 = 10000

// sjfCostModel favours placing short tasks first: the cost of a
// task/resource arc is proportional to the task's estimated runtime, so the
// solver clears cheap (short) tasks before expensive (long) ones when
// capacity is contended.
type sjfCostModel struct {
	taskMap      *util.TaskMap
	leafResIDset map[util.ResourceID]struct{}
	estimator    RuntimeEstimator
}

// NewSJFCostModel returns a shortest-job-first cost model. estimator may be
// nil, in which case runtime estimates are read directly off
// TaskDescriptor.EstimatedRuntimeMs.
func NewSJFCostModel(taskMap *util.TaskMap, leafResIDset map[util.ResourceID]struct{}, estimator RuntimeEstimator) CostModeler {
	if estimator == nil {
		estimator = descriptorRuntimeEstimator{}
	}
	return &sjfCostModel{
		taskMap:      taskMap,
		leafResIDset: leafResIDset,
		estimator:    estimator,
	}
}

func (s *sjfCostModel) runtimeCost(taskID util.TaskID) int64 {
	td := s.taskMap.FindPtrOrNull(taskID)
	if td == nil {
		return sjfMaxCost
	}
	ms := s.estimator.EstimateRuntimeMs(td)
	if int64(ms) > sjfMaxCost {
		return sjfMaxCost
	}
	return int64(ms)
}

func (s *sjfCostModel) TaskToUnscheduledAgg(taskID util.TaskID) ArcDescriptor {
	return NewArcDescriptor(s.runtimeCost(taskID)+baseDelta, 1, 0)
}

func (s *sjfCostModel) UnscheduledAggToSink(util.JobID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (s *sjfCostModel) TaskToResourceNode(taskID util.TaskID, resourceID util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(s.runtimeCost(taskID), 1, 0)
}

func (s *sjfCostModel) ResourceNodeToResourceNode(source, destination *pb.ResourceDescriptor) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (s *sjfCostModel) LeafResourceNodeToSink(util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (s *sjfCostModel) TaskContinuation(taskID util.TaskID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (s *sjfCostModel) TaskPreemption(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (s *sjfCostModel) TaskToEquivClassAggregator(util.TaskID, util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (s *sjfCostModel) EquivClassToResourceNode(util.EquivClass, util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (s *sjfCostModel) EquivClassToEquivClass(tec1, tec2 util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (s *sjfCostModel) GetTaskEquivClasses(util.TaskID) []util.EquivClass {
	return nil
}

func (s *sjfCostModel) GetOutgoingEquivClassPrefArcs(ec util.EquivClass) []util.ResourceID {
	return nil
}

func (s *sjfCostModel) GetTaskPreferenceArcs(util.TaskID) []util.ResourceID {
	ids := make([]util.ResourceID, 0, len(s.leafResIDset))
	for id := range s.leafResIDset {
		ids = append(ids, id)
	}
	return ids
}

func (s *sjfCostModel) GetEquivClassToEquivClassesArcs(util.EquivClass) []util.EquivClass {
	return nil
}

func (s *sjfCostModel) AddMachine(*pb.ResourceTopologyNodeDescriptor) {}
func (s *sjfCostModel) AddTask(util.TaskID)                          {}
func (s *sjfCostModel) RemoveMachine(util.ResourceID)                {}
func (s *sjfCostModel) RemoveTask(util.TaskID)                       {}

func (s *sjfCostModel) GatherStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	return accumulator
}

func (s *sjfCostModel) PrepareStats(accumulator *flowgraph.Node) {}

func (s *sjfCostModel) UpdateStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	return accumulator
}

func (s *sjfCostModel) DebugInfo() string    { return "sjf" }
func (s *sjfCostModel) DebugInfoCSV() string { return "sjf" }
