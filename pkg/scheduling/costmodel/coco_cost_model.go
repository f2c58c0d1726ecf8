package costmodel

import (
	"math"

	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	util "github.com/flowsched/flowsched/pkg/scheduling/utility"
)

// cocoCostModel scores task/machine pairs by how well a task's resource
// request fits the machine's remaining capacity vector, generalizing the
// single-dimension slot-balancing done by the Quincy model to the full
// (CPU, RAM) vector every ResourceVector carries.
type cocoCostModel struct {
	resourceMap  *util.ResourceMap
	taskMap      *util.TaskMap
	leafResIDset map[util.ResourceID]struct{}

	machines map[util.ResourceID]*pb.ResourceTopologyNodeDescriptor
}

// NewCocoCostModel returns a multidimensional resource-vector cost model.
func NewCocoCostModel(resourceMap *util.ResourceMap, taskMap *util.TaskMap, leafResIDset map[util.ResourceID]struct{}) CostModeler {
	return &cocoCostModel{
		resourceMap:  resourceMap,
		taskMap:      taskMap,
		leafResIDset: leafResIDset,
		machines:     make(map[util.ResourceID]*pb.ResourceTopologyNodeDescriptor),
	}
}

// fitCost is the Euclidean distance, in raw (cpu cores, ram) units, between
// a task's request and a machine's available capacity, mapped linearly from
// [0, 1<<20] onto [1, 1000]. A task that exactly consumes a machine's
// remaining headroom scores 1, and the cost grows with the headroom left
// over, so the tightest feasible fit is cheapest. A task that does not fit
// costs maxCapacity*maxCapacity.
func fitCost(request, available *pb.ResourceVector) int64 {
	if available == nil || request == nil {
		return maxCapacity
	}
	cpuGap := float64(available.GetCpuCores()) - float64(request.GetCpuCores())
	ramGap := float64(available.GetRamCap()) - float64(request.GetRamCap())
	if cpuGap < 0 || ramGap < 0 {
		return maxCapacity * maxCapacity
	}
	dist := math.Sqrt(cpuGap*cpuGap + ramGap*ramGap)
	return int64(normalizeCost(dist, 0, 1<<20, 1, 1000))
}

func (c *cocoCostModel) TaskToUnscheduledAgg(taskID util.TaskID) ArcDescriptor {
	td := c.taskMap.FindPtrOrNull(taskID)
	if td == nil {
		return NewArcDescriptor(baseDelta, 1, 0)
	}
	return NewArcDescriptor(int64(td.TotalUnscheduledTime*Unschedule_Factor)+baseDelta, 1, 0)
}

func (c *cocoCostModel) UnscheduledAggToSink(util.JobID) ArcDescriptor {
	return NewArcDescriptor(0, math.MaxUint32, 0)
}

func (c *cocoCostModel) TaskToResourceNode(taskID util.TaskID, resourceID util.ResourceID) ArcDescriptor {
	td := c.taskMap.FindPtrOrNull(taskID)
	rtnd, ok := c.machines[resourceID]
	if td == nil || !ok {
		return NewArcDescriptor(0, 0, 0)
	}
	cost := fitCost(td.ResourceRequest, rtnd.ResourceDesc.AvailableResources)
	return NewArcDescriptor(cost, 1, 0)
}

func (c *cocoCostModel) ResourceNodeToResourceNode(source, destination *pb.ResourceDescriptor) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (c *cocoCostModel) LeafResourceNodeToSink(resourceID util.ResourceID) ArcDescriptor {
	rtnd, ok := c.machines[resourceID]
	if !ok {
		return NewArcDescriptor(0, 1, 0)
	}
	slots := NewRequestSlots(rtnd.ResourceDesc.ResourceCapacity)
	return NewArcDescriptor(0, uint64(slots), 0)
}

func (c *cocoCostModel) TaskContinuation(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (c *cocoCostModel) TaskPreemption(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (c *cocoCostModel) TaskToEquivClassAggregator(util.TaskID, util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (c *cocoCostModel) EquivClassToResourceNode(util.EquivClass, util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (c *cocoCostModel) EquivClassToEquivClass(tec1, tec2 util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (c *cocoCostModel) GetTaskEquivClasses(util.TaskID) []util.EquivClass {
	return nil
}

func (c *cocoCostModel) GetOutgoingEquivClassPrefArcs(ec util.EquivClass) []util.ResourceID {
	return nil
}

func (c *cocoCostModel) GetTaskPreferenceArcs(util.TaskID) []util.ResourceID {
	ids := make([]util.ResourceID, 0, len(c.machines))
	for id := range c.machines {
		ids = append(ids, id)
	}
	return ids
}

func (c *cocoCostModel) GetEquivClassToEquivClassesArcs(util.EquivClass) []util.EquivClass {
	return nil
}

func (c *cocoCostModel) AddMachine(r *pb.ResourceTopologyNodeDescriptor) {
	id, err := util.ResourceIDFromString(r.ResourceDesc.Uuid)
	if err != nil {
		return
	}
	c.machines[id] = r
}

func (c *cocoCostModel) AddTask(util.TaskID) {}

func (c *cocoCostModel) RemoveMachine(id util.ResourceID) {
	delete(c.machines, id)
}

func (c *cocoCostModel) RemoveTask(util.TaskID) {}

func (c *cocoCostModel) GatherStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	return accumulator
}

func (c *cocoCostModel) PrepareStats(accumulator *flowgraph.Node) {}

func (c *cocoCostModel) UpdateStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	return accumulator
}

func (c *cocoCostModel) DebugInfo() string {
	return "coco"
}

func (c *cocoCostModel) DebugInfoCSV() string {
	return "coco"
}
