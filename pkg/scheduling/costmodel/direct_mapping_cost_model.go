package costmodel

import (
	"github.com/golang/glog"

	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	util "github.com/flowsched/flowsched/pkg/scheduling/utility"
)

var _ CostModeler = new(quincyCostModel)

// quincyCostModel is a slot-balancing cost model: every task/machine pair is
// interchangeable modulo slot availability, and preference arc cost pushes
// load towards whichever machines are furthest from the cluster-wide average
// utilization. It does not model data locality, unlike the cost model the
// Quincy paper it is named after describes; that term would need per-task
// input-data placement information this core does not track.
type quincyCostModel struct {
	resourceMap      *util.ResourceMap
	taskMap          *util.TaskMap
	leafResIDset     map[util.ResourceID]struct{}
	machineToResTopo map[util.ResourceID]*pb.ResourceTopologyNodeDescriptor

	maxTasksPerMachine uint64

	taskToRequestSlots     map[util.TaskID]RequestSlots
	jobToRequestSlots      map[util.JobID]RequestSlots
	machineToResourceSlots map[util.ResourceID]MachineResourceSlots

	sumTaskRequestSlots      RequestSlots
	sumMachineCapacitySlots  RequestSlots
	sumMachineAvailableSlots RequestSlots
}

const (
	// unscheduledCostFactor scales a task's accumulated wait time into an
	// unscheduled-arc cost; each tick of wait time makes staying unscheduled
	// this much more expensive relative to taking any available slot.
	unscheduledCostFactor uint64 = 10
	// unscheduledBaseCost is added on top of the wait-time term so a
	// just-submitted task's unscheduled arc still costs more than its
	// cheapest placement arc, keeping the solver from preferring to leave it
	// idle even at zero wait time.
	unscheduledBaseCost int64 = 101
	// costScale bounds the normalized preference arc cost range.
	costScale int64 = 100
)

// NewQuincyCostModel constructs the slot-balancing cost model.
func NewQuincyCostModel(resourceMap *util.ResourceMap, taskMap *util.TaskMap, leafResIDset map[util.ResourceID]struct{}, maxTasksPerMachine uint64) *quincyCostModel {
	return &quincyCostModel{
		resourceMap:            resourceMap,
		taskMap:                taskMap,
		leafResIDset:           leafResIDset,
		machineToResTopo:       make(map[util.ResourceID]*pb.ResourceTopologyNodeDescriptor),
		maxTasksPerMachine:     maxTasksPerMachine,
		taskToRequestSlots:     make(map[util.TaskID]RequestSlots),
		jobToRequestSlots:      make(map[util.JobID]RequestSlots),
		machineToResourceSlots: make(map[util.ResourceID]MachineResourceSlots),
	}
}

// TaskToUnscheduledAgg grows monotonically with the task's accumulated
// unscheduled wait time so a solver that keeps failing to place a task makes
// it progressively more attractive to place, at the cost of everything else.
func (m *quincyCostModel) TaskToUnscheduledAgg(taskID util.TaskID) ArcDescriptor {
	td := m.taskMap.FindPtrOrNull(taskID)
	if td == nil {
		glog.Fatalf("costmodel: no task descriptor for task %v", taskID)
	}
	waitTime := td.TotalUnscheduledTime
	capacity := m.slotsForTask(taskID)
	return NewArcDescriptor(int64(waitTime*unscheduledCostFactor)+unscheduledBaseCost, uint64(capacity), 0)
}

func (m *quincyCostModel) UnscheduledAggToSink(id util.JobID) ArcDescriptor {
	capacity := m.jobToRequestSlots[id]
	glog.V(2).Infof("costmodel: job %v unscheduled aggregator capacity %d", id, capacity)
	return NewArcDescriptor(0, uint64(capacity), 0)
}

// TaskToResourceNode prices a task's preference arc to a machine: zero
// capacity if the machine can't fit the request at all, otherwise a cost
// that rises as the machine's utilization moves closer to the cluster-wide
// balanced target, so machines furthest below it are cheapest, and rises
// sharply if placing the task would push the
// machine over that target.
func (m *quincyCostModel) TaskToResourceNode(taskID util.TaskID, resourceID util.ResourceID) ArcDescriptor {
	requestSlots := m.slotsForTask(taskID)
	slots := m.slotsForMachine(resourceID)
	capacity := slots.CapacitySlots
	usage := capacity - slots.AvailableSlots
	if requestSlots > slots.AvailableSlots {
		return NewArcDescriptor(0, 0, 0)
	}

	balanced := m.balancedUtilization()
	var overloadFactor int64 = 1
	targetCapacity := float64(capacity) * balanced
	if float64(requestSlots) > float64(capacity)-float64(usage) {
		overloadFactor = 2
	}

	rawCost := float64(costScale*costScale) / ((targetCapacity - float64(usage)) * float64(requestSlots))
	cost := normalizeCost(rawCost, 1, 10000, 1, 100)
	glog.V(3).Infof("costmodel: resource %d capacity=%d target=%.1f usage=%d request=%d cost=%.1f",
		resourceID, capacity, targetCapacity, usage, requestSlots, cost)
	return NewArcDescriptor(int64(cost)*overloadFactor, uint64(requestSlots), 0)
}

func (m *quincyCostModel) ResourceNodeToResourceNode(source, destination *pb.ResourceDescriptor) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (m *quincyCostModel) LeafResourceNodeToSink(resourceID util.ResourceID) ArcDescriptor {
	slots := m.slotsForMachine(resourceID)
	return NewArcDescriptor(0, uint64(slots.CapacitySlots), 0)
}

func (m *quincyCostModel) TaskContinuation(id util.TaskID) ArcDescriptor {
	capacity := m.slotsForTask(id)
	return NewArcDescriptor(0, uint64(capacity), 0)
}

func (m *quincyCostModel) TaskPreemption(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (m *quincyCostModel) TaskToEquivClassAggregator(util.TaskID, util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (m *quincyCostModel) EquivClassToResourceNode(util.EquivClass, util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (m *quincyCostModel) EquivClassToEquivClass(tec1, tec2 util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

// GetTaskEquivClasses always reports no equivalence classes: this cost model
// prices task/machine preference arcs directly rather than routing through
// an aggregator, so it never groups tasks that way.
func (m *quincyCostModel) GetTaskEquivClasses(util.TaskID) []util.EquivClass {
	return nil
}

func (m *quincyCostModel) GetOutgoingEquivClassPrefArcs(ec util.EquivClass) []util.ResourceID {
	return nil
}

// GetTaskPreferenceArcs reports every machine as a placement candidate;
// TaskToResourceNode is what actually rules out machines that can't fit the
// request, by returning a zero-capacity arc.
func (m *quincyCostModel) GetTaskPreferenceArcs(util.TaskID) []util.ResourceID {
	resourceIDs := make([]util.ResourceID, 0, len(m.machineToResTopo))
	for resourceID, rtnd := range m.machineToResTopo {
		if rtnd.ResourceDesc.Type == pb.ResourceDescriptor_RESOURCE_MACHINE {
			resourceIDs = append(resourceIDs, resourceID)
		}
	}
	return resourceIDs
}

func (m *quincyCostModel) GetEquivClassToEquivClassesArcs(util.EquivClass) []util.EquivClass {
	return nil
}

func (m *quincyCostModel) AddMachine(r *pb.ResourceTopologyNodeDescriptor) {
	id, err := util.ResourceIDFromString(r.ResourceDesc.Uuid)
	if err != nil {
		glog.Fatalf("costmodel: bad resource uuid %q: %v", r.ResourceDesc.Uuid, err)
	}
	if _, ok := m.machineToResTopo[id]; !ok {
		m.machineToResTopo[id] = r
	}
	slots := m.slotsForMachine(id)
	r.ResourceDesc.NumSlotsBelow = uint64(slots.CapacitySlots)
}

func (m *quincyCostModel) AddTask(id util.TaskID) {
	m.slotsForTask(id)
}

func (m *quincyCostModel) RemoveMachine(id util.ResourceID) {
	if _, ok := m.machineToResTopo[id]; !ok {
		glog.Fatalf("costmodel: resource %d already removed or never registered", id)
	}
	delete(m.machineToResTopo, id)

	if slots, ok := m.machineToResourceSlots[id]; ok {
		m.sumMachineCapacitySlots -= slots.CapacitySlots
		delete(m.machineToResourceSlots, id)
	} else {
		glog.Fatalf("costmodel: resource %d already removed or never registered", id)
	}
}

func (m *quincyCostModel) RemoveTask(id util.TaskID) {
	slots, ok := m.taskToRequestSlots[id]
	if !ok {
		glog.Fatalf("costmodel: task %v already removed or never registered", id)
	}
	m.sumTaskRequestSlots -= slots
	td := m.taskMap.FindPtrOrNull(id)
	if td == nil {
		glog.Fatalf("costmodel: no task descriptor for task %v being removed", id)
	}
	jobID := util.MustJobIDFromString(td.GetJobId())
	m.jobToRequestSlots[jobID] -= slots
	delete(m.taskToRequestSlots, id)
}

// GatherStats refreshes a machine's cached available-slot count once its
// resource descriptor's live utilization has been folded in from below, so
// TaskToResourceNode's balancing decision reflects current occupancy rather
// than what the machine looked like when it was registered.
func (m *quincyCostModel) GatherStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	if !accumulator.IsResourceNode() {
		return accumulator
	}
	if !other.IsResourceNode() {
		if other.Type == flowgraph.NodeTypeSink {
			accumulator.ResourceDescriptor.NumRunningTasksBelow = uint64(len(accumulator.ResourceDescriptor.CurrentRunningTasks))
			slots := m.machineToResourceSlots[accumulator.ResourceID]
			newAvailable := NewRequestSlots(accumulator.ResourceDescriptor.AvailableResources)
			m.machineToResourceSlots[accumulator.ResourceID] = NewMachineResourceSlots(slots.CapacitySlots, newAvailable)
			m.sumMachineAvailableSlots += newAvailable - slots.AvailableSlots
		}
		return accumulator
	}
	if other.ResourceDescriptor == nil {
		glog.Fatalf("costmodel: resource node %d has no resource descriptor", other.ID)
	}
	return accumulator
}

func (m *quincyCostModel) PrepareStats(accumulator *flowgraph.Node) {}

func (m *quincyCostModel) UpdateStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	return accumulator
}

func (m *quincyCostModel) DebugInfo() string {
	return "debug"
}

func (m *quincyCostModel) DebugInfoCSV() string {
	return "debug"
}

// balancedUtilization is the fraction of total machine capacity that would
// be in use if, on top of current usage, the request of every task the
// model tracks (added and not yet removed) were granted,
// i.e. the utilization level TaskToResourceNode treats as the balanced
// target for every machine.
func (m *quincyCostModel) balancedUtilization() float64 {
	usage := m.sumMachineCapacitySlots - m.sumMachineAvailableSlots
	balanced := float64(usage+m.sumTaskRequestSlots) / float64(m.sumMachineCapacitySlots)
	glog.V(3).Infof("costmodel: balanced utilization target %.4f", balanced)
	return balanced
}

// slotsForTask returns a task's request in slots, computing and caching it
// (and folding it into the running sums) on first lookup.
func (m *quincyCostModel) slotsForTask(id util.TaskID) RequestSlots {
	if slots, ok := m.taskToRequestSlots[id]; ok {
		return slots
	}
	td := m.taskMap.FindPtrOrNull(id)
	if td == nil {
		glog.Fatalf("costmodel: no task descriptor for task %v", id)
	}
	slots := NewRequestSlots(td.ResourceRequest)
	m.taskToRequestSlots[id] = slots
	jobID := util.MustJobIDFromString(td.GetJobId())
	m.jobToRequestSlots[jobID] += slots
	m.sumTaskRequestSlots += slots
	return slots
}

// slotsForMachine returns a machine's capacity/availability in slots,
// computing and caching it (and folding it into the running sums) on first
// lookup.
func (m *quincyCostModel) slotsForMachine(id util.ResourceID) MachineResourceSlots {
	if slots, ok := m.machineToResourceSlots[id]; ok {
		return slots
	}
	rtnd, ok := m.machineToResTopo[id]
	if !ok {
		glog.Fatalf("costmodel: no resource topology node for resource %v", id)
	}
	slots := NewMachineResourceSlots(
		NewRequestSlots(rtnd.ResourceDesc.ResourceCapacity),
		NewRequestSlots(rtnd.ResourceDesc.AvailableResources),
	)
	m.sumMachineCapacitySlots += slots.CapacitySlots
	m.sumMachineAvailableSlots += slots.AvailableSlots
	m.machineToResourceSlots[id] = slots
	return slots
}

func normalizeCost(cost, minBefore, maxBefore, minAfter, maxAfter float64) float64 {
	return (maxAfter-minAfter)*((cost-minBefore)/(maxBefore-minBefore)) + minAfter
}
