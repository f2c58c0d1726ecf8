package utils

import (
	"bytes"
	"container/heap"
	"sort"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/golang/glog"

	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
)

// Mapping is a task/resource node pair as read back out of a solved flow
// graph.
type Mapping struct {
	TaskId     flowgraph.NodeID
	ResourceId flowgraph.NodeID
}

// TaskStruct pairs a task node with the flow it was carrying, used when
// sorting tasks by size before greedy repair.
type TaskStruct struct {
	TaskId flowgraph.NodeID
	Flow   uint64
}

// MachineStruct pairs a machine node with its residual (unused) capacity.
type MachineStruct struct {
	MachineId flowgraph.NodeID
	Residual  uint64
}

// BinaryMinHeap is a container/heap.Interface over *MachineStruct that pops
// the machine with the LARGEST residual capacity first, so greedy repair
// always tries to place a displaced task on the emptiest machine first.
type BinaryMinHeap []*MachineStruct

func (pq BinaryMinHeap) Len() int           { return len(pq) }
func (pq BinaryMinHeap) Less(i, j int) bool { return pq[i].Residual > pq[j].Residual }
func (pq BinaryMinHeap) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }
func (pq *BinaryMinHeap) Push(x interface{}) {
	*pq = append(*pq, x.(*MachineStruct))
}
func (pq *BinaryMinHeap) Pop() interface{} {
	old := *pq
	n := len(old)
	if n == 0 {
		return nil
	}
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ExtractScheduleResult reads every task-to-resource binding out of a solved
// flow graph, keyed by (task node, resource node) and valued by the flow
// carried across that binding. sourceId is excluded from the walk since the
// synthetic super-source is never itself a placement target.
func ExtractScheduleResult(graph *flowgraph.Graph, sourceId flowgraph.NodeID) map[Mapping]uint64 {
	result := make(map[Mapping]uint64)

	for task := range graph.TaskSet {
		for id, arc := range task.IncomingArcMap {
			if id == sourceId {
				continue
			}
			m := Mapping{TaskId: arc.DstNode.ID, ResourceId: arc.SrcNode.ID}
			result[m] += arc.CapUpperBound
		}
	}

	return result
}

// GreedyRepairFlow fixes up a schedule where the min-cost flow solver split
// a single task's demand across more than one machine: a valid flow, but an
// invalid placement, since a task can only run in one place. Every
// over-split task is pulled off its machines entirely, then tasks are
// re-assigned largest-flow-first onto whichever machine currently has the
// most residual capacity. Returns the repaired schedule and the number of
// tasks that needed repair.
func GreedyRepairFlow(graph *flowgraph.Graph, scheduleResult map[Mapping]uint64, sinkId flowgraph.NodeID) (map[Mapping]uint64, int) {
	machineResidual := make(map[flowgraph.NodeID]uint64)
	for machine := range graph.ResourceSet {
		machineResidual[machine.ID] = machine.GetResidualy(sinkId)
	}

	machinesByTask := make(map[flowgraph.NodeID][]flowgraph.NodeID)
	for mapping := range scheduleResult {
		machinesByTask[mapping.TaskId] = append(machinesByTask[mapping.TaskId], mapping.ResourceId)
	}

	toReschedule := make(map[flowgraph.NodeID]uint64)
	repairCount := 0
	for taskId, machines := range machinesByTask {
		if len(machines) <= 1 {
			continue
		}
		repairCount++
		for _, machineId := range machines {
			m := Mapping{taskId, machineId}
			flow := scheduleResult[m]
			machineResidual[machineId] += flow
			scheduleResult[m] = 0
			toReschedule[taskId] += flow
		}
	}

	tasks := make([]TaskStruct, 0, len(toReschedule))
	for taskId, flow := range toReschedule {
		tasks = append(tasks, TaskStruct{TaskId: taskId, Flow: flow})
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Flow > tasks[j].Flow })

	pq := make(BinaryMinHeap, 0, len(machineResidual))
	for machineId, residual := range machineResidual {
		pq = append(pq, &MachineStruct{MachineId: machineId, Residual: residual})
	}
	heap.Init(&pq)

	for _, task := range tasks {
		emptiest := heap.Pop(&pq).(*MachineStruct)
		if task.Flow <= emptiest.Residual {
			scheduleResult[Mapping{task.TaskId, emptiest.MachineId}] = task.Flow
			heap.Push(&pq, &MachineStruct{MachineId: emptiest.MachineId, Residual: emptiest.Residual - task.Flow})
		} else {
			heap.Push(&pq, emptiest)
			scheduleResult[Mapping{task.TaskId, 0}] = 0
		}
	}

	return scheduleResult, repairCount
}

// ExamCostModel logs a coarse utilization report for a solved schedule: how
// many task slots ended up unscheduled, how many machine slots are free
// overall, and a histogram of per-machine utilization. Purely diagnostic,
// gated behind glog verbosity so it costs nothing in production.
func ExamCostModel(graph *flowgraph.Graph, tm map[flowgraph.NodeID]flowgraph.NodeID) {
	if !glog.V(2) {
		return
	}

	capacity := make(map[flowgraph.NodeID]uint64)
	usage := make(map[flowgraph.NodeID]uint64)
	var totalFreeSlots, totalUnscheduledSlots uint64

	for node := range graph.ResourceSet {
		var machineCapacity uint64
		if outArc := graph.GetArcByIds(node.ID, graph.SinkID); outArc != nil {
			machineCapacity += outArc.CapUpperBound
		}
		if inArc := graph.GetArcByIds(graph.SinkID, node.ID); inArc != nil {
			machineCapacity += inArc.CapUpperBound
		}
		capacity[node.ID] = machineCapacity
		totalFreeSlots += machineCapacity
	}

	for taskId, machineId := range tm {
		srcNode := graph.Node(taskId)
		dstNode := graph.Node(machineId)
		if dstNode.Type == flowgraph.NodeTypeJobAggregator {
			totalUnscheduledSlots += uint64(srcNode.Excess)
			continue
		}
		totalFreeSlots -= uint64(srcNode.Excess)
		usage[machineId] += uint64(srcNode.Excess)
	}

	glog.Infof("mcmf: schedule leaves %d unscheduled slots and %d free slots", totalUnscheduledSlots, totalFreeSlots)

	utilization := make([]float64, 0, len(capacity))
	for id, cap := range capacity {
		if cap == 0 {
			continue
		}
		utilization = append(utilization, float64(usage[id])/float64(cap))
	}

	hist := histogram.Hist(10, utilization)
	var buf bytes.Buffer
	if err := histogram.Fprint(&buf, hist, histogram.Linear(5)); err == nil {
		glog.Infof("mcmf: machine utilization distribution:\n%s", buf.String())
	}
}
