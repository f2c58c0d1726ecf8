// Package proto holds the domain messages exchanged between the outer
// scheduler and this scheduling core: job/task/resource descriptors and the
// scheduling deltas produced by a round. These are plain Go structs rather
// than compiler-generated protobuf bindings — the wire encoding for the
// control-plane surface is JSON over HTTP (see pkg/transport/httpapi) and
// Pulsar message payloads (see pkg/eventbus), not protobuf.
package proto

// ResourceVector describes a quantity of resources along the dimensions the
// cost models reason about.
type ResourceVector struct {
	CpuCores float32 `json:"cpu_cores"`
	RamCap   uint64  `json:"ram_cap"`
	DiskBw   uint64  `json:"disk_bw,omitempty"`
	NetBw    uint64  `json:"net_bw,omitempty"`
}

func (rv *ResourceVector) GetCpuCores() float32 {
	if rv == nil {
		return 0
	}
	return rv.CpuCores
}

func (rv *ResourceVector) GetRamCap() uint64 {
	if rv == nil {
		return 0
	}
	return rv.RamCap
}

type ResourceDescriptor_ResourceType int

const (
	ResourceDescriptor_RESOURCE_COORDINATOR ResourceDescriptor_ResourceType = iota
	ResourceDescriptor_RESOURCE_MACHINE
	ResourceDescriptor_RESOURCE_NUMA_NODE
	ResourceDescriptor_RESOURCE_SOCKET
	ResourceDescriptor_RESOURCE_CACHE
	ResourceDescriptor_RESOURCE_CORE
	ResourceDescriptor_RESOURCE_PU
)

type ResourceDescriptor_ResourceState int

const (
	ResourceDescriptor_RESOURCE_IDLE ResourceDescriptor_ResourceState = iota
	ResourceDescriptor_RESOURCE_BUSY
	ResourceDescriptor_RESOURCE_FAILED
)

// ResourceDescriptor is the outer scheduler's view of a single node in the
// resource topology (a whole machine, or a component within one).
type ResourceDescriptor struct {
	Uuid         string
	FriendlyName string
	Type         ResourceDescriptor_ResourceType
	State        ResourceDescriptor_ResourceState

	ResourceCapacity    *ResourceVector
	AvailableResources  *ResourceVector
	ReservedResources   *ResourceVector

	// Schedulable is false for resources temporarily withheld from placement
	// (e.g. cordoned nodes); the coordinator's own synthetic root resource
	// leaves it true since nothing is ever placed directly on it.
	Schedulable bool

	// CurrentRunningTasks holds the uids of tasks currently bound and running
	// on this resource.
	CurrentRunningTasks []uint64

	// NumSlotsBelow and NumRunningTasksBelow are rollups over the resource's
	// subtree, maintained bottom-up by the graph manager as topology changes.
	NumSlotsBelow         uint64
	NumRunningTasksBelow  uint64

	// MachineType is an optional label ("skylake", "graviton", ...) consumed
	// by the Whare cost model's task/machine compatibility matrix. Empty
	// means "unclassified".
	MachineType string
}

// ResourceTopologyNodeDescriptor is one node of the resource tree submitted
// by the outer scheduler (e.g. machine -> NUMA node -> socket -> core -> PU).
type ResourceTopologyNodeDescriptor struct {
	ResourceDesc *ResourceDescriptor
	ParentId     string
	Children     []*ResourceTopologyNodeDescriptor
}

type JobDescriptor_JobState int

const (
	JobDescriptor_CREATED JobDescriptor_JobState = iota
	JobDescriptor_RUNNING
	JobDescriptor_COMPLETED
	JobDescriptor_FAILED
)

// JobDescriptor is the outer scheduler's record for a submitted job: its
// root task and, transitively via TaskDescriptor.Spawned, every task in it.
type JobDescriptor struct {
	Uuid     string
	Name     string
	State    JobDescriptor_JobState
	RootTask *TaskDescriptor
}

type TaskDescriptor_TaskState int

const (
	TaskDescriptor_CREATED TaskDescriptor_TaskState = iota
	TaskDescriptor_RUNNABLE
	TaskDescriptor_ASSIGNED
	TaskDescriptor_RUNNING
	TaskDescriptor_COMPLETED
	TaskDescriptor_FAILED
	TaskDescriptor_ABORTED
)

// TaskDescriptor is the outer scheduler's record for a single task. Spawned
// holds dynamically-created child tasks (a task can fork more work once
// running), forming the same task DAG the original Firmament design used for
// lazy graph reduction; this core walks it read-only to compute runnable
// tasks.
type TaskDescriptor struct {
	Uid   uint64
	Name  string
	JobId string
	State TaskDescriptor_TaskState

	ResourceRequest *ResourceVector

	Spawned []*TaskDescriptor

	// TotalUnscheduledTime accumulates, in whatever tick unit the outer
	// scheduler reports on, how long this task has sat unscheduled; cost
	// models use it to make leaving a task unscheduled monotonically more
	// expensive the longer it waits.
	TotalUnscheduledTime uint64

	// EstimatedRuntimeMs is an optional hint from a runtime estimator,
	// consumed by the SJF cost model. Zero means "no estimate available".
	EstimatedRuntimeMs uint64

	// WorkloadClass is an optional label ("cpu-bound", "io-bound", ...)
	// consumed by the Whare cost model's task/machine compatibility matrix.
	// Empty means "unclassified".
	WorkloadClass string

	// DelegatedFrom is non-empty when this task was delegated in from another
	// scheduler instance; such tasks are not represented in this core's flow
	// network.
	DelegatedFrom []string
}

func (td *TaskDescriptor) GetJobId() string {
	if td == nil {
		return ""
	}
	return td.JobId
}

// TaskFinalReport carries the terminal accounting for a completed task.
type TaskFinalReport struct {
	TaskId        uint64
	FinishTime    int64
	FinalState    TaskDescriptor_TaskState
}

type SchedulingDelta_SchedulingDeltaType int

const (
	SchedulingDelta_NOOP SchedulingDelta_SchedulingDeltaType = iota
	SchedulingDelta_PLACE
	SchedulingDelta_PREEMPT
	SchedulingDelta_MIGRATE
)

// SchedulingDelta is one action the scheduling core asks the outer system to
// carry out as the result of a round: bind, evict or move a task.
type SchedulingDelta struct {
	Type       SchedulingDelta_SchedulingDeltaType
	TaskId     uint64
	ResourceId string
}
