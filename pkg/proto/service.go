package proto

import "context"

// FirmamentSchedulerServer is the control-plane contract the outer scheduler
// drives: submit/complete/fail/remove tasks, add/remove/update resource
// nodes, request a scheduling round, and report usage stats. It is served
// over HTTP by pkg/transport/httpapi and consumed asynchronously by
// pkg/eventbus; both adapters call straight through to an implementation of
// this interface, so scheduling logic itself never depends on a transport.
type FirmamentSchedulerServer interface {
	Schedule(context.Context, *ScheduleRequest) (*SchedulingDeltas, error)

	TaskCompleted(context.Context, *TaskUID) (*TaskCompletedResponse, error)
	TaskFailed(context.Context, *TaskUID) (*TaskFailedResponse, error)
	TaskRemoved(context.Context, *TaskUID) (*TaskRemovedResponse, error)
	TaskSubmitted(context.Context, *TaskDescription) (*TaskSubmittedResponse, error)
	TaskUpdated(context.Context, *TaskDescription) (*TaskUpdatedResponse, error)

	NodeAdded(context.Context, *ResourceTopologyNodeDescriptor) (*NodeAddedResponse, error)
	NodeFailed(context.Context, *ResourceUID) (*NodeFailedResponse, error)
	NodeRemoved(context.Context, *ResourceUID) (*NodeRemovedResponse, error)
	NodeUpdated(context.Context, *ResourceTopologyNodeDescriptor) (*NodeUpdatedResponse, error)

	AddTaskStats(context.Context, *TaskStats) (*TaskStatsResponse, error)
	AddNodeStats(context.Context, *ResourceStats) (*ResourceStatsResponse, error)
}

type ScheduleRequest struct{}

type SchedulingDeltas struct {
	Deltas []*SchedulingDelta
}

type TaskUID struct {
	TaskUid uint64
}

type TaskReplyType int

const (
	TaskReplyType_TASK_SUBMITTED_OK TaskReplyType = iota
	TaskReplyType_TASK_COMPLETED_OK
	TaskReplyType_TASK_REMOVED_OK
	TaskReplyType_TASK_UPDATED_OK
	TaskReplyType_TASK_FAILED_OK
	TaskReplyType_TASK_NOT_FOUND
)

type TaskCompletedResponse struct{ Type TaskReplyType }
type TaskFailedResponse struct{ Type TaskReplyType }
type TaskRemovedResponse struct{ Type TaskReplyType }
type TaskSubmittedResponse struct{ Type TaskReplyType }
type TaskUpdatedResponse struct{ Type TaskReplyType }

// TaskDescription pairs a task with the job it belongs to, since a task
// submission needs both to attach the task under its job's root.
type TaskDescription struct {
	TaskDescriptor *TaskDescriptor
	JobDescriptor  *JobDescriptor
}

type ResourceUID struct {
	ResourceUid string
}

type NodeReplyType int

const (
	NodeReplyType_NODE_ADDED_OK NodeReplyType = iota
	NodeReplyType_NODE_REMOVED_OK
	NodeReplyType_NODE_UPDATED_OK
	NodeReplyType_NODE_FAILED_OK
	NodeReplyType_NODE_NOT_FOUND
)

type NodeAddedResponse struct{ Type NodeReplyType }
type NodeFailedResponse struct{ Type NodeReplyType }
type NodeRemovedResponse struct{ Type NodeReplyType }
type NodeUpdatedResponse struct{ Type NodeReplyType }

// TaskStats and ResourceStats carry periodic usage samples from the outer
// scheduler's monitoring agents. The scheduler service checks that the task
// or resource exists and logs the sample; no cost model reads these values.
type TaskStats struct {
	TaskId     uint64
	CpuUsage   float32
	RamUsageMb uint64
}

type ResourceStats struct {
	ResourceId  string
	CpuUsage    float32
	RamUsageMb  uint64
}

type TaskStatsResponse struct{ Accepted bool }
type ResourceStatsResponse struct{ Accepted bool }
