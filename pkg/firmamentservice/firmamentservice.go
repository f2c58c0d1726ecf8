package firmamentservice

import (
	"context"
	"fmt"
	"strconv"

	"github.com/golang/glog"

	"github.com/flowsched/flowsched/pkg/metrics"
	"github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/flowscheduler"
	"github.com/flowsched/flowsched/pkg/scheduling/trigger"
	"github.com/flowsched/flowsched/pkg/scheduling/utility"
)

var _ proto.FirmamentSchedulerServer = &schedulerServer{}

// schedulerServer adapts the flowscheduler.Scheduler control surface to the
// FirmamentSchedulerServer contract: it owns the job/task/resource maps the
// scheduler only ever borrows pointers into, and it is the one place that
// translates wire-level requests into scheduler calls and back into replies.
type schedulerServer struct {
	scheduler flowscheduler.Scheduler

	jobMap      *utility.JobMap
	taskMap     *utility.TaskMap
	resourceMap *utility.ResourceMap

	topLevelResID utility.ResourceID

	// jobIncompleteTasksNumMap counts, per job, how many of its tasks have
	// not yet completed. It reaches zero exactly when the job is done.
	jobIncompleteTasksNumMap map[utility.JobID]uint64
	// jobTasksNumToRemoveMap counts, per job, how many of its tasks are
	// still known to the scheduler. It reaches zero once every task
	// belonging to the job has been explicitly removed, at which point the
	// job's own bookkeeping can be torn down too.
	jobTasksNumToRemoveMap map[utility.JobID]uint64

	// metrics is nil unless the caller opted into Prometheus instrumentation
	// via NewInstrumentedSchedulerServer.
	metrics *metrics.SchedulerMetrics

	// trigger coalesces bursts of task submissions and node arrivals into a
	// single debounced scheduling round, on top of whatever the caller
	// triggers explicitly via Schedule.
	trigger *trigger.Debouncer
}

// NewSchedulerServer builds a scheduler server around a fresh scheduling
// core configured by cfg, seeded with a synthetic coordinator resource that
// acts as the root of the resource topology.
func NewSchedulerServer(cfg flowscheduler.Config) (proto.FirmamentSchedulerServer, error) {
	return newSchedulerServer(cfg, nil)
}

// NewInstrumentedSchedulerServer is NewSchedulerServer plus Prometheus
// instrumentation of every scheduling round through m.
func NewInstrumentedSchedulerServer(cfg flowscheduler.Config, m *metrics.SchedulerMetrics) (proto.FirmamentSchedulerServer, error) {
	return newSchedulerServer(cfg, m)
}

func newSchedulerServer(cfg flowscheduler.Config, m *metrics.SchedulerMetrics) (proto.FirmamentSchedulerServer, error) {
	jobMap := utility.NewJobMap()
	taskMap := utility.NewTaskMap()
	resourceMap := utility.NewResourceMap()

	rs := utility.CreateTopLevelResourceStatus()
	topLevelResID := utility.MustResourceIDFromString(rs.Descriptor.Uuid)
	resourceMap.InsertIfNotPresent(topLevelResID, rs)

	sched, err := flowscheduler.NewScheduler(jobMap, resourceMap, rs.TopologyNode, taskMap, cfg)
	if err != nil {
		return nil, fmt.Errorf("constructing scheduler: %w", err)
	}

	ss := &schedulerServer{
		scheduler:   sched,
		jobMap:      jobMap,
		taskMap:     taskMap,
		resourceMap: resourceMap,

		topLevelResID: topLevelResID,

		jobIncompleteTasksNumMap: make(map[utility.JobID]uint64),
		jobTasksNumToRemoveMap:   make(map[utility.JobID]uint64),

		metrics: m,
		trigger: trigger.NewDebouncer(),
	}

	go ss.trigger.Run(func() {
		if _, err := ss.Schedule(context.Background(), &proto.ScheduleRequest{}); err != nil {
			glog.Errorf("triggered scheduling round failed: %v", err)
		}
	})

	return ss, nil
}

// Schedule runs one scheduling round over every job with pending work and
// reports the resulting placement/eviction/migration deltas.
func (ss *schedulerServer) Schedule(ctx context.Context, req *proto.ScheduleRequest) (*proto.SchedulingDeltas, error) {
	stats := utility.NewSchedulerStats()
	numScheduled, deltas := ss.scheduler.ScheduleAllJobs(stats)
	glog.V(2).Infof("scheduling round: %d us total, %d us in solver", stats.TotalRuntime(), stats.AlgorithmRuntime())
	if ss.metrics != nil {
		ss.metrics.ObserveRound(
			float64(stats.TotalRuntime())/1e6,
			float64(stats.AlgorithmRuntime())/1e6,
			numScheduled,
			nil,
		)
	}

	out := make([]*proto.SchedulingDelta, len(deltas))
	for i := range deltas {
		d := deltas[i]
		out[i] = &d
	}
	return &proto.SchedulingDeltas{Deltas: out}, nil
}

// decrementIncomplete marks one of jobID's tasks as no longer incomplete
// (completed or failed) and fires job completion once none remain.
func (ss *schedulerServer) decrementIncomplete(jobID utility.JobID) {
	remaining, ok := ss.jobIncompleteTasksNumMap[jobID]
	if !ok || remaining == 0 {
		return
	}
	remaining--
	ss.jobIncompleteTasksNumMap[jobID] = remaining
	if remaining == 0 {
		ss.scheduler.HandleJobCompletion(jobID)
	}
}

// decrementToRemove marks one of jobID's tasks as removed and tears down
// the job's own bookkeeping once every task belonging to it is gone.
func (ss *schedulerServer) decrementToRemove(jobID utility.JobID) {
	remaining, ok := ss.jobTasksNumToRemoveMap[jobID]
	if !ok || remaining == 0 {
		return
	}
	remaining--
	ss.jobTasksNumToRemoveMap[jobID] = remaining
	if remaining == 0 {
		ss.scheduler.HandleJobRemoval(jobID)
		ss.jobMap.Delete(jobID)
		delete(ss.jobIncompleteTasksNumMap, jobID)
		delete(ss.jobTasksNumToRemoveMap, jobID)
	}
}

func (ss *schedulerServer) TaskCompleted(ctx context.Context, uid *proto.TaskUID) (*proto.TaskCompletedResponse, error) {
	td := ss.taskMap.FindPtrOrNull(utility.TaskID(uid.TaskUid))
	if td == nil {
		return &proto.TaskCompletedResponse{Type: proto.TaskReplyType_TASK_NOT_FOUND}, nil
	}
	report := &proto.TaskFinalReport{
		TaskId:     uid.TaskUid,
		FinalState: proto.TaskDescriptor_COMPLETED,
	}
	ss.scheduler.HandleTaskCompletion(td, report)
	ss.decrementIncomplete(utility.MustJobIDFromString(td.JobId))
	return &proto.TaskCompletedResponse{Type: proto.TaskReplyType_TASK_COMPLETED_OK}, nil
}

func (ss *schedulerServer) TaskFailed(ctx context.Context, uid *proto.TaskUID) (*proto.TaskFailedResponse, error) {
	td := ss.taskMap.FindPtrOrNull(utility.TaskID(uid.TaskUid))
	if td == nil {
		return &proto.TaskFailedResponse{Type: proto.TaskReplyType_TASK_NOT_FOUND}, nil
	}
	ss.scheduler.HandleTaskFailure(td)
	ss.decrementIncomplete(utility.MustJobIDFromString(td.JobId))
	return &proto.TaskFailedResponse{Type: proto.TaskReplyType_TASK_FAILED_OK}, nil
}

func (ss *schedulerServer) TaskRemoved(ctx context.Context, uid *proto.TaskUID) (*proto.TaskRemovedResponse, error) {
	taskID := utility.TaskID(uid.TaskUid)
	td := ss.taskMap.FindPtrOrNull(taskID)
	if td == nil {
		return &proto.TaskRemovedResponse{Type: proto.TaskReplyType_TASK_NOT_FOUND}, nil
	}
	jobID := utility.MustJobIDFromString(td.JobId)
	ss.scheduler.HandleTaskRemoval(td)
	ss.taskMap.Delete(taskID)
	ss.decrementToRemove(jobID)
	return &proto.TaskRemovedResponse{Type: proto.TaskReplyType_TASK_REMOVED_OK}, nil
}

// TaskSubmitted registers a task (and, the first time a job's task is seen,
// the job itself) with the scheduler's maps and marks the job pending a
// scheduling round.
func (ss *schedulerServer) TaskSubmitted(ctx context.Context, desc *proto.TaskDescription) (*proto.TaskSubmittedResponse, error) {
	td := desc.TaskDescriptor
	jd := desc.JobDescriptor
	if td == nil || jd == nil {
		return &proto.TaskSubmittedResponse{Type: proto.TaskReplyType_TASK_NOT_FOUND}, nil
	}

	taskID := utility.TaskID(td.Uid)
	if td.State == proto.TaskDescriptor_CREATED {
		td.State = proto.TaskDescriptor_RUNNABLE
	}
	ss.taskMap.InsertIfNotPresent(taskID, td)

	jobID := utility.MustJobIDFromString(jd.Uuid)
	if ss.jobMap.InsertIfNotPresent(jobID, jd) {
		ss.scheduler.AddJob(jd)
	}
	ss.jobIncompleteTasksNumMap[jobID]++
	ss.jobTasksNumToRemoveMap[jobID]++

	ss.trigger.Signal()
	return &proto.TaskSubmittedResponse{Type: proto.TaskReplyType_TASK_SUBMITTED_OK}, nil
}

func (ss *schedulerServer) TaskUpdated(ctx context.Context, desc *proto.TaskDescription) (*proto.TaskUpdatedResponse, error) {
	td := desc.TaskDescriptor
	existing := ss.taskMap.FindPtrOrNull(utility.TaskID(td.Uid))
	if existing == nil {
		return &proto.TaskUpdatedResponse{Type: proto.TaskReplyType_TASK_NOT_FOUND}, nil
	}
	*existing = *td
	return &proto.TaskUpdatedResponse{Type: proto.TaskReplyType_TASK_UPDATED_OK}, nil
}

// NodeAdded registers a new resource (topology subtree) with the scheduler.
// A node submitted without a parent is attached directly beneath the
// synthetic coordinator root.
func (ss *schedulerServer) NodeAdded(ctx context.Context, rtnd *proto.ResourceTopologyNodeDescriptor) (*proto.NodeAddedResponse, error) {
	if rtnd.ParentId == "" {
		rtnd.ParentId = strconv.FormatUint(uint64(ss.topLevelResID), 10)
	}
	rID := utility.MustResourceIDFromString(rtnd.ResourceDesc.Uuid)
	ss.resourceMap.InsertIfNotPresent(rID, &utility.ResourceStatus{
		Descriptor:   rtnd.ResourceDesc,
		TopologyNode: rtnd,
	})
	ss.scheduler.RegisterResource(rtnd)
	ss.trigger.Signal()
	return &proto.NodeAddedResponse{Type: proto.NodeReplyType_NODE_ADDED_OK}, nil
}

func (ss *schedulerServer) NodeFailed(ctx context.Context, uid *proto.ResourceUID) (*proto.NodeFailedResponse, error) {
	rID, err := utility.ResourceIDFromString(uid.ResourceUid)
	if err != nil {
		return &proto.NodeFailedResponse{Type: proto.NodeReplyType_NODE_NOT_FOUND}, nil
	}
	rs := ss.resourceMap.FindPtrOrNull(rID)
	if rs == nil {
		return &proto.NodeFailedResponse{Type: proto.NodeReplyType_NODE_NOT_FOUND}, nil
	}
	ss.scheduler.DeregisterResource(rs.TopologyNode)
	return &proto.NodeFailedResponse{Type: proto.NodeReplyType_NODE_FAILED_OK}, nil
}

func (ss *schedulerServer) NodeRemoved(ctx context.Context, uid *proto.ResourceUID) (*proto.NodeRemovedResponse, error) {
	rID, err := utility.ResourceIDFromString(uid.ResourceUid)
	if err != nil {
		return &proto.NodeRemovedResponse{Type: proto.NodeReplyType_NODE_NOT_FOUND}, nil
	}
	rs := ss.resourceMap.FindPtrOrNull(rID)
	if rs == nil {
		return &proto.NodeRemovedResponse{Type: proto.NodeReplyType_NODE_NOT_FOUND}, nil
	}
	ss.scheduler.DeregisterResource(rs.TopologyNode)
	return &proto.NodeRemovedResponse{Type: proto.NodeReplyType_NODE_REMOVED_OK}, nil
}

func (ss *schedulerServer) NodeUpdated(ctx context.Context, rtnd *proto.ResourceTopologyNodeDescriptor) (*proto.NodeUpdatedResponse, error) {
	rID := utility.MustResourceIDFromString(rtnd.ResourceDesc.Uuid)
	rs := ss.resourceMap.FindPtrOrNull(rID)
	if rs == nil {
		return &proto.NodeUpdatedResponse{Type: proto.NodeReplyType_NODE_NOT_FOUND}, nil
	}
	*rs.Descriptor = *rtnd.ResourceDesc
	return &proto.NodeUpdatedResponse{Type: proto.NodeReplyType_NODE_UPDATED_OK}, nil
}

// AddTaskStats accepts a usage sample for an existing task: it confirms the
// task is still known and logs the sample. The sample is not stored, and
// cost models read only TaskDescriptor fields (EstimatedRuntimeMs,
// WorkloadClass), never these stats.
func (ss *schedulerServer) AddTaskStats(ctx context.Context, stats *proto.TaskStats) (*proto.TaskStatsResponse, error) {
	td := ss.taskMap.FindPtrOrNull(utility.TaskID(stats.TaskId))
	if td == nil {
		return &proto.TaskStatsResponse{Accepted: false}, nil
	}
	glog.V(2).Infof("task %d usage sample: cpu=%.2f ram=%dMB", stats.TaskId, stats.CpuUsage, stats.RamUsageMb)
	return &proto.TaskStatsResponse{Accepted: true}, nil
}

func (ss *schedulerServer) AddNodeStats(ctx context.Context, stats *proto.ResourceStats) (*proto.ResourceStatsResponse, error) {
	rID, err := utility.ResourceIDFromString(stats.ResourceId)
	if err != nil {
		return &proto.ResourceStatsResponse{Accepted: false}, nil
	}
	if ss.resourceMap.FindPtrOrNull(rID) == nil {
		return &proto.ResourceStatsResponse{Accepted: false}, nil
	}
	glog.V(2).Infof("resource %s usage sample: cpu=%.2f ram=%dMB", stats.ResourceId, stats.CpuUsage, stats.RamUsageMb)
	return &proto.ResourceStatsResponse{Accepted: true}, nil
}
