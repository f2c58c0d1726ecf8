package flowscheduler

import (
	"github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/utility"
)

// Scheduler is the control-plane contract a scheduling backend must satisfy:
// register/deregister resources, submit jobs, run scheduling rounds, and
// react to every task lifecycle transition the cluster reports back.
type Scheduler interface {
	GetTaskBindings() map[utility.TaskID]utility.ResourceID

	// AddJob registers a new job. It is scheduled on the next scheduling
	// round if it has any runnable tasks.
	AddJob(jd *proto.JobDescriptor)

	// CheckRunningTasksHealth is the hook for checking the tasks this
	// scheduler believes are running. The flow scheduler's implementation
	// does nothing: it probes no task and invokes no failure handling.
	CheckRunningTasksHealth()

	// DeregisterResource removes a resource from the scheduler's view. The
	// resource must be registered: removing one the flow graph does not hold
	// aborts the process.
	DeregisterResource(rtnd *proto.ResourceTopologyNodeDescriptor)

	// HandleJobCompletion cleans up scheduler-local state once every task in
	// a job has completed, failed, or been aborted.
	HandleJobCompletion(id utility.JobID)

	// HandleJobRemoval must only be called once every one of the job's tasks
	// has already been removed.
	HandleJobRemoval(id utility.JobID)

	// HandleTaskCompletion frees the resource a completed task was bound to
	// and records completion bookkeeping. The flow scheduler's
	// implementation neither reads nor fills in report.
	HandleTaskCompletion(td *proto.TaskDescriptor, report *proto.TaskFinalReport)

	// HandleTaskDelegationFailure is the hook for a failed attempt to hand a
	// task to a subordinate coordinator, whether because the target resource
	// disappeared or was claimed by someone else in the meantime. The flow
	// scheduler's implementation does nothing.
	HandleTaskDelegationFailure(td *proto.TaskDescriptor)

	HandleTaskDelegationSuccess(td *proto.TaskDescriptor)

	// HandleTaskEviction frees rd and returns td to the runnable pool.
	HandleTaskEviction(td *proto.TaskDescriptor, rd *proto.ResourceDescriptor)

	// HandleTaskFailure removes the task from the flow graph, frees its
	// resource and marks it failed. It does not retry or reschedule the task.
	HandleTaskFailure(td *proto.TaskDescriptor)

	// HandleTaskFinalReport is the hook for applying a task's terminal report
	// to its descriptor's state. The flow scheduler's implementation does
	// nothing.
	HandleTaskFinalReport(report *proto.TaskFinalReport, td *proto.TaskDescriptor)

	// HandleTaskRemoval kills td first if it is currently running, then
	// drops it from internal bookkeeping either way.
	HandleTaskRemoval(td *proto.TaskDescriptor)

	// KillRunningTask kills the task with the given id.
	KillRunningTask(id utility.TaskID)

	// PlaceDelegatedTask places a task delegated from a superior coordinator
	// onto the resource identified by id. Reports whether placement
	// succeeded.
	PlaceDelegatedTask(td *proto.TaskDescriptor, id utility.ResourceID) bool

	// RegisterResource makes a resource topology subtree available for the
	// scheduler to place work on.
	RegisterResource(rtnd *proto.ResourceTopologyNodeDescriptor)

	// ScheduleAllJobs computes the runnable set across every active job and
	// schedules it, returning the number of tasks placed and the resulting
	// deltas.
	ScheduleAllJobs(stat *utility.SchedulerStats) (uint64, []proto.SchedulingDelta)

	// ScheduleJob schedules every runnable task in a single job. Traverses
	// the whole resource graph on each call, so ScheduleAllJobs/ScheduleJobs
	// are the efficient path for scheduling more than one job at a time.
	ScheduleJob(jd *proto.JobDescriptor, stats *utility.SchedulerStats) uint64

	// ScheduleJobs schedules the given jobs, returning the number of tasks
	// placed and the resulting deltas. ScheduleAllJobs runs the same round
	// body once it has computed the runnable job set.
	ScheduleJobs(jds []*proto.JobDescriptor) (uint64, []proto.SchedulingDelta)

	// HandleTaskMigration updates bookkeeping after td has been moved to rd.
	HandleTaskMigration(td *proto.TaskDescriptor, rd *proto.ResourceDescriptor)

	// HandleTaskPlacement effects a scheduling assignment: it pins the task
	// in the flow graph and updates assignment and binding metadata. Nothing
	// is handed to an execution path. Called for every PLACE delta a
	// scheduling round produces.
	HandleTaskPlacement(td *proto.TaskDescriptor, rd *proto.ResourceDescriptor)

	// ComputeRunnableTasksForJob returns jd's runnable tasks. It does not
	// store them; ScheduleJob and ScheduleAllJobs record the result in the
	// scheduler's per-job runnable set.
	ComputeRunnableTasksForJob(jd *proto.JobDescriptor) TaskSet
}
