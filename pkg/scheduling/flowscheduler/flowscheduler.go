package flowscheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/costmodel"
	"github.com/flowsched/flowsched/pkg/scheduling/dimacs"
	"github.com/flowsched/flowsched/pkg/scheduling/flowmanager"
	ss "github.com/flowsched/flowsched/pkg/scheduling/solver"
	"github.com/flowsched/flowsched/pkg/scheduling/utility"
)

// FLAG_reschedule_tasks_on_node_failure controls whether tasks bound to a
// resource that disappears are rescheduled (true) or simply marked failed
// (false).
var FLAG_reschedule_tasks_on_node_failure = true

// Set of tasks
type TaskSet map[utility.TaskID]struct{}

// Config gathers the construction-time choices for a scheduler instance:
// which cost model to run the flow network under and which solver backend
// to dispatch to.
type Config struct {
	CostModelType      costmodel.CostModelType
	MaxTasksPerMachine uint64
	RandomSeed         int64
	SolverBinaryPath   string
	EnableEviction     bool
	EnableMigration    bool
}

type scheduler struct {
	// schedulingMutex is the single point of serialization for anything that
	// touches the flow graph: a scheduling round, a topology change or a
	// task lifecycle event all take this lock for their duration.
	schedulingMutex sync.Mutex

	enableEviction bool
	enableMigration bool

	jobMap *utility.JobMap
	taskMap *utility.TaskMap
	resourceMap *utility.ResourceMap

	// Event driven scheduler specific fields
	// Note: taskBindings tracks the old state of which task maps to which resource (before each iteration).
	TaskBindings map[utility.TaskID]utility.ResourceID
	// Similar to taskBindings but tracks tasks binded to every resource. This is a multimap
	resourceBindings map[utility.ResourceID]TaskSet
	// A map, keyed by job id, holding descriptors of the jobs to be scheduled in the next scheduling round.
	jobsToSchedule map[utility.JobID]*proto.JobDescriptor
	// Sets of runnable and blocked tasks in each job. Multimap
	// Originally maintained up by ComputeRunnableTasksForJob() and LazyGraphReduction()
	// by checking and resolving dependencies between tasks. We will avoid that for now
	// and simply declare all tasks as runnable
	runnableTasks map[utility.JobID]TaskSet


	// coordinatorResId utility.ResourceID


	graphManager flowmanager.GraphManager
	solver ss.Solver
	costModel costmodel.CostModeler

	lastUpdateTimeDepentCosts time.Time

	leafResourceIDs map[utility.ResourceID]struct{}

	pusRemovedDuringSolverRun map[uint64]struct{}
	tasksCompletedDuringSloverRun map[uint64]struct{}

	dimacsStats *dimacs.ChangeStats

	solverRunCnt uint64

	resourceRoots map[*proto.ResourceTopologyNodeDescriptor]struct{}
}

func NewScheduler(jobMap *utility.JobMap, resourceMap *utility.ResourceMap, root *proto.ResourceTopologyNodeDescriptor,
	taskMap *utility.TaskMap, cfg Config) (Scheduler, error) {
	leafResourceIDs := make(map[utility.ResourceID]struct{})
	dimacsStats := &dimacs.ChangeStats{}

	costModeler, err := costmodel.NewCostModel(cfg.CostModelType, costmodel.Config{
		ResourceMap:        resourceMap,
		TaskMap:            taskMap,
		LeafResourceIDs:    leafResourceIDs,
		MaxTasksPerMachine: cfg.MaxTasksPerMachine,
		RandomSeed:         cfg.RandomSeed,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing cost model: %w", err)
	}

	s := &scheduler{
		enableEviction:  cfg.EnableEviction,
		enableMigration: cfg.EnableMigration,

		jobMap:      jobMap,
		resourceMap: resourceMap,
		taskMap:     taskMap,

		lastUpdateTimeDepentCosts: time.Now(),
		solverRunCnt:              0,
		leafResourceIDs:           leafResourceIDs,

		dimacsStats: dimacsStats,

		resourceRoots:    make(map[*proto.ResourceTopologyNodeDescriptor]struct{}),
		TaskBindings:     make(map[utility.TaskID]utility.ResourceID),
		resourceBindings: make(map[utility.ResourceID]TaskSet),
		jobsToSchedule:   make(map[utility.JobID]*proto.JobDescriptor),
		runnableTasks:    make(map[utility.JobID]TaskSet),

		tasksCompletedDuringSloverRun: make(map[uint64]struct{}),
		pusRemovedDuringSolverRun:     make(map[uint64]struct{}),

		costModel: costModeler,
	}

	s.graphManager = flowmanager.NewGraphManager(costModeler, leafResourceIDs, dimacsStats, cfg.MaxTasksPerMachine)
	// Set up the initial flow graph
	s.graphManager.AddResourceTopology(root)
	s.resourceRoots[root] = struct{}{}

	s.solver = ss.NewSolver(s.graphManager, cfg.SolverBinaryPath)

	return s, nil
}

// GetTaskBindings returns a snapshot of the current task-to-resource
// bindings. It copies under schedulingMutex rather than returning the live
// map, since the live map is mutated by every scheduling round and task
// lifecycle event.
func (s *scheduler) GetTaskBindings() map[utility.TaskID]utility.ResourceID {
	s.schedulingMutex.Lock()
	defer s.schedulingMutex.Unlock()

	bindings := make(map[utility.TaskID]utility.ResourceID, len(s.TaskBindings))
	for taskID, rID := range s.TaskBindings {
		bindings[taskID] = rID
	}
	return bindings
}

func (sche *scheduler) AddJob(jd *proto.JobDescriptor) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	sche.jobsToSchedule[utility.MustJobIDFromString(jd.Uuid)] = jd
}

func (sche *scheduler) CheckRunningTasksHealth() {}

func (sche *scheduler) dfsHandleTasksFromDeregisterResource(rtnd *proto.ResourceTopologyNodeDescriptor) {
	for _, childNode := range rtnd.Children {
		sche.dfsHandleTasksFromDeregisterResource(childNode)
	}

	sche.handleTasksFromDeregisterResource(rtnd)
}

func (sche *scheduler) handleTasksFromDeregisterResource(rtnd *proto.ResourceTopologyNodeDescriptor) {
	resourceDesc := rtnd.ResourceDesc
	rID := utility.MustResourceIDFromString(resourceDesc.Uuid)

	// Get the tasks bound to this resource
	tasks, ok := sche.resourceBindings[rID]
	if !ok {
		// TODO: add log here for debugging
		return
	}

	for taskID, _ :=range tasks {
		taskDesc := sche.taskMap.FindPtrOrNull(taskID)
		if taskDesc == nil {
			log.Panicf("Descriptor for task:%v must exist in taskMap\n", taskID)
		}

		// TODO: add this flag to Scheduler struct
		// Called with schedulingMutex already held by DeregisterResource, so
		// this uses the unlocked variants rather than the exported methods.
		if (FLAG_reschedule_tasks_on_node_failure) {
			sche.handleTaskEviction(taskDesc, resourceDesc)
		} else {
			sche.handleTaskFailure(taskDesc)
		}
	}
}

func (sche *scheduler) dfsCleanStateForDeregisterResource(rtnd *proto.ResourceTopologyNodeDescriptor) {
	for _, childNode := range rtnd.Children {
		sche.dfsCleanStateForDeregisterResource(childNode)
	}

	sche.cleanStateForDeregisterResource(rtnd)
}

func (sche *scheduler) cleanStateForDeregisterResource(rtnd *proto.ResourceTopologyNodeDescriptor) {
	rID := utility.MustResourceIDFromString(rtnd.ResourceDesc.Uuid)
	// Originally had cleanups related to the executors and the trace generators but we don't need that
	delete(sche.resourceBindings, rID)
	delete(sche.resourceMap.UnsafeGet(), rID)
}

// RemoveResourceNodeFromParentChildrenList removes resource node from its parent's children list
func (sche *scheduler) RemoveResourceNodeFromParentChildrenList(rtnd *proto.ResourceTopologyNodeDescriptor) {
	parentID := utility.MustResourceIDFromString(rtnd.ParentId)
	parentResourceStatus := sche.resourceMap.FindPtrOrNull(parentID)
	if parentResourceStatus == nil {
		log.Panicf("Parent resource status for node:%v must exist", rtnd.ResourceDesc.Uuid)
	}

	parentNode := parentResourceStatus.TopologyNode
	children := parentNode.Children
	index := -1
	//Find the index of the child in the parent
	for i, childNode := range children {
		if childNode.ResourceDesc.Uuid == rtnd.ResourceDesc.Uuid {
			index = i
			break
		}
	}

	// Note: there is a bug here in ksched project of CoreOS
	// Remove the node from the parent's slice
	if index == -1 {
		log.Panicf("Resource node:%v not found as child of its parent:%v\n", rtnd.ResourceDesc.Uuid, parentID)
	} else {
		parentNode.Children = append(children[:index], children[index+1:]...)
	}
}

func (sche *scheduler) DeregisterResource(rtnd *proto.ResourceTopologyNodeDescriptor) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	// Flow scheduler related work
	// Traverse the resource topology tree in order to evict tasks.
	// Do a dfs post order traversal to evict all tasks from the resource topology
	sche.dfsHandleTasksFromDeregisterResource(rtnd)

	// The scheduler is not event based right now and so is not concurrent
	// with a solver run; if it becomes event based, the PUs returned here
	// would need to be excluded from placement until the in-flight solver
	// run completes.
	removedPUs := sche.graphManager.RemoveResourceTopology(rtnd.ResourceDesc)
	for _, puID := range removedPUs {
		sche.pusRemovedDuringSolverRun[uint64(puID)] = struct{}{}
	}

	// If it is an entire machine that was removed
	if rtnd.ParentId != "" {
		delete(sche.resourceRoots, rtnd)
	}

	sche.dfsCleanStateForDeregisterResource(rtnd)

	if rtnd.ParentId != "" {
		sche.RemoveResourceNodeFromParentChildrenList(rtnd)
	} else {
		log.Println("Deregister a node without a parent")
	}


}

func (sche *scheduler) HandleJobCompletion(jobID utility.JobID) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	// Job completed, so remove its nodes
	sche.graphManager.JobCompleted(jobID)

	// Event scheduler related work
	jd := sche.jobMap.FindPtrOrNull(jobID)
	if jd == nil {
		log.Panicf("Job for id:%v must exist\n", jobID)
	}
	delete(sche.jobsToSchedule, jobID)
	delete(sche.runnableTasks, jobID)
	jd.State = proto.JobDescriptor_COMPLETED

}

func (sche *scheduler) HandleJobRemoval(jobID utility.JobID) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	// job removed, so remove its nodes
	sche.graphManager.JobRemoved(jobID)

	// Event scheduler related work
	jd := sche.jobMap.FindPtrOrNull(jobID)
	if jd == nil {
		log.Panicf("Job for id:%v must exist\n", jobID)
	}
	delete(sche.jobsToSchedule, jobID)
	delete(sche.runnableTasks, jobID)
}

// unbindTaskFromResource is similar to BindTaskToResource, in that it just updates the metadata for a task being removed from a resource
// It is called in the event of a task failure, migration or eviction.
// Returns false in case the task was not already bound to the resource in the taskMappings or resourceMappings
// Event driven scheduler specific method
func (s *scheduler) unbindTaskFromResource(td *proto.TaskDescriptor, rID utility.ResourceID) bool {
	taskID := utility.TaskID(td.Uid)
	resourceStatus := s.resourceMap.FindPtrOrNull(rID)
	if resourceStatus == nil {
		return false
	}
	rd := resourceStatus.Descriptor
	// We don't have to remove the task from rd's running tasks because
	// we've already cleared the list in the scheduling iteration
	if len(rd.CurrentRunningTasks) == 0 {
		rd.State = proto.ResourceDescriptor_RESOURCE_IDLE
	}
	// Remove the task from the resource bindings, return false if not found in the mappings
	if _, ok := s.TaskBindings[taskID]; !ok {
		return false
	}

	taskSet := s.resourceBindings[rID]
	if _, ok := taskSet[taskID]; !ok {
		return false
	}
	delete(s.TaskBindings, taskID)
	delete(taskSet, taskID)
	return true
}

func (sche *scheduler) HandleTaskCompletion(td *proto.TaskDescriptor, report *proto.TaskFinalReport) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	// event scheduler related work
	rID, ok := sche.TaskBindings[utility.TaskID(td.Uid)]
	if ok {
		resourceStatus := sche.resourceMap.FindPtrOrNull(rID)
		if resourceStatus == nil {
			log.Panicf("Resource:%v must have a resource status in the resourceMap\n", rID)
		}
		// Free the resource
		if !sche.unbindTaskFromResource(td, rID) {
			log.Panicf("Could not unbind task:%v from resource:%v for eviction\n", td.Uid, rID)
		}
	} else {
		// The task does not have a bound resource. It can happen when a machine
		// temporarly fails. As a result of the failure, we mark the task as failed
		// and unbind it from the machine's resource. However, upon machine recovery
		// we can receive a task completion notification.
		// do nothing here, add later if needed
	}
	// Set task state as completed
	td.State = proto.TaskDescriptor_COMPLETED

	taskInGraph := true
	if td.State == proto.TaskDescriptor_FAILED || td.State == proto.TaskDescriptor_ABORTED {
		// If the task is marked as failed/aborted then it has already been
		// removed from the flow network.
		taskInGraph = false
	}

	// We don't need to do any flow graph stuff for delegated tasks as
	// they are not currently represented in the flow graph.
	// Otherwise, we need to remove nodes, etc.
	if len(td.DelegatedFrom) == 0 && taskInGraph {
		nodeId := sche.graphManager.TaskCompleted(utility.TaskID(td.Uid))
		sche.tasksCompletedDuringSloverRun[uint64(nodeId)] = struct{}{}
	}
}

func (sche *scheduler) HandleTaskDelegationFailure(td *proto.TaskDescriptor) {

}

func (sche *scheduler) HandleTaskDelegationSuccess(td *proto.TaskDescriptor) {}

// InsertTaskIntoRunnables is a helper method used to update the runnable tasks set for the specified job by adding the new task
// Event driven scheduler specific method
func (s *scheduler) insertTaskIntoRunnables(jobID utility.JobID, taskID utility.TaskID) {
	// Create a task set for this job if it doesn't already exist
	if _, ok := s.runnableTasks[jobID]; !ok {
		s.runnableTasks[jobID] = make(TaskSet)
	}
	// Insert task into runnable set for this job
	s.runnableTasks[jobID][taskID] = struct{}{}
}

func (sche *scheduler) HandleTaskEviction(td *proto.TaskDescriptor, rd *proto.ResourceDescriptor) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	sche.handleTaskEviction(td, rd)
}

// handleTaskEviction is HandleTaskEviction's body, factored out so callers
// that already hold schedulingMutex (a scheduling round applying a PREEMPT
// delta, a resource deregistration evicting everything bound to it) can
// reach it without deadlocking on a non-reentrant lock.
func (sche *scheduler) handleTaskEviction(td *proto.TaskDescriptor, rd *proto.ResourceDescriptor) {
	rID := utility.MustResourceIDFromString(rd.Uuid)
	taskID := utility.TaskID(td.Uid)
	jobID := utility.MustJobIDFromString(td.JobId)
	// Flow scheduler related work
	sche.graphManager.TaskEvicted(taskID, rID)

	// Event scheudler related work
	if !sche.unbindTaskFromResource(td, rID) {
		log.Panicf("Could not unbind task:%v from resource:%v for eviction\n", taskID, rID)
	}
	td.State = proto.TaskDescriptor_RUNNABLE
	sche.insertTaskIntoRunnables(jobID, taskID)
	// Some work is then done by the executor to handle the task eviction(update finish/running times)
	// but we don't need to account for that right now
}

func (sche *scheduler) HandleTaskFailure(td *proto.TaskDescriptor) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	sche.handleTaskFailure(td)
}

// handleTaskFailure is HandleTaskFailure's body, callable directly by
// handleTasksFromDeregisterResource, which already holds schedulingMutex.
func (sche *scheduler) handleTaskFailure(td *proto.TaskDescriptor) {
	taskID := utility.TaskID(td.Uid)
	// Flow scheduler related work
	sche.graphManager.TaskFailed(taskID)

	// Event scheduler related work
	// Find resource for task
	rID, ok := sche.TaskBindings[taskID]
	if !ok {
		log.Panicf("No resource found for task:%v that failed/should have been running\n", taskID)
	}
	rs := sche.resourceMap.FindPtrOrNull(rID)
	if rs == nil {
		log.Panicf("resource:%v is not found in resource map\n", rID)
	}
	// Remove the task's resource binding (as it is no longer currently bound)
	if !sche.unbindTaskFromResource(td, rID) {
		log.Panicf("Could not unbind task:%v from resource:%v for eviction\n", taskID, rID)
	}
	// Set the task to "failed" state and deal with the consequences
	td.State = proto.TaskDescriptor_FAILED

	// We only need to run the scheduler if the failed task was not delegated from
	// elsewhere, i.e. if it is managed by the local scheduler. If so, we kick the
	// scheduler if we haven't exceeded the retry limit.
	if len(td.DelegatedFrom) != 0 {
		// XXX(malte): Need to forward message about task failure to delegator here!
	}
}

func (sche *scheduler) HandleTaskFinalReport(report *proto.TaskFinalReport, td *proto.TaskDescriptor) {

}

func (sche *scheduler) HandleTaskRemoval(td *proto.TaskDescriptor) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	taskID := utility.TaskID(td.Uid)
	// TODO: add TaskRemoved func for flow graph manager
	sche.graphManager.TaskRemoved(taskID)

	// event scheduler related work
	// wasRunning := false
	if td.State == proto.TaskDescriptor_RUNNING {
		// wasRunning = true
		sche.killRunningTask(taskID)
	} else {
		if td.State == proto.TaskDescriptor_RUNNABLE {
			jodID := utility.MustJobIDFromString(td.JobId)
			delete(sche.runnableTasks[jodID], taskID)
		}
		td.State = proto.TaskDescriptor_ABORTED
	}
}

func (sche *scheduler) KillRunningTask(taskID utility.TaskID) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	sche.killRunningTask(taskID)
}

// killRunningTask is KillRunningTask's body, callable directly by
// HandleTaskRemoval, which already holds schedulingMutex.
func (sche *scheduler) killRunningTask(taskID utility.TaskID) {
	sche.graphManager.TaskKilled(taskID)

	// event scheduler related work
	td := sche.taskMap.FindPtrOrNull(taskID)
	if td == nil {
		// TODO: This could just be an error instead of a panic
		log.Panicf("Tried to kill unknown task:%v, not present in taskMap\n", taskID)
	}
	// Check if we have a bound resource for the task and if it is marked as running
	rID, ok := sche.TaskBindings[taskID]
	if td.State != proto.TaskDescriptor_RUNNING || !ok {
		// TODO: This could just be an error instead of a panic
		log.Panicf("Task:%v not bound or running on any resource", taskID)
	}
	td.State = proto.TaskDescriptor_ABORTED

	// TODO: Firmament project will check !rid, this is a bug there, otherwise, we need to delete the code below
	// Remove the task's resource binding (as it is no longer currently bound)
	if !sche.unbindTaskFromResource(td, rID) {
		log.Panicf("Could not unbind task:%v from resource:%v for eviction\n", taskID, rID)
	}
}

func (sche *scheduler) PlaceDelegatedTask(td *proto.TaskDescriptor, id utility.ResourceID) bool {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	rs := sche.resourceMap.FindPtrOrNull(id)
	if rs == nil || !rs.Descriptor.Schedulable {
		return false
	}
	sche.handleTaskPlacement(td, rs.Descriptor)
	return true
}

// RegisterResource registers a resource (and, transitively, everything
// below it in the topology) with the flow graph. A resource with no parent
// is a new root; anything else is attached beneath its already-registered
// parent.
func (sche *scheduler) RegisterResource(rtnd *proto.ResourceTopologyNodeDescriptor) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	if rtnd.ParentId == "" {
		sche.resourceRoots[rtnd] = struct{}{}
	} else {
		parentID := utility.MustResourceIDFromString(rtnd.ParentId)
		if parentStatus := sche.resourceMap.FindPtrOrNull(parentID); parentStatus != nil {
			parentStatus.TopologyNode.Children = append(parentStatus.TopologyNode.Children, rtnd)
		}
	}
	sche.graphManager.AddResourceTopology(rtnd)
}

// ScheduleAllJobs computes runnable tasks for every job pending a
// scheduling decision and, if any exist, runs a single round covering all
// of them.
func (sche *scheduler) ScheduleAllJobs(stat *utility.SchedulerStats) (uint64, []proto.SchedulingDelta) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	jds := make([]*proto.JobDescriptor, 0, len(sche.jobsToSchedule))
	for jobID, jd := range sche.jobsToSchedule {
		runnable := sche.ComputeRunnableTasksForJob(jd)
		if len(runnable) == 0 {
			continue
		}
		sche.runnableTasks[jobID] = runnable
		jds = append(jds, jd)
	}
	if len(jds) == 0 {
		return 0, nil
	}
	return sche.scheduleJobs(jds)
}

// ScheduleJob schedules a single job by wrapping it in a one-job round.
// Using this repeatedly is inefficient because every call still traverses
// the whole resource graph; ScheduleJobs is the batch entrypoint.
func (sche *scheduler) ScheduleJob(jd *proto.JobDescriptor, stats *utility.SchedulerStats) uint64 {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	runnable := sche.ComputeRunnableTasksForJob(jd)
	if len(runnable) == 0 {
		return 0
	}
	sche.runnableTasks[utility.MustJobIDFromString(jd.Uuid)] = runnable
	numScheduled, _ := sche.scheduleJobs([]*proto.JobDescriptor{jd})
	return numScheduled
}

// ScheduleJobs is the primary scheduling round entrypoint: it folds every
// job's tasks into the flow graph and runs exactly one solver invocation
// covering all of them.
func (sche *scheduler) ScheduleJobs(jds []*proto.JobDescriptor) (uint64, []proto.SchedulingDelta) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	return sche.scheduleJobs(jds)
}

// scheduleJobs is ScheduleJobs' body, callable directly by ScheduleJob and
// ScheduleAllJobs so the AddOrUpdateJobNodes call and the solver round it
// feeds stay inside a single critical section, rather than each locking
// schedulingMutex separately and letting another goroutine's round slip in
// between graph update and solve.
func (sche *scheduler) scheduleJobs(jds []*proto.JobDescriptor) (uint64, []proto.SchedulingDelta) {
	sche.graphManager.AddOrUpdateJobNodes(jds)
	return sche.runSchedulingIteration(utility.NewSchedulerStats())
}

// runSchedulingIteration runs one full round: solve, translate the
// resulting flow into scheduling deltas, and apply them. A solver error
// aborts the round with zero scheduled tasks. With the in-process solver the
// accumulated ChangeLog is then left untouched, so the next round retries
// with the same pending changes; the external solver backend has already
// reset it once the graph was written.
// Always called with schedulingMutex already held by scheduleJobs.
func (sche *scheduler) runSchedulingIteration(stats *utility.SchedulerStats) (uint64, []proto.SchedulingDelta) {
	roundStart := time.Now()
	algoStart := time.Now()
	taskMapping, err := sche.solver.Solve()
	if stats != nil {
		stats.SetAlgorithmRuntime(uint64(time.Since(algoStart).Microseconds()))
	}
	if err != nil {
		glog.Errorf("scheduling round aborted, solver failed: %v", err)
		return 0, nil
	}

	deltas := make([]proto.SchedulingDelta, 0, len(taskMapping))
	for taskNodeID, resourceNodeID := range taskMapping {
		delta := sche.graphManager.NodeBindingToSchedulingDelta(taskNodeID, resourceNodeID, sche.TaskBindings)
		if delta != nil {
			deltas = append(deltas, *delta)
		}
	}

	numScheduled := sche.applySchedulingDeltas(deltas)
	sche.solverRunCnt++
	sche.dimacsStats.Reset()
	if stats != nil {
		stats.SetSchedulerRuntime(uint64(time.Since(algoStart).Microseconds()))
		stats.SetTotalRuntime(uint64(time.Since(roundStart).Microseconds()))
	}
	return numScheduled, deltas
}

// applySchedulingDeltas resolves each delta's task/resource descriptors and
// carries out the corresponding placement/eviction/migration. A delta whose
// type this core does not act on is logged and dropped rather than retried.
// Always called with schedulingMutex already held by runSchedulingIteration,
// so it reaches the unexported handle* implementations directly.
func (sche *scheduler) applySchedulingDeltas(deltas []proto.SchedulingDelta) uint64 {
	var numScheduled uint64
	for i := range deltas {
		d := &deltas[i]
		actioned := false
		switch d.Type {
		case proto.SchedulingDelta_NOOP:
			actioned = true
		case proto.SchedulingDelta_PLACE:
			td := sche.taskMap.FindPtrOrNull(utility.TaskID(d.TaskId))
			rID := utility.MustResourceIDFromString(d.ResourceId)
			rs := sche.resourceMap.FindPtrOrNull(rID)
			if td == nil {
				log.Panicf("task %v named in scheduling delta must exist in taskMap", d.TaskId)
			}
			if rs == nil {
				log.Panicf("resource %v named in scheduling delta must exist in resourceMap", d.ResourceId)
			}
			sche.handleTaskPlacement(td, rs.Descriptor)
			numScheduled++
			actioned = true
		case proto.SchedulingDelta_MIGRATE:
			td := sche.taskMap.FindPtrOrNull(utility.TaskID(d.TaskId))
			rID := utility.MustResourceIDFromString(d.ResourceId)
			rs := sche.resourceMap.FindPtrOrNull(rID)
			if td != nil && rs != nil {
				sche.handleTaskMigration(td, rs.Descriptor)
				numScheduled++
				actioned = true
			}
		case proto.SchedulingDelta_PREEMPT:
			td := sche.taskMap.FindPtrOrNull(utility.TaskID(d.TaskId))
			if td != nil {
				if rID, ok := sche.TaskBindings[utility.TaskID(d.TaskId)]; ok {
					if rs := sche.resourceMap.FindPtrOrNull(rID); rs != nil {
						sche.handleTaskEviction(td, rs.Descriptor)
						actioned = true
					}
				}
			}
		}
		if !actioned {
			glog.Warningf("scheduling delta for task %d (type %v) left unactioned, dropping", d.TaskId, d.Type)
		}
	}
	return numScheduled
}

func (sche *scheduler) HandleTaskMigration(td *proto.TaskDescriptor, rd *proto.ResourceDescriptor) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	sche.handleTaskMigration(td, rd)
}

// handleTaskMigration is HandleTaskMigration's body, callable directly by
// applySchedulingDeltas, which already holds schedulingMutex. It reaches
// handleTaskPlacement rather than HandleTaskPlacement for the same reason.
func (sche *scheduler) handleTaskMigration(td *proto.TaskDescriptor, rd *proto.ResourceDescriptor) {
	taskID := utility.TaskID(td.Uid)
	newRID := utility.MustResourceIDFromString(rd.Uuid)
	if oldRID, ok := sche.TaskBindings[taskID]; ok {
		sche.graphManager.TaskMigrated(taskID, oldRID, newRID)
		sche.unbindTaskFromResource(td, oldRID)
	}
	sche.handleTaskPlacement(td, rd)
}

// HandleTaskPlacement effects a scheduling assignment: it updates the flow
// graph's view of the binding and this scheduler's own bookkeeping
// (TaskBindings, resourceBindings, resource/task state).
func (sche *scheduler) HandleTaskPlacement(td *proto.TaskDescriptor, rd *proto.ResourceDescriptor) {
	sche.schedulingMutex.Lock()
	defer sche.schedulingMutex.Unlock()

	sche.handleTaskPlacement(td, rd)
}

// handleTaskPlacement is HandleTaskPlacement's body, callable directly by
// applySchedulingDeltas, handleTaskMigration and PlaceDelegatedTask, all of
// which already hold schedulingMutex.
func (sche *scheduler) handleTaskPlacement(td *proto.TaskDescriptor, rd *proto.ResourceDescriptor) {
	taskID := utility.TaskID(td.Uid)
	rID := utility.MustResourceIDFromString(rd.Uuid)

	sche.graphManager.TaskScheduled(taskID, rID)

	rd.State = proto.ResourceDescriptor_RESOURCE_BUSY
	rd.CurrentRunningTasks = append(rd.CurrentRunningTasks, td.Uid)

	sche.TaskBindings[taskID] = rID
	if sche.resourceBindings[rID] == nil {
		sche.resourceBindings[rID] = make(TaskSet)
	}
	sche.resourceBindings[rID][taskID] = struct{}{}

	td.State = proto.TaskDescriptor_RUNNING
}

// ComputeRunnableTasksForJob walks a job's task DAG (its root task and,
// transitively, every dynamically spawned child) and collects the ids of
// tasks admissible for scheduling: runnable, already running, or assigned.
func (sche *scheduler) ComputeRunnableTasksForJob(jd *proto.JobDescriptor) TaskSet {
	runnable := make(TaskSet)
	if jd == nil || jd.RootTask == nil {
		return runnable
	}
	var walk func(td *proto.TaskDescriptor)
	walk = func(td *proto.TaskDescriptor) {
		switch td.State {
		case proto.TaskDescriptor_RUNNABLE, proto.TaskDescriptor_RUNNING, proto.TaskDescriptor_ASSIGNED:
			runnable[utility.TaskID(td.Uid)] = struct{}{}
		}
		for _, child := range td.Spawned {
			walk(child)
		}
	}
	walk(jd.RootTask)
	return runnable
}