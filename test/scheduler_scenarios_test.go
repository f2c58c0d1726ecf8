package test

import (
	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/utility"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// These specs drive flowscheduler.Scheduler end to end with the in-process
// min-cost-flow solver (no external solver binary configured) and the
// trivial cost model, so every placement decision is deterministic: cost 0
// for every candidate arc, cost 100 for leaving a task on the unscheduled
// aggregator.
var _ = Describe("flowscheduler.Scheduler", func() {
	It("leaves a task unscheduled against an empty cluster", func() {
		root := utility.CreateTopLevelResourceStatus().TopologyNode
		f := newClusterFixture(root)

		job, task := f.submitOneTaskJob(1)
		numScheduled := f.scheduler.ScheduleJob(job, nil)

		Expect(numScheduled).To(BeZero())
		Expect(task.State).To(Equal(pb.TaskDescriptor_RUNNABLE))
		Expect(f.scheduler.GetTaskBindings()).To(BeEmpty())
	})

	It("binds a single task to the sole PU of a single machine", func() {
		root := utility.CreateTopLevelResourceStatus().TopologyNode
		f := newClusterFixture(root)
		_, pus := f.registerMachine(100, 1)

		job, task := f.submitOneTaskJob(2)
		numScheduled, deltas := f.scheduler.ScheduleJobs([]*pb.JobDescriptor{job})

		Expect(numScheduled).To(Equal(uint64(1)))
		Expect(task.State).To(Equal(pb.TaskDescriptor_RUNNING))

		Expect(deltas).To(HaveLen(1))
		Expect(deltas[0].Type).To(Equal(pb.SchedulingDelta_PLACE))
		Expect(deltas[0].TaskId).To(Equal(task.Uid))
		Expect(deltas[0].ResourceId).To(Equal(pus[0].Uuid))

		boundRID, ok := f.scheduler.GetTaskBindings()[utility.TaskID(task.Uid)]
		Expect(ok).To(BeTrue())
		Expect(boundRID).To(Equal(utility.MustResourceIDFromString(pus[0].Uuid)))
	})

	It("frees the PU when a bound task completes", func() {
		root := utility.CreateTopLevelResourceStatus().TopologyNode
		f := newClusterFixture(root)
		_, pus := f.registerMachine(200, 1)

		job, task := f.submitOneTaskJob(3)
		numScheduled := f.scheduler.ScheduleJob(job, nil)
		Expect(numScheduled).To(Equal(uint64(1)))

		f.scheduler.HandleTaskCompletion(task, &pb.TaskFinalReport{})

		Expect(task.State).To(Equal(pb.TaskDescriptor_COMPLETED))
		Expect(f.scheduler.GetTaskBindings()).NotTo(HaveKey(utility.TaskID(task.Uid)))

		puStatus := f.resourceMap.FindPtrOrNull(utility.MustResourceIDFromString(pus[0].Uuid))
		Expect(puStatus).NotTo(BeNil())
	})

	It("clears a completed job's aggregator without disturbing sibling jobs", func() {
		root := utility.CreateTopLevelResourceStatus().TopologyNode
		f := newClusterFixture(root)
		f.registerMachine(300, 1)

		job1, task1 := f.submitOneTaskJob(4)
		job2, task2 := f.submitOneTaskJob(5)

		numScheduled, _ := f.scheduler.ScheduleJobs([]*pb.JobDescriptor{job1, job2})
		Expect(numScheduled).To(Equal(uint64(1)), "only one PU exists, so exactly one of the two tasks binds")

		var boundJob *pb.JobDescriptor
		var boundTask, otherTask *pb.TaskDescriptor
		if task1.State == pb.TaskDescriptor_RUNNING {
			boundJob, boundTask, otherTask = job1, task1, task2
		} else {
			boundJob, boundTask, otherTask = job2, task2, task1
		}

		f.scheduler.HandleTaskCompletion(boundTask, &pb.TaskFinalReport{})
		f.scheduler.HandleJobCompletion(utility.MustJobIDFromString(boundJob.Uuid))

		Expect(boundJob.State).To(Equal(pb.JobDescriptor_COMPLETED))
		Expect(otherTask.State).To(Equal(pb.TaskDescriptor_RUNNABLE), "the sibling job's task was never touched")

		// The PU that the completed job's task vacated is free again, so the
		// sibling job's task can now bind to it: proof that removing job1's
		// subgraph didn't corrupt job2's.
		remainingJob := job1
		if boundJob == job1 {
			remainingJob = job2
		}
		numScheduled = f.scheduler.ScheduleJob(remainingJob, nil)
		Expect(numScheduled).To(Equal(uint64(1)))
	})
})
