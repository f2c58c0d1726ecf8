package firmamentservice

import (
	"context"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/costmodel"
	"github.com/flowsched/flowsched/pkg/scheduling/flowscheduler"
)

func newTestServer() proto.FirmamentSchedulerServer {
	ss, err := NewSchedulerServer(flowscheduler.Config{
		CostModelType:      costmodel.CostModelTrivial,
		MaxTasksPerMachine: 1,
	})
	Expect(err).ShouldNot(HaveOccurred())
	return ss
}

func mockRTND(uid string, core int) *proto.ResourceTopologyNodeDescriptor {
	return &proto.ResourceTopologyNodeDescriptor{
		ResourceDesc: &proto.ResourceDescriptor{
			Uuid:         uid,
			Type:         proto.ResourceDescriptor_RESOURCE_MACHINE,
			State:        proto.ResourceDescriptor_RESOURCE_IDLE,
			FriendlyName: uid,
			Schedulable:  true,
			ResourceCapacity: &proto.ResourceVector{
				RamCap:   uint64(1024 * core * 4),
				CpuCores: float32(core),
			},
			AvailableResources: &proto.ResourceVector{
				RamCap:   uint64(1024 * core * 4),
				CpuCores: float32(core),
			},
			ReservedResources: &proto.ResourceVector{},
		},
	}
}

func mockTaskDescription(jobUID string, taskID uint64, core int) *proto.TaskDescription {
	jd := &proto.JobDescriptor{
		Uuid:  jobUID,
		Name:  "mock_job",
		State: proto.JobDescriptor_CREATED,
	}
	td := &proto.TaskDescriptor{
		Uid:   taskID,
		Name:  "mock_task",
		State: proto.TaskDescriptor_CREATED,
		JobId: jobUID,
		ResourceRequest: &proto.ResourceVector{
			CpuCores: float32(core),
			RamCap:   uint64(1024 * core * 4),
		},
	}
	jd.RootTask = td
	return &proto.TaskDescription{TaskDescriptor: td, JobDescriptor: jd}
}

var _ = Describe("SchedulerServer", func() {
	var ss proto.FirmamentSchedulerServer

	BeforeEach(func() {
		ss = newTestServer()
	})

	Describe("adding machines", func() {
		It("registers each machine as a schedulable resource", func() {
			for id := 1; id <= 4; id++ {
				rtnd := mockRTND(strconv.Itoa(id), 16)
				resp, err := ss.NodeAdded(context.Background(), rtnd)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(resp.Type).To(Equal(proto.NodeReplyType_NODE_ADDED_OK))
			}
		})
	})

	Describe("submitting tasks", func() {
		It("accepts tasks for a new job and reuses the job on later tasks", func() {
			first := mockTaskDescription("77", 771, 4)
			resp, err := ss.TaskSubmitted(context.Background(), first)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(resp.Type).To(Equal(proto.TaskReplyType_TASK_SUBMITTED_OK))

			second := mockTaskDescription("77", 772, 8)
			resp, err = ss.TaskSubmitted(context.Background(), second)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(resp.Type).To(Equal(proto.TaskReplyType_TASK_SUBMITTED_OK))
		})
	})

	Describe("a full round trip", func() {
		It("places submitted tasks onto registered machines", func() {
			rtnd := mockRTND("501", 8)
			_, err := ss.NodeAdded(context.Background(), rtnd)
			Expect(err).ShouldNot(HaveOccurred())

			td := mockTaskDescription("88", 881, 4)
			_, err = ss.TaskSubmitted(context.Background(), td)
			Expect(err).ShouldNot(HaveOccurred())

			deltas, err := ss.Schedule(context.Background(), &proto.ScheduleRequest{})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(deltas.Deltas).ShouldNot(BeEmpty())
		})
	})

	Describe("task lifecycle", func() {
		It("reports TASK_NOT_FOUND for an unknown task", func() {
			resp, err := ss.TaskCompleted(context.Background(), &proto.TaskUID{TaskUid: 999999})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(resp.Type).To(Equal(proto.TaskReplyType_TASK_NOT_FOUND))
		})

		It("completes a submitted task", func() {
			td := mockTaskDescription("99", 991, 2)
			_, err := ss.TaskSubmitted(context.Background(), td)
			Expect(err).ShouldNot(HaveOccurred())

			resp, err := ss.TaskCompleted(context.Background(), &proto.TaskUID{TaskUid: 991})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(resp.Type).To(Equal(proto.TaskReplyType_TASK_COMPLETED_OK))
		})
	})
})
