package test

import (
	"strconv"

	. "github.com/onsi/gomega"

	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/costmodel"
	"github.com/flowsched/flowsched/pkg/scheduling/flowscheduler"
	"github.com/flowsched/flowsched/pkg/scheduling/utility"
)

// clusterFixture wires together the maps a flowscheduler.Scheduler needs and
// exposes helpers to grow a resource topology and submit jobs the way the
// outer event-driven scheduler would.
type clusterFixture struct {
	jobMap      *utility.JobMap
	taskMap     *utility.TaskMap
	resourceMap *utility.ResourceMap
	scheduler   flowscheduler.Scheduler
}

// newClusterFixture builds a scheduler running the trivial cost model
// in-process (no external solver binary configured) with root as its
// initial, possibly empty, resource topology.
func newClusterFixture(root *pb.ResourceTopologyNodeDescriptor) *clusterFixture {
	f := &clusterFixture{
		jobMap:      utility.NewJobMap(),
		taskMap:     utility.NewTaskMap(),
		resourceMap: utility.NewResourceMap(),
	}
	sche, err := flowscheduler.NewScheduler(f.jobMap, f.resourceMap, root, f.taskMap, flowscheduler.Config{
		CostModelType:      costmodel.CostModelTrivial,
		MaxTasksPerMachine: 1,
	})
	Expect(err).NotTo(HaveOccurred())
	f.scheduler = sche
	return f
}

// registerMachine adds a machine with numPUs schedulable processing units to
// the fixture's resource topology and returns the machine and PU
// descriptors so a test can assert against them.
func (f *clusterFixture) registerMachine(uuidSeed uint64, numPUs int) (*pb.ResourceDescriptor, []*pb.ResourceDescriptor) {
	machineUUID := strconv.FormatUint(uuidSeed, 10)
	machine := &pb.ResourceDescriptor{
		Uuid:        machineUUID,
		Type:        pb.ResourceDescriptor_RESOURCE_MACHINE,
		State:       pb.ResourceDescriptor_RESOURCE_IDLE,
		Schedulable: true,
	}
	root := &pb.ResourceTopologyNodeDescriptor{ResourceDesc: machine}

	pus := make([]*pb.ResourceDescriptor, 0, numPUs)
	for i := 0; i < numPUs; i++ {
		pu := &pb.ResourceDescriptor{
			Uuid:        strconv.FormatUint(uuidSeed*100+uint64(i)+1, 10),
			Type:        pb.ResourceDescriptor_RESOURCE_PU,
			State:       pb.ResourceDescriptor_RESOURCE_IDLE,
			Schedulable: true,
		}
		root.Children = append(root.Children, &pb.ResourceTopologyNodeDescriptor{
			ResourceDesc: pu,
			ParentId:     machineUUID,
		})
		pus = append(pus, pu)
	}

	f.resourceMap.InsertIfNotPresent(utility.MustResourceIDFromString(machineUUID), &utility.ResourceStatus{
		Descriptor:   machine,
		TopologyNode: root,
	})
	for i, puDesc := range pus {
		f.resourceMap.InsertIfNotPresent(utility.MustResourceIDFromString(puDesc.Uuid), &utility.ResourceStatus{
			Descriptor:   puDesc,
			TopologyNode: root.Children[i],
		})
	}

	f.scheduler.RegisterResource(root)
	return machine, pus
}

// submitOneTaskJob creates a single-task job, registers it and its task in
// the fixture's maps, and hands it to the scheduler.
func (f *clusterFixture) submitOneTaskJob(uuidSeed uint64) (*pb.JobDescriptor, *pb.TaskDescriptor) {
	jobUUID := strconv.FormatUint(uuidSeed, 10)
	task := &pb.TaskDescriptor{
		Uid:   uuidSeed*10 + 1,
		Name:  "task-" + jobUUID,
		JobId: jobUUID,
		State: pb.TaskDescriptor_RUNNABLE,
	}
	job := &pb.JobDescriptor{
		Uuid:     jobUUID,
		Name:     "job-" + jobUUID,
		State:    pb.JobDescriptor_CREATED,
		RootTask: task,
	}
	f.jobMap.InsertIfNotPresent(utility.MustJobIDFromString(jobUUID), job)
	f.taskMap.InsertIfNotPresent(utility.TaskID(task.Uid), task)
	f.scheduler.AddJob(job)
	return job, task
}
