package flowmanager

import (
	"strconv"
	"testing"

	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/costmodel"
	"github.com/flowsched/flowsched/pkg/scheduling/dimacs"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	"github.com/flowsched/flowsched/pkg/scheduling/utility"
)

func newTestMachineRTND(name string) *pb.ResourceTopologyNodeDescriptor {
	rtnd := &pb.ResourceTopologyNodeDescriptor{ResourceDesc: &pb.ResourceDescriptor{}}
	createTestMachine(rtnd, name)
	return rtnd
}

func TestAddResourceNode(t *testing.T) {
	gm := createTestGMTrivial().(*graphManager)
	rtnd := newTestMachineRTND("machine-1")
	rID := utility.MustResourceIDFromString(rtnd.ResourceDesc.Uuid)

	gm.AddResourceTopology(rtnd)

	node, ok := gm.resourceToNode[rID]
	if !ok {
		t.Fatalf("AddResourceTopology did not register a node for resource %v", rID)
	}
	if node.Type != flowgraph.NodeTypeMachine {
		t.Errorf("node type = %v, want NodeTypeMachine", node.Type)
	}
	if _, isLeaf := gm.leafResourceIDs[rID]; isLeaf {
		t.Errorf("a machine node (not a PU) should not be registered as a leaf resource")
	}
	sinkArc := gm.cm.Graph().GetArc(node, gm.sinkNode)
	if sinkArc == nil {
		t.Fatalf("expected an arc from the machine node to the sink")
	}
	if sinkArc.CapUpperBound != 1 {
		t.Errorf("sink arc capacity = %d, want 1 (trivial cost model)", sinkArc.CapUpperBound)
	}

	// Adding the same resource a second time must not panic or duplicate
	// the node/arc mapping.
	gm.AddResourceTopology(rtnd)
	if got := gm.resourceToNode[rID]; got != node {
		t.Errorf("re-adding the same resource replaced its node")
	}
}

func TestRemoveResourceTopologyClearsMappings(t *testing.T) {
	gm := createTestGMTrivial().(*graphManager)
	rtnd := newTestMachineRTND("machine-2")
	rID := utility.MustResourceIDFromString(rtnd.ResourceDesc.Uuid)
	gm.AddResourceTopology(rtnd)

	gm.RemoveResourceTopology(rtnd.ResourceDesc)

	if _, ok := gm.resourceToNode[rID]; ok {
		t.Errorf("resource %v still mapped to a node after removal", rID)
	}
	if _, ok := gm.leafResourceIDs[rID]; ok {
		t.Errorf("resource %v still registered as a leaf after removal", rID)
	}
}

// Create a Graph Manager using the trivial cost model
func createTestGMTrivial() GraphManager {
	resourceMap := utility.NewResourceMap()
	taskMap := utility.NewTaskMap()
	leafResourceIDs := make(map[utility.ResourceID]struct{})
	dimacsStats := &dimacs.ChangeStats{}
	costModeler, err := costmodel.NewCostModel(costmodel.CostModelTrivial, costmodel.Config{
		ResourceMap:     resourceMap,
		TaskMap:         taskMap,
		LeafResourceIDs: leafResourceIDs,
	})
	if err != nil {
		panic(err)
	}
	gm := NewGraphManager(costModeler, leafResourceIDs, dimacsStats, 1)
	return gm
}

// TODO: Helper functions that may just be duplicated into each unit test later
func createTestMachine(rtnd *pb.ResourceTopologyNodeDescriptor, machineName string) *pb.ResourceDescriptor {
	utility.SeedRNGWithString(machineName)
	rID := utility.GenerateResourceID()
	rd := rtnd.ResourceDesc
	rd.Uuid = strconv.FormatUint(uint64(rID), 10)
	rd.Type = pb.ResourceDescriptor_RESOURCE_MACHINE
	return rd
}

func createTestJob(jobIDSeed uint64, taskState pb.TaskDescriptor_TaskState) *pb.JobDescriptor {
	utility.SeedRNGWithInt(int64(jobIDSeed))
	jobID := utility.GenerateJobID()
	jobUUID := strconv.FormatUint(uint64(jobID), 10)
	taskID := utility.GenerateTaskID()
	return &pb.JobDescriptor{
		Uuid: jobUUID,
		Name: "job-" + jobUUID,
		RootTask: &pb.TaskDescriptor{
			Uid:   uint64(taskID),
			Name:  "root-task",
			JobId: jobUUID,
			State: taskState,
		},
	}
}

func TestAddOrUpdateJobNodesIsIdempotent(t *testing.T) {
	gm := createTestGMTrivial().(*graphManager)
	job := createTestJob(42, pb.TaskDescriptor_RUNNABLE)

	gm.AddOrUpdateJobNodes([]*pb.JobDescriptor{job})
	taskNode := gm.nodeForTaskID(utility.TaskID(job.RootTask.Uid))
	if taskNode == nil {
		t.Fatalf("expected a task node for the runnable root task")
	}
	firstNodeCount := len(gm.cm.Graph().NodeMap)

	gm.AddOrUpdateJobNodes([]*pb.JobDescriptor{job})

	if got := gm.nodeForTaskID(utility.TaskID(job.RootTask.Uid)); got != taskNode {
		t.Errorf("a second AddOrUpdateJobNodes call replaced the existing task node")
	}
	if got := len(gm.cm.Graph().NodeMap); got != firstNodeCount {
		t.Errorf("node count changed from %d to %d on a repeat call with no new tasks", firstNodeCount, got)
	}
}

func TestScheduledTaskHasExactlyOneRunningArc(t *testing.T) {
	gm := createTestGMTrivial().(*graphManager)
	rtnd := newTestMachineRTND("machine-3")
	gm.AddResourceTopology(rtnd)
	rID := utility.MustResourceIDFromString(rtnd.ResourceDesc.Uuid)

	job := createTestJob(7, pb.TaskDescriptor_RUNNABLE)
	gm.AddOrUpdateJobNodes([]*pb.JobDescriptor{job})
	taskID := utility.TaskID(job.RootTask.Uid)

	gm.TaskScheduled(taskID, rID)

	taskNode := gm.nodeForTaskID(taskID)
	if taskNode.Type != flowgraph.NodeTypeScheduledTask {
		t.Fatalf("task node type = %v, want NodeTypeScheduledTask", taskNode.Type)
	}
	runningArcs := 0
	for _, arc := range taskNode.OutgoingArcMap {
		if arc.Type == flowgraph.ArcTypeRunning {
			runningArcs++
		}
	}
	if runningArcs != 1 {
		t.Errorf("scheduled task has %d running arcs, want exactly 1", runningArcs)
	}
}
