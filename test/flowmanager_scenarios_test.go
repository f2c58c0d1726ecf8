package test

import (
	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/costmodel"
	"github.com/flowsched/flowsched/pkg/scheduling/dimacs"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	"github.com/flowsched/flowsched/pkg/scheduling/flowmanager"
	"github.com/flowsched/flowsched/pkg/scheduling/utility"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// These specs drive flowmanager.GraphManager directly rather than through
// flowscheduler.Scheduler, since UpdateResourceTopology and the DIMACS
// change log it records are never exposed on the Scheduler interface.

func newTrivialGraphManager(leafResourceIDs map[utility.ResourceID]struct{}, maxSlotsPerPU uint64) flowmanager.GraphManager {
	costModeler, err := costmodel.NewCostModel(costmodel.CostModelTrivial, costmodel.Config{
		ResourceMap:     utility.NewResourceMap(),
		TaskMap:         utility.NewTaskMap(),
		LeafResourceIDs: leafResourceIDs,
	})
	Expect(err).NotTo(HaveOccurred())
	return flowmanager.NewGraphManager(costModeler, leafResourceIDs, &dimacs.ChangeStats{}, maxSlotsPerPU)
}

func puDescriptor(uuid string) *pb.ResourceDescriptor {
	return &pb.ResourceDescriptor{
		Uuid:        uuid,
		Type:        pb.ResourceDescriptor_RESOURCE_PU,
		State:       pb.ResourceDescriptor_RESOURCE_IDLE,
		Schedulable: true,
	}
}

func resourceNode(graph *flowgraph.Graph, rID utility.ResourceID) *flowgraph.Node {
	for node := range graph.ResourceSet {
		if node.ResourceID == rID {
			return node
		}
	}
	return nil
}

func taskNodeByUID(graph *flowgraph.Graph, uid uint64) *flowgraph.Node {
	for node := range graph.TaskSet {
		if node.Task != nil && node.Task.Uid == uid {
			return node
		}
	}
	return nil
}

var _ = Describe("flowmanager.GraphManager", func() {
	Describe("UpdateResourceTopology", func() {
		It("reflects a PU's running task count into its capacity arc without touching sibling resources", func() {
			leafResourceIDs := make(map[utility.ResourceID]struct{})
			gm := newTrivialGraphManager(leafResourceIDs, 1)

			machine := &pb.ResourceDescriptor{
				Uuid:        "5",
				Type:        pb.ResourceDescriptor_RESOURCE_MACHINE,
				State:       pb.ResourceDescriptor_RESOURCE_IDLE,
				Schedulable: true,
			}
			pu1 := puDescriptor("501")
			pu2 := puDescriptor("502")
			machineRtnd := &pb.ResourceTopologyNodeDescriptor{
				ResourceDesc: machine,
				Children: []*pb.ResourceTopologyNodeDescriptor{
					{ResourceDesc: pu1, ParentId: machine.Uuid},
					{ResourceDesc: pu2, ParentId: machine.Uuid},
				},
			}
			gm.AddResourceTopology(machineRtnd)

			graph := gm.GraphChangeManager().Graph()
			machineID := utility.MustResourceIDFromString(machine.Uuid)
			pu1ID := utility.MustResourceIDFromString(pu1.Uuid)
			pu2ID := utility.MustResourceIDFromString(pu2.Uuid)

			machineNode := resourceNode(graph, machineID)
			pu1Node := resourceNode(graph, pu1ID)
			pu2Node := resourceNode(graph, pu2ID)
			Expect(machineNode).NotTo(BeNil())
			Expect(pu1Node).NotTo(BeNil())
			Expect(pu2Node).NotTo(BeNil())

			pu1ArcBefore := graph.GetArc(machineNode, pu1Node)
			pu2ArcBefore := graph.GetArc(machineNode, pu2Node)
			Expect(pu1ArcBefore.CapUpperBound).To(Equal(uint64(1)))
			Expect(pu2ArcBefore.CapUpperBound).To(Equal(uint64(1)))

			// A task started running on pu1 outside of the flow graph (e.g.
			// restored from a checkpoint); its slot is no longer free.
			pu1.CurrentRunningTasks = []uint64{999}
			gm.GraphChangeManager().ResetChanges()

			gm.UpdateResourceTopology(&pb.ResourceTopologyNodeDescriptor{
				ResourceDesc: pu1,
				ParentId:     machine.Uuid,
			})

			pu1ArcAfter := graph.GetArc(machineNode, pu1Node)
			pu2ArcAfter := graph.GetArc(machineNode, pu2Node)
			Expect(pu1ArcAfter.CapUpperBound).To(Equal(uint64(0)), "pu1's one slot is now occupied")
			Expect(pu2ArcAfter.CapUpperBound).To(Equal(uint64(1)), "pu2 was never touched")

			changes := gm.GraphChangeManager().GetGraphChanges()
			var arcChanges []*dimacs.ArcChange
			for _, c := range changes {
				if ac, ok := c.(*dimacs.ArcChange); ok {
					arcChanges = append(arcChanges, ac)
				}
			}
			Expect(arcChanges).To(HaveLen(1), "only pu1's parent arc should have changed")
			Expect(arcChanges[0].ChangeType).To(Equal(dimacs.ChgArcBetweenRes))
			Expect(arcChanges[0].Src).To(Equal(uint64(machineNode.ID)))
			Expect(arcChanges[0].Dst).To(Equal(uint64(pu1Node.ID)))
			Expect(arcChanges[0].CapUpperBound).To(Equal(uint64(0)))
		})
	})

	Describe("TaskScheduled", func() {
		It("prunes every preference arc but the chosen one and records the pruning in the change log", func() {
			leafResourceIDs := make(map[utility.ResourceID]struct{})
			gm := newTrivialGraphManager(leafResourceIDs, 1)

			machine := &pb.ResourceDescriptor{
				Uuid:        "6",
				Type:        pb.ResourceDescriptor_RESOURCE_MACHINE,
				State:       pb.ResourceDescriptor_RESOURCE_IDLE,
				Schedulable: true,
			}
			puA := puDescriptor("601")
			puB := puDescriptor("602")
			gm.AddResourceTopology(&pb.ResourceTopologyNodeDescriptor{
				ResourceDesc: machine,
				Children: []*pb.ResourceTopologyNodeDescriptor{
					{ResourceDesc: puA, ParentId: machine.Uuid},
					{ResourceDesc: puB, ParentId: machine.Uuid},
				},
			})

			task := &pb.TaskDescriptor{
				Uid:   61,
				Name:  "task-61",
				JobId: "6",
				State: pb.TaskDescriptor_RUNNABLE,
			}
			job := &pb.JobDescriptor{
				Uuid:     "6",
				Name:     "job-6",
				RootTask: task,
			}
			gm.AddOrUpdateJobNodes([]*pb.JobDescriptor{job})

			graph := gm.GraphChangeManager().Graph()
			taskNode := taskNodeByUID(graph, task.Uid)
			Expect(taskNode).NotTo(BeNil())

			ridA := utility.MustResourceIDFromString(puA.Uuid)
			ridB := utility.MustResourceIDFromString(puB.Uuid)
			nodeA := resourceNode(graph, ridA)
			nodeB := resourceNode(graph, ridB)
			Expect(graph.GetArc(taskNode, nodeA)).NotTo(BeNil(), "trivial cost model prefers every leaf resource")
			Expect(graph.GetArc(taskNode, nodeB)).NotTo(BeNil())

			gm.GraphChangeManager().ResetChanges()
			gm.TaskScheduled(utility.TaskID(task.Uid), ridA)

			Expect(graph.GetArc(taskNode, nodeB)).To(BeNil(), "the arc to the resource that wasn't chosen must be gone")

			runningArc := graph.GetArc(taskNode, nodeA)
			Expect(runningArc).NotTo(BeNil())
			Expect(runningArc.Type).To(Equal(flowgraph.ArcTypeRunning))
			Expect(runningArc.CapUpperBound).To(Equal(uint64(1)))

			var deletedToB, changedToA *dimacs.ArcChange
			for _, c := range gm.GraphChangeManager().GetGraphChanges() {
				ac, ok := c.(*dimacs.ArcChange)
				if !ok {
					continue
				}
				switch {
				case ac.Src == uint64(taskNode.ID) && ac.Dst == uint64(nodeB.ID):
					deletedToB = ac
				case ac.Src == uint64(taskNode.ID) && ac.Dst == uint64(nodeA.ID):
					changedToA = ac
				}
			}

			Expect(deletedToB).NotTo(BeNil(), "expected a change log entry for the pruned arc to the unchosen resource")
			Expect(deletedToB.ChangeType).To(Equal(dimacs.DelArcTaskToEquivClass))
			Expect(deletedToB.ChangeType.Kind()).To(Equal(dimacs.KindChangeArc), "DIMACS has no remove-arc record, so a prune is a capacity-zero change")

			Expect(changedToA).NotTo(BeNil(), "expected a change log entry transforming the chosen arc into a running arc")
			Expect(changedToA.ChangeType).To(Equal(dimacs.ChgArcRunningTask))
		})
	})
})
