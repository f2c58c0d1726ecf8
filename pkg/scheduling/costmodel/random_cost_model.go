package costmodel

import (
	"math/rand"

	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	util "github.com/flowsched/flowsched/pkg/scheduling/utility"
)

const randomCostMax int64 = 1000

// randomCostModel assigns a uniformly random cost, drawn from its own
// rand.Rand, to every task/resource pair. The seed handed to
// NewRandomCostModel fixes the sequence of draws. Which arc receives which
// draw follows the order in which costs are requested, and that order comes
// partly from Go map iteration (the leaf resource set, the jobs of a round),
// so two runs with the same seed can still build different flow networks.
type randomCostModel struct {
	leafResIDset map[util.ResourceID]struct{}
	rng          *rand.Rand
}

// NewRandomCostModel returns a cost model whose arc costs are drawn from
// rand.New(rand.NewSource(seed)); a fixed seed fixes the sequence of draws,
// not which arc gets which draw (see randomCostModel).
func NewRandomCostModel(leafResIDset map[util.ResourceID]struct{}, seed int64) CostModeler {
	return &randomCostModel{
		leafResIDset: leafResIDset,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

func (r *randomCostModel) TaskToUnscheduledAgg(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(r.rng.Int63n(randomCostMax), 1, 0)
}

func (r *randomCostModel) UnscheduledAggToSink(util.JobID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (r *randomCostModel) TaskToResourceNode(util.TaskID, util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(r.rng.Int63n(randomCostMax), 1, 0)
}

func (r *randomCostModel) ResourceNodeToResourceNode(source, destination *pb.ResourceDescriptor) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (r *randomCostModel) LeafResourceNodeToSink(util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (r *randomCostModel) TaskContinuation(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(0, 1, 0)
}

func (r *randomCostModel) TaskPreemption(util.TaskID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (r *randomCostModel) TaskToEquivClassAggregator(util.TaskID, util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (r *randomCostModel) EquivClassToResourceNode(util.EquivClass, util.ResourceID) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (r *randomCostModel) EquivClassToEquivClass(tec1, tec2 util.EquivClass) ArcDescriptor {
	return NewArcDescriptor(0, 0, 0)
}

func (r *randomCostModel) GetTaskEquivClasses(util.TaskID) []util.EquivClass {
	return nil
}

func (r *randomCostModel) GetOutgoingEquivClassPrefArcs(ec util.EquivClass) []util.ResourceID {
	return nil
}

func (r *randomCostModel) GetTaskPreferenceArcs(util.TaskID) []util.ResourceID {
	ids := make([]util.ResourceID, 0, len(r.leafResIDset))
	for id := range r.leafResIDset {
		ids = append(ids, id)
	}
	return ids
}

func (r *randomCostModel) GetEquivClassToEquivClassesArcs(util.EquivClass) []util.EquivClass {
	return nil
}

func (r *randomCostModel) AddMachine(*pb.ResourceTopologyNodeDescriptor) {}
func (r *randomCostModel) AddTask(util.TaskID)                          {}
func (r *randomCostModel) RemoveMachine(util.ResourceID)                {}
func (r *randomCostModel) RemoveTask(util.TaskID)                       {}

func (r *randomCostModel) GatherStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	return accumulator
}

func (r *randomCostModel) PrepareStats(accumulator *flowgraph.Node) {}

func (r *randomCostModel) UpdateStats(accumulator, other *flowgraph.Node) *flowgraph.Node {
	return accumulator
}

func (r *randomCostModel) DebugInfo() string    { return "random" }
func (r *randomCostModel) DebugInfoCSV() string { return "random" }
