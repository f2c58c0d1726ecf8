// Copyright 2016 The ksched Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package costmodel

import (
	"math"

	pb "github.com/flowsched/flowsched/pkg/proto"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	util "github.com/flowsched/flowsched/pkg/scheduling/utility"
)

type (
	Cost          int64
	CostModelType int64
)

// Gather, Prepare and Update are the three passes CostModeler runs during a
// reverse (sink-to-source) traversal of the resource topology to accumulate
// per-node statistics: Prepare resets an accumulator, Gather folds a child
// into it, Update turns the accumulated statistics into arc cost changes.
type (
	Gather  func(accumulator, other *flowgraph.Node) *flowgraph.Node
	Prepare func(accumulator *flowgraph.Node)
	Update  func(accumulator, other *flowgraph.Node) *flowgraph.Node
)

// CostModelType enumerates the cost models a scheduler build can select at
// startup. Only a subset is wired to a concrete CostModeler implementation;
// the rest are placeholders for future models the interface already
// accommodates.
const (
	CostModelTrivial CostModelType = iota
	CostModelRandom
	CostModelSjf
	CostModelQuincy
	CostModelWhare
	CostModelCoco
	CostModelOctopus
	CostModelVoid
	CostModelNet
)

// ClusterAggregatorEC is the equivalence class every resource ultimately
// rolls up to when a cost model groups machines by an aggregate rather than
// tracking per-machine preference arcs.
var ClusterAggregatorEC = util.HashBytesToEquivClass([]byte("CLUSTER_AGG"))

const (
	Unschedule_Factor uint64 = 10
	baseDelta         int64  = 101
	maxCapacity       int64  = 100
)

// ArcDescriptor bundles the three quantities a cost model must supply for
// any arc in the flow network: how expensive routing one unit of flow across
// it is, how much flow it can carry, and how much flow it must carry.
type ArcDescriptor struct {
	Cost     int64
	Capacity uint64
	MinFlow  uint64
	Gain     float64
}

func NewArcDescriptor(cost int64, capacity, minFlow uint64) ArcDescriptor {
	return ArcDescriptor{
		Cost:     cost,
		Capacity: capacity,
		MinFlow:  minFlow,
		Gain:     1.0,
	}
}

type RequestSlots int64

type MachineResourceSlots struct {
	CapacitySlots  RequestSlots
	AvailableSlots RequestSlots
}

// NewRequestSlots converts a resource request into the coarse slot unit cost
// models reason about, taking the minimum of what CPU and memory each allow
// (4GiB of memory per slot) and rounding up to the nearest whole slot.
func NewRequestSlots(request *pb.ResourceVector) RequestSlots {
	requestCPUNum := math.Ceil(float64(request.GetCpuCores()))
	memSlots := float64(request.GetRamCap()) / 4 / 1024
	slots := math.Min(memSlots, requestCPUNum)
	return RequestSlots(math.Ceil(slots))
}

func NewMachineResourceSlots(capacitySlots, availableSlots RequestSlots) MachineResourceSlots {
	return MachineResourceSlots{
		CapacitySlots:  capacitySlots,
		AvailableSlots: availableSlots,
	}
}

// CostModeler is the pluggable pricing strategy behind a flow network: it
// prices every kind of arc the graph manager might create, tracks per-task
// and per-machine bookkeeping needed to price those arcs, and drives the
// resource-topology statistics pass used to keep aggregate capacity figures
// current.
type CostModeler interface {
	// TaskToUnscheduledAgg prices a task's arc to its job's unscheduled
	// aggregator. The Quincy, Whare and Coco models raise this cost with the
	// task's accumulated unscheduled wait time, so leaving a task
	// unscheduled gets steadily less attractive round over round; the
	// trivial and SJF models return a cost that does not depend on wait
	// time, and the random model returns a fresh random draw.
	TaskToUnscheduledAgg(util.TaskID) ArcDescriptor

	UnscheduledAggToSink(util.JobID) ArcDescriptor

	// TaskToResourceNode prices a preference arc from a task to a resource
	// it could run on.
	TaskToResourceNode(util.TaskID, util.ResourceID) ArcDescriptor

	// ResourceNodeToResourceNode prices an arc between two adjacent levels
	// of the resource topology.
	ResourceNodeToResourceNode(source, destination *pb.ResourceDescriptor) ArcDescriptor

	// LeafResourceNodeToSink prices the arc from a leaf resource (a PU) to
	// the sink.
	LeafResourceNodeToSink(util.ResourceID) ArcDescriptor

	// TaskContinuation and TaskPreemption price, respectively, keeping an
	// already-running task where it is versus evicting it to make room for
	// something else.
	TaskContinuation(util.TaskID) ArcDescriptor
	TaskPreemption(util.TaskID) ArcDescriptor

	// TaskToEquivClassAggregator prices a task's arc to an equivalence class
	// it belongs to.
	TaskToEquivClassAggregator(util.TaskID, util.EquivClass) ArcDescriptor

	// EquivClassToResourceNode prices an arc from an equivalence class to a
	// resource all its members could run on.
	EquivClassToResourceNode(util.EquivClass, util.ResourceID) ArcDescriptor

	// EquivClassToEquivClass prices an arc from tec1 to tec2, for cost
	// models that chain equivalence classes together.
	EquivClassToEquivClass(tec1, tec2 util.EquivClass) ArcDescriptor

	// GetTaskEquivClasses reports every equivalence class a task belongs to.
	GetTaskEquivClasses(util.TaskID) []util.EquivClass

	// GetOutgoingEquivClassPrefArcs reports the resources an equivalence
	// class has a preference arc to.
	GetOutgoingEquivClassPrefArcs(ec util.EquivClass) []util.ResourceID

	// GetTaskPreferenceArcs reports the resources a task has a preference
	// arc to.
	GetTaskPreferenceArcs(util.TaskID) []util.ResourceID

	// GetEquivClassToEquivClassesArcs reports the equivalence classes an
	// equivalence class has an outgoing arc to.
	GetEquivClassToEquivClassesArcs(util.EquivClass) []util.EquivClass

	// AddMachine is called by the graph manager when a machine joins the
	// resource topology.
	AddMachine(*pb.ResourceTopologyNodeDescriptor)

	// AddTask is called by the graph manager when a task is submitted.
	AddTask(util.TaskID)

	// RemoveMachine is called by the graph manager when a machine leaves the
	// resource topology.
	RemoveMachine(util.ResourceID)

	RemoveTask(util.TaskID)

	// GatherStats folds other's statistics into accumulator during the
	// reverse (sink-to-source) resource-topology traversal.
	GatherStats(accumulator, other *flowgraph.Node) *flowgraph.Node

	// PrepareStats resets accumulator before a GatherStats pass begins. Cost
	// models with no per-traversal state can leave this a no-op.
	PrepareStats(accumulator *flowgraph.Node)

	// UpdateStats turns accumulated statistics into arc cost changes once a
	// GatherStats pass reaches accumulator.
	UpdateStats(accumulator, other *flowgraph.Node) *flowgraph.Node

	// DebugInfo and DebugInfoCSV expose the cost model's internal state for
	// operator diagnosis, in a human-readable and CSV form respectively.
	DebugInfo() string
	DebugInfoCSV() string
}
