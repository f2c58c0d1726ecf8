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

package placement

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/golang/glog"

	"github.com/flowsched/flowsched/pkg/scheduling/algorithms/mcmf"
	"github.com/flowsched/flowsched/pkg/scheduling/algorithms/utils"
	"github.com/flowsched/flowsched/pkg/scheduling/dimacs"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
	"github.com/flowsched/flowsched/pkg/scheduling/flowmanager"
)

var (
	FlowlesslyBinary    = "/usr/local/bin/flowlessly/flow_scheduler"
	FlowlesslyAlgorithm = "successive_shortest_path"
	Incremental         = true
)

// Solver turns the current state of a flow graph into a task-to-resource
// mapping. The in-process backend resets the round's ChangeLog only once a
// Solve call succeeds, so a failed round keeps the accumulated changes. The
// external backend resets it as soon as the graph or its changes have been
// written to the solver, before the solver's output is read.
type Solver interface {
	Solve() (flowmanager.TaskMapping, error)
	WriteGraph(file string)
}

// NewSolver picks a backend based on binaryPath: empty selects the
// in-process min-cost-flow solver, non-empty shells out to a
// DIMACS-speaking external solver at that path.
func NewSolver(gm flowmanager.GraphManager, binaryPath string) Solver {
	if binaryPath == "" {
		return &mcmfSolver{gm: gm}
	}
	FlowlesslyBinary = binaryPath
	return &flowlesslySolver{
		gm:              gm,
		isSolverStarted: false,
	}
}

// mcmfSolver runs the successive-shortest-path algorithm against a private
// copy of the graph on every call, so residual-arc bookkeeping never leaks
// into the authoritative graph the change manager tracks.
type mcmfSolver struct {
	gm flowmanager.GraphManager
}

func (s *mcmfSolver) WriteGraph(file string) {
	outputFile, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		glog.Warningf("could not write graph dump to %s: %v", file, err)
		return
	}
	defer outputFile.Close()
	dimacs.Export(s.gm.GraphChangeManager().Graph(), outputFile)
}

// Solve computes a new mapping from the authoritative graph. Any panic
// surfaced by the algorithm packages below (malformed graph, negative
// residual capacity) is converted into an error so a scheduling round can
// treat it as recoverable per the dispatcher's error-handling policy.
func (s *mcmfSolver) Solve() (tm flowmanager.TaskMapping, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mcmf solve: %v", r)
		}
	}()
	graph := s.gm.GraphChangeManager().Graph()
	tm = mcmfSolve(graph)
	s.gm.GraphChangeManager().ResetChanges()
	return tm, nil
}

// mcmfSolve runs successive-shortest-path on an incremental copy of graph
// and extracts a task->resource mapping from the resulting flow.
func mcmfSolve(graph *flowgraph.Graph) flowmanager.TaskMapping {
	start := time.Now()
	copyGraph := flowgraph.BuildIncrementalGraph(graph)
	glog.V(2).Infof("copy graph took %s", time.Since(start))

	start = time.Now()
	maxFlow, minCost := mcmf.SuccessiveShortestPathWithDijkstra(copyGraph, copyGraph.SourceID, copyGraph.SinkID)
	glog.V(2).Infof("mcmf took %s, maxFlow %v minCost %v", time.Since(start), maxFlow, minCost)

	start = time.Now()
	scheduleResult := utils.ExtractScheduleResult(copyGraph, copyGraph.SourceID)
	glog.V(2).Infof("extract result took %s", time.Since(start))

	start = time.Now()
	scheduleResult, repairCount := utils.GreedyRepairFlow(copyGraph, scheduleResult, copyGraph.SinkID)
	glog.V(2).Infof("greedy repair took %s, %d tasks repaired", time.Since(start), repairCount)

	tm := make(flowmanager.TaskMapping)
	var totalFlow uint64
	for mapping, flow := range scheduleResult {
		if flow == 0 {
			continue
		}
		totalFlow += flow
		tm[copyGraph.CopyIdToOriginalIdMap[mapping.TaskId]] = copyGraph.CopyIdToOriginalIdMap[mapping.ResourceId]
	}
	glog.V(2).Infof("after repair total flow is %v, %d tasks mapped", totalFlow, len(tm))

	utils.ExamCostModel(copyGraph, tm)
	return tm
}

// flowlesslySolver shells out to an external DIMACS min-cost-flow binary,
// feeding it the graph (full the first round, incremental afterwards) on
// its stdin and parsing "f <src> <dst> <flow>" lines from its stdout.
type flowlesslySolver struct {
	isSolverStarted bool
	gm              flowmanager.GraphManager
	toSolver        io.Writer
	toConsole       io.Writer
	fromSolver      io.Reader
}

func (fs *flowlesslySolver) Solve() (tm flowmanager.TaskMapping, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("flowlessly solve: %v", r)
		}
	}()
	if !fs.isSolverStarted {
		fs.isSolverStarted = true
		fs.startSolver()
		fs.writeFullGraph()
		return fs.readTaskMapping(), nil
	}

	fs.gm.UpdateAllCostsToUnscheduledAggs()
	fs.writeIncremental()
	return fs.readTaskMapping(), nil
}

func (fs *flowlesslySolver) startSolver() {
	binaryStr, args := fs.getBinConfig()

	var err error
	cmd := exec.Command(binaryStr, args...)
	fs.toSolver, err = cmd.StdinPipe()
	if err != nil {
		panic(err)
	}
	fs.fromSolver, err = cmd.StdoutPipe()
	if err != nil {
		panic(err)
	}
	fs.toConsole = os.Stdout
	if err := cmd.Start(); err != nil {
		panic(err)
	}
}

func (fs *flowlesslySolver) WriteGraph(file string) {
	outputFile, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		panic(err)
	}
	defer outputFile.Close()
	dimacs.Export(fs.gm.GraphChangeManager().Graph(), outputFile)
	fs.gm.GraphChangeManager().ResetChanges()
}

func (fs *flowlesslySolver) writeFullGraph() {
	dimacs.Export(fs.gm.GraphChangeManager().Graph(), fs.toSolver)
	fs.gm.GraphChangeManager().ResetChanges()
}

func (fs *flowlesslySolver) writeIncremental() {
	dimacs.ExportIncremental(fs.gm.GraphChangeManager().GetOptimizedGraphChanges(), fs.toSolver)
	fs.gm.GraphChangeManager().ResetChanges()
}

func (fs *flowlesslySolver) readTaskMapping() flowmanager.TaskMapping {
	extractedFlow := fs.readFlowGraph()
	return fs.parseFlowToMapping(extractedFlow)
}

// readFlowGraph returns a map of dst to a list of its corresponding src and flow capacity.
func (fs *flowlesslySolver) readFlowGraph() map[flowgraph.NodeID]flowPairMap {
	// The dstToSrcAndFlow map stores the flow pairs responsible for sending flow into the dst node
	// As a multimap it is keyed by the dst node where the flow is being sent.
	// The value is a map of flowpairs showing where all the flows to this dst are coming from
	dstToSrcAndFlow := make(map[flowgraph.NodeID]flowPairMap)
	scanner := bufio.NewScanner(fs.fromSolver)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		switch line[0] {
		case 'f':
			var src, dst, flowCap uint64
			var discard string
			n, err := fmt.Sscanf(line, "%s %d %d %d", &discard, &src, &dst, &flowCap)
			if err != nil {
				panic(err)
			}
			if n != 4 {
				panic("expected reading 4 items")
			}
			if flowCap > 0 {
				pair := &flowPair{flowgraph.NodeID(src), flowCap}
				if dstToSrcAndFlow[flowgraph.NodeID(dst)] == nil {
					dstToSrcAndFlow[flowgraph.NodeID(dst)] = make(flowPairMap)
				}
				dstToSrcAndFlow[flowgraph.NodeID(dst)][pair.srcNodeID] = pair
			}
		case 'c':
			if line == "c EOI" {
				return dstToSrcAndFlow
			}
		case 's':
			// cost summary line, not needed
		default:
			panic("unknown solver output line: " + line)
		}
	}
	panic("solver closed its output before signalling end of iteration")
}

// parseFlowToMapping maps worker/root tasks to leaves. It expects extractedFlow
// containing only the arcs with positive flow (i.e. what readFlowGraph returns).
func (fs *flowlesslySolver) parseFlowToMapping(extractedFlow map[flowgraph.NodeID]flowPairMap) flowmanager.TaskMapping {
	taskToPU := flowmanager.TaskMapping{}
	// Note: recording a node's PUs so that a node can assign the PUs to its source itself
	puIDs := make(map[flowgraph.NodeID][]flowgraph.NodeID)
	visited := make(map[flowgraph.NodeID]bool)
	toVisit := make([]flowgraph.NodeID, 0)
	leafIDs := fs.gm.LeafNodeIDs()
	sink := fs.gm.SinkNode()

	for leafID := range leafIDs {
		visited[leafID] = true
		flowPairMap, ok := extractedFlow[sink.ID]
		if !ok {
			continue
		}
		flowPair, ok := flowPairMap[leafID]
		if !ok {
			continue
		}
		for i := uint64(0); i < flowPair.flow; i++ {
			puIDs[leafID] = append(puIDs[leafID], leafID)
		}
		toVisit = append(toVisit, leafID)
	}

	for len(toVisit) != 0 {
		nodeID := toVisit[0]
		toVisit = toVisit[1:]
		visited[nodeID] = true

		if fs.gm.GraphChangeManager().Graph().Node(nodeID).IsTaskNode() {
			if len(puIDs[nodeID]) != 1 {
				log.Panicf("Task Node to Resource Node should be 1:1 mapping")
			}
			taskToPU[nodeID] = puIDs[nodeID][0]
			continue
		}

		toVisit = addPUToSourceNodes(extractedFlow, puIDs, nodeID, visited, toVisit)
	}

	return taskToPU
}

func addPUToSourceNodes(extractedFlow map[flowgraph.NodeID]flowPairMap, puIDs map[flowgraph.NodeID][]flowgraph.NodeID, nodeID flowgraph.NodeID, visited map[flowgraph.NodeID]bool, toVisit []flowgraph.NodeID) []flowgraph.NodeID {
	iter := 0
	srcFlowsMap, ok := extractedFlow[nodeID]
	if !ok {
		return toVisit
	}
	for _, srcFlowPair := range srcFlowsMap {
		for ; srcFlowPair.flow > 0; srcFlowPair.flow-- {
			if iter == len(puIDs[nodeID]) {
				break
			}
			puIDs[srcFlowPair.srcNodeID] = append(puIDs[srcFlowPair.srcNodeID], puIDs[nodeID][iter])
			iter++
		}
		if !visited[srcFlowPair.srcNodeID] {
			toVisit = append(toVisit, srcFlowPair.srcNodeID)
			visited[srcFlowPair.srcNodeID] = true
		}
		if iter == len(puIDs[nodeID]) {
			break
		}
	}
	return toVisit
}

func (fs *flowlesslySolver) getBinConfig() (string, []string) {
	args := []string{
		"--graph_has_node_types=true",
		fmt.Sprintf("--algorithm=%s", FlowlesslyAlgorithm),
		"--print_assignments=false",
		"--debug_output=true",
	}
	if !Incremental {
		args = append(args, "--daemon=false")
	}
	return FlowlesslyBinary, args
}
