package utility

import "math"

type SchedulerStats struct {
	// Accounts only the algorithmic part of the scheduler (in u-sec).
	algorithmRuntime uint64

	// Accounts the entire solver scheduling time in u-sec (i.e. DIMACS write,
	// solver runtime, DIMACS read).
	schedulerRuntime uint64

	// Accounts for the entire scheduling runtime including updating the graph,
	// writing it, running the solver, reading the output and updating again
	// the graph.
	totalRuntime uint64
}

func NewSchedulerStats() *SchedulerStats {
	return &SchedulerStats{
		algorithmRuntime: math.MaxUint64,
		schedulerRuntime: 0,
		totalRuntime: 0,
	}
}

func (s *SchedulerStats) SetAlgorithmRuntime(usec uint64) { s.algorithmRuntime = usec }
func (s *SchedulerStats) SetSchedulerRuntime(usec uint64) { s.schedulerRuntime = usec }
func (s *SchedulerStats) SetTotalRuntime(usec uint64)     { s.totalRuntime = usec }

func (s *SchedulerStats) AlgorithmRuntime() uint64 { return s.algorithmRuntime }
func (s *SchedulerStats) SchedulerRuntime() uint64 { return s.schedulerRuntime }
func (s *SchedulerStats) TotalRuntime() uint64      { return s.totalRuntime }
