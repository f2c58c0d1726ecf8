package dimacs

// ChangeStats accumulates counts of each ChangeType applied since the last
// reset, so a scheduling round can report how much churn a batch of events
// produced (e.g. in Prometheus counters and log lines) without re-deriving
// it from the ChangeLog itself.
type ChangeStats struct {
	counts map[ChangeType]uint64
}

func (s *ChangeStats) Record(t ChangeType) {
	if s.counts == nil {
		s.counts = make(map[ChangeType]uint64)
	}
	s.counts[t]++
}

func (s *ChangeStats) Count(t ChangeType) uint64 {
	return s.counts[t]
}

func (s *ChangeStats) Total() uint64 {
	var total uint64
	for _, c := range s.counts {
		total += c
	}
	return total
}

func (s *ChangeStats) Reset() {
	s.counts = nil
}
