package costmodel

import (
	"fmt"

	util "github.com/flowsched/flowsched/pkg/scheduling/utility"
)

// Config gathers the construction-time knobs the various cost model
// variants need. Fields irrelevant to the selected CostModelType are
// ignored, so callers can populate the whole struct once from
// configuration and let NewCostModel pick out what it needs.
type Config struct {
	ResourceMap        *util.ResourceMap
	TaskMap            *util.TaskMap
	LeafResourceIDs    map[util.ResourceID]struct{}
	MaxTasksPerMachine uint64
	RandomSeed         int64
	RuntimeEstimator   RuntimeEstimator
	Affinity           CompatibilityMatrix
}

// NewCostModel constructs the cost model selected by t. An unrecognized
// CostModelType is a fatal configuration error at construction time, not a
// silent fallback to some default variant.
func NewCostModel(t CostModelType, cfg Config) (CostModeler, error) {
	switch t {
	case CostModelTrivial:
		return NewTrivialCostModel(cfg.LeafResourceIDs), nil
	case CostModelRandom:
		return NewRandomCostModel(cfg.LeafResourceIDs, cfg.RandomSeed), nil
	case CostModelSjf:
		return NewSJFCostModel(cfg.TaskMap, cfg.LeafResourceIDs, cfg.RuntimeEstimator), nil
	case CostModelQuincy:
		return NewQuincyCostModel(cfg.ResourceMap, cfg.TaskMap, cfg.LeafResourceIDs, cfg.MaxTasksPerMachine), nil
	case CostModelWhare:
		return NewWhareMapCostModel(cfg.TaskMap, cfg.ResourceMap, cfg.LeafResourceIDs, cfg.Affinity), nil
	case CostModelCoco:
		return NewCocoCostModel(cfg.ResourceMap, cfg.TaskMap, cfg.LeafResourceIDs), nil
	default:
		return nil, fmt.Errorf("costmodel: unsupported cost model type %d (octopus/void/net are not implemented by this core)", t)
	}
}
