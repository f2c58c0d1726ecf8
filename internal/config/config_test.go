package config

import (
	"testing"

	"github.com/flowsched/flowsched/pkg/scheduling/costmodel"
)

func TestDefaultIsSchedulerConfigurable(t *testing.T) {
	cfg := Default()
	sc, err := cfg.SchedulerConfig()
	if err != nil {
		t.Fatalf("SchedulerConfig: %v", err)
	}
	if sc.CostModelType != costmodel.CostModelTrivial {
		t.Fatalf("expected trivial cost model, got %v", sc.CostModelType)
	}
	if sc.MaxTasksPerMachine != cfg.MaxTasksPerMachine {
		t.Fatalf("MaxTasksPerMachine not carried through")
	}
}

func TestUnknownCostModelRejected(t *testing.T) {
	cfg := Default()
	cfg.CostModel = "octopus"
	if _, err := cfg.SchedulerConfig(); err == nil {
		t.Fatalf("expected error for unsupported cost model name")
	}
}

func TestLoadWithMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), "flowsched")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults when no config file is present, got %+v", cfg)
	}
}
