// Package config loads flowsched's server configuration: which cost model
// to run, solver backend selection, and the addresses its transport
// adapters listen on or connect to.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/flowsched/flowsched/pkg/scheduling/costmodel"
	"github.com/flowsched/flowsched/pkg/scheduling/flowscheduler"
)

// Config is the top-level configuration for a flowsched server process.
type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`

	CostModel          string `mapstructure:"cost_model"`
	MaxTasksPerMachine uint64 `mapstructure:"max_tasks_per_machine"`
	RandomSeed         int64  `mapstructure:"random_seed"`
	// SolverBinaryPath selects the external Flowlessly solver when set; the
	// empty string (the default) runs the in-process min-cost-flow solver.
	SolverBinaryPath string `mapstructure:"solver_binary_path"`
	EnableEviction   bool   `mapstructure:"enable_eviction"`
	EnableMigration  bool   `mapstructure:"enable_migration"`

	// PulsarURL and PulsarTopic configure the eventbus consumer that feeds
	// task/node lifecycle events into the scheduler server; PulsarURL empty
	// disables the consumer.
	PulsarURL   string `mapstructure:"pulsar_url"`
	PulsarTopic string `mapstructure:"pulsar_topic"`
}

// Default returns the configuration a bare `flowsched serve` should run
// with when no config file or flags override anything.
func Default() Config {
	return Config{
		HTTPAddr:           ":8080",
		CostModel:          "trivial",
		MaxTasksPerMachine: 1,
		RandomSeed:         42,
		EnableEviction:     true,
		EnableMigration:    true,
		PulsarTopic:        "flowsched-events",
	}
}

// Load reads name.{yaml,json,toml,...} from path if present, then applies
// FLOWSCHED_-prefixed environment variable overrides on top. A missing
// config file is not an error; Default() values are used in that case.
func Load(path, name string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName(name)
	v.AddConfigPath(path)
	v.SetEnvPrefix("FLOWSCHED")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

var costModelsByName = map[string]costmodel.CostModelType{
	"trivial": costmodel.CostModelTrivial,
	"random":  costmodel.CostModelRandom,
	"sjf":     costmodel.CostModelSjf,
	"quincy":  costmodel.CostModelQuincy,
	"whare":   costmodel.CostModelWhare,
	"coco":    costmodel.CostModelCoco,
}

// CostModelType resolves the configured cost model name to its enum value.
func (c Config) CostModelType() (costmodel.CostModelType, error) {
	t, ok := costModelsByName[c.CostModel]
	if !ok {
		return 0, fmt.Errorf("unknown cost model %q", c.CostModel)
	}
	return t, nil
}

// SchedulerConfig translates this configuration into the construction
// options flowscheduler.NewScheduler expects.
func (c Config) SchedulerConfig() (flowscheduler.Config, error) {
	t, err := c.CostModelType()
	if err != nil {
		return flowscheduler.Config{}, err
	}
	return flowscheduler.Config{
		CostModelType:      t,
		MaxTasksPerMachine: c.MaxTasksPerMachine,
		RandomSeed:         c.RandomSeed,
		SolverBinaryPath:   c.SolverBinaryPath,
		EnableEviction:     c.EnableEviction,
		EnableMigration:    c.EnableMigration,
	}, nil
}
