// Package config loads the scheduler's process configuration (from flags
// and environment via viper) and the declared broker fleet (from a YAML
// file), the two ambient inputs main wires everything else from.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesosphere/kafka-mesos/internal/failover"
)

// BrokerSpec is one declared broker as written in the YAML brokers file.
type BrokerSpec struct {
	ID       string            `yaml:"id"`
	CPUs     float64           `yaml:"cpus"`
	MemMB    int64             `yaml:"mem_mb"`
	HeapMB   int64             `yaml:"heap_mb"`
	Options  map[string]string `yaml:"options"`
	Failover FailoverSpec      `yaml:"failover"`
}

// FailoverSpec configures a broker's backoff policy; zero-valued fields
// fall back to failover.Policy's own zero-value semantics (no limit,
// no delay).
type FailoverSpec struct {
	Delay    time.Duration `yaml:"delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
	MaxTries int           `yaml:"max_tries"`
}

// ToPolicy builds a fresh failover.Policy from the declared spec.
func (f FailoverSpec) ToPolicy() *failover.Policy {
	return &failover.Policy{
		Delay:    f.Delay,
		MaxDelay: f.MaxDelay,
		MaxTries: f.MaxTries,
	}
}

// BrokersFile is the top-level shape of the YAML brokers declaration.
type BrokersFile struct {
	Brokers []BrokerSpec `yaml:"brokers"`
}

// LoadBrokersFile reads and parses the declared broker fleet.
func LoadBrokersFile(path string) (*BrokersFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading brokers file: %w", err)
	}
	var bf BrokersFile
	if err := yaml.Unmarshal(raw, &bf); err != nil {
		return nil, fmt.Errorf("config: parsing brokers file: %w", err)
	}
	return &bf, nil
}

// Scheduler is the process-level configuration bound from flags/env/file
// by viper in cmd/broker-scheduler.
type Scheduler struct {
	Master            string
	ZKConnect         string
	BrokersFile       string
	ArtifactDir       string
	ArtifactAddress   string
	ArtifactPort      int
	AdminPort         int
	ExecutorJarPath   string
	DistributionPath  string
	StatePath         string
	ReadinessWorkers  int
	ReadinessTimeout  time.Duration
	Debug             bool
}

// LoadScheduler reads the bound viper values into a Scheduler.
func LoadScheduler(v *viper.Viper) Scheduler {
	return Scheduler{
		Master:           v.GetString("master"),
		ZKConnect:        v.GetString("zk-connect"),
		BrokersFile:      v.GetString("brokers-file"),
		ArtifactDir:      v.GetString("artifact-dir"),
		ArtifactAddress:  v.GetString("artifact-address"),
		ArtifactPort:     v.GetInt("artifact-port"),
		AdminPort:        v.GetInt("admin-port"),
		ExecutorJarPath:  v.GetString("executor-jar"),
		DistributionPath: v.GetString("distribution"),
		StatePath:        v.GetString("state-path"),
		ReadinessWorkers: v.GetInt("readiness-workers"),
		ReadinessTimeout: v.GetDuration("readiness-timeout"),
		Debug:            v.GetBool("debug"),
	}
}
