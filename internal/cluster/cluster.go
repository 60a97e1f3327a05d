// Package cluster owns the declared set of brokers and its persisted
// snapshot. Mutation is the reconciler's responsibility; Cluster itself
// holds no lock of its own — the reconciler's single mutex is the
// synchronization boundary for everything reachable from it.
package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/golang/glog"

	"github.com/mesosphere/kafka-mesos/internal/broker"
	"github.com/mesosphere/kafka-mesos/internal/clusterstore"
	"github.com/mesosphere/kafka-mesos/internal/failover"
)

// Cluster is the mutable set of declared brokers plus its persistence.
type Cluster struct {
	ids     []string
	brokers map[string]*broker.Broker
	store   clusterstore.Store
}

// New returns an empty cluster backed by store. A nil store disables
// persistence entirely (useful in tests).
func New(store clusterstore.Store) *Cluster {
	return &Cluster{
		ids:     []string{},
		brokers: map[string]*broker.Broker{},
		store:   store,
	}
}

// AddBroker registers a new declared broker. The id must be unique.
func (c *Cluster) AddBroker(b *broker.Broker) error {
	if _, exists := c.brokers[b.ID]; exists {
		return fmt.Errorf("cluster: broker %q already exists", b.ID)
	}
	c.brokers[b.ID] = b
	c.ids = append(c.ids, b.ID)
	return nil
}

// RemoveBroker deletes a broker from the declared set. A no-op if absent.
func (c *Cluster) RemoveBroker(id string) {
	if _, ok := c.brokers[id]; !ok {
		return
	}
	delete(c.brokers, id)
	for i, existing := range c.ids {
		if existing == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			break
		}
	}
}

// GetBroker looks up a broker by id.
func (c *Cluster) GetBroker(id string) (*broker.Broker, bool) {
	b, ok := c.brokers[id]
	return b, ok
}

// GetBrokers returns all brokers in stable insertion order.
func (c *Cluster) GetBrokers() []*broker.Broker {
	out := make([]*broker.Broker, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.brokers[id])
	}
	return out
}

type taskSnapshot struct {
	ID       string `json:"id"`
	Hostname string `json:"hostname"`
	Port     uint64 `json:"port"`
	Running  bool   `json:"running"`
}

type failoverSnapshot struct {
	Failures    int        `json:"failures"`
	MaxTries    int        `json:"max_tries,omitempty"`
	DelaySec    float64    `json:"delay_seconds"`
	MaxDelaySec float64    `json:"max_delay_seconds"`
	FailureTime *time.Time `json:"failure_time,omitempty"`
}

type brokerSnapshot struct {
	ID        string            `json:"id"`
	Active    bool              `json:"active"`
	CPUs      float64           `json:"cpus"`
	Mem       int64             `json:"mem"`
	Heap      int64             `json:"heap"`
	OptionMap map[string]string `json:"options,omitempty"`
	Task      *taskSnapshot     `json:"task,omitempty"`
	Failover  failoverSnapshot  `json:"failover"`
}

type snapshot struct {
	Brokers []brokerSnapshot `json:"brokers"`
}

// Save serializes the declared cluster (JSON, human-diffable) and hands it
// to the configured store. Save failures are logged, not propagated as a
// fatal error: a later Save may succeed.
func (c *Cluster) Save() error {
	if c.store == nil {
		return nil
	}
	snap := snapshot{Brokers: make([]brokerSnapshot, 0, len(c.ids))}
	for _, id := range c.ids {
		b := c.brokers[id]
		bs := brokerSnapshot{
			ID:        b.ID,
			Active:    b.Active,
			CPUs:      b.CPUs,
			Mem:       b.Mem,
			Heap:      b.Heap,
			OptionMap: b.OptionMap,
			Failover: failoverSnapshot{
				Failures:    b.Failover.Failures,
				MaxTries:    b.Failover.MaxTries,
				DelaySec:    b.Failover.Delay.Seconds(),
				MaxDelaySec: b.Failover.MaxDelay.Seconds(),
				FailureTime: b.Failover.FailureTime,
			},
		}
		if b.Task != nil {
			bs.Task = &taskSnapshot{
				ID:       b.Task.ID,
				Hostname: b.Task.Hostname,
				Port:     b.Task.Port,
				Running:  b.Task.Running,
			}
		}
		snap.Brokers = append(snap.Brokers, bs)
	}

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("cluster: marshal snapshot: %w", err)
	}
	if err := c.store.Save(raw); err != nil {
		log.Errorf("cluster: failed to persist snapshot: %v", err)
		return err
	}
	return nil
}

// Load replaces the in-memory declared set with the persisted snapshot. When
// clearTasks is true, Broker.Task handles are discarded since they are
// stale across a restart. A missing snapshot is not an error: it means this
// is the first run. Any other load failure is fatal to the caller.
func (c *Cluster) Load(clearTasks bool) error {
	if c.store == nil {
		return nil
	}
	raw, err := c.store.Load()
	if errors.Is(err, clusterstore.ErrNotFound) {
		log.Info("cluster: no existing snapshot found, starting with an empty cluster")
		return nil
	}
	if err != nil {
		return fmt.Errorf("cluster: fatal error loading snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("cluster: fatal error decoding snapshot: %w", err)
	}

	brokers := make(map[string]*broker.Broker, len(snap.Brokers))
	ids := make([]string, 0, len(snap.Brokers))
	for _, bs := range snap.Brokers {
		b := &broker.Broker{
			ID:        bs.ID,
			Active:    bs.Active,
			CPUs:      bs.CPUs,
			Mem:       bs.Mem,
			Heap:      bs.Heap,
			OptionMap: bs.OptionMap,
			Failover: &failover.Policy{
				Failures:    bs.Failover.Failures,
				MaxTries:    bs.Failover.MaxTries,
				Delay:       time.Duration(bs.Failover.DelaySec * float64(time.Second)),
				MaxDelay:    time.Duration(bs.Failover.MaxDelaySec * float64(time.Second)),
				FailureTime: bs.Failover.FailureTime,
			},
		}
		if !clearTasks && bs.Task != nil {
			b.Task = &broker.Task{
				ID:       bs.Task.ID,
				Hostname: bs.Task.Hostname,
				Port:     bs.Task.Port,
				Running:  bs.Task.Running,
			}
		}
		brokers[b.ID] = b
		ids = append(ids, b.ID)
	}
	c.brokers = brokers
	c.ids = ids
	return nil
}
