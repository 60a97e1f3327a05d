// Package broker holds the declarative broker entity and its runtime task
// handle. It has no dependency on Mesos wire types so it can be unit tested
// in isolation; callers translate mesos.Offer into the Offer value here.
package broker

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mesosphere/kafka-mesos/internal/failover"
)

// Task is the runtime handle attached to a Broker between launch and removal.
type Task struct {
	ID       string
	Hostname string
	Port     uint64
	Running  bool
}

// PortRange is a half-open-free, inclusive [Begin, End] range of ports.
type PortRange struct {
	Begin uint64
	End   uint64
}

// Offer is the scheduler's resource-agnostic view of a single Mesos offer:
// already aggregated across any repeated resources of the same name.
type Offer struct {
	ID       string
	SlaveID  string
	Hostname string
	CPUs     float64
	Mem      float64
	Ports    []PortRange
}

// FirstPort returns the begin value of the first non-empty port range, and
// false if the offer has none. Matches uses it for the "at least one
// non-empty range" check; the launch port itself is chosen by
// offermatch.SelectPort.
func (o Offer) FirstPort() (uint64, bool) {
	for _, r := range o.Ports {
		if r.End >= r.Begin {
			return r.Begin, true
		}
	}
	return 0, false
}

// Broker is one declared broker: desired state plus its runtime task handle
// and failover counters.
type Broker struct {
	ID        string
	Active    bool
	CPUs      float64
	Mem       int64
	Heap      int64
	OptionMap map[string]string
	Task      *Task
	Failover  *failover.Policy

	taskNonce     int64
	executorNonce int64
}

// New constructs an active broker with a zeroed failover policy if pol is nil.
func New(id string, cpus float64, mem, heap int64, options map[string]string, pol *failover.Policy) *Broker {
	if pol == nil {
		pol = &failover.Policy{}
	}
	if options == nil {
		options = map[string]string{}
	}
	return &Broker{
		ID:        id,
		Active:    true,
		CPUs:      cpus,
		Mem:       mem,
		Heap:      heap,
		OptionMap: options,
		Failover:  pol,
	}
}

// Matches is a best-effort scalar comparison: no reservation/role handling.
func (b *Broker) Matches(o Offer) bool {
	if o.CPUs < b.CPUs {
		return false
	}
	if o.Mem < float64(b.Mem) {
		return false
	}
	_, ok := o.FirstPort()
	return ok
}

// NextTaskID produces a fresh task id of the form "<brokerID>-<nonce>", the
// boundary format idFromTaskID relies on to recover the broker id.
func (b *Broker) NextTaskID() string {
	n := atomic.AddInt64(&b.taskNonce, 1)
	return fmt.Sprintf("%s-%d-%d", b.ID, time.Now().UnixNano(), n)
}

// NextExecutorID produces a fresh, human-readable executor id. It is never
// parsed back, so it carries a "broker-" prefix for readability in the Mesos
// UI, unlike the task id.
func (b *Broker) NextExecutorID() string {
	n := atomic.AddInt64(&b.executorNonce, 1)
	return fmt.Sprintf("broker-%s-%d-%d", b.ID, time.Now().UnixNano(), n)
}

// IDFromTaskID recovers the broker id encoded as the prefix of a task id,
// up to (but excluding) the first '-'. Broker ids must not themselves
// contain '-' for this boundary format to round-trip.
func IDFromTaskID(taskID string) string {
	if idx := strings.IndexByte(taskID, '-'); idx >= 0 {
		return taskID[:idx]
	}
	return taskID
}
