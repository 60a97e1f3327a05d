// Package reconciler is the core convergence loop: it ingests offers and
// task-status updates, matches offers to declared brokers, launches and
// kills tasks to converge on desired state, and applies per-broker
// failover/backoff policy. It knows nothing about the driver's own
// lifecycle (registration, reconnection) beyond holding a handle to it;
// translating raw driver callbacks into these calls is driveradapter's job.
package reconciler

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogo/protobuf/proto"
	log "github.com/golang/glog"
	mesos "github.com/mesos/mesos-go/mesosproto"

	"github.com/mesosphere/kafka-mesos/internal/broker"
	"github.com/mesosphere/kafka-mesos/internal/cluster"
	"github.com/mesosphere/kafka-mesos/internal/failover"
	"github.com/mesosphere/kafka-mesos/internal/offermatch"
	"github.com/mesosphere/kafka-mesos/internal/readiness"
	"github.com/mesosphere/kafka-mesos/internal/taskbuilder"
)

// Driver is the subset of the Mesos scheduler driver the reconciler needs to
// issue actions. A *scheduler.SchedulerDriver from mesos-go satisfies this
// structurally, with no adapter type needed.
type Driver interface {
	LaunchTasks(offerIDs []*mesos.OfferID, tasks []*mesos.TaskInfo, filters *mesos.Filters) (mesos.Status, error)
	KillTask(taskID *mesos.TaskID) (mesos.Status, error)
	DeclineOffer(offerID *mesos.OfferID, filters *mesos.Filters) (mesos.Status, error)
}

// Clock lets tests substitute a deterministic time source.
type Clock func() time.Time

// Reconciler is the single-writer state machine described by §4.6. Every
// exported method that reads or mutates reconciler state acquires the same
// mutex; the log-only callbacks and HandleReadiness touch no state and take
// no lock. There are no suspension points under the mutex other than
// Cluster.Save's I/O.
type Reconciler struct {
	mu      sync.Mutex
	cluster *cluster.Cluster
	driver  Driver
	taskIDs map[string]struct{}
	cfg     taskbuilder.Config
	prober  *readiness.Prober
	now     Clock
	stats   Stats
}

// New builds a Reconciler with no driver attached (disconnected state).
func New(cl *cluster.Cluster, cfg taskbuilder.Config, prober *readiness.Prober) *Reconciler {
	return &Reconciler{
		cluster: cl,
		taskIDs: map[string]struct{}{},
		cfg:     cfg,
		prober:  prober,
		now:     time.Now,
	}
}

// SetClock overrides the reconciler's time source; intended for tests.
func (r *Reconciler) SetClock(c Clock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = c
}

// Registered stores the driver handle. Per §4.6 item 1 this is the only
// effect; the next resourceOffers or statusUpdate callback drives the next
// reconcile pass.
func (r *Reconciler) Registered(driver Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.driver = driver
	log.Info("reconciler: driver registered")
}

// Reregistered behaves exactly like Registered.
func (r *Reconciler) Reregistered(driver Driver) {
	r.Registered(driver)
}

// Disconnected clears the driver handle; every subsequent action is
// suppressed until the next Registered/Reregistered call.
func (r *Reconciler) Disconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.driver = nil
	log.Warning("reconciler: driver disconnected")
}

// ResourceOffers runs one reconcile pass over the given offers.
func (r *Reconciler) ResourceOffers(offers []*mesos.Offer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconcileLocked(offers)
}

// StatusUpdate applies a task-status transition, then runs a reconcile pass
// with no new offers (an empty reconcile still persists state, retries
// orphan kills, and would launch onto any offer already on hand — there
// are none here, so it is purely the persist-and-kill-orphans half of
// reconcile).
func (r *Reconciler) StatusUpdate(status *mesos.TaskStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	taskID := status.GetTaskId().GetValue()
	brokerID := broker.IDFromTaskID(taskID)
	b, ok := r.cluster.GetBroker(brokerID)

	switch status.GetState() {
	case mesos.TaskState_TASK_RUNNING:
		if !ok {
			log.Warningf("reconciler: TASK_RUNNING for unknown broker %s (task %s)", brokerID, taskID)
			break
		}
		if b.Task != nil && b.Task.ID == taskID {
			b.Task.Running = true
			b.Failover.ResetFailures()
			if r.prober != nil {
				r.prober.Enqueue(readiness.Probe{BrokerID: b.ID, Hostname: b.Task.Hostname, Port: b.Task.Port})
			}
		}

	case mesos.TaskState_TASK_LOST, mesos.TaskState_TASK_FINISHED,
		mesos.TaskState_TASK_KILLED, mesos.TaskState_TASK_ERROR,
		mesos.TaskState_TASK_FAILED:
		delete(r.taskIDs, taskID)
		if ok && b.Task != nil && b.Task.ID == taskID {
			b.Task = nil
			state := status.GetState()
			if state != mesos.TaskState_TASK_FINISHED && state != mesos.TaskState_TASK_KILLED {
				b.Failover.RegisterFailure(r.now())
				r.stats.FailureCount++
				if b.Failover.IsMaxTriesExceeded() {
					log.Warningf("reconciler: broker %s exceeded its max failover tries, deactivating", b.ID)
					b.Active = false
				}
			}
		}

	default:
		log.Infof("reconciler: ignoring unhandled task state %s for task %s", status.GetState(), taskID)
	}

	r.reconcileLocked(nil)
}

// OfferRescinded, SlaveLost, ExecutorLost, FrameworkMessage and Error are
// log-only per §4.6 item 5: they carry no reconciliation semantics.
func (r *Reconciler) OfferRescinded(offerID *mesos.OfferID) {
	log.Infof("reconciler: offer rescinded: %s", offerID.GetValue())
}

func (r *Reconciler) SlaveLost(slaveID *mesos.SlaveID) {
	log.Infof("reconciler: slave lost: %s", slaveID.GetValue())
}

func (r *Reconciler) ExecutorLost(executorID *mesos.ExecutorID, slaveID *mesos.SlaveID, status int) {
	log.Infof("reconciler: executor lost: %s on slave %s (status %d)", executorID.GetValue(), slaveID.GetValue(), status)
}

func (r *Reconciler) FrameworkMessage(executorID *mesos.ExecutorID, slaveID *mesos.SlaveID, data []byte) {
	log.Infof("reconciler: framework message from executor %s on slave %s: %d bytes", executorID.GetValue(), slaveID.GetValue(), len(data))
}

func (r *Reconciler) Error(message string) {
	log.Errorf("reconciler: driver error: %s", message)
}

// HandleReadiness applies an advisory probe result. It is purely
// informational: it never touches failover accounting or broker.Task.
func (r *Reconciler) HandleReadiness(res readiness.Result) {
	if res.OK {
		log.V(2).Infof("reconciler: broker %s passed its readiness probe", res.BrokerID)
		return
	}
	log.Warningf("reconciler: broker %s failed its readiness probe: %v", res.BrokerID, res.Err)
}

// Stats is a point-in-time snapshot of lifetime reconcile counters, exposed
// by the admin HTTP surface's /stats endpoint.
type Stats struct {
	LaunchCount    int `json:"launch_count"`
	KillCount      int `json:"kill_count"`
	DeclineCount   int `json:"decline_count"`
	ReconcileCount int `json:"reconcile_count"`
	FailureCount   int `json:"failure_count"`
}

// Stats returns a copy of the lifetime reconcile counters.
func (r *Reconciler) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// BrokerRequest declares a broker's desired shape for the admin HTTP
// creation endpoint. It is its own type, independent of config.BrokerSpec,
// so the JSON wire format of the admin surface never has to track the YAML
// brokers-file format.
type BrokerRequest struct {
	CPUs     float64           `json:"cpus"`
	MemMB    int64             `json:"mem_mb"`
	HeapMB   int64             `json:"heap_mb"`
	Options  map[string]string `json:"options"`
	Delay    time.Duration     `json:"delay"`
	MaxDelay time.Duration     `json:"max_delay"`
	MaxTries int               `json:"max_tries"`
}

// AddBroker declares a new broker and persists the cluster immediately, so
// the admin HTTP creation endpoint can report a definitive success/failure
// before responding.
func (r *Reconciler) AddBroker(id string, req BrokerRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pol := &failover.Policy{Delay: req.Delay, MaxDelay: req.MaxDelay, MaxTries: req.MaxTries}
	b := broker.New(id, req.CPUs, req.MemMB, req.HeapMB, req.Options, pol)
	if err := r.cluster.AddBroker(b); err != nil {
		return fmt.Errorf("reconciler: %w", err)
	}
	if err := r.cluster.Save(); err != nil {
		log.Errorf("reconciler: failed to persist cluster snapshot after adding broker %s: %v", id, err)
	}
	log.Infof("reconciler: declared broker %s", id)
	return nil
}

// RemoveBroker destroys a declared broker. Its running task, if any, is
// left to the next reconcile pass's orphan-kill sweep rather than killed
// inline here, the same way StatusUpdate defers kills to reconcileLocked.
func (r *Reconciler) RemoveBroker(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cluster.GetBroker(id); !ok {
		return fmt.Errorf("reconciler: broker %q not found", id)
	}
	r.cluster.RemoveBroker(id)
	if err := r.cluster.Save(); err != nil {
		log.Errorf("reconciler: failed to persist cluster snapshot after removing broker %s: %v", id, err)
	}
	log.Infof("reconciler: removed broker %s", id)
	return nil
}

// BrokerView is a declarative, point-in-time copy of a broker's state,
// safe to hand to a caller outside the reconciler's lock.
type BrokerView struct {
	ID       string
	Active   bool
	CPUs     float64
	Mem      int64
	Heap     int64
	Task     *broker.Task
	Failures int
}

// Snapshot returns a declarative copy of every declared broker, in stable
// order, for use by the admin HTTP surface. It acquires r.mu itself so
// callers never need a second lock domain on top of the reconciler's.
func (r *Reconciler) Snapshot() []BrokerView {
	r.mu.Lock()
	defer r.mu.Unlock()

	brokers := r.cluster.GetBrokers()
	out := make([]BrokerView, 0, len(brokers))
	for _, b := range brokers {
		view := BrokerView{
			ID:       b.ID,
			Active:   b.Active,
			CPUs:     b.CPUs,
			Mem:      b.Mem,
			Heap:     b.Heap,
			Failures: b.Failover.Failures,
		}
		if b.Task != nil {
			t := *b.Task
			view.Task = &t
		}
		out = append(out, view)
	}
	return out
}

// reconcileLocked is the idempotent convergence pass of §4.6. Callers must
// hold r.mu.
func (r *Reconciler) reconcileLocked(offers []*mesos.Offer) {
	r.stats.ReconcileCount++
	if err := r.cluster.Save(); err != nil {
		log.Errorf("reconciler: failed to persist cluster snapshot: %v", err)
	}
	if r.driver == nil {
		log.V(2).Info("reconciler: no driver available, suppressing actions")
		return
	}

	now := r.now()
	brokers := r.cluster.GetBrokers()
	brokerTookOffer := make(map[string]bool, len(brokers))

	for _, offer := range offers {
		offerID := offer.GetId().GetValue()
		parsed := parseOffer(offer)

		launched := r.tryLaunch(offer, offerID, parsed, brokers, brokerTookOffer, now)
		if !launched {
			if _, err := r.driver.DeclineOffer(offer.Id, &mesos.Filters{}); err != nil {
				log.Errorf("reconciler: DeclineOffer failed for %s: %v", offerID, err)
			}
			r.stats.DeclineCount++
		}
	}

	for taskID := range r.taskIDs {
		brokerID := broker.IDFromTaskID(taskID)
		b, ok := r.cluster.GetBroker(brokerID)
		if ok && b.Active {
			continue
		}
		if _, err := r.driver.KillTask(&mesos.TaskID{Value: proto.String(taskID)}); err != nil {
			log.Errorf("reconciler: KillTask failed for orphan task %s: %v", taskID, err)
			continue
		}
		r.stats.KillCount++
		log.Infof("reconciler: killed orphan task %s", taskID)
	}
}

// tryLaunch attempts to match offer against the first unclaimed, acceptable
// broker in stable cluster order, launching onto it on success.
func (r *Reconciler) tryLaunch(
	offer *mesos.Offer,
	offerID string,
	parsed broker.Offer,
	brokers []*broker.Broker,
	brokerTookOffer map[string]bool,
	now time.Time,
) bool {
	for _, b := range brokers {
		if brokerTookOffer[b.ID] {
			continue
		}
		if !offermatch.Acceptable(b, parsed, now) {
			continue
		}

		port, err := offermatch.SelectPort(parsed)
		if err != nil {
			log.Errorf("reconciler: malformed offer %s: %v", offerID, err)
			return false
		}

		task, taskID, err := taskbuilder.Build(b, parsed, port, r.cfg)
		if err != nil {
			log.Errorf("reconciler: failed to build launch descriptor for broker %s: %v", b.ID, err)
			return false
		}

		if _, err := r.driver.LaunchTasks([]*mesos.OfferID{offer.Id}, []*mesos.TaskInfo{task}, &mesos.Filters{}); err != nil {
			log.Errorf("reconciler: LaunchTasks failed for broker %s: %v", b.ID, err)
			return false
		}

		b.Task = &broker.Task{ID: taskID, Hostname: parsed.Hostname, Port: port, Running: false}
		r.taskIDs[taskID] = struct{}{}
		brokerTookOffer[b.ID] = true
		r.stats.LaunchCount++
		log.Infof("reconciler: launched broker %s as task %s on %s:%d", b.ID, taskID, parsed.Hostname, port)
		return true
	}
	return false
}

// parseOffer aggregates a mesos.Offer's named resources into the broker
// package's simplified Offer view, the same way the teacher's parseOffer
// does for cpus/mem/disk/ports.
func parseOffer(offer *mesos.Offer) broker.Offer {
	var cpus, mem float64
	var ports []broker.PortRange
	for _, res := range offer.GetResources() {
		switch res.GetName() {
		case "cpus":
			cpus += res.GetScalar().GetValue()
		case "mem":
			mem += res.GetScalar().GetValue()
		case "ports":
			for _, rng := range res.GetRanges().GetRange() {
				ports = append(ports, broker.PortRange{Begin: rng.GetBegin(), End: rng.GetEnd()})
			}
		}
	}
	return broker.Offer{
		ID:       offer.GetId().GetValue(),
		SlaveID:  offer.GetSlaveId().GetValue(),
		Hostname: offer.GetHostname(),
		CPUs:     cpus,
		Mem:      mem,
		Ports:    ports,
	}
}
