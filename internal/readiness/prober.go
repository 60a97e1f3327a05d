// Package readiness probes a broker that has just reached TASK_RUNNING to
// check whether it actually answers Kafka wire-protocol requests. It is
// strictly advisory: the outcome is only logged, nothing waits on it, a
// probe failure never feeds back into failover accounting, and it runs
// entirely off the reconciler's single-writer goroutine.
package readiness

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/golang/glog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Probe names a broker and the host:port its task reported once running.
type Probe struct {
	BrokerID string
	Hostname string
	Port     uint64
}

// Result is delivered back to the reconciler as an ordinary event; it never
// mutates broker state directly from the prober's own goroutine.
type Result struct {
	BrokerID string
	OK       bool
	Err      error
}

// Prober runs a fixed pool of workers, each dialing brokers with a real
// Kafka client to issue a metadata request.
type Prober struct {
	timeout time.Duration
	probes  chan Probe
	results chan Result
	wg      sync.WaitGroup
}

// New starts a Prober with the given worker count and per-probe timeout.
func New(workers int, timeout time.Duration) *Prober {
	if workers <= 0 {
		workers = 1
	}
	p := &Prober{
		timeout: timeout,
		probes:  make(chan Probe, 256),
		results: make(chan Result, 256),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Enqueue schedules a probe. If the queue is full the probe is dropped and
// logged — a dropped probe has no effect on reconciliation; that broker's
// readiness is simply never checked or logged for this run.
func (p *Prober) Enqueue(pr Probe) {
	select {
	case p.probes <- pr:
	default:
		log.Warningf("readiness: probe queue full, dropping probe for broker %s", pr.BrokerID)
	}
}

// Results is the channel of completed probe outcomes.
func (p *Prober) Results() <-chan Result {
	return p.results
}

// Close stops accepting new probes and waits up to timeout for in-flight
// probes to drain. Workers are left to finish even past the bound; Close
// only bounds how long the caller blocks, not whether the pool eventually
// quiesces.
func (p *Prober) Close(timeout time.Duration) {
	close(p.probes)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(p.results)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warningf("readiness: shutdown timed out after %s waiting for in-flight probes", timeout)
	}
}

func (p *Prober) run() {
	defer p.wg.Done()
	for pr := range p.probes {
		p.results <- p.probeOnce(pr)
	}
}

func (p *Prober) probeOnce(pr Probe) Result {
	seed := fmt.Sprintf("%s:%d", pr.Hostname, pr.Port)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(seed),
		kgo.DialTimeout(p.timeout),
	)
	if err != nil {
		return Result{BrokerID: pr.BrokerID, OK: false, Err: err}
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		log.Warningf("readiness: probe failed for broker %s at %s: %v", pr.BrokerID, seed, err)
		return Result{BrokerID: pr.BrokerID, OK: false, Err: err}
	}
	log.V(2).Infof("readiness: broker %s at %s answered a metadata request", pr.BrokerID, seed)
	return Result{BrokerID: pr.BrokerID, OK: true}
}
