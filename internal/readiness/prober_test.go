package readiness

import (
	"testing"
	"time"
)

func TestProbeOnceFailsFastAgainstAnUnreachableAddress(t *testing.T) {
	p := New(1, 50*time.Millisecond)
	defer p.Close(time.Second)

	res := p.probeOnce(Probe{BrokerID: "0", Hostname: "127.0.0.1", Port: 1})
	if res.OK {
		t.Fatal("expected probeOnce against a closed port to fail")
	}
	if res.BrokerID != "0" {
		t.Errorf("Result.BrokerID = %q, want %q", res.BrokerID, "0")
	}
	if res.Err == nil {
		t.Error("expected a non-nil Err on failure")
	}
}

func TestEnqueueDropsWhenQueueIsFull(t *testing.T) {
	p := &Prober{timeout: time.Millisecond, probes: make(chan Probe, 1), results: make(chan Result, 1)}
	p.Enqueue(Probe{BrokerID: "0"})
	p.Enqueue(Probe{BrokerID: "1"}) // queue now full; must not block

	select {
	case pr := <-p.probes:
		if pr.BrokerID != "0" {
			t.Errorf("expected the first enqueued probe to survive, got %q", pr.BrokerID)
		}
	default:
		t.Fatal("expected the first probe to be queued")
	}

	select {
	case <-p.probes:
		t.Fatal("expected the second probe to have been dropped, not queued")
	default:
	}
}

func TestNewDefaultsZeroOrNegativeWorkersToOne(t *testing.T) {
	p := New(0, 20*time.Millisecond)
	defer p.Close(time.Second)
	if cap(p.probes) == 0 {
		t.Fatal("expected a usable probe channel")
	}

	p.Enqueue(Probe{BrokerID: "0", Hostname: "127.0.0.1", Port: 4})
	select {
	case <-p.Results():
	case <-time.After(2 * time.Second):
		t.Fatal("expected the one default worker to deliver a probe result")
	}
}

func TestResultsChannelDeliversWorkerOutput(t *testing.T) {
	p := New(1, 20*time.Millisecond)
	defer p.Close(time.Second)
	p.Enqueue(Probe{BrokerID: "broker-with-no-listener", Hostname: "127.0.0.1", Port: 2})

	select {
	case res := <-p.Results():
		if res.OK {
			t.Error("expected the probe against an unreachable port to fail")
		}
		if res.BrokerID != "broker-with-no-listener" {
			t.Errorf("Result.BrokerID = %q, want %q", res.BrokerID, "broker-with-no-listener")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a probe result")
	}
}

func TestCloseDrainsWorkersAndClosesResults(t *testing.T) {
	p := New(2, 20*time.Millisecond)
	p.Enqueue(Probe{BrokerID: "0", Hostname: "127.0.0.1", Port: 3})

	p.Close(2 * time.Second)

	res, ok := <-p.results
	if !ok {
		t.Fatal("expected the one in-flight probe's result to be delivered before the channel closes")
	}
	if res.BrokerID != "0" {
		t.Errorf("Result.BrokerID = %q, want %q", res.BrokerID, "0")
	}

	if _, ok := <-p.results; ok {
		t.Fatal("expected the results channel to be closed once drained")
	}
}

func TestCloseReturnsAfterItsBoundEvenIfWorkersAreStillBusy(t *testing.T) {
	p := &Prober{timeout: time.Second, probes: make(chan Probe, 1), results: make(chan Result, 1)}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		time.Sleep(200 * time.Millisecond)
	}()

	start := time.Now()
	p.Close(20 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("expected Close to return within its bound, took %s", elapsed)
	}
}
