package offermatch

import (
	"testing"
	"time"

	"github.com/mesosphere/kafka-mesos/internal/broker"
	"github.com/mesosphere/kafka-mesos/internal/failover"
)

func testOffer() broker.Offer {
	return broker.Offer{CPUs: 2, Mem: 1024, Ports: []broker.PortRange{{31000, 31001}}}
}

func TestAcceptableFreshIdleBroker(t *testing.T) {
	b := broker.New("0", 1, 512, 256, nil, nil)
	if !Acceptable(b, testOffer(), time.Now()) {
		t.Error("an active, idle, matching broker should be acceptable")
	}
}

func TestAcceptableRejectsInactiveBroker(t *testing.T) {
	b := broker.New("0", 1, 512, 256, nil, nil)
	b.Active = false
	if Acceptable(b, testOffer(), time.Now()) {
		t.Error("an inactive broker should never be acceptable")
	}
}

func TestAcceptableRejectsBrokerWithTask(t *testing.T) {
	b := broker.New("0", 1, 512, 256, nil, nil)
	b.Task = &broker.Task{ID: "0-1"}
	if Acceptable(b, testOffer(), time.Now()) {
		t.Error("a broker that already has a task should not be acceptable")
	}
}

func TestAcceptableRejectsDuringBackoff(t *testing.T) {
	now := time.Now()
	b := broker.New("0", 1, 512, 256, nil, &failover.Policy{Delay: 10 * time.Second, MaxDelay: time.Minute})
	b.Failover.RegisterFailure(now)

	if Acceptable(b, testOffer(), now.Add(5*time.Second)) {
		t.Error("a broker still waiting out its backoff delay should not be acceptable")
	}
	if !Acceptable(b, testOffer(), now.Add(11*time.Second)) {
		t.Error("a broker whose backoff delay has elapsed should be acceptable again")
	}
}

func TestSelectPort(t *testing.T) {
	port, err := SelectPort(testOffer())
	if err != nil || port != 31000 {
		t.Errorf("SelectPort() = (%d, %v), want (31000, nil)", port, err)
	}

	_, err = SelectPort(broker.Offer{CPUs: 2, Mem: 1024})
	if err != ErrNoPortRange {
		t.Errorf("SelectPort() on a portless offer = %v, want ErrNoPortRange", err)
	}
}
