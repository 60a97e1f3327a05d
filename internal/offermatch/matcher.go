// Package offermatch decides whether an offer is acceptable for a broker
// and selects the port to launch it on.
package offermatch

import (
	"errors"
	"time"

	"github.com/mesosphere/kafka-mesos/internal/broker"
)

// ErrNoPortRange signals a malformed offer: no usable port range to launch on.
var ErrNoPortRange = errors.New("offermatch: offer has no usable port range")

// Acceptable implements the §4.4 acceptance predicate:
// active ∧ task==nil ∧ matches(offer) ∧ ¬waitingDelay(now).
func Acceptable(b *broker.Broker, o broker.Offer, now time.Time) bool {
	if !b.Active || b.Task != nil {
		return false
	}
	if !b.Matches(o) {
		return false
	}
	return !b.Failover.IsWaitingDelay(now)
}

// SelectPort picks the begin value of the offer's first port range. An
// offer with no port range, or whose first range is empty, is a fatal error
// for that launch attempt.
func SelectPort(o broker.Offer) (uint64, error) {
	if len(o.Ports) == 0 || o.Ports[0].End < o.Ports[0].Begin {
		return 0, ErrNoPortRange
	}
	return o.Ports[0].Begin, nil
}
