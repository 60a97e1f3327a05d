// Package driveradapter bridges the real mesos-go scheduler driver callbacks
// onto the reconciler. It holds no state and makes no decisions of its own:
// every method is a one-line forward.
package driveradapter

import (
	mesos "github.com/mesos/mesos-go/mesosproto"
	sched "github.com/mesos/mesos-go/scheduler"

	"github.com/mesosphere/kafka-mesos/internal/reconciler"
)

// Adapter implements sched.Scheduler by forwarding every callback into a
// single Reconciler.
type Adapter struct {
	rec *reconciler.Reconciler
}

// New wraps rec as a sched.Scheduler.
func New(rec *reconciler.Reconciler) *Adapter {
	return &Adapter{rec: rec}
}

var _ sched.Scheduler = (*Adapter)(nil)

func (a *Adapter) Registered(driver sched.SchedulerDriver, _ *mesos.FrameworkID, _ *mesos.MasterInfo) {
	a.rec.Registered(driver)
}

func (a *Adapter) Reregistered(driver sched.SchedulerDriver, _ *mesos.MasterInfo) {
	a.rec.Reregistered(driver)
}

func (a *Adapter) Disconnected(sched.SchedulerDriver) {
	a.rec.Disconnected()
}

func (a *Adapter) ResourceOffers(_ sched.SchedulerDriver, offers []*mesos.Offer) {
	a.rec.ResourceOffers(offers)
}

func (a *Adapter) OfferRescinded(_ sched.SchedulerDriver, offerID *mesos.OfferID) {
	a.rec.OfferRescinded(offerID)
}

func (a *Adapter) StatusUpdate(_ sched.SchedulerDriver, status *mesos.TaskStatus) {
	a.rec.StatusUpdate(status)
}

func (a *Adapter) FrameworkMessage(_ sched.SchedulerDriver, executorID *mesos.ExecutorID, slaveID *mesos.SlaveID, data string) {
	a.rec.FrameworkMessage(executorID, slaveID, []byte(data))
}

func (a *Adapter) SlaveLost(_ sched.SchedulerDriver, slaveID *mesos.SlaveID) {
	a.rec.SlaveLost(slaveID)
}

func (a *Adapter) ExecutorLost(_ sched.SchedulerDriver, executorID *mesos.ExecutorID, slaveID *mesos.SlaveID, status int) {
	a.rec.ExecutorLost(executorID, slaveID, status)
}

func (a *Adapter) Error(_ sched.SchedulerDriver, message string) {
	a.rec.Error(message)
}
