// Package trigger coalesces bursts of "something changed, maybe reschedule"
// signals into a single downstream action, using the same rate-limiting
// queue Kubernetes controllers use to debounce reconciliation.
package trigger

import (
	"k8s.io/client-go/util/workqueue"
)

const scheduleKey = "schedule"

// Debouncer collapses concurrent or rapid Signal calls into one pending
// item, since the underlying queue is set-like: adding an item already
// present is a no-op.
type Debouncer struct {
	queue workqueue.RateLimitingInterface
}

func NewDebouncer() *Debouncer {
	return &Debouncer{
		queue: workqueue.NewRateLimitingQueue(workqueue.DefaultControllerRateLimiter()),
	}
}

// Signal requests that action eventually run.
func (d *Debouncer) Signal() {
	d.queue.Add(scheduleKey)
}

// Run drains signals and invokes action once per dequeued signal, never
// concurrently with itself. It blocks until Stop is called.
func (d *Debouncer) Run(action func()) {
	for {
		item, shutdown := d.queue.Get()
		if shutdown {
			return
		}
		action()
		d.queue.Done(item)
		d.queue.Forget(item)
	}
}

// Stop shuts the queue down, causing a running Run to return.
func (d *Debouncer) Stop() {
	d.queue.ShutDown()
}
