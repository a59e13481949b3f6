package pipeline

import (
	"sync/atomic"

	"github.com/opd-ai/nowlink/radio"
)

// SendNotifier forwards send completions from the driver to the scheduler,
// one notification per call. Notify may run concurrently with Ring.Receive.
type SendNotifier struct {
	sched   Scheduler
	armed   atomic.Bool
	dropped atomic.Uint64
}

// NewSendNotifier creates a disarmed notifier over sched.
func NewSendNotifier(sched Scheduler) *SendNotifier {
	return &SendNotifier{sched: sched}
}

// Arm enables or disables forwarding.
func (s *SendNotifier) Arm(on bool) {
	s.armed.Store(on)
}

// Notify schedules the outcome of one send to addr. Outcomes arriving while
// disarmed, or rejected by the scheduler, are dropped and counted.
func (s *SendNotifier) Notify(addr radio.Address, success bool) {
	if !s.armed.Load() {
		s.dropped.Add(1)
		return
	}
	if !s.sched.Schedule(Notification{kind: KindSend, addr: addr, success: success}) {
		s.dropped.Add(1)
	}
}

// Dropped returns the number of outcomes discarded.
func (s *SendNotifier) Dropped() uint64 {
	return s.dropped.Load()
}
