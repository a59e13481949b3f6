package pipeline

import (
	"sync/atomic"

	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/radio"
)

type slot struct {
	addr   radio.Address
	data   [limits.MaxPayload]byte
	length int

	// seq is the sequence number of the datagram last written here.
	seq atomic.Uint64
	// pending is set on write and cleared when the notification is released.
	pending atomic.Bool
}

// Stats counts receive-path events. All counters are monotonic.
type Stats struct {
	// Received is the number of datagrams copied into the ring.
	Received uint64
	// Overwritten is the number of writes that reused a slot whose previous
	// datagram had not been released yet.
	Overwritten uint64
	// Dropped is the number of datagrams discarded, either because no
	// handler was armed or because the scheduler was full.
	Dropped uint64
}

// Ring is the receive pipeline: a fixed ring of slots written only from the
// driver's callback goroutine.
type Ring struct {
	slots  [limits.ReceiveRingSize]slot
	cursor int
	next   uint64

	sched Scheduler
	armed atomic.Bool

	received    atomic.Uint64
	overwritten atomic.Uint64
	dropped     atomic.Uint64
}

// NewRing creates a ring that hands notifications to sched. The ring starts
// disarmed.
func NewRing(sched Scheduler) *Ring {
	return &Ring{sched: sched}
}

// Arm enables or disables capture. A disarmed ring drops every datagram
// without touching its slots.
func (r *Ring) Arm(on bool) {
	r.armed.Store(on)
}

// Armed reports whether capture is enabled.
func (r *Ring) Armed() bool {
	return r.armed.Load()
}

// Receive copies one inbound datagram into the slot at the write cursor,
// schedules a notification for it and advances the cursor. Data longer than
// a slot is truncated. It must only be called from the callback goroutine.
func (r *Ring) Receive(src radio.Address, data []byte) {
	if !r.armed.Load() {
		r.dropped.Add(1)
		return
	}

	idx := r.cursor
	s := &r.slots[idx]
	if s.pending.Load() {
		r.overwritten.Add(1)
	}

	r.next++
	seq := r.next
	s.seq.Store(seq)
	s.addr = src
	s.length = copy(s.data[:], data)
	s.pending.Store(true)

	r.cursor = (r.cursor + 1) % limits.ReceiveRingSize
	r.received.Add(1)

	n := Notification{kind: KindReceive, ring: r, slot: uint8(idx), seq: seq}
	if !r.sched.Schedule(n) {
		s.pending.Store(false)
		r.dropped.Add(1)
	}
}

// Cursor returns the index of the slot the next datagram will be written to.
// It must only be called from the callback goroutine or when the ring is
// quiescent.
func (r *Ring) Cursor() int {
	return r.cursor
}

// Snapshot copies slot i out of the ring. It must only be called while the
// ring is quiescent.
func (r *Ring) Snapshot(i int) (radio.Address, []byte) {
	s := &r.slots[i%limits.ReceiveRingSize]
	return s.addr, append([]byte(nil), s.data[:s.length]...)
}

// Stats returns a snapshot of the receive counters.
func (r *Ring) Stats() Stats {
	return Stats{
		Received:    r.received.Load(),
		Overwritten: r.overwritten.Load(),
		Dropped:     r.dropped.Load(),
	}
}
