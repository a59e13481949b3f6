package pipeline

import (
	"github.com/opd-ai/nowlink/radio"
)

// Kind identifies what a Notification refers to.
type Kind uint8

const (
	// KindReceive refers to a slot of the receive ring.
	KindReceive Kind = iota + 1
	// KindSend carries a send outcome.
	KindSend
)

func (k Kind) String() string {
	switch k {
	case KindReceive:
		return "recv"
	case KindSend:
		return "send"
	}
	return "unknown"
}

// Notification is a pending event queued for the consumer context. It is a
// small value; receive notifications reference a ring slot rather than
// carrying the payload.
type Notification struct {
	kind    Kind
	ring    *Ring
	slot    uint8
	seq     uint64
	addr    radio.Address
	success bool
}

// Kind returns the notification kind.
func (n Notification) Kind() Kind {
	return n.kind
}

// Sender returns the peer address: the source of a received datagram or the
// destination of a completed send.
func (n Notification) Sender() radio.Address {
	if n.kind == KindReceive {
		return n.ring.slots[n.slot].addr
	}
	return n.addr
}

// Payload returns the received bytes. The slice aliases the ring slot and is
// only valid until the slot is overtaken; copy it to keep it. Send
// notifications have no payload.
func (n Notification) Payload() []byte {
	if n.kind != KindReceive {
		return nil
	}
	s := &n.ring.slots[n.slot]
	return s.data[:s.length]
}

// Success reports the outcome of a send. It is false for receive
// notifications.
func (n Notification) Success() bool {
	return n.success
}

// Stale reports whether the referenced slot has been overwritten by a later
// datagram since this notification was created.
func (n Notification) Stale() bool {
	if n.kind != KindReceive {
		return false
	}
	return n.ring.slots[n.slot].seq.Load() != n.seq
}

// Release marks the referenced slot consumed. The dispatcher calls it after
// the handler returns.
func (n Notification) Release() {
	if n.kind != KindReceive {
		return
	}
	s := &n.ring.slots[n.slot]
	if s.seq.Load() == n.seq {
		s.pending.Store(false)
	}
}

// SendOutcome is the consumer-facing copy of a send notification.
type SendOutcome struct {
	Addr    radio.Address
	Success bool
}

// Outcome converts a send notification to a SendOutcome.
func (n Notification) Outcome() SendOutcome {
	return SendOutcome{Addr: n.addr, Success: n.success}
}

// Scheduler accepts notifications for later execution on the consumer
// context. Schedule must not block; it reports false when the notification
// was dropped.
type Scheduler interface {
	Schedule(n Notification) bool
}
