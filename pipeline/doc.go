// Package pipeline holds the callback-context half of nowlink: the receive
// ring and the send-completion notifier.
//
// Both run in the radio driver's callback context and never block or
// allocate. Receive calls must not overlap; send completions may arrive on a
// different goroutine, so the notifier touches only atomics. Work is handed
// to the consumer context as Notification values through a Scheduler.
//
// # Receive ring
//
// Inbound datagrams are copied into a preallocated ring of
// limits.ReceiveRingSize slots, reused in strict round-robin order. When the
// consumer falls more than a full ring behind, the oldest slot is overwritten
// in place. A Notification for an overwritten slot still gets delivered but
// its contents now belong to the newer datagram and may be mixed while the
// write is in progress. Stale reports this case; Stats.Overwritten counts it.
package pipeline
