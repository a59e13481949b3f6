package pipeline

import (
	"testing"

	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/radio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const n = limits.ReceiveRingSize

func eventAddr(i int) radio.Address {
	return radio.Address{0x02, 0, 0, 0, byte(i >> 8), byte(i)}
}

func eventPayload(i int) []byte {
	return []byte{byte(i), byte(i >> 8), 0xee}
}

func newArmedRing() (*Ring, *recordingScheduler) {
	sched := &recordingScheduler{}
	r := NewRing(sched)
	r.Arm(true)
	return r, sched
}

func TestRingFillsSlotsInOrder(t *testing.T) {
	r, sched := newArmedRing()

	for i := 0; i < n; i++ {
		r.Receive(eventAddr(i), eventPayload(i))
	}

	require.Len(t, sched.notes, n)
	assert.Equal(t, 0, r.Cursor())
	for i := 0; i < n; i++ {
		addr, data := r.Snapshot(i)
		assert.Equal(t, eventAddr(i), addr, "slot %d", i)
		assert.Equal(t, eventPayload(i), data, "slot %d", i)
	}
}

func TestRingWrapsAndOverwrites(t *testing.T) {
	r, _ := newArmedRing()

	for i := 0; i <= n; i++ {
		r.Receive(eventAddr(i), eventPayload(i))
	}

	addr, data := r.Snapshot(0)
	assert.Equal(t, eventAddr(n), addr)
	assert.Equal(t, eventPayload(n), data)

	addr, data = r.Snapshot(1)
	assert.Equal(t, eventAddr(1), addr)
	assert.Equal(t, eventPayload(1), data)
	assert.Equal(t, 1, r.Cursor())
}

func TestRingWraparoundLaw(t *testing.T) {
	r, _ := newArmedRing()
	const events = 3*n + 7

	for k := 0; k < events; k++ {
		r.Receive(eventAddr(k), eventPayload(k))
	}

	for k := events - n; k < events; k++ {
		addr, data := r.Snapshot(k % n)
		assert.Equal(t, eventAddr(k), addr)
		assert.Equal(t, eventPayload(k), data)
	}
}

func TestRingCopiesInput(t *testing.T) {
	r, sched := newArmedRing()
	buf := []byte("original")

	r.Receive(eventAddr(1), buf)
	copy(buf, "mutated!")

	require.Len(t, sched.notes, 1)
	assert.Equal(t, []byte("original"), sched.notes[0].Payload())
}

func TestRingTruncatesOversizedData(t *testing.T) {
	r, sched := newArmedRing()

	r.Receive(eventAddr(1), make([]byte, limits.MaxPayload+50))
	assert.Len(t, sched.notes[0].Payload(), limits.MaxPayload)
}

func TestRingEmptyDatagram(t *testing.T) {
	r, sched := newArmedRing()

	r.Receive(eventAddr(1), nil)
	require.Len(t, sched.notes, 1)
	assert.Empty(t, sched.notes[0].Payload())
	assert.Equal(t, eventAddr(1), sched.notes[0].Sender())
}

func TestNotificationStaleAfterOvertake(t *testing.T) {
	r, sched := newArmedRing()

	r.Receive(eventAddr(0), eventPayload(0))
	first := sched.notes[0]
	assert.Equal(t, KindReceive, first.Kind())

	for i := 1; i < n; i++ {
		r.Receive(eventAddr(i), eventPayload(i))
	}
	assert.False(t, first.Stale(), "N-1 later writes do not reach the slot")
	assert.Equal(t, eventPayload(0), first.Payload())

	r.Receive(eventAddr(n), eventPayload(n))
	assert.True(t, first.Stale())
	// The notification now reads the newer datagram.
	assert.Equal(t, eventAddr(n), first.Sender())
}

func TestOverwriteCounter(t *testing.T) {
	r, sched := newArmedRing()

	for i := 0; i < n; i++ {
		r.Receive(eventAddr(i), eventPayload(i))
	}
	assert.Zero(t, r.Stats().Overwritten)

	r.Receive(eventAddr(n), eventPayload(n))
	r.Receive(eventAddr(n+1), eventPayload(n+1))
	assert.Equal(t, uint64(2), r.Stats().Overwritten)

	// A consumer that keeps up never causes overwrites.
	for _, note := range sched.notes {
		note.Release()
	}
	for i := 0; i < n; i++ {
		r.Receive(eventAddr(i), eventPayload(i))
		sched.notes[len(sched.notes)-1].Release()
	}
	assert.Equal(t, uint64(2), r.Stats().Overwritten)
	assert.Equal(t, uint64(2*n+2), r.Stats().Received)
}

func TestReleaseOfStaleNotificationKeepsNewerPending(t *testing.T) {
	r, sched := newArmedRing()

	for i := 0; i <= n; i++ {
		r.Receive(eventAddr(i), eventPayload(i))
	}
	// Releasing the overtaken notification must not mark the newer datagram
	// in slot 0 as consumed.
	sched.notes[0].Release()
	for i := 1; i < n; i++ {
		sched.notes[i].Release()
	}
	r.Receive(eventAddr(1), eventPayload(1))
	before := r.Stats().Overwritten

	for i := 2; i < n; i++ {
		r.Receive(eventAddr(i), eventPayload(i))
	}
	r.Receive(eventAddr(0), eventPayload(0))
	assert.Equal(t, before+1, r.Stats().Overwritten)
}

func TestDisarmedRingDrops(t *testing.T) {
	sched := &recordingScheduler{}
	r := NewRing(sched)
	assert.False(t, r.Armed())

	r.Receive(eventAddr(1), eventPayload(1))

	assert.Empty(t, sched.notes)
	assert.Equal(t, 0, r.Cursor())
	assert.Equal(t, Stats{Dropped: 1}, r.Stats())
}

func TestRejectedNotificationCounted(t *testing.T) {
	sched := &recordingScheduler{reject: true}
	r := NewRing(sched)
	r.Arm(true)

	for i := 0; i <= n; i++ {
		r.Receive(eventAddr(i), eventPayload(i))
	}

	stats := r.Stats()
	assert.Equal(t, uint64(n+1), stats.Dropped)
	// Unscheduled slots are free for reuse.
	assert.Zero(t, stats.Overwritten)
}

func TestReceiveDoesNotAllocate(t *testing.T) {
	sched := &countingScheduler{}
	r := NewRing(sched)
	r.Arm(true)
	src := eventAddr(9)
	data := make([]byte, limits.MaxPayload)

	allocs := testing.AllocsPerRun(200, func() {
		r.Receive(src, data)
	})
	assert.Zero(t, allocs)
	assert.Positive(t, sched.count)
}
