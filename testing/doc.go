// Package testing provides an in-memory radio medium for deterministic testing
// of nowlink without radio hardware.
//
// # Overview
//
// [Air] models the shared radio channel. Each [SimulatedRadio] attached to it
// implements interfaces.RadioDriver and behaves like an ESP-NOW driver:
//
//   - a bounded peer table (limits.MaxTotalPeers, limits.MaxEncryptedPeers)
//   - frames are only accepted for registered peers whose interface role is
//     currently active; anything else is rejected as radio.ErrUnreachable
//   - frames to encrypted peers are sealed on the air with a key derived from
//     the sender's primary key and the peer's local key; a receiver without
//     the matching keys silently drops them
//   - changing a peer's encryption flag through ModifyPeer is refused and
//     marks the radio as corrupted, so tests can prove callers never do it
//
// Callbacks run on one goroutine per radio, which plays the role of the
// driver's callback context.
//
// # Usage
//
//	air := testing.NewAir()
//	a := air.NewRadio(radio.MustParseAddress("AA:AA:AA:AA:AA:AA"))
//	b := air.NewRadio(radio.MustParseAddress("BB:BB:BB:BB:BB:BB"))
//	a.SetActiveInterfaces(radio.StationOnly)
//
// # Verification
//
// [SimulatedRadio.Operations] returns the driver operations performed so far
// and [SimulatedRadio.Generation] returns a per-record marker that changes on
// every AddPeer, which lets tests distinguish in-place modification from
// delete and re-add.
package testing
