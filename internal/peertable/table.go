// Package peertable holds the bounded peer table shared by the radio drivers.
// A Table is not safe for concurrent use; drivers guard it with their own
// lock.
package peertable

import (
	"fmt"

	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/radio"
)

// ErrEncryptionChange is returned by Modify when the record's encryption flag
// would change in place.
var ErrEncryptionChange = fmt.Errorf("%w: encryption flag changed in place", radio.ErrDriverInternal)

type entry struct {
	info       radio.PeerInfo
	generation uint64
}

// Table is an ordered peer table capped at limits.MaxTotalPeers records, of
// which at most limits.MaxEncryptedPeers are encrypted.
type Table struct {
	entries    []*entry
	fetchIndex int
	generation uint64
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

func (t *Table) find(addr radio.Address) int {
	for i, e := range t.entries {
		if e.info.Addr == addr {
			return i
		}
	}
	return -1
}

// Add appends info.
func (t *Table) Add(info radio.PeerInfo) error {
	if !info.Interface.Valid() {
		return fmt.Errorf("%w: interface %s", radio.ErrValidation, info.Interface)
	}
	if t.find(info.Addr) >= 0 {
		return radio.ErrDuplicatePeer
	}
	count := t.Count()
	if count.Total >= limits.MaxTotalPeers {
		return radio.ErrCapacityExceeded
	}
	if info.Encrypt && count.Encrypted >= limits.MaxEncryptedPeers {
		return radio.ErrCapacityExceeded
	}

	t.generation++
	t.entries = append(t.entries, &entry{info: info, generation: t.generation})
	return nil
}

// Remove deletes addr and wipes its key. The returned record has no key.
func (t *Table) Remove(addr radio.Address) (radio.PeerInfo, error) {
	i := t.find(addr)
	if i < 0 {
		return radio.PeerInfo{}, radio.ErrPeerNotFound
	}
	removed := t.entries[i]
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	if t.fetchIndex > i {
		t.fetchIndex--
	}

	out := removed.info
	out.Key = radio.Key{}
	removed.info.Key.Wipe()
	return out, nil
}

// Modify replaces the record for info.Addr, keeping its position and
// generation.
func (t *Table) Modify(info radio.PeerInfo) error {
	if !info.Interface.Valid() {
		return fmt.Errorf("%w: interface %s", radio.ErrValidation, info.Interface)
	}
	i := t.find(info.Addr)
	if i < 0 {
		return radio.ErrPeerNotFound
	}
	if t.entries[i].info.Encrypt != info.Encrypt {
		return ErrEncryptionChange
	}
	t.entries[i].info = info
	return nil
}

// Get returns the record for addr.
func (t *Table) Get(addr radio.Address) (radio.PeerInfo, bool) {
	i := t.find(addr)
	if i < 0 {
		return radio.PeerInfo{}, false
	}
	return t.entries[i].info, true
}

// Fetch walks the table in insertion order. fromHead restarts the walk.
func (t *Table) Fetch(fromHead bool) (radio.PeerInfo, error) {
	if fromHead {
		t.fetchIndex = 0
	}
	if t.fetchIndex >= len(t.entries) {
		return radio.PeerInfo{}, radio.ErrPeerNotFound
	}
	info := t.entries[t.fetchIndex].info
	t.fetchIndex++
	return info, nil
}

// Count reports total and encrypted records.
func (t *Table) Count() radio.PeerCount {
	count := radio.PeerCount{Total: len(t.entries)}
	for _, e := range t.entries {
		if e.info.Encrypt {
			count.Encrypted++
		}
	}
	return count
}

// Generation returns the add marker of addr's record. It changes on every
// Add and is untouched by Modify.
func (t *Table) Generation(addr radio.Address) (uint64, bool) {
	i := t.find(addr)
	if i < 0 {
		return 0, false
	}
	return t.entries[i].generation, true
}

// Reset wipes every key and empties the table.
func (t *Table) Reset() {
	for _, e := range t.entries {
		e.info.Key.Wipe()
	}
	t.entries = nil
	t.fetchIndex = 0
}
