package testing

import (
	"sync"

	"github.com/opd-ai/nowlink/radio"
	"github.com/sirupsen/logrus"
)

// Air is a shared in-memory radio channel.
type Air struct {
	mu     sync.RWMutex
	radios map[radio.Address]*SimulatedRadio
}

// NewAir creates an empty channel.
func NewAir() *Air {
	return &Air{
		radios: make(map[radio.Address]*SimulatedRadio),
	}
}

// NewRadio attaches a new radio with hardware address addr. Attaching a
// second radio with the same address replaces the first.
func (a *Air) NewRadio(addr radio.Address) *SimulatedRadio {
	r := newSimulatedRadio(a, addr)

	a.mu.Lock()
	a.radios[addr] = r
	count := len(a.radios)
	a.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "Air.NewRadio",
		"radio_addr":  addr.String(),
		"radio_count": count,
	}).Debug("Simulated radio attached")
	return r
}

// Detach removes the radio with address addr from the channel.
func (a *Air) Detach(addr radio.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.radios, addr)
}

// Radio returns the radio attached with address addr.
func (a *Air) Radio(addr radio.Address) (*SimulatedRadio, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.radios[addr]
	return r, ok
}

// transmit delivers f to its destination, or to every other radio for the
// broadcast address. It reports whether at least one live radio accepted it.
func (a *Air) transmit(f frame) bool {
	a.mu.RLock()
	var targets []*SimulatedRadio
	if f.dst.IsBroadcast() {
		for addr, r := range a.radios {
			if addr != f.src {
				targets = append(targets, r)
			}
		}
	} else if r, ok := a.radios[f.dst]; ok {
		targets = append(targets, r)
	}
	a.mu.RUnlock()

	delivered := false
	for _, r := range targets {
		if r.enqueue(event{kind: eventReceive, frame: f}) {
			delivered = true
		}
	}
	return delivered
}
