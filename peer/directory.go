package peer

import (
	"errors"
	"sync"

	"github.com/opd-ai/nowlink/interfaces"
	"github.com/opd-ai/nowlink/radio"
	"github.com/sirupsen/logrus"
)

// Directory is the logical view of the registered peers. Records are stored
// by the radio driver; Directory owns the rules for mutating them.
//
// Directory is safe for concurrent use. All methods are serialized by an
// internal mutex.
type Directory struct {
	driver           interfaces.RadioDriver
	defaultInterface radio.Interface
	mu               sync.Mutex
}

// NewDirectory creates a directory over driver. New peers are bound to
// defaultInterface.
func NewDirectory(driver interfaces.RadioDriver, defaultInterface radio.Interface) *Directory {
	return &Directory{
		driver:           driver,
		defaultInterface: defaultInterface,
	}
}

// Add registers addr. A non-nil key enables encryption for the peer.
func (d *Directory) Add(addr radio.Address, key *radio.Key) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	info := radio.NewPeerInfo(addr, key, d.defaultInterface)
	if err := d.driver.AddPeer(info); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Directory.Add",
			"peer_addr": addr.String(),
			"encrypted": info.Encrypt,
			"error":     err.Error(),
		}).Warn("Failed to add peer")
		return radio.NewOpError("add_peer", &addr, radio.DriverError(err))
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Directory.Add",
		"peer_addr": addr.String(),
		"encrypted": info.Encrypt,
		"interface": info.Interface.String(),
	}).Debug("Peer added")
	return nil
}

// Remove deletes addr from the directory.
func (d *Directory) Remove(addr radio.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.driver.RemovePeer(addr); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Directory.Remove",
			"peer_addr": addr.String(),
			"error":     err.Error(),
		}).Warn("Failed to remove peer")
		return radio.NewOpError("del_peer", &addr, radio.DriverError(err))
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Directory.Remove",
		"peer_addr": addr.String(),
	}).Debug("Peer removed")
	return nil
}

// Lookup returns the record for addr.
func (d *Directory) Lookup(addr radio.Address) (radio.PeerInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, err := d.driver.GetPeer(addr)
	if err != nil {
		return radio.PeerInfo{}, false
	}
	return info, true
}

// Get is like Lookup but reports why the record is unavailable.
func (d *Directory) Get(addr radio.Address) (radio.PeerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, err := d.driver.GetPeer(addr)
	if err != nil {
		return radio.PeerInfo{}, radio.NewOpError("get_peer", &addr, radio.DriverError(err))
	}
	return info, nil
}

// SetLocalKey changes the local key of an existing peer. A nil key disables
// encryption.
//
// The driver cannot change a peer's encryption flag in place: doing so
// corrupts its state. When the flag changes the record is deleted and added
// back with the same address and interface. When it does not change the record
// is modified in place.
func (d *Directory) SetLocalKey(addr radio.Address, key *radio.Key) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, err := d.driver.GetPeer(addr)
	if err != nil {
		return radio.NewOpError("lmk", &addr, radio.DriverError(err))
	}

	prev := info
	info.SetKey(key)

	if info.Encrypt == prev.Encrypt {
		if err := d.driver.ModifyPeer(info); err != nil {
			return radio.NewOpError("lmk", &addr, radio.DriverError(err))
		}
		logrus.WithFields(logrus.Fields{
			"function":  "Directory.SetLocalKey",
			"peer_addr": addr.String(),
			"encrypted": info.Encrypt,
		}).Debug("Peer key updated in place")
		return nil
	}

	if err := d.readd(prev, info); err != nil {
		return radio.NewOpError("lmk", &addr, err)
	}
	logrus.WithFields(logrus.Fields{
		"function":  "Directory.SetLocalKey",
		"peer_addr": addr.String(),
		"encrypted": info.Encrypt,
	}).Debug("Peer re-added with new encryption state")
	return nil
}

// readd replaces prev with next through a delete and an add. If next cannot
// be added, prev is put back and the add error is returned. The peer is only
// lost when that rollback fails too.
func (d *Directory) readd(prev, next radio.PeerInfo) error {
	if err := d.driver.RemovePeer(prev.Addr); err != nil {
		return radio.DriverError(err)
	}
	err := d.driver.AddPeer(next)
	if err == nil {
		return nil
	}

	if rbErr := d.driver.AddPeer(prev); rbErr != nil {
		logrus.WithFields(logrus.Fields{
			"function":       "Directory.readd",
			"peer_addr":      prev.Addr.String(),
			"error":          err.Error(),
			"rollback_error": rbErr.Error(),
		}).Error("Peer removed but could not be re-added")
		return errors.Join(radio.DriverError(err), radio.ErrPeerNotFound)
	}
	logrus.WithFields(logrus.Fields{
		"function":  "Directory.readd",
		"peer_addr": prev.Addr.String(),
		"encrypted": prev.Encrypt,
		"error":     err.Error(),
	}).Warn("Re-add failed, previous record restored")
	return radio.DriverError(err)
}

// ReassignInterface rebinds addr to iface in place.
func (d *Directory) ReassignInterface(addr radio.Address, iface radio.Interface) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, err := d.driver.GetPeer(addr)
	if err != nil {
		return radio.NewOpError("reassign", &addr, radio.DriverError(err))
	}
	return d.reassign(info, iface)
}

// RebindInactive moves addr onto iface if its current binding is not in
// active. The record is re-read under the directory lock, so only the
// interface changes. It reports whether the record was modified.
func (d *Directory) RebindInactive(addr radio.Address, active radio.InterfaceSet, iface radio.Interface) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, err := d.driver.GetPeer(addr)
	if err != nil {
		return false, radio.NewOpError("reassign", &addr, radio.DriverError(err))
	}
	if active.Has(info.Interface) {
		return false, nil
	}
	if err := d.reassign(info, iface); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Directory) reassign(info radio.PeerInfo, iface radio.Interface) error {
	from := info.Interface
	info.Interface = iface
	if err := d.driver.ModifyPeer(info); err != nil {
		return radio.NewOpError("reassign", &info.Addr, radio.DriverError(err))
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Directory.reassign",
		"peer_addr": info.Addr.String(),
		"from":      from.String(),
		"to":        iface.String(),
	}).Debug("Peer interface reassigned")
	return nil
}

// All returns a snapshot of every registered peer. The order is whatever the
// driver iterates in.
func (d *Directory) All() ([]radio.PeerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var peers []radio.PeerInfo
	info, err := d.driver.FetchPeer(true)
	for err == nil {
		peers = append(peers, info)
		info, err = d.driver.FetchPeer(false)
	}
	if !errors.Is(err, radio.ErrPeerNotFound) {
		return nil, radio.NewOpError("fetch_peer", nil, radio.DriverError(err))
	}
	return peers, nil
}

// Count reports total and encrypted peers.
func (d *Directory) Count() (radio.PeerCount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	count, err := d.driver.PeerCount()
	if err != nil {
		return radio.PeerCount{}, radio.NewOpError("peer_count", nil, radio.DriverError(err))
	}
	return count, nil
}
