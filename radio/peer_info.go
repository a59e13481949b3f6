package radio

// PeerInfo is the driver-level peer record.
//
// Encrypt is true iff Key holds a local key for the peer.
type PeerInfo struct {
	Addr      Address
	Key       Key
	Encrypt   bool
	Interface Interface
}

// PeerCount reports the number of peers held by the driver.
type PeerCount struct {
	Total     int
	Encrypted int
}

// NewPeerInfo builds a record for addr bound to iface. A nil key yields an
// unencrypted record.
func NewPeerInfo(addr Address, key *Key, iface Interface) PeerInfo {
	p := PeerInfo{Addr: addr, Interface: iface}
	if key != nil {
		p.Key = *key
		p.Encrypt = true
	}
	return p
}

// SetKey applies the local key to the record, clearing the stored key when
// key is nil.
func (p *PeerInfo) SetKey(key *Key) {
	if key == nil {
		p.Key.Wipe()
		p.Encrypt = false
		return
	}
	p.Key = *key
	p.Encrypt = true
}
