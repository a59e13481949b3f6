// Package peer implements the peer directory: the authority for which remote
// radios are registered, which interface role each is bound to, and whether
// traffic to it is encrypted.
//
// Records are stored by the radio driver. The directory adds the rules the
// driver does not enforce itself, most importantly that a peer's encryption
// flag is never toggled through an in-place modify:
//
//	dir := peer.NewDirectory(driver, radio.InterfaceStation)
//	if err := dir.Add(addr, nil); err != nil {
//	    // radio.ErrDuplicatePeer, radio.ErrCapacityExceeded
//	}
//	// Enabling encryption deletes and re-adds the record.
//	err := dir.SetLocalKey(addr, &key)
package peer
