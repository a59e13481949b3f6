// Package routing implements interface-aware transmission.
//
// A peer is bound to one radio interface role. When the device changes which
// roles are enabled, some peers may be bound to a role that is no longer
// active. [Resolve] decides what to do about one peer and [Router] applies
// that decision before each send:
//
//	router := routing.NewRouter(driver, dir)
//	if err := router.SendUnicast(addr, payload); err != nil {
//	    // radio.ErrRadioInactive, radio.ErrPeerNotFound,
//	    // radio.ErrPayloadTooLarge, radio.ErrDriverInternal
//	}
//
// The active set is re-read from the driver on every send. Repairs are
// written back through the peer directory as in-place interface changes.
package routing
