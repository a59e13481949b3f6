// Package radio defines the value types shared by every layer of nowlink:
// hardware addresses, link keys, radio interface roles, peer records, and the
// error taxonomy returned by directory, routing and driver operations.
//
// # Addresses and Keys
//
// [Address] is a fixed 6-byte hardware address. [ParseAddress] accepts the
// usual colon or dash separated hex form and [NewAddress] accepts raw bytes:
//
//	addr, err := radio.ParseAddress("AA:BB:CC:DD:EE:FF")
//	if err != nil {
//	    // errors.Is(err, radio.ErrInvalidAddress)
//	}
//
// [Key] is a fixed 16-byte link secret used both as the primary master key and
// as per-peer local keys.
//
// # Interface Roles
//
// A peer is bound to one [Interface] role (station or access point). The
// device's currently enabled roles are reported as an [InterfaceSet] bitmask.
//
// # Errors
//
// Every fallible operation in nowlink returns one of the sentinel errors in
// this package, possibly wrapped in an [*OpError] carrying the operation and
// peer address. Match them with errors.Is:
//
//	if errors.Is(err, radio.ErrRadioInactive) {
//	    // enable an interface and retry
//	}
//
// Validation failures additionally match [ErrValidation].
package radio
