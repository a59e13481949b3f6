// Package limits provides centralized size constants and validation functions
// for nowlink.
//
// # Size Limits
//
//   - MaxPayload (250 bytes): the transport's maximum datagram length. Longer
//     payloads are rejected before the driver is touched; the layer does not
//     fragment.
//
//   - ReceiveRingSize (32): the number of receive slots preallocated at
//     startup. It bounds how many inbound datagrams may be outstanding.
//
//   - MaxTotalPeers (20) and MaxEncryptedPeers (6): the driver's peer table
//     capacity. The driver enforces them; they are exported for simulators and
//     tests.
//
// # Validation Functions
//
//	if err := limits.ValidatePayload(payload); err != nil {
//	    // radio.ErrPayloadEmpty or radio.ErrPayloadTooLarge,
//	    // both matching radio.ErrValidation
//	}
package limits
