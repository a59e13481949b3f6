// Package limits provides centralized size limits for the nowlink datagram layer.
// This ensures consistent validation across directory, routing and receive paths.
package limits

import (
	"fmt"

	"github.com/opd-ai/nowlink/radio"
)

const (
	// MaxPayload is the largest datagram the radio transport carries (250 bytes).
	MaxPayload = 250

	// ReceiveRingSize is the number of preallocated receive slots. At most this
	// many inbound datagrams can be outstanding before the oldest is overwritten.
	ReceiveRingSize = 32

	// MaxTotalPeers is the driver peer table capacity.
	MaxTotalPeers = 20

	// MaxEncryptedPeers is how many of MaxTotalPeers may carry a local key.
	MaxEncryptedPeers = 6

	// DefaultDispatchDepth is the default capacity of the deferred dispatch queue.
	DefaultDispatchDepth = ReceiveRingSize

	// MaxDispatchDepth bounds the configurable dispatch queue capacity.
	MaxDispatchDepth = 4096
)

// ValidatePayload validates a datagram payload against MaxPayload.
// Returns an error with context including the actual and maximum sizes.
func ValidatePayload(payload []byte) error {
	if len(payload) == 0 {
		return radio.ErrPayloadEmpty
	}
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: size %d exceeds limit %d", radio.ErrPayloadTooLarge, len(payload), MaxPayload)
	}
	return nil
}

// ValidateDispatchDepth checks a configured dispatch queue capacity.
func ValidateDispatchDepth(depth int) error {
	if depth < 1 || depth > MaxDispatchDepth {
		return fmt.Errorf("%w: dispatch depth %d outside [1, %d]", radio.ErrValidation, depth, MaxDispatchDepth)
	}
	return nil
}
