package scenario

import (
	"errors"

	"github.com/opd-ai/nowlink/radio"
)

// errorKinds is ordered most specific first.
var errorKinds = []struct {
	name string
	err  error
}{
	{"payload_too_large", radio.ErrPayloadTooLarge},
	{"payload_empty", radio.ErrPayloadEmpty},
	{"invalid_address", radio.ErrInvalidAddress},
	{"invalid_key", radio.ErrInvalidKey},
	{"validation", radio.ErrValidation},
	{"not_initialized", radio.ErrNotInitialized},
	{"already_initialized", radio.ErrAlreadyInitialized},
	{"radio_inactive", radio.ErrRadioInactive},
	{"peer_not_found", radio.ErrPeerNotFound},
	{"duplicate_peer", radio.ErrDuplicatePeer},
	{"capacity_exceeded", radio.ErrCapacityExceeded},
	{"no_peers", radio.ErrNoPeers},
	{"unreachable", radio.ErrUnreachable},
	{"driver_internal", radio.ErrDriverInternal},
}

// ErrorKind names the kind of err, "" for nil and "unknown" for errors
// outside the nowlink taxonomy.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}

// matchesKind reports whether err is of the named kind. Parent kinds match
// their children, so "validation" matches a too-large payload.
func matchesKind(err error, name string) bool {
	for _, k := range errorKinds {
		if k.name == name {
			return errors.Is(err, k.err)
		}
	}
	return false
}

func knownErrorKind(name string) bool {
	for _, k := range errorKinds {
		if k.name == name {
			return true
		}
	}
	return false
}
