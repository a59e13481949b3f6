package radio

import (
	"errors"
	"fmt"
)

// Error kinds. Wrapped errors keep their kind for errors.Is.
var (
	// ErrValidation is the parent of every malformed-input error.
	ErrValidation = errors.New("invalid argument")

	// ErrInvalidAddress indicates a hardware address of the wrong length or form.
	ErrInvalidAddress = fmt.Errorf("%w: address", ErrValidation)

	// ErrInvalidKey indicates a key of the wrong length or form.
	ErrInvalidKey = fmt.Errorf("%w: key", ErrValidation)

	// ErrPayloadTooLarge indicates a payload longer than the datagram limit.
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ErrValidation)

	// ErrPayloadEmpty indicates a zero-length payload.
	ErrPayloadEmpty = fmt.Errorf("%w: payload empty", ErrValidation)

	// ErrNotInitialized indicates the radio has not been initialized.
	ErrNotInitialized = errors.New("radio not initialized")

	// ErrAlreadyInitialized indicates a second Init on a live context or driver.
	ErrAlreadyInitialized = errors.New("radio already initialized")

	// ErrRadioInactive indicates no radio interface is enabled.
	ErrRadioInactive = errors.New("radio interface not active")

	// ErrPeerNotFound indicates the peer is not registered.
	ErrPeerNotFound = errors.New("peer not found")

	// ErrDuplicatePeer indicates the peer is already registered.
	ErrDuplicatePeer = errors.New("peer already exists")

	// ErrCapacityExceeded indicates the driver peer table is full.
	ErrCapacityExceeded = errors.New("peer table full")

	// ErrNoPeers indicates a broadcast with no registered peers.
	ErrNoPeers = errors.New("no peers registered")

	// ErrDriverInternal is an opaque failure from the radio stack.
	ErrDriverInternal = errors.New("radio driver internal error")

	// ErrUnreachable indicates no active interface can carry the peer's traffic.
	ErrUnreachable = errors.New("peer unreachable on active interfaces")
)

// OpError attaches the failing operation and peer to an error kind.
type OpError struct {
	Op   string
	Addr *Address
	Err  error
}

func (e *OpError) Error() string {
	if e.Addr != nil {
		return fmt.Sprintf("nowlink %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("nowlink %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError wraps err for op. addr may be nil.
func NewOpError(op string, addr *Address, err error) error {
	if err == nil {
		return nil
	}
	if addr != nil {
		a := *addr
		addr = &a
	}
	return &OpError{Op: op, Addr: addr, Err: err}
}

// DriverError classifies a raw driver failure. Errors that already carry one
// of the kinds in this package are returned unchanged; anything else is
// reported as ErrDriverInternal with the original error preserved.
func DriverError(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range knownKinds {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrDriverInternal, err)
}

var knownKinds = []error{
	ErrValidation,
	ErrNotInitialized,
	ErrAlreadyInitialized,
	ErrRadioInactive,
	ErrPeerNotFound,
	ErrDuplicatePeer,
	ErrCapacityExceeded,
	ErrNoPeers,
	ErrDriverInternal,
	ErrUnreachable,
}
