package interfaces

import (
	"fmt"

	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/radio"
)

// ReceiveFunc is invoked by the driver from its callback context once per
// inbound datagram. data is only valid for the duration of the call.
type ReceiveFunc func(src radio.Address, data []byte)

// SendCompleteFunc is invoked by the driver from its callback context once per
// unicast transmission attempt.
type SendCompleteFunc func(dst radio.Address, success bool)

// RadioDriver is the boundary to the connectionless radio driver. All methods
// except the registered callbacks are synchronous and are called from the
// consumer context only.
type RadioDriver interface {
	// Init brings the driver up. Calling Init on a live driver fails with
	// radio.ErrAlreadyInitialized.
	Init() error

	// Deinit shuts the driver down and drops its peer table.
	Deinit() error

	// RegisterReceiveCallback installs the inbound datagram callback.
	RegisterReceiveCallback(cb ReceiveFunc) error

	// RegisterSendCallback installs the transmission completion callback.
	RegisterSendCallback(cb SendCompleteFunc) error

	// SetPrimaryKey sets the primary master key used to protect local keys.
	SetPrimaryKey(key radio.Key) error

	// AddPeer adds a peer record. Fails with radio.ErrDuplicatePeer or
	// radio.ErrCapacityExceeded.
	AddPeer(info radio.PeerInfo) error

	// RemovePeer deletes a peer record. Fails with radio.ErrPeerNotFound.
	RemovePeer(addr radio.Address) error

	// ModifyPeer updates a peer record in place. Changing Encrypt through
	// ModifyPeer is not supported by the driver.
	ModifyPeer(info radio.PeerInfo) error

	// GetPeer returns the record for addr or radio.ErrPeerNotFound.
	GetPeer(addr radio.Address) (radio.PeerInfo, error)

	// FetchPeer iterates the peer table. fromHead restarts the iteration.
	// It returns radio.ErrPeerNotFound when the table is exhausted.
	FetchPeer(fromHead bool) (radio.PeerInfo, error)

	// Send hands a datagram to the radio. Completion is reported through the
	// send callback.
	Send(dst radio.Address, payload []byte) error

	// PeerCount reports total and encrypted peers.
	PeerCount() (radio.PeerCount, error)

	// ActiveInterfaces reports the radio roles currently enabled.
	ActiveInterfaces() (radio.InterfaceSet, error)

	// Version returns the driver protocol version.
	Version() (uint32, error)
}

// NodeConfig holds configuration for a nowlink node.
type NodeConfig struct {
	// UseSimulation selects the in-memory simulated radio in the factory.
	UseSimulation bool

	// DispatchQueueDepth is the capacity of the deferred dispatch queue.
	DispatchQueueDepth int

	// DefaultInterface is the role newly added peers are bound to.
	DefaultInterface radio.Interface
}

// DefaultNodeConfig returns the default configuration.
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		UseSimulation:      false,
		DispatchQueueDepth: limits.DefaultDispatchDepth,
		DefaultInterface:   radio.InterfaceStation,
	}
}

// Validate checks that the configuration values are within valid ranges.
func (c *NodeConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil node config", radio.ErrValidation)
	}
	if err := limits.ValidateDispatchDepth(c.DispatchQueueDepth); err != nil {
		return err
	}
	if !c.DefaultInterface.Valid() {
		return fmt.Errorf("%w: default interface %s", radio.ErrValidation, c.DefaultInterface)
	}
	return nil
}
