// Package interfaces defines the boundary between nowlink and the radio driver
// it runs on, together with node configuration.
//
// # Driver Boundary
//
// [RadioDriver] mirrors the connectionless peer API of ESP-NOW style radios:
// lifecycle (Init/Deinit), callback registration, peer table operations
// (AddPeer, RemovePeer, ModifyPeer, GetPeer, FetchPeer), Send, PeerCount,
// ActiveInterfaces and Version.
//
// The two registered callbacks, [ReceiveFunc] and [SendCompleteFunc], fire on
// the driver's callback context. Implementations may call them from any
// goroutine, but receive callbacks for one driver must never overlap:
// nowlink's receive pipeline relies on a single producer. Send callbacks may
// run on a different goroutine from receive callbacks.
//
// Every other method is called only from the consumer context and is expected
// to be synchronous.
//
// # Implementations
//
// The testing package provides SimulatedRadio, an in-memory implementation
// with link-layer encryption, peer table capacity and interface mismatch
// behaviour matching real hardware. The real package provides UDPRadio, which
// carries the same frames over UDP between hosts. Hardware drivers live
// outside this module.
//
// # Configuration
//
// [NodeConfig] holds node settings:
//
//	cfg := interfaces.DefaultNodeConfig()
//	cfg.DispatchQueueDepth = 64
//	if err := cfg.Validate(); err != nil {
//	    log.Fatalf("invalid config: %v", err)
//	}
//
// The factory package builds a NodeConfig from defaults and NOWLINK_*
// environment variables.
//
// # Error Handling
//
// Drivers should return the sentinel kinds from the radio package
// (radio.ErrPeerNotFound, radio.ErrDuplicatePeer, radio.ErrCapacityExceeded,
// radio.ErrNotInitialized). Anything else is classified as
// radio.ErrDriverInternal by radio.DriverError.
package interfaces
