// Package factory creates nowlink nodes from a shared configuration.
//
// The factory hides whether a node runs over a real radio driver or over
// the in-memory simulated radio, so callers and tests build nodes the same
// way in both modes.
//
// # Configuration
//
// Defaults come from interfaces.DefaultNodeConfig and may be overridden by
// environment variables:
//   - NOWLINK_USE_SIMULATION: "true" or "false" to enable simulation mode
//   - NOWLINK_DISPATCH_DEPTH: capacity of the deferred dispatch queue
//   - NOWLINK_DEFAULT_INTERFACE: "sta" or "ap", the role new peers are bound to
//
// Values that fail to parse or fall outside their bounds are logged and
// ignored.
//
// # Usage
//
//	f := factory.NewNodeFactory()
//	node, err := f.CreateNode(driver)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// In simulation mode a nil driver is allowed; the factory attaches a new
// simulated radio to its own channel:
//
//	f.SwitchToSimulation()
//	node, err := f.CreateNode(nil)
//
// Tests that need several nodes on one channel use CreateSimulatedNode:
//
//	air := simradio.NewAir()
//	a, radioA, err := f.CreateSimulatedNode(air, addrA)
//	b, radioB, err := f.CreateSimulatedNode(air, addrB, factory.WithDispatchDepth(128))
//
// CreateUDPNode builds a node over a real.UDPRadio:
//
//	cfg := real.DefaultConfig()
//	cfg.Address = addr
//	node, udp, err := f.CreateUDPNode(cfg)
package factory
