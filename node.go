package nowlink

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/nowlink/dispatch"
	"github.com/opd-ai/nowlink/interfaces"
	"github.com/opd-ai/nowlink/peer"
	"github.com/opd-ai/nowlink/pipeline"
	"github.com/opd-ai/nowlink/radio"
	"github.com/opd-ai/nowlink/routing"
	"github.com/sirupsen/logrus"
)

// ReceiveHandler is called for each inbound datagram. data aliases a receive
// slot and is only valid until the handler returns.
type ReceiveHandler func(src radio.Address, data []byte)

// SendHandler is called once per unicast transmission with its outcome.
type SendHandler func(dst radio.Address, success bool)

// Stats counts events on the asynchronous paths of a node.
type Stats struct {
	// Receive holds the receive ring counters.
	Receive pipeline.Stats
	// SendDropped counts send outcomes discarded because no handler was set
	// or the dispatch queue was full.
	SendDropped uint64
	// Delivered counts notifications run on the consumer goroutine.
	Delivered uint64
	// DispatchDropped counts notifications rejected by a full dispatch queue.
	DispatchDropped uint64
}

// Node is one nowlink context bound to a radio driver.
//
// Consumer-side methods are safe for concurrent use. Callbacks registered with
// OnRecv and OnSend run on whichever goroutine calls Iterate or Run.
type Node struct {
	config *interfaces.NodeConfig
	driver interfaces.RadioDriver

	// Lifecycle
	mu          sync.RWMutex
	initialized bool

	// Consumer context
	directory  *peer.Directory
	router     *routing.Router
	dispatcher *dispatch.Dispatcher

	// Callback context
	ring     *pipeline.Ring
	notifier *pipeline.SendNotifier

	recvHandler atomic.Pointer[ReceiveHandler]
	sendHandler atomic.Pointer[SendHandler]
}

// New creates a node over driver. A nil config selects
// interfaces.DefaultNodeConfig. The node must be initialized with Init
// before use.
func New(driver interfaces.RadioDriver, config *interfaces.NodeConfig) (*Node, error) {
	if driver == nil {
		return nil, fmt.Errorf("%w: nil radio driver", radio.ErrValidation)
	}
	if config == nil {
		config = interfaces.DefaultNodeConfig()
	}
	if err := config.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"error":    err.Error(),
		}).Error("Invalid node configuration")
		return nil, err
	}

	n := &Node{
		config: config,
		driver: driver,
	}

	dispatcher, err := dispatch.New(config.DispatchQueueDepth, n.deliver)
	if err != nil {
		return nil, err
	}
	n.dispatcher = dispatcher
	n.ring = pipeline.NewRing(dispatcher)
	n.notifier = pipeline.NewSendNotifier(dispatcher)
	n.directory = peer.NewDirectory(driver, config.DefaultInterface)
	n.router = routing.NewRouter(driver, n.directory)

	logrus.WithFields(logrus.Fields{
		"function":          "New",
		"dispatch_depth":    config.DispatchQueueDepth,
		"default_interface": config.DefaultInterface.String(),
	}).Debug("Node created")
	return n, nil
}

// Init brings up the radio and installs the receive and send callbacks.
// It fails with radio.ErrAlreadyInitialized if this node, or another node
// over the same driver, is already initialized.
func (n *Node) Init() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.initialized {
		return radio.NewOpError("init", nil, radio.ErrAlreadyInitialized)
	}
	if !bindDriver(n.driver, n) {
		logrus.WithFields(logrus.Fields{
			"function": "Node.Init",
		}).Warn("Radio driver already bound to another node")
		return radio.NewOpError("init", nil, radio.ErrAlreadyInitialized)
	}

	if err := n.driver.Init(); err != nil {
		unbindDriver(n.driver, n)
		logrus.WithFields(logrus.Fields{
			"function": "Node.Init",
			"error":    err.Error(),
		}).Error("Radio driver init failed")
		return radio.NewOpError("init", nil, radio.DriverError(err))
	}

	if err := n.installCallbacks(); err != nil {
		_ = n.driver.Deinit()
		unbindDriver(n.driver, n)
		return radio.NewOpError("init", nil, radio.DriverError(err))
	}

	n.initialized = true
	logrus.WithFields(logrus.Fields{
		"function": "Node.Init",
	}).Info("Node initialized")
	return nil
}

func (n *Node) installCallbacks() error {
	if err := n.driver.RegisterReceiveCallback(n.ring.Receive); err != nil {
		return err
	}
	return n.driver.RegisterSendCallback(n.notifier.Notify)
}

// Deinit shuts the radio down and discards notifications not yet run.
// Registered handlers are kept for a later Init. Deinit on a node that is
// not initialized does nothing.
func (n *Node) Deinit() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return nil
	}
	if err := n.driver.Deinit(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Node.Deinit",
			"error":    err.Error(),
		}).Error("Radio driver deinit failed")
		return radio.NewOpError("deinit", nil, radio.DriverError(err))
	}

	discarded := n.dispatcher.Discard()
	unbindDriver(n.driver, n)
	n.initialized = false

	logrus.WithFields(logrus.Fields{
		"function":  "Node.Deinit",
		"discarded": discarded,
	}).Info("Node deinitialized")
	return nil
}

// Initialized reports whether Init has succeeded and Deinit has not run since.
func (n *Node) Initialized() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.initialized
}

// ready must be called with n.mu held.
func (n *Node) ready(op string, addr *radio.Address) error {
	if !n.initialized {
		return radio.NewOpError(op, addr, radio.ErrNotInitialized)
	}
	return nil
}

// SetPrimaryKey sets the primary master key used to protect local keys.
func (n *Node) SetPrimaryKey(key radio.Key) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if err := n.ready("pmk", nil); err != nil {
		return err
	}
	if err := n.driver.SetPrimaryKey(key); err != nil {
		return radio.NewOpError("pmk", nil, radio.DriverError(err))
	}
	return nil
}

// SetLocalKey sets or clears the local master key of a registered peer. A
// nil key disables encryption for the peer.
func (n *Node) SetLocalKey(addr radio.Address, key *radio.Key) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if err := n.ready("lmk", &addr); err != nil {
		return err
	}
	return n.directory.SetLocalKey(addr, key)
}

// AddPeer registers addr. A non-nil key enables encryption for it.
func (n *Node) AddPeer(addr radio.Address, key *radio.Key) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if err := n.ready("add_peer", &addr); err != nil {
		return err
	}
	return n.directory.Add(addr, key)
}

// DelPeer removes addr.
func (n *Node) DelPeer(addr radio.Address) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if err := n.ready("del_peer", &addr); err != nil {
		return err
	}
	return n.directory.Remove(addr)
}

// Peer returns the registered record for addr.
func (n *Node) Peer(addr radio.Address) (radio.PeerInfo, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if err := n.ready("get_peer", &addr); err != nil {
		return radio.PeerInfo{}, err
	}
	return n.directory.Get(addr)
}

// Peers returns every registered peer.
func (n *Node) Peers() ([]radio.PeerInfo, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if err := n.ready("peers", nil); err != nil {
		return nil, err
	}
	return n.directory.All()
}

// Send transmits payload to addr. Sending to radio.BroadcastAddress is the
// same as Broadcast. A nil error means the driver accepted the frame; the
// outcome is reported later to the send handler.
func (n *Node) Send(addr radio.Address, payload []byte) error {
	if addr.IsBroadcast() {
		return n.Broadcast(payload)
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if err := n.ready("send", &addr); err != nil {
		return err
	}
	return n.router.SendUnicast(addr, payload)
}

// Broadcast transmits payload to every registered peer.
func (n *Node) Broadcast(payload []byte) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if err := n.ready("broadcast", nil); err != nil {
		return err
	}
	return n.router.SendBroadcast(payload)
}

// OnRecv sets the receive handler, replacing any previous one. A nil handler
// stops capture: inbound datagrams are then dropped by the driver callback.
func (n *Node) OnRecv(handler ReceiveHandler) {
	if handler == nil {
		n.recvHandler.Store(nil)
		n.ring.Arm(false)
		return
	}
	n.recvHandler.Store(&handler)
	n.ring.Arm(true)
}

// RecvCallback returns the current receive handler, or nil.
func (n *Node) RecvCallback() ReceiveHandler {
	if h := n.recvHandler.Load(); h != nil {
		return *h
	}
	return nil
}

// OnSend sets the send handler, replacing any previous one. With no handler,
// send outcomes are dropped.
func (n *Node) OnSend(handler SendHandler) {
	if handler == nil {
		n.sendHandler.Store(nil)
		n.notifier.Arm(false)
		return
	}
	n.sendHandler.Store(&handler)
	n.notifier.Arm(true)
}

// SendCallback returns the current send handler, or nil.
func (n *Node) SendCallback() SendHandler {
	if h := n.sendHandler.Load(); h != nil {
		return *h
	}
	return nil
}

// PeerCount returns the number of registered peers and how many of them are
// encrypted.
func (n *Node) PeerCount() (radio.PeerCount, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if err := n.ready("peer_count", nil); err != nil {
		return radio.PeerCount{}, err
	}
	return n.directory.Count()
}

// Version returns the radio protocol version.
func (n *Node) Version() (uint32, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if err := n.ready("version", nil); err != nil {
		return 0, err
	}
	v, err := n.driver.Version()
	if err != nil {
		return 0, radio.NewOpError("version", nil, radio.DriverError(err))
	}
	return v, nil
}

// Iterate runs the handlers for every notification queued so far and returns
// how many ran. It never blocks.
func (n *Node) Iterate() int {
	return n.dispatcher.Iterate()
}

// Run runs handlers as notifications arrive until ctx is done. It must not be
// used together with Iterate.
func (n *Node) Run(ctx context.Context) error {
	return n.dispatcher.Run(ctx)
}

// Stats returns a snapshot of the asynchronous path counters.
func (n *Node) Stats() Stats {
	return Stats{
		Receive:         n.ring.Stats(),
		SendDropped:     n.notifier.Dropped(),
		Delivered:       n.dispatcher.Delivered(),
		DispatchDropped: n.dispatcher.Dropped(),
	}
}

// deliver runs on the consumer goroutine.
func (n *Node) deliver(note pipeline.Notification) {
	switch note.Kind() {
	case pipeline.KindReceive:
		h := n.recvHandler.Load()
		if h == nil {
			return
		}
		if note.Stale() {
			logrus.WithFields(logrus.Fields{
				"function": "Node.deliver",
			}).Debug("Receive slot overwritten before delivery")
		}
		(*h)(note.Sender(), note.Payload())
	case pipeline.KindSend:
		h := n.sendHandler.Load()
		if h == nil {
			return
		}
		out := note.Outcome()
		(*h)(out.Addr, out.Success)
	}
}
