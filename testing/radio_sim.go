package testing

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/nowlink/interfaces"
	"github.com/opd-ai/nowlink/internal/linkcrypto"
	"github.com/opd-ai/nowlink/internal/peertable"
	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/radio"
	"github.com/sirupsen/logrus"
)

// SimulatedVersion is the protocol version reported by SimulatedRadio.
const SimulatedVersion uint32 = 1

// eventQueueDepth bounds the per-radio callback queue. Frames arriving while
// it is full are lost, as they would be on air.
const eventQueueDepth = 256

// ErrInterfaceMismatch is returned by Send when the peer's interface role is
// not active.
var ErrInterfaceMismatch = fmt.Errorf("%w: peer interface not active", radio.ErrUnreachable)

// OpKind identifies a recorded driver operation.
type OpKind int

const (
	OpAdd OpKind = iota
	OpRemove
	OpModify
	OpSend
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpModify:
		return "modify"
	case OpSend:
		return "send"
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Operation is a driver operation recorded for test verification.
type Operation struct {
	Kind      OpKind
	Addr      radio.Address
	Interface radio.Interface
	Encrypt   bool
	Size      int
}

type eventKind int

const (
	eventReceive eventKind = iota
	eventSendDone
)

type frame struct {
	src, dst radio.Address
	data     []byte
	nonce    []byte
	sealed   bool
}

type event struct {
	kind    eventKind
	frame   frame
	success bool
}

// SimulatedRadio is an in-memory interfaces.RadioDriver.
type SimulatedRadio struct {
	addr radio.Address
	air  *Air

	mu          sync.Mutex
	initialized bool
	active      radio.InterfaceSet
	pmk         radio.Key
	peers       *peertable.Table
	corrupted   bool
	ops         []Operation
	sendErr     error

	recvCb interfaces.ReceiveFunc
	sendCb interfaces.SendCompleteFunc

	events chan event
	done   chan struct{}
	wg     sync.WaitGroup
}

func newSimulatedRadio(air *Air, addr radio.Address) *SimulatedRadio {
	return &SimulatedRadio{
		addr:  addr,
		air:   air,
		peers: peertable.New(),
	}
}

// Address returns the radio's own hardware address.
func (r *SimulatedRadio) Address() radio.Address {
	return r.addr
}

// Init implements interfaces.RadioDriver.
func (r *SimulatedRadio) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return radio.ErrAlreadyInitialized
	}
	r.initialized = true
	r.events = make(chan event, eventQueueDepth)
	r.done = make(chan struct{})

	r.wg.Add(1)
	go r.callbackLoop(r.events, r.done)

	logrus.WithFields(logrus.Fields{
		"function":   "SimulatedRadio.Init",
		"radio_addr": r.addr.String(),
	}).Debug("Simulated radio initialized")
	return nil
}

// Deinit implements interfaces.RadioDriver. The peer table is dropped and
// local keys are wiped.
func (r *SimulatedRadio) Deinit() error {
	r.mu.Lock()
	if !r.initialized {
		r.mu.Unlock()
		return radio.ErrNotInitialized
	}
	r.initialized = false
	close(r.done)
	r.peers.Reset()
	r.recvCb = nil
	r.sendCb = nil
	r.mu.Unlock()

	r.wg.Wait()

	logrus.WithFields(logrus.Fields{
		"function":   "SimulatedRadio.Deinit",
		"radio_addr": r.addr.String(),
	}).Debug("Simulated radio deinitialized")
	return nil
}

// RegisterReceiveCallback implements interfaces.RadioDriver.
func (r *SimulatedRadio) RegisterReceiveCallback(cb interfaces.ReceiveFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.ErrNotInitialized
	}
	r.recvCb = cb
	return nil
}

// RegisterSendCallback implements interfaces.RadioDriver.
func (r *SimulatedRadio) RegisterSendCallback(cb interfaces.SendCompleteFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.ErrNotInitialized
	}
	r.sendCb = cb
	return nil
}

// SetPrimaryKey implements interfaces.RadioDriver.
func (r *SimulatedRadio) SetPrimaryKey(key radio.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.ErrNotInitialized
	}
	r.pmk = key
	return nil
}

// AddPeer implements interfaces.RadioDriver.
func (r *SimulatedRadio) AddPeer(info radio.PeerInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return radio.ErrNotInitialized
	}
	if err := r.peers.Add(info); err != nil {
		return err
	}
	r.record(Operation{Kind: OpAdd, Addr: info.Addr, Interface: info.Interface, Encrypt: info.Encrypt})
	return nil
}

// RemovePeer implements interfaces.RadioDriver.
func (r *SimulatedRadio) RemovePeer(addr radio.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return radio.ErrNotInitialized
	}
	removed, err := r.peers.Remove(addr)
	if err != nil {
		return err
	}
	r.record(Operation{Kind: OpRemove, Addr: addr, Interface: removed.Interface, Encrypt: removed.Encrypt})
	return nil
}

// ModifyPeer implements interfaces.RadioDriver. Changing the encryption flag
// is refused and marks the radio corrupted.
func (r *SimulatedRadio) ModifyPeer(info radio.PeerInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return radio.ErrNotInitialized
	}
	if err := r.peers.Modify(info); err != nil {
		if !errors.Is(err, peertable.ErrEncryptionChange) {
			return err
		}
		r.corrupted = true
		logrus.WithFields(logrus.Fields{
			"function":  "SimulatedRadio.ModifyPeer",
			"peer_addr": info.Addr.String(),
		}).Error("Encryption flag changed in place, driver state corrupted")
		return err
	}
	r.record(Operation{Kind: OpModify, Addr: info.Addr, Interface: info.Interface, Encrypt: info.Encrypt})
	return nil
}

// GetPeer implements interfaces.RadioDriver.
func (r *SimulatedRadio) GetPeer(addr radio.Address) (radio.PeerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return radio.PeerInfo{}, radio.ErrNotInitialized
	}
	info, ok := r.peers.Get(addr)
	if !ok {
		return radio.PeerInfo{}, radio.ErrPeerNotFound
	}
	return info, nil
}

// FetchPeer implements interfaces.RadioDriver.
func (r *SimulatedRadio) FetchPeer(fromHead bool) (radio.PeerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return radio.PeerInfo{}, radio.ErrNotInitialized
	}
	return r.peers.Fetch(fromHead)
}

// Send implements interfaces.RadioDriver. Delivery and completion are
// reported asynchronously on the callback goroutines.
func (r *SimulatedRadio) Send(dst radio.Address, payload []byte) error {
	f, err := r.prepareFrame(dst, payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "SimulatedRadio.Send",
			"peer_addr": dst.String(),
			"error":     err.Error(),
		}).Debug("Simulated send rejected")
		return err
	}

	delivered := r.air.transmit(f)
	r.enqueue(event{kind: eventSendDone, frame: frame{src: r.addr, dst: dst}, success: delivered})
	return nil
}

func (r *SimulatedRadio) prepareFrame(dst radio.Address, payload []byte) (frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return frame{}, radio.ErrNotInitialized
	}
	if r.sendErr != nil {
		return frame{}, r.sendErr
	}
	if err := limits.ValidatePayload(payload); err != nil {
		return frame{}, err
	}
	p, ok := r.peers.Get(dst)
	if !ok {
		return frame{}, radio.ErrPeerNotFound
	}
	if !r.active.Has(p.Interface) {
		return frame{}, ErrInterfaceMismatch
	}

	f := frame{src: r.addr, dst: dst, data: append([]byte(nil), payload...)}
	if p.Encrypt {
		nonce, sealed, err := linkcrypto.Seal(r.pmk, p.Key, r.addr, dst, payload)
		if err != nil {
			return frame{}, fmt.Errorf("%w: %v", radio.ErrDriverInternal, err)
		}
		f.data, f.nonce, f.sealed = sealed, nonce, true
	}
	r.record(Operation{Kind: OpSend, Addr: dst, Interface: p.Interface, Encrypt: p.Encrypt, Size: len(payload)})
	return f, nil
}

// PeerCount implements interfaces.RadioDriver.
func (r *SimulatedRadio) PeerCount() (radio.PeerCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return radio.PeerCount{}, radio.ErrNotInitialized
	}
	return r.peers.Count(), nil
}

// ActiveInterfaces implements interfaces.RadioDriver.
func (r *SimulatedRadio) ActiveInterfaces() (radio.InterfaceSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, nil
}

// Version implements interfaces.RadioDriver.
func (r *SimulatedRadio) Version() (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return 0, radio.ErrNotInitialized
	}
	return SimulatedVersion, nil
}

// SetActiveInterfaces sets the roles reported by ActiveInterfaces.
func (r *SimulatedRadio) SetActiveInterfaces(set radio.InterfaceSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = set
}

// FailSends makes every subsequent Send fail with err. A nil err restores
// normal operation.
func (r *SimulatedRadio) FailSends(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendErr = err
}

// Generation returns the add marker of addr's record. It changes on every
// AddPeer and is untouched by ModifyPeer.
func (r *SimulatedRadio) Generation(addr radio.Address) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peers.Generation(addr)
}

// Corrupted reports whether a caller ever changed an encryption flag in place.
func (r *SimulatedRadio) Corrupted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.corrupted
}

// Operations returns a copy of the recorded driver operations.
func (r *SimulatedRadio) Operations() []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]Operation, len(r.ops))
	copy(ops, r.ops)
	return ops
}

// OperationCount returns how many recorded operations are of kind.
func (r *SimulatedRadio) OperationCount(kind OpKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// ResetOperations clears the operation log.
func (r *SimulatedRadio) ResetOperations() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}

func (r *SimulatedRadio) record(op Operation) {
	r.ops = append(r.ops, op)
}

// enqueue hands ev to the callback goroutine without blocking. It reports
// false when the radio is down or its queue is full.
func (r *SimulatedRadio) enqueue(ev event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return false
	}
	select {
	case r.events <- ev:
		return true
	default:
		return false
	}
}

// callbackLoop is the radio's callback context. Events are handled one at a
// time in arrival order.
func (r *SimulatedRadio) callbackLoop(events <-chan event, done <-chan struct{}) {
	defer r.wg.Done()
	for {
		select {
		case <-done:
			return
		case ev := <-events:
			switch ev.kind {
			case eventReceive:
				r.handleFrame(ev.frame)
			case eventSendDone:
				r.handleSendDone(ev.frame.dst, ev.success)
			}
		}
	}
}

func (r *SimulatedRadio) handleFrame(f frame) {
	r.mu.Lock()
	cb := r.recvCb
	pmk := r.pmk
	sender, known := r.peers.Get(f.src)
	r.mu.Unlock()

	data := f.data
	switch {
	case f.sealed:
		if !known || !sender.Encrypt {
			return
		}
		opened, err := linkcrypto.Open(pmk, sender.Key, f.src, f.dst, f.nonce, f.data)
		if err != nil {
			return
		}
		data = opened
	case known && sender.Encrypt:
		// Plaintext from a peer we expect to encrypt.
		return
	}

	if cb != nil {
		cb(f.src, data)
	}
}

func (r *SimulatedRadio) handleSendDone(dst radio.Address, success bool) {
	r.mu.Lock()
	cb := r.sendCb
	r.mu.Unlock()

	if cb != nil {
		cb(dst, success)
	}
}
