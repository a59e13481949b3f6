package real

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/nowlink/interfaces"
	"github.com/opd-ai/nowlink/internal/linkcrypto"
	"github.com/opd-ai/nowlink/internal/peertable"
	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/radio"
	"github.com/sirupsen/logrus"
)

const (
	readBufferSize = 2048
	readTimeout    = 100 * time.Millisecond
)

// ErrInterfaceInactive is returned by Send when the peer's interface role is
// not active.
var ErrInterfaceInactive = fmt.Errorf("%w: peer interface not active", radio.ErrUnreachable)

// Sleeper provides an abstraction over time.Sleep for deterministic testing.
type Sleeper interface {
	// Sleep pauses execution for the specified duration. It returns
	// ctx.Err() early if ctx is done first.
	Sleep(ctx context.Context, d time.Duration) error
}

// DefaultSleeper implements Sleeper with a timer.
type DefaultSleeper struct{}

// Sleep waits for d or until ctx is done.
func (DefaultSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config configures a UDPRadio.
type Config struct {
	// ListenAddr is the local UDP address frames are received on.
	ListenAddr string

	// Address is the radio's own hardware address.
	Address radio.Address

	// Interfaces is the initial set of active roles.
	Interfaces radio.InterfaceSet

	// Endpoints maps peer hardware addresses to UDP host:port endpoints.
	Endpoints map[radio.Address]string

	// RetryAttempts is the number of writes tried per frame.
	RetryAttempts int

	// RetryBackoff is the base delay between attempts. Attempt n waits
	// n*RetryBackoff.
	RetryBackoff time.Duration

	// TxQueueDepth bounds frames accepted by Send but not yet written.
	TxQueueDepth int
}

// DefaultConfig returns a loopback configuration with the station role active.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    "127.0.0.1:0",
		Interfaces:    radio.StationOnly,
		RetryAttempts: 3,
		RetryBackoff:  10 * time.Millisecond,
		TxQueueDepth:  64,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen address is required", radio.ErrValidation)
	}
	if c.Address.IsBroadcast() {
		return fmt.Errorf("%w: radio address cannot be the broadcast address", radio.ErrValidation)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry attempts %d must be at least 1", radio.ErrValidation, c.RetryAttempts)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("%w: negative retry backoff", radio.ErrValidation)
	}
	if c.TxQueueDepth < 1 {
		return fmt.Errorf("%w: tx queue depth %d must be at least 1", radio.ErrValidation, c.TxQueueDepth)
	}
	return nil
}

type transmission struct {
	dst     radio.Address
	targets []net.Addr
	data    []byte
}

// UDPRadio is an interfaces.RadioDriver that carries radio frames in UDP
// datagrams. Each peer hardware address is mapped to a UDP endpoint.
//
// Inbound frames are delivered from the radio's read goroutine and send
// completions from its transmit goroutine; together they form the driver's
// callback context. UDP has no link-level acknowledgement, so a send succeeds
// once the datagram has been written.
type UDPRadio struct {
	config Config

	mu          sync.Mutex
	initialized bool
	conn        net.PacketConn
	endpoints   map[radio.Address]net.Addr
	active      radio.InterfaceSet
	pmk         radio.Key
	peers       *peertable.Table
	sleeper     Sleeper

	recvCb interfaces.ReceiveFunc
	sendCb interfaces.SendCompleteFunc

	txQueue chan transmission
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	dropped atomic.Uint64
}

// NewUDPRadio creates a radio from config. Endpoints are resolved up front.
func NewUDPRadio(config Config) (*UDPRadio, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r := &UDPRadio{
		config:    config,
		endpoints: make(map[radio.Address]net.Addr, len(config.Endpoints)),
		active:    config.Interfaces,
		peers:     peertable.New(),
		sleeper:   DefaultSleeper{},
	}
	for addr, endpoint := range config.Endpoints {
		if err := r.SetEndpoint(addr, endpoint); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":       "NewUDPRadio",
		"radio_addr":     config.Address.String(),
		"listen_addr":    config.ListenAddr,
		"endpoint_count": len(config.Endpoints),
		"retries":        config.RetryAttempts,
	}).Info("Creating UDP radio")
	return r, nil
}

// SetSleeper sets a custom Sleeper implementation (primarily for testing).
func (r *UDPRadio) SetSleeper(s Sleeper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeper = s
}

// SetEndpoint maps addr to the UDP endpoint host:port.
func (r *UDPRadio) SetEndpoint(addr radio.Address, endpoint string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return fmt.Errorf("%w: endpoint %q for %s: %v", radio.ErrValidation, endpoint, addr, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[addr] = udpAddr
	return nil
}

// Address returns the radio's own hardware address.
func (r *UDPRadio) Address() radio.Address {
	return r.config.Address
}

// LocalAddr returns the bound UDP address, or nil before Init.
func (r *UDPRadio) LocalAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Dropped counts inbound datagrams discarded as malformed, misaddressed or
// unauthenticated.
func (r *UDPRadio) Dropped() uint64 {
	return r.dropped.Load()
}

// Init implements interfaces.RadioDriver.
func (r *UDPRadio) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return radio.ErrAlreadyInitialized
	}
	conn, err := net.ListenPacket("udp", r.config.ListenAddr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "UDPRadio.Init",
			"listen_addr": r.config.ListenAddr,
			"error":       err.Error(),
		}).Error("Failed to bind UDP socket")
		return fmt.Errorf("%w: listen %s: %v", radio.ErrDriverInternal, r.config.ListenAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.conn = conn
	r.cancel = cancel
	r.txQueue = make(chan transmission, r.config.TxQueueDepth)
	r.initialized = true

	r.wg.Add(2)
	go r.readLoop(ctx, conn)
	go r.transmitLoop(ctx, r.txQueue)

	logrus.WithFields(logrus.Fields{
		"function":   "UDPRadio.Init",
		"radio_addr": r.config.Address.String(),
		"local_addr": conn.LocalAddr().String(),
	}).Info("UDP radio initialized")
	return nil
}

// Deinit implements interfaces.RadioDriver. Frames still queued for
// transmission are discarded without a completion.
func (r *UDPRadio) Deinit() error {
	r.mu.Lock()
	if !r.initialized {
		r.mu.Unlock()
		return radio.ErrNotInitialized
	}
	r.initialized = false
	r.cancel()
	err := r.conn.Close()
	r.peers.Reset()
	r.recvCb = nil
	r.sendCb = nil
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	r.conn = nil
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "UDPRadio.Deinit",
		"radio_addr": r.config.Address.String(),
	}).Info("UDP radio deinitialized")
	if err != nil {
		return fmt.Errorf("%w: close: %v", radio.ErrDriverInternal, err)
	}
	return nil
}

// RegisterReceiveCallback implements interfaces.RadioDriver.
func (r *UDPRadio) RegisterReceiveCallback(cb interfaces.ReceiveFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.ErrNotInitialized
	}
	r.recvCb = cb
	return nil
}

// RegisterSendCallback implements interfaces.RadioDriver.
func (r *UDPRadio) RegisterSendCallback(cb interfaces.SendCompleteFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.ErrNotInitialized
	}
	r.sendCb = cb
	return nil
}

// SetPrimaryKey implements interfaces.RadioDriver.
func (r *UDPRadio) SetPrimaryKey(key radio.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.ErrNotInitialized
	}
	r.pmk = key
	return nil
}

// AddPeer implements interfaces.RadioDriver.
func (r *UDPRadio) AddPeer(info radio.PeerInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.ErrNotInitialized
	}
	return r.peers.Add(info)
}

// RemovePeer implements interfaces.RadioDriver.
func (r *UDPRadio) RemovePeer(addr radio.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.ErrNotInitialized
	}
	_, err := r.peers.Remove(addr)
	return err
}

// ModifyPeer implements interfaces.RadioDriver. Changing the encryption flag
// is refused.
func (r *UDPRadio) ModifyPeer(info radio.PeerInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.ErrNotInitialized
	}
	return r.peers.Modify(info)
}

// GetPeer implements interfaces.RadioDriver.
func (r *UDPRadio) GetPeer(addr radio.Address) (radio.PeerInfo, error) {
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
func (r *UDPRadio) FetchPeer(fromHead bool) (radio.PeerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.PeerInfo{}, radio.ErrNotInitialized
	}
	return r.peers.Fetch(fromHead)
}

// PeerCount implements interfaces.RadioDriver.
func (r *UDPRadio) PeerCount() (radio.PeerCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.PeerCount{}, radio.ErrNotInitialized
	}
	return r.peers.Count(), nil
}

// ActiveInterfaces implements interfaces.RadioDriver.
func (r *UDPRadio) ActiveInterfaces() (radio.InterfaceSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, nil
}

// SetActiveInterfaces sets the roles reported by ActiveInterfaces.
func (r *UDPRadio) SetActiveInterfaces(set radio.InterfaceSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = set
}

// Version implements interfaces.RadioDriver.
func (r *UDPRadio) Version() (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return 0, radio.ErrNotInitialized
	}
	return FrameVersion, nil
}

// Send implements interfaces.RadioDriver. The frame is queued for the
// transmit goroutine, which reports the outcome to the send callback. A peer
// without a known endpoint is accepted and reported as failed.
func (r *UDPRadio) Send(dst radio.Address, payload []byte) error {
	tx, err := r.prepare(dst, payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "UDPRadio.Send",
			"peer_addr": dst.String(),
			"error":     err.Error(),
		}).Debug("UDP send rejected")
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return radio.ErrNotInitialized
	}
	select {
	case r.txQueue <- tx:
		return nil
	default:
		return fmt.Errorf("%w: transmit queue full", radio.ErrDriverInternal)
	}
}

func (r *UDPRadio) prepare(dst radio.Address, payload []byte) (transmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return transmission{}, radio.ErrNotInitialized
	}
	if err := limits.ValidatePayload(payload); err != nil {
		return transmission{}, err
	}
	p, ok := r.peers.Get(dst)
	if !ok {
		return transmission{}, radio.ErrPeerNotFound
	}
	if !r.active.Has(p.Interface) {
		return transmission{}, ErrInterfaceInactive
	}

	f := frame{src: r.config.Address, dst: dst, payload: payload}
	if p.Encrypt {
		nonce, sealed, err := linkcrypto.Seal(r.pmk, p.Key, f.src, dst, payload)
		if err != nil {
			return transmission{}, fmt.Errorf("%w: %v", radio.ErrDriverInternal, err)
		}
		f.sealed, f.nonce, f.payload = true, nonce, sealed
	}
	return transmission{dst: dst, targets: r.targetsLocked(dst), data: f.encode()}, nil
}

// targetsLocked returns every known endpoint for the broadcast address.
func (r *UDPRadio) targetsLocked(dst radio.Address) []net.Addr {
	if !dst.IsBroadcast() {
		if ep, ok := r.endpoints[dst]; ok {
			return []net.Addr{ep}
		}
		return nil
	}
	targets := make([]net.Addr, 0, len(r.endpoints))
	for addr, ep := range r.endpoints {
		if addr != r.config.Address {
			targets = append(targets, ep)
		}
	}
	return targets
}

// transmitLoop writes queued frames and reports each outcome.
func (r *UDPRadio) transmitLoop(ctx context.Context, queue <-chan transmission) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case tx := <-queue:
			ok := r.transmit(ctx, tx)
			r.mu.Lock()
			cb := r.sendCb
			r.mu.Unlock()
			if cb != nil && ctx.Err() == nil {
				cb(tx.dst, ok)
			}
		}
	}
}

// transmit reports whether the frame was written to at least one endpoint.
func (r *UDPRadio) transmit(ctx context.Context, tx transmission) bool {
	if len(tx.targets) == 0 {
		logrus.WithFields(logrus.Fields{
			"function":  "UDPRadio.transmit",
			"peer_addr": tx.dst.String(),
		}).Warn("No UDP endpoint for peer")
		return false
	}
	delivered := false
	for _, target := range tx.targets {
		if r.writeWithRetries(ctx, tx.dst, target, tx.data) {
			delivered = true
		}
	}
	return delivered
}

// writeWithRetries tries to write a frame with linear backoff.
func (r *UDPRadio) writeWithRetries(ctx context.Context, dst radio.Address, target net.Addr, data []byte) bool {
	r.mu.Lock()
	conn, sleeper := r.conn, r.sleeper
	r.mu.Unlock()
	if conn == nil {
		return false
	}

	var lastErr error
	for attempt := 0; attempt < r.config.RetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		_, err := conn.WriteTo(data, target)
		if err == nil {
			return true
		}
		lastErr = err
		logrus.WithFields(logrus.Fields{
			"function":  "UDPRadio.writeWithRetries",
			"peer_addr": dst.String(),
			"endpoint":  target.String(),
			"attempt":   attempt + 1,
			"error":     err.Error(),
		}).Warn("UDP write failed, retrying")
		if attempt < r.config.RetryAttempts-1 {
			if sleeper.Sleep(ctx, time.Duration(attempt+1)*r.config.RetryBackoff) != nil {
				return false
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":  "UDPRadio.writeWithRetries",
		"peer_addr": dst.String(),
		"endpoint":  target.String(),
		"attempts":  r.config.RetryAttempts,
		"error":     lastErr.Error(),
	}).Error("UDP write failed after all retries")
	return false
}

// readLoop receives datagrams until ctx is cancelled.
func (r *UDPRadio) readLoop(ctx context.Context, conn net.PacketConn) {
	defer r.wg.Done()
	buffer := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, _, err := conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		r.handleDatagram(buffer[:n])
	}
}

// handleDatagram runs on the read goroutine. data is reused after it returns.
func (r *UDPRadio) handleDatagram(data []byte) {
	f, err := decodeFrame(data)
	if err != nil {
		r.dropped.Add(1)
		return
	}
	if f.dst != r.config.Address && !f.dst.IsBroadcast() {
		r.dropped.Add(1)
		return
	}

	r.mu.Lock()
	cb := r.recvCb
	pmk := r.pmk
	sender, known := r.peers.Get(f.src)
	r.mu.Unlock()

	payload := f.payload
	switch {
	case f.sealed:
		if !known || !sender.Encrypt {
			r.dropped.Add(1)
			return
		}
		opened, err := linkcrypto.Open(pmk, sender.Key, f.src, f.dst, f.nonce, f.payload)
		if err != nil {
			r.dropped.Add(1)
			return
		}
		payload = opened
	case known && sender.Encrypt:
		r.dropped.Add(1)
		return
	}

	if cb != nil {
		cb(f.src, payload)
	}
}
