package nowlink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/nowlink/interfaces"
	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/radio"
	simradio "github.com/opd-ai/nowlink/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	localAddr = radio.MustParseAddress("02:00:00:00:00:01")
	peerAddr  = radio.MustParseAddress("AA:AA:AA:AA:AA:AA")
	otherAddr = radio.MustParseAddress("BB:BB:BB:BB:BB:BB")
)

type inbound struct {
	src  radio.Address
	data []byte
}

// events collects handler invocations.
type events struct {
	mu    sync.Mutex
	recvs []inbound
	sends []sendRecord
}

type sendRecord struct {
	Addr    radio.Address
	Success bool
}

func (e *events) onRecv(src radio.Address, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recvs = append(e.recvs, inbound{src: src, data: append([]byte(nil), data...)})
}

func (e *events) onSend(dst radio.Address, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sends = append(e.sends, sendRecord{Addr: dst, Success: ok})
}

func (e *events) received() []inbound {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]inbound(nil), e.recvs...)
}

func (e *events) sent() []sendRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sendRecord(nil), e.sends...)
}

func newSimNode(t *testing.T, air *simradio.Air, addr radio.Address) (*Node, *simradio.SimulatedRadio, *events) {
	t.Helper()
	sim := air.NewRadio(addr)
	node, err := New(sim, nil)
	require.NoError(t, err)
	require.NoError(t, node.Init())
	t.Cleanup(func() { _ = node.Deinit() })

	ev := &events{}
	node.OnRecv(ev.onRecv)
	node.OnSend(ev.onSend)
	return node, sim, ev
}

func drainUntil(t *testing.T, node *Node, cond func() bool) {
	t.Helper()
	assert.Eventually(t, func() bool {
		node.Iterate()
		return cond()
	}, time.Second, 5*time.Millisecond)
}

func TestUnicastReportsCompletion(t *testing.T) {
	air := simradio.NewAir()
	node, sim, ev := newSimNode(t, air, localAddr)
	remote, remoteSim, remoteEv := newSimNode(t, air, peerAddr)

	sim.SetActiveInterfaces(radio.StationOnly)
	remoteSim.SetActiveInterfaces(radio.StationOnly)
	require.NoError(t, node.AddPeer(peerAddr, nil))

	payload := []byte("0123456789")
	require.NoError(t, node.Send(peerAddr, payload))

	drainUntil(t, node, func() bool { return len(ev.sent()) == 1 })
	assert.Equal(t, sendRecord{Addr: peerAddr, Success: true}, ev.sent()[0])

	drainUntil(t, remote, func() bool { return len(remoteEv.received()) == 1 })
	got := remoteEv.received()[0]
	assert.Equal(t, localAddr, got.src)
	assert.Equal(t, payload, got.data)
}

func TestCompletionOnlyRunsOnConsumer(t *testing.T) {
	air := simradio.NewAir()
	node, sim, ev := newSimNode(t, air, localAddr)
	newSimNode(t, air, peerAddr)
	sim.SetActiveInterfaces(radio.StationOnly)
	require.NoError(t, node.AddPeer(peerAddr, nil))

	require.NoError(t, node.Send(peerAddr, []byte("x")))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, ev.sent(), "handlers must wait for Iterate")

	drainUntil(t, node, func() bool { return len(ev.sent()) == 1 })
}

func TestSendWithoutActiveInterface(t *testing.T) {
	node, sim, _ := newSimNode(t, simradio.NewAir(), localAddr)
	require.NoError(t, node.AddPeer(peerAddr, nil))

	assert.ErrorIs(t, node.Send(peerAddr, []byte("x")), radio.ErrRadioInactive)
	assert.ErrorIs(t, node.Broadcast([]byte("x")), radio.ErrRadioInactive)
	assert.ErrorIs(t, node.Send(radio.BroadcastAddress, []byte("x")), radio.ErrRadioInactive)
	assert.Equal(t, 0, sim.OperationCount(simradio.OpSend))
}

func TestPeerDirectoryErrors(t *testing.T) {
	node, _, _ := newSimNode(t, simradio.NewAir(), localAddr)

	require.NoError(t, node.AddPeer(peerAddr, nil))
	assert.ErrorIs(t, node.AddPeer(peerAddr, nil), radio.ErrDuplicatePeer)
	assert.ErrorIs(t, node.DelPeer(otherAddr), radio.ErrPeerNotFound)

	require.NoError(t, node.DelPeer(peerAddr))
	_, err := node.Peer(peerAddr)
	assert.ErrorIs(t, err, radio.ErrPeerNotFound)
}

func TestOperationsBeforeInit(t *testing.T) {
	node, err := New(simradio.NewAir().NewRadio(localAddr), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, node.AddPeer(peerAddr, nil), radio.ErrNotInitialized)
	assert.ErrorIs(t, node.DelPeer(peerAddr), radio.ErrNotInitialized)
	assert.ErrorIs(t, node.SetLocalKey(peerAddr, nil), radio.ErrNotInitialized)
	assert.ErrorIs(t, node.SetPrimaryKey(radio.Key{}), radio.ErrNotInitialized)
	assert.ErrorIs(t, node.Send(peerAddr, []byte("x")), radio.ErrNotInitialized)
	assert.ErrorIs(t, node.Broadcast([]byte("x")), radio.ErrNotInitialized)
	_, err = node.PeerCount()
	assert.ErrorIs(t, err, radio.ErrNotInitialized)
	_, err = node.Version()
	assert.ErrorIs(t, err, radio.ErrNotInitialized)

	assert.NoError(t, node.Deinit(), "deinit of an idle node is a no-op")
}

func TestInitTwice(t *testing.T) {
	node, _, _ := newSimNode(t, simradio.NewAir(), localAddr)
	assert.ErrorIs(t, node.Init(), radio.ErrAlreadyInitialized)
	assert.True(t, node.Initialized())
}

func TestDriverBoundToOneNode(t *testing.T) {
	sim := simradio.NewAir().NewRadio(localAddr)
	first, err := New(sim, nil)
	require.NoError(t, err)
	second, err := New(sim, nil)
	require.NoError(t, err)

	require.NoError(t, first.Init())
	assert.ErrorIs(t, second.Init(), radio.ErrAlreadyInitialized)

	require.NoError(t, first.Deinit())
	require.NoError(t, second.Init())
	require.NoError(t, second.Deinit())
	assert.False(t, second.Initialized())
}

func TestReinitAfterDeinit(t *testing.T) {
	sim := simradio.NewAir().NewRadio(localAddr)
	node, err := New(sim, nil)
	require.NoError(t, err)

	require.NoError(t, node.Init())
	require.NoError(t, node.Deinit())
	require.NoError(t, node.Init())
	require.NoError(t, node.AddPeer(peerAddr, nil))
	require.NoError(t, node.Deinit())
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, radio.ErrValidation)

	cfg := interfaces.DefaultNodeConfig()
	cfg.DispatchQueueDepth = 0
	_, err = New(simradio.NewAir().NewRadio(localAddr), cfg)
	assert.ErrorIs(t, err, radio.ErrValidation)
}

func TestDefaultInterfaceFromConfig(t *testing.T) {
	sim := simradio.NewAir().NewRadio(localAddr)
	cfg := interfaces.DefaultNodeConfig()
	cfg.DefaultInterface = radio.InterfaceAccessPoint
	node, err := New(sim, cfg)
	require.NoError(t, err)
	require.NoError(t, node.Init())
	defer node.Deinit()

	require.NoError(t, node.AddPeer(peerAddr, nil))
	info, err := node.Peer(peerAddr)
	require.NoError(t, err)
	assert.Equal(t, radio.InterfaceAccessPoint, info.Interface)
}

func TestHandlerReplacement(t *testing.T) {
	air := simradio.NewAir()
	node, sim, _ := newSimNode(t, air, localAddr)
	remote, remoteSim, _ := newSimNode(t, air, peerAddr)
	sim.SetActiveInterfaces(radio.StationOnly)
	remoteSim.SetActiveInterfaces(radio.StationOnly)
	require.NoError(t, node.AddPeer(peerAddr, nil))

	replacement := &events{}
	remote.OnRecv(replacement.onRecv)
	assert.NotNil(t, remote.RecvCallback())

	require.NoError(t, node.Send(peerAddr, []byte("one")))
	drainUntil(t, remote, func() bool { return len(replacement.received()) == 1 })

	remote.OnRecv(nil)
	assert.Nil(t, remote.RecvCallback())
	require.NoError(t, node.Send(peerAddr, []byte("two")))
	assert.Eventually(t, func() bool { return remote.Stats().Receive.Dropped == 1 }, time.Second, 5*time.Millisecond)
	remote.Iterate()
	assert.Len(t, replacement.received(), 1)
}

func TestSendOutcomeDroppedWithoutHandler(t *testing.T) {
	air := simradio.NewAir()
	node, sim, _ := newSimNode(t, air, localAddr)
	sim.SetActiveInterfaces(radio.StationOnly)
	require.NoError(t, node.AddPeer(peerAddr, nil))

	node.OnSend(nil)
	assert.Nil(t, node.SendCallback())
	require.NoError(t, node.Send(peerAddr, []byte("x")))

	assert.Eventually(t, func() bool { return node.Stats().SendDropped == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, node.Iterate())
}

func TestSendToAbsentPeerReportsFailure(t *testing.T) {
	node, sim, ev := newSimNode(t, simradio.NewAir(), localAddr)
	sim.SetActiveInterfaces(radio.StationOnly)
	require.NoError(t, node.AddPeer(peerAddr, nil))

	require.NoError(t, node.Send(peerAddr, []byte("x")))
	drainUntil(t, node, func() bool { return len(ev.sent()) == 1 })
	assert.False(t, ev.sent()[0].Success)
}

func TestBroadcastRepairsAndDelivers(t *testing.T) {
	air := simradio.NewAir()
	node, sim, ev := newSimNode(t, air, localAddr)
	remoteA, _, evA := newSimNode(t, air, peerAddr)
	remoteB, _, evB := newSimNode(t, air, otherAddr)

	require.NoError(t, node.AddPeer(peerAddr, nil))
	require.NoError(t, node.AddPeer(otherAddr, nil))
	// Peers were bound to the station role; only the access point is up.
	sim.SetActiveInterfaces(radio.AccessPointOnly)

	require.NoError(t, node.Send(radio.BroadcastAddress, []byte("all")))

	peers, err := node.Peers()
	require.NoError(t, err)
	require.Len(t, peers, 2)
	for _, p := range peers {
		assert.Equal(t, radio.InterfaceAccessPoint, p.Interface)
	}

	drainUntil(t, node, func() bool { return len(ev.sent()) == 2 })
	for _, s := range ev.sent() {
		assert.True(t, s.Success)
	}
	drainUntil(t, remoteA, func() bool { return len(evA.received()) == 1 })
	drainUntil(t, remoteB, func() bool { return len(evB.received()) == 1 })
	assert.Equal(t, []byte("all"), evB.received()[0].data)
}

func TestBroadcastNoPeers(t *testing.T) {
	node, sim, _ := newSimNode(t, simradio.NewAir(), localAddr)
	sim.SetActiveInterfaces(radio.StationOnly)
	assert.ErrorIs(t, node.Broadcast([]byte("x")), radio.ErrNoPeers)
}

func TestBroadcastConcurrentWithKeyChanges(t *testing.T) {
	node, sim, _ := newSimNode(t, simradio.NewAir(), localAddr)
	peers := make([]radio.Address, 11)
	for i := range peers {
		peers[i] = radio.Address{0x02, 0, 0, 0, 4, byte(i)}
		require.NoError(t, node.AddPeer(peers[i], nil))
	}
	lmk := radio.Key{0x5a}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 400; i++ {
			key := &lmk
			if i%2 == 1 {
				key = nil
			}
			_ = node.SetLocalKey(peers[(i/2)%4], key)
		}
	}()

	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			sim.SetActiveInterfaces(radio.StationOnly)
		} else {
			sim.SetActiveInterfaces(radio.AccessPointOnly)
		}
		_ = node.Broadcast([]byte("tick"))
	}
	wg.Wait()

	assert.False(t, sim.Corrupted())
	count, err := node.PeerCount()
	require.NoError(t, err)
	assert.Equal(t, len(peers), count.Total)
}

func TestPayloadLimits(t *testing.T) {
	node, sim, _ := newSimNode(t, simradio.NewAir(), localAddr)
	sim.SetActiveInterfaces(radio.StationOnly)
	require.NoError(t, node.AddPeer(peerAddr, nil))

	assert.ErrorIs(t, node.Send(peerAddr, make([]byte, limits.MaxPayload+1)), radio.ErrPayloadTooLarge)
	assert.NoError(t, node.Send(peerAddr, make([]byte, limits.MaxPayload)))
}

func TestEncryptedExchange(t *testing.T) {
	air := simradio.NewAir()
	node, sim, _ := newSimNode(t, air, localAddr)
	remote, remoteSim, remoteEv := newSimNode(t, air, peerAddr)
	sim.SetActiveInterfaces(radio.StationOnly)
	remoteSim.SetActiveInterfaces(radio.StationOnly)

	pmk := radio.Key{0xaa}
	lmk := radio.Key{0x01, 0x02, 0x03}
	require.NoError(t, node.SetPrimaryKey(pmk))
	require.NoError(t, remote.SetPrimaryKey(pmk))

	// Start unencrypted, then turn encryption on for both sides.
	require.NoError(t, node.AddPeer(peerAddr, nil))
	require.NoError(t, remote.AddPeer(localAddr, nil))
	require.NoError(t, node.SetLocalKey(peerAddr, &lmk))
	require.NoError(t, remote.SetLocalKey(localAddr, &lmk))
	assert.False(t, sim.Corrupted())

	count, err := node.PeerCount()
	require.NoError(t, err)
	assert.Equal(t, radio.PeerCount{Total: 1, Encrypted: 1}, count)

	require.NoError(t, node.Send(peerAddr, []byte("sealed")))
	drainUntil(t, remote, func() bool { return len(remoteEv.received()) == 1 })
	assert.Equal(t, []byte("sealed"), remoteEv.received()[0].data)
}

func TestReceiveOverflowCounted(t *testing.T) {
	air := simradio.NewAir()
	node, sim, _ := newSimNode(t, air, localAddr)
	sim.SetActiveInterfaces(radio.StationOnly)
	require.NoError(t, node.AddPeer(peerAddr, nil))

	cfg := interfaces.DefaultNodeConfig()
	cfg.DispatchQueueDepth = 128
	remote, err := New(air.NewRadio(peerAddr), cfg)
	require.NoError(t, err)
	require.NoError(t, remote.Init())
	defer remote.Deinit()
	remoteEv := &events{}
	remote.OnRecv(remoteEv.onRecv)

	const sent = limits.ReceiveRingSize + 8
	for i := 0; i < sent; i++ {
		require.NoError(t, node.Send(peerAddr, []byte{byte(i)}))
	}

	assert.Eventually(t, func() bool {
		return remote.Stats().Receive.Received == sent
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(8), remote.Stats().Receive.Overwritten)

	remote.Iterate()
	got := remoteEv.received()
	require.Len(t, got, sent)
	// The first notifications were overtaken and read newer data; the last
	// ring's worth still read their own slots.
	assert.Equal(t, []byte{byte(limits.ReceiveRingSize)}, got[0].data)
	for i := sent - limits.ReceiveRingSize; i < sent; i++ {
		assert.Equal(t, []byte{byte(i)}, got[i].data)
	}
}

func TestVersion(t *testing.T) {
	node, _, _ := newSimNode(t, simradio.NewAir(), localAddr)
	v, err := node.Version()
	require.NoError(t, err)
	assert.Equal(t, uint32(simradio.SimulatedVersion), v)
}

func TestRunDeliversUntilCancelled(t *testing.T) {
	node, sim, ev := newSimNode(t, simradio.NewAir(), localAddr)
	sim.SetActiveInterfaces(radio.StationOnly)
	require.NoError(t, node.AddPeer(peerAddr, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- node.Run(ctx) }()

	require.NoError(t, node.Send(peerAddr, []byte("x")))
	assert.Eventually(t, func() bool { return len(ev.sent()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
}
