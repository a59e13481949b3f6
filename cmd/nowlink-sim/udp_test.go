package main

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/nowlink/radio"
	"github.com/opd-ai/nowlink/real"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cliAddr  = "02:00:00:00:00:01"
	peerAddr = "02:00:00:00:00:02"
)

type inbox struct {
	mu   sync.Mutex
	msgs []string
}

func (b *inbox) onRecv(_ radio.Address, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, string(data))
}

func (b *inbox) messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.msgs...)
}

func newReceiver(t *testing.T) (*real.UDPRadio, *inbox) {
	t.Helper()
	cfg := real.DefaultConfig()
	cfg.Address = radio.MustParseAddress(peerAddr)
	r, err := real.NewUDPRadio(cfg)
	require.NoError(t, err)
	require.NoError(t, r.Init())
	t.Cleanup(func() { _ = r.Deinit() })

	box := &inbox{}
	require.NoError(t, r.RegisterReceiveCallback(box.onRecv))
	return r, box
}

func TestSendCommandUnicast(t *testing.T) {
	recv, box := newReceiver(t)

	out, err := execute(t, "send",
		"--listen", "127.0.0.1:0",
		"--addr", cliAddr,
		"--peer", peerAddr+"="+recv.LocalAddr().String(),
		"--to", peerAddr,
		"-p", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "send "+peerAddr+" ok")

	assert.Eventually(t, func() bool {
		msgs := box.messages()
		return len(msgs) == 1 && msgs[0] == "hello"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSendCommandBroadcastToPeers(t *testing.T) {
	recv, box := newReceiver(t)

	out, err := execute(t, "send",
		"--listen", "127.0.0.1:0",
		"--addr", cliAddr,
		"--peer", peerAddr+"="+recv.LocalAddr().String(),
		"-p", "to all")
	require.NoError(t, err)
	assert.Contains(t, out, "send "+peerAddr+" ok")
	assert.Eventually(t, func() bool { return len(box.messages()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestSendCommandRadioInactive(t *testing.T) {
	recv, _ := newReceiver(t)

	_, err := execute(t, "send",
		"--listen", "127.0.0.1:0",
		"--addr", cliAddr,
		"--interfaces", "none",
		"--peer", peerAddr+"="+recv.LocalAddr().String(),
		"-p", "nobody")
	assert.ErrorIs(t, err, radio.ErrRadioInactive)
}

func TestSendCommandRejectsBadFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing addr", []string{"send", "-p", "x"}},
		{"missing payload", []string{"send", "--addr", cliAddr}},
		{"bad peer", []string{"send", "--listen", "127.0.0.1:0", "--addr", cliAddr, "--peer", "nonsense", "-p", "x"}},
		{"bad lmk", []string{"send", "--listen", "127.0.0.1:0", "--addr", cliAddr, "--lmk", peerAddr + "=zz", "-p", "x"}},
		{"bad interfaces", []string{"send", "--listen", "127.0.0.1:0", "--addr", cliAddr, "--interfaces", "mesh", "-p", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestListenCommandCount(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	listenAddr := pc.LocalAddr().String()
	require.NoError(t, pc.Close())

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := execute(t, "listen", "--listen", listenAddr, "--addr", peerAddr, "-n", "1")
		done <- result{out, err}
	}()

	cfg := real.DefaultConfig()
	cfg.Address = radio.MustParseAddress(cliAddr)
	cfg.Endpoints = map[radio.Address]string{radio.MustParseAddress(peerAddr): listenAddr}
	sender, err := real.NewUDPRadio(cfg)
	require.NoError(t, err)
	require.NoError(t, sender.Init())
	defer sender.Deinit()
	require.NoError(t, sender.AddPeer(radio.PeerInfo{Addr: radio.MustParseAddress(peerAddr)}))

	// The listener may not be bound yet, so keep sending until it exits.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case res := <-done:
			require.NoError(t, res.err)
			assert.Contains(t, res.out, "listening on "+listenAddr)
			assert.Contains(t, res.out, `recv `+cliAddr+` "knock"`)
			return
		case <-ticker.C:
			_ = sender.Send(radio.MustParseAddress(peerAddr), []byte("knock"))
		case <-timeout:
			t.Fatal("listen did not exit")
		}
	}
}
