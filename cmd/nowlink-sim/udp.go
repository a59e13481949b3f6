package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opd-ai/nowlink"
	"github.com/opd-ai/nowlink/factory"
	"github.com/opd-ai/nowlink/radio"
	"github.com/opd-ai/nowlink/real"
	"github.com/spf13/cobra"
)

type udpFlags struct {
	listen  string
	address string
	pmk     string
	peers   []string
	keys    []string
	iface   string
}

func (f *udpFlags) register(cmd *cobra.Command, defaultListen string) {
	cmd.Flags().StringVar(&f.listen, "listen", defaultListen, "local UDP address")
	cmd.Flags().StringVar(&f.address, "addr", "", "own radio address (AA:BB:CC:DD:EE:FF)")
	cmd.Flags().StringVar(&f.pmk, "pmk", "", "primary master key (32 hex digits)")
	cmd.Flags().StringArrayVar(&f.peers, "peer", nil, "peer as ADDR=HOST:PORT (repeatable)")
	cmd.Flags().StringArrayVar(&f.keys, "lmk", nil, "local master key as ADDR=HEX (repeatable)")
	cmd.Flags().StringVar(&f.iface, "interfaces", "sta", "active roles: none, sta, ap or sta+ap")
	_ = cmd.MarkFlagRequired("addr")
}

func splitPair(flag, value string) (radio.Address, string, error) {
	left, right, ok := strings.Cut(value, "=")
	if !ok || right == "" {
		return radio.Address{}, "", fmt.Errorf("invalid --%s %q: want ADDR=VALUE", flag, value)
	}
	addr, err := radio.ParseAddress(left)
	if err != nil {
		return radio.Address{}, "", fmt.Errorf("invalid --%s %q: %w", flag, value, err)
	}
	return addr, right, nil
}

func parseInterfaceFlag(s string) (radio.InterfaceSet, error) {
	switch strings.ToLower(s) {
	case "none":
		return radio.NoInterfaces, nil
	case "sta":
		return radio.StationOnly, nil
	case "ap":
		return radio.AccessPointOnly, nil
	case "sta+ap", "ap+sta":
		return radio.StationOnly | radio.AccessPointOnly, nil
	}
	return 0, fmt.Errorf("invalid --interfaces %q: must be none, sta, ap or sta+ap", s)
}

// startNode builds, initializes and populates a node over a UDP radio. The
// returned peers are the registered addresses in flag order.
func (f *udpFlags) startNode() (*nowlink.Node, *real.UDPRadio, []radio.Address, error) {
	cfg := real.DefaultConfig()
	cfg.ListenAddr = f.listen
	addr, err := radio.ParseAddress(f.address)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid --addr: %w", err)
	}
	cfg.Address = addr
	if cfg.Interfaces, err = parseInterfaceFlag(f.iface); err != nil {
		return nil, nil, nil, err
	}

	cfg.Endpoints = make(map[radio.Address]string, len(f.peers))
	var peers []radio.Address
	for _, p := range f.peers {
		peerAddr, endpoint, err := splitPair("peer", p)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg.Endpoints[peerAddr] = endpoint
		peers = append(peers, peerAddr)
	}
	keys := make(map[radio.Address]*radio.Key, len(f.keys))
	for _, k := range f.keys {
		peerAddr, hexKey, err := splitPair("lmk", k)
		if err != nil {
			return nil, nil, nil, err
		}
		key, err := radio.ParseKey(hexKey)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid --lmk %q: %w", k, err)
		}
		keys[peerAddr] = &key
	}

	node, drv, err := factory.NewNodeFactory().CreateUDPNode(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := node.Init(); err != nil {
		return nil, nil, nil, err
	}
	if f.pmk != "" {
		pmk, err := radio.ParseKey(f.pmk)
		if err != nil {
			_ = node.Deinit()
			return nil, nil, nil, fmt.Errorf("invalid --pmk: %w", err)
		}
		if err := node.SetPrimaryKey(pmk); err != nil {
			_ = node.Deinit()
			return nil, nil, nil, err
		}
	}
	for _, p := range peers {
		if err := node.AddPeer(p, keys[p]); err != nil {
			_ = node.Deinit()
			return nil, nil, nil, err
		}
	}
	return node, drv, peers, nil
}

func newListenCmd() *cobra.Command {
	var (
		flags udpFlags
		count int
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Receive datagrams on a UDP radio and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			node, drv, _, err := flags.startNode()
			if err != nil {
				return err
			}
			defer node.Deinit()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "listening on %s as %s\n", drv.LocalAddr(), drv.Address())

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			seen := 0
			node.OnRecv(func(src radio.Address, data []byte) {
				fmt.Fprintf(out, "recv %s %q\n", src, data)
				seen++
				if count > 0 && seen >= count {
					cancel()
				}
			})

			if err := node.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			if count > 0 && seen < count {
				return cmd.Context().Err()
			}
			return nil
		},
	}

	flags.register(cmd, "0.0.0.0:9000")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many datagrams (0 runs until interrupted)")
	return cmd
}

func newSendCmd() *cobra.Command {
	var (
		flags   udpFlags
		to      string
		payload string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one datagram from a UDP radio and report the outcome",
		Long: `send transmits --payload to the peer named by --to, or to every --peer
when --to is omitted, and waits for the send outcomes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			node, _, peers, err := flags.startNode()
			if err != nil {
				return err
			}
			defer node.Deinit()

			out := cmd.OutOrStdout()
			var failed, done int
			node.OnSend(func(dst radio.Address, ok bool) {
				done++
				status := "ok"
				if !ok {
					failed++
					status = "failed"
				}
				fmt.Fprintf(out, "send %s %s\n", dst, status)
			})

			want := len(peers)
			if to != "" {
				dst, err := radio.ParseAddress(to)
				if err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
				if !dst.IsBroadcast() {
					want = 1
				}
				err = node.Send(dst, []byte(payload))
				if err != nil {
					return err
				}
			} else if err := node.Broadcast([]byte(payload)); err != nil {
				return err
			}

			if err := waitForOutcomes(cmd.Context(), node, &done, want, timeout); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d send(s) failed", failed, want)
			}
			return nil
		},
	}

	flags.register(cmd, "0.0.0.0:0")
	cmd.Flags().StringVar(&to, "to", "", "destination radio address (default: every peer)")
	cmd.Flags().StringVarP(&payload, "payload", "p", "", "datagram payload")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "how long to wait for send outcomes")
	_ = cmd.MarkFlagRequired("payload")
	return cmd
}

// waitForOutcomes iterates node until *done reaches want. done is only
// written by handlers run from Iterate.
func waitForOutcomes(ctx context.Context, node *nowlink.Node, done *int, want int, timeout time.Duration) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		node.Iterate()
		if *done >= want {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("timed out after %s waiting for %d send outcome(s), got %d", timeout, want, *done)
		case <-ticker.C:
		}
	}
}
