// Package real provides a radio driver that carries nowlink frames over UDP,
// for running nodes on hosts without radio hardware.
//
// # Overview
//
// [UDPRadio] implements interfaces.RadioDriver. Each peer hardware address is
// mapped to a UDP endpoint with [Config].Endpoints or [UDPRadio.SetEndpoint];
// every frame is sent as one datagram to that endpoint.
//
//	cfg := real.DefaultConfig()
//	cfg.ListenAddr = "0.0.0.0:9000"
//	cfg.Address = radio.MustParseAddress("02:00:00:00:00:01")
//	cfg.Endpoints = map[radio.Address]string{
//		radio.MustParseAddress("02:00:00:00:00:02"): "192.168.1.20:9000",
//	}
//	drv, err := real.NewUDPRadio(cfg)
//
// # Semantics
//
// The driver keeps the radio's rules: a bounded peer table, sends only to
// registered peers on an active interface role, and frames to encrypted peers
// sealed with a key derived from the primary and local master keys. Inbound
// frames addressed to another radio, malformed frames and frames that fail
// authentication are dropped and counted by [UDPRadio.Dropped].
//
// Writes are retried with linear backoff. A send is reported successful once
// a datagram has been written; UDP gives no delivery acknowledgement. A peer
// with no known endpoint is accepted by Send and reported as failed.
//
// # Callback context
//
// Inbound frames are delivered from the radio's read goroutine and send
// outcomes from its transmit goroutine. Receive callbacks are never run
// concurrently with each other.
package real
