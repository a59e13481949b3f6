// Package nowlink implements a peer-to-peer datagram layer over a
// connectionless radio driver.
//
// A Node registers a bounded set of peers, each identified by a 6-byte
// hardware address and optionally secured with a 16-byte local master key,
// and exchanges short unicast or broadcast datagrams with them. Delivery
// outcomes and inbound datagrams are reported asynchronously: the driver's
// callback goroutine queues them, and the application runs the registered
// callbacks on its own goroutine by calling Iterate or Run.
//
// Example:
//
//	node, err := nowlink.New(driver, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := node.Init(); err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Deinit()
//
//	node.OnRecv(func(src radio.Address, data []byte) {
//	    fmt.Printf("%s: %q\n", src, data)
//	})
//	node.OnSend(func(dst radio.Address, ok bool) {
//	    fmt.Printf("send to %s ok=%v\n", dst, ok)
//	})
//
//	peer := radio.MustParseAddress("AA:AA:AA:AA:AA:AA")
//	if err := node.AddPeer(peer, nil); err != nil {
//	    log.Fatal(err)
//	}
//	if err := node.Send(peer, []byte("hello")); err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    node.Iterate()
//	    time.Sleep(10 * time.Millisecond)
//	}
//
// # Receive buffering
//
// Inbound datagrams are copied into a ring of 32 preallocated slots. A
// consumer that falls more than 32 datagrams behind sees older slots
// overwritten by newer data; the payload handed to the receive callback may
// then belong to a later datagram. Stats reports how often this happened.
// The payload slice passed to a ReceiveHandler aliases the slot and must be
// copied if it is kept after the handler returns.
package nowlink
