// Package scenario loads and runs scripted exchanges between simulated
// nowlink nodes.
//
// A scenario file is YAML. It declares the nodes on one simulated channel,
// their active interfaces, keys and peers, then a list of steps. Each step
// may name the error kind it expects. After the steps run, every node drains
// its notifications until the channel has been quiet for the settle period,
// and the per-node expectations are checked.
//
//	name: unicast
//	nodes:
//	  - name: a
//	    address: "02:00:00:00:00:01"
//	    interfaces: sta
//	    peers:
//	      - address: "AA:AA:AA:AA:AA:AA"
//	  - name: b
//	    address: "AA:AA:AA:AA:AA:AA"
//	    interfaces: sta
//	    expect:
//	      received: 1
//	steps:
//	  - node: a
//	    action: send
//	    to: "AA:AA:AA:AA:AA:AA"
//	    payload: "0123456789"
package scenario
