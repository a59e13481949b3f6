// Command nowlink-sim runs scripted exchanges between simulated nowlink
// nodes.
//
// Usage:
//
//	nowlink-sim run --scenario unicast.yaml
//	nowlink-sim run --scenario unicast.yaml --output yaml
//	nowlink-sim validate --scenario unicast.yaml
//	nowlink-sim version
//
// The scenario format is described in package internal/scenario. The exit
// status is non-zero when a step or expectation fails.
package main
