package scenario

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/radio"
	"gopkg.in/yaml.v3"
)

// Actions a step may perform.
const (
	ActionSend          = "send"
	ActionBroadcast     = "broadcast"
	ActionAddPeer       = "add_peer"
	ActionDelPeer       = "del_peer"
	ActionSetLocalKey   = "lmk"
	ActionSetInterfaces = "set_interfaces"
	ActionDrain         = "drain"
	ActionSleep         = "sleep"
)

// DefaultSettle is how long the channel must stay quiet before a run ends.
const DefaultSettle = 100 * time.Millisecond

// Scenario is a parsed scenario file.
type Scenario struct {
	Name          string        `yaml:"name"`
	DispatchDepth int           `yaml:"dispatch_depth,omitempty"`
	Settle        time.Duration `yaml:"settle,omitempty"`
	Nodes         []NodeSpec    `yaml:"nodes"`
	Steps         []Step        `yaml:"steps"`
}

// NodeSpec declares one simulated node.
type NodeSpec struct {
	Name       string      `yaml:"name"`
	Address    string      `yaml:"address"`
	Interfaces string      `yaml:"interfaces,omitempty"`
	PrimaryKey string      `yaml:"pmk,omitempty"`
	Peers      []PeerSpec  `yaml:"peers,omitempty"`
	Expect     *NodeExpect `yaml:"expect,omitempty"`
}

// PeerSpec declares a peer registered before the steps run.
type PeerSpec struct {
	Address string `yaml:"address"`
	Key     string `yaml:"key,omitempty"`
}

// NodeExpect lists the notification counts a node must have seen once the
// run settles. Nil fields are not checked.
type NodeExpect struct {
	Received   *int `yaml:"received,omitempty"`
	SentOK     *int `yaml:"sent_ok,omitempty"`
	SentFailed *int `yaml:"sent_failed,omitempty"`
}

// Step is one scripted action.
type Step struct {
	Node        string        `yaml:"node"`
	Action      string        `yaml:"action"`
	To          string        `yaml:"to,omitempty"`
	Payload     string        `yaml:"payload,omitempty"`
	PayloadHex  string        `yaml:"payload_hex,omitempty"`
	PayloadSize int           `yaml:"payload_size,omitempty"`
	Key         string        `yaml:"key,omitempty"`
	Interfaces  string        `yaml:"interfaces,omitempty"`
	Duration    time.Duration `yaml:"duration,omitempty"`
	ExpectError string        `yaml:"expect_error,omitempty"`
}

// Load reads and validates the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario for references and values the runner cannot
// execute.
func (s *Scenario) Validate() error {
	if len(s.Nodes) == 0 {
		return fmt.Errorf("scenario %q: no nodes", s.Name)
	}
	if s.DispatchDepth != 0 {
		if err := limits.ValidateDispatchDepth(s.DispatchDepth); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	if s.Settle < 0 {
		return fmt.Errorf("scenario %q: negative settle period", s.Name)
	}

	names := make(map[string]bool, len(s.Nodes))
	addrs := make(map[radio.Address]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node %d: missing name", i)
		}
		if names[n.Name] {
			return fmt.Errorf("node %q: duplicate name", n.Name)
		}
		names[n.Name] = true

		addr, err := radio.ParseAddress(n.Address)
		if err != nil {
			return fmt.Errorf("node %q: %w", n.Name, err)
		}
		if addr.IsBroadcast() {
			return fmt.Errorf("node %q: broadcast address cannot be a node", n.Name)
		}
		if addrs[addr] {
			return fmt.Errorf("node %q: duplicate address %s", n.Name, addr)
		}
		addrs[addr] = true

		if _, err := ParseInterfaceSet(n.Interfaces); err != nil {
			return fmt.Errorf("node %q: %w", n.Name, err)
		}
		if _, err := parseOptionalKey(n.PrimaryKey); err != nil {
			return fmt.Errorf("node %q pmk: %w", n.Name, err)
		}
		for _, p := range n.Peers {
			if _, err := radio.ParseAddress(p.Address); err != nil {
				return fmt.Errorf("node %q peer: %w", n.Name, err)
			}
			if _, err := parseOptionalKey(p.Key); err != nil {
				return fmt.Errorf("node %q peer %s: %w", n.Name, p.Address, err)
			}
		}
	}

	for i, st := range s.Steps {
		if err := st.validate(names); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (st *Step) validate(names map[string]bool) error {
	if st.Action != ActionSleep && !names[st.Node] {
		return fmt.Errorf("unknown node %q", st.Node)
	}
	if st.ExpectError != "" && !knownErrorKind(st.ExpectError) {
		return fmt.Errorf("unknown error kind %q", st.ExpectError)
	}

	switch st.Action {
	case ActionSend, ActionAddPeer, ActionDelPeer, ActionSetLocalKey:
		if _, err := radio.ParseAddress(st.To); err != nil {
			return fmt.Errorf("%s: %w", st.Action, err)
		}
	case ActionBroadcast, ActionDrain:
	case ActionSetInterfaces:
		if _, err := ParseInterfaceSet(st.Interfaces); err != nil {
			return err
		}
	case ActionSleep:
		if st.Duration <= 0 {
			return fmt.Errorf("sleep: duration must be positive")
		}
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}

	if _, err := parseOptionalKey(st.Key); err != nil {
		return fmt.Errorf("%s key: %w", st.Action, err)
	}
	if _, err := st.payload(); err != nil {
		return err
	}
	return nil
}

// payload returns the step payload. payload_hex wins over payload_size,
// which wins over payload.
func (st *Step) payload() ([]byte, error) {
	switch {
	case st.PayloadHex != "":
		b, err := hex.DecodeString(st.PayloadHex)
		if err != nil {
			return nil, fmt.Errorf("payload_hex: %w", err)
		}
		return b, nil
	case st.PayloadSize > 0:
		b := make([]byte, st.PayloadSize)
		for i := range b {
			b[i] = byte(i)
		}
		return b, nil
	}
	return []byte(st.Payload), nil
}

// ParseInterfaceSet parses "none", "sta", "ap" or "sta+ap". The empty
// string means none.
func ParseInterfaceSet(s string) (radio.InterfaceSet, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return radio.NoInterfaces, nil
	}
	set := radio.NoInterfaces
	for _, part := range strings.Split(s, "+") {
		iface, err := radio.ParseInterface(part)
		if err != nil {
			return radio.NoInterfaces, err
		}
		set |= radio.SetOf(iface)
	}
	return set, nil
}

func parseOptionalKey(s string) (*radio.Key, error) {
	if s == "" {
		return nil, nil
	}
	k, err := radio.ParseKey(s)
	if err != nil {
		return nil, err
	}
	return &k, nil
}
