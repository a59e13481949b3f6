package scenario

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/opd-ai/nowlink"
	"github.com/opd-ai/nowlink/factory"
	"github.com/opd-ai/nowlink/radio"
	simradio "github.com/opd-ai/nowlink/testing"
	"github.com/sirupsen/logrus"
)

// pollInterval is how often the runner drains nodes while settling.
const pollInterval = 5 * time.Millisecond

// Runner executes scenarios on a fresh simulated channel per run.
type Runner struct {
	factory *factory.NodeFactory
}

// NewRunner creates a runner that builds nodes with f. A nil f uses a
// factory configured from the environment.
func NewRunner(f *factory.NodeFactory) *Runner {
	if f == nil {
		f = factory.NewNodeFactory()
	}
	return &Runner{factory: f}
}

type simNode struct {
	spec   NodeSpec
	addr   radio.Address
	node   *nowlink.Node
	radio  *simradio.SimulatedRadio
	events []Event
}

func (n *simNode) onRecv(src radio.Address, data []byte) {
	n.events = append(n.events, Event{Kind: "recv", Peer: src.String(), Payload: printable(data)})
}

func (n *simNode) onSend(dst radio.Address, ok bool) {
	n.events = append(n.events, Event{Kind: "send", Peer: dst.String(), Success: ok})
}

// Run executes sc and reports what happened. The returned error is set only
// when the scenario could not be run at all; failed steps and unmet
// expectations are reported in the Result.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	logrus.WithFields(logrus.Fields{
		"function":   "Runner.Run",
		"scenario":   sc.Name,
		"node_count": len(sc.Nodes),
		"step_count": len(sc.Steps),
	}).Info("Starting scenario")

	air := simradio.NewAir()
	nodes := make(map[string]*simNode, len(sc.Nodes))
	order := make([]*simNode, 0, len(sc.Nodes))
	defer func() {
		for _, n := range order {
			_ = n.node.Deinit()
		}
	}()

	for _, spec := range sc.Nodes {
		n, err := r.setupNode(air, sc, spec)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", spec.Name, err)
		}
		nodes[spec.Name] = n
		order = append(order, n)
	}

	result := &Result{Name: sc.Name, Status: StatusPassed}
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr := r.runStep(ctx, nodes, i+1, st)
		if sr.Status == StatusFailed {
			result.Status = StatusFailed
		}
		result.Steps = append(result.Steps, sr)
	}

	settle := sc.Settle
	if settle == 0 {
		settle = DefaultSettle
	}
	if err := drainUntilQuiet(ctx, order, settle); err != nil {
		return nil, err
	}

	for _, n := range order {
		report := buildReport(n)
		if len(report.Failures) > 0 {
			result.Status = StatusFailed
		}
		result.Nodes = append(result.Nodes, report)
	}
	result.ExecutionTime = time.Since(start)

	logrus.WithFields(logrus.Fields{
		"function":       "Runner.Run",
		"scenario":       sc.Name,
		"status":         result.Status.String(),
		"failed":         result.Failed(),
		"execution_time": result.ExecutionTime.String(),
	}).Info("Scenario finished")
	return result, nil
}

func (r *Runner) setupNode(air *simradio.Air, sc *Scenario, spec NodeSpec) (*simNode, error) {
	addr, err := radio.ParseAddress(spec.Address)
	if err != nil {
		return nil, err
	}

	var opts []factory.ConfigOption
	if sc.DispatchDepth > 0 {
		opts = append(opts, factory.WithDispatchDepth(sc.DispatchDepth))
	}
	node, sim, err := r.factory.CreateSimulatedNode(air, addr, opts...)
	if err != nil {
		return nil, err
	}
	if err := node.Init(); err != nil {
		return nil, err
	}
	n := &simNode{spec: spec, addr: addr, node: node, radio: sim}
	node.OnRecv(n.onRecv)
	node.OnSend(n.onSend)

	set, err := ParseInterfaceSet(spec.Interfaces)
	if err != nil {
		_ = node.Deinit()
		return nil, err
	}
	sim.SetActiveInterfaces(set)

	if pmk, _ := parseOptionalKey(spec.PrimaryKey); pmk != nil {
		if err := node.SetPrimaryKey(*pmk); err != nil {
			_ = node.Deinit()
			return nil, err
		}
	}
	for _, p := range spec.Peers {
		peerAddr, _ := radio.ParseAddress(p.Address)
		key, _ := parseOptionalKey(p.Key)
		if err := node.AddPeer(peerAddr, key); err != nil {
			_ = node.Deinit()
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Runner.setupNode",
		"node":       spec.Name,
		"radio_addr": addr.String(),
		"interfaces": set.String(),
		"peer_count": len(spec.Peers),
	}).Debug("Scenario node ready")
	return n, nil
}

func (r *Runner) runStep(ctx context.Context, nodes map[string]*simNode, index int, st Step) StepResult {
	sr := StepResult{Index: index, Node: st.Node, Action: st.Action, Expected: st.ExpectError}

	err := execute(ctx, nodes[st.Node], st)
	switch {
	case st.ExpectError == "" && err != nil:
		sr.Status = StatusFailed
		sr.Error = err.Error()
	case st.ExpectError != "" && err == nil:
		sr.Status = StatusFailed
		sr.Error = fmt.Sprintf("expected %s error, got success", st.ExpectError)
	case st.ExpectError != "" && !matchesKind(err, st.ExpectError):
		sr.Status = StatusFailed
		sr.Error = fmt.Sprintf("expected %s error, got %s: %v", st.ExpectError, ErrorKind(err), err)
	default:
		sr.Status = StatusPassed
		if err != nil {
			sr.Error = err.Error()
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Runner.runStep",
		"step":     index,
		"node":     st.Node,
		"action":   st.Action,
		"status":   sr.Status.String(),
	}).Debug("Step executed")
	return sr
}

// execute runs one step. n is nil only for sleep.
func execute(ctx context.Context, n *simNode, st Step) error {
	payload, err := st.payload()
	if err != nil {
		return err
	}
	key, err := parseOptionalKey(st.Key)
	if err != nil {
		return err
	}
	to, _ := radio.ParseAddress(st.To)

	switch st.Action {
	case ActionSend:
		return n.node.Send(to, payload)
	case ActionBroadcast:
		return n.node.Broadcast(payload)
	case ActionAddPeer:
		return n.node.AddPeer(to, key)
	case ActionDelPeer:
		return n.node.DelPeer(to)
	case ActionSetLocalKey:
		return n.node.SetLocalKey(to, key)
	case ActionSetInterfaces:
		set, err := ParseInterfaceSet(st.Interfaces)
		if err != nil {
			return err
		}
		n.radio.SetActiveInterfaces(set)
		return nil
	case ActionDrain:
		n.node.Iterate()
		return nil
	case ActionSleep:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(st.Duration):
			return nil
		}
	}
	return fmt.Errorf("unknown action %q", st.Action)
}

// drainUntilQuiet iterates every node until none has run a notification for
// the settle period.
func drainUntilQuiet(ctx context.Context, nodes []*simNode, settle time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		ran := 0
		for _, n := range nodes {
			ran += n.node.Iterate()
		}
		if ran > 0 {
			lastActivity = time.Now()
		} else if time.Since(lastActivity) >= settle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func buildReport(n *simNode) NodeReport {
	stats := n.node.Stats()
	report := NodeReport{
		Name:        n.spec.Name,
		Address:     n.addr.String(),
		Overwritten: stats.Receive.Overwritten,
		Dropped:     stats.Receive.Dropped + stats.SendDropped,
		Events:      n.events,
	}
	for _, ev := range n.events {
		switch {
		case ev.Kind == "recv":
			report.Received++
		case ev.Success:
			report.SentOK++
		default:
			report.SentFailed++
		}
	}

	if exp := n.spec.Expect; exp != nil {
		check := func(name string, want *int, got int) {
			if want != nil && *want != got {
				report.Failures = append(report.Failures, fmt.Sprintf("%s: want %d, got %d", name, *want, got))
			}
		}
		check("received", exp.Received, report.Received)
		check("sent_ok", exp.SentOK, report.SentOK)
		check("sent_failed", exp.SentFailed, report.SentFailed)
	}
	return report
}

// printable returns data as text when it is printable UTF-8, else as hex.
func printable(data []byte) string {
	if !utf8.Valid(data) {
		return hex.EncodeToString(data)
	}
	for _, r := range string(data) {
		if !unicode.IsPrint(r) {
			return hex.EncodeToString(data)
		}
	}
	return string(data)
}
