package scenario

import (
	"fmt"
	"io"
	"time"
)

// Status is the outcome of a step or run.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
)

// String returns a string representation of the status.
func (s Status) String() string {
	if s == StatusPassed {
		return "PASSED"
	}
	return "FAILED"
}

// MarshalYAML renders the status by name.
func (s Status) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// StepResult records one executed step.
type StepResult struct {
	Index    int    `yaml:"index"`
	Node     string `yaml:"node,omitempty"`
	Action   string `yaml:"action"`
	Status   Status `yaml:"status"`
	Error    string `yaml:"error,omitempty"`
	Expected string `yaml:"expected_error,omitempty"`
}

// Event is one notification seen by a node's handlers.
type Event struct {
	Kind    string `yaml:"kind"`
	Peer    string `yaml:"peer"`
	Success bool   `yaml:"success,omitempty"`
	Payload string `yaml:"payload,omitempty"`
}

// NodeReport summarizes what a node observed.
type NodeReport struct {
	Name        string   `yaml:"name"`
	Address     string   `yaml:"address"`
	Received    int      `yaml:"received"`
	SentOK      int      `yaml:"sent_ok"`
	SentFailed  int      `yaml:"sent_failed"`
	Overwritten uint64   `yaml:"overwritten"`
	Dropped     uint64   `yaml:"dropped"`
	Events      []Event  `yaml:"events,omitempty"`
	Failures    []string `yaml:"failures,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Name          string        `yaml:"name"`
	Status        Status        `yaml:"status"`
	ExecutionTime time.Duration `yaml:"execution_time"`
	Steps         []StepResult  `yaml:"steps"`
	Nodes         []NodeReport  `yaml:"nodes"`
}

// Failed returns the number of failed steps and node expectations.
func (r *Result) Failed() int {
	failed := 0
	for _, st := range r.Steps {
		if st.Status == StatusFailed {
			failed++
		}
	}
	for _, n := range r.Nodes {
		failed += len(n.Failures)
	}
	return failed
}

// WriteText prints a human readable summary of r to w.
func (r *Result) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Scenario %q: %s (%v)\n", r.Name, r.Status, r.ExecutionTime.Round(time.Millisecond))
	for _, st := range r.Steps {
		line := fmt.Sprintf("  step %d %-14s %-6s %s", st.Index, st.Action, st.Node, st.Status)
		if st.Error != "" {
			line += ": " + st.Error
		}
		fmt.Fprintln(w, line)
	}
	for _, n := range r.Nodes {
		fmt.Fprintf(w, "  node %s (%s): received=%d sent_ok=%d sent_failed=%d overwritten=%d dropped=%d\n",
			n.Name, n.Address, n.Received, n.SentOK, n.SentFailed, n.Overwritten, n.Dropped)
		for _, f := range n.Failures {
			fmt.Fprintf(w, "    FAILED: %s\n", f)
		}
	}
}
