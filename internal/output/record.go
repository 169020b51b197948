// Package output writes probe results to files and terminals.
package output

import (
	"net/netip"
	"time"

	"github.com/anstrom/recon/internal/job"
	"github.com/anstrom/recon/internal/probe"
	"github.com/anstrom/recon/internal/worker"
)

// Completion is a finished probe attempt as the pool reports it.
type Completion = worker.Completion[netip.AddrPort, probe.Response]

// Record is one reported result.
type Record struct {
	Addr    netip.Addr    `json:"-"`
	Port    uint16        `json:"port"`
	State   string        `json:"state"`
	Method  string        `json:"method,omitempty"`
	Detail  string        `json:"detail,omitempty"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency_ns,omitempty"`
}

// FromCompletion converts a completion into a Record.
func FromCompletion(c Completion) Record {
	r := Record{
		Addr:    c.State.Addr(),
		Port:    c.State.Port(),
		State:   c.Outcome.Label(),
		Method:  c.Outcome.Response.Method,
		Detail:  c.Outcome.Response.Detail,
		Latency: c.Outcome.Response.Latency,
	}
	if c.Outcome.Kind == job.KindError {
		r.Error = c.Outcome.Err.String()
		r.Latency = c.Elapsed
	}
	return r
}

// FromCompletions converts a batch.
func FromCompletions(cs []Completion) []Record {
	out := make([]Record, len(cs))
	for i := range cs {
		out[i] = FromCompletion(cs[i])
	}
	return out
}

// IsOpen reports whether the target answered as open.
func (r Record) IsOpen() bool {
	return r.State == job.Open.String()
}
