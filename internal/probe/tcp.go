package probe

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/anstrom/recon/internal/job"
)

// TCP completes a three-way handshake and closes without sending a payload.
type TCP struct {
	dialer *net.Dialer
}

// NewTCP creates a TCP connect probe.
func NewTCP() *TCP {
	return &TCP{dialer: newDialer()}
}

// Execute implements job.Job.
func (p *TCP) Execute(ctx context.Context, addr netip.AddrPort) (job.Outcome[Response], error) {
	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", addr.String())
	resp := Response{Method: "tcp", Latency: time.Since(start)}
	if err != nil {
		return job.Classify(err, resp), nil
	}
	_ = conn.Close()
	return job.Return(job.Open, resp), nil
}
