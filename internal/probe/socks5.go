package probe

import (
	"context"
	"net"
	"net/netip"
	"time"

	"golang.org/x/net/proxy"

	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/job"
)

var errNoContextDialer = errors.NewScanError(errors.CodeUnsupported, "socks5 dialer does not support contexts")

// SOCKS5 treats the target as a SOCKS5 proxy and asks it to CONNECT to a
// canary address. The target is open when the proxy grants the request.
type SOCKS5 struct {
	dialer *net.Dialer
	canary string
}

// NewSOCKS5 creates a SOCKS5 probe that requests a connection to canary.
func NewSOCKS5(canary string) *SOCKS5 {
	return &SOCKS5{dialer: newDialer(), canary: canary}
}

// Execute implements job.Job.
func (p *SOCKS5) Execute(ctx context.Context, addr netip.AddrPort) (job.Outcome[Response], error) {
	start := time.Now()
	connected := false
	forward := contextDialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		conn, err := p.dialer.DialContext(ctx, network, address)
		connected = err == nil
		return conn, err
	})

	d, err := proxy.SOCKS5("tcp", addr.String(), nil, forward)
	if err != nil {
		return job.Outcome[Response]{}, err
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return job.Outcome[Response]{}, errNoContextDialer
	}

	conn, err := cd.DialContext(ctx, "tcp", p.canary)
	resp := Response{Method: "socks5", Latency: time.Since(start)}
	if err != nil {
		if connected && ctx.Err() == nil {
			return classifyHandshake(err, resp), nil
		}
		return job.Classify(err, resp), nil
	}
	_ = conn.Close()

	resp.Detail = "connect to " + p.canary + " granted"
	return job.Return(job.Open, resp), nil
}
