// Package probe provides the concrete jobs recon runs against an IP:port:
// plain TCP connect, SOCKS5 handshake, DNS over TCP, SNMPv2c and TLS.
package probe

import (
	"context"
	"net"
	"net/netip"
	"sort"
	"time"

	"github.com/anstrom/recon/internal/config"
	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/job"
)

// Response is what a probe reports for a completed attempt.
type Response struct {
	Method  string        `json:"method"`
	Detail  string        `json:"detail,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Job is the job type every probe satisfies.
type Job = job.Job[netip.AddrPort, Response]

type constructor func(cfg config.ProbeConfig) Job

var registry = map[string]constructor{
	"tcp":    func(config.ProbeConfig) Job { return NewTCP() },
	"socks5": func(cfg config.ProbeConfig) Job { return NewSOCKS5(cfg.SOCKSCanary) },
	"dns":    func(cfg config.ProbeConfig) Job { return NewDNS(cfg.DNSQuestion) },
	"snmp":   func(cfg config.ProbeConfig) Job { return NewSNMP(cfg.SNMPCommunity) },
	"tls":    func(cfg config.ProbeConfig) Job { return NewTLS(cfg.TLSServerName) },
}

// New returns the probe registered under method.
func New(method string, cfg config.ProbeConfig) (Job, error) {
	ctor, ok := registry[method]
	if !ok {
		return nil, errors.ErrUnknownMethod(method)
	}
	return ctor(cfg), nil
}

// Methods lists the registered probe names.
func Methods() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newDialer() *net.Dialer {
	// Probe connections are closed right after the handshake.
	return &net.Dialer{KeepAlive: -1}
}

// classifyHandshake is Classify for failures that happen after the TCP
// connection was established: an unrecognized protocol error there means the
// port answered but does not speak the protocol, which is reported as closed
// with the error as detail.
func classifyHandshake(err error, resp Response) job.Outcome[Response] {
	out := job.Classify(err, resp)
	if out.IsReturn() || out.Err.Kind != job.ErrOther {
		return out
	}
	resp.Detail = err.Error()
	return job.Return(job.Closed, resp)
}

// contextDialerFunc adapts a function to proxy.Dialer and proxy.ContextDialer.
type contextDialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f contextDialerFunc) Dial(network, address string) (net.Conn, error) {
	return f(context.Background(), network, address)
}

func (f contextDialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}
