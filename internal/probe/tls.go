package probe

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/zmap/zcrypto/tls"

	"github.com/anstrom/recon/internal/job"
)

// TLS completes a handshake without verifying the peer. The port is open
// when the handshake succeeds.
type TLS struct {
	serverName string
}

// NewTLS creates a TLS probe sending serverName as SNI when set.
func NewTLS(serverName string) *TLS {
	return &TLS{serverName: serverName}
}

// Execute implements job.Job.
func (p *TLS) Execute(ctx context.Context, addr netip.AddrPort) (job.Outcome[Response], error) {
	start := time.Now()
	conn, err := newDialer().DialContext(ctx, "tcp", addr.String())
	resp := Response{Method: "tls", Latency: time.Since(start)}
	if err != nil {
		return job.Classify(err, resp), nil
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock the handshake if the attempt is canceled without a deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client := tls.Client(conn, &tls.Config{
		ServerName:         p.serverName,
		InsecureSkipVerify: true, //nolint:gosec // probing, not trusting
	})
	err = client.Handshake()
	resp.Latency = time.Since(start)
	if err != nil {
		return classifyHandshake(err, resp), nil
	}

	state := client.ConnectionState()
	resp.Detail = fmt.Sprintf("version=%s cipher=0x%04x", tlsVersionName(state.Version), state.CipherSuite)
	return job.Return(job.Open, resp), nil
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionSSL30:
		return "SSLv3"
	case tls.VersionTLS10:
		return "TLS1.0"
	case tls.VersionTLS11:
		return "TLS1.1"
	case tls.VersionTLS12:
		return "TLS1.2"
	default:
		return fmt.Sprintf("0x%04x", v)
	}
}
