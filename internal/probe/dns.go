package probe

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"github.com/anstrom/recon/internal/job"
)

// DNS sends one A query over TCP. Any well-formed reply, whatever its rcode,
// marks the port open.
type DNS struct {
	client   *dns.Client
	question string
}

// NewDNS creates a DNS probe asking for question.
func NewDNS(question string) *DNS {
	return &DNS{
		client:   &dns.Client{Net: "tcp", Dialer: newDialer()},
		question: dns.Fqdn(question),
	}
}

// Execute implements job.Job.
func (p *DNS) Execute(ctx context.Context, addr netip.AddrPort) (job.Outcome[Response], error) {
	msg := new(dns.Msg)
	msg.SetQuestion(p.question, dns.TypeA)
	msg.RecursionDesired = true

	start := time.Now()
	reply, rtt, err := p.client.ExchangeContext(ctx, msg, addr.String())
	resp := Response{Method: "dns", Latency: time.Since(start)}
	if err != nil {
		return classifyHandshake(err, resp), nil
	}

	resp.Latency = rtt
	resp.Detail = fmt.Sprintf("rcode=%s answers=%d", dns.RcodeToString[reply.Rcode], len(reply.Answer))
	return job.Return(job.Open, resp), nil
}
