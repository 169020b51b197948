package probe

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/anstrom/recon/internal/job"
)

// sysDescr.0 from SNMPv2-MIB.
const sysDescrOID = "1.3.6.1.2.1.1.1.0"

const defaultSNMPTimeout = 2 * time.Second

// SNMP sends an SNMPv2c GET for sysDescr over UDP.
type SNMP struct {
	community string
}

// NewSNMP creates an SNMP probe using community.
func NewSNMP(community string) *SNMP {
	return &SNMP{community: community}
}

// Execute implements job.Job.
func (p *SNMP) Execute(ctx context.Context, addr netip.AddrPort) (job.Outcome[Response], error) {
	timeout := defaultSNMPTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	g := &gosnmp.GoSNMP{
		Target:    addr.Addr().String(),
		Port:      addr.Port(),
		Transport: "udp",
		Community: p.community,
		Version:   gosnmp.Version2c,
		Timeout:   timeout,
		Retries:   0,
		Context:   ctx,
	}

	start := time.Now()
	resp := Response{Method: "snmp"}
	if err := g.Connect(); err != nil {
		resp.Latency = time.Since(start)
		return job.Classify(err, resp), nil
	}
	defer g.Conn.Close()

	packet, err := g.Get([]string{sysDescrOID})
	resp.Latency = time.Since(start)
	if err != nil {
		return classifySNMP(ctx, err, resp), nil
	}

	resp.Detail = describeSNMP(packet)
	return job.Return(job.Open, resp), nil
}

// classifySNMP maps a failed GET. UDP has no handshake, so silence is the
// closest thing to a timed-out connect.
func classifySNMP(ctx context.Context, err error, resp Response) job.Outcome[Response] {
	if ctx.Err() == nil && strings.Contains(err.Error(), "timeout") {
		return job.Return(job.Closed, resp)
	}
	return job.Classify(err, resp)
}

func describeSNMP(packet *gosnmp.SnmpPacket) string {
	if packet == nil || len(packet.Variables) == 0 {
		return ""
	}
	v := packet.Variables[0]
	switch value := v.Value.(type) {
	case []byte:
		return string(value)
	case string:
		return value
	case nil:
		return fmt.Sprint(v.Type)
	default:
		return fmt.Sprint(value)
	}
}
