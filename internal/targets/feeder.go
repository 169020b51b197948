package targets

import (
	"fmt"
	"math"
	"math/bits"
	"net/netip"
	"strings"

	"github.com/anstrom/recon/internal/errors"
)

// Feeder lazily yields the product of target addresses and ports.
type Feeder struct {
	prefixes []netip.Prefix
	exclude  []netip.Prefix
	ports    []uint16

	prefix  int
	cur     netip.Addr
	portIdx int
	done    bool
	emitted uint64
}

// NewFeeder parses targets, ports and exclusions.
func NewFeeder(specs []string, ports string, exclude []string) (*Feeder, error) {
	prefixes, err := ParseTargets(specs)
	if err != nil {
		return nil, err
	}
	if len(prefixes) == 0 {
		return nil, errors.ErrInvalidTarget(strings.Join(specs, ","), fmt.Errorf("no targets specified"))
	}
	excluded, err := ParseTargets(exclude)
	if err != nil {
		return nil, err
	}
	portList, err := ParsePorts(ports)
	if err != nil {
		return nil, err
	}

	f := &Feeder{
		prefixes: prefixes,
		exclude:  excluded,
		ports:    portList,
	}
	f.cur = prefixes[0].Addr()
	f.seek()
	return f, nil
}

// ParseTargets parses addresses and CIDR prefixes. A bare address becomes a
// single-address prefix.
func ParseTargets(specs []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		if strings.Contains(spec, "/") {
			p, err := netip.ParsePrefix(spec)
			if err != nil {
				return nil, errors.ErrInvalidTarget(spec, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}

		addr, err := netip.ParseAddr(spec)
		if err != nil {
			return nil, errors.ErrInvalidTarget(spec, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// GenerateChunk appends up to amount pairs to buf and returns how many were
// appended.
func (f *Feeder) GenerateChunk(buf *[]netip.AddrPort, amount int) int {
	n := 0
	for n < amount && !f.done {
		*buf = append(*buf, netip.AddrPortFrom(f.cur, f.ports[f.portIdx]))
		n++
		f.emitted++

		f.portIdx++
		if f.portIdx == len(f.ports) {
			f.portIdx = 0
			f.cur = f.cur.Next()
			f.seek()
		}
	}
	return n
}

// IsDone reports whether every pair has been produced.
func (f *Feeder) IsDone() bool {
	return f.done
}

// Emitted returns the number of pairs produced so far.
func (f *Feeder) Emitted() uint64 {
	return f.emitted
}

// Total returns the number of pairs the targets describe before exclusions,
// saturating at math.MaxUint64.
func (f *Feeder) Total() uint64 {
	var total uint64
	for _, p := range f.prefixes {
		hostBits := p.Addr().BitLen() - p.Bits()
		if hostBits >= 64 {
			return math.MaxUint64
		}
		hi, lo := bits.Mul64(uint64(1)<<hostBits, uint64(len(f.ports)))
		if hi != 0 {
			return math.MaxUint64
		}
		sum, carry := bits.Add64(total, lo, 0)
		if carry != 0 {
			return math.MaxUint64
		}
		total = sum
	}
	return total
}

// seek moves cur forward to the next address that lies inside the current
// prefix and outside every exclusion, crossing into later prefixes as
// needed. It marks the feeder done when none is left.
func (f *Feeder) seek() {
	for f.prefix < len(f.prefixes) {
		p := f.prefixes[f.prefix]
		if !f.cur.IsValid() || !p.Contains(f.cur) {
			f.prefix++
			if f.prefix < len(f.prefixes) {
				f.cur = f.prefixes[f.prefix].Addr()
			}
			continue
		}

		if ex, ok := f.excludedBy(f.cur); ok {
			// Skip the whole excluded block at once.
			f.cur = lastAddr(ex).Next()
			continue
		}
		return
	}
	f.done = true
}

func (f *Feeder) excludedBy(addr netip.Addr) (netip.Prefix, bool) {
	for _, ex := range f.exclude {
		if ex.Contains(addr) {
			return ex, true
		}
	}
	return netip.Prefix{}, false
}

// lastAddr returns the highest address in p.
func lastAddr(p netip.Prefix) netip.Addr {
	p = p.Masked()
	if p.Addr().Is4() {
		b := p.Addr().As4()
		setHostBits(b[:], p.Bits())
		return netip.AddrFrom4(b)
	}
	b := p.Addr().As16()
	setHostBits(b[:], p.Bits())
	return netip.AddrFrom16(b)
}

func setHostBits(b []byte, prefixLen int) {
	for i := range b {
		bit := i * 8
		switch {
		case bit >= prefixLen:
			b[i] = 0xff
		case bit+8 > prefixLen:
			b[i] |= 0xff >> (prefixLen - bit)
		}
	}
}
