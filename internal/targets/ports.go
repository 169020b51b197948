package targets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anstrom/recon/internal/errors"
)

const (
	minPort                = 1
	maxPort                = 65535
	expectedPortRangeParts = 2
)

// ParsePorts parses a port specification such as "22,80,8000-8100" into a
// list of ports. Duplicates are dropped; first appearance wins the order.
func ParsePorts(spec string) ([]uint16, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, portError(spec, fmt.Errorf("no ports specified"))
	}

	seen := make(map[uint16]struct{})
	var ports []uint16
	add := func(p uint16) {
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			ports = append(ports, p)
		}
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "-") {
			start, end, err := parsePortRange(part)
			if err != nil {
				return nil, portError(spec, err)
			}
			for p := start; p <= end; p++ {
				add(uint16(p))
			}
			continue
		}

		p, err := parseSinglePort(part)
		if err != nil {
			return nil, portError(spec, err)
		}
		add(uint16(p))
	}

	return ports, nil
}

// parsePortRange validates a port range (e.g., "80-100").
func parsePortRange(part string) (start, end int, err error) {
	rangeParts := strings.Split(part, "-")
	if len(rangeParts) != expectedPortRangeParts {
		return 0, 0, fmt.Errorf("invalid port range format: %s", part)
	}

	start, err = strconv.Atoi(strings.TrimSpace(rangeParts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start port: %s", rangeParts[0])
	}
	end, err = strconv.Atoi(strings.TrimSpace(rangeParts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid end port: %s", rangeParts[1])
	}

	if start < minPort || start > maxPort || end < minPort || end > maxPort {
		return 0, 0, fmt.Errorf("invalid port range: %s (must be %d-%d)", part, minPort, maxPort)
	}
	if start > end {
		return 0, 0, fmt.Errorf("invalid port range: start port must be less than end port")
	}
	return start, end, nil
}

// parseSinglePort validates a single port.
func parseSinglePort(part string) (int, error) {
	port, err := strconv.Atoi(part)
	if err != nil {
		return 0, fmt.Errorf("invalid port: %s", part)
	}
	if port < minPort || port > maxPort {
		return 0, fmt.Errorf("invalid port: %d (must be %d-%d)", port, minPort, maxPort)
	}
	return port, nil
}

func portError(spec string, err error) error {
	cfgErr := errors.WrapConfigError(errors.CodeValidation, "Invalid port specification", err)
	cfgErr.Field = "ports"
	cfgErr.Value = spec
	return cfgErr
}
