package netscan

import (
	"context"
	"os/exec"
	"strings"
)

// probeARP runs a broadcast ARP sweep of the local subnet. It is the
// fastest and most reliable of the probes but needs the arp-scan binary
// and usually elevated privileges; either missing simply yields zero
// records.
func (s *Service) probeARP(ctx context.Context) ([]Device, error) {
	out, err := exec.CommandContext(ctx, "arp-scan", "-l", "-q", "--retry=2").Output()
	if err != nil {
		return nil, err
	}
	return parseARPScan(string(out)), nil
}

// parseARPScan reads arp-scan's tab-separated output: one
// "ip<TAB>mac<TAB>vendor" line per responding host, surrounded by banner
// and summary lines that do not start with a digit.
func parseARPScan(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		if line == "" || line[0] < '0' || line[0] > '9' {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		d := Device{
			IP:     strings.TrimSpace(parts[0]),
			MAC:    strings.TrimSpace(parts[1]),
			Source: "arp",
		}
		if len(parts) > 2 {
			d.Vendor = strings.TrimSpace(parts[2])
		}
		devices = append(devices, d)
	}
	return devices
}
