package netscan

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// arpTable is an IP → canonical MAC snapshot of the kernel's neighbour
// table. The mDNS and SSDP probes take one snapshot per pass and resolve
// discovered IPs against it; an IP the table has not learned yet is
// dropped for that cycle, not retried.
type arpTable map[string]string

func (t arpTable) lookup(ip string) string {
	return t[ip]
}

// loadARPTable reads /proc/net/arp, falling back to the arp binary where
// procfs is unavailable.
func loadARPTable(ctx context.Context) arpTable {
	table := make(arpTable)

	data, err := os.ReadFile("/proc/net/arp")
	if err == nil {
		lines := strings.Split(string(data), "\n")
		for _, line := range lines[1:] {
			fields := whitespacePattern.Split(strings.TrimSpace(line), -1)
			if len(fields) < 4 {
				continue
			}
			if mac := NormalizeMAC(fields[3]); mac != "" && mac != "00:00:00:00:00:00" {
				table[fields[0]] = mac
			}
		}
		return table
	}

	out, err := exec.CommandContext(ctx, "arp", "-an").Output()
	if err != nil {
		return table
	}
	for _, line := range strings.Split(string(out), "\n") {
		ipMatch := ipPattern.FindString(line)
		mac := NormalizeMAC(macPattern.FindString(line))
		if ipMatch != "" && mac != "" {
			table[ipMatch] = mac
		}
	}
	return table
}

var ipPattern = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+`)
