package netscan

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
)

var (
	nmapReportPattern = regexp.MustCompile(`^Nmap scan report for (?:(\S+) \()?(\d+\.\d+\.\d+\.\d+)\)?`)
	nmapMACPattern    = regexp.MustCompile(`^MAC Address: ([0-9A-Fa-f:]{17})(?: \((.*)\))?`)
)

const maxOSGuess = 50

// probeNmap runs the deep pass: host discovery plus OS fingerprinting.
// OS detection needs raw sockets, so when the privileged invocation fails
// we retry with plain host discovery.
func (s *Service) probeNmap(ctx context.Context) ([]Device, error) {
	out, err := exec.CommandContext(ctx, s.opts.NmapBinary,
		"-sn", "-O", "--osscan-limit", s.opts.Subnet).Output()
	if err != nil {
		out, err = exec.CommandContext(ctx, s.opts.NmapBinary, "-sn", s.opts.Subnet).Output()
		if err != nil {
			return nil, err
		}
	}
	return parseNmapSweep(string(out)), nil
}

// parseNmapSweep walks nmap's human-readable output. Each "scan report"
// line opens a host block; MAC and OS lines attach to the current one.
func parseNmapSweep(out string) []Device {
	var devices []Device
	var current *Device
	flush := func() {
		if current != nil && current.MAC != "" {
			devices = append(devices, *current)
		}
		current = nil
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if m := nmapReportPattern.FindStringSubmatch(line); m != nil {
			flush()
			current = &Device{Hostname: m[1], IP: m[2], Source: "nmap"}
			continue
		}
		if current == nil {
			continue
		}
		if m := nmapMACPattern.FindStringSubmatch(line); m != nil {
			current.MAC = m[1]
			current.Vendor = m[2]
			continue
		}
		if rest, ok := strings.CutPrefix(line, "OS details: "); ok {
			current.OSGuess = truncate(rest, maxOSGuess)
			continue
		}
		if rest, ok := strings.CutPrefix(line, "Running: "); ok && current.OSGuess == "" {
			current.OSGuess = truncate(rest, maxOSGuess)
		}
	}
	flush()
	return devices
}
