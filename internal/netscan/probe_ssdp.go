package netscan

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"
)

const ssdpSearch = "M-SEARCH * HTTP/1.1\r\n" +
	"HOST: 239.255.255.250:1900\r\n" +
	"MAN: \"ssdp:discover\"\r\n" +
	"MX: 2\r\n" +
	"ST: ssdp:all\r\n\r\n"

// probeSSDP multicasts an M-SEARCH and collects responses until the probe
// window closes. UPnP stacks identify themselves in SERVER and ST headers,
// which is often the only self-description a TV or console ever gives.
func (s *Service) probeSSDP(ctx context.Context) ([]Device, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	dst := &net.UDPAddr{IP: net.IPv4(239, 255, 255, 250), Port: 1900}
	if _, err := conn.WriteToUDP([]byte(ssdpSearch), dst); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.opts.ProbeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	info := make(map[string][]string)
	buf := make([]byte, 4096)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		payload := string(buf[:n])
		desc := parseSSDPResponse(payload)
		if desc == "" {
			continue
		}
		// The LOCATION header names the device's own address; prefer it
		// over the packet source, which a relay could have rewritten.
		ip := ssdpLocationIP(payload)
		if ip == "" {
			ip = addr.IP.String()
		}
		info[ip] = appendUnique(info[ip], desc)
	}

	if len(info) == 0 {
		return nil, nil
	}

	arp := loadARPTable(ctx)

	var devices []Device
	for ip, descs := range info {
		mac := arp.lookup(ip)
		if mac == "" {
			continue
		}
		devices = append(devices, Device{
			MAC:      mac,
			IP:       ip,
			SSDPInfo: truncate(strings.Join(descs, " | "), maxSSDPPayload),
			Source:   "ssdp",
		})
	}
	return devices, nil
}

// parseSSDPResponse pulls the identifying headers out of a unicast
// M-SEARCH reply.
func parseSSDPResponse(payload string) string {
	var parts []string
	for _, line := range strings.Split(payload, "\r\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "SERVER", "ST":
			parts = appendUnique(parts, value)
		}
	}
	return strings.Join(parts, " | ")
}

// ssdpLocationIP extracts the host address from the LOCATION header, or
// "" when the header is missing or unparseable.
func ssdpLocationIP(payload string) string {
	for _, line := range strings.Split(payload, "\r\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "LOCATION") {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(value))
		if err != nil {
			return ""
		}
		host := u.Hostname()
		if net.ParseIP(host) == nil {
			return ""
		}
		return host
	}
	return ""
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
