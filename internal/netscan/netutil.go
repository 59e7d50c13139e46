package netscan

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	ping "github.com/go-ping/ping"
	"github.com/miekg/dns"
)

// PingResult describes one reachability check.
type PingResult struct {
	Target     string        `json:"target"`
	Reachable  bool          `json:"reachable"`
	AvgLatency time.Duration `json:"avgLatency"`
	PacketLoss float64       `json:"packetLoss"`
}

// ConnectivityReport covers the hops a home network depends on: the local
// gateway, two public resolvers, and a name that exercises DNS end to end.
type ConnectivityReport struct {
	Checks []PingResult `json:"checks"`
	OK     bool         `json:"ok"`
}

// CheckConnectivity pings the gateway and a fixed set of public targets.
// OK means every target answered.
func CheckConnectivity(ctx context.Context, gateway string) ConnectivityReport {
	targets := []string{}
	if gateway != "" {
		targets = append(targets, gateway)
	}
	targets = append(targets, "8.8.8.8", "1.1.1.1", "google.com")

	report := ConnectivityReport{OK: true}
	for _, target := range targets {
		result := pingTarget(ctx, target, 2)
		if !result.Reachable {
			report.OK = false
		}
		report.Checks = append(report.Checks, result)
	}
	return report
}

func pingTarget(ctx context.Context, target string, attempts int) PingResult {
	result := PingResult{Target: target, PacketLoss: 100}

	pinger, err := ping.NewPinger(target)
	if err != nil {
		return result
	}
	pinger.SetPrivileged(runtime.GOOS == "windows")
	pinger.Count = attempts
	pinger.Timeout = time.Duration(attempts) * 2 * time.Second

	done := make(chan *ping.Statistics, 1)
	pinger.OnFinish = func(stats *ping.Statistics) {
		done <- stats
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- pinger.Run()
	}()

	select {
	case <-ctx.Done():
		pinger.Stop()
		return result
	case err := <-errCh:
		if err != nil {
			return result
		}
	}

	select {
	case stats := <-done:
		result.PacketLoss = stats.PacketLoss
		if stats.PacketsRecv > 0 {
			result.Reachable = true
			result.AvgLatency = stats.AvgRtt
		}
	case <-time.After(2 * time.Second):
	}
	return result
}

// DNSRecord is one answer from a lookup.
type DNSRecord struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	TTL   uint32 `json:"ttl"`
}

var dnsQueryTypes = []uint16{
	dns.TypeA,
	dns.TypeAAAA,
	dns.TypeCNAME,
	dns.TypeMX,
	dns.TypeNS,
	dns.TypeTXT,
}

// DNSLookup queries the given resolver for the common record types. A name
// with no records at all is reported as an error; missing individual types
// are normal.
func DNSLookup(ctx context.Context, name, server string) ([]DNSRecord, error) {
	if server == "" {
		server = "8.8.8.8:53"
	} else if !strings.Contains(server, ":") {
		server += ":53"
	}

	client := &dns.Client{Timeout: 3 * time.Second}
	fqdn := dns.Fqdn(name)

	var records []DNSRecord
	for _, qtype := range dnsQueryTypes {
		msg := new(dns.Msg)
		msg.SetQuestion(fqdn, qtype)
		msg.RecursionDesired = true

		reply, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil {
			continue
		}
		for _, answer := range reply.Answer {
			header := answer.Header()
			value := strings.TrimPrefix(answer.String(), header.String())
			records = append(records, DNSRecord{
				Type:  dns.TypeToString[header.Rrtype],
				Value: strings.TrimSpace(value),
				TTL:   header.Ttl,
			})
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no records for %s", name)
	}
	return records, nil
}

// TracerouteHop is one line of traceroute output. Address is empty when
// the hop did not answer.
type TracerouteHop struct {
	Number  int    `json:"number"`
	Address string `json:"address"`
	RTT     string `json:"rtt"`
}

// Traceroute shells out to the system traceroute with numeric output and
// a bounded hop count.
func Traceroute(ctx context.Context, target string) ([]TracerouteHop, error) {
	out, err := exec.CommandContext(ctx, "traceroute", "-n", "-m", "15", "-w", "2", target).Output()
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("traceroute %s: %w", target, err)
	}
	return parseTraceroute(string(out)), nil
}

var hopPattern = regexp.MustCompile(`^\s*(\d+)\s+(\S+)(?:\s+([\d.]+ ms))?`)

func parseTraceroute(out string) []TracerouteHop {
	var hops []TracerouteHop
	for _, line := range strings.Split(out, "\n") {
		m := hopPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		number, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		hop := TracerouteHop{Number: number}
		if m[2] != "*" {
			hop.Address = m[2]
			hop.RTT = m[3]
		}
		hops = append(hops, hop)
	}
	return hops
}

// PortStatus reports a single TCP connect check.
type PortStatus struct {
	Port    int           `json:"port"`
	Open    bool          `json:"open"`
	Service string        `json:"service"`
	Latency time.Duration `json:"latency"`
}

// CheckPort attempts a TCP connect with a short timeout.
func CheckPort(host string, port int, timeout time.Duration) PortStatus {
	status := PortStatus{Port: port, Service: ServiceName(port)}
	start := time.Now()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return status
	}
	conn.Close()
	status.Open = true
	status.Latency = time.Since(start)
	return status
}

// ScanDevicePorts runs a fast TCP scan of the common ports on one host
// and folds open ports back into the registry entry when the host is a
// known device.
func (s *Service) ScanDevicePorts(ctx context.Context, ip string) ([]PortStatus, error) {
	out, err := exec.CommandContext(ctx, s.opts.NmapBinary, "-sT", "-F", "--open", ip).Output()
	if err != nil {
		return nil, fmt.Errorf("port scan %s: %w", ip, err)
	}
	ports := parsePortScan(string(out))

	if len(ports) > 0 {
		open := make([]int, 0, len(ports))
		for _, p := range ports {
			open = append(open, p.Port)
		}
		s.mu.Lock()
		for _, d := range s.registry {
			if d.IP == ip {
				d.OpenPorts = uniqueInts(append(d.OpenPorts, open...))
				break
			}
		}
		s.mu.Unlock()
	}
	return ports, nil
}

var portLinePattern = regexp.MustCompile(`^(\d+)/tcp\s+open\s+(\S+)`)

func parsePortScan(out string) []PortStatus {
	var ports []PortStatus
	for _, line := range strings.Split(out, "\n") {
		m := portLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		port, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		// Local fingerprint labels are friendlier; nmap's name covers the
		// ports outside the fingerprint table.
		name, ok := fingerprintService(port)
		if !ok {
			name = m[2]
		}
		ports = append(ports, PortStatus{Port: port, Open: true, Service: name})
	}
	return ports
}
