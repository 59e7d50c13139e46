package netscan

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for probe budgets. The deep probe gets a deliberately larger
// budget than the per-cycle probes; nmap OS detection is slow.
const (
	defaultProbeTimeout = 30 * time.Second
	defaultDeepTimeout  = 2 * time.Minute
	defaultCacheWindow  = 30 * time.Second
)

// ErrUnknownDevice is returned by mutations addressed to a MAC the
// registry has never seen.
var ErrUnknownDevice = errors.New("unknown device")

// Options configures a Service.
type Options struct {
	// Subnet is the local network in CIDR form, used by the deep probe.
	Subnet string
	// LeaseFile is the dnsmasq/Pi-hole lease file path. When it does not
	// exist locally, LeaseCommand is used instead.
	LeaseFile string
	// LeaseCommand reads the lease file out of a container, e.g.
	// ["docker", "exec", "pihole", "cat", "/etc/pihole/dhcp.leases"].
	LeaseCommand []string
	// WatchLeases keeps a cached copy of the lease file refreshed through
	// fsnotify instead of re-reading it every cycle.
	WatchLeases bool
	// FTLDatabase is the Pi-hole FTL sqlite database path.
	FTLDatabase string
	// HistoryFile is where the registry is persisted.
	HistoryFile string
	// NmapBinary runs the deep probe and the per-device port sweep.
	NmapBinary string

	ProbeTimeout time.Duration
	DeepTimeout  time.Duration
	CacheWindow  time.Duration
}

func (o *Options) fillDefaults() {
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = defaultProbeTimeout
	}
	if o.DeepTimeout <= 0 {
		o.DeepTimeout = defaultDeepTimeout
	}
	if o.CacheWindow <= 0 {
		o.CacheWindow = defaultCacheWindow
	}
	if o.NmapBinary == "" {
		o.NmapBinary = "nmap"
	}
}

// probe is one discovery mechanism. Probes run concurrently within a scan
// cycle but their results are merged in declaration order, which keeps the
// "last non-empty value wins" rule deterministic per run.
type probe struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) ([]Device, error)
}

// Service owns the device registry and runs scan cycles against it.
// All exported methods are safe for concurrent use; scans are serialized
// so readers see either the pre-cycle or the fully merged state.
type Service struct {
	opts Options
	log  zerolog.Logger

	mu       sync.RWMutex
	registry map[string]*Device
	lastScan time.Time

	scanMu sync.Mutex

	probes    []probe
	deepProbe probe

	leases *leaseCache
}

// New builds a Service, loading any persisted registry. Entries reload
// with online=false: presence must be re-proven by the next scan.
func New(opts Options, log zerolog.Logger) *Service {
	opts.fillDefaults()
	s := &Service{
		opts:     opts,
		log:      log.With().Str("component", "netscan").Logger(),
		registry: make(map[string]*Device),
	}
	if opts.WatchLeases && opts.LeaseFile != "" {
		s.leases = newLeaseCache(opts.LeaseFile, s.log)
	}
	s.probes = []probe{
		{name: "arp", timeout: opts.ProbeTimeout, run: s.probeARP},
		{name: "leases", timeout: opts.ProbeTimeout, run: s.probeLeases},
		{name: "ftl", timeout: opts.ProbeTimeout, run: s.probeFTL},
		{name: "mdns", timeout: opts.ProbeTimeout, run: s.probeMDNS},
		{name: "ssdp", timeout: opts.ProbeTimeout, run: s.probeSSDP},
	}
	s.deepProbe = probe{name: "nmap", timeout: opts.DeepTimeout, run: s.probeNmap}

	if opts.HistoryFile != "" {
		if err := s.loadHistory(); err != nil {
			s.log.Warn().Err(err).Msg("could not load device history")
		}
	}
	return s
}

// Close flushes the registry to disk and releases the lease watcher.
func (s *Service) Close() error {
	if s.leases != nil {
		s.leases.close()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveHistoryLocked()
}

// Scan runs one discovery cycle and returns the devices seen online,
// sorted by IP. With useCache, a scan completed within the cache window is
// returned as-is instead of re-probing. All probes fail soft: a scan never
// returns an error for a probe failure, only an empty contribution.
func (s *Service) Scan(ctx context.Context, deep, useCache bool) []Device {
	if useCache {
		s.mu.RLock()
		fresh := !s.lastScan.IsZero() && time.Since(s.lastScan) < s.opts.CacheWindow
		s.mu.RUnlock()
		if fresh {
			return s.OnlineDevices()
		}
	}

	// One scan at a time; concurrent callers queue up and then usually hit
	// the freshness window on their own pass.
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	s.mu.Lock()
	for _, d := range s.registry {
		d.Online = false
	}
	s.mu.Unlock()

	probes := s.probes
	if deep {
		probes = append(append([]probe(nil), s.probes...), s.deepProbe)
	}

	results := make([][]Device, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, p probe) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			found, err := p.run(pctx)
			if err != nil {
				s.log.Warn().Err(err).Str("probe", p.name).Msg("probe failed")
				return
			}
			s.log.Debug().Str("probe", p.name).Int("records", len(found)).Msg("probe done")
			results[i] = found
		}(i, p)
	}
	wg.Wait()

	now := time.Now()
	s.mu.Lock()
	for _, found := range results {
		for i := range found {
			s.merge(&found[i], now)
		}
	}
	s.lastScan = now
	if err := s.saveHistoryLocked(); err != nil {
		// In-memory state stays authoritative; the next successful save
		// catches up.
		s.log.Error().Err(err).Msg("could not persist device history")
	}
	s.mu.Unlock()

	return s.OnlineDevices()
}

// merge folds one partial record into the registry. Caller holds s.mu.
// Scalar fields follow "overwrite if non-empty", list fields are unioned,
// first-seen and the counter follow creation/increment rules.
func (s *Service) merge(partial *Device, now time.Time) {
	mac := NormalizeMAC(partial.MAC)
	if mac == "" {
		// An IP with no MAC is not a usable identity.
		return
	}
	partial.MAC = mac

	existing, ok := s.registry[mac]
	if !ok {
		d := *partial
		if d.Vendor == "" {
			d.Vendor = lookupVendor(mac)
		}
		d.FirstSeen = now
		d.LastSeen = now
		d.TimesSeen = 1
		d.Online = true
		d.MDNSServices = uniqueStrings(d.MDNSServices)
		d.OpenPorts = uniqueInts(d.OpenPorts)
		s.registry[mac] = &d
		return
	}

	if partial.IP != "" {
		existing.IP = partial.IP
	}
	if !placeholder(partial.Hostname) {
		existing.Hostname = partial.Hostname
	}
	if partial.Vendor != "" {
		existing.Vendor = partial.Vendor
	}
	if partial.OSGuess != "" {
		existing.OSGuess = partial.OSGuess
	}
	if !placeholder(partial.MDNSName) {
		existing.MDNSName = partial.MDNSName
	}
	if partial.SSDPInfo != "" {
		existing.SSDPInfo = truncate(partial.SSDPInfo, maxSSDPPayload)
	}
	if partial.Source != "" {
		existing.Source = partial.Source
	}
	if len(partial.MDNSServices) > 0 {
		existing.MDNSServices = uniqueStrings(append(existing.MDNSServices, partial.MDNSServices...))
	}
	if len(partial.OpenPorts) > 0 {
		existing.OpenPorts = uniqueInts(append(existing.OpenPorts, partial.OpenPorts...))
	}
	existing.LastSeen = now
	existing.TimesSeen++
	existing.Online = true
}

// DeviceByMAC returns a copy of the record for the given hardware address.
func (s *Service) DeviceByMAC(mac string) (Device, bool) {
	mac = NormalizeMAC(mac)
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.registry[mac]
	if !ok {
		return Device{}, false
	}
	return copyDevice(d), true
}

// DeviceByIP returns a copy of the record currently holding the given IP.
func (s *Service) DeviceByIP(ip string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.registry {
		if d.IP == ip {
			return copyDevice(d), true
		}
	}
	return Device{}, false
}

// AllDevices returns every known record, online and offline.
func (s *Service) AllDevices() []Device {
	return s.filtered(func(*Device) bool { return true })
}

// OnlineDevices returns the records observed in the most recent cycle.
func (s *Service) OnlineDevices() []Device {
	return s.filtered(func(d *Device) bool { return d.Online })
}

// OfflineDevices returns records known from earlier cycles but not
// observed in the most recent one.
func (s *Service) OfflineDevices() []Device {
	return s.filtered(func(d *Device) bool { return !d.Online })
}

// NewDevices returns records first observed within the given window.
func (s *Service) NewDevices(within time.Duration) []Device {
	cutoff := time.Now().Add(-within)
	return s.filtered(func(d *Device) bool { return d.FirstSeen.After(cutoff) })
}

func (s *Service) filtered(keep func(*Device) bool) []Device {
	s.mu.RLock()
	out := make([]Device, 0, len(s.registry))
	for _, d := range s.registry {
		if keep(d) {
			out = append(out, copyDevice(d))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return ipSortKey(out[i].IP) < ipSortKey(out[j].IP)
	})
	return out
}

// SetDeviceType records a manual type override; it takes precedence over
// every classification heuristic.
func (s *Service) SetDeviceType(mac, deviceType string) error {
	mac = NormalizeMAC(mac)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.registry[mac]
	if !ok {
		return ErrUnknownDevice
	}
	d.ManualType = deviceType
	return s.saveHistoryLocked()
}

// ForgetDevice removes a record entirely. This is the only way an identity
// leaves the registry.
func (s *Service) ForgetDevice(mac string) error {
	mac = NormalizeMAC(mac)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registry[mac]; !ok {
		return ErrUnknownDevice
	}
	delete(s.registry, mac)
	return s.saveHistoryLocked()
}

// Statistics summarises the registry for dashboards.
type Statistics struct {
	TotalKnown int            `json:"totalKnown"`
	Online     int            `json:"online"`
	Offline    int            `json:"offline"`
	ByType     map[string]int `json:"byType"`
	ByVendor   map[string]int `json:"byVendor"`
	LastScan   time.Time      `json:"lastScan"`
}

// Stats computes counts by category and vendor over the online set.
func (s *Service) Stats() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Statistics{
		TotalKnown: len(s.registry),
		ByType:     make(map[string]int),
		ByVendor:   make(map[string]int),
		LastScan:   s.lastScan,
	}
	for _, d := range s.registry {
		if !d.Online {
			continue
		}
		stats.Online++
		cat, _ := Classify(d)
		stats.ByType[cat]++
		vendor := d.Vendor
		if vendor == "" {
			vendor = "Unknown"
		}
		stats.ByVendor[vendor]++
	}
	stats.Offline = stats.TotalKnown - stats.Online
	return stats
}

func copyDevice(d *Device) Device {
	out := *d
	out.MDNSServices = append([]string(nil), d.MDNSServices...)
	out.OpenPorts = append([]int(nil), d.OpenPorts...)
	return out
}

// ipSortKey maps a dotted quad to an integer so 192.168.1.9 sorts before
// 192.168.1.10. Unparseable addresses sort last.
func ipSortKey(ip string) uint64 {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return 1 << 40
	}
	var key uint64
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return 1 << 40
		}
		key = key<<8 | uint64(n)
	}
	return key
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func uniqueInts(values []int) []int {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(values))
	var out []int
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
