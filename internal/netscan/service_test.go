package netscan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestService(t *testing.T, results ...[]Device) *Service {
	t.Helper()
	s := New(Options{}, zerolog.Nop())
	s.probes = nil
	for _, r := range results {
		r := r
		s.probes = append(s.probes, probe{
			name:    "fake",
			timeout: time.Second,
			run: func(context.Context) ([]Device, error) {
				return r, nil
			},
		})
	}
	return s
}

func TestScanIdentityStableAcrossIPChange(t *testing.T) {
	s := newTestService(t, []Device{
		{MAC: "aa:bb:cc:dd:ee:01", IP: "192.168.1.50", Hostname: "laptop", Source: "arp"},
	})
	s.Scan(context.Background(), false, false)

	s.probes[0].run = func(context.Context) ([]Device, error) {
		return []Device{{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.99", Source: "arp"}}, nil
	}
	s.Scan(context.Background(), false, false)

	all := s.AllDevices()
	if len(all) != 1 {
		t.Fatalf("expected one identity across IP change, got %d", len(all))
	}
	d := all[0]
	if d.IP != "192.168.1.99" {
		t.Fatalf("expected updated IP, got %s", d.IP)
	}
	if d.Hostname != "laptop" {
		t.Fatalf("hostname must survive a record without one, got %q", d.Hostname)
	}
	if d.TimesSeen != 2 {
		t.Fatalf("expected 2 observations, got %d", d.TimesSeen)
	}
}

func TestScanMarksMissingDevicesOffline(t *testing.T) {
	s := newTestService(t, []Device{
		{MAC: "aa:bb:cc:dd:ee:01", IP: "192.168.1.10"},
		{MAC: "aa:bb:cc:dd:ee:02", IP: "192.168.1.11"},
	})
	s.Scan(context.Background(), false, false)

	s.probes[0].run = func(context.Context) ([]Device, error) {
		return []Device{{MAC: "aa:bb:cc:dd:ee:01", IP: "192.168.1.10"}}, nil
	}
	online := s.Scan(context.Background(), false, false)

	if len(online) != 1 {
		t.Fatalf("expected 1 online device, got %d", len(online))
	}
	offline := s.OfflineDevices()
	if len(offline) != 1 || offline[0].MAC != "AA:BB:CC:DD:EE:02" {
		t.Fatalf("expected the missing device offline, got %+v", offline)
	}
	if len(s.AllDevices()) != 2 {
		t.Fatalf("offline devices must stay in the registry")
	}
}

func TestScanMergePreservesNonEmpty(t *testing.T) {
	s := newTestService(t,
		[]Device{{MAC: "aa:bb:cc:dd:ee:03", IP: "192.168.1.20", Hostname: "nas", Source: "arp"}},
		[]Device{{MAC: "aa:bb:cc:dd:ee:03", IP: "192.168.1.20", Hostname: "*", MDNSServices: []string{"_smb._tcp"}, Source: "mdns"}},
	)
	s.Scan(context.Background(), false, false)

	d, ok := s.DeviceByMAC("aa:bb:cc:dd:ee:03")
	if !ok {
		t.Fatalf("device not found")
	}
	if d.Hostname != "nas" {
		t.Fatalf("placeholder must not overwrite a real hostname, got %q", d.Hostname)
	}
	if len(d.MDNSServices) != 1 || d.MDNSServices[0] != "_smb._tcp" {
		t.Fatalf("expected merged services, got %v", d.MDNSServices)
	}
	if d.Source != "mdns" {
		t.Fatalf("later probe should set source, got %q", d.Source)
	}
	// One registry entry but two probe records: each contributes an observation.
	if d.TimesSeen != 2 {
		t.Fatalf("expected 2 observations, got %d", d.TimesSeen)
	}
}

func TestScanDropsRecordsWithoutMAC(t *testing.T) {
	s := newTestService(t, []Device{
		{MAC: "", IP: "192.168.1.30"},
		{MAC: "garbage", IP: "192.168.1.31"},
		{MAC: "aa:bb:cc:dd:ee:04", IP: "192.168.1.32"},
	})
	online := s.Scan(context.Background(), false, false)
	if len(online) != 1 {
		t.Fatalf("expected only the MAC-bearing record, got %d", len(online))
	}
}

func TestScanProbeFailureIsIsolated(t *testing.T) {
	s := newTestService(t, []Device{
		{MAC: "aa:bb:cc:dd:ee:05", IP: "192.168.1.40"},
	})
	s.probes = append(s.probes, probe{
		name:    "broken",
		timeout: time.Second,
		run: func(context.Context) ([]Device, error) {
			return nil, errors.New("boom")
		},
	})
	online := s.Scan(context.Background(), false, false)
	if len(online) != 1 {
		t.Fatalf("a failing probe must not sink the scan, got %d devices", len(online))
	}
}

func TestScanResultsSortedByIP(t *testing.T) {
	s := newTestService(t, []Device{
		{MAC: "aa:bb:cc:dd:ee:10", IP: "192.168.1.10"},
		{MAC: "aa:bb:cc:dd:ee:02", IP: "192.168.1.2"},
		{MAC: "aa:bb:cc:dd:ee:09", IP: "192.168.1.9"},
	})
	online := s.Scan(context.Background(), false, false)
	want := []string{"192.168.1.2", "192.168.1.9", "192.168.1.10"}
	for i, d := range online {
		if d.IP != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], d.IP)
		}
	}
}

func TestScanCacheWindow(t *testing.T) {
	calls := 0
	s := New(Options{CacheWindow: time.Hour}, zerolog.Nop())
	s.probes = []probe{{
		name:    "fake",
		timeout: time.Second,
		run: func(context.Context) ([]Device, error) {
			calls++
			return []Device{{MAC: "aa:bb:cc:dd:ee:06", IP: "192.168.1.60"}}, nil
		},
	}}

	s.Scan(context.Background(), false, true)
	s.Scan(context.Background(), false, true)
	if calls != 1 {
		t.Fatalf("second scan within the window must use the cache, got %d probe calls", calls)
	}

	s.Scan(context.Background(), false, false)
	if calls != 2 {
		t.Fatalf("useCache=false must force a fresh cycle, got %d probe calls", calls)
	}
}

func TestFirstSeenImmutable(t *testing.T) {
	s := newTestService(t, []Device{
		{MAC: "aa:bb:cc:dd:ee:07", IP: "192.168.1.70"},
	})
	s.Scan(context.Background(), false, false)
	d1, _ := s.DeviceByMAC("aa:bb:cc:dd:ee:07")

	time.Sleep(10 * time.Millisecond)
	s.Scan(context.Background(), false, false)
	d2, _ := s.DeviceByMAC("aa:bb:cc:dd:ee:07")

	if !d1.FirstSeen.Equal(d2.FirstSeen) {
		t.Fatalf("first-seen changed between scans: %v vs %v", d1.FirstSeen, d2.FirstSeen)
	}
	if !d2.LastSeen.After(d1.LastSeen) {
		t.Fatalf("last-seen must advance, got %v then %v", d1.LastSeen, d2.LastSeen)
	}
}

func TestSetDeviceTypeAndForget(t *testing.T) {
	s := newTestService(t, []Device{
		{MAC: "aa:bb:cc:dd:ee:08", IP: "192.168.1.80"},
	})
	s.Scan(context.Background(), false, false)

	if err := s.SetDeviceType("aa:bb:cc:dd:ee:08", "Camera"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, _ := s.DeviceByMAC("aa:bb:cc:dd:ee:08")
	if cat, _ := Classify(&d); cat != "Camera" {
		t.Fatalf("expected manual category, got %q", cat)
	}

	if err := s.SetDeviceType("aa:bb:cc:dd:ee:99", "X"); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}

	if err := s.ForgetDevice("aa:bb:cc:dd:ee:08"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.DeviceByMAC("aa:bb:cc:dd:ee:08"); ok {
		t.Fatalf("device should be gone after forget")
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "devices.json")

	s := New(Options{HistoryFile: file}, zerolog.Nop())
	s.probes = []probe{{
		name:    "fake",
		timeout: time.Second,
		run: func(context.Context) ([]Device, error) {
			return []Device{{MAC: "aa:bb:cc:dd:ee:09", IP: "192.168.1.90", Hostname: "pc"}}, nil
		},
	}}
	s.Scan(context.Background(), false, false)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("history file not written: %v", err)
	}

	reloaded := New(Options{HistoryFile: file}, zerolog.Nop())
	d, ok := reloaded.DeviceByMAC("aa:bb:cc:dd:ee:09")
	if !ok {
		t.Fatalf("device lost across restart")
	}
	if d.Hostname != "pc" {
		t.Fatalf("expected persisted hostname, got %q", d.Hostname)
	}
	if d.Online {
		t.Fatalf("reloaded devices must start offline")
	}
	if d.TimesSeen != 1 {
		t.Fatalf("expected persisted counter, got %d", d.TimesSeen)
	}
}

func TestStats(t *testing.T) {
	s := newTestService(t, []Device{
		{MAC: "aa:bb:cc:dd:ee:0a", IP: "192.168.1.100", Hostname: "iphone-a", Vendor: "Apple"},
		{MAC: "aa:bb:cc:dd:ee:0b", IP: "192.168.1.101", Vendor: "Apple"},
	})
	s.Scan(context.Background(), false, false)

	stats := s.Stats()
	if stats.TotalKnown != 2 || stats.Online != 2 || stats.Offline != 0 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.ByVendor["Apple"] != 2 {
		t.Fatalf("expected 2 Apple devices, got %d", stats.ByVendor["Apple"])
	}
	if stats.ByType["iOS"] != 1 {
		t.Fatalf("expected one iOS classification, got %v", stats.ByType)
	}
}

func TestNewDevices(t *testing.T) {
	s := newTestService(t, []Device{
		{MAC: "aa:bb:cc:dd:ee:0c", IP: "192.168.1.110"},
	})
	s.Scan(context.Background(), false, false)

	if got := s.NewDevices(time.Minute); len(got) != 1 {
		t.Fatalf("a just-seen device is new, got %d", len(got))
	}
	if got := s.NewDevices(0); len(got) != 0 {
		t.Fatalf("zero window must match nothing, got %d", len(got))
	}
}

func TestIPSortKey(t *testing.T) {
	if ipSortKey("192.168.1.9") >= ipSortKey("192.168.1.10") {
		t.Fatalf("numeric ordering broken")
	}
	if ipSortKey("not-an-ip") != 1<<40 {
		t.Fatalf("unparseable IPs must sort last")
	}
}
