package netscan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLeaseCacheRefreshesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dhcp.leases")
	lease := "1735689600 aa:bb:cc:00:00:01 192.168.1.10 laptop *\n"
	if err := os.WriteFile(path, []byte(lease), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := newLeaseCache(path, zerolog.Nop())
	defer c.close()

	if c.content() != lease {
		t.Fatalf("cache did not load the initial file")
	}
}

func TestProbeLeasesRecoversFromLateFile(t *testing.T) {
	// The lease file does not exist yet when the service starts, so the
	// watcher cannot attach and the cache stays empty.
	path := filepath.Join(t.TempDir(), "dhcp.leases")
	s := New(Options{LeaseFile: path, WatchLeases: true}, zerolog.Nop())
	defer s.Close()

	if devices, _ := s.probeLeases(context.Background()); len(devices) != 0 {
		t.Fatalf("expected no leases before the file exists, got %d", len(devices))
	}

	lease := "1735689600 aa:bb:cc:00:00:02 192.168.1.11 phone *\n"
	if err := os.WriteFile(path, []byte(lease), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	devices, err := s.probeLeases(context.Background())
	if err != nil {
		t.Fatalf("probe after file appeared: %v", err)
	}
	if len(devices) != 1 || devices[0].Hostname != "phone" {
		t.Fatalf("probe must pick up a lease file created after startup, got %+v", devices)
	}
}

func TestProbeLeasesPrefersCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dhcp.leases")
	lease := "1735689600 aa:bb:cc:00:00:03 192.168.1.12 nas *\n"
	if err := os.WriteFile(path, []byte(lease), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := New(Options{LeaseFile: path, WatchLeases: true}, zerolog.Nop())
	defer s.Close()

	devices, err := s.probeLeases(context.Background())
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if len(devices) != 1 || devices[0].IP != "192.168.1.12" {
		t.Fatalf("unexpected leases: %+v", devices)
	}
}
