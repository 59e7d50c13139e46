package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Subnet == "" || cfg.LeaseFile == "" || cfg.Nmap == "" {
		t.Fatalf("defaults incomplete: %+v", cfg)
	}
	if cfg.ScanInterval != 5*time.Minute {
		t.Fatalf("unexpected default interval: %v", cfg.ScanInterval)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netpanel.conf")
	content := `subnet = 10.0.0.0/24
gateway = 10.0.0.1
leasecommand = docker exec pihole cat /etc/pihole/dhcp.leases
scaninterval = 2m
tempthreshold = 80
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Subnet != "10.0.0.0/24" || cfg.Gateway != "10.0.0.1" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.ScanInterval != 2*time.Minute {
		t.Fatalf("duration not parsed: %v", cfg.ScanInterval)
	}
	if cfg.TempThreshold != 80 {
		t.Fatalf("float not parsed: %v", cfg.TempThreshold)
	}
	// Unset keys keep their defaults.
	if cfg.Nmap != "nmap" {
		t.Fatalf("default lost: %q", cfg.Nmap)
	}

	args := cfg.LeaseCommandArgs()
	if len(args) != 6 || args[0] != "docker" {
		t.Fatalf("unexpected lease command args: %v", args)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NETPANEL_SUBNET", "172.16.0.0/24")
	t.Setenv("NETPANEL_SCANINTERVAL", "90s")

	cfg := New("")
	if cfg.Subnet != "172.16.0.0/24" {
		t.Fatalf("env override not applied: %q", cfg.Subnet)
	}
	if cfg.ScanInterval != 90*time.Second {
		t.Fatalf("env duration not applied: %v", cfg.ScanInterval)
	}
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/np"
	if cfg.HistoryPath() != "/tmp/np/device_history.json" {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.DevicesPath() != "/tmp/np/known_devices.json" {
		t.Fatalf("unexpected devices path: %q", cfg.DevicesPath())
	}
}

func TestMissingFileKeepsDefaults(t *testing.T) {
	cfg := New(filepath.Join(t.TempDir(), "absent.conf"))
	if cfg.Subnet != DefaultConfig().Subnet {
		t.Fatalf("missing file must keep defaults, got %q", cfg.Subnet)
	}
}
