package system

import (
	"os"
	"path/filepath"
	"testing"
)

func TestThermalZoneTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp")
	if err := os.WriteFile(path, []byte("48500\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := thermalZoneTemperature(path); got != 48.5 {
		t.Fatalf("expected 48.5, got %v", got)
	}
}

func TestThermalZoneTemperatureUnavailable(t *testing.T) {
	if got := thermalZoneTemperature(filepath.Join(t.TempDir(), "missing")); got != 0 {
		t.Fatalf("missing sensor must read as 0, got %v", got)
	}

	path := filepath.Join(t.TempDir(), "temp")
	os.WriteFile(path, []byte("garbage"), 0o644)
	if got := thermalZoneTemperature(path); got != 0 {
		t.Fatalf("unparseable sensor must read as 0, got %v", got)
	}
}
