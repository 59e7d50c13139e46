package netscan

import "testing"

func TestClassifyManualOverride(t *testing.T) {
	d := &Device{Hostname: "iphone-maria", ManualType: "Camera"}
	cat, _ := Classify(d)
	if cat != "Camera" {
		t.Fatalf("manual type must win, got %q", cat)
	}
}

func TestClassifyHostnameBeatsVendor(t *testing.T) {
	d := &Device{Hostname: "DESKTOP-AB12CD", Vendor: "Apple, Inc."}
	cat, _ := Classify(d)
	if cat != "Windows" {
		t.Fatalf("hostname pattern must beat vendor, got %q", cat)
	}
}

func TestClassifyMDNSServices(t *testing.T) {
	d := &Device{MDNSServices: []string{"_googlecast._tcp"}}
	cat, _ := Classify(d)
	if cat != "SmartTV" {
		t.Fatalf("expected SmartTV from cast service, got %q", cat)
	}
}

func TestClassifyPorts(t *testing.T) {
	d := &Device{OpenPorts: []int{80, 443, 9100}}
	cat, _ := Classify(d)
	if cat != "Printer" {
		t.Fatalf("expected Printer from port 9100, got %q", cat)
	}

	d = &Device{OpenPorts: []int{22, 62078}}
	cat, _ = Classify(d)
	if cat != "iOS" {
		t.Fatalf("port 62078 outranks 22, got %q", cat)
	}
}

func TestClassifyVendorFallback(t *testing.T) {
	d := &Device{Hostname: "zzz-nothing-matches", Vendor: "Synology Incorporated"}
	cat, _ := Classify(d)
	if cat != "NAS" {
		t.Fatalf("expected NAS from vendor, got %q", cat)
	}
}

func TestClassifyUnknown(t *testing.T) {
	d := &Device{IP: "192.168.1.77", MAC: "AA:BB:CC:DD:EE:FF"}
	cat, icon := Classify(d)
	if cat != "Unknown" {
		t.Fatalf("expected Unknown, got %q", cat)
	}
	if icon == "" {
		t.Fatalf("Unknown must still carry an icon")
	}
}

func TestClassifyIdempotent(t *testing.T) {
	d := &Device{Hostname: "raspberrypi", Vendor: "Raspberry Pi Trading"}
	first, _ := Classify(d)
	second, _ := Classify(d)
	if first != second {
		t.Fatalf("classification changed between calls: %q vs %q", first, second)
	}
}

func TestModelName(t *testing.T) {
	d := &Device{Hostname: "iPhone-von-Maria"}
	if got := ModelName(d); got != "iPhone" {
		t.Fatalf("expected iPhone, got %q", got)
	}
	d = &Device{MDNSName: "shellyplug-s-1234"}
	if got := ModelName(d); got != "Shelly" {
		t.Fatalf("mDNS name should feed the hostname rules, got %q", got)
	}
}

func TestServiceName(t *testing.T) {
	if got := ServiceName(9100); got != "Printer" {
		t.Fatalf("expected Printer, got %q", got)
	}
	if got := ServiceName(12345); got != "TCP 12345" {
		t.Fatalf("expected generic label, got %q", got)
	}
}
