package netscan

import (
	"regexp"
	"strings"
	"time"

	"github.com/endobit/oui"
)

// maxSSDPPayload caps the stored SSDP header text per device.
const maxSSDPPayload = 200

var macPattern = regexp.MustCompile(`(?i)([0-9a-f]{2}[:-]){5}([0-9a-f]{2})`)

// Device is one entry in the registry. The MAC address is the identity:
// it is the only field that is stable across scan cycles, IPs are not.
type Device struct {
	MAC          string    `json:"mac"`
	IP           string    `json:"ip"`
	Hostname     string    `json:"hostname,omitempty"`
	Vendor       string    `json:"vendor,omitempty"`
	OSGuess      string    `json:"osGuess,omitempty"`
	OpenPorts    []int     `json:"openPorts,omitempty"`
	MDNSName     string    `json:"mdnsName,omitempty"`
	MDNSServices []string  `json:"mdnsServices,omitempty"`
	SSDPInfo     string    `json:"ssdpInfo,omitempty"`
	ManualType   string    `json:"manualType,omitempty"`
	Source       string    `json:"source,omitempty"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastSeen     time.Time `json:"lastSeen"`
	TimesSeen    int       `json:"timesSeen"`
	Online       bool      `json:"online"`
}

// NormalizeMAC converts any common MAC notation to the canonical
// colon-separated uppercase form, or returns "" if the input does not
// contain a MAC address.
func NormalizeMAC(raw string) string {
	if raw == "" {
		return ""
	}
	raw = strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(raw, "-", ":"), ".", ":"))
	match := macPattern.FindString(raw)
	if match == "" {
		return ""
	}
	parts := strings.Split(match, ":")
	if len(parts) != 6 {
		return ""
	}
	for i := range parts {
		if len(parts[i]) == 1 {
			parts[i] = "0" + parts[i]
		}
	}
	return strings.Join(parts, ":")
}

// lookupVendor resolves the manufacturer from the OUI prefix.
func lookupVendor(mac string) string {
	if mac == "" {
		return ""
	}
	return oui.Vendor(strings.ToLower(mac))
}

// placeholder reports values the lease file and FTL database use when the
// client never sent a hostname.
func placeholder(name string) bool {
	switch name {
	case "", "*", "?", "unknown":
		return true
	}
	return false
}

// DisplayName picks the friendliest available name: mDNS names tend to be
// set by users, hostnames by the OS, vendors by the factory.
func DisplayName(d *Device) string {
	if !placeholder(d.MDNSName) {
		return strings.TrimSuffix(d.MDNSName, ".local")
	}
	if !placeholder(d.Hostname) && d.Hostname != d.IP {
		return d.Hostname
	}
	if d.Vendor != "" {
		return d.Vendor
	}
	return d.IP
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
