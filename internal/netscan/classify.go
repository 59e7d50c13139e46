package netscan

import (
	"fmt"
	"strings"
)

// Classify infers a device category and display icon from whatever signals
// the record carries. It is a pure function: heuristics run on every call
// so table updates take effect without touching stored records.
//
// Precedence, first match wins: manual override, hostname pattern, mDNS
// services, fingerprint ports, SSDP payload, vendor hint, free-text
// fallback.
func Classify(d *Device) (category, icon string) {
	category = classifyCategory(d)
	icon = categoryIcons[category]
	if icon == "" {
		icon = categoryIcons["Unknown"]
	}
	return category, icon
}

func classifyCategory(d *Device) string {
	if d.ManualType != "" {
		return d.ManualType
	}
	if _, cat := matchHostname(d); cat != "" {
		return cat
	}
	if cat := matchMDNSServices(d.MDNSServices); cat != "" {
		return cat
	}
	if cat := matchPorts(d.OpenPorts); cat != "" {
		return cat
	}
	if cat := matchSSDP(d.SSDPInfo); cat != "" {
		return cat
	}
	if cat := matchVendor(d.Vendor); cat != "" {
		return cat
	}
	if cat := matchFreeText(d); cat != "" {
		return cat
	}
	return "Unknown"
}

// ModelName returns the product name from the hostname table when one
// matches, otherwise the category.
func ModelName(d *Device) string {
	if name, _ := matchHostname(d); name != "" {
		return name
	}
	cat, _ := Classify(d)
	return cat
}

func matchHostname(d *Device) (name, category string) {
	hostname := d.Hostname
	if hostname == "" {
		hostname = d.MDNSName
	}
	if hostname == "" {
		return "", ""
	}
	for _, rule := range hostnameRules {
		if rule.pattern.MatchString(hostname) {
			return rule.name, rule.category
		}
	}
	return "", ""
}

func matchMDNSServices(services []string) string {
	if len(services) == 0 {
		return ""
	}
	joined := strings.ToLower(strings.Join(services, " "))
	for _, hint := range mdnsHints {
		if strings.Contains(joined, hint.substr) {
			return hint.category
		}
	}
	return ""
}

func matchPorts(open []int) string {
	if len(open) == 0 {
		return ""
	}
	set := make(map[int]struct{}, len(open))
	for _, p := range open {
		set[p] = struct{}{}
	}
	for _, fp := range fingerprintPorts {
		if _, ok := set[fp.port]; ok && fp.category != "" {
			return fp.category
		}
	}
	return ""
}

func matchSSDP(payload string) string {
	if payload == "" {
		return ""
	}
	lower := strings.ToLower(payload)
	for _, hint := range ssdpHints {
		if strings.Contains(lower, hint.substr) {
			return hint.category
		}
	}
	return ""
}

func matchVendor(vendor string) string {
	if vendor == "" {
		return ""
	}
	lower := strings.ToLower(vendor)
	for _, hint := range vendorHints {
		if strings.Contains(lower, hint.substr) {
			return hint.category
		}
	}
	return ""
}

func matchFreeText(d *Device) string {
	text := strings.ToLower(fmt.Sprintf("%s %s %s %s", d.Vendor, d.Hostname, d.OSGuess, d.MDNSName))
	for _, group := range keywordGroups {
		for _, kw := range group.keywords {
			if strings.Contains(text, kw) {
				return group.category
			}
		}
	}
	return ""
}

// ServiceName maps a fingerprint port to its service label, for display.
func ServiceName(port int) string {
	if name, ok := fingerprintService(port); ok {
		return name
	}
	return fmt.Sprintf("TCP %d", port)
}

func fingerprintService(port int) (string, bool) {
	for _, fp := range fingerprintPorts {
		if fp.port == port {
			return fp.service, true
		}
	}
	return "", false
}
