package netscan

import "regexp"

// The tables below drive the classification cascade. They are evaluated in
// declaration order, most specific entries first, so keep that ordering
// when extending them.

type hostnameRule struct {
	pattern  *regexp.Regexp
	name     string
	category string
}

var hostnameRules = []hostnameRule{
	// Apple
	{regexp.MustCompile(`(?i)^iphone`), "iPhone", "iOS"},
	{regexp.MustCompile(`(?i)^ipad`), "iPad", "iOS"},
	{regexp.MustCompile(`(?i)^macbook`), "MacBook", "macOS"},
	{regexp.MustCompile(`(?i)^imac`), "iMac", "macOS"},
	{regexp.MustCompile(`(?i)^mac-?mini`), "Mac Mini", "macOS"},
	{regexp.MustCompile(`(?i)^mac-?pro`), "Mac Pro", "macOS"},
	{regexp.MustCompile(`(?i)^apple-?tv`), "Apple TV", "tvOS"},
	{regexp.MustCompile(`(?i)^homepod`), "HomePod", "SmartSpeaker"},
	{regexp.MustCompile(`(?i)^airpods`), "AirPods", "Audio"},
	{regexp.MustCompile(`(?i)^watch`), "Apple Watch", "watchOS"},
	// Android
	{regexp.MustCompile(`(?i)^android-?[a-f0-9]+`), "Android", "Android"},
	{regexp.MustCompile(`(?i)^galaxy`), "Samsung Galaxy", "Android"},
	{regexp.MustCompile(`(?i)^sm-[a-z]`), "Samsung", "Android"},
	{regexp.MustCompile(`(?i)^pixel`), "Google Pixel", "Android"},
	{regexp.MustCompile(`(?i)^oneplus`), "OnePlus", "Android"},
	{regexp.MustCompile(`(?i)^xiaomi|^redmi|^poco`), "Xiaomi", "Android"},
	{regexp.MustCompile(`(?i)^huawei|^honor`), "Huawei", "Android"},
	{regexp.MustCompile(`(?i)^oppo|^realme`), "Oppo", "Android"},
	// Windows
	{regexp.MustCompile(`(?i)^desktop-[a-z0-9]+`), "Windows PC", "Windows"},
	{regexp.MustCompile(`(?i)^laptop-[a-z0-9]+`), "Windows Laptop", "Windows"},
	{regexp.MustCompile(`(?i)^win-?[a-z0-9]+`), "Windows PC", "Windows"},
	{regexp.MustCompile(`(?i)^surface`), "Surface", "Windows"},
	// Linux
	{regexp.MustCompile(`(?i)^raspberry`), "Raspberry Pi", "Linux"},
	{regexp.MustCompile(`(?i)^pi-?hole`), "Pi-hole", "Linux"},
	{regexp.MustCompile(`(?i)^ubuntu|^debian|^fedora|^arch`), "Linux PC", "Linux"},
	// Smart TV / media
	{regexp.MustCompile(`(?i)^lgwebostv|^lg-?tv|^lgtv|^\[lg\]`), "LG TV", "SmartTV"},
	{regexp.MustCompile(`(?i)^samsung-?tv|^tizen`), "Samsung TV", "SmartTV"},
	{regexp.MustCompile(`(?i)^sony-?tv|^bravia`), "Sony TV", "SmartTV"},
	{regexp.MustCompile(`(?i)^roku`), "Roku", "SmartTV"},
	{regexp.MustCompile(`(?i)^chromecast|^google-?cast`), "Chromecast", "SmartTV"},
	{regexp.MustCompile(`(?i)^fire-?tv|^amazon-?fire`), "Fire TV", "SmartTV"},
	{regexp.MustCompile(`(?i)^shield`), "Nvidia Shield", "SmartTV"},
	// Gaming
	{regexp.MustCompile(`(?i)^playstation|^ps[345]`), "PlayStation", "Gaming"},
	{regexp.MustCompile(`(?i)^xbox`), "Xbox", "Gaming"},
	{regexp.MustCompile(`(?i)^nintendo|^switch`), "Nintendo Switch", "Gaming"},
	// IoT / smart home
	{regexp.MustCompile(`(?i)^esp-?[0-9a-f]+|^esp32|^esp8266`), "ESP Device", "IoT"},
	{regexp.MustCompile(`(?i)^tasmota`), "Tasmota Device", "IoT"},
	{regexp.MustCompile(`(?i)^shelly`), "Shelly", "IoT"},
	{regexp.MustCompile(`(?i)^sonoff`), "Sonoff", "IoT"},
	{regexp.MustCompile(`(?i)^tuya|^smart-?life`), "Tuya Device", "IoT"},
	{regexp.MustCompile(`(?i)^hue-?bridge|^philips-?hue`), "Philips Hue", "IoT"},
	{regexp.MustCompile(`(?i)^nest`), "Nest", "IoT"},
	{regexp.MustCompile(`(?i)^ring`), "Ring", "Camera"},
	{regexp.MustCompile(`(?i)^ecobee|^tado`), "Thermostat", "IoT"},
	{regexp.MustCompile(`(?i)^p100|^p110|^hs100|^hs110|^hs200`), "TP-Link Plug", "IoT"},
	{regexp.MustCompile(`(?i)^tp-?link|^kasa`), "TP-Link Smart", "IoT"},
	// Voice assistants
	{regexp.MustCompile(`(?i)^echo|^amazon-?echo`), "Amazon Echo", "SmartSpeaker"},
	{regexp.MustCompile(`(?i)^alexa`), "Alexa Device", "SmartSpeaker"},
	{regexp.MustCompile(`(?i)^google-?home|^nest-?mini|^nest-?hub`), "Google Home", "SmartSpeaker"},
	// Network gear
	{regexp.MustCompile(`(?i)^router|^gateway`), "Router", "Network"},
	{regexp.MustCompile(`(?i)^vodafone|^sercomm`), "Vodafone Router", "Network"},
	{regexp.MustCompile(`(?i)^unifi|^ubnt`), "UniFi", "Network"},
	{regexp.MustCompile(`(?i)^ap-?[0-9]+|^access-?point`), "Access Point", "Network"},
	// Printers
	{regexp.MustCompile(`(?i)^hp-|^hpprinter|^officejet|^laserjet|^deskjet`), "HP Printer", "Printer"},
	{regexp.MustCompile(`(?i)^epson|^et-?[0-9]+|^xp-?[0-9]+`), "Epson Printer", "Printer"},
	{regexp.MustCompile(`(?i)^canon|^pixma`), "Canon Printer", "Printer"},
	{regexp.MustCompile(`(?i)^brother`), "Brother Printer", "Printer"},
}

type mdnsHint struct {
	substr   string
	category string
}

var mdnsHints = []mdnsHint{
	{"_airplay", "Apple"},
	{"_raop", "Apple"},
	{"_googlecast", "SmartTV"},
	{"_ipp", "Printer"},
	{"_printer", "Printer"},
	{"_homekit", "IoT"},
	{"_spotify", "SmartSpeaker"},
	{"_hap", "IoT"},
	{"_smb", "NAS"},
	{"_afpovertcp", "NAS"},
}

// fingerprintPorts are checked in order; the first open one that carries a
// category decides. Ambiguous ports (80, 443, 5353...) carry none.
var fingerprintPorts = []struct {
	port     int
	service  string
	category string
}{
	{62078, "iPhone Sync", "iOS"},
	{9100, "Printer", "Printer"},
	{515, "LPD Printer", "Printer"},
	{631, "CUPS/IPP", "Printer"},
	{32400, "Plex", "MediaServer"},
	{8008, "Chromecast", "SmartTV"},
	{8009, "Chromecast", "SmartTV"},
	{548, "AFP", "macOS"},
	{3283, "Apple Remote", "macOS"},
	{554, "RTSP", "Camera"},
	{3389, "RDP", "Windows"},
	{1883, "MQTT", "IoT"},
	{8883, "MQTT SSL", "IoT"},
	{5060, "SIP", "VoIP"},
	{5000, "Synology", "NAS"},
	{5001, "Synology SSL", "NAS"},
	{22, "SSH", "Server"},
}

type ssdpHint struct {
	substr   string
	category string
}

var ssdpHints = []ssdpHint{
	{"mediarenderer", "SmartTV"},
	{"tv", "SmartTV"},
	{"printer", "Printer"},
	{"nas", "NAS"},
	{"storage", "NAS"},
}

type vendorHint struct {
	substr   string
	category string
}

var vendorHints = []vendorHint{
	{"apple", "Apple"},
	{"samsung", "Android"},
	{"xiaomi", "Android"},
	{"huawei", "Android"},
	{"oneplus", "Android"},
	{"google", "Android"},
	{"lg electronics", "SmartTV"},
	{"sony", "SmartTV"},
	{"roku", "SmartTV"},
	{"amazon", "SmartSpeaker"},
	{"sonos", "SmartSpeaker"},
	{"tp-link", "IoT"},
	{"shelly", "IoT"},
	{"espressif", "IoT"},
	{"tuya", "IoT"},
	{"philips", "IoT"},
	{"belkin", "IoT"},
	{"nest", "IoT"},
	{"hp inc", "PC"},
	{"hewlett", "PC"},
	{"hp", "Printer"},
	{"epson", "Printer"},
	{"canon", "Printer"},
	{"brother", "Printer"},
	{"synology", "NAS"},
	{"qnap", "NAS"},
	{"western digital", "NAS"},
	{"cisco", "Network"},
	{"netgear", "Network"},
	{"ubiquiti", "Network"},
	{"asus", "Network"},
	{"hikvision", "Camera"},
	{"dahua", "Camera"},
	{"reolink", "Camera"},
	{"ring", "Camera"},
	{"raspberry", "Linux"},
	{"intel", "PC"},
	{"dell", "PC"},
	{"lenovo", "PC"},
	{"acer", "PC"},
	{"microsoft", "Windows"},
	{"vmware", "VM"},
	{"virtualbox", "VM"},
	{"parallels", "VM"},
	{"sercomm", "Router"},
	{"vodafone", "Router"},
	{"technicolor", "Router"},
	{"arcadyan", "Router"},
	{"zte", "Router"},
	{"sagemcom", "Router"},
}

type keywordGroup struct {
	keywords []string
	category string
}

// keywordGroups back the free-text fallback over the concatenated vendor,
// hostname, OS guess and mDNS name.
var keywordGroups = []keywordGroup{
	{[]string{"iphone", "ipad"}, "iOS"},
	{[]string{"android", "samsung", "xiaomi", "huawei", "galaxy", "pixel"}, "Android"},
	{[]string{"windows", "microsoft", "desktop-", "laptop-"}, "Windows"},
	{[]string{"linux", "ubuntu", "debian", "raspberry"}, "Linux"},
	{[]string{"roku", "chromecast", "fire tv", "shield", "webos", "tizen", " tv"}, "SmartTV"},
	{[]string{"alexa", "echo", "homepod", "google home", "nest mini", "sonos"}, "SmartSpeaker"},
	{[]string{"esp", "tasmota", "tuya", "shelly", "sonoff"}, "IoT"},
	{[]string{"router", "gateway", "vodafone", "modem"}, "Router"},
	{[]string{"printer", "print", "epson", "canon", "brother"}, "Printer"},
	{[]string{"camera", "cam", "hikvision", "reolink"}, "Camera"},
	{[]string{"playstation", "ps4", "ps5", "xbox", "nintendo", "switch"}, "Gaming"},
	{[]string{"synology", "qnap", "nas", "diskstation"}, "NAS"},
	{[]string{"apple"}, "Apple"},
}

var categoryIcons = map[string]string{
	"iOS":          "📱",
	"Apple":        "🍎",
	"macOS":        "💻",
	"tvOS":         "📺",
	"watchOS":      "⌚",
	"Android":      "🤖",
	"Windows":      "🪟",
	"Linux":        "🐧",
	"SmartTV":      "📺",
	"SmartSpeaker": "🔊",
	"IoT":          "🏠",
	"Router":       "📡",
	"Network":      "📡",
	"Printer":      "🖨️",
	"Camera":       "📷",
	"Gaming":       "🎮",
	"NAS":          "💾",
	"MediaServer":  "🎬",
	"Server":       "🖥️",
	"PC":           "🖥️",
	"VM":           "☁️",
	"VoIP":         "📞",
	"Audio":        "🎧",
	"Unknown":      "📶",
}

// mdnsServiceTypes is the fixed browse list for the mDNS probe.
var mdnsServiceTypes = []string{
	"_airplay._tcp",
	"_raop._tcp",
	"_googlecast._tcp",
	"_spotify-connect._tcp",
	"_ipp._tcp",
	"_printer._tcp",
	"_http._tcp",
	"_homekit._tcp",
	"_hap._tcp",
	"_smb._tcp",
	"_afpovertcp._tcp",
	"_ssh._tcp",
	"_device-info._tcp",
}
