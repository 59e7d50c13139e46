// Package config loads netpanel settings from an INI file with
// environment variable overrides.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Config holds all application settings.
type Config struct {
	// Network
	Subnet  string
	Gateway string

	// Pi-hole integration
	LeaseFile    string
	LeaseCommand string
	WatchLeases  bool
	FTLDatabase  string
	PiholeURL    string
	PiholePass   string

	// Storage
	DataDir     string
	HistoryFile string
	DevicesFile string

	// Binaries
	Nmap string

	// Timing
	ProbeTimeout  time.Duration
	DeepTimeout   time.Duration
	CacheWindow   time.Duration
	ScanInterval  time.Duration
	InitialDelay  time.Duration
	TempThreshold float64
}

// DefaultConfig returns the settings for a typical Pi-hole host.
func DefaultConfig() *Config {
	return &Config{
		Subnet:        "192.168.1.0/24",
		Gateway:       "192.168.1.1",
		LeaseFile:     "/etc/pihole/dhcp.leases",
		WatchLeases:   true,
		FTLDatabase:   "/etc/pihole/pihole-FTL.db",
		PiholeURL:     "http://127.0.0.1",
		DataDir:       "/var/lib/netpanel",
		HistoryFile:   "device_history.json",
		DevicesFile:   "known_devices.json",
		Nmap:          "nmap",
		ProbeTimeout:  30 * time.Second,
		DeepTimeout:   2 * time.Minute,
		CacheWindow:   30 * time.Second,
		ScanInterval:  5 * time.Minute,
		InitialDelay:  30 * time.Second,
		TempThreshold: 75,
	}
}

// LoadFromFile merges settings from an INI file. A missing file is not an
// error; the defaults stand.
func (c *Config) LoadFromFile(filename string) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, filename)
	if err != nil {
		return err
	}

	section := cfg.Section("")
	c.Subnet = section.Key("subnet").MustString(c.Subnet)
	c.Gateway = section.Key("gateway").MustString(c.Gateway)
	c.LeaseFile = section.Key("leasefile").MustString(c.LeaseFile)
	c.LeaseCommand = section.Key("leasecommand").MustString(c.LeaseCommand)
	c.WatchLeases = section.Key("watchleases").MustBool(c.WatchLeases)
	c.FTLDatabase = section.Key("ftldatabase").MustString(c.FTLDatabase)
	c.PiholeURL = section.Key("piholeurl").MustString(c.PiholeURL)
	c.PiholePass = section.Key("piholepass").MustString(c.PiholePass)
	c.DataDir = section.Key("datadir").MustString(c.DataDir)
	c.HistoryFile = section.Key("historyfile").MustString(c.HistoryFile)
	c.DevicesFile = section.Key("devicesfile").MustString(c.DevicesFile)
	c.Nmap = section.Key("nmap").MustString(c.Nmap)
	c.ProbeTimeout = section.Key("probetimeout").MustDuration(c.ProbeTimeout)
	c.DeepTimeout = section.Key("deeptimeout").MustDuration(c.DeepTimeout)
	c.CacheWindow = section.Key("cachewindow").MustDuration(c.CacheWindow)
	c.ScanInterval = section.Key("scaninterval").MustDuration(c.ScanInterval)
	c.InitialDelay = section.Key("initialdelay").MustDuration(c.InitialDelay)
	c.TempThreshold = section.Key("tempthreshold").MustFloat64(c.TempThreshold)

	return nil
}

// LoadFromEnv overrides settings from NETPANEL_* environment variables.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("NETPANEL_SUBNET"); v != "" {
		c.Subnet = v
	}
	if v := os.Getenv("NETPANEL_GATEWAY"); v != "" {
		c.Gateway = v
	}
	if v := os.Getenv("NETPANEL_LEASEFILE"); v != "" {
		c.LeaseFile = v
	}
	if v := os.Getenv("NETPANEL_LEASECOMMAND"); v != "" {
		c.LeaseCommand = v
	}
	if v := os.Getenv("NETPANEL_WATCHLEASES"); v != "" {
		c.WatchLeases, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("NETPANEL_FTLDB"); v != "" {
		c.FTLDatabase = v
	}
	if v := os.Getenv("NETPANEL_PIHOLE_URL"); v != "" {
		c.PiholeURL = v
	}
	if v := os.Getenv("NETPANEL_PIHOLE_PASS"); v != "" {
		c.PiholePass = v
	}
	if v := os.Getenv("NETPANEL_DATADIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("NETPANEL_NMAP"); v != "" {
		c.Nmap = v
	}
	if v := os.Getenv("NETPANEL_SCANINTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ScanInterval = d
		}
	}
	if v := os.Getenv("NETPANEL_TEMPTHRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.TempThreshold = f
		}
	}
}

// HistoryPath returns the absolute path of the scan history file.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, c.HistoryFile)
}

// DevicesPath returns the absolute path of the known-devices file.
func (c *Config) DevicesPath() string {
	return filepath.Join(c.DataDir, c.DevicesFile)
}

// LeaseCommandArgs splits the lease command into argv form.
func (c *Config) LeaseCommandArgs() []string {
	if strings.TrimSpace(c.LeaseCommand) == "" {
		return nil
	}
	return strings.Fields(c.LeaseCommand)
}

// New loads the configuration: defaults, then the file, then environment
// overrides.
func New(configFile string) *Config {
	cfg := DefaultConfig()
	if configFile != "" {
		// An unreadable file falls back to defaults rather than aborting
		// startup.
		_ = cfg.LoadFromFile(configFile)
	}
	cfg.LoadFromEnv()
	return cfg
}
