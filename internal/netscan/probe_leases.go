package netscan

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// probeLeases reads the DHCP lease file. Preference order: the fsnotify
// cache when enabled, the local file, then the configured command (the
// lease file often lives inside the Pi-hole container).
func (s *Service) probeLeases(ctx context.Context) ([]Device, error) {
	if s.leases != nil {
		// An empty cache means the file did not exist when the watcher was
		// set up, such as Pi-hole's container still starting. Fall through
		// to a direct read so the probe recovers once the file appears.
		if content := s.leases.content(); content != "" {
			return parseLeases(content), nil
		}
	}
	if s.opts.LeaseFile != "" {
		data, err := os.ReadFile(s.opts.LeaseFile)
		if err == nil {
			return parseLeases(string(data)), nil
		}
		if len(s.opts.LeaseCommand) == 0 {
			return nil, err
		}
	}
	if len(s.opts.LeaseCommand) == 0 {
		return nil, nil
	}
	out, err := exec.CommandContext(ctx, s.opts.LeaseCommand[0], s.opts.LeaseCommand[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("lease command: %w", err)
	}
	return parseLeases(string(out)), nil
}

// parseLeases handles the dnsmasq format: "expiry mac ip hostname clientid"
// with "*" standing in for a hostname the client never sent.
func parseLeases(content string) []Device {
	var devices []Device
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		hostname := fields[3]
		if hostname == "*" {
			hostname = ""
		}
		devices = append(devices, Device{
			MAC:      fields[1],
			IP:       fields[2],
			Hostname: hostname,
			Source:   "dhcp",
		})
	}
	return devices
}

// leaseCache keeps the lease file contents in memory and refreshes them
// when fsnotify reports a write, so scan cycles read a local copy instead
// of hitting the file every time.
type leaseCache struct {
	path    string
	log     zerolog.Logger
	watcher *fsnotify.Watcher

	mu   sync.RWMutex
	data string

	done chan struct{}
}

func newLeaseCache(path string, log zerolog.Logger) *leaseCache {
	c := &leaseCache{
		path: path,
		log:  log.With().Str("component", "leases").Logger(),
		done: make(chan struct{}),
	}
	c.reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.log.Warn().Err(err).Msg("lease watcher unavailable, falling back to direct reads")
		return c
	}
	if err := watcher.Add(path); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("cannot watch lease file")
		watcher.Close()
		return c
	}
	c.watcher = watcher
	go c.loop()
	return c
}

func (c *leaseCache) loop() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				c.reload()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.Warn().Err(err).Msg("lease watcher error")
		case <-c.done:
			return
		}
	}
}

func (c *leaseCache) reload() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		c.log.Debug().Err(err).Msg("lease file unreadable")
		return
	}
	c.mu.Lock()
	c.data = string(data)
	c.mu.Unlock()
}

func (c *leaseCache) content() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

func (c *leaseCache) close() {
	close(c.done)
	if c.watcher != nil {
		c.watcher.Close()
	}
}
