// Package monitor runs the periodic watch loop: scan the network, bump
// last-seen on known devices, raise one alert per unknown device, and
// warn when the host runs hot.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"netpanel/internal/devices"
	"netpanel/internal/netscan"
	"netpanel/internal/system"
)

// Alert is what the monitor reports to its callback.
type Alert struct {
	Kind    string // "new_device" or "temperature"
	MAC     string
	IP      string
	Vendor  string
	Name    string
	Icon    string
	Celsius float64
}

// Options configures a Monitor.
type Options struct {
	// Interval between scan cycles.
	Interval time.Duration
	// InitialDelay before the first cycle, giving the network stack and
	// Pi-hole time to settle after boot.
	InitialDelay time.Duration
	// TempThreshold in Celsius; 0 disables the temperature check.
	TempThreshold float64
	// Notify receives alerts. Nil means alerts are only logged.
	Notify func(Alert)
}

// Scanner is the slice of netscan.Service the monitor needs.
type Scanner interface {
	Scan(ctx context.Context, deep, useCache bool) []netscan.Device
}

// Monitor owns the background loop.
type Monitor struct {
	opts     Options
	scanner  Scanner
	registry *devices.Registry
	log      zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New wires a monitor to the scanner and the device registry.
func New(opts Options, scanner Scanner, registry *devices.Registry, log zerolog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	return &Monitor{
		opts:     opts,
		scanner:  scanner,
		registry: registry,
		log:      log.With().Str("component", "monitor").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks until Stop is called or the context ends.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.done)

	if m.opts.InitialDelay > 0 {
		select {
		case <-time.After(m.opts.InitialDelay):
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.cycle(ctx)
	for {
		select {
		case <-ticker.C:
			m.cycle(ctx)
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the loop and waits for the current cycle to finish.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *Monitor) cycle(ctx context.Context) {
	online := m.scanner.Scan(ctx, false, false)
	m.log.Debug().Int("online", len(online)).Msg("monitor cycle")

	for i := range online {
		d := &online[i]
		if m.registry.IsKnown(d.MAC) {
			m.registry.UpdateLastSeen(d.MAC)
			continue
		}
		if m.registry.WasAlerted(d.MAC) {
			continue
		}
		m.registry.MarkAlerted(d.MAC)
		_, icon := netscan.Classify(d)
		alert := Alert{
			Kind:   "new_device",
			MAC:    d.MAC,
			IP:     d.IP,
			Vendor: d.Vendor,
			Name:   netscan.DisplayName(d),
			Icon:   icon,
		}
		m.log.Info().
			Str("mac", d.MAC).
			Str("ip", d.IP).
			Str("vendor", d.Vendor).
			Msg("unknown device on the network")
		m.notify(alert)
	}

	if m.opts.TempThreshold > 0 {
		if temp := system.Temperature(ctx); temp > m.opts.TempThreshold {
			m.log.Warn().Float64("celsius", temp).Msg("host running hot")
			m.notify(Alert{Kind: "temperature", Celsius: temp})
		}
	}
}

func (m *Monitor) notify(alert Alert) {
	if m.opts.Notify != nil {
		m.opts.Notify(alert)
	}
}
