// Package devices keeps the user-facing registry of known machines: the
// names people gave them, whether they are trusted, and which unknown
// devices have already been alerted on.
package devices

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned for MACs the registry does not know.
var ErrNotFound = errors.New("device not registered")

// Entry is one known device.
type Entry struct {
	MAC       string    `json:"mac"`
	Name      string    `json:"name"`
	Trusted   bool      `json:"trusted"`
	Notes     string    `json:"notes,omitempty"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

type registryFile struct {
	Devices map[string]Entry `json:"devices"`
	Alerted []string         `json:"alerted"`
}

// Registry is a persistent name and trust store keyed by MAC address.
// Safe for concurrent use.
type Registry struct {
	path string
	log  zerolog.Logger

	mu      sync.RWMutex
	entries map[string]Entry
	alerted map[string]struct{}
}

// Load opens the registry file, creating an empty registry when the file
// does not exist yet.
func Load(path string, log zerolog.Logger) (*Registry, error) {
	r := &Registry{
		path:    path,
		log:     log.With().Str("component", "devices").Logger(),
		entries: make(map[string]Entry),
		alerted: make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read device registry: %w", err)
	}

	var stored registryFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode device registry: %w", err)
	}
	for mac, entry := range stored.Devices {
		mac = canonical(mac)
		entry.MAC = mac
		r.entries[mac] = entry
	}
	for _, mac := range stored.Alerted {
		r.alerted[canonical(mac)] = struct{}{}
	}
	return r, nil
}

func canonical(mac string) string {
	return strings.ToUpper(strings.ReplaceAll(mac, "-", ":"))
}

// saveLocked writes the registry through a temp file. Caller holds r.mu.
func (r *Registry) saveLocked() error {
	stored := registryFile{Devices: r.entries}
	for mac := range r.alerted {
		stored.Alerted = append(stored.Alerted, mac)
	}
	sort.Strings(stored.Alerted)

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write device registry: %w", err)
	}
	return os.Rename(tmp, r.path)
}

// Add registers a device under a name. Re-adding an existing MAC updates
// the name and trust flag but keeps the original first-seen time.
func (r *Registry) Add(mac, name string, trusted bool) error {
	mac = canonical(mac)
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[mac]
	if !ok {
		entry = Entry{MAC: mac, FirstSeen: now}
	}
	entry.Name = name
	entry.Trusted = trusted
	entry.LastSeen = now
	r.entries[mac] = entry
	// A device the user just named no longer counts as an open alert.
	delete(r.alerted, mac)
	return r.saveLocked()
}

// Remove deletes a device and any alert state it had.
func (r *Registry) Remove(mac string) error {
	mac = canonical(mac)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[mac]; !ok {
		return ErrNotFound
	}
	delete(r.entries, mac)
	delete(r.alerted, mac)
	return r.saveLocked()
}

// SetTrusted flips the trust flag on an existing device.
func (r *Registry) SetTrusted(mac string, trusted bool) error {
	mac = canonical(mac)
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[mac]
	if !ok {
		return ErrNotFound
	}
	entry.Trusted = trusted
	r.entries[mac] = entry
	return r.saveLocked()
}

// SetNotes attaches free-form notes to an existing device.
func (r *Registry) SetNotes(mac, notes string) error {
	mac = canonical(mac)
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[mac]
	if !ok {
		return ErrNotFound
	}
	entry.Notes = notes
	r.entries[mac] = entry
	return r.saveLocked()
}

// UpdateLastSeen bumps the last-seen time of a known device. Unknown MACs
// are ignored; persistence failures are logged, not returned, because this
// runs on every monitor cycle.
func (r *Registry) UpdateLastSeen(mac string) {
	mac = canonical(mac)
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[mac]
	if !ok {
		return
	}
	entry.LastSeen = time.Now()
	r.entries[mac] = entry
	if err := r.saveLocked(); err != nil {
		r.log.Warn().Err(err).Msg("could not persist last-seen update")
	}
}

// Get returns the entry for a MAC.
func (r *Registry) Get(mac string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[canonical(mac)]
	return entry, ok
}

// Name returns the user-assigned name, or "" for unknown devices.
func (r *Registry) Name(mac string) string {
	entry, _ := r.Get(mac)
	return entry.Name
}

// IsKnown reports whether the MAC has been registered.
func (r *Registry) IsKnown(mac string) bool {
	_, ok := r.Get(mac)
	return ok
}

// IsTrusted reports whether the MAC is registered and marked trusted.
func (r *Registry) IsTrusted(mac string) bool {
	entry, ok := r.Get(mac)
	return ok && entry.Trusted
}

// WasAlerted reports whether an alert has already fired for this MAC.
func (r *Registry) WasAlerted(mac string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.alerted[canonical(mac)]
	return ok
}

// MarkAlerted records that an alert fired, so repeat sightings of the same
// unknown device stay quiet until the alert state is cleared.
func (r *Registry) MarkAlerted(mac string) {
	mac = canonical(mac)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerted[mac] = struct{}{}
	if err := r.saveLocked(); err != nil {
		r.log.Warn().Err(err).Msg("could not persist alert state")
	}
}

// ClearAlerts forgets all fired alerts, so every unknown device alerts
// again on its next sighting.
func (r *Registry) ClearAlerts() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerted = make(map[string]struct{})
	return r.saveLocked()
}

// All returns every entry sorted by name.
func (r *Registry) All() []Entry {
	return r.filtered(func(Entry) bool { return true })
}

// Trusted returns the trusted entries sorted by name.
func (r *Registry) Trusted() []Entry {
	return r.filtered(func(e Entry) bool { return e.Trusted })
}

// Untrusted returns the known-but-untrusted entries sorted by name.
func (r *Registry) Untrusted() []Entry {
	return r.filtered(func(e Entry) bool { return !e.Trusted })
}

func (r *Registry) filtered(keep func(Entry) bool) []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		if keep(entry) {
			out = append(out, entry)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].MAC < out[j].MAC
	})
	return out
}

// Stats summarises the registry.
type Stats struct {
	Known     int `json:"known"`
	Trusted   int `json:"trusted"`
	Untrusted int `json:"untrusted"`
	Alerted   int `json:"alerted"`
}

// Summary returns registry counts.
func (r *Registry) Summary() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := Stats{Known: len(r.entries), Alerted: len(r.alerted)}
	for _, entry := range r.entries {
		if entry.Trusted {
			stats.Trusted++
		} else {
			stats.Untrusted++
		}
	}
	return stats
}
