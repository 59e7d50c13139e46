package netscan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// loadHistory restores the registry from disk. A missing file is a normal
// first run. Reloaded entries always start offline: stale online state
// from a previous process must never be trusted.
func (s *Service) loadHistory() error {
	data, err := os.ReadFile(s.opts.HistoryFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read history: %w", err)
	}

	var stored map[string]Device
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for mac, d := range stored {
		mac = NormalizeMAC(mac)
		if mac == "" {
			continue
		}
		entry := d
		entry.MAC = mac
		entry.Online = false
		s.registry[mac] = &entry
	}
	return nil
}

// saveHistoryLocked writes the whole registry in one shot, through a temp
// file so a crash mid-write never truncates the previous snapshot.
// Caller holds s.mu (read or write).
func (s *Service) saveHistoryLocked() error {
	if s.opts.HistoryFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.opts.HistoryFile), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.MarshalIndent(s.registry, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmp := s.opts.HistoryFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, s.opts.HistoryFile); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
