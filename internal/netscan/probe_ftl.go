package netscan

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// probeFTL reads Pi-hole's FTL network table. FTL records every client it
// has served DNS for, which catches devices that never answer ARP sweeps.
func (s *Service) probeFTL(ctx context.Context) ([]Device, error) {
	if s.opts.FTLDatabase == "" {
		return nil, nil
	}
	if _, err := os.Stat(s.opts.FTLDatabase); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", s.opts.FTLDatabase))
	if err != nil {
		return nil, fmt.Errorf("open ftl database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT n.hwaddr, a.ip, COALESCE(a.name, '')
		FROM network n
		JOIN network_addresses a ON a.network_id = n.id
		WHERE n.hwaddr != '' AND n.hwaddr NOT LIKE 'ip-%'
		ORDER BY n.lastQuery DESC
		LIMIT 200`)
	if err != nil {
		return nil, fmt.Errorf("query ftl network table: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var mac, ip, name string
		if err := rows.Scan(&mac, &ip, &name); err != nil {
			return nil, err
		}
		devices = append(devices, Device{
			MAC:      mac,
			IP:       ip,
			Hostname: name,
			Source:   "ftl",
		})
	}
	return devices, rows.Err()
}
