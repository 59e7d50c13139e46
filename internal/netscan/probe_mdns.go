package netscan

import (
	"context"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

type mdnsRecord struct {
	name     string
	services map[string]struct{}
}

// probeMDNS browses the known service types and folds every answer into a
// per-address record. mDNS only hands back IPs, so the ARP table resolves
// them to MACs; addresses the kernel has never seen are dropped.
func (s *Service) probeMDNS(ctx context.Context) ([]Device, error) {
	browseCtx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
	defer cancel()

	internalEntries := make(chan *zeroconf.ServiceEntry, 32)

	var mu sync.Mutex
	records := make(map[string]*mdnsRecord)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range internalEntries {
			mu.Lock()
			foldMDNSEntry(records, entry)
			mu.Unlock()
		}
	}()

	// One resolver per service type. A resolver owns a single multicast
	// socket, and concurrent Browse calls on it race for incoming packets:
	// whichever type's loop reads a response first filters it by its own
	// service name, so answers for the other types are lost.
	var browseWg sync.WaitGroup
	for _, serviceType := range mdnsServiceTypes {
		select {
		case <-browseCtx.Done():
		default:
			resolver, err := zeroconf.NewResolver(nil)
			if err != nil {
				continue
			}
			serviceEntries := make(chan *zeroconf.ServiceEntry, 10)
			browseWg.Add(1)
			go func(entries chan *zeroconf.ServiceEntry) {
				defer browseWg.Done()
				for entry := range entries {
					select {
					case internalEntries <- entry:
					case <-browseCtx.Done():
						return
					}
				}
			}(serviceEntries)
			_ = resolver.Browse(browseCtx, serviceType, "local.", serviceEntries)
		}
	}

	<-browseCtx.Done()
	browseWg.Wait()
	close(internalEntries)
	<-done

	if len(records) == 0 {
		return nil, nil
	}

	arp := loadARPTable(ctx)

	var devices []Device
	mu.Lock()
	defer mu.Unlock()
	for ip, rec := range records {
		mac := arp.lookup(ip)
		if mac == "" {
			continue
		}
		services := make([]string, 0, len(rec.services))
		for svc := range rec.services {
			services = append(services, svc)
		}
		devices = append(devices, Device{
			MAC:          mac,
			IP:           ip,
			MDNSName:     rec.name,
			MDNSServices: services,
			Source:       "mdns",
		})
	}
	return devices, nil
}

// foldMDNSEntry merges one browse answer into the per-IP record set. A
// host advertising several service types keeps one record with the union
// of its services.
func foldMDNSEntry(records map[string]*mdnsRecord, entry *zeroconf.ServiceEntry) {
	for _, addr := range entry.AddrIPv4 {
		ip := addr.String()
		rec, ok := records[ip]
		if !ok {
			rec = &mdnsRecord{services: make(map[string]struct{})}
			records[ip] = rec
		}
		if rec.name == "" {
			if entry.HostName != "" {
				rec.name = strings.TrimSuffix(entry.HostName, ".")
			} else if entry.Instance != "" {
				rec.name = entry.Instance
			}
		}
		if entry.Service != "" {
			rec.services[entry.Service] = struct{}{}
		}
	}
}
