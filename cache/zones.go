// Package cache holds the name server address cache used to warm-start
// iterative lookups.
package cache

import (
	"net/netip"
	"sync"
	"sync/atomic"
)

// Zones maps a zone label to the name server addresses learned from
// glue records. Entries are only ever added to; there is no TTL
// tracking, so a delegation change during the process lifetime leaves a
// stale entry behind. The zone label key is the second-to-last label of
// the record name, which only matches the real zone of authority for
// two-label zones.
type Zones struct {
	mu    sync.RWMutex
	count atomic.Uint64
	hits  atomic.Uint64
	zones map[string][]netip.Addr
}

func NewZones() *Zones {
	return &Zones{zones: make(map[string][]netip.Addr)}
}

// Lookup returns a copy of the known addresses for zone, or nil when
// the zone is unseen.
func (z *Zones) Lookup(zone string) (addrs []netip.Addr) {
	if z != nil {
		z.count.Add(1)
		z.mu.RLock()
		addrs = append(addrs, z.zones[zone]...)
		z.mu.RUnlock()
		if len(addrs) > 0 {
			z.hits.Add(1)
		}
	}
	return
}

// Merge adds addr to the set for zone, creating the set if the zone is
// unseen, and reports whether the address was not already present.
func (z *Zones) Merge(zone string, addr netip.Addr) (added bool) {
	if z != nil && addr.IsValid() {
		z.mu.Lock()
		defer z.mu.Unlock()
		for _, have := range z.zones[zone] {
			if have == addr {
				return false
			}
		}
		z.zones[zone] = append(z.zones[zone], addr)
		added = true
	}
	return
}

// Entries returns the number of cached zones.
func (z *Zones) Entries() (n int) {
	if z != nil {
		z.mu.RLock()
		n = len(z.zones)
		z.mu.RUnlock()
	}
	return
}

// HitRatio returns the percentage of lookups that found addresses.
func (z *Zones) HitRatio() (n float64) {
	if z != nil {
		if count := z.count.Load(); count > 0 {
			n = float64(z.hits.Load()*100) / float64(count)
		}
	}
	return
}
