package hostlookup

import (
	"context"
	"net/netip"
	"sort"
	"sync"
	"time"
)

type rootProbe struct {
	addr netip.Addr
	rtt  time.Duration
}

// OrderRoots sorts the root server list by their current connect
// latency and removes those that don't respond within cutoff. The list
// is left unchanged if no root responds in time.
func (r *Resolver) OrderRoots(ctx context.Context, cutoff time.Duration) {
	if _, ok := ctx.Deadline(); !ok {
		newctx, cancel := context.WithTimeout(ctx, cutoff*2)
		defer cancel()
		ctx = newctx
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var probes []*rootProbe
	var wg sync.WaitGroup
	for _, addr := range r.rootServers {
		rp := &rootProbe{addr: addr}
		probes = append(probes, rp)
		wg.Add(1)
		go r.probeRoot(ctx, &wg, rp)
	}
	wg.Wait()
	sort.Slice(probes, func(i, j int) bool { return probes[i].rtt < probes[j].rtt })
	var newRootServers []netip.Addr
	for _, rp := range probes {
		if rp.rtt <= cutoff {
			newRootServers = append(newRootServers, rp.addr)
		}
	}
	if len(newRootServers) > 0 {
		r.rootServers = newRootServers
	}
}

// probeRoot measures the average connect latency to one root server.
// Roots that refuse a connection keep a sentinel rtt past any cutoff.
func (r *Resolver) probeRoot(ctx context.Context, wg *sync.WaitGroup, rp *rootProbe) {
	defer wg.Done()
	const numProbes = 3
	rp.rtt = time.Hour
	var rtt time.Duration
	for i := 0; i < numProbes; i++ {
		now := time.Now()
		conn, err := r.DialContext(ctx, "tcp4", netip.AddrPortFrom(rp.addr, r.DNSPort).String())
		if err != nil {
			return
		}
		rtt += time.Since(now)
		_ = conn.Close()
	}
	rp.rtt = rtt / numProbes
}
