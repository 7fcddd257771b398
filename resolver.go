// Package hostlookup implements an iterative DNS resolver that walks the
// delegation hierarchy from the root servers down to an authoritative
// answer, using github.com/miekg/dns for wire format and transport.
package hostlookup

import (
	"context"
	"io"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/linkdata/hostlookup/cache"
)

//go:generate go run ./cmd/genhints roothints.gen.go

type Resolver struct {
	proxy.ContextDialer
	Timeout     time.Duration // per-candidate exchange deadline
	DNSPort     uint16
	Limiter     *rate.Limiter // optional outbound query pacing
	mu          sync.RWMutex  // protects following
	rootServers []netip.Addr
}

// New returns a resolver seeded with the IANA IPv4 root servers.
func New() (r *Resolver) {
	return &Resolver{
		ContextDialer: &net.Dialer{},
		Timeout:       3 * time.Second,
		DNSPort:       53,
		rootServers:   append([]netip.Addr(nil), Roots4...),
	}
}

// RootServers returns a copy of the current root server list.
func (r *Resolver) RootServers() (roots []netip.Addr) {
	r.mu.RLock()
	roots = append(roots, r.rootServers...)
	r.mu.RUnlock()
	return
}

// SetRootServers replaces the root server list. Empty lists are ignored.
func (r *Resolver) SetRootServers(roots []netip.Addr) {
	if len(roots) > 0 {
		r.mu.Lock()
		r.rootServers = append([]netip.Addr(nil), roots...)
		r.mu.Unlock()
	}
}

// Resolve performs iterative resolution for qname/qtype starting from the
// given candidate servers. Candidates are tried strictly in list order,
// one UDP attempt each. An empty candidate list yields a *NoAnswerError
// without any network traffic. The optional logw receives a resolution
// trace; zones may be nil to disable the address cache, and a nil ctx is
// treated as context.Background().
func (r *Resolver) Resolve(ctx context.Context, qname string, qtype uint16, servers []netip.Addr, logw io.Writer, zones *cache.Zones) (msg *dns.Msg, err error) {
	qry := r.newQuery(ctx, logw, zones)
	qry.logf("RESOLVE %s %q", dns.Type(qtype), qname)
	return qry.resolve(dns.Fqdn(strings.ToLower(qname)), qtype, servers)
}

// Route performs a top-level lookup, seeding Resolve with cached name
// server addresses for the zone of qname when available and with the
// root servers otherwise. The cache seed is a warm start only;
// correctness does not depend on it.
func (r *Resolver) Route(ctx context.Context, qname string, qtype uint16, logw io.Writer, zones *cache.Zones) (msg *dns.Msg, err error) {
	qry := r.newQuery(ctx, logw, zones)
	qry.logf("LOOKUP %s %q", dns.Type(qtype), qname)
	return qry.route(dns.Fqdn(strings.ToLower(qname)), qtype)
}

func (r *Resolver) newQuery(ctx context.Context, logw io.Writer, zones *cache.Zones) *query {
	if ctx == nil {
		ctx = context.Background()
	}
	return &query{
		resolver: r,
		ctx:      ctx,
		zones:    zones,
		writer:   logw,
		start:    time.Now(),
	}
}

func (r *Resolver) addrPort(addr netip.Addr) netip.AddrPort {
	return netip.AddrPortFrom(addr, r.DNSPort)
}

func (r *Resolver) deadline(ctx context.Context) time.Time {
	var deadline time.Time
	if ctx != nil {
		if d, ok := ctx.Deadline(); ok {
			deadline = d
		}
	}
	if r.Timeout > 0 {
		limit := time.Now().Add(r.Timeout)
		if deadline.IsZero() || limit.Before(deadline) {
			deadline = limit
		}
	}
	return deadline
}

func dedupAddrs(addrs []netip.Addr) []netip.Addr {
	seen := map[netip.Addr]struct{}{}
	var out []netip.Addr
	for _, addr := range addrs {
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}
