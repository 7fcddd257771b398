package hostlookup

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/miekg/dns"
	"golang.org/x/sync/singleflight"

	"github.com/linkdata/hostlookup/cache"
)

// Client aggregates CNAME, A, AAAA and MX lookups for whole domains and
// memoizes the result per queried name for the lifetime of the process.
type Client struct {
	Resolver *Resolver
	Zones    *cache.Zones
	Trace    io.Writer // optional resolution trace
	group    singleflight.Group
	mu       sync.Mutex
	results  map[string]*DomainResult
}

// NewClient returns a Client with a fresh zone address cache.
func NewClient(r *Resolver) *Client {
	return &Client{
		Resolver: r,
		Zones:    cache.NewZones(),
		results:  make(map[string]*DomainResult),
	}
}

// LookupDomain resolves CNAME, A, AAAA and MX records for name.
// Repeated lookups of the same name return the memoized result, and
// concurrent lookups of the same name share one resolution.
func (c *Client) LookupDomain(ctx context.Context, name string) (*DomainResult, error) {
	c.mu.Lock()
	dr, ok := c.results[name]
	c.mu.Unlock()
	if ok {
		return dr, nil
	}
	v, err, _ := c.group.Do(name, func() (any, error) {
		dr, err := c.collect(ctx, name)
		if err == nil {
			c.mu.Lock()
			c.results[name] = dr
			c.mu.Unlock()
		}
		return dr, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*DomainResult), nil
}

// collect issues the four record-type lookups sequentially. The CNAME
// lookup goes first; its answer chain retargets the remaining three.
func (c *Client) collect(ctx context.Context, name string) (*DomainResult, error) {
	dr := &DomainResult{Domain: name}
	target := dns.Fqdn(strings.ToLower(name))

	resp, err := c.route(ctx, target, dns.TypeCNAME)
	if err != nil {
		return nil, err
	}
	for _, rr := range answers(resp) {
		if cname, ok := rr.(*dns.CNAME); ok {
			dr.CNAME = append(dr.CNAME, CNAMERecord{Name: cname.Target, Alias: name})
			target = dns.Fqdn(strings.ToLower(cname.Target))
		}
	}

	if resp, err = c.route(ctx, target, dns.TypeA); err != nil {
		return nil, err
	}
	for _, rr := range answers(resp) {
		if a, ok := rr.(*dns.A); ok {
			dr.A = append(dr.A, AddressRecord{Name: a.Hdr.Name, Address: a.A.String()})
		}
	}

	if resp, err = c.route(ctx, target, dns.TypeAAAA); err != nil {
		return nil, err
	}
	for _, rr := range answers(resp) {
		if aaaa, ok := rr.(*dns.AAAA); ok {
			dr.AAAA = append(dr.AAAA, AddressRecord{Name: aaaa.Hdr.Name, Address: aaaa.AAAA.String()})
		}
	}

	if resp, err = c.route(ctx, target, dns.TypeMX); err != nil {
		return nil, err
	}
	for _, rr := range answers(resp) {
		if mx, ok := rr.(*dns.MX); ok {
			dr.MX = append(dr.MX, MXRecord{Name: mx.Hdr.Name, Preference: mx.Preference, Exchange: mx.Mx})
		}
	}

	return dr, nil
}

// route runs one lookup through the resolver, mapping exhaustion to a
// nil response so missing record types come back as empty lists.
func (c *Client) route(ctx context.Context, qname string, qtype uint16) (*dns.Msg, error) {
	resp, err := c.Resolver.Route(ctx, qname, qtype, c.Trace, c.Zones)
	if err != nil {
		if errors.Is(err, ErrNoAnswer) {
			return nil, nil
		}
		return nil, err
	}
	return resp, nil
}

func answers(m *dns.Msg) []dns.RR {
	if m == nil {
		return nil
	}
	return m.Answer
}
