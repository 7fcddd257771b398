package hostlookup

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// memDialer routes DNS queries to in-process handlers keyed by server
// address, satisfying proxy.ContextDialer without touching the network.
type memDialer struct {
	mu       sync.Mutex
	handlers map[string]func(*dns.Msg) *dns.Msg
	queries  map[string]int
}

func newMemDialer() *memDialer {
	return &memDialer{
		handlers: make(map[string]func(*dns.Msg) *dns.Msg),
		queries:  make(map[string]int),
	}
}

// handle registers a handler for address ("ip:port"). A handler
// returning nil simulates a dropped packet.
func (d *memDialer) handle(address string, fn func(*dns.Msg) *dns.Msg) {
	d.mu.Lock()
	d.handlers[address] = fn
	d.mu.Unlock()
}

// count returns the number of queries sent to address.
func (d *memDialer) count(address string) (n int) {
	d.mu.Lock()
	n = d.queries[address]
	d.mu.Unlock()
	return
}

// total returns the number of queries sent to all addresses.
func (d *memDialer) total() (n int) {
	d.mu.Lock()
	for _, c := range d.queries {
		n += c
	}
	d.mu.Unlock()
	return
}

func (d *memDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	fn, ok := d.handlers[address]
	d.mu.Unlock()
	if !ok {
		return nil, &net.OpError{Op: "dial", Net: network, Err: errors.New("connection refused")}
	}
	return &memConn{dialer: d, address: address, fn: fn}, nil
}

type memConn struct {
	dialer  *memDialer
	address string
	fn      func(*dns.Msg) *dns.Msg
	mu      sync.Mutex
	pending [][]byte
}

var _ net.Conn = &memConn{}
var _ net.PacketConn = &memConn{}

// Write unpacks one query, runs the handler and queues the packed
// response for the next Read.
func (c *memConn) Write(p []byte) (int, error) {
	req := new(dns.Msg)
	if err := req.Unpack(p); err != nil {
		return 0, err
	}
	c.dialer.mu.Lock()
	c.dialer.queries[c.address]++
	c.dialer.mu.Unlock()
	if resp := c.fn(req); resp != nil {
		resp.Id = req.Id
		body, err := resp.Pack()
		if err != nil {
			return 0, err
		}
		c.mu.Lock()
		c.pending = append(c.pending, body)
		c.mu.Unlock()
	}
	return len(p), nil
}

// Read pops one queued response; an empty queue reads as a timeout.
func (c *memConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return 0, &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}
	}
	body := c.pending[0]
	c.pending = c.pending[1:]
	return copy(p, body), nil
}

func (c *memConn) ReadFrom(p []byte) (int, net.Addr, error) {
	n, err := c.Read(p)
	return n, c.RemoteAddr(), err
}

func (c *memConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	return c.Write(p)
}

func (c *memConn) Close() error                       { return nil }
func (c *memConn) LocalAddr() net.Addr                { return &net.UDPAddr{IP: net.IPv4zero} }
func (c *memConn) RemoteAddr() net.Addr               { return &net.UDPAddr{IP: net.IPv4zero} }
func (c *memConn) SetDeadline(_ time.Time) error      { return nil }
func (c *memConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *memConn) SetWriteDeadline(_ time.Time) error { return nil }

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// -------- Record builders ---------

func rrHeader(name string, rrtype uint16) dns.RR_Header {
	return dns.RR_Header{Name: dns.Fqdn(name), Rrtype: rrtype, Class: dns.ClassINET, Ttl: 300}
}

func aRR(name, address string) *dns.A {
	return &dns.A{Hdr: rrHeader(name, dns.TypeA), A: net.ParseIP(address).To4()}
}

func aaaaRR(name, address string) *dns.AAAA {
	return &dns.AAAA{Hdr: rrHeader(name, dns.TypeAAAA), AAAA: net.ParseIP(address)}
}

func nsRR(zone, host string) *dns.NS {
	return &dns.NS{Hdr: rrHeader(zone, dns.TypeNS), Ns: dns.Fqdn(host)}
}

func cnameRR(name, target string) *dns.CNAME {
	return &dns.CNAME{Hdr: rrHeader(name, dns.TypeCNAME), Target: dns.Fqdn(target)}
}

func mxRR(name string, pref uint16, host string) *dns.MX {
	return &dns.MX{Hdr: rrHeader(name, dns.TypeMX), Preference: pref, Mx: dns.Fqdn(host)}
}

func soaRR(zone string) *dns.SOA {
	return &dns.SOA{
		Hdr:     rrHeader(zone, dns.TypeSOA),
		Ns:      dns.Fqdn("ns." + zone),
		Mbox:    dns.Fqdn("hostmaster." + zone),
		Serial:  1,
		Refresh: 3600,
		Retry:   600,
		Expire:  86400,
		Minttl:  300,
	}
}

func reply(req *dns.Msg, answer, authority, extra []dns.RR) *dns.Msg {
	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = len(answer) > 0
	m.Answer = answer
	m.Ns = authority
	m.Extra = extra
	return m
}

func qname(req *dns.Msg) string {
	return req.Question[0].Name
}

func qtype(req *dns.Msg) uint16 {
	return req.Question[0].Qtype
}
