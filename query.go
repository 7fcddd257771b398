package hostlookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/linkdata/hostlookup/cache"
)

// query carries the per-lookup state: trace writer, zone cache handle,
// chase depth, query budget and the per-candidate attempt trail.
type query struct {
	resolver *Resolver
	ctx      context.Context
	zones    *cache.Zones
	writer   io.Writer
	start    time.Time
	depth    int
	queries  int
	trail    []Attempt
}

const maxChase = 16    // max CNAME/referral chase depth
const maxQueries = 256 // max exchanges for a single lookup

func (q *query) dive() (err error) {
	q.depth++
	if q.depth > maxChase {
		err = chaseLimitError{limit: maxChase}
	}
	return
}

func (q *query) surface() {
	q.depth--
}

func (q *query) roots() []netip.Addr {
	return q.resolver.RootServers()
}

// route is the warm-start step: prefer cached name server addresses for
// the zone of qname, falling back to the root servers.
func (q *query) route(qname string, qtype uint16) (*dns.Msg, error) {
	servers := q.roots()
	if zone, ok := zoneKey(qname); ok {
		if cached := q.zones.Lookup(zone); len(cached) > 0 {
			q.logf("cache seed zone=%s servers=%d", zone, len(cached))
			servers = cached
		}
	}
	return q.resolve(qname, qtype, servers)
}

// resolve is the iterative engine. Each candidate gets one UDP attempt;
// a matching answer wins, a CNAME restarts resolution at the roots, a
// referral recurses into the glue addresses, and a glueless referral
// first resolves the delegated server names themselves from the roots.
func (q *query) resolve(qname string, qtype uint16, servers []netip.Addr) (msg *dns.Msg, err error) {
	if err = q.dive(); err != nil {
		return nil, err
	}
	defer q.surface()
	if len(servers) == 0 {
		q.logf("no candidates for %s %q", dns.Type(qtype), qname)
		return nil, q.noAnswer(qname, qtype)
	}

	m := new(dns.Msg)
	m.SetQuestion(qname, qtype)
	m.RecursionDesired = false

	for _, svr := range servers {
		if q.ctx.Err() != nil {
			return nil, q.ctx.Err()
		}
		resp, exErr := q.exchange(m, svr)
		if exErr != nil {
			if errors.Is(exErr, ErrTooManyQueries) {
				return nil, exErr
			}
			continue
		}
		if resp == nil {
			continue
		}

		if len(resp.Answer) > 0 {
			for _, rr := range resp.Answer {
				if rr.Header().Rrtype == qtype {
					q.logf("answer %s %q server=%s", dns.Type(qtype), qname, svr)
					return resp, nil
				}
				if cname, ok := rr.(*dns.CNAME); ok && qtype != dns.TypeCNAME {
					target := dns.Fqdn(strings.ToLower(cname.Target))
					q.logf("cname %q -> %q, restarting at roots", qname, target)
					return q.resolve(target, qtype, q.roots())
				}
			}
			continue
		}

		// Referral with glue: recurse into the glue addresses and
		// return the result directly, skipping remaining candidates.
		if len(resp.Extra) > 0 {
			var glue []netip.Addr
			for _, rr := range resp.Extra {
				if zone, addr, ok := glueRecord(rr); ok {
					q.zones.Merge(zone, addr)
					glue = append(glue, addr)
				}
			}
			q.logf("referral %q glue=%d", qname, len(glue))
			return q.resolve(qname, qtype, dedupAddrs(glue))
		}

		// Glueless referral: resolve each delegated name server's own
		// address from the roots before descending into the zone.
		for _, host := range delegationNS(resp) {
			sub, subErr := q.resolve(dns.Fqdn(host), dns.TypeA, q.roots())
			if subErr != nil {
				if errors.Is(subErr, ErrTooManyQueries) {
					return nil, subErr
				}
				q.logf("ns %q unresolvable: %v", host, subErr)
				continue
			}
			for _, rr := range sub.Answer {
				if zone, addr, ok := glueRecord(rr); ok {
					q.zones.Merge(zone, addr)
					if msg, err = q.resolve(qname, qtype, []netip.Addr{addr}); err == nil {
						return msg, nil
					}
					if errors.Is(err, ErrTooManyQueries) {
						return nil, err
					}
				}
			}
		}
	}
	return nil, q.noAnswer(qname, qtype)
}

func (q *query) noAnswer(qname string, qtype uint16) error {
	return &NoAnswerError{
		Name:  qname,
		Qtype: qtype,
		Trail: append([]Attempt(nil), q.trail...),
	}
}

// delegationNS harvests delegated name server names from the authority
// section. Only NS records are considered; SOA and anything else in the
// section is skipped.
func delegationNS(m *dns.Msg) (hosts []string) {
	for _, rr := range m.Ns {
		if ns, ok := rr.(*dns.NS); ok {
			hosts = append(hosts, strings.ToLower(ns.Ns))
		}
	}
	return
}

// -------- Transport ---------

// exchange sends m to server with a single UDP attempt and records the
// outcome in the attempt trail. Transport errors are never retried
// against the same server.
func (q *query) exchange(m *dns.Msg, server netip.Addr) (resp *dns.Msg, err error) {
	q.queries++
	if q.queries > maxQueries {
		return nil, ErrTooManyQueries
	}
	if lim := q.resolver.Limiter; lim != nil {
		if err = lim.Wait(q.ctx); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	resp, err = q.exchangeUDP(m, server)
	q.trail = append(q.trail, Attempt{
		Server: server,
		Kind:   classifyAttempt(err, resp),
		RTT:    time.Since(start),
		Err:    err,
	})
	return
}

func (q *query) exchangeUDP(m *dns.Msg, server netip.Addr) (resp *dns.Msg, err error) {
	var dnsConn *dns.Conn
	if dnsConn, err = q.dialDNSConn(server); err == nil {
		defer dnsConn.Close()
		deadline := q.resolver.deadline(q.ctx)
		if !deadline.IsZero() {
			_ = dnsConn.SetDeadline(deadline)
		}
		var question dns.Question
		if len(m.Question) > 0 {
			question = m.Question[0]
			q.logQuerySend(server, question)
		}
		start := time.Now()
		if err = dnsConn.WriteMsg(m); err == nil {
			if resp, err = dnsConn.ReadMsg(); err == nil && len(m.Question) > 0 {
				q.logQueryReceive(server, question, resp, time.Since(start))
			}
		}
	}
	return
}

func (q *query) dialDNSConn(server netip.Addr) (dnsConn *dns.Conn, err error) {
	var rawConn net.Conn
	addrPort := q.resolver.addrPort(server)
	if rawConn, err = q.resolver.DialContext(q.ctx, "udp", addrPort.String()); err == nil {
		dnsConn = &dns.Conn{Conn: rawConn, UDPSize: dns.MinMsgSize}
	} else {
		q.logf("DIAL FAIL udp4: @%s err=%v", server.String(), err)
	}
	return
}

// -------- Trace logging ---------

func (q *query) logf(format string, args ...any) {
	if q.writer != nil {
		_, _ = fmt.Fprintf(q.writer, "\n[%6dms]%*s", time.Since(q.start).Milliseconds(), 1+q.depth*2, "")
		_, _ = fmt.Fprintf(q.writer, format, args...)
	}
}

func (q *query) logQuerySend(addr netip.Addr, question dns.Question) {
	q.logf("SENDING  udp4: @%s %s %q", addr.String(), dns.Type(question.Qtype), question.Name)
}

func (q *query) logQueryReceive(addr netip.Addr, question dns.Question, resp *dns.Msg, dur time.Duration) {
	if resp != nil {
		var flag string
		if resp.Authoritative {
			flag = " AUTH"
		}
		if resp.Truncated {
			flag += " TC"
		}
		q.logf("RECEIVED udp4: @%s %s %q => %s [%s] (%v, %d bytes%s)",
			addr.String(),
			dns.Type(question.Qtype),
			question.Name,
			dns.RcodeToString[resp.Rcode],
			formatCounts(resp),
			dur.Round(time.Millisecond),
			resp.Len(),
			flag,
		)
	}
}

func formatCounts(msg *dns.Msg) string {
	return fmt.Sprintf("%d+%d+%d A/N/E", len(msg.Answer), len(msg.Ns), len(msg.Extra))
}
