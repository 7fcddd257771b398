package hostlookup

import (
	"net"
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

// glueRecord extracts the owning zone label and IPv4 address from an A
// record. Any other record type, an unusable address, or a name with
// fewer than two labels yields ok=false. Merging the result into the
// zone cache is the caller's explicit step; this function has no side
// effects.
func glueRecord(rr dns.RR) (zone string, addr netip.Addr, ok bool) {
	if a, isA := rr.(*dns.A); isA {
		if addr = ipToAddr(a.A); addr.Is4() {
			zone, ok = zoneKey(a.Hdr.Name)
		}
	}
	return
}

// zoneKey returns the second-to-last label of name. This approximates
// the zone of authority for two-label zones only; multi-label
// public-suffix domains (e.g. example.co.uk) key under the suffix.
func zoneKey(name string) (zone string, ok bool) {
	labels := dns.SplitDomainName(name)
	if len(labels) >= 2 {
		zone = strings.ToLower(labels[len(labels)-2])
		ok = true
	}
	return
}

func ipToAddr(ip net.IP) (addr netip.Addr) {
	if ip != nil {
		if v4 := ip.To4(); v4 != nil {
			addr = netip.AddrFrom4([4]byte(v4))
		} else if v6 := ip.To16(); v6 != nil {
			addr = netip.AddrFrom16([16]byte(v6))
		}
	}
	return
}
