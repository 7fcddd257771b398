package hostlookup

import "fmt"

// CNAMERecord is one alias link surfaced by a CNAME lookup.
type CNAMERecord struct {
	Name  string // canonical target
	Alias string // the name that was queried
}

// AddressRecord is one A or AAAA record.
type AddressRecord struct {
	Name    string
	Address string
}

// MXRecord is one mail exchanger record.
type MXRecord struct {
	Name       string
	Preference uint16
	Exchange   string
}

// DomainResult aggregates the CNAME, A, AAAA and MX records found for
// one domain. Record types with no resolvable records are empty lists.
type DomainResult struct {
	Domain string
	CNAME  []CNAMERecord
	A      []AddressRecord
	AAAA   []AddressRecord
	MX     []MXRecord
}

// Lines renders the result in host(1) style, one line per record.
func (dr *DomainResult) Lines() (lines []string) {
	for _, rec := range dr.CNAME {
		lines = append(lines, fmt.Sprintf("%s is an alias for %s", rec.Alias, rec.Name))
	}
	for _, rec := range dr.A {
		lines = append(lines, fmt.Sprintf("%s has address %s", rec.Name, rec.Address))
	}
	for _, rec := range dr.AAAA {
		lines = append(lines, fmt.Sprintf("%s has IPv6 address %s", rec.Name, rec.Address))
	}
	for _, rec := range dr.MX {
		lines = append(lines, fmt.Sprintf("%s mail is handled by %d %s", rec.Name, rec.Preference, rec.Exchange))
	}
	return
}
