package hostlookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainResultLines(t *testing.T) {
	t.Parallel()
	dr := &DomainResult{
		Domain: "www.example.com",
		CNAME:  []CNAMERecord{{Name: "example.com.", Alias: "www.example.com"}},
		A:      []AddressRecord{{Name: "example.com.", Address: "93.184.216.34"}},
		AAAA:   []AddressRecord{{Name: "example.com.", Address: "2606:2800:220:1:248:1893:25c8:1946"}},
		MX:     []MXRecord{{Name: "example.com.", Preference: 10, Exchange: "mail.example.com."}},
	}
	assert.Equal(t, []string{
		"www.example.com is an alias for example.com.",
		"example.com. has address 93.184.216.34",
		"example.com. has IPv6 address 2606:2800:220:1:248:1893:25c8:1946",
		"example.com. mail is handled by 10 mail.example.com.",
	}, dr.Lines())
}

func TestDomainResultLinesEmpty(t *testing.T) {
	t.Parallel()
	dr := &DomainResult{Domain: "example.com"}
	assert.Empty(t, dr.Lines())
}
