// Command genhints regenerates the compiled-in root server list from
// the internic root hints file, keeping IPv4 addresses only.
package main

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"os"
	"sort"
	"text/template"

	"github.com/miekg/dns"
)

//go:embed roothints.go.tmpl
var roothintsgotmpl string

type Roots struct {
	Roots4 []netip.Addr
}

func main() {
	resp, err := http.Get("https://www.internic.net/domain/named.root")
	if err == nil {
		defer resp.Body.Close()
		var body []byte
		if body, err = io.ReadAll(resp.Body); err == nil {
			var roots4 []netip.Addr
			zp := dns.NewZoneParser(bytes.NewReader(body), "", "")
			for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
				if rr, ok := rr.(*dns.A); ok {
					if ip, ok := netip.AddrFromSlice(rr.A); ok {
						if ip = ip.Unmap(); ip.Is4() {
							roots4 = append(roots4, ip)
						}
					}
				}
			}

			sort.Slice(roots4, func(i, j int) bool { return roots4[i].Less(roots4[j]) })

			if err = zp.Err(); err == nil {
				var of *os.File
				if len(os.Args) < 2 {
					of = os.Stdout
				} else {
					if of, err = os.Create(os.Args[1]); err == nil {
						defer of.Close()
					}
				}
				if err == nil {
					var t *template.Template
					if t, err = template.New("").Parse(roothintsgotmpl); err == nil {
						err = t.Execute(of, Roots{Roots4: roots4})
					}
				}
			}
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
