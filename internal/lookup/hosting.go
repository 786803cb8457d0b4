package lookup

import (
	"net/http"

	"github.com/ignite/domainwatch/internal/providers"
)

// Hosting is the hosting section of a domain, derived from its DNS and
// HTTP headers sections.
type Hosting struct {
	HostingProviderID *string  `json:"hostingProviderId"`
	Addresses         []string `json:"addresses"`
	CNAMEs            []string `json:"cnames,omitempty"`
}

// Hosting identifies the hosting provider from already fetched sections.
// It performs no I/O. Either argument may be nil.
func (c *Client) Hosting(dns *DNSRecords, headers *Headers) *Hosting {
	h := &Hosting{}
	if dns != nil {
		h.CNAMEs = dns.WWWCNAME
		h.Addresses = append(h.Addresses, dns.A...)
		h.Addresses = append(h.Addresses, dns.AAAA...)
	}
	hdr := http.Header{}
	if headers != nil && headers.Header != nil {
		hdr = headers.Header
	}
	h.HostingProviderID = providers.HostingProvider(hdr, h.CNAMEs)
	return h
}
