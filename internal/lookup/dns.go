package lookup

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/domainwatch/internal/providers"
)

// DNSRecords is the DNS section of a domain.
type DNSRecords struct {
	A               []string `json:"a"`
	AAAA            []string `json:"aaaa"`
	NS              []string `json:"ns"`
	MX              []string `json:"mx"`
	TXT             []string `json:"txt"`
	WWWCNAME        []string `json:"wwwCname"`
	DNSProviderID   *string  `json:"dnsProviderId"`
	EmailProviderID *string  `json:"emailProviderId"`
}

// DNS queries every record type the monitor cares about concurrently. Any
// failed query fails the section.
func (c *Client) DNS(ctx context.Context, domainName string) (*DNSRecords, error) {
	out := &DNSRecords{}
	g, gctx := errgroup.WithContext(ctx)

	hosts := func(dst *[]string, what string, fn func(context.Context, string) ([]string, error), name string) {
		g.Go(func() error {
			v, err := fn(gctx, name)
			if err != nil {
				return fmt.Errorf("%s lookup: %w", what, err)
			}
			*dst = v
			return nil
		})
	}
	hosts(&out.A, "A", c.dns.LookupA, domainName)
	hosts(&out.AAAA, "AAAA", c.dns.LookupAAAA, domainName)
	hosts(&out.NS, "NS", c.dns.LookupNS, domainName)
	hosts(&out.TXT, "TXT", c.dns.LookupTXT, domainName)
	hosts(&out.WWWCNAME, "CNAME", c.dns.LookupCNAME, "www."+domainName)
	g.Go(func() error {
		mx, err := c.dns.LookupMX(gctx, domainName)
		if err != nil {
			return fmt.Errorf("MX lookup: %w", err)
		}
		sort.SliceStable(mx, func(i, j int) bool { return mx[i].Pref < mx[j].Pref })
		for _, m := range mx {
			out.MX = append(out.MX, m.Host)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.DNSProviderID = providers.DNSProvider(out.NS)
	out.EmailProviderID = providers.EmailProvider(out.MX)
	return out, nil
}
