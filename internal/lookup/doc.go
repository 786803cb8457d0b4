// Package lookup gathers the live facts about a domain that snapshots and
// section revalidation are built from: DNS records, HTTP response headers,
// the served TLS chain, SEO metadata, registry data (RDAP) and the hosting
// provider derived from DNS and headers.
//
// Every outbound HTTP request to the tracked domain goes through the
// guarded fetcher in internal/pkg/safefetch. Provider identification is
// delegated to internal/providers.
package lookup
