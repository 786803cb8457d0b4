// Package dohresolver resolves DNS records over HTTPS using the JSON API
// offered by Cloudflare and Google. The provider for a name is picked by
// hashing the name, so load spreads across providers while repeat lookups
// for the same domain stay on one.
package dohresolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/domainwatch/internal/pkg/httpretry"
)

// Record types understood by the JSON API.
const (
	TypeA     = 1
	TypeNS    = 2
	TypeCNAME = 5
	TypeMX    = 15
	TypeTXT   = 16
	TypeAAAA  = 28
)

const (
	rcodeSuccess  = 0
	rcodeNXDomain = 3

	maxResponseBytes = 64 << 10
)

// DefaultProviders are used when none are configured.
var DefaultProviders = []string{
	"https://cloudflare-dns.com/dns-query",
	"https://dns.google/resolve",
}

// ErrNoProviders is returned when the resolver has no endpoints.
var ErrNoProviders = errors.New("dohresolver: no providers configured")

// Answer is one resource record from a response.
type Answer struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	TTL  int    `json:"TTL"`
	Data string `json:"data"`
}

type response struct {
	Status int      `json:"Status"`
	Answer []Answer `json:"Answer"`
}

// MX is a parsed mail exchanger record.
type MX struct {
	Host string
	Pref int
}

// Resolver is a DNS-over-HTTPS client.
type Resolver struct {
	providers []string
	client    httpretry.HTTPDoer
}

// New creates a Resolver. A nil client gets a 5s-timeout http.Client.
func New(providers []string, client httpretry.HTTPDoer) *Resolver {
	if len(providers) == 0 {
		providers = DefaultProviders
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Resolver{providers: providers, client: client}
}

// providerOrder returns the providers starting at the one selected by the
// FNV-1a hash of name.
func (r *Resolver) providerOrder(name string) []string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(name)))
	start := int(h.Sum32() % uint32(len(r.providers)))
	out := make([]string, 0, len(r.providers))
	for i := range r.providers {
		out = append(out, r.providers[(start+i)%len(r.providers)])
	}
	return out
}

// Lookup returns the answers of the given type for name. NXDOMAIN yields no
// answers and no error. The hashed provider is tried first; on a transport
// failure the next provider is tried once.
func (r *Resolver) Lookup(ctx context.Context, name string, rrType int) ([]Answer, error) {
	if len(r.providers) == 0 {
		return nil, ErrNoProviders
	}
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")

	order := r.providerOrder(name)
	if len(order) > 2 {
		order = order[:2]
	}
	var lastErr error
	for _, endpoint := range order {
		answers, err := r.query(ctx, endpoint, name, rrType)
		if err == nil {
			return answers, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (r *Resolver) query(ctx context.Context, endpoint, name string, rrType int) ([]Answer, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("type", strconv.Itoa(rrType))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("dohresolver: build request: %w", err)
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dohresolver: query %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dohresolver: %s returned status %d", endpoint, resp.StatusCode)
	}

	var parsed response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("dohresolver: decode response: %w", err)
	}

	switch parsed.Status {
	case rcodeSuccess:
	case rcodeNXDomain:
		return nil, nil
	default:
		return nil, fmt.Errorf("dohresolver: %s rcode %d for %s", endpoint, parsed.Status, name)
	}

	out := make([]Answer, 0, len(parsed.Answer))
	for _, a := range parsed.Answer {
		if a.Type == rrType {
			out = append(out, a)
		}
	}
	return out, nil
}

// LookupTXT returns the TXT strings for name, with character-strings of a
// single record joined.
func (r *Resolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	answers, err := r.Lookup(ctx, name, TypeTXT)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(answers))
	for _, a := range answers {
		out = append(out, unquoteTXT(a.Data))
	}
	return out, nil
}

// LookupNS returns nameserver hostnames without the trailing dot.
func (r *Resolver) LookupNS(ctx context.Context, name string) ([]string, error) {
	return r.lookupHosts(ctx, name, TypeNS)
}

// LookupCNAME returns CNAME targets without the trailing dot.
func (r *Resolver) LookupCNAME(ctx context.Context, name string) ([]string, error) {
	return r.lookupHosts(ctx, name, TypeCNAME)
}

// LookupA returns IPv4 addresses.
func (r *Resolver) LookupA(ctx context.Context, name string) ([]string, error) {
	return r.lookupHosts(ctx, name, TypeA)
}

// LookupAAAA returns IPv6 addresses.
func (r *Resolver) LookupAAAA(ctx context.Context, name string) ([]string, error) {
	return r.lookupHosts(ctx, name, TypeAAAA)
}

// LookupMX returns mail exchangers.
func (r *Resolver) LookupMX(ctx context.Context, name string) ([]MX, error) {
	answers, err := r.Lookup(ctx, name, TypeMX)
	if err != nil {
		return nil, err
	}
	out := make([]MX, 0, len(answers))
	for _, a := range answers {
		fields := strings.Fields(a.Data)
		if len(fields) != 2 {
			continue
		}
		pref, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		out = append(out, MX{Host: strings.ToLower(strings.TrimSuffix(fields[1], ".")), Pref: pref})
	}
	return out, nil
}

func (r *Resolver) lookupHosts(ctx context.Context, name string, rrType int) ([]string, error) {
	answers, err := r.Lookup(ctx, name, rrType)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(answers))
	for _, a := range answers {
		out = append(out, strings.ToLower(strings.TrimSuffix(a.Data, ".")))
	}
	return out, nil
}

// unquoteTXT turns `"part one" "part two"` into `part onepart two`.
func unquoteTXT(data string) string {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, `"`) {
		return data
	}
	var b strings.Builder
	inQuote := false
	escaped := false
	for _, c := range data {
		switch {
		case escaped:
			b.WriteRune(c)
			escaped = false
		case c == '\\' && inQuote:
			escaped = true
		case c == '"':
			inQuote = !inQuote
		case inQuote:
			b.WriteRune(c)
		}
	}
	return b.String()
}
