package lookup

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/domainwatch/internal/pkg/dohresolver"
	"github.com/ignite/domainwatch/internal/pkg/httpretry"
	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/pkg/safefetch"
)

// ErrNoData means the lookup completed but the domain publishes nothing
// for the section.
var ErrNoData = errors.New("lookup returned no data")

// DNSResolver is the subset of the DoH resolver the lookups use.
type DNSResolver interface {
	LookupA(ctx context.Context, name string) ([]string, error)
	LookupAAAA(ctx context.Context, name string) ([]string, error)
	LookupNS(ctx context.Context, name string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]dohresolver.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupCNAME(ctx context.Context, name string) ([]string, error)
}

// Fetcher performs guarded HTTP GETs against the tracked domain.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts safefetch.Options) (*safefetch.Result, error)
}

const (
	defaultRDAPBase = "https://rdap.org"
	defaultTimeout  = 5 * time.Second
	pageMaxBytes    = 512 * 1024
)

// Client runs the lookups. It is safe for concurrent use.
type Client struct {
	dns          DNSResolver
	fetcher      Fetcher
	rdap         httpretry.HTTPDoer
	rdapBase     string
	tlsPort      string
	allowPrivate bool
	timeout      time.Duration
	userAgent    string
	log          *logger.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithRDAP overrides the RDAP bootstrap base URL and HTTP client.
func WithRDAP(base string, client httpretry.HTTPDoer) Option {
	return func(c *Client) {
		if base != "" {
			c.rdapBase = strings.TrimSuffix(base, "/")
		}
		if client != nil {
			c.rdap = client
		}
	}
}

// WithTLSPort overrides the port dialled for certificate lookups.
func WithTLSPort(port string) Option {
	return func(c *Client) { c.tlsPort = port }
}

// WithPrivateNetworks allows certificate lookups against private addresses.
// Only meant for local development.
func WithPrivateNetworks() Option {
	return func(c *Client) { c.allowPrivate = true }
}

// WithTimeout bounds each individual network call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent sent to tracked domains.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a lookup Client.
func New(dns DNSResolver, fetcher Fetcher, opts ...Option) *Client {
	c := &Client{
		dns:      dns,
		fetcher:  fetcher,
		rdapBase: defaultRDAPBase,
		tlsPort:  "443",
		timeout:  defaultTimeout,
		log:      logger.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.rdap == nil {
		c.rdap = httpretry.NewRetryClient(&http.Client{Timeout: 10 * time.Second}, 2, httpretry.WithLogger(c.log))
	}
	c.log = c.log.With("component", "lookup")
	return c
}

// fetchOptions restricts a fetch to the domain and its www host.
func (c *Client) fetchOptions(domainName string, maxBytes int64) safefetch.Options {
	return safefetch.Options{
		AllowedHosts: []string{domainName, "www." + domainName},
		AllowHTTP:    true,
		Timeout:      c.timeout,
		MaxBytes:     maxBytes,
		MaxRedirects: 5,
		UserAgent:    c.userAgent,
	}
}

// fetchHome GETs the home page, HTTPS first, then HTTP.
func (c *Client) fetchHome(ctx context.Context, domainName string) (*safefetch.Result, error) {
	var lastErr error
	for _, scheme := range []string{"https", "http"} {
		res, err := c.fetcher.Fetch(ctx, scheme+"://"+domainName+"/", c.fetchOptions(domainName, pageMaxBytes))
		if err == nil {
			return res, nil
		}
		lastErr = err
		c.log.Debug("home page fetch failed", "domain", domainName, "scheme", scheme, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}
