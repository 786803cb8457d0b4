package revalidate

import (
	"context"
	"time"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/lookup"
	"github.com/ignite/domainwatch/internal/metrics"
	"github.com/ignite/domainwatch/internal/pkg/cache"
	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/service/verification"
)

// Fetcher gathers one section. *lookup.Client satisfies it.
type Fetcher interface {
	DNS(ctx context.Context, domainName string) (*lookup.DNSRecords, error)
	Headers(ctx context.Context, domainName string) (*lookup.Headers, error)
	Hosting(dns *lookup.DNSRecords, headers *lookup.Headers) *lookup.Hosting
	Certificates(ctx context.Context, domainName string) ([]domain.Certificate, error)
	SEO(ctx context.Context, domainName string) (*lookup.SEO, error)
	Registration(ctx context.Context, domainName string) (*lookup.Registration, error)
}

// Result is the outcome of one revalidation.
type Result struct {
	Success bool   `json:"success"`
	Domain  string `json:"domain"`
	Section string `json:"section"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// cachedSection is what the cache holds per section.
type cachedSection struct {
	Data      any       `json:"data"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Dispatcher revalidates sections and refreshes the section cache.
type Dispatcher struct {
	fetcher Fetcher
	cache   *cache.Cache
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher. c may be nil to disable caching.
func NewDispatcher(f Fetcher, c *cache.Cache, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{
		fetcher: f,
		cache:   c,
		log:     log.With("component", "revalidate"),
		metrics: m,
		now:     time.Now,
	}
}

// Revalidate refetches one section of domainName. Failures are reported in
// the Result, never as an error. A successful result overwrites the cached
// section; a failed one leaves the previous value in place.
func (d *Dispatcher) Revalidate(ctx context.Context, domainName string, section Section) Result {
	res := Result{Domain: domainName, Section: section.Name()}

	name, err := verification.NormalizeDomain(domainName)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Domain = name

	data, err := section.revalidate(ctx, d.fetcher, name)
	d.metrics.IncRevalidation(section.Name(), err == nil)
	if err != nil {
		d.log.Info("section revalidation failed", "domain", name, "section", section.Name(), "error", err)
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.Data = data
	d.cache.Set(ctx, cache.SectionKey(name, section.Name()), cachedSection{Data: data, CheckedAt: d.now().UTC()})
	return res
}

// Cached returns the last successfully revalidated value of a section as
// raw JSON-decoded data.
func (d *Dispatcher) Cached(ctx context.Context, domainName string, section Section) (any, time.Time, bool) {
	var cs cachedSection
	if !d.cache.Get(ctx, cache.SectionKey(domainName, section.Name()), &cs) {
		return nil, time.Time{}, false
	}
	return cs.Data, cs.CheckedAt, true
}
