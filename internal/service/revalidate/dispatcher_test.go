package revalidate

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/lookup"
	"github.com/ignite/domainwatch/internal/pkg/cache"
	"github.com/ignite/domainwatch/internal/pkg/logger"
)

type fakeFetcher struct {
	dnsErr     error
	headersErr error
	certErr    error

	dnsCalls     atomic.Int32
	headersCalls atomic.Int32
	hostingCalls atomic.Int32
}

func (f *fakeFetcher) DNS(context.Context, string) (*lookup.DNSRecords, error) {
	f.dnsCalls.Add(1)
	if f.dnsErr != nil {
		return nil, f.dnsErr
	}
	return &lookup.DNSRecords{A: []string{"192.0.2.10"}}, nil
}

func (f *fakeFetcher) Headers(context.Context, string) (*lookup.Headers, error) {
	f.headersCalls.Add(1)
	if f.headersErr != nil {
		return nil, f.headersErr
	}
	return &lookup.Headers{Status: 200, Header: http.Header{"Server": {"cloudflare"}}}, nil
}

func (f *fakeFetcher) Hosting(dns *lookup.DNSRecords, headers *lookup.Headers) *lookup.Hosting {
	f.hostingCalls.Add(1)
	id := "cloudflare"
	return &lookup.Hosting{HostingProviderID: &id, Addresses: dns.A}
}

func (f *fakeFetcher) Certificates(context.Context, string) ([]domain.Certificate, error) {
	if f.certErr != nil {
		return nil, f.certErr
	}
	return []domain.Certificate{{Issuer: "R3", ValidTo: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)}}, nil
}

func (f *fakeFetcher) SEO(context.Context, string) (*lookup.SEO, error) {
	return &lookup.SEO{Title: "Example"}, nil
}

func (f *fakeFetcher) Registration(context.Context, string) (*lookup.Registration, error) {
	return &lookup.Registration{RegistrarName: "Cloudflare, Inc."}, nil
}

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, cache.New(rdb, time.Hour, logger.Nop())
}

func TestParseSection(t *testing.T) {
	for _, name := range []string{"dns", "headers", "hosting", "certificates", "seo", "registration"} {
		s, err := ParseSection(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}

	s, err := ParseSection(" DNS ")
	require.NoError(t, err)
	assert.Equal(t, DNS, s)

	_, err = ParseSection("whois")
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestRevalidate_EverySectionDispatches(t *testing.T) {
	d := NewDispatcher(&fakeFetcher{}, nil, logger.Nop(), nil)

	for _, s := range Sections {
		res := d.Revalidate(context.Background(), "example.com", s)
		assert.True(t, res.Success, s.Name())
		assert.Equal(t, s.Name(), res.Section)
		assert.Equal(t, "example.com", res.Domain)
		assert.NotNil(t, res.Data, s.Name())
	}
}

func TestRevalidate_HostingPrerequisites(t *testing.T) {
	ctx := context.Background()

	t.Run("both prerequisites succeed", func(t *testing.T) {
		f := &fakeFetcher{}
		res := NewDispatcher(f, nil, logger.Nop(), nil).Revalidate(ctx, "example.com", Hosting)

		require.True(t, res.Success)
		assert.EqualValues(t, 1, f.dnsCalls.Load())
		assert.EqualValues(t, 1, f.headersCalls.Load())
		assert.EqualValues(t, 1, f.hostingCalls.Load())
		h := res.Data.(*lookup.Hosting)
		assert.Equal(t, "cloudflare", *h.HostingProviderID)
	})

	t.Run("dns failure skips hosting", func(t *testing.T) {
		f := &fakeFetcher{dnsErr: errors.New("servfail")}
		res := NewDispatcher(f, nil, logger.Nop(), nil).Revalidate(ctx, "example.com", Hosting)

		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "dns prerequisite failed")
		assert.Contains(t, res.Error, "servfail")
		assert.EqualValues(t, 1, f.headersCalls.Load())
		assert.Zero(t, f.hostingCalls.Load())
	})

	t.Run("headers failure skips hosting", func(t *testing.T) {
		f := &fakeFetcher{headersErr: errors.New("connection refused")}
		res := NewDispatcher(f, nil, logger.Nop(), nil).Revalidate(ctx, "example.com", Hosting)

		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "headers prerequisite failed")
		assert.Zero(t, f.hostingCalls.Load())
	})

	t.Run("dns error wins when both fail", func(t *testing.T) {
		f := &fakeFetcher{dnsErr: errors.New("servfail"), headersErr: errors.New("refused")}
		res := NewDispatcher(f, nil, logger.Nop(), nil).Revalidate(ctx, "example.com", Hosting)

		assert.Contains(t, res.Error, "dns prerequisite failed")
	})
}

func TestRevalidate_Cache(t *testing.T) {
	ctx := context.Background()
	_, c := setupTestCache(t)
	f := &fakeFetcher{}
	d := NewDispatcher(f, c, logger.Nop(), nil)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	res := d.Revalidate(ctx, "Example.com", Certificates)
	require.True(t, res.Success)

	data, checkedAt, ok := d.Cached(ctx, "example.com", Certificates)
	require.True(t, ok)
	assert.True(t, fixed.Equal(checkedAt))
	list, isList := data.([]any)
	require.True(t, isList)
	assert.Len(t, list, 1)

	f.certErr = errors.New("handshake timeout")
	d.now = func() time.Time { return fixed.Add(time.Hour) }
	res = d.Revalidate(ctx, "example.com", Certificates)
	assert.False(t, res.Success)

	_, checkedAt, ok = d.Cached(ctx, "example.com", Certificates)
	require.True(t, ok)
	assert.True(t, fixed.Equal(checkedAt), "failed revalidation must not overwrite the cached section")
}

func TestRevalidate_CacheDownIsNotAnError(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()
	c := cache.New(rdb, time.Hour, logger.Nop())

	res := NewDispatcher(&fakeFetcher{}, c, logger.Nop(), nil).Revalidate(context.Background(), "example.com", SEO)
	assert.True(t, res.Success)
}

func TestRevalidate_InvalidDomain(t *testing.T) {
	f := &fakeFetcher{}
	res := NewDispatcher(f, nil, logger.Nop(), nil).Revalidate(context.Background(), "localhost", DNS)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, f.dnsCalls.Load())
}
