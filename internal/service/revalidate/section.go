package revalidate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/domainwatch/internal/lookup"
)

// ErrUnknownSection is returned by ParseSection for names outside the set.
var ErrUnknownSection = errors.New("unknown section")

// Section is one revalidatable part of a domain's cached data.
type Section interface {
	Name() string
	revalidate(ctx context.Context, f Fetcher, domainName string) (any, error)
}

type (
	dnsSection          struct{}
	headersSection      struct{}
	hostingSection      struct{}
	certificatesSection struct{}
	seoSection          struct{}
	registrationSection struct{}
)

// The closed set of sections.
var (
	DNS          Section = dnsSection{}
	Headers      Section = headersSection{}
	Hosting      Section = hostingSection{}
	Certificates Section = certificatesSection{}
	SEO          Section = seoSection{}
	Registration Section = registrationSection{}
)

// Sections lists every section.
var Sections = []Section{DNS, Headers, Hosting, Certificates, SEO, Registration}

// ParseSection maps a section name to its Section.
func ParseSection(name string) (Section, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range Sections {
		if s.Name() == n {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSection, name)
}

func (dnsSection) Name() string          { return "dns" }
func (headersSection) Name() string      { return "headers" }
func (hostingSection) Name() string      { return "hosting" }
func (certificatesSection) Name() string { return "certificates" }
func (seoSection) Name() string          { return "seo" }
func (registrationSection) Name() string { return "registration" }

func (dnsSection) revalidate(ctx context.Context, f Fetcher, d string) (any, error) {
	return f.DNS(ctx, d)
}

func (headersSection) revalidate(ctx context.Context, f Fetcher, d string) (any, error) {
	return f.Headers(ctx, d)
}

func (certificatesSection) revalidate(ctx context.Context, f Fetcher, d string) (any, error) {
	return f.Certificates(ctx, d)
}

func (seoSection) revalidate(ctx context.Context, f Fetcher, d string) (any, error) {
	return f.SEO(ctx, d)
}

func (registrationSection) revalidate(ctx context.Context, f Fetcher, d string) (any, error) {
	return f.Registration(ctx, d)
}

// Hosting needs DNS and headers. Both are fetched concurrently and must
// succeed; otherwise the hosting fetch is skipped and the first failing
// prerequisite (DNS before headers) is reported.
func (hostingSection) revalidate(ctx context.Context, f Fetcher, d string) (any, error) {
	var (
		g       errgroup.Group
		records *lookup.DNSRecords
		headers *lookup.Headers
		dnsErr  error
		hdrErr  error
	)
	g.Go(func() error {
		records, dnsErr = f.DNS(ctx, d)
		return nil
	})
	g.Go(func() error {
		headers, hdrErr = f.Headers(ctx, d)
		return nil
	})
	_ = g.Wait()

	if dnsErr != nil {
		return nil, &PrerequisiteError{Section: DNS.Name(), Err: dnsErr}
	}
	if hdrErr != nil {
		return nil, &PrerequisiteError{Section: Headers.Name(), Err: hdrErr}
	}
	return f.Hosting(records, headers), nil
}

// PrerequisiteError reports that a section this one depends on failed.
type PrerequisiteError struct {
	Section string
	Err     error
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("%s prerequisite failed: %v", e.Section, e.Err)
}

func (e *PrerequisiteError) Unwrap() error { return e.Err }
