package verification

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/metrics"
	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/pkg/safefetch"
)

// TXTResolver looks up TXT records by name.
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Fetcher performs guarded HTTP GETs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts safefetch.Options) (*safefetch.Result, error)
}

// Config bounds the outbound requests made while verifying.
type Config struct {
	Timeout      time.Duration
	MaxBytes     int64
	MetaMaxBytes int64
	UserAgent    string
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 1024
	}
	if c.MetaMaxBytes <= 0 {
		c.MetaMaxBytes = 128 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "domainwatch-verifier/1.0"
	}
}

// Engine runs the verification methods. It is safe for concurrent use.
type Engine struct {
	resolver TXTResolver
	fetcher  Fetcher
	cfg      Config
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewEngine creates an Engine.
func NewEngine(resolver TXTResolver, fetcher Fetcher, cfg Config, log *logger.Logger, m *metrics.Metrics) *Engine {
	cfg.applyDefaults()
	if log == nil {
		log = logger.Default()
	}
	return &Engine{
		resolver: resolver,
		fetcher:  fetcher,
		cfg:      cfg,
		log:      log.With("component", "verification"),
		metrics:  m,
	}
}

// Verify checks whether token is published for domainName. With an empty
// method every method is tried in priority order and the first success is
// returned; otherwise only the given method runs. A method outside the known
// set is a *ValidationError wrapping ErrInvalidMethod. Network failures are
// not errors: they simply mean the method did not verify.
func (e *Engine) Verify(ctx context.Context, domainName, token string, method domain.Method) (domain.VerificationResult, error) {
	if method != "" && !method.Valid() {
		return domain.VerificationResult{}, &ValidationError{Field: "method", Err: ErrInvalidMethod}
	}
	if strings.TrimSpace(token) == "" {
		return domain.VerificationResult{}, &ValidationError{Field: "token", Err: ErrMissingToken}
	}
	if strings.TrimSpace(domainName) == "" {
		return domain.VerificationResult{}, &ValidationError{Field: "domain", Err: ErrInvalidDomain}
	}

	start := time.Now()
	defer e.metrics.ObserveVerifyDuration(start)

	methods := domain.Methods
	if method != "" {
		methods = []domain.Method{method}
	}

	for _, m := range methods {
		if ctx.Err() != nil {
			break
		}
		ok := e.try(ctx, m, domainName, token)
		e.metrics.ObserveVerification(string(m), ok)
		if ok {
			e.log.Info("domain verified", "domain", domainName, "method", m)
			return domain.VerificationResult{Verified: true, Method: m}, nil
		}
	}
	return domain.VerificationResult{}, nil
}

func (e *Engine) try(ctx context.Context, m domain.Method, domainName, token string) bool {
	switch m {
	case domain.MethodDNSTXT:
		return e.checkTXT(ctx, domainName, token)
	case domain.MethodHTMLFile:
		return e.checkFile(ctx, domainName, token)
	case domain.MethodMetaTag:
		return e.checkMeta(ctx, domainName, token)
	default:
		return false
	}
}

func (e *Engine) checkTXT(ctx context.Context, domainName, token string) bool {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	records, err := e.resolver.LookupTXT(ctx, TXTRecordName(domainName))
	if err != nil {
		e.log.Debug("txt lookup failed", "domain", domainName, "error", err)
		return false
	}
	for _, r := range records {
		if strings.Contains(r, token) {
			return true
		}
	}
	return false
}

func (e *Engine) checkFile(ctx context.Context, domainName, token string) bool {
	want := FileContent(token)
	for _, path := range []string{FilePath(token), LegacyFilePath} {
		for _, scheme := range []string{"https", "http"} {
			res, ok := e.fetch(ctx, scheme+"://"+domainName+path, domainName, e.cfg.MaxBytes)
			if !ok {
				continue
			}
			if strings.TrimSpace(string(res.Body)) == want {
				return true
			}
		}
	}
	return false
}

func (e *Engine) checkMeta(ctx context.Context, domainName, token string) bool {
	for _, scheme := range []string{"https", "http"} {
		res, ok := e.fetch(ctx, scheme+"://"+domainName+"/", domainName, e.cfg.MetaMaxBytes)
		if !ok {
			continue
		}
		if hasMetaToken(res, token) {
			return true
		}
	}
	return false
}

// fetch performs one single-shot GET and reports whether a 2xx body came back.
func (e *Engine) fetch(ctx context.Context, rawURL, domainName string, maxBytes int64) (*safefetch.Result, bool) {
	res, err := e.fetcher.Fetch(ctx, rawURL, safefetch.Options{
		AllowedHosts: []string{domainName, "www." + domainName},
		AllowHTTP:    true,
		Timeout:      e.cfg.Timeout,
		MaxBytes:     maxBytes,
		MaxRedirects: 3,
		UserAgent:    e.cfg.UserAgent,
	})
	if err != nil {
		e.log.Debug("verification fetch failed", "url", rawURL, "code", safefetch.CodeOf(err), "error", err)
		return nil, false
	}
	if !res.OK {
		return nil, false
	}
	return res, true
}

func hasMetaToken(res *safefetch.Result, token string) bool {
	reader, err := charset.NewReader(bytes.NewReader(res.Body), res.ContentType)
	if err != nil {
		reader = bytes.NewReader(res.Body)
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return false
	}

	found := false
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), MetaName) {
			return true
		}
		content, _ := s.Attr("content")
		if strings.TrimSpace(content) == token {
			found = true
			return false
		}
		return true
	})
	return found
}
