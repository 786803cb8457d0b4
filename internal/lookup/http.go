package lookup

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Headers is the HTTP headers section of a domain.
type Headers struct {
	Status   int         `json:"status"`
	FinalURL string      `json:"finalUrl"`
	Header   http.Header `json:"header"`
	HSTS     bool        `json:"hsts"`
	Server   string      `json:"server,omitempty"`
}

// securityHeaders are the response headers kept in the section.
var securityHeaders = []string{
	"Server", "X-Powered-By", "Via",
	"Strict-Transport-Security", "Content-Security-Policy",
	"X-Frame-Options", "X-Content-Type-Options", "Referrer-Policy",
	"Permissions-Policy", "CF-Ray", "X-Vercel-Id", "X-Served-By",
	"X-Amz-Cf-Id", "X-Github-Request-Id", "X-Nf-Request-Id", "Fly-Request-Id",
}

// Headers fetches the home page and keeps the headers useful for provider
// detection and security posture.
func (c *Client) Headers(ctx context.Context, domainName string) (*Headers, error) {
	res, err := c.fetchHome(ctx, domainName)
	if err != nil {
		return nil, err
	}

	kept := http.Header{}
	for _, name := range securityHeaders {
		if v := res.Header.Values(name); len(v) > 0 {
			kept[http.CanonicalHeaderKey(name)] = v
		}
	}
	return &Headers{
		Status:   res.Status,
		FinalURL: res.FinalURL,
		Header:   kept,
		HSTS:     kept.Get("Strict-Transport-Security") != "",
		Server:   kept.Get("Server"),
	}, nil
}

// SEO is the on-page metadata section of a domain.
type SEO struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Canonical   string   `json:"canonical,omitempty"`
	Robots      string   `json:"robots,omitempty"`
	H1          []string `json:"h1,omitempty"`
	OpenGraph   bool     `json:"openGraph"`
}

// SEO fetches the home page and extracts its metadata.
func (c *Client) SEO(ctx context.Context, domainName string) (*SEO, error) {
	res, err := c.fetchHome(ctx, domainName)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, ErrNoData
	}

	r, err := charset.NewReader(bytes.NewReader(res.Body), res.ContentType)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	seo := &SEO{
		Title: strings.TrimSpace(doc.Find("head title").First().Text()),
	}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		prop, _ := s.Attr("property")
		content, _ := s.Attr("content")
		switch {
		case strings.EqualFold(name, "description"):
			seo.Description = strings.TrimSpace(content)
		case strings.EqualFold(name, "robots"):
			seo.Robots = strings.TrimSpace(content)
		case strings.HasPrefix(strings.ToLower(prop), "og:"):
			seo.OpenGraph = true
		}
	})
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		seo.Canonical = strings.TrimSpace(href)
	}
	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			seo.H1 = append(seo.H1, t)
		}
	})
	return seo, nil
}
