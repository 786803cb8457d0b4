// Package providers maps raw infrastructure signals (nameservers, MX hosts,
// HTTP headers, certificate issuers, registrar names) to stable provider ids
// used in snapshots.
package providers

import (
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Provider ids. Unknown providers fall back to the registrable domain of the
// signal (or a slug of the registrar name) so changes are still detected.
const (
	Cloudflare   = "cloudflare"
	AWS          = "aws"
	Google       = "google"
	Microsoft    = "microsoft"
	GoDaddy      = "godaddy"
	Namecheap    = "namecheap"
	DigitalOcean = "digitalocean"
	Vercel       = "vercel"
	Netlify      = "netlify"
	Fastly       = "fastly"
	GitHub       = "github"
	Akamai       = "akamai"
	Zoho         = "zoho"
	ProtonMail   = "protonmail"
	Fastmail     = "fastmail"
	LetsEncrypt  = "letsencrypt"
	DigiCert     = "digicert"
	Sectigo      = "sectigo"
	GlobalSign   = "globalsign"
	Gandi        = "gandi"
	Tucows       = "tucows"
	MarkMonitor  = "markmonitor"
	Porkbun      = "porkbun"
	Squarespace  = "squarespace"
	NameCom      = "namecom"
	OVH          = "ovh"
	NetSol       = "networksolutions"
)

// nsPatterns maps nameserver hostname suffixes to DNS providers.
var nsPatterns = []suffixRule{
	{"ns.cloudflare.com", Cloudflare},
	{"cloudflare.com", Cloudflare},
	{"awsdns-", AWS},
	{"googledomains.com", Google},
	{"google.com", Google},
	{"azure-dns.com", Microsoft},
	{"azure-dns.net", Microsoft},
	{"domaincontrol.com", GoDaddy},
	{"registrar-servers.com", Namecheap},
	{"digitalocean.com", DigitalOcean},
	{"vercel-dns.com", Vercel},
	{"nsone.net", Netlify},
	{"akam.net", Akamai},
	{"ovh.net", OVH},
	{"gandi.net", Gandi},
	{"porkbun.com", Porkbun},
}

// mxPatterns maps MX hostname suffixes to email providers.
var mxPatterns = []suffixRule{
	{"google.com", Google},
	{"googlemail.com", Google},
	{"protection.outlook.com", Microsoft},
	{"zoho.com", Zoho},
	{"zoho.eu", Zoho},
	{"protonmail.ch", ProtonMail},
	{"messagingengine.com", Fastmail},
	{"amazonaws.com", AWS},
	{"mx.cloudflare.net", Cloudflare},
	{"secureserver.net", GoDaddy},
	{"privateemail.com", Namecheap},
	{"ovh.net", OVH},
}

// cnamePatterns maps CNAME targets to hosting providers.
var cnamePatterns = []suffixRule{
	{"cloudfront.net", AWS},
	{"elb.amazonaws.com", AWS},
	{"vercel-dns.com", Vercel},
	{"netlify.app", Netlify},
	{"github.io", GitHub},
	{"fastly.net", Fastly},
	{"edgekey.net", Akamai},
	{"akamaiedge.net", Akamai},
	{"azurewebsites.net", Microsoft},
	{"ghs.googlehosted.com", Google},
	{"ondigitalocean.app", DigitalOcean},
}

// headerRules detect hosting providers from response headers. A rule
// matches when the header is present and, if Contains is set, its
// lowercased value contains it.
var headerRules = []headerRule{
	{"X-Vercel-Id", "", Vercel},
	{"X-Nf-Request-Id", "", Netlify},
	{"X-Github-Request-Id", "", GitHub},
	{"Cf-Ray", "", Cloudflare},
	{"X-Amz-Cf-Id", "", AWS},
	{"X-Served-By", "cache-", Fastly},
	{"X-Azure-Ref", "", Microsoft},
	{"Server", "cloudflare", Cloudflare},
	{"Server", "vercel", Vercel},
	{"Server", "netlify", Netlify},
	{"Server", "github.com", GitHub},
	{"Server", "akamaighost", Akamai},
	{"Server", "amazons3", AWS},
	{"Server", "awselb", AWS},
	{"Server", "gws", Google},
	{"Server", "google frontend", Google},
}

// issuerRules map issuer organisation / common name substrings to CAs.
var issuerRules = []containsRule{
	{"let's encrypt", LetsEncrypt},
	{"lets encrypt", LetsEncrypt},
	{"digicert", DigiCert},
	{"sectigo", Sectigo},
	{"comodo", Sectigo},
	{"globalsign", GlobalSign},
	{"google trust services", Google},
	{"amazon", AWS},
	{"cloudflare", Cloudflare},
	{"godaddy", GoDaddy},
	{"starfield", GoDaddy},
	{"microsoft", Microsoft},
}

// letsEncryptIntermediates are issuer CNs used without an O= that names the CA.
var letsEncryptIntermediates = regexp.MustCompile(`^(r\d+|e\d+)$`)

// registrarRules map normalized registrar names to registrar ids.
var registrarRules = []containsRule{
	{"cloudflare", Cloudflare},
	{"godaddy", GoDaddy},
	{"namecheap", Namecheap},
	{"squarespace", Squarespace},
	{"google", Google},
	{"amazon", AWS},
	{"gandi", Gandi},
	{"tucows", Tucows},
	{"markmonitor", MarkMonitor},
	{"porkbun", Porkbun},
	{"namecom", NameCom},
	{"ovh", OVH},
	{"networksolutions", NetSol},
}

type suffixRule struct {
	suffix string
	id     string
}

type headerRule struct {
	header   string
	contains string
	id       string
}

type containsRule struct {
	needle string
	id     string
}

func ptr(s string) *string { return &s }

func normalizeHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}

func matchSuffix(host string, rules []suffixRule) string {
	for _, r := range rules {
		// Rules ending in "-" match a label prefix anywhere in the host.
		if strings.HasSuffix(host, r.suffix) || (strings.HasSuffix(r.suffix, "-") && strings.Contains(host, r.suffix)) {
			return r.id
		}
	}
	return ""
}

// registrable returns the eTLD+1 of host, or host itself when it has none.
func registrable(host string) string {
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// DNSProvider identifies the DNS provider from nameserver hosts.
func DNSProvider(nameservers []string) *string {
	return classifyHosts(nameservers, nsPatterns)
}

// EmailProvider identifies the mail provider from MX hosts.
func EmailProvider(mxHosts []string) *string {
	return classifyHosts(mxHosts, mxPatterns)
}

func classifyHosts(hosts []string, rules []suffixRule) *string {
	var fallback string
	for _, h := range hosts {
		host := normalizeHost(h)
		if host == "" {
			continue
		}
		if id := matchSuffix(host, rules); id != "" {
			return ptr(id)
		}
		if fallback == "" {
			fallback = registrable(host)
		}
	}
	if fallback == "" {
		return nil
	}
	return ptr(fallback)
}

// HostingProvider identifies the hosting provider from response headers,
// falling back to CNAME targets of the apex/www host.
func HostingProvider(headers http.Header, cnames []string) *string {
	for _, r := range headerRules {
		v := headers.Get(r.header)
		if v == "" {
			continue
		}
		if r.contains == "" || strings.Contains(strings.ToLower(v), r.contains) {
			return ptr(r.id)
		}
	}
	for _, c := range cnames {
		host := normalizeHost(c)
		if id := matchSuffix(host, cnamePatterns); id != "" {
			return ptr(id)
		}
	}
	return nil
}

// CAProvider identifies the certificate authority from the issuer
// organisation and common name.
func CAProvider(issuerOrg, issuerCN string) *string {
	org := strings.ToLower(issuerOrg)
	cn := strings.ToLower(strings.TrimSpace(issuerCN))
	for _, r := range issuerRules {
		if strings.Contains(org, r.needle) || strings.Contains(cn, r.needle) {
			return ptr(r.id)
		}
	}
	if letsEncryptIntermediates.MatchString(cn) {
		return ptr(LetsEncrypt)
	}
	if org != "" {
		return ptr(slug(org))
	}
	return nil
}

// RegistrarProvider identifies the registrar from its display name.
func RegistrarProvider(name string) *string {
	norm := slug(name)
	if norm == "" {
		return nil
	}
	for _, r := range registrarRules {
		if strings.Contains(norm, r.needle) {
			return ptr(r.id)
		}
	}
	return ptr(norm)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// slug lowercases s and drops everything but letters and digits, along with
// common corporate suffixes.
func slug(s string) string {
	s = strings.ToLower(s)
	for _, suffix := range []string{", inc.", " inc.", " inc", ", llc", " llc", " ltd.", " ltd", " gmbh", " s.a.s.", " sas"} {
		s = strings.TrimSuffix(strings.TrimSpace(s), suffix)
	}
	return nonAlnum.ReplaceAllString(s, "")
}
