package providers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deref(t *testing.T, p *string) string {
	t.Helper()
	require.NotNil(t, p)
	return *p
}

func TestDNSProvider(t *testing.T) {
	assert.Equal(t, Cloudflare, deref(t, DNSProvider([]string{"ada.ns.cloudflare.com.", "bob.ns.cloudflare.com"})))
	assert.Equal(t, AWS, deref(t, DNSProvider([]string{"ns-12.awsdns-01.com"})))
	assert.Equal(t, GoDaddy, deref(t, DNSProvider([]string{"NS01.DOMAINCONTROL.COM"})))
	assert.Equal(t, "example-dns.co.uk", deref(t, DNSProvider([]string{"ns1.example-dns.co.uk"})))
	assert.Nil(t, DNSProvider(nil))
}

func TestEmailProvider(t *testing.T) {
	assert.Equal(t, Google, deref(t, EmailProvider([]string{"aspmx.l.google.com"})))
	assert.Equal(t, Microsoft, deref(t, EmailProvider([]string{"example-com.mail.protection.outlook.com."})))
	assert.Nil(t, EmailProvider([]string{""}))
}

func TestHostingProvider(t *testing.T) {
	h := http.Header{}
	h.Set("Server", "cloudflare")
	assert.Equal(t, Cloudflare, deref(t, HostingProvider(h, nil)))

	h = http.Header{}
	h.Set("X-Vercel-Id", "iad1::abc")
	assert.Equal(t, Vercel, deref(t, HostingProvider(h, nil)))

	assert.Equal(t, AWS, deref(t, HostingProvider(http.Header{}, []string{"d111111abcdef8.cloudfront.net."})))
	assert.Nil(t, HostingProvider(http.Header{}, nil))
}

func TestCAProvider(t *testing.T) {
	assert.Equal(t, LetsEncrypt, deref(t, CAProvider("Let's Encrypt", "R3")))
	assert.Equal(t, LetsEncrypt, deref(t, CAProvider("", "E5")))
	assert.Equal(t, DigiCert, deref(t, CAProvider("DigiCert Inc", "DigiCert TLS RSA SHA256 2020 CA1")))
	assert.Equal(t, Google, deref(t, CAProvider("Google Trust Services", "WR2")))
	assert.Equal(t, "acmeca", deref(t, CAProvider("Acme CA Ltd", "Acme Issuing")))
	assert.Nil(t, CAProvider("", ""))
}

func TestRegistrarProvider(t *testing.T) {
	assert.Equal(t, Cloudflare, deref(t, RegistrarProvider("Cloudflare, Inc.")))
	assert.Equal(t, NameCom, deref(t, RegistrarProvider("Name.com, Inc.")))
	assert.Equal(t, MarkMonitor, deref(t, RegistrarProvider("MarkMonitor Inc.")))
	assert.Equal(t, "examplereg", deref(t, RegistrarProvider("Example Reg LLC")))
	assert.Nil(t, RegistrarProvider("  "))
}
