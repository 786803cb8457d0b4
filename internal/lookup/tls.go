package lookup

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"syscall"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/pkg/safefetch"
	"github.com/ignite/domainwatch/internal/providers"
)

// Certificates performs a TLS handshake with the domain and returns the
// served chain. The chain is not verified; expired or mismatched
// certificates are returned as served.
func (c *Client) Certificates(ctx context.Context, domainName string) ([]domain.Certificate, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.timeout, Control: c.controlDial},
		Config: &tls.Config{
			ServerName:         domainName,
			InsecureSkipVerify: true, //nolint:gosec // chain is inspected, not trusted
			MinVersion:         tls.VersionTLS12,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(domainName, c.tlsPort))
	if err != nil {
		return nil, fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, ErrNoData
	}
	certs := make([]domain.Certificate, 0, len(state.PeerCertificates))
	for _, pc := range state.PeerCertificates {
		certs = append(certs, toCertificate(pc))
	}
	return certs, nil
}

func toCertificate(pc *x509.Certificate) domain.Certificate {
	sum := sha256.Sum256(pc.Raw)
	fp := hex.EncodeToString(sum[:])
	issuer := pc.Issuer.CommonName
	if issuer == "" {
		issuer = strings.Join(pc.Issuer.Organization, " ")
	}
	return domain.Certificate{
		CAProviderID: providers.CAProvider(strings.Join(pc.Issuer.Organization, " "), pc.Issuer.CommonName),
		Issuer:       issuer,
		ValidTo:      pc.NotAfter.UTC(),
		Fingerprint:  &fp,
	}
}

func (c *Client) controlDial(_, address string, _ syscall.RawConn) error {
	if c.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || safefetch.IsPrivateAddr(addr) {
		return &safefetch.Error{Code: safefetch.CodePrivateIP, URL: address}
	}
	return nil
}
