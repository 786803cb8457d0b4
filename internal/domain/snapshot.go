package domain

import "time"

// Registration is the registry-side view of a domain.
type Registration struct {
	RegistrarProviderID *string  `json:"registrarProviderId"`
	Nameservers         []string `json:"nameservers"`
	TransferLock        *bool    `json:"transferLock"`
	Statuses            []string `json:"statuses"`
}

// Certificate is one certificate of the served TLS chain.
type Certificate struct {
	CAProviderID *string   `json:"caProviderId"`
	Issuer       string    `json:"issuer"`
	ValidTo      time.Time `json:"validTo"`
	Fingerprint  *string   `json:"fingerprint"`
}

// Providers are the infrastructure providers detected for a domain.
type Providers struct {
	DNSProviderID     *string `json:"dnsProviderId"`
	HostingProviderID *string `json:"hostingProviderId"`
	EmailProviderID   *string `json:"emailProviderId"`
}

// Snapshot is the latest stored point-in-time summary of a tracked domain.
// Nil sections were not captured.
type Snapshot struct {
	TrackedDomainID string        `json:"trackedDomainId"`
	Registration    *Registration `json:"registration"`
	Certificates    []Certificate `json:"certificates"`
	Providers       *Providers    `json:"providers"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// LeafCertificate returns the earliest-expiring certificate, or nil when the
// snapshot has none.
func (s *Snapshot) LeafCertificate() *Certificate {
	var leaf *Certificate
	for i := range s.Certificates {
		c := &s.Certificates[i]
		if leaf == nil || c.ValidTo.Before(leaf.ValidTo) {
			leaf = c
		}
	}
	return leaf
}
