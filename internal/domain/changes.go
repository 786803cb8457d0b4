package domain

// RegistrationChanges flags registry-level differences. Previous/New values
// are only populated for flags that are true.
type RegistrationChanges struct {
	RegistrarChanged  bool    `json:"registrarChanged"`
	PreviousRegistrar *string `json:"previousRegistrar,omitempty"`
	NewRegistrar      *string `json:"newRegistrar,omitempty"`

	NameserversChanged  bool     `json:"nameserversChanged"`
	PreviousNameservers []string `json:"previousNameservers,omitempty"`
	NewNameservers      []string `json:"newNameservers,omitempty"`

	TransferLockChanged  bool  `json:"transferLockChanged"`
	PreviousTransferLock *bool `json:"previousTransferLock,omitempty"`
	NewTransferLock      *bool `json:"newTransferLock,omitempty"`

	StatusesChanged  bool     `json:"statusesChanged"`
	PreviousStatuses []string `json:"previousStatuses,omitempty"`
	NewStatuses      []string `json:"newStatuses,omitempty"`
}

// Any reports whether any registration flag is set.
func (c RegistrationChanges) Any() bool {
	return c.RegistrarChanged || c.NameserversChanged || c.TransferLockChanged || c.StatusesChanged
}

// CertificateChanges flags differences of the leaf certificate.
type CertificateChanges struct {
	CAProviderChanged  bool    `json:"caProviderChanged"`
	PreviousCAProvider *string `json:"previousCaProvider,omitempty"`
	NewCAProvider      *string `json:"newCaProvider,omitempty"`

	IssuerChanged  bool    `json:"issuerChanged"`
	PreviousIssuer *string `json:"previousIssuer,omitempty"`
	NewIssuer      *string `json:"newIssuer,omitempty"`
}

// Any reports whether any certificate flag is set.
func (c CertificateChanges) Any() bool { return c.CAProviderChanged || c.IssuerChanged }

// ProviderChanges flags infrastructure provider differences.
type ProviderChanges struct {
	DNSProviderChanged  bool    `json:"dnsProviderChanged"`
	PreviousDNSProvider *string `json:"previousDnsProvider,omitempty"`
	NewDNSProvider      *string `json:"newDnsProvider,omitempty"`

	HostingProviderChanged  bool    `json:"hostingProviderChanged"`
	PreviousHostingProvider *string `json:"previousHostingProvider,omitempty"`
	NewHostingProvider      *string `json:"newHostingProvider,omitempty"`

	EmailProviderChanged  bool    `json:"emailProviderChanged"`
	PreviousEmailProvider *string `json:"previousEmailProvider,omitempty"`
	NewEmailProvider      *string `json:"newEmailProvider,omitempty"`
}

// Any reports whether any provider flag is set.
func (c ProviderChanges) Any() bool {
	return c.DNSProviderChanged || c.HostingProviderChanged || c.EmailProviderChanged
}

// ChangeRecord is the derived comparison of two snapshots. It is never
// persisted on its own.
type ChangeRecord struct {
	// Baseline is set when there was no previous snapshot to compare against.
	Baseline     bool                `json:"baseline"`
	Registration RegistrationChanges `json:"registration"`
	Certificate  CertificateChanges  `json:"certificate"`
	Providers    ProviderChanges     `json:"providers"`
}

// Any reports whether anything changed.
func (r ChangeRecord) Any() bool {
	return r.Registration.Any() || r.Certificate.Any() || r.Providers.Any()
}
