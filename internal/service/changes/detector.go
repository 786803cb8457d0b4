package changes

import (
	"strings"

	"github.com/ignite/domainwatch/internal/domain"
)

// Detect compares previous against next. A nil previous yields a baseline
// record with no flags set.
func Detect(previous *domain.Snapshot, next domain.Snapshot) domain.ChangeRecord {
	if previous == nil {
		return domain.ChangeRecord{Baseline: true}
	}
	return domain.ChangeRecord{
		Registration: DetectRegistration(previous.Registration, next.Registration),
		Certificate:  DetectCertificate(previous.LeafCertificate(), next.LeafCertificate()),
		Providers:    DetectProviders(previous.Providers, next.Providers),
	}
}

// DetectRegistration compares registry data. Either side nil means nothing
// to compare against.
func DetectRegistration(prev, next *domain.Registration) domain.RegistrationChanges {
	var c domain.RegistrationChanges
	if prev == nil || next == nil {
		return c
	}

	if !equalStringPtr(prev.RegistrarProviderID, next.RegistrarProviderID) {
		c.RegistrarChanged = true
		c.PreviousRegistrar = prev.RegistrarProviderID
		c.NewRegistrar = next.RegistrarProviderID
	}
	if !NameserversEqual(prev.Nameservers, next.Nameservers) {
		c.NameserversChanged = true
		c.PreviousNameservers = prev.Nameservers
		c.NewNameservers = next.Nameservers
	}
	if !equalBoolPtr(prev.TransferLock, next.TransferLock) {
		c.TransferLockChanged = true
		c.PreviousTransferLock = prev.TransferLock
		c.NewTransferLock = next.TransferLock
	}
	if !StatusesEqual(prev.Statuses, next.Statuses) {
		c.StatusesChanged = true
		c.PreviousStatuses = prev.Statuses
		c.NewStatuses = next.Statuses
	}
	return c
}

// DetectCertificate compares the leaf certificates of two snapshots.
func DetectCertificate(prev, next *domain.Certificate) domain.CertificateChanges {
	var c domain.CertificateChanges
	if prev == nil || next == nil {
		return c
	}

	if !equalStringPtr(prev.CAProviderID, next.CAProviderID) {
		c.CAProviderChanged = true
		c.PreviousCAProvider = prev.CAProviderID
		c.NewCAProvider = next.CAProviderID
	}
	if prev.Issuer != next.Issuer {
		c.IssuerChanged = true
		c.PreviousIssuer = strPtr(prev.Issuer)
		c.NewIssuer = strPtr(next.Issuer)
	}
	return c
}

// DetectProviders compares dns, hosting and email providers independently.
func DetectProviders(prev, next *domain.Providers) domain.ProviderChanges {
	var c domain.ProviderChanges
	if prev == nil || next == nil {
		return c
	}

	if !equalStringPtr(prev.DNSProviderID, next.DNSProviderID) {
		c.DNSProviderChanged = true
		c.PreviousDNSProvider = prev.DNSProviderID
		c.NewDNSProvider = next.DNSProviderID
	}
	if !equalStringPtr(prev.HostingProviderID, next.HostingProviderID) {
		c.HostingProviderChanged = true
		c.PreviousHostingProvider = prev.HostingProviderID
		c.NewHostingProvider = next.HostingProviderID
	}
	if !equalStringPtr(prev.EmailProviderID, next.EmailProviderID) {
		c.EmailProviderChanged = true
		c.PreviousEmailProvider = prev.EmailProviderID
		c.NewEmailProvider = next.EmailProviderID
	}
	return c
}

// NameserversEqual compares nameserver host sets ignoring order, case and a
// trailing root dot.
func NameserversEqual(a, b []string) bool {
	return setEqual(a, b, NormalizeHost)
}

// StatusesEqual compares registry status sets ignoring order, case, spaces,
// underscores and hyphens, so "clientTransferProhibited" equals
// "client transfer prohibited".
func StatusesEqual(a, b []string) bool {
	return setEqual(a, b, NormalizeStatus)
}

// NormalizeHost lowercases h and strips surrounding space and a trailing dot.
func NormalizeHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}

var statusStripper = strings.NewReplacer(" ", "", "_", "", "-", "")

// NormalizeStatus lowercases s and removes spaces, underscores and hyphens.
func NormalizeStatus(s string) string {
	return statusStripper.Replace(strings.ToLower(strings.TrimSpace(s)))
}

func setEqual(a, b []string, norm func(string) string) bool {
	sa := toSet(a, norm)
	sb := toSet(b, norm)
	if len(sa) != len(sb) {
		return false
	}
	for k := range sa {
		if _, ok := sb[k]; !ok {
			return false
		}
	}
	return true
}

func toSet(in []string, norm func(string) string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, v := range in {
		if n := norm(v); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func strPtr(s string) *string { return &s }
