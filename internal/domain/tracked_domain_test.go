package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisplayStatus(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		d    TrackedDomain
		want string
	}{
		{"new domain", TrackedDomain{VerificationStatus: StatusUnverified}, "pending"},
		{"verified", TrackedDomain{Verified: true, VerificationStatus: StatusVerified, VerificationMethod: MethodDNSTXT}, "verified"},
		{"in grace", TrackedDomain{Verified: true, VerificationStatus: StatusFailing, VerificationMethod: MethodDNSTXT, VerificationFailedAt: &now}, "failing"},
		{"revoked", TrackedDomain{VerificationStatus: StatusUnverified, VerificationFailedAt: &now}, "unverified"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.d.DisplayStatus())
		})
	}
}

func TestLeafCertificate(t *testing.T) {
	now := time.Now()
	s := Snapshot{Certificates: []Certificate{
		{Issuer: "root", ValidTo: now.Add(1000 * time.Hour)},
		{Issuer: "leaf", ValidTo: now.Add(10 * time.Hour)},
		{Issuer: "intermediate", ValidTo: now.Add(100 * time.Hour)},
	}}
	assert.Equal(t, "leaf", s.LeafCertificate().Issuer)
	assert.Nil(t, (&Snapshot{}).LeafCertificate())
}

func TestMethodValid(t *testing.T) {
	for _, m := range Methods {
		assert.True(t, m.Valid())
	}
	assert.False(t, Method("").Valid())
	assert.False(t, Method("email").Valid())
}
