package monitor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/lookup"
	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/service/notification"
)

func sp(s string) *string { return &s }

type mockRepo struct {
	mu        sync.Mutex
	domains   map[string]*domain.TrackedDomain
	snapshots map[string]*domain.Snapshot
}

func newMockRepo(td *domain.TrackedDomain) *mockRepo {
	return &mockRepo{
		domains:   map[string]*domain.TrackedDomain{td.ID: td},
		snapshots: map[string]*domain.Snapshot{},
	}
}

func (m *mockRepo) FindTrackedDomainByID(_ context.Context, id string) (*domain.TrackedDomain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	td, ok := m.domains[id]
	if !ok {
		return nil, domain.ErrTrackedDomainNotFound
	}
	return td, nil
}

func (m *mockRepo) GetSnapshot(_ context.Context, id string) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots[id], nil
}

func (m *mockRepo) UpsertSnapshot(_ context.Context, s *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.snapshots[s.TrackedDomainID] = &cp
	return nil
}

type fakeLookups struct {
	registrar string
	issuer    string
	caID      string
	certErr   error
	dnsErr    error
}

func (f *fakeLookups) Registration(context.Context, string) (*lookup.Registration, error) {
	lock := true
	return &lookup.Registration{Registration: domain.Registration{
		RegistrarProviderID: sp(f.registrar),
		Nameservers:         []string{"ada.ns.cloudflare.com", "bob.ns.cloudflare.com"},
		TransferLock:        &lock,
		Statuses:            []string{"client transfer prohibited"},
	}}, nil
}

func (f *fakeLookups) Certificates(context.Context, string) ([]domain.Certificate, error) {
	if f.certErr != nil {
		return nil, f.certErr
	}
	return []domain.Certificate{{CAProviderID: sp(f.caID), Issuer: f.issuer, ValidTo: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)}}, nil
}

func (f *fakeLookups) DNS(context.Context, string) (*lookup.DNSRecords, error) {
	if f.dnsErr != nil {
		return nil, f.dnsErr
	}
	return &lookup.DNSRecords{DNSProviderID: sp("cloudflare"), EmailProviderID: sp("google")}, nil
}

func (f *fakeLookups) Headers(context.Context, string) (*lookup.Headers, error) {
	return &lookup.Headers{Header: http.Header{"Server": {"cloudflare"}}}, nil
}

func (f *fakeLookups) Hosting(*lookup.DNSRecords, *lookup.Headers) *lookup.Hosting {
	return &lookup.Hosting{HostingProviderID: sp("cloudflare")}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (f *fakeNotifier) Notify(_ context.Context, msg notification.Message) (notification.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return notification.Delivery{InApp: true}, nil
}

type fakeArchive struct{ archived []*domain.Snapshot }

func (f *fakeArchive) Archive(_ context.Context, s *domain.Snapshot) error {
	f.archived = append(f.archived, s)
	return nil
}

func setup(t *testing.T) (*Service, *mockRepo, *fakeLookups, *fakeNotifier, *fakeArchive) {
	t.Helper()
	td := &domain.TrackedDomain{ID: "td-1", DomainName: "example.com", OwnerUserID: "user-1", Verified: true}
	repo := newMockRepo(td)
	lk := &fakeLookups{registrar: "cloudflare", issuer: "R3", caID: "letsencrypt"}
	n := &fakeNotifier{}
	a := &fakeArchive{}
	return NewService(repo, lk, n, a, logger.Nop()), repo, lk, n, a
}

func TestRefresh_FirstSnapshotIsBaseline(t *testing.T) {
	svc, repo, _, n, a := setup(t)

	rec, err := svc.Refresh(context.Background(), "td-1")
	require.NoError(t, err)
	assert.True(t, rec.Baseline)
	assert.Empty(t, n.sent)
	assert.Empty(t, a.archived)

	stored := repo.snapshots["td-1"]
	require.NotNil(t, stored)
	assert.Equal(t, "cloudflare", *stored.Registration.RegistrarProviderID)
	assert.Equal(t, "cloudflare", *stored.Providers.HostingProviderID)
	require.Len(t, stored.Certificates, 1)
}

func TestRefresh_UnchangedRegistrarDoesNotNotify(t *testing.T) {
	svc, _, _, n, a := setup(t)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "td-1")
	require.NoError(t, err)
	rec, err := svc.Refresh(ctx, "td-1")
	require.NoError(t, err)

	assert.False(t, rec.Baseline)
	assert.False(t, rec.Registration.RegistrarChanged)
	assert.False(t, rec.Any())
	assert.Empty(t, n.sent)
	assert.Len(t, a.archived, 1)
}

func TestRefresh_IssuerChangeNotifiesCertificateCategory(t *testing.T) {
	svc, _, lk, n, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "td-1")
	require.NoError(t, err)

	lk.issuer = "DigiCert Global G2 TLS RSA SHA256 2020 CA1"
	lk.caID = "digicert"
	rec, err := svc.Refresh(ctx, "td-1")
	require.NoError(t, err)

	require.True(t, rec.Certificate.IssuerChanged)
	assert.Equal(t, "R3", *rec.Certificate.PreviousIssuer)
	assert.Equal(t, "DigiCert Global G2 TLS RSA SHA256 2020 CA1", *rec.Certificate.NewIssuer)

	require.Len(t, n.sent, 1)
	msg := n.sent[0]
	assert.Equal(t, domain.CategoryCertificateChanges, msg.Category)
	assert.Equal(t, "td-1", msg.TrackedDomainID)
	entries := msg.Vars["changes"].([]interface{})
	require.Len(t, entries, 2)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "certificate authority", first["field"])
	assert.Equal(t, "letsencrypt", first["previous"])
	assert.Equal(t, "digicert", first["new"])
}

func TestRefresh_FailedSectionKeepsPreviousValue(t *testing.T) {
	svc, repo, lk, n, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "td-1")
	require.NoError(t, err)

	lk.certErr = errors.New("handshake timeout")
	lk.dnsErr = errors.New("servfail")
	rec, err := svc.Refresh(ctx, "td-1")
	require.NoError(t, err)

	assert.False(t, rec.Any())
	assert.Empty(t, n.sent)
	stored := repo.snapshots["td-1"]
	require.Len(t, stored.Certificates, 1)
	assert.Equal(t, "R3", stored.Certificates[0].Issuer)
	assert.Equal(t, "google", *stored.Providers.EmailProviderID)
	assert.Equal(t, "cloudflare", *stored.Providers.DNSProviderID)
	assert.Equal(t, "cloudflare", *stored.Providers.HostingProviderID)
}

func TestRefresh_Archived(t *testing.T) {
	svc, repo, _, _, _ := setup(t)
	now := time.Now()
	repo.domains["td-1"].ArchivedAt = &now

	_, err := svc.Refresh(context.Background(), "td-1")
	assert.ErrorIs(t, err, ErrArchived)
	assert.Empty(t, repo.snapshots)
}

func TestRefresh_MissingDomain(t *testing.T) {
	svc, _, _, _, _ := setup(t)
	_, err := svc.Refresh(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrTrackedDomainNotFound)
}
