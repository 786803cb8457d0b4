package domains

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/service/verification"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu    sync.Mutex
	store map[string]*domain.TrackedDomain
	seq   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[string]*domain.TrackedDomain)}
}

func (m *mockRepo) CreateTrackedDomain(_ context.Context, td *domain.TrackedDomain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.OwnerUserID == td.OwnerUserID && existing.DomainName == td.DomainName {
			return ErrDomainExists
		}
	}
	m.seq++
	td.ID = "td-" + strings.Repeat("x", m.seq)
	td.CreatedAt = time.Now()
	cp := *td
	m.store[td.ID] = &cp
	return nil
}

func (m *mockRepo) FindTrackedDomainByID(_ context.Context, id string) (*domain.TrackedDomain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	td, ok := m.store[id]
	if !ok {
		return nil, domain.ErrTrackedDomainNotFound
	}
	cp := *td
	return &cp, nil
}

func (m *mockRepo) VerifyTrackedDomain(_ context.Context, id string, method domain.Method) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	td, ok := m.store[id]
	if !ok {
		return domain.ErrTrackedDomainNotFound
	}
	td.Verified = true
	td.VerificationStatus = domain.StatusVerified
	td.VerificationMethod = method
	td.VerificationFailedAt = nil
	return nil
}

func (m *mockRepo) update(id string, fn func(td *domain.TrackedDomain)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	td, ok := m.store[id]
	if !ok {
		return domain.ErrTrackedDomainNotFound
	}
	fn(td)
	return nil
}

func (m *mockRepo) SetNotificationOverride(_ context.Context, id string, category domain.Category, flags domain.ChannelFlags) error {
	return m.update(id, func(td *domain.TrackedDomain) {
		next := map[domain.Category]domain.ChannelFlags{}
		for k, v := range td.NotificationOverrides {
			next[k] = v
		}
		next[category] = flags
		td.NotificationOverrides = next
	})
}

func (m *mockRepo) ClearNotificationOverride(_ context.Context, id string, category domain.Category) error {
	return m.update(id, func(td *domain.TrackedDomain) {
		next := map[domain.Category]domain.ChannelFlags{}
		for k, v := range td.NotificationOverrides {
			if k != category {
				next[k] = v
			}
		}
		td.NotificationOverrides = next
	})
}

func (m *mockRepo) ArchiveTrackedDomain(_ context.Context, id string) error {
	return m.update(id, func(td *domain.TrackedDomain) {
		if td.ArchivedAt == nil {
			now := time.Now()
			td.ArchivedAt = &now
		}
	})
}

func (m *mockRepo) UnarchiveTrackedDomain(_ context.Context, id string) error {
	return m.update(id, func(td *domain.TrackedDomain) { td.ArchivedAt = nil })
}

func (m *mockRepo) DeleteTrackedDomain(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrTrackedDomainNotFound
	}
	delete(m.store, id)
	return nil
}

type fakeVerifier struct {
	result domain.VerificationResult
	calls  int
}

func (f *fakeVerifier) Verify(_ context.Context, _, _ string, method domain.Method) (domain.VerificationResult, error) {
	f.calls++
	if method != "" && !method.Valid() {
		return domain.VerificationResult{}, &verification.ValidationError{Field: "method", Err: verification.ErrInvalidMethod}
	}
	return f.result, nil
}

type fakeScheduler struct {
	scheduled []string
	err       error
}

func (f *fakeScheduler) Schedule(_ context.Context, id string) error {
	f.scheduled = append(f.scheduled, id)
	return f.err
}

func TestCreate_SchedulesAutoVerify(t *testing.T) {
	repo := newMockRepo()
	sched := &fakeScheduler{}
	svc := NewService(repo, &fakeVerifier{}, sched, logger.Nop())

	created, err := svc.Create(context.Background(), "user-1", "https://Example.COM/")
	require.NoError(t, err)

	assert.Equal(t, "example.com", created.Domain.DomainName)
	assert.Len(t, created.Domain.VerificationToken, 32)
	assert.False(t, created.Domain.Verified)
	assert.Equal(t, "pending", created.Domain.DisplayStatus())
	assert.Equal(t, []string{created.Domain.ID}, sched.scheduled)
	assert.Equal(t, "_domainwatch-verify.example.com", created.Instructions.TXTName)
	assert.Equal(t, created.Domain.VerificationToken, created.Instructions.TXTValue)
}

func TestCreate_ScheduleFailureIsNotFatal(t *testing.T) {
	svc := NewService(newMockRepo(), &fakeVerifier{}, &fakeScheduler{err: errors.New("db down")}, logger.Nop())

	created, err := svc.Create(context.Background(), "user-1", "example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, created.Domain.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo(), &fakeVerifier{}, nil, logger.Nop())
	ctx := context.Background()

	_, err := svc.Create(ctx, "", "example.com")
	assert.ErrorIs(t, err, ErrMissingOwner)

	_, err = svc.Create(ctx, "user-1", "not a domain")
	assert.True(t, verification.IsValidationError(err))

	_, err = svc.Create(ctx, "user-1", "example.com")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "user-1", "EXAMPLE.com")
	assert.ErrorIs(t, err, ErrDomainExists)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("success marks the domain verified", func(t *testing.T) {
		repo := newMockRepo()
		v := &fakeVerifier{result: domain.VerificationResult{Verified: true, Method: domain.MethodMetaTag}}
		svc := NewService(repo, v, nil, logger.Nop())
		created, err := svc.Create(ctx, "user-1", "example.com")
		require.NoError(t, err)

		td, res, err := svc.Verify(ctx, created.Domain.ID, "")
		require.NoError(t, err)
		assert.True(t, res.Verified)
		assert.True(t, td.Verified)
		assert.Equal(t, domain.MethodMetaTag, td.VerificationMethod)
		assert.Equal(t, "verified", td.DisplayStatus())
	})

	t.Run("failure leaves the domain untouched", func(t *testing.T) {
		repo := newMockRepo()
		svc := NewService(repo, &fakeVerifier{}, nil, logger.Nop())
		created, err := svc.Create(ctx, "user-1", "example.com")
		require.NoError(t, err)

		td, res, err := svc.Verify(ctx, created.Domain.ID, domain.MethodDNSTXT)
		require.NoError(t, err)
		assert.False(t, res.Verified)
		assert.False(t, td.Verified)
	})

	t.Run("invalid method is a validation error", func(t *testing.T) {
		repo := newMockRepo()
		svc := NewService(repo, &fakeVerifier{}, nil, logger.Nop())
		created, err := svc.Create(ctx, "user-1", "example.com")
		require.NoError(t, err)

		_, _, err = svc.Verify(ctx, created.Domain.ID, domain.Method("carrier_pigeon"))
		assert.ErrorIs(t, err, verification.ErrInvalidMethod)
	})

	t.Run("unknown domain", func(t *testing.T) {
		svc := NewService(newMockRepo(), &fakeVerifier{}, nil, logger.Nop())
		_, _, err := svc.Verify(ctx, "missing", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("archived domain is not checked", func(t *testing.T) {
		repo := newMockRepo()
		v := &fakeVerifier{}
		svc := NewService(repo, v, nil, logger.Nop())
		created, err := svc.Create(ctx, "user-1", "example.com")
		require.NoError(t, err)
		now := time.Now()
		repo.store[created.Domain.ID].ArchivedAt = &now

		_, _, err = svc.Verify(ctx, created.Domain.ID, "")
		assert.ErrorIs(t, err, ErrArchived)
		assert.Zero(t, v.calls)
	})
}

type fakeRefresher struct {
	calls []string
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, id string) (domain.ChangeRecord, error) {
	f.calls = append(f.calls, id)
	return domain.ChangeRecord{Baseline: true}, f.err
}

func TestVerify_CapturesBaselineOnFirstVerification(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	refresher := &fakeRefresher{}
	v := &fakeVerifier{}
	svc := NewService(repo, v, nil, logger.Nop()).WithRefresher(refresher)
	created, err := svc.Create(ctx, "user-1", "example.com")
	require.NoError(t, err)

	_, _, err = svc.Verify(ctx, created.Domain.ID, "")
	require.NoError(t, err)
	assert.Empty(t, refresher.calls)

	v.result = domain.VerificationResult{Verified: true, Method: domain.MethodDNSTXT}
	_, _, err = svc.Verify(ctx, created.Domain.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{created.Domain.ID}, refresher.calls)

	// Already verified: the daily sweep owns refreshes from here on.
	_, _, err = svc.Verify(ctx, created.Domain.ID, "")
	require.NoError(t, err)
	assert.Len(t, refresher.calls, 1)
}

func TestVerify_BaselineFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	v := &fakeVerifier{result: domain.VerificationResult{Verified: true, Method: domain.MethodDNSTXT}}
	svc := NewService(repo, v, nil, logger.Nop()).WithRefresher(&fakeRefresher{err: errors.New("lookup timeout")})
	created, err := svc.Create(ctx, "user-1", "example.com")
	require.NoError(t, err)

	td, res, err := svc.Verify(ctx, created.Domain.ID, "")
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.True(t, td.Verified)
}

func TestNotificationOverrides(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo(), &fakeVerifier{}, nil, logger.Nop())
	created, err := svc.Create(ctx, "user-1", "example.com")
	require.NoError(t, err)
	id := created.Domain.ID

	td, err := svc.SetNotificationOverride(ctx, id, domain.CategoryProviderChanges, domain.ChannelFlags{InApp: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelFlags{InApp: true}, td.NotificationOverrides[domain.CategoryProviderChanges])

	td, err = svc.SetNotificationOverride(ctx, id, domain.CategoryVerification, domain.ChannelFlags{Email: true})
	require.NoError(t, err)
	assert.Len(t, td.NotificationOverrides, 2)

	td, err = svc.ClearNotificationOverride(ctx, id, domain.CategoryProviderChanges)
	require.NoError(t, err)
	_, ok := td.NotificationOverrides[domain.CategoryProviderChanges]
	assert.False(t, ok)
	assert.Len(t, td.NotificationOverrides, 1)

	_, err = svc.SetNotificationOverride(ctx, id, domain.Category("weather"), domain.ChannelFlags{})
	assert.ErrorIs(t, err, ErrUnknownCategory)
	_, err = svc.SetNotificationOverride(ctx, "missing", domain.CategoryVerification, domain.ChannelFlags{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo(), &fakeVerifier{}, nil, logger.Nop())
	created, err := svc.Create(ctx, "user-1", "example.com")
	require.NoError(t, err)
	id := created.Domain.ID

	td, err := svc.Archive(ctx, id)
	require.NoError(t, err)
	require.True(t, td.IsArchived())
	first := *td.ArchivedAt

	td, err = svc.Archive(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, *td.ArchivedAt)

	_, _, err = svc.Verify(ctx, id, "")
	assert.ErrorIs(t, err, ErrArchived)

	td, err = svc.Unarchive(ctx, id)
	require.NoError(t, err)
	assert.False(t, td.IsArchived())

	require.NoError(t, svc.Delete(ctx, id))
	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, id), ErrNotFound)
}
