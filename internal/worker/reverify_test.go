package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/pkg/logger"
)

func verifiedDomain(id string) *domain.TrackedDomain {
	td := pendingDomain(id)
	td.Verified = true
	td.VerificationStatus = domain.StatusVerified
	td.VerificationMethod = domain.MethodDNSTXT
	return td
}

type reverifyFixture struct {
	r         *Reverifier
	domains   *fakeDomains
	verifier  *scriptedVerifier
	refresher *fakeRefresher
	notifier  *fakeNotifier
	clock     *fakeClock
}

func newReverifyFixture(tds ...*domain.TrackedDomain) *reverifyFixture {
	f := &reverifyFixture{
		domains:   newFakeDomains(tds...),
		verifier:  &scriptedVerifier{},
		refresher: &fakeRefresher{},
		notifier:  &fakeNotifier{},
		clock:     newFakeClock(),
	}
	f.r = NewReverifier(f.domains, f.verifier, f.refresher, f.notifier, 0, logger.Nop())
	f.r.now = f.clock.Now
	return f
}

func TestReverify_PassingKeepsVerifiedAndRefreshes(t *testing.T) {
	f := newReverifyFixture(verifiedDomain("d1"))
	f.verifier.results = []domain.VerificationResult{{Verified: true, Method: domain.MethodHTMLFile}}

	res, err := f.r.Reverify(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, UnitResult{Outcome: OutcomeVerified, Method: domain.MethodHTMLFile}, res)
	assert.Equal(t, []string{"d1"}, f.refresher.calls)
	assert.Equal(t, domain.MethodHTMLFile, f.domains.get("d1").VerificationMethod)
}

func TestReverify_RecoveryClearsFailure(t *testing.T) {
	td := verifiedDomain("d1")
	failedAt := newFakeClock().Now().Add(-48 * time.Hour)
	td.VerificationStatus = domain.StatusFailing
	td.VerificationFailedAt = &failedAt
	f := newReverifyFixture(td)
	f.verifier.results = []domain.VerificationResult{{Verified: true, Method: domain.MethodDNSTXT}}

	res, err := f.r.Reverify(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, res.Outcome)

	got := f.domains.get("d1")
	assert.Equal(t, domain.StatusVerified, got.VerificationStatus)
	assert.Nil(t, got.VerificationFailedAt)
}

func TestReverify_RefreshErrorDoesNotFailUnit(t *testing.T) {
	f := newReverifyFixture(verifiedDomain("d1"))
	f.verifier.results = []domain.VerificationResult{{Verified: true, Method: domain.MethodDNSTXT}}
	f.refresher.err = errors.New("rdap down")

	res, err := f.r.Reverify(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, res.Outcome)
}

func TestReverify_FirstFailureStartsGracePeriod(t *testing.T) {
	f := newReverifyFixture(verifiedDomain("d1"))

	res, err := f.r.Reverify(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailing, res.Outcome)

	got := f.domains.get("d1")
	assert.True(t, got.Verified)
	assert.Equal(t, domain.StatusFailing, got.VerificationStatus)
	require.NotNil(t, got.VerificationFailedAt)
	assert.True(t, f.clock.Now().Equal(*got.VerificationFailedAt))
	assert.Empty(t, f.refresher.calls)
	assert.Empty(t, f.notifier.msgs)
}

func TestReverify_WithinGraceStaysFailing(t *testing.T) {
	f := newReverifyFixture(verifiedDomain("d1"))
	ctx := context.Background()

	_, err := f.r.Reverify(ctx, "d1")
	require.NoError(t, err)
	firstFailure := *f.domains.get("d1").VerificationFailedAt

	f.clock.Advance(6 * 24 * time.Hour)
	res, err := f.r.Reverify(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailing, res.Outcome)
	assert.True(t, firstFailure.Equal(*f.domains.get("d1").VerificationFailedAt))
	assert.True(t, f.domains.get("d1").Verified)
}

func TestReverify_RevokesAfterGrace(t *testing.T) {
	f := newReverifyFixture(verifiedDomain("d1"))
	ctx := context.Background()

	_, err := f.r.Reverify(ctx, "d1")
	require.NoError(t, err)

	f.clock.Advance(DefaultGracePeriod + time.Hour)
	res, err := f.r.Reverify(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRevoked, res.Outcome)

	got := f.domains.get("d1")
	assert.False(t, got.Verified)
	assert.Equal(t, domain.StatusUnverified, got.VerificationStatus)
	assert.NotNil(t, got.VerificationFailedAt)
	assert.Equal(t, "unverified", got.DisplayStatus())

	require.Len(t, f.notifier.msgs, 1)
	msg := f.notifier.msgs[0]
	assert.Equal(t, "d1", msg.TrackedDomainID)
	assert.Equal(t, domain.CategoryVerification, msg.Category)
	assert.Equal(t, "dns_txt", msg.Vars["method"])
	assert.Equal(t, "March 1, 2026", msg.Vars["failed_since"])
}

func TestReverify_SkipsIneligibleDomains(t *testing.T) {
	archived := verifiedDomain("d2")
	at := time.Now()
	archived.ArchivedAt = &at
	f := newReverifyFixture(pendingDomain("d1"), archived)
	ctx := context.Background()

	for _, id := range []string{"d1", "d2", "missing"} {
		res, err := f.r.Reverify(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, OutcomeSkipped, res.Outcome, id)
	}
	assert.Equal(t, 0, f.verifier.Calls())
}

func TestReverify_VerifierErrorFailsUnit(t *testing.T) {
	f := newReverifyFixture(verifiedDomain("d1"))
	f.verifier.err = errors.New("token rejected")

	_, err := f.r.Reverify(context.Background(), "d1")
	require.Error(t, err)
	assert.Nil(t, f.domains.get("d1").VerificationFailedAt)
}

func TestReverificationSweep_Run(t *testing.T) {
	clock := newFakeClock()
	runs := newFakeRuns(clock)
	f := newReverifyFixture(verifiedDomain("d1"), verifiedDomain("d2"), verifiedDomain("d3"))
	f.domains.verified = []string{"d1", "d2", "d3"}
	f.verifier.results = []domain.VerificationResult{{Verified: true, Method: domain.MethodDNSTXT}}

	starter := NewUnitStarter(runs, domain.RunKindReverify, f.r.Reverify, logger.Nop())
	starter.now = clock.Now
	sweep := NewReverificationSweep(f.domains, starter, SweepConfig{BatchSize: 2}, logger.Nop(), nil)

	report, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scheduled: 3, Successful: 3, Batches: 2}, report)

	// A second sweep the same day only hits conflicts.
	report, err = sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Successful)
	assert.Equal(t, 3, report.Conflicts)
	assert.Equal(t, 3, f.verifier.Calls())
}
