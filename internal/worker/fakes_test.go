package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/service/notification"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeRuns keeps workflow runs in memory with the same transition rules as
// the Postgres repository.
type fakeRuns struct {
	mu    sync.Mutex
	clock *fakeClock
	runs  map[string]*domain.WorkflowRun
	seq   int

	// onTouch runs before a claim is renewed, e.g. to simulate recovery
	// handing the run to someone else.
	onTouch func(r *domain.WorkflowRun)
	touches []string
}

func newFakeRuns(clock *fakeClock) *fakeRuns {
	return &fakeRuns{clock: clock, runs: make(map[string]*domain.WorkflowRun)}
}

func (f *fakeRuns) nextID() string {
	f.seq++
	return fmt.Sprintf("run-%d", f.seq)
}

func (f *fakeRuns) ScheduleAutoVerify(_ context.Context, tdID string, dueAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.Kind == domain.RunKindAutoVerify && r.TrackedDomainID == tdID &&
			(r.Status == domain.RunScheduled || r.Status == domain.RunClaimed) {
			return false, nil
		}
	}
	id := f.nextID()
	f.runs[id] = &domain.WorkflowRun{
		ID: id, Kind: domain.RunKindAutoVerify, TrackedDomainID: tdID,
		Attempt: 1, Status: domain.RunScheduled, NextDueAt: dueAt,
	}
	return true, nil
}

func (f *fakeRuns) ClaimDueRuns(_ context.Context, kind domain.RunKind, workerID string, limit int) ([]domain.WorkflowRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	var out []domain.WorkflowRun
	for _, r := range f.runs {
		if len(out) >= limit {
			break
		}
		if r.Kind == kind && r.Status == domain.RunScheduled && !r.NextDueAt.After(now) {
			r.Status = domain.RunClaimed
			r.ClaimedBy = workerID
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRuns) transition(id, workerID string) (*domain.WorkflowRun, error) {
	r, ok := f.runs[id]
	if !ok || r.Status != domain.RunClaimed || r.ClaimedBy != workerID {
		return nil, domain.ErrRunConflict
	}
	return r, nil
}

func (f *fakeRuns) RescheduleRun(_ context.Context, id, workerID string, attempt int, dueAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.transition(id, workerID)
	if err != nil {
		return err
	}
	r.Status = domain.RunScheduled
	r.ClaimedBy = ""
	r.Attempt = attempt
	r.NextDueAt = dueAt
	return nil
}

func (f *fakeRuns) finish(id, workerID string, status domain.RunStatus, result interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.transition(id, workerID)
	if err != nil {
		return err
	}
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	r.Status = status
	r.Result = b
	return nil
}

func (f *fakeRuns) TouchRun(_ context.Context, id, workerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.runs[id]; ok && f.onTouch != nil {
		f.onTouch(r)
	}
	if _, err := f.transition(id, workerID); err != nil {
		return err
	}
	f.touches = append(f.touches, id)
	return nil
}

func (f *fakeRuns) CompleteRun(_ context.Context, id, workerID string, result interface{}) error {
	return f.finish(id, workerID, domain.RunCompleted, result)
}

func (f *fakeRuns) FailRun(_ context.Context, id, workerID string, result interface{}) error {
	return f.finish(id, workerID, domain.RunFailed, result)
}

func (f *fakeRuns) BeginUnit(_ context.Context, kind domain.RunKind, tdID, key, workerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.IdempotencyKey != key {
			continue
		}
		if r.Status != domain.RunFailed {
			return "", domain.ErrRunConflict
		}
		r.Status = domain.RunClaimed
		r.ClaimedBy = workerID
		r.Attempt++
		return r.ID, nil
	}
	id := f.nextID()
	f.runs[id] = &domain.WorkflowRun{
		ID: id, Kind: kind, TrackedDomainID: tdID, IdempotencyKey: key,
		Attempt: 1, Status: domain.RunClaimed, ClaimedBy: workerID, NextDueAt: f.clock.Now(),
	}
	return id, nil
}

func (f *fakeRuns) only(tdID string) domain.WorkflowRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.TrackedDomainID == tdID {
			return *r
		}
	}
	return domain.WorkflowRun{}
}

type fakeDomains struct {
	mu       sync.Mutex
	domains  map[string]*domain.TrackedDomain
	findErr  error
	verified []string
	pending  []string
}

func newFakeDomains(tds ...*domain.TrackedDomain) *fakeDomains {
	f := &fakeDomains{domains: make(map[string]*domain.TrackedDomain)}
	for _, td := range tds {
		f.domains[td.ID] = td
	}
	return f
}

func (f *fakeDomains) get(id string) *domain.TrackedDomain {
	f.mu.Lock()
	defer f.mu.Unlock()
	td := f.domains[id]
	if td == nil {
		return nil
	}
	cp := *td
	return &cp
}

func (f *fakeDomains) delete(id string) {
	f.mu.Lock()
	delete(f.domains, id)
	f.mu.Unlock()
}

func (f *fakeDomains) FindTrackedDomainByID(_ context.Context, id string) (*domain.TrackedDomain, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	td := f.get(id)
	if td == nil {
		return nil, domain.ErrTrackedDomainNotFound
	}
	return td, nil
}

func (f *fakeDomains) VerifyTrackedDomain(_ context.Context, id string, method domain.Method) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	td, ok := f.domains[id]
	if !ok {
		return domain.ErrTrackedDomainNotFound
	}
	td.Verified = true
	td.VerificationStatus = domain.StatusVerified
	td.VerificationMethod = method
	td.VerificationFailedAt = nil
	return nil
}

func (f *fakeDomains) MarkVerificationFailing(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	td, ok := f.domains[id]
	if !ok {
		return domain.ErrTrackedDomainNotFound
	}
	td.VerificationStatus = domain.StatusFailing
	if td.VerificationFailedAt == nil {
		td.VerificationFailedAt = &at
	}
	return nil
}

func (f *fakeDomains) RevokeVerification(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	td, ok := f.domains[id]
	if !ok {
		return domain.ErrTrackedDomainNotFound
	}
	td.Verified = false
	td.VerificationStatus = domain.StatusUnverified
	td.VerificationMethod = ""
	return nil
}

func (f *fakeDomains) GetVerifiedTrackedDomainIDs(context.Context) ([]string, error) {
	return f.verified, nil
}

func (f *fakeDomains) GetPendingTrackedDomainIDs(context.Context) ([]string, error) {
	return f.pending, nil
}

// scriptedVerifier returns results in order, then repeats the last one.
type scriptedVerifier struct {
	mu      sync.Mutex
	results []domain.VerificationResult
	err     error
	calls   int
}

func (v *scriptedVerifier) Verify(context.Context, string, string, domain.Method) (domain.VerificationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return domain.VerificationResult{}, v.err
	}
	if len(v.results) == 0 {
		return domain.VerificationResult{}, nil
	}
	i := v.calls - 1
	if i >= len(v.results) {
		i = len(v.results) - 1
	}
	return v.results[i], nil
}

func (v *scriptedVerifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, id string) (domain.ChangeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return domain.ChangeRecord{}, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (f *fakeNotifier) Notify(_ context.Context, msg notification.Message) (notification.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return notification.Delivery{}, nil
}

// starterFunc adapts a plain function to Starter with an already finished
// handle.
type starterFunc func(ctx context.Context, id string) (UnitResult, error)

var errStartRefused = errors.New("start refused")

func (f starterFunc) Start(ctx context.Context, id string) (*Handle, error) {
	res, err := f(ctx, id)
	if errors.Is(err, ErrRunConflict) || errors.Is(err, errStartRefused) {
		return nil, err
	}
	h := &Handle{RunID: "run-" + id, done: make(chan struct{}), res: res, err: err}
	close(h.done)
	return h, nil
}
