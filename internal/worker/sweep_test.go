package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/domainwatch/internal/pkg/logger"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("d%02d", i)
	}
	return out
}

func TestBatches(t *testing.T) {
	batches := Batches(ids(53), 25)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 25)
	assert.Len(t, batches[1], 25)
	assert.Len(t, batches[2], 3)
	assert.Equal(t, "d52", batches[2][2])

	assert.Empty(t, Batches(nil, 25))
	assert.Len(t, Batches(ids(3), 0), 3)
}

func TestRunSweep_CountsEveryUnit(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	starter := starterFunc(func(_ context.Context, id string) (UnitResult, error) {
		mu.Lock()
		seen[id]++
		mu.Unlock()
		if id == "d07" {
			return UnitResult{}, errors.New("boom")
		}
		return UnitResult{Outcome: OutcomeVerified}, nil
	})

	report := runSweep(context.Background(), ids(53), SweepConfig{BatchSize: 25}, starter, logger.Nop())

	assert.Equal(t, 53, report.Scheduled)
	assert.Equal(t, 52, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 3, report.Batches)
	assert.Len(t, seen, 53)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestRunSweep_ConflictsCountAsSuccessful(t *testing.T) {
	starter := starterFunc(func(_ context.Context, id string) (UnitResult, error) {
		switch id {
		case "d00", "d01":
			return UnitResult{}, ErrRunConflict
		case "d02":
			return UnitResult{}, errStartRefused
		}
		return UnitResult{Outcome: OutcomeFailing}, nil
	})

	report := runSweep(context.Background(), ids(5), SweepConfig{}, starter, logger.Nop())

	assert.Equal(t, SweepReport{Scheduled: 5, Successful: 4, Failed: 1, Conflicts: 2, Batches: 1}, report)
}

func TestRunSweep_CancelledContextFailsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	starter := starterFunc(func(context.Context, string) (UnitResult, error) {
		return UnitResult{Outcome: OutcomeVerified}, nil
	})

	report := runSweep(ctx, ids(10), SweepConfig{BatchSize: 5}, starter, logger.Nop())

	assert.Equal(t, 10, report.Scheduled)
	assert.Equal(t, report.Scheduled, report.Successful+report.Failed)
	assert.Equal(t, 10, report.Failed)
}

func TestRunSweep_Empty(t *testing.T) {
	report := runSweep(context.Background(), nil, SweepConfig{}, starterFunc(nil), logger.Nop())
	assert.Equal(t, SweepReport{}, report)
}
