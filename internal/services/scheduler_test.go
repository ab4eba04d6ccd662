package services

import (
	"context"
	"route-validation-service/internal/adapters/repositories"
	"route-validation-service/internal/domain"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const otherRun = "RUN-002"

type schedulerFixture struct {
	store *repositories.MemoryTraceStore
	ref   *fakeRegistry
	sink  *recordingSink
	s     *RevalidationScheduler
}

// newSchedulerFixture has two open traces: RUN-001 still in transit and
// RUN-002 completed by dispatch.
func newSchedulerFixture(t *testing.T, interval time.Duration) *schedulerFixture {
	t.Helper()

	f := &schedulerFixture{
		store: repositories.NewMemoryTraceStore(),
		ref:   newFakeRegistry().withTrip(12, 50),
		sink:  &recordingSink{},
	}
	f.ref.runs[otherRun] = domain.DeliveryRun{ID: otherRun, VehicleID: "GR-2020-21", RouteID: tripRoute, Status: domain.RunCompleted}

	loadTrace(f.store, tripRun, straightTrip(12, 5*time.Minute))
	other := straightTrip(12, 5*time.Minute)
	for i := range other {
		other[i].VehicleID = "GR-2020-21"
	}
	loadTrace(f.store, otherRun, other)

	v := NewValidator(f.store, f.ref, f.sink, DefaultThresholds(), time.Second, zerolog.Nop())
	f.s = NewRevalidationScheduler(f.store, f.ref, v, interval, time.Second, zerolog.Nop())
	return f
}

func TestRevalidationRunOnce(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t, time.Hour)

	sum, err := f.s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RevalidationSummary{Finalized: 1, Provisional: 1}, sum)

	open, err := f.store.ListOpenTraces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{tripRun}, open)

	require.Equal(t, 1, f.sink.resultCount())
	assert.Equal(t, otherRun, f.sink.results[0].DeliveryRunID)
	assert.True(t, f.sink.results[0].Final)

	// Nothing left to finalize on the next pass.
	sum, err = f.s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RevalidationSummary{Provisional: 1}, sum)
	assert.Equal(t, 1, f.sink.resultCount())
}

func TestRevalidationCountsFailures(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t, time.Hour)
	loadTrace(f.store, "RUN-ORPHAN", straightTrip(12, 5*time.Minute))

	sum, err := f.s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Finalized)
}

func TestFinalize(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t, time.Hour)

	_, err := f.s.Finalize(ctx, tripRun)
	assert.ErrorIs(t, err, domain.ErrRunStillInTransit)

	f.ref.setStatus(tripRun, domain.RunCancelled)
	res, err := f.s.Finalize(ctx, tripRun)
	require.NoError(t, err)
	assert.True(t, res.Final)
	assert.True(t, res.IsValid)

	_, err = f.s.Finalize(ctx, "RUN-404")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRevalidationStartStop(t *testing.T) {
	f := newSchedulerFixture(t, 5*time.Millisecond)
	f.ref.setStatus(tripRun, domain.RunCompleted)

	f.s.Start(context.Background())
	require.Eventually(t, func() bool {
		open, err := f.store.ListOpenTraces(context.Background())
		return err == nil && len(open) == 0
	}, 2*time.Second, 5*time.Millisecond)

	f.s.Stop()
	f.s.Stop()
}
