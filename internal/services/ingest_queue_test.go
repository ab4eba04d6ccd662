package services

import (
	"route-validation-service/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queuedReport(sec int) domain.PositionReport {
	return domain.PositionReport{
		VehicleID: "GT-4411-19",
		Timestamp: time.Date(2026, 3, 2, 6, 0, sec, 0, time.UTC),
	}
}

func TestReportQueueDropsOldestOnOverflow(t *testing.T) {
	q := newReportQueue(3)

	for i := 0; i < 3; i++ {
		assert.Nil(t, q.push(queuedReport(i)))
	}

	dropped := q.push(queuedReport(3))
	require.NotNil(t, dropped)
	assert.Equal(t, queuedReport(0).Timestamp, dropped.Timestamp)
	assert.Equal(t, 3, q.len())

	for _, want := range []int{1, 2, 3} {
		r, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, queuedReport(want).Timestamp, r.Timestamp)
	}
	_, ok := q.pop()
	assert.False(t, ok)
}

func TestReportQueuePushFront(t *testing.T) {
	q := newReportQueue(2)
	q.push(queuedReport(1))

	assert.Nil(t, q.pushFront(queuedReport(0)))
	r, _ := q.pop()
	assert.Equal(t, queuedReport(0).Timestamp, r.Timestamp)

	q.push(queuedReport(2))
	dropped := q.pushFront(queuedReport(0))
	require.NotNil(t, dropped, "a full queue rejects the requeued oldest report")
	assert.Equal(t, queuedReport(0).Timestamp, dropped.Timestamp)
}

func TestReportQueueSignalIsNonBlocking(t *testing.T) {
	q := newReportQueue(10)
	for i := 0; i < 5; i++ {
		q.push(queuedReport(i))
	}
	assert.Len(t, q.notify, 1)
}
