package routing

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(i int, status CallStatus) CallRecord {
	return CallRecord{
		Timestamp:      time.Date(2024, 3, 12, 10, 0, i%60, 0, time.UTC),
		CallerID:       fmt.Sprintf("caller-%d", i),
		ZipCode:        "07004",
		OriginalTier:   "tier_1",
		ChosenTier:     "tier_1",
		Status:         status,
		ResponseTimeMs: 100,
	}
}

func TestRecorderAggregates(t *testing.T) {
	rc := NewRecorder(100)

	rc.Record(testRecord(1, StatusSuccess))
	rc.Record(testRecord(2, StatusSuccess))
	rc.Record(testRecord(3, StatusAPIError))
	rc.Record(CallRecord{
		Timestamp: time.Date(2024, 3, 12, 14, 0, 0, 0, time.UTC),
		CallerID:  "caller-4",
		ZipCode:   "00000",
		Status:    StatusNoTier,
	})
	rc.Record(CallRecord{
		Timestamp:    time.Date(2024, 3, 12, 14, 30, 0, 0, time.UTC),
		CallerID:     "caller-5",
		ZipCode:      "10001",
		OriginalTier: "tier_1",
		ChosenTier:   "tier_2",
		FallbackUsed: true,
		Status:       StatusSuccess,
	})

	snap := rc.Snapshot()
	assert.Equal(t, int64(5), snap.TotalCalls)
	assert.Equal(t, int64(3), snap.Successful)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(1), snap.Unrouted)
	assert.Equal(t, int64(1), snap.FallbacksUsed)
	assert.Equal(t, int64(3), snap.ByTier["tier_1"])
	assert.Equal(t, int64(1), snap.ByTier["tier_2"])
	assert.Equal(t, int64(3), snap.ByHour[10])
	assert.Equal(t, int64(2), snap.ByHour[14])
	assert.Equal(t, int64(3), snap.ByZip["07004"])
	assert.InDelta(t, 100.0, snap.AvgResponseTimeMs, 0.01)
}

func TestRecorderSnapshotIsolation(t *testing.T) {
	rc := NewRecorder(10)
	rc.Record(testRecord(1, StatusSuccess))

	snap := rc.Snapshot()
	snap.ByTier["tier_1"] = 999
	snap.ByZip["07004"] = 999

	fresh := rc.Snapshot()
	assert.Equal(t, int64(1), fresh.ByTier["tier_1"], "snapshot mutation must not leak back")
	assert.Equal(t, int64(1), fresh.ByZip["07004"])
}

func TestRecorderRingEviction(t *testing.T) {
	rc := NewRecorder(DefaultHistorySize)

	for i := 0; i < DefaultHistorySize+1; i++ {
		rc.Record(testRecord(i, StatusSuccess))
	}

	assert.Equal(t, DefaultHistorySize, rc.Len(), "capacity bound holds after overflow")

	recent := rc.Recent(rc.Len())
	require.Len(t, recent, DefaultHistorySize)
	assert.Equal(t, fmt.Sprintf("caller-%d", DefaultHistorySize), recent[0].CallerID, "newest record present")
	assert.Equal(t, "caller-1", recent[len(recent)-1].CallerID, "oldest record evicted")

	// Aggregates survive eviction — history is bounded, counters are not.
	assert.Equal(t, int64(DefaultHistorySize+1), rc.Snapshot().TotalCalls)
}

func TestRecorderRecentOrdering(t *testing.T) {
	rc := NewRecorder(5)
	for i := 1; i <= 3; i++ {
		rc.Record(testRecord(i, StatusSuccess))
	}

	t.Run("newest first", func(t *testing.T) {
		recent := rc.Recent(2)
		require.Len(t, recent, 2)
		assert.Equal(t, "caller-3", recent[0].CallerID)
		assert.Equal(t, "caller-2", recent[1].CallerID)
	})

	t.Run("n larger than held records", func(t *testing.T) {
		recent := rc.Recent(50)
		assert.Len(t, recent, 3)
	})

	t.Run("wrapped ring keeps order", func(t *testing.T) {
		for i := 4; i <= 8; i++ {
			rc.Record(testRecord(i, StatusSuccess))
		}
		recent := rc.Recent(5)
		require.Len(t, recent, 5)
		for i, rec := range recent {
			assert.Equal(t, fmt.Sprintf("caller-%d", 8-i), rec.CallerID)
		}
	})
}

func TestRecorderConcurrentWrites(t *testing.T) {
	const n = 200

	rc := NewRecorder(50)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			rc.Record(testRecord(i, StatusSuccess))
			_ = rc.Snapshot()
			_ = rc.Recent(10)
		}()
	}
	wg.Wait()

	snap := rc.Snapshot()
	assert.Equal(t, int64(n), snap.TotalCalls)
	assert.Equal(t, 50, rc.Len())
}
