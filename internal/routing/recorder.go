package routing

import (
	"sync"
	"time"
)

// CallStatus is the terminal outcome of one inbound call event.
type CallStatus string

const (
	StatusSuccess   CallStatus = "success"
	StatusAPIError  CallStatus = "api_error"
	StatusNoTier    CallStatus = "no_tier"
	StatusException CallStatus = "exception"
)

// CallRecord is the immutable audit record of one routing decision and
// its external outcome. Created once per inbound request and finalized
// exactly once, including on early-exit error paths.
type CallRecord struct {
	Timestamp       time.Time  `json:"timestamp"`
	CallerID        string     `json:"caller_id"`
	ZipCode         string     `json:"zip_code"`
	OriginalTier    TierID     `json:"original_tier,omitempty"`
	ChosenTier      TierID     `json:"chosen_tier,omitempty"`
	FallbackUsed    bool       `json:"fallback_used"`
	BusinessHoursOK bool       `json:"business_hours_ok"`
	RateLimitOK     bool       `json:"rate_limit_ok"`
	Status          CallStatus `json:"status"`
	ResponseTimeMs  int64      `json:"response_time_ms"`
	ExternalCallID  string     `json:"external_call_id,omitempty"`
}

// Analytics is a point-in-time copy of the recorder's aggregates.
type Analytics struct {
	TotalCalls        int64            `json:"total_calls"`
	Successful        int64            `json:"successful"`
	Failed            int64            `json:"failed"`
	Unrouted          int64            `json:"unrouted"`
	FallbacksUsed     int64            `json:"fallbacks_used"`
	ByTier            map[TierID]int64 `json:"by_tier"`
	ByHour            map[int]int64    `json:"by_hour"`
	ByZip             map[string]int64 `json:"by_zip"`
	AvgResponseTimeMs float64          `json:"avg_response_time_ms"`
}

// DefaultHistorySize bounds the in-memory call history ring buffer.
const DefaultHistorySize = 10000

// Recorder keeps a bounded FIFO of CallRecords plus running aggregate
// counters. Append and aggregate update happen under one lock, so no
// reader ever sees one without the other.
type Recorder struct {
	mu sync.Mutex

	capacity int
	ring     []CallRecord
	next     int // position of the next write
	size     int

	total         int64
	successful    int64
	failed        int64
	unrouted      int64
	fallbacks     int64
	byTier        map[TierID]int64
	byHour        map[int]int64
	byZip         map[string]int64
	responseMsSum int64
	responseN     int64
}

// NewRecorder creates a recorder holding at most capacity records.
// capacity <= 0 falls back to DefaultHistorySize.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &Recorder{
		capacity: capacity,
		ring:     make([]CallRecord, capacity),
		byTier:   make(map[TierID]int64),
		byHour:   make(map[int]int64),
		byZip:    make(map[string]int64),
	}
}

// Record appends the record to the history ring (evicting the oldest
// entry when full) and folds it into the aggregates in the same
// critical section.
func (rc *Recorder) Record(rec CallRecord) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.ring[rc.next] = rec
	rc.next = (rc.next + 1) % rc.capacity
	if rc.size < rc.capacity {
		rc.size++
	}

	rc.total++
	switch rec.Status {
	case StatusSuccess:
		rc.successful++
	case StatusNoTier:
		rc.unrouted++
	default:
		rc.failed++
	}
	if rec.FallbackUsed {
		rc.fallbacks++
	}
	if rec.ChosenTier != "" {
		rc.byTier[rec.ChosenTier]++
	}
	rc.byHour[rec.Timestamp.Hour()]++
	if rec.ZipCode != "" {
		rc.byZip[rec.ZipCode]++
	}
	if rec.ResponseTimeMs > 0 {
		rc.responseMsSum += rec.ResponseTimeMs
		rc.responseN++
	}
}

// Snapshot returns a copy of the aggregates, safe to read while writers
// continue.
func (rc *Recorder) Snapshot() Analytics {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	snap := Analytics{
		TotalCalls:    rc.total,
		Successful:    rc.successful,
		Failed:        rc.failed,
		Unrouted:      rc.unrouted,
		FallbacksUsed: rc.fallbacks,
		ByTier:        make(map[TierID]int64, len(rc.byTier)),
		ByHour:        make(map[int]int64, len(rc.byHour)),
		ByZip:         make(map[string]int64, len(rc.byZip)),
	}
	for k, v := range rc.byTier {
		snap.ByTier[k] = v
	}
	for k, v := range rc.byHour {
		snap.ByHour[k] = v
	}
	for k, v := range rc.byZip {
		snap.ByZip[k] = v
	}
	if rc.responseN > 0 {
		snap.AvgResponseTimeMs = float64(rc.responseMsSum) / float64(rc.responseN)
	}
	return snap
}

// Recent returns up to n records, newest first.
func (rc *Recorder) Recent(n int) []CallRecord {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if n <= 0 || n > rc.size {
		n = rc.size
	}
	out := make([]CallRecord, 0, n)
	for i := 1; i <= n; i++ {
		pos := (rc.next - i + rc.capacity*2) % rc.capacity
		out = append(out, rc.ring[pos])
	}
	return out
}

// Len returns the number of records currently held.
func (rc *Recorder) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.size
}
