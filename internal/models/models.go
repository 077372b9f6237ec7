package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"zip-routing-api-go/internal/routing"
)

// FlexString accepts either a JSON string or a JSON number. Call
// trackers are inconsistent about whether zip_code is quoted.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("zip_code must be a string or number: %w", err)
	}
	*s = FlexString(num.String())
	return nil
}

// CallEventRequest is the inbound webhook payload.
type CallEventRequest struct {
	CallerID string     `json:"caller_id"`
	ZipCode  FlexString `json:"zip_code"`
}

// CallEventResponse is returned for routed calls.
type CallEventResponse struct {
	Status         string          `json:"status"`
	ZipCode        string          `json:"zip_code"`
	Tier           routing.TierID  `json:"tier"`
	OfferID        string          `json:"offer_id"`
	FallbackUsed   bool            `json:"fallback_used"`
	ExternalCallID string          `json:"external_call_id,omitempty"`
	BidResponse    json.RawMessage `json:"bid_response,omitempty"`
}

// UnroutedResponse is returned when the ZIP is not in any tier.
// Kept at HTTP 200 — "not ours" is not a caller error.
type UnroutedResponse struct {
	Status      string                 `json:"status"`
	ZipCode     string                 `json:"zip_code"`
	OriginalZip string                 `json:"original_zip"`
	TierCounts  map[routing.TierID]int `json:"tier_counts"`
}

// CheckZipResponse reports which tier owns a ZIP code.
type CheckZipResponse struct {
	OriginalZip  string         `json:"original_zip"`
	ProcessedZip string         `json:"processed_zip"`
	Tier         routing.TierID `json:"tier,omitempty"`
	Found        bool           `json:"found"`
}

// TierDebugInfo is the per-tier block of the debug endpoint.
type TierDebugInfo struct {
	Count      int      `json:"count"`
	SampleZips []string `json:"sample_zips"`
	SourceURL  string   `json:"source_url,omitempty"`
}

// DebugZipsResponse is the full debug dump of the loaded index.
type DebugZipsResponse struct {
	Tiers     map[routing.TierID]TierDebugInfo `json:"tiers"`
	TotalZips int                              `json:"total_zips"`
	Skipped   int                              `json:"skipped_rows"`
	LoadedAt  time.Time                        `json:"loaded_at"`
}

// HealthResponse reports service and dataset health.
type HealthResponse struct {
	Status       string                 `json:"status"`
	Service      string                 `json:"service"`
	Version      string                 `json:"version"`
	TotalZips    int                    `json:"total_zip_codes_loaded"`
	Tiers        map[routing.TierID]int `json:"tiers"`
	LastLoadedAt time.Time              `json:"last_loaded_at"`
	Degraded     bool                   `json:"degraded"`
}

// ReloadResponse reports the result of an explicit dataset reload.
type ReloadResponse struct {
	Success  bool      `json:"success"`
	Loaded   int       `json:"loaded"`
	Skipped  int       `json:"skipped"`
	LoadedAt time.Time `json:"loaded_at"`
	Error    string    `json:"error,omitempty"`
}

// RecentCallsResponse wraps the call history endpoint.
type RecentCallsResponse struct {
	Count int                  `json:"count"`
	Calls []routing.CallRecord `json:"calls"`
}
