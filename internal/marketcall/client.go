// Package marketcall is the outbound bid API client. The routing
// engine decides which offer to use; this client performs the network
// call and reports success or failure back for outcome recording.
package marketcall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"go.uber.org/zap"
)

var (
	// ErrAPIStatus means the bid endpoint answered with a non-2xx status.
	ErrAPIStatus = errors.New("bid request rejected")

	// ErrDecode means the bid endpoint answered 2xx but the body is not
	// valid JSON. Treated as a failed bid: the raw bytes must never be
	// passed through to the webhook caller as a bid response.
	ErrDecode = errors.New("invalid bid response")
)

// BidRequest is the payload posted to the affiliate bid endpoint.
type BidRequest struct {
	CampaignID string `json:"campaign_id"`
	CallerID   string `json:"caller_id"`
	ZipCode    string `json:"zip_code"`
}

// BidResult is the parsed outcome of a bid request.
type BidResult struct {
	// ID is the opaque external call identifier, empty when the
	// response carries none.
	ID string
	// Raw is the full response body, passed through to the webhook
	// caller untouched.
	Raw json.RawMessage
}

// Client posts bid requests to the MarketCall affiliate API.
type Client struct {
	baseURL    string
	apiKey     string
	campaignID string
	http       *http.Client
	logger     *zap.Logger
}

// NewClient creates a bid API client. The http.Client's timeout bounds
// each bid request.
func NewClient(baseURL, apiKey, campaignID string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		campaignID: campaignID,
		http:       httpClient,
		logger:     logger,
	}
}

// PlaceBid posts a bid request for the given offer.
func (c *Client) PlaceBid(ctx context.Context, offerID, callerID, zipCode string) (*BidResult, error) {
	payload, err := json.Marshal(BidRequest{
		CampaignID: c.campaignID,
		CallerID:   callerID,
		ZipCode:    zipCode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bid request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/affiliate/offers/%s/bid-requests", c.baseURL, offerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build bid request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bid request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bid response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("bid request rejected",
			zap.String("offer_id", offerID),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: offer %s status %d", ErrAPIStatus, offerID, resp.StatusCode)
	}

	if !json.Valid(body) {
		c.logger.Warn("bid response is not valid json",
			zap.String("offer_id", offerID),
			zap.Int("status", resp.StatusCode),
			zap.Int("body_len", len(body)))
		return nil, fmt.Errorf("%w: offer %s", ErrDecode, offerID)
	}

	result := &BidResult{Raw: body}

	// The response schema is not under our control; pull an identifier
	// out if one is there and move on if not.
	var envelope struct {
		ID     string `json:"id"`
		CallID string `json:"call_id"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.ID != "" {
			result.ID = envelope.ID
		} else if envelope.CallID != "" {
			result.ID = envelope.CallID
		}
	}

	return result, nil
}

// IsTimeout reports whether the error is a request timeout, so the
// webhook can answer 504 instead of 502.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
