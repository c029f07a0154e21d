// Package client holds the thin HTTP clients for the external collaborators:
// check-in completion and notification dispatch.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avdeenko/skyhold/internal/domain"
)

type CompleteCheckinRequest struct {
	CheckInID   string         `json:"checkin_id"`
	PassengerID string         `json:"passenger_id"`
	SeatID      string         `json:"seat_id"`
	Baggage     domain.Baggage `json:"baggage"`
}

type CompleteCheckinResponse struct {
	CheckInID    string               `json:"checkin_id"`
	State        string               `json:"state"`
	BoardingPass *domain.BoardingPass `json:"boarding_pass,omitempty"`
}

type CheckinClient struct {
	baseURL string
	http    *http.Client
}

func NewCheckinClient(baseURL string, timeout time.Duration) *CheckinClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &CheckinClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// CompleteCheckin drives a waitlisted passenger's check-in to completion.
// The ctx deadline bounds the call on top of the client timeout, so a stuck
// external service cannot stall a promotion chain.
func (c *CheckinClient) CompleteCheckin(
	ctx context.Context,
	req CompleteCheckinRequest,
) (*CompleteCheckinResponse, error) {
	const op = "client.CheckinClient.CompleteCheckin"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/api/v1/checkin/complete",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, b)
	}

	var out CompleteCheckinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &out, nil
}
