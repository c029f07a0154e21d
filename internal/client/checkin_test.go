package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avdeenko/skyhold/internal/domain"
)

func TestCheckinClient_CompleteCheckin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/checkin/complete" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}

		var req CompleteCheckinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.CheckInID != "ci_1" || req.SeatID != "12A" {
			t.Errorf("unexpected request: %+v", req)
		}

		_ = json.NewEncoder(w).Encode(CompleteCheckinResponse{
			CheckInID: req.CheckInID,
			State:     "COMPLETED",
			BoardingPass: &domain.BoardingPass{
				PassengerID: req.PassengerID,
				SeatNumber:  req.SeatID,
			},
		})
	}))
	defer srv.Close()

	c := NewCheckinClient(srv.URL, time.Second)

	resp, err := c.CompleteCheckin(context.Background(), CompleteCheckinRequest{
		CheckInID:   "ci_1",
		PassengerID: "p1",
		SeatID:      "12A",
	})
	if err != nil {
		t.Fatalf("CompleteCheckin: %v", err)
	}
	if resp.State != "COMPLETED" {
		t.Fatalf("state = %q, want COMPLETED", resp.State)
	}
	if resp.BoardingPass == nil || resp.BoardingPass.SeatNumber != "12A" {
		t.Fatalf("unexpected boarding pass: %+v", resp.BoardingPass)
	}
}

func TestCheckinClient_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"checkin not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewCheckinClient(srv.URL, time.Second)

	if _, err := c.CompleteCheckin(context.Background(), CompleteCheckinRequest{
		CheckInID: "ci_missing",
	}); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestCheckinClient_ContextDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewCheckinClient(srv.URL, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.CompleteCheckin(ctx, CompleteCheckinRequest{CheckInID: "ci_1"}); err == nil {
		t.Fatal("expected deadline error")
	}
}
