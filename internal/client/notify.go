package client

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

type NotificationRequest struct {
	PassengerID string         `json:"passenger_id"`
	Type        string         `json:"type"`
	Channels    []string       `json:"channels"`
	Data        map[string]any `json:"data"`
}

// Notifier is fire-and-forget by contract: failures are logged, never
// returned, so a flaky notification service can't disturb a promotion. A
// token-bucket limiter caps the outbound rate.
type Notifier struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewNotifier(baseURL string, perSecond float64, logger *slog.Logger) *Notifier {
	if perSecond <= 0 {
		perSecond = 20
	}

	return &Notifier{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(perSecond)),
		logger:  logger,
	}
}

func (n *Notifier) Send(ctx context.Context, req NotificationRequest) {
	if !n.limiter.Allow() {
		n.logger.Warn("notification dropped, rate limited",
			"passenger_id", req.PassengerID, "type", req.Type)
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		n.logger.Error("notification marshal failed", "error", err)
		return
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		n.baseURL+"/api/v1/notifications/send",
		bytes.NewReader(body),
	)
	if err != nil {
		n.logger.Error("notification request failed", "error", err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(httpReq)
	if err != nil {
		n.logger.Error("notification send failed",
			"passenger_id", req.PassengerID, "type", req.Type, "error", err)
		return
	}
	resp.Body.Close()

	n.logger.Info("notification sent",
		"passenger_id", req.PassengerID, "type", req.Type)
}
