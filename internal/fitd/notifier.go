package fitd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kinfit/kinfit-core/pkg/logger"
)

// NotificationPayload is the JSON body posted to a run's callback URL.
// Progress events carry the per-generation best; terminal events carry the
// final record and the termination reason.
type NotificationPayload struct {
	RunID       string    `json:"run_id"`
	Event       string    `json:"event"` // "progress" or "terminal"
	Status      RunStatus `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Error       string    `json:"error,omitempty"`
	Generation  int       `json:"generation"`
	Best        []float64 `json:"best,omitempty"`
	BestMSE     float64   `json:"best_mse"`
	Evaluations int       `json:"evaluations,omitempty"`
	Timestamp   int64     `json:"timestamp"`
}

// Notifier posts run events to callback URLs. Progress events are
// rate-limited and dropped when over the limit; terminal events are always
// sent, with retries.
type Notifier struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
		maxRetries: 3,
		baseDelay:  1 * time.Second,
	}
}

// NotifyProgress sends a per-generation update. The call never blocks the
// optimizer: when the rate limit is exhausted the event is dropped, the next
// generation will carry fresher state anyway.
func (n *Notifier) NotifyProgress(callbackURL string, rec *RunRecord) {
	if callbackURL == "" || rec == nil {
		return
	}
	if !n.limiter.Allow() {
		return
	}

	payload := NotificationPayload{
		RunID:      rec.ID,
		Event:      "progress",
		Status:     rec.Status,
		Generation: rec.Generation,
		Best:       rec.Best,
		BestMSE:    rec.BestMSE,
		Timestamp:  time.Now().UTC().UnixMilli(),
	}
	go n.send(expandURL(callbackURL, rec.ID), payload, 0)
}

// NotifyTerminal sends the final outcome of a run with retry.
func (n *Notifier) NotifyTerminal(callbackURL string, rec *RunRecord) {
	if callbackURL == "" || rec == nil {
		return
	}

	payload := NotificationPayload{
		RunID:       rec.ID,
		Event:       "terminal",
		Status:      rec.Status,
		Reason:      rec.Reason,
		Error:       rec.Error,
		Generation:  rec.Generation,
		Best:        rec.Best,
		BestMSE:     rec.BestMSE,
		Evaluations: rec.Evaluations,
		Timestamp:   time.Now().UTC().UnixMilli(),
	}
	go n.send(expandURL(callbackURL, rec.ID), payload, n.maxRetries)
}

func expandURL(callbackURL, runID string) string {
	return strings.ReplaceAll(callbackURL, "{run_id}", runID)
}

func (n *Notifier) send(callbackURL string, payload NotificationPayload, retries int) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload",
			"callback_url", callbackURL,
			"run_id", payload.RunID,
			"error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := n.baseDelay * time.Duration(1<<uint(attempt-1))
			logger.Debug("retrying notification",
				"callback_url", callbackURL,
				"run_id", payload.RunID,
				"attempt", attempt,
				"delay", delay)
			time.Sleep(delay)
		}

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(payloadJSON))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "kinfit-core/1.0")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			logger.Warn("notification attempt failed",
				"callback_url", callbackURL,
				"run_id", payload.RunID,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Debug("notification sent",
				"run_id", payload.RunID,
				"event", payload.Event,
				"status_code", resp.StatusCode)
			return
		}
		lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		logger.Warn("notification returned non-2xx status",
			"callback_url", callbackURL,
			"run_id", payload.RunID,
			"status_code", resp.StatusCode,
			"attempt", attempt+1)
	}

	if lastErr != nil {
		logger.Error("failed to send notification",
			"callback_url", callbackURL,
			"run_id", payload.RunID,
			"event", payload.Event,
			"last_error", lastErr)
	}
}
