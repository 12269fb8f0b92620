package advisord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/perotf-lab/expadvisor/internal/store"
	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/models"
	"github.com/perotf-lab/expadvisor/pkg/utils"
)

// SecretHeader carries the caller-supplied callback secret
const SecretHeader = "X-Expadvisor-Callback-Secret"

// NotificationPayload is the JSON posted to the callback URL
type NotificationPayload struct {
	BatchID         string                 `json:"batch_id"`
	CreatedAtUnixMs int64                  `json:"created_at_unix_ms"`
	Observations    int                    `json:"observations"`
	Suggestions     int                    `json:"suggestions"`
	Diversity       models.DiversityReport `json:"diversity"`
	Table           *models.Table          `json:"table"`
	Timestamp       int64                  `json:"timestamp"` // when the notification was sent
}

// Notifier posts batch-ready notifications
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy
	wg         sync.WaitGroup
}

// NewNotifier creates a notifier with three retries and exponential backoff
func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    utils.NewExponentialBackoff(time.Second, 30*time.Second, 2.0, false),
	}
}

// WithBackoff replaces the retry delay strategy
func (n *Notifier) WithBackoff(b utils.BackoffStrategy) *Notifier {
	n.backoff = b
	return n
}

// Notify sends the notification in the background
func (n *Notifier) Notify(callbackURL, callbackSecret string, rec *store.Record) {
	if callbackURL == "" {
		return
	}
	if rec == nil || rec.Batch == nil {
		logger.Warn("cannot notify: invalid batch record", "callback_url", callbackURL)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.Send(context.Background(), callbackURL, callbackSecret, rec); err != nil {
			logger.Error("failed to send notification after retries",
				"callback_url", callbackURL,
				"batch_id", rec.ID(),
				"max_retries", n.maxRetries,
				"last_error", err)
		}
	}()
}

// Wait blocks until background notifications have finished
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Send posts the notification and retries non-2xx responses
func (n *Notifier) Send(ctx context.Context, callbackURL, callbackSecret string, rec *store.Record) error {
	finalURL := strings.ReplaceAll(callbackURL, "{batch_id}", rec.ID())
	payload := NotificationPayload{
		BatchID:         rec.ID(),
		CreatedAtUnixMs: rec.Batch.CreatedAt.UnixMilli(),
		Observations:    rec.Observations,
		Suggestions:     len(rec.Batch.Suggestions),
		Diversity:       rec.Batch.Diversity,
		Table:           rec.Table,
		Timestamp:       time.Now().UTC().UnixMilli(),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	attempt := 0
	return utils.Retry(ctx, n.backoff, n.maxRetries+1, nil, func() error {
		attempt++
		err := n.post(ctx, finalURL, callbackSecret, payloadJSON)
		if err != nil {
			logger.Warn("notification attempt failed",
				"callback_url", finalURL,
				"batch_id", payload.BatchID,
				"attempt", attempt,
				"error", err)
			return err
		}
		logger.Info("notification sent successfully", "batch_id", payload.BatchID)
		return nil
	})
}

func (n *Notifier) post(ctx context.Context, url, secret string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "expadvisor/1.0")
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	responseBody := string(bodyBytes)
	if len(responseBody) > 200 {
		responseBody = responseBody[:200] + "..."
	}
	return fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, responseBody)
}
