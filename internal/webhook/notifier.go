// Package webhook delivers match events to an external HTTP endpoint.
// Deliveries are queued in memory and retried with exponential backoff, so
// a slow receiver never holds up a session.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
	"github.com/saturnino-fabrica-de-software/facegate/internal/eventlog"
)

// ErrQueueFull is returned by Append when deliveries back up.
var ErrQueueFull = errors.New("webhook queue full")

const (
	EventMatch = "face_login.match"
	EventFail  = "face_login.fail"
)

// EventPayload is the JSON body of one delivery.
type EventPayload struct {
	Type      string            `json:"type"`
	Data      domain.MatchEvent `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
}

type Config struct {
	URL         string
	Secret      string
	MaxAttempts int
	QueueSize   int
	Timeout     time.Duration
	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration
}

func DefaultConfig(url, secret string) Config {
	return Config{
		URL:         url,
		Secret:      secret,
		MaxAttempts: 3,
		QueueSize:   256,
		Timeout:     10 * time.Second,
		BaseBackoff: time.Second,
	}
}

type job struct {
	eventType string
	payload   []byte
}

// Notifier is an eventlog.Log that posts every event to Config.URL.
type Notifier struct {
	cfg    Config
	client *http.Client
	queue  chan job
	logger *slog.Logger
}

func NewNotifier(cfg Config, logger *slog.Logger) *Notifier {
	defaults := DefaultConfig(cfg.URL, cfg.Secret)
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaults.BaseBackoff
	}

	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		queue:  make(chan job, cfg.QueueSize),
		logger: logger.With("component", "webhook"),
	}
}

// Append queues the event and returns without waiting for delivery.
func (n *Notifier) Append(_ context.Context, event domain.MatchEvent) error {
	eventType := EventFail
	if event.Result == domain.OutcomeMatch {
		eventType = EventMatch
	}

	payload, err := json.Marshal(EventPayload{
		Type:      eventType,
		Data:      event,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	select {
	case n.queue <- job{eventType: eventType, payload: payload}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	n.logger.Info("webhook worker started", "url", n.cfg.URL)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("webhook worker stopped", "pending", len(n.queue))
			return
		case j := <-n.queue:
			n.deliver(ctx, j)
		}
	}
}

// Drain delivers what is still queued once Run has returned. It stops when
// the queue is empty or ctx is done, and reports how many were left.
func (n *Notifier) Drain(ctx context.Context) int {
	for {
		if ctx.Err() != nil {
			n.logger.Warn("webhook drain interrupted", "pending", len(n.queue))
			return len(n.queue)
		}

		select {
		case j := <-n.queue:
			n.deliver(ctx, j)
		default:
			return 0
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, j job) {
	var err error
	for attempt := 0; attempt < n.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := n.cfg.BaseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		if err = n.send(ctx, j); err == nil {
			n.logger.Debug("webhook delivered", "event", j.eventType, "attempts", attempt+1)
			return
		}

		n.logger.Info("webhook delivery failed", "event", j.eventType, "attempt", attempt+1, "error", err)
	}

	n.logger.Warn("webhook dropped", "event", j.eventType, "attempts", n.cfg.MaxAttempts, "error", err)
}

func (n *Notifier) send(ctx context.Context, j job) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(j.payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	ts := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Facegate-Event", j.eventType)
	req.Header.Set("X-Facegate-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("User-Agent", "Facegate-Webhook/1.0")
	if n.cfg.Secret != "" {
		req.Header.Set("X-Facegate-Signature", Sign(n.cfg.Secret, ts, j.payload))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

var _ eventlog.Log = (*Notifier)(nil)
