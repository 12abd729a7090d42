package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Webhook posts events to an external sound/commentary service. Events are
// queued and sent by one worker; when the queue is full or the rate limit is
// exhausted the event is dropped.
type Webhook struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	queue      chan Event
	log        *zap.Logger

	mu      sync.Mutex
	dropped int
}

type WebhookConfig struct {
	URL        string
	RatePerSec float64
	QueueSize  int
	Timeout    time.Duration
	Logger     *zap.Logger
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Webhook{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), int(cfg.RatePerSec)+1),
		queue:      make(chan Event, cfg.QueueSize),
		log:        cfg.Logger.Named("webhook"),
	}
}

func (w *Webhook) Enabled() bool { return w.url != "" }

func (w *Webhook) Notify(ev Event) {
	if !w.Enabled() {
		return
	}
	if !w.limiter.Allow() {
		w.drop(ev, "rate limited")
		return
	}
	select {
	case w.queue <- ev:
	default:
		w.drop(ev, "queue full")
	}
}

// Run sends queued events until ctx is cancelled.
func (w *Webhook) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.queue:
			if err := w.send(ctx, ev); err != nil {
				w.log.Warn("webhook delivery failed", zap.Int64("session", ev.SessionID), zap.Error(err))
			}
		}
	}
}

func (w *Webhook) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Webhook) drop(ev Event, reason string) {
	w.mu.Lock()
	w.dropped++
	w.mu.Unlock()
	w.log.Debug("event dropped", zap.String("reason", reason), zap.String("kind", string(ev.Kind)))
}

func (w *Webhook) send(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post event: status=%d", resp.StatusCode)
	}
	return nil
}
