// Package analytics sends best-effort interaction events to a collector.
// Delivery never blocks the caller and failures are only logged.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/joeblew999/plat-yieldgap/internal/mapview"
	"github.com/joeblew999/plat-yieldgap/internal/metrics"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 5 * time.Second

// Interaction is one user action.
type Interaction struct {
	Action           string
	Details          string
	Timestamp        time.Time
	UserAgent        string
	ScreenResolution string
	MapZoom          float64
	MapCenter        mapview.LatLng
}

type wireInteraction struct {
	Action           string         `json:"action"`
	Details          string         `json:"details"`
	Timestamp        string         `json:"timestamp"`
	UserAgent        string         `json:"userAgent"`
	ScreenResolution string         `json:"screenResolution"`
	MapZoom          float64        `json:"mapZoom"`
	MapCenter        mapview.LatLng `json:"mapCenter"`
}

// MarshalJSON writes the collector's field names with an ISO-8601 UTC timestamp.
func (i Interaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireInteraction{
		Action:           i.Action,
		Details:          i.Details,
		Timestamp:        i.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		UserAgent:        i.UserAgent,
		ScreenResolution: i.ScreenResolution,
		MapZoom:          i.MapZoom,
		MapCenter:        i.MapCenter,
	})
}

// Resolution formats a screen size as "WxH".
func Resolution(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}

// Tracker posts interactions to a collector URL. A Tracker with an empty URL
// drops everything.
type Tracker struct {
	url     string
	client  *http.Client
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewTracker creates a tracker. timeout <= 0 uses DefaultTimeout.
func NewTracker(url string, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{url: url, client: &http.Client{}, timeout: timeout}
}

// WithClient replaces the HTTP client.
func (t *Tracker) WithClient(c *http.Client) *Tracker {
	t.client = c
	return t
}

// Track sends ev in the background. It returns immediately; the result of
// the delivery is never reported to the caller.
func (t *Tracker) Track(ev Interaction) {
	if t == nil || t.url == "" {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.send(ev); err != nil {
			metrics.AnalyticsDeliveries.WithLabelValues("error").Inc()
			log.Printf("[analytics] not available: %v", err)
			return
		}
		metrics.AnalyticsDeliveries.WithLabelValues("ok").Inc()
	}()
}

// Wait blocks until pending deliveries finish. Used on shutdown and in tests.
func (t *Tracker) Wait() {
	if t != nil {
		t.wg.Wait()
	}
}

func (t *Tracker) send(ev Interaction) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", t.url, resp.Status)
	}
	return nil
}
