package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/smagulov/fieldtask/internal/models"
)

// Provider knows how to read the device's current position.
type Provider interface {
	Current(ctx context.Context) (*models.GeoPoint, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (*models.GeoPoint, error)

func (f ProviderFunc) Current(ctx context.Context) (*models.GeoPoint, error) {
	return f(ctx)
}

// HTTPProvider reads the position from a companion location agent, e.g. a
// gpsd bridge on the device exposing a single JSON endpoint.
type HTTPProvider struct {
	url    string
	client *http.Client
}

func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		client: &http.Client{},
	}
}

func (p *HTTPProvider) Current(ctx context.Context) (*models.GeoPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("location agent returned %d", resp.StatusCode)
	}

	var fix models.GeoPoint
	if err := json.NewDecoder(resp.Body).Decode(&fix); err != nil {
		return nil, err
	}
	return &fix, nil
}

// Capturer acquires positions with a bounded wait. A fix younger than the
// staleness window is reused instead of waking the sensor again. Geolocation
// is supplementary evidence: every failure mode (no provider, denial,
// timeout) resolves to nil, never an error.
type Capturer struct {
	provider Provider
	timeout  time.Duration
	staleFor time.Duration
	now      func() time.Time

	mu      sync.Mutex
	lastFix *models.GeoPoint
	lastAt  time.Time
}

func NewCapturer(provider Provider, timeout, staleFor time.Duration) *Capturer {
	return &Capturer{
		provider: provider,
		timeout:  timeout,
		staleFor: staleFor,
		now:      time.Now,
	}
}

// Acquire returns the device position or nil. Safe to call on a nil Capturer.
func (c *Capturer) Acquire(ctx context.Context) *models.GeoPoint {
	if c == nil || c.provider == nil {
		return nil
	}

	c.mu.Lock()
	if c.lastFix != nil && c.staleFor > 0 && c.now().Sub(c.lastAt) < c.staleFor {
		fix := *c.lastFix
		c.mu.Unlock()
		return &fix
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	fix, err := c.provider.Current(ctx)
	if err != nil || fix == nil {
		return nil
	}

	c.mu.Lock()
	c.lastFix = fix
	c.lastAt = c.now()
	c.mu.Unlock()

	out := *fix
	return &out
}
