package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smagulov/fieldtask/internal/models"
)

func TestAcquireReturnsFix(t *testing.T) {
	provider := ProviderFunc(func(ctx context.Context) (*models.GeoPoint, error) {
		return &models.GeoPoint{Lat: 51.16, Lng: 71.47}, nil
	})

	c := NewCapturer(provider, time.Second, 0)
	fix := c.Acquire(context.Background())

	require.NotNil(t, fix)
	assert.Equal(t, 51.16, fix.Lat)
}

func TestAcquireNilOnProviderError(t *testing.T) {
	provider := ProviderFunc(func(ctx context.Context) (*models.GeoPoint, error) {
		return nil, errors.New("permission denied")
	})

	c := NewCapturer(provider, time.Second, 0)
	assert.Nil(t, c.Acquire(context.Background()))
}

func TestAcquireBoundedByTimeout(t *testing.T) {
	provider := ProviderFunc(func(ctx context.Context) (*models.GeoPoint, error) {
		select {
		case <-time.After(5 * time.Second):
			return &models.GeoPoint{Lat: 1}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	c := NewCapturer(provider, 50*time.Millisecond, 0)

	started := time.Now()
	fix := c.Acquire(context.Background())
	elapsed := time.Since(started)

	assert.Nil(t, fix)
	assert.Less(t, elapsed, time.Second, "acquire must not block past its timeout")
}

func TestAcquireReusesRecentFix(t *testing.T) {
	calls := 0
	provider := ProviderFunc(func(ctx context.Context) (*models.GeoPoint, error) {
		calls++
		return &models.GeoPoint{Lat: float64(calls)}, nil
	})

	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	c := NewCapturer(provider, time.Second, 30*time.Second)
	c.now = func() time.Time { return now }

	first := c.Acquire(context.Background())
	second := c.Acquire(context.Background())

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, 1, calls, "second acquire must reuse the cached fix")
	assert.Equal(t, first.Lat, second.Lat)

	// Once the fix goes stale the sensor is read again.
	now = now.Add(time.Minute)
	third := c.Acquire(context.Background())
	require.NotNil(t, third)
	assert.Equal(t, 2, calls)
}

func TestNilCapturerIsSafe(t *testing.T) {
	var c *Capturer
	assert.Nil(t, c.Acquire(context.Background()))
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lat": 43.23, "lng": 76.88, "accuracy": 8.5}`))
	}))
	defer srv.Close()

	fix, err := NewHTTPProvider(srv.URL).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 43.23, fix.Lat)
	assert.Equal(t, 76.88, fix.Lng)
	require.NotNil(t, fix.Accuracy)
	assert.Equal(t, 8.5, *fix.Accuracy)
}

func TestHTTPProviderNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL).Current(context.Background())
	assert.Error(t, err)
}
