package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smagulov/fieldtask/internal/cache"
	"github.com/smagulov/fieldtask/internal/geo"
	"github.com/smagulov/fieldtask/internal/models"
	"github.com/smagulov/fieldtask/internal/syncer"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// remoteRecorder captures every push the controller makes.
type remoteRecorder struct {
	mu     sync.Mutex
	pushes []pushRecord
	fail   bool
	srv    *httptest.Server
}

type pushRecord struct {
	Path     string
	Sessions []models.Session
	Status   models.TaskStatus
}

func newRemoteRecorder(t *testing.T) *remoteRecorder {
	r := &remoteRecorder{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var body struct {
			Sessions []models.Session  `json:"sessions"`
			Status   models.TaskStatus `json:"status"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		r.pushes = append(r.pushes, pushRecord{Path: req.URL.Path, Sessions: body.Sessions, Status: body.Status})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *remoteRecorder) setFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

func (r *remoteRecorder) records() []pushRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pushRecord(nil), r.pushes...)
}

type testEnv struct {
	ctrl   *Controller
	store  *cache.Store
	clock  *fakeClock
	remote *remoteRecorder
}

func newTestEnv(t *testing.T, geoProvider geo.Provider) *testEnv {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "fieldtask.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := newFakeClock()
	remote := newRemoteRecorder(t)

	var capturer *geo.Capturer
	if geoProvider != nil {
		capturer = geo.NewCapturer(geoProvider, time.Second, 0)
	}

	ctrl := New(Options{
		Store:  store,
		Remote: syncer.New(remote.srv.URL),
		Geo:    capturer,
		Now:    clock.Now,
	})
	ctrl.Initialize(cache.Key(1), "task-1", nil, models.StatusNew)

	return &testEnv{ctrl: ctrl, store: store, clock: clock, remote: remote}
}

func steadyGeo(lat float64) geo.Provider {
	return geo.ProviderFunc(func(ctx context.Context) (*models.GeoPoint, error) {
		return &models.GeoPoint{Lat: lat, Lng: lat * 2}, nil
	})
}

func TestStartCreatesActiveSession(t *testing.T) {
	env := newTestEnv(t, steadyGeo(51.1))
	ctx := context.Background()

	s := env.ctrl.Start(ctx, &StartPrefill{BeforePhotos: []string{"a.png"}, Notes: "arrived"})
	require.NotNil(t, s)

	active := env.ctrl.ActiveSession()
	require.NotNil(t, active)
	assert.Equal(t, s.ID, active.ID)
	assert.Equal(t, "2025-03-07", active.DateKey)
	assert.Equal(t, []string{"a.png"}, active.BeforePhotos)
	assert.Equal(t, "arrived", active.Notes)
	assert.Nil(t, active.EndedAt)
	require.NotNil(t, active.StartGeo)
	assert.Equal(t, 51.1, active.StartGeo.Lat)
	assert.Equal(t, models.StatusInProgress, env.ctrl.Status())
}

func TestStartWithoutGeoStillCreatesSession(t *testing.T) {
	failing := geo.ProviderFunc(func(ctx context.Context) (*models.GeoPoint, error) {
		return nil, errors.New("no gps")
	})
	env := newTestEnv(t, failing)

	s := env.ctrl.Start(context.Background(), nil)
	require.NotNil(t, s)
	assert.Nil(t, s.StartGeo)
	assert.Empty(t, s.BeforePhotos)
}

func TestStartRejectedWhileSessionOpen(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	require.NotNil(t, env.ctrl.Start(ctx, nil))
	assert.Nil(t, env.ctrl.Start(ctx, nil), "second start while a session is open must be rejected")
	assert.Len(t, env.ctrl.Sessions(), 1)
}

func TestStartIdempotentUnderRace(t *testing.T) {
	// A slow geolocation lookup keeps the first start suspended while the
	// second one comes in, which is exactly the double-tap scenario the
	// re-entrancy guard exists for.
	slowGeo := geo.ProviderFunc(func(ctx context.Context) (*models.GeoPoint, error) {
		time.Sleep(100 * time.Millisecond)
		return &models.GeoPoint{Lat: 1, Lng: 2}, nil
	})
	env := newTestEnv(t, slowGeo)

	var wg sync.WaitGroup
	results := make([]*models.Session, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = env.ctrl.Start(context.Background(), nil)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, r := range results {
		if r != nil {
			created++
		}
	}
	assert.Equal(t, 1, created, "two concurrent starts must produce exactly one session")
	assert.Len(t, env.ctrl.Sessions(), 1)
}

func TestEndClosesActiveSession(t *testing.T) {
	env := newTestEnv(t, steadyGeo(43.2))
	ctx := context.Background()

	started := env.ctrl.Start(ctx, &StartPrefill{BeforePhotos: []string{"a.png"}})
	require.NotNil(t, started)

	ended := env.ctrl.End(ctx, false)
	require.NotNil(t, ended)
	assert.Equal(t, started.ID, ended.ID)
	require.NotNil(t, ended.EndedAt)
	require.NotNil(t, ended.EndGeo)
	assert.Nil(t, env.ctrl.ActiveSession())
	assert.Equal(t, models.StatusInProgress, env.ctrl.Status())
}

func TestEndWithoutActiveSessionIsNoop(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Nil(t, env.ctrl.End(context.Background(), true))
}

func TestUpsertMergesPatch(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	s := env.ctrl.Start(ctx, &StartPrefill{BeforePhotos: []string{"a.png"}})
	require.NotNil(t, s)

	note := "swapped the filter"
	updated := env.ctrl.Upsert(ctx, models.SessionPatch{
		ID:          s.ID,
		Notes:       &note,
		AfterPhotos: []string{"b.png"},
	})
	require.NotNil(t, updated)
	assert.Equal(t, "swapped the filter", updated.Notes)
	assert.Equal(t, []string{"b.png"}, updated.AfterPhotos)
	assert.Equal(t, []string{"a.png"}, updated.BeforePhotos, "unpatched fields keep their values")
}

func TestUpsertUnknownSession(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Nil(t, env.ctrl.Upsert(context.Background(), models.SessionPatch{ID: "nope"}))
}

func TestFullDayCycle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	s := env.ctrl.Start(ctx, &StartPrefill{BeforePhotos: []string{"a.png"}})
	require.NotNil(t, s)

	active := env.ctrl.ActiveSession()
	require.NotNil(t, active)
	assert.Equal(t, "2025-03-07", active.DateKey)
	assert.Equal(t, []string{"a.png"}, active.BeforePhotos)
	assert.Nil(t, active.EndedAt)

	sig := "data:image/png;base64,SIG"
	env.ctrl.Upsert(ctx, models.SessionPatch{ID: s.ID, AfterPhotos: []string{"b.png"}, Signature: &sig})

	closed := env.ctrl.End(ctx, true)
	require.NotNil(t, closed)
	require.NotNil(t, closed.EndedAt)
	assert.Equal(t, []string{"b.png"}, closed.AfterPhotos)
	assert.Equal(t, models.StatusCompleted, env.ctrl.Status())

	records := env.remote.records()
	require.NotEmpty(t, records)
	last := records[len(records)-1]
	assert.Equal(t, "/tasks/task-1", last.Path)
	assert.Equal(t, models.StatusCompleted, last.Status)
	require.Len(t, last.Sessions, 1)
	assert.NotNil(t, last.Sessions[0].EndedAt)
}

func TestSameDayRestartAfterClose(t *testing.T) {
	// The invariant is about open sessions, not any session: a closed
	// session on today's date key does not block a fresh start.
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first := env.ctrl.Start(ctx, nil)
	require.NotNil(t, first)
	require.NotNil(t, env.ctrl.End(ctx, false))

	second := env.ctrl.Start(ctx, nil)
	require.NotNil(t, second, "restart after same-day close must be allowed")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.DateKey, second.DateKey)

	open := 0
	for _, s := range env.ctrl.Sessions() {
		if s.Open() {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

func TestYesterdaysSessionIsNotActiveToday(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	require.NotNil(t, env.ctrl.Start(ctx, nil))
	env.clock.Advance(24 * time.Hour)

	assert.Nil(t, env.ctrl.ActiveSession(), "an open session from a prior day is not today's active session")

	// A new day allows a new session even though yesterday's never closed.
	s := env.ctrl.Start(ctx, nil)
	require.NotNil(t, s)
	assert.Equal(t, "2025-03-08", s.DateKey)
}

func TestCacheWrittenBeforePushSurvivesSyncFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.remote.setFail(true)
	ctx := context.Background()

	s := env.ctrl.Start(ctx, &StartPrefill{BeforePhotos: []string{"a.png"}})
	require.NotNil(t, s)

	cached, ok := env.store.Load(cache.Key(1))
	require.True(t, ok, "cache copy must exist even though every push failed")
	require.Len(t, cached, 1)
	assert.Equal(t, s.ID, cached[0].ID)
	assert.Equal(t, []string{"a.png"}, cached[0].BeforePhotos)
	assert.Empty(t, env.remote.records())
}

func TestNoPushWithoutRemoteIdentity(t *testing.T) {
	env := newTestEnv(t, nil)

	// A task that does not exist server-side yet: cache-only mode.
	ctrl := New(Options{Store: env.store, Remote: syncer.New(env.remote.srv.URL), Now: env.clock.Now})
	ctrl.Initialize(cache.Key(2), "", nil, models.StatusNew)

	require.NotNil(t, ctrl.Start(context.Background(), nil))

	assert.Empty(t, env.remote.records(), "no remote identity means no push attempt")
	_, ok := env.store.Load(cache.Key(2))
	assert.True(t, ok)
}

func TestInitializeSuppliedSequenceIsAuthoritative(t *testing.T) {
	env := newTestEnv(t, nil)

	// Something stale sits in the cache under the same key.
	_, err := env.store.Save(cache.Key(3), []models.Session{{ID: "stale"}})
	require.NoError(t, err)

	remote := []models.Session{{ID: "fresh", DateKey: "2025-03-06", BeforePhotos: []string{"x"}}}
	ctrl := New(Options{Store: env.store, Now: env.clock.Now})
	ctrl.Initialize(cache.Key(3), "task-3", remote, models.StatusInProgress)

	sessions := ctrl.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "fresh", sessions[0].ID)

	// The supplied sequence was warmed into the cache.
	cached, ok := env.store.Load(cache.Key(3))
	require.True(t, ok)
	assert.Equal(t, "fresh", cached[0].ID)
}

func TestInitializeFallsBackToCache(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.store.Save(cache.Key(4), []models.Session{{ID: "cached", DateKey: "2025-03-07"}})
	require.NoError(t, err)

	ctrl := New(Options{Store: env.store, Now: env.clock.Now})
	ctrl.Initialize(cache.Key(4), "", nil, models.StatusInProgress)

	sessions := ctrl.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "cached", sessions[0].ID)
}

func TestInitializeEmptyWhenNothingKnown(t *testing.T) {
	env := newTestEnv(t, nil)

	ctrl := New(Options{Store: env.store, Now: env.clock.Now})
	ctrl.Initialize(cache.Key(5), "", nil, models.StatusNew)

	assert.Empty(t, ctrl.Sessions())
	assert.Equal(t, models.StatusNew, ctrl.Status())
}

func TestInitializeRemountIsNoop(t *testing.T) {
	env := newTestEnv(t, nil)

	s := env.ctrl.Start(context.Background(), nil)
	require.NotNil(t, s)

	// A consumer remount re-initializes with the stale sequence it was
	// originally given; the controller must keep its in-memory state.
	env.ctrl.Initialize(cache.Key(1), "task-1", nil, models.StatusNew)

	sessions := env.ctrl.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, s.ID, sessions[0].ID)
}

func TestResumeAfterReload(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	s := env.ctrl.Start(ctx, &StartPrefill{BeforePhotos: []string{"a.png"}})
	require.NotNil(t, s)

	// A fresh controller (process restart) resumes from the cache alone.
	ctrl := New(Options{Store: env.store, Now: env.clock.Now})
	ctrl.Initialize(cache.Key(1), "task-1", nil, models.StatusInProgress)

	active := ctrl.ActiveSession()
	require.NotNil(t, active)
	assert.Equal(t, s.ID, active.ID)

	require.NotNil(t, ctrl.End(ctx, true))
	assert.Equal(t, models.StatusCompleted, ctrl.Status())
}

func TestSingleActiveInvariantAcrossMixedCalls(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		env.ctrl.Start(ctx, nil)
		env.ctrl.Start(ctx, nil)
		if i%2 == 0 {
			env.ctrl.End(ctx, false)
		}
	}

	today := "2025-03-07"
	open := 0
	for _, s := range env.ctrl.Sessions() {
		if s.ActiveOn(today) {
			open++
		}
	}
	assert.LessOrEqual(t, open, 1, "at most one open session per day at any observation point")
}
