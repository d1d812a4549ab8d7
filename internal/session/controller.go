package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smagulov/fieldtask/internal/cache"
	"github.com/smagulov/fieldtask/internal/geo"
	"github.com/smagulov/fieldtask/internal/models"
	"github.com/smagulov/fieldtask/internal/syncer"
)

// Controller owns the session lifecycle of a single task: start, resume
// across days, end, complete. It enforces the one invariant of the engine —
// at most one open session per calendar day — and keeps the local cache
// strictly ahead of the remote copy.
//
// All state lives on the instance. One controller per task; nothing is
// shared across tasks.
type Controller struct {
	mu       sync.Mutex
	taskKey  string
	remoteID string
	sessions []models.Session

	// starting guards against a second Start racing in while the first one
	// is still waiting on geolocation.
	starting bool

	// markComplete records whether the most recent close was flagged
	// complete, so Status stays a pure function of controller state.
	markComplete bool

	store  *cache.Store
	remote *syncer.Client
	geo    *geo.Capturer
	now    func() time.Time
}

// Options wires the controller's collaborators. Store, Remote and Geo may
// each be nil; every operation degrades rather than fails without them.
type Options struct {
	Store  *cache.Store
	Remote *syncer.Client
	Geo    *geo.Capturer
	Now    func() time.Time
}

func New(opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		store:  opts.Store,
		remote: opts.Remote,
		geo:    opts.Geo,
		now:    now,
	}
}

// StartPrefill carries evidence captured before the session exists.
type StartPrefill struct {
	BeforePhotos []string
	Notes        string
}

// Initialize loads the controller's state for a task. A non-empty existing
// sequence (previously fetched from the remote service) is authoritative and
// is warmed into the cache; otherwise the cached copy is used; otherwise the
// sequence starts empty. Re-initializing with the same task key is a no-op
// so a consumer remount cannot reset in-memory state.
func (c *Controller) Initialize(taskKey, remoteID string, existing []models.Session, status models.TaskStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.taskKey == taskKey && taskKey != "" {
		return
	}

	c.taskKey = taskKey
	c.remoteID = remoteID
	c.markComplete = status == models.StatusCompleted

	if len(existing) > 0 {
		c.sessions = models.CloneSessions(existing)
		if c.store != nil {
			if _, err := c.store.Save(c.taskKey, c.sessions); err != nil {
				log.Printf("session: warm cache write for %s failed: %v", c.taskKey, err)
			}
		}
		return
	}

	if c.store != nil {
		if cached, ok := c.store.Load(taskKey); ok && len(cached) > 0 {
			c.sessions = cached
			return
		}
	}
	c.sessions = nil
}

// Sessions returns a copy of the full session sequence, insertion order.
func (c *Controller) Sessions() []models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CloneSessions(c.sessions)
}

// ActiveSession returns the session open on the current calendar day, or nil.
func (c *Controller) ActiveSession() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.findActive(models.DateKey(c.now())); s != nil {
		out := s.Clone()
		return &out
	}
	return nil
}

// Status returns the task status derived from the session sequence.
func (c *Controller) Status() models.TaskStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.DeriveStatus(c.sessions, c.markComplete)
}

// Start opens a new session for today. Returns nil when a session is already
// open or another Start is in flight — a benign consumer race, not an error.
// Geolocation is acquired outside the critical section; the active check is
// re-run before commit so the invariant holds across the wait.
func (c *Controller) Start(ctx context.Context, prefill *StartPrefill) *models.Session {
	c.mu.Lock()
	if c.starting || c.findActive(models.DateKey(c.now())) != nil {
		c.mu.Unlock()
		return nil
	}
	c.starting = true
	c.mu.Unlock()

	fix := c.geo.Acquire(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false

	if c.findActive(models.DateKey(c.now())) != nil {
		return nil
	}

	s := models.Session{
		ID:           uuid.NewString(),
		DateKey:      models.DateKey(c.now()),
		StartedAt:    c.now(),
		StartGeo:     fix,
		BeforePhotos: []string{},
		AfterPhotos:  []string{},
	}
	if prefill != nil {
		if prefill.BeforePhotos != nil {
			s.Apply(models.SessionPatch{ID: s.ID, BeforePhotos: prefill.BeforePhotos})
		}
		s.Notes = prefill.Notes
	}

	c.sessions = append(c.sessions, s)
	c.markComplete = false
	c.commitLocked(ctx, models.StatusInProgress)

	out := s.Clone()
	return &out
}

// End closes the active session. markComplete flags the close as the task's
// completion and drives the derived status pushed to the remote. No-op
// (returns nil) when no session is open today.
func (c *Controller) End(ctx context.Context, markComplete bool) *models.Session {
	c.mu.Lock()
	active := c.findActive(models.DateKey(c.now()))
	if active == nil {
		c.mu.Unlock()
		return nil
	}
	id := active.ID
	c.mu.Unlock()

	fix := c.geo.Acquire(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.findByID(id)
	if s == nil || !s.Open() {
		return nil
	}

	ended := c.now()
	s.EndedAt = &ended
	s.EndGeo = fix
	c.markComplete = markComplete

	status := models.StatusInProgress
	if markComplete {
		status = models.StatusCompleted
	}
	c.commitLocked(ctx, status)

	out := s.Clone()
	return &out
}

// Upsert merges the patch into the session matching its ID, open or just
// closed. It carries all in-progress edits: notes, added photos, the
// signature. Ordering (e.g. signature before End) is the caller's concern.
func (c *Controller) Upsert(ctx context.Context, patch models.SessionPatch) *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.findByID(patch.ID)
	if s == nil {
		return nil
	}

	s.Apply(patch)
	c.commitLocked(ctx, models.DeriveStatus(c.sessions, c.markComplete))

	out := s.Clone()
	return &out
}

// commitLocked persists the current sequence: cache first, then the remote
// push. The ordering is what makes a crash between the two safe — the cache
// is the write-ahead copy, the remote the replicated checkpoint. A failed
// push is logged and left for the next state change to replay.
func (c *Controller) commitLocked(ctx context.Context, status models.TaskStatus) {
	if c.store != nil {
		degraded, err := c.store.Save(c.taskKey, c.sessions)
		if err != nil {
			log.Printf("session: cache write for %s failed, media lost: %v", c.taskKey, err)
		} else if degraded {
			log.Printf("session: cache write for %s degraded, media stripped", c.taskKey)
		}
	}

	if c.remote == nil || c.remoteID == "" {
		return
	}
	if err := c.remote.Push(ctx, c.remoteID, c.sessions, status); err != nil {
		log.Printf("session: push for %s failed, cache copy stands: %v", c.taskKey, err)
	}
}

func (c *Controller) findActive(dateKey string) *models.Session {
	for i := range c.sessions {
		if c.sessions[i].ActiveOn(dateKey) {
			return &c.sessions[i]
		}
	}
	return nil
}

func (c *Controller) findByID(id string) *models.Session {
	for i := range c.sessions {
		if c.sessions[i].ID == id {
			return &c.sessions[i]
		}
	}
	return nil
}
