package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/smagulov/fieldtask/internal/models"
)

// Store is the device-local durable cache. Session sequences are written
// through to it on every state change, before any sync attempt, so a crash
// mid-operation always leaves the cache at least as fresh as the remote copy.
type Store struct {
	db         *gorm.DB
	maxPayload int // bytes per cached payload, 0 = unlimited
}

// cachedSessions holds one task's JSON-serialized session sequence.
type cachedSessions struct {
	ID        uint   `gorm:"primarykey"`
	TaskKey   string `gorm:"uniqueIndex;not null"`
	Payload   []byte
	Degraded  bool // true when the stored payload had its media stripped
	UpdatedAt time.Time
}

// Open sets up the SQLite store and runs migrations.
func Open(path string, maxPayload int) (*Store, error) {
	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Quiet by default
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	if err := db.AutoMigrate(&cachedSessions{}, &models.Task{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, maxPayload: maxPayload}, nil
}

// DB exposes the underlying connection for the local task table.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the store.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Key returns the cache key for a task's session sequence. Keys are
// namespaced per task so two tasks never overwrite each other.
func Key(taskID uint) string {
	return fmt.Sprintf("sessions::%d", taskID)
}

// Save writes the session sequence under taskKey, best-effort. If the full
// write fails (quota or storage error), it retries once with all media
// stripped, keeping ids, timestamps, geo and notes. degraded reports whether
// the stored copy lost its media; err is non-nil only when even the degraded
// write failed — accepted data loss, never a crash.
func (s *Store) Save(taskKey string, sessions []models.Session) (degraded bool, err error) {
	payload, err := json.Marshal(sessions)
	if err == nil {
		if err = s.put(taskKey, payload, false); err == nil {
			return false, nil
		}
	}

	stripped, merr := json.Marshal(StripMedia(sessions))
	if merr != nil {
		return false, fmt.Errorf("cache write failed and degraded payload could not be built: %v (after %w)", merr, err)
	}
	if perr := s.put(taskKey, stripped, true); perr != nil {
		return true, fmt.Errorf("degraded cache write failed: %v (after %w)", perr, err)
	}
	return true, nil
}

func (s *Store) put(taskKey string, payload []byte, degraded bool) error {
	if s.maxPayload > 0 && len(payload) > s.maxPayload {
		return fmt.Errorf("payload is %d bytes, quota is %d", len(payload), s.maxPayload)
	}
	row := cachedSessions{TaskKey: taskKey, Payload: payload, Degraded: degraded}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "degraded", "updated_at"}),
	}).Create(&row).Error
}

// Load reads the cached session sequence for taskKey. The second return is
// false when no cached copy exists or it cannot be decoded.
func (s *Store) Load(taskKey string) ([]models.Session, bool) {
	var row cachedSessions
	if err := s.db.Where("task_key = ?", taskKey).First(&row).Error; err != nil {
		return nil, false
	}

	var sessions []models.Session
	if err := json.Unmarshal(row.Payload, &sessions); err != nil {
		return nil, false
	}
	return sessions, true
}

// StripMedia returns a copy of the sequence with every embedded image
// removed: photo sequences emptied and signatures dropped. Scalar fields
// survive so the session history itself is never lost to quota pressure.
func StripMedia(sessions []models.Session) []models.Session {
	out := models.CloneSessions(sessions)
	for i := range out {
		out[i].BeforePhotos = []string{}
		out[i].AfterPhotos = []string{}
		out[i].Signature = ""
	}
	return out
}
