package models

import (
	"time"

	"gorm.io/gorm"
)

// TaskStatus is the task-level state derived from the session sequence.
type TaskStatus string

const (
	StatusNew        TaskStatus = "New"
	StatusInProgress TaskStatus = "In Progress"
	StatusCompleted  TaskStatus = "Completed"
)

// Task is the local record of a service task. The session engine only keys
// on it; the surrounding dispatch system owns the full task entity.
type Task struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Title    string `gorm:"not null" json:"title"`
	Client   string `json:"client"`
	Site     string `json:"site"`
	Status   string `gorm:"default:New" json:"status"`
	ServerID string `json:"server_id"` // remote task identity, empty until the task exists server-side
}

// DeriveStatus computes the task status from the session sequence.
// markComplete records whether the most recent close was flagged complete.
// The status is always recomputed from these inputs, never stored and
// re-read independently, so it cannot drift from the sessions.
func DeriveStatus(sessions []Session, markComplete bool) TaskStatus {
	if len(sessions) == 0 {
		return StatusNew
	}
	for i := range sessions {
		if sessions[i].Open() {
			return StatusInProgress
		}
	}
	if markComplete {
		return StatusCompleted
	}
	return StatusInProgress
}
