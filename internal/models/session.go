package models

import (
	"time"
)

// MaxPhotos is the cap on each photo sequence of a session.
const MaxPhotos = 8

// GeoPoint is a best-effort device position attached to a session boundary.
type GeoPoint struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// Session is one bounded interval of on-site work capture for a task on a
// given calendar day. EndedAt == nil means the session is still open.
type Session struct {
	ID        string     `json:"id"`
	DateKey   string     `json:"dateKey"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`

	StartGeo *GeoPoint `json:"startGeo,omitempty"`
	EndGeo   *GeoPoint `json:"endGeo,omitempty"`

	BeforePhotos []string `json:"beforePhotos"`
	AfterPhotos  []string `json:"afterPhotos"`
	Notes        string   `json:"notes,omitempty"`
	Signature    string   `json:"signature,omitempty"`
}

// Open reports whether the session has not been closed yet.
func (s *Session) Open() bool {
	return s.EndedAt == nil
}

// ActiveOn reports whether the session counts as the active session for the
// given calendar day key.
func (s *Session) ActiveOn(dateKey string) bool {
	return s.EndedAt == nil && s.DateKey == dateKey
}

// DateKey formats a time as the calendar-day key sessions are scoped to.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SessionPatch is a partial update applied to the session matching ID.
// Nil fields are left untouched; non-nil fields replace the current value.
type SessionPatch struct {
	ID           string
	Notes        *string
	BeforePhotos []string
	AfterPhotos  []string
	Signature    *string
}

// Apply merges the patch into the session. Caller-supplied fields win.
func (s *Session) Apply(p SessionPatch) {
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
	if p.BeforePhotos != nil {
		s.BeforePhotos = capPhotos(p.BeforePhotos)
	}
	if p.AfterPhotos != nil {
		s.AfterPhotos = capPhotos(p.AfterPhotos)
	}
	if p.Signature != nil {
		s.Signature = *p.Signature
	}
}

// capPhotos truncates a photo sequence to MaxPhotos, keeping the oldest
// entries. Silently dropping the excess newest entries is the defined
// policy for over-long sequences.
func capPhotos(photos []string) []string {
	if len(photos) > MaxPhotos {
		return photos[:MaxPhotos]
	}
	return photos
}

// Clone returns a deep copy so callers can't alias the controller's state.
func (s Session) Clone() Session {
	out := s
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	if s.StartGeo != nil {
		g := *s.StartGeo
		out.StartGeo = &g
	}
	if s.EndGeo != nil {
		g := *s.EndGeo
		out.EndGeo = &g
	}
	out.BeforePhotos = append([]string(nil), s.BeforePhotos...)
	out.AfterPhotos = append([]string(nil), s.AfterPhotos...)
	return out
}

// CloneSessions deep-copies a session sequence.
func CloneSessions(sessions []Session) []Session {
	out := make([]Session, len(sessions))
	for i, s := range sessions {
		out[i] = s.Clone()
	}
	return out
}
