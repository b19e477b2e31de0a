// Package list models a user's per-title list entries.
package list

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Status is the user's progress on a title.
type Status string

// Status values. Manga "reading" is stored as Watching.
const (
	Watching  Status = "watching"
	Completed Status = "completed"
	Planned   Status = "planned"
	Dropped   Status = "dropped"
	OnHold    Status = "on_hold"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case Watching, Completed, Planned, Dropped, OnHold:
		return true
	}
	return false
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown list status %q", s)
	}
	return st, nil
}

// Label renders the status for user-facing messages.
func (s Status) Label(kind title.Kind) string {
	switch s {
	case Watching:
		if kind == title.Manga {
			return "reading"
		}
		return "watching"
	case Planned:
		if kind == title.Manga {
			return "plan to read"
		}
		return "plan to watch"
	case OnHold:
		return "on hold"
	default:
		return string(s)
	}
}

// Rating bounds.
const (
	MinRating = 1.0
	MaxRating = 10.0
)

// ClampRating forces a raw rating into [MinRating, MaxRating].
func ClampRating(v float64) float64 {
	if v < MinRating {
		return MinRating
	}
	if v > MaxRating {
		return MaxRating
	}
	return v
}

// Key identifies an entry. Unique per store.
type Key struct {
	UserID  string
	TitleID int64
	Kind    title.Kind
}

// Entry is one title on a user's list.
type Entry struct {
	Key
	Status     Status
	Rating     *float64
	IsFavorite bool
	AddedAt    time.Time
	UpdatedAt  time.Time

	// TitleName is the display name captured at write time.
	TitleName string
}

// RatingOrZero returns the rating, or 0 when unrated.
func (e *Entry) RatingOrZero() float64 {
	if e.Rating == nil {
		return 0
	}
	return *e.Rating
}
