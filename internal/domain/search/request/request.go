// Package request defines validated search and similarity queries.
package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 10
	MaxLimit       = 100
)

// Request is a free-text search over one media kind.
type Request struct {
	Kind      title.Kind
	Query     string
	Limit     int
	Genre     string
	MinScore  *float64
	MediaType string
}

// Normalize validates r and fills defaults. Kind defaults to anime, Limit to
// DefaultLimit and is clamped to MaxLimit.
func (r Request) Normalize() (Request, error) {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return Request{}, fmt.Errorf("query is required")
	}
	if len(r.Query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if r.Kind == "" {
		r.Kind = title.Anime
	}
	if !r.Kind.IsValid() {
		return Request{}, fmt.Errorf("invalid kind: %q", r.Kind)
	}
	if r.Limit <= 0 {
		r.Limit = DefaultLimit
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}
	if r.MinScore != nil && (*r.MinScore < 0 || *r.MinScore > 10) {
		return Request{}, fmt.Errorf("min_score must be between 0 and 10")
	}
	r.Genre = strings.TrimSpace(r.Genre)
	r.MediaType = strings.TrimSpace(r.MediaType)
	return r, nil
}

// Similar is a nearest-neighbour query seeded by a stored title.
type Similar struct {
	Kind  title.Kind
	ID    int64
	Limit int
}

// Normalize validates s and fills defaults.
func (s Similar) Normalize() (Similar, error) {
	if s.Kind == "" {
		s.Kind = title.Anime
	}
	if !s.Kind.IsValid() {
		return Similar{}, fmt.Errorf("invalid kind: %q", s.Kind)
	}
	if s.ID <= 0 {
		return Similar{}, fmt.Errorf("id must be positive")
	}
	if s.Limit <= 0 {
		s.Limit = DefaultLimit
	}
	if s.Limit > MaxLimit {
		s.Limit = MaxLimit
	}
	return s, nil
}
