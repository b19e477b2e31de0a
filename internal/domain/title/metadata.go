package title

import (
	"fmt"
	"strconv"
	"strings"
)

// Index hash field names.
const (
	FieldTitle      = "title"
	FieldScore      = "score"
	FieldGenres     = "genres"
	FieldMediaType  = "media_type"
	FieldStatus     = "status"
	FieldImageURL   = "image_url"
	FieldPopularity = "popularity"
	FieldProjection = "projection"
)

// Metadata is the strict per-record payload stored next to each vector.
// Title is required; everything else is optional.
type Metadata struct {
	Title      string
	Score      *float64
	Genres     []string
	MediaType  string
	Status     string
	ImageURL   string
	Popularity *int
}

// GenreString joins genres with ", ".
func (m *Metadata) GenreString() string {
	return strings.Join(m.Genres, ", ")
}

// Validate checks required fields and ranges.
func (m *Metadata) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("metadata title is required")
	}
	if m.Score != nil && (*m.Score < 0 || *m.Score > 10) {
		return fmt.Errorf("metadata score %g out of range [0,10]", *m.Score)
	}
	return nil
}

// Fields flattens metadata into hash fields. Absent optionals are omitted so
// numeric range filters never see a fake zero.
func (m *Metadata) Fields() map[string]string {
	f := map[string]string{FieldTitle: m.Title}
	if m.Score != nil {
		f[FieldScore] = strconv.FormatFloat(*m.Score, 'f', -1, 64)
	}
	if len(m.Genres) > 0 {
		f[FieldGenres] = m.GenreString()
	}
	if m.MediaType != "" {
		f[FieldMediaType] = m.MediaType
	}
	if m.Status != "" {
		f[FieldStatus] = m.Status
	}
	if m.ImageURL != "" {
		f[FieldImageURL] = m.ImageURL
	}
	if m.Popularity != nil {
		f[FieldPopularity] = strconv.Itoa(*m.Popularity)
	}
	return f
}

// MetadataFromFields parses and validates hash fields read back from the index.
// Unknown fields are ignored.
func MetadataFromFields(f map[string]string) (Metadata, error) {
	m := Metadata{
		Title:     f[FieldTitle],
		MediaType: f[FieldMediaType],
		Status:    f[FieldStatus],
		ImageURL:  f[FieldImageURL],
	}

	if raw, ok := f[FieldScore]; ok && raw != "" {
		s, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Metadata{}, fmt.Errorf("metadata score %q: %w", raw, err)
		}
		m.Score = &s
	}

	if raw, ok := f[FieldPopularity]; ok && raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return Metadata{}, fmt.Errorf("metadata popularity %q: %w", raw, err)
		}
		m.Popularity = &p
	}

	if raw := f[FieldGenres]; raw != "" {
		for _, g := range strings.Split(raw, ",") {
			if g = strings.TrimSpace(g); g != "" {
				m.Genres = append(m.Genres, g)
			}
		}
	}

	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}
