// Package title holds the catalog entry model, its strict index metadata and
// the deterministic text projection used for embeddings.
package title

import "strings"

// Title is a catalog entry. Immutable once loaded.
type Title struct {
	ID          int64
	Name        string
	EnglishName string
	Synopsis    string
	Score       *float64 // 0..10, nil when unrated
	Genres      []string
	Popularity  *int // popularity rank, 1 is the most popular
	Kind        Kind
	MediaType   string // subtype: TV, Movie, Manhwa, ...
	Status      string
	ImageURL    string
}

// GenreString joins genres the way they are stored in the index.
func (t *Title) GenreString() string {
	return strings.Join(t.Genres, ", ")
}

// ScoreOrZero returns the score, or 0 when unrated.
func (t *Title) ScoreOrZero() float64 {
	if t.Score == nil {
		return 0
	}
	return *t.Score
}

// Metadata builds the strict index metadata for this title.
func (t *Title) Metadata() Metadata {
	return Metadata{
		Title:      t.Name,
		Score:      t.Score,
		Genres:     append([]string(nil), t.Genres...),
		MediaType:  t.MediaType,
		Status:     t.Status,
		ImageURL:   t.ImageURL,
		Popularity: t.Popularity,
	}
}
