// Package fallback serves keyword search straight from the in-memory catalog
// when the vector index cannot answer.
package fallback

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Match weights per query token.
const (
	nameWeight     = 10
	genreWeight    = 5
	synopsisWeight = 1

	// similarityScale maps match scores onto the similarity field.
	similarityScale = 100.0
)

// Catalog reads titles by kind.
type Catalog interface {
	ByKind(kind title.Kind) []title.Title
}

// Filters narrow fallback results. Zero values disable a filter.
type Filters struct {
	Genre     string
	MinScore  *float64
	MediaType string
}

// Service runs token-overlap search over the catalog.
type Service struct {
	catalog Catalog
}

// New creates a fallback search service.
func New(c Catalog) *Service {
	return &Service{catalog: c}
}

type scored struct {
	t     *title.Title
	match int
}

// Search returns up to k titles of kind ordered by match score, then catalog score.
// Similarity is matchScore/100 and is not bounded to 1.
func (s *Service) Search(kind title.Kind, query string, k int, f Filters) []result.Result {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 || k <= 0 {
		return nil
	}

	titles := s.catalog.ByKind(kind)
	var hits []scored
	for i := range titles {
		t := &titles[i]
		m := matchScore(t, tokens)
		if m == 0 || !f.accepts(t) {
			continue
		}
		hits = append(hits, scored{t: t, match: m})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].match != hits[j].match {
			return hits[i].match > hits[j].match
		}
		return hits[i].t.ScoreOrZero() > hits[j].t.ScoreOrZero()
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]result.Result, len(hits))
	for i, h := range hits {
		out[i] = result.Result{
			TitleID:    h.t.ID,
			Metadata:   h.t.Metadata(),
			Document:   h.t.Synopsis,
			Similarity: float64(h.match) / similarityScale,
		}
	}
	return out
}

func matchScore(t *title.Title, tokens []string) int {
	name := strings.ToLower(t.Name)
	genres := strings.ToLower(t.GenreString())
	synopsis := strings.ToLower(t.Synopsis)

	score := 0
	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			score += nameWeight
		}
		if strings.Contains(genres, tok) {
			score += genreWeight
		}
		if strings.Contains(synopsis, tok) {
			score += synopsisWeight
		}
	}
	return score
}

// accepts applies the filters. Unrated titles never pass a min score.
func (f Filters) accepts(t *title.Title) bool {
	if f.Genre != "" && !strings.Contains(strings.ToLower(t.GenreString()), strings.ToLower(f.Genre)) {
		return false
	}
	if f.MinScore != nil && (t.Score == nil || *t.Score < *f.MinScore) {
		return false
	}
	if f.MediaType != "" && !strings.EqualFold(t.MediaType, f.MediaType) {
		return false
	}
	return true
}

// Lookup returns the catalog title of kind with id, with similarity 1.
func (s *Service) Lookup(kind title.Kind, id int64) (result.Result, bool) {
	titles := s.catalog.ByKind(kind)
	for i := range titles {
		if titles[i].ID == id {
			return result.Result{
				TitleID:    id,
				Metadata:   titles[i].Metadata(),
				Document:   titles[i].Synopsis,
				Similarity: 1,
			}, true
		}
	}
	return result.Result{}, false
}
