// Package ranking blends similarity with catalog quality signals and derives
// genre filters from free text.
package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/kailas-cloud/animedex/internal/domain/search/filter"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// DefaultRerankLimit is the result count callers rerank to when they have no limit of their own.
const DefaultRerankLimit = 15

// Weights of the combined score. They should sum to 1.
type Weights struct {
	Similarity float64
	Score      float64
	Popularity float64
}

// DefaultWeights favour semantic similarity.
var DefaultWeights = Weights{Similarity: 0.6, Score: 0.3, Popularity: 0.1}

// NormalizedPopularity maps a popularity rank (1 is most popular) to [0.1, 1].
// Ranks up to 1000 fall linearly from 1 to 0.5, later ranks decay to a 0.1 floor.
// Unknown ranks are neutral 0.5.
func NormalizedPopularity(p *int) float64 {
	if p == nil || *p <= 0 {
		return 0.5
	}
	rank := float64(*p)
	if rank <= 1000 {
		return 1 - rank/2000
	}
	return math.Max(0.1, 0.5-(rank-1000)/20000)
}

// CombinedScore blends similarity, catalog score and popularity, rounded to 4 decimals.
// Inputs are clamped so the result stays in [0,1].
func CombinedScore(sim float64, score *float64, pop *int, w Weights) float64 {
	normScore := 0.0
	if score != nil {
		normScore = clamp01(*score / 10)
	}
	combined := w.Similarity*clamp01(sim) +
		w.Score*normScore +
		w.Popularity*NormalizedPopularity(pop)
	return math.Round(clamp01(combined)*10000) / 10000
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Rerank orders results by combined score descending with DefaultWeights and
// keeps at most limit. Ties keep their input order. A non-positive limit
// yields an empty slice.
func Rerank(results []result.Result, limit int) []result.Ranked {
	return RerankWith(results, limit, DefaultWeights)
}

// RerankWith is Rerank with explicit weights.
func RerankWith(results []result.Result, limit int, w Weights) []result.Ranked {
	if limit <= 0 {
		return []result.Ranked{}
	}
	ranked := make([]result.Ranked, len(results))
	for i := range results {
		r := results[i]
		ranked[i] = result.Ranked{
			Result:        r,
			CombinedScore: CombinedScore(r.Similarity, r.Metadata.Score, r.Metadata.Popularity, w),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CombinedScore > ranked[j].CombinedScore
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// BuildGenreFilter returns an index pre-filter matching any of genres.
// One genre is a must condition, several form a should group. Blank genres are skipped.
func BuildGenreFilter(genres []string) filter.Expression {
	conds := make([]filter.Condition, 0, len(genres))
	for _, g := range genres {
		c, err := filter.NewContains(title.FieldGenres, g)
		if err != nil {
			continue
		}
		conds = append(conds, c)
		if len(conds) == filter.MaxConditionsPerGroup {
			break
		}
	}

	var expr filter.Expression
	switch len(conds) {
	case 0:
	case 1:
		expr, _ = filter.NewExpression(conds, nil, nil)
	default:
		expr, _ = filter.NewExpression(nil, conds, nil)
	}
	return expr
}

type genreTriggers struct {
	name     string
	triggers []string
}

// genreTable is ordered; detection results follow this order.
var genreTable = []genreTriggers{
	{"Action", []string{"action", "fight", "battle", "combat", "war"}},
	{"Romance", []string{"romance", "love", "romantic", "relationship", "dating"}},
	{"Comedy", []string{"comedy", "funny", "humor", "hilarious", "laugh"}},
	{"Drama", []string{"drama", "emotional", "feels", "sad", "tear"}},
	{"Horror", []string{"horror", "scary", "terrifying", "creepy", "dark"}},
	{"Psychological", []string{"psychological", "mind", "mental", "thriller", "mindbending"}},
	{"Slice of Life", []string{"slice of life", "daily", "everyday", "relaxing", "wholesome"}},
	{"Fantasy", []string{"fantasy", "magic", "wizard", "isekai", "magical"}},
	{"Sci-Fi", []string{"sci-fi", "scifi", "science fiction", "future", "space", "mecha"}},
	{"Sports", []string{"sports", "basketball", "soccer", "volleyball", "baseball"}},
	{"Mystery", []string{"mystery", "detective", "investigation", "whodunit"}},
	{"Supernatural", []string{"supernatural", "ghost", "spirit", "demon", "paranormal"}},
}

// DetectGenres returns canonical genre names whose trigger words occur in query.
// Matching is substring based, so "warm" triggers Action.
func DetectGenres(query string) []string {
	lower := strings.ToLower(query)
	var out []string
	for _, g := range genreTable {
		for _, trig := range g.triggers {
			if strings.Contains(lower, trig) {
				out = append(out, g.name)
				break
			}
		}
	}
	return out
}

var stopWords = map[string]struct{}{
	"anime": {}, "like": {}, "similar": {}, "to": {}, "with": {}, "the": {},
	"a": {}, "an": {}, "and": {}, "or": {}, "that": {}, "has": {}, "have": {},
	"good": {}, "best": {}, "top": {}, "show": {}, "series": {}, "want": {},
	"looking": {}, "for": {}, "something": {}, "recommend": {}, "me": {},
	"please": {}, "i": {}, "my": {},
}

// ExtractKeywords lower-cases query, strips punctuation at word edges and
// drops stop words, words under 3 characters and duplicates.
func ExtractKeywords(query string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ",.!?;:\"'()")
		if len([]rune(w)) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
