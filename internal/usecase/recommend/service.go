// Package recommend suggests titles similar to what a user rated highly.
package recommend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/search/request"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// ErrNoSeeds is returned when the user has nothing rated, favourited or completed.
var ErrNoSeeds = fmt.Errorf("%w: add some titles to your list and rate them to get personalized recommendations",
	domain.ErrValidation)

const (
	seedMinRating      = 8.0
	maxSeeds           = 5
	maxCompletedSeeds  = 3
	neighboursPerSeed  = 10
	quickExtraFetched  = 10
	defaultQuickLimit  = 5
	defaultSeededLimit = 10
)

// Seed is a list entry recommendations were derived from.
type Seed struct {
	TitleID    int64
	Title      string
	Rating     *float64
	IsFavorite bool
}

// Item is one recommended title.
type Item struct {
	result.Ranked
	Reason string
}

// Recommendations is the answer for one user.
type Recommendations struct {
	BasedOn []Seed
	Items   []Item
	// Note is set when similarity search is unavailable.
	Note string
}

// Service builds recommendations.
type Service struct {
	similar Similar
	lists   Lists
	logger  *zap.Logger
}

// New creates a recommendation service.
func New(similar Similar, lists Lists, logger *zap.Logger) *Service {
	return &Service{similar: similar, lists: lists, logger: logger}
}

// ForUser finds neighbours of the user's best rated or favourite titles,
// skipping anything already listed, and reranks them.
func (s *Service) ForUser(ctx context.Context, userID string, kind title.Kind, limit int) (Recommendations, error) {
	if userID == "" {
		return Recommendations{}, fmt.Errorf("user is required: %w", domain.ErrValidation)
	}
	if kind == "" {
		kind = title.Anime
	}
	if !kind.IsValid() {
		return Recommendations{}, fmt.Errorf("invalid kind %q: %w", kind, domain.ErrValidation)
	}
	limit = clampLimit(limit, defaultSeededLimit)

	entries, err := s.lists.ListByUser(ctx, userID, kind)
	if err != nil {
		return Recommendations{}, fmt.Errorf("list user entries: %w", err)
	}
	seeds := pickSeeds(entries)
	if len(seeds) == 0 {
		return Recommendations{}, ErrNoSeeds
	}
	listed := listedIDs(entries)

	out := Recommendations{BasedOn: make([]Seed, 0, len(seeds))}
	reasons := make(map[int64]string)
	var candidates []result.Result
	for _, e := range seeds {
		name := e.TitleName
		if name == "" {
			name = "similar titles"
		}
		out.BasedOn = append(out.BasedOn, Seed{
			TitleID: e.TitleID, Title: e.TitleName, Rating: e.Rating, IsFavorite: e.IsFavorite,
		})

		resp, err := s.similar.FindSimilar(ctx, request.Similar{Kind: kind, ID: e.TitleID, Limit: neighboursPerSeed})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Recommendations{}, fmt.Errorf("find similar: %w", err)
			}
			s.logger.Warn("Skipping recommendation seed",
				zap.String("user_id", userID), zap.Int64("title_id", e.TitleID), zap.Error(err))
			continue
		}
		if resp.Note != "" {
			out.Note = resp.Note
			break
		}
		for _, r := range resp.Results {
			if _, ok := listed[r.TitleID]; ok {
				continue
			}
			if _, seen := reasons[r.TitleID]; seen {
				continue
			}
			reasons[r.TitleID] = "Because you liked " + name
			candidates = append(candidates, r)
		}
	}

	ranked := s.similar.Rerank(candidates, limit)
	out.Items = make([]Item, len(ranked))
	for i, r := range ranked {
		out.Items[i] = Item{Ranked: r, Reason: reasons[r.TitleID]}
	}
	return out, nil
}

// ForTitle returns neighbours of one title. When userID is set, titles on the
// user's list are skipped.
func (s *Service) ForTitle(ctx context.Context, userID string, kind title.Kind, id int64, limit int) (Recommendations, error) {
	if kind == "" {
		kind = title.Anime
	}
	limit = clampLimit(limit, defaultQuickLimit)

	resp, err := s.similar.FindSimilar(ctx, request.Similar{Kind: kind, ID: id, Limit: limit + quickExtraFetched})
	if err != nil {
		return Recommendations{}, fmt.Errorf("find similar: %w", err)
	}

	var listed map[int64]struct{}
	if userID != "" {
		entries, err := s.lists.ListByUser(ctx, userID, kind)
		if err != nil {
			return Recommendations{}, fmt.Errorf("list user entries: %w", err)
		}
		listed = listedIDs(entries)
	}

	out := Recommendations{Items: []Item{}, Note: resp.Note}
	for _, r := range resp.Results {
		if len(out.Items) == limit {
			break
		}
		if _, ok := listed[r.TitleID]; ok {
			continue
		}
		out.Items = append(out.Items, Item{Ranked: result.Ranked{Result: r}})
	}
	return out, nil
}

// pickSeeds prefers entries rated at least 8 or favourited, best first; when
// there are none it falls back to the first completed entries.
func pickSeeds(entries []list.Entry) []list.Entry {
	var seeds []list.Entry
	for _, e := range entries {
		if e.IsFavorite || (e.Rating != nil && *e.Rating >= seedMinRating) {
			seeds = append(seeds, e)
			if len(seeds) == maxSeeds {
				return seeds
			}
		}
	}
	if len(seeds) > 0 {
		return seeds
	}
	for _, e := range entries {
		if e.Status == list.Completed {
			seeds = append(seeds, e)
			if len(seeds) == maxCompletedSeeds {
				break
			}
		}
	}
	return seeds
}

func listedIDs(entries []list.Entry) map[int64]struct{} {
	ids := make(map[int64]struct{}, len(entries))
	for i := range entries {
		ids[entries[i].TitleID] = struct{}{}
	}
	return ids
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, request.MaxLimit)
}
