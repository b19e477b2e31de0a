package recommend

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/search/mode"
	"github.com/kailas-cloud/animedex/internal/domain/search/request"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/usecase/ranking"
	"github.com/kailas-cloud/animedex/internal/usecase/search"
)

// --- Mocks ---

type mockSimilar struct {
	neighbours map[int64][]result.Result
	note       string
	err        error
	seeded     []int64
	limits     []int
}

func (m *mockSimilar) FindSimilar(_ context.Context, req request.Similar) (search.Response, error) {
	m.seeded = append(m.seeded, req.ID)
	m.limits = append(m.limits, req.Limit)
	if m.err != nil {
		return search.Response{}, m.err
	}
	if m.note != "" {
		return search.Response{Results: []result.Result{}, Mode: mode.Degraded, Note: m.note}, nil
	}
	return search.Response{Results: m.neighbours[req.ID], Mode: mode.Primary}, nil
}

func (m *mockSimilar) Rerank(results []result.Result, limit int) []result.Ranked {
	return ranking.Rerank(results, limit)
}

type mockLists struct {
	entries []list.Entry
}

func (m *mockLists) ListByUser(context.Context, string, title.Kind) ([]list.Entry, error) {
	return m.entries, nil
}

// --- Helpers ---

func f64(v float64) *float64 { return &v }

func entry(id int64, name string, rating *float64, status list.Status, fav bool) list.Entry {
	return list.Entry{
		Key:        list.Key{UserID: "u1", TitleID: id, Kind: title.Anime},
		Status:     status,
		Rating:     rating,
		IsFavorite: fav,
		TitleName:  name,
	}
}

func hit(id int64, sim float64) result.Result {
	return result.Result{TitleID: id, Similarity: sim, Metadata: title.Metadata{Title: "T"}}
}

// --- Tests ---

func TestForUser_SeedsExcludeAndDedupe(t *testing.T) {
	lists := &mockLists{entries: []list.Entry{
		entry(1, "Bebop", f64(9), list.Completed, false),
		entry(2, "Trigun", f64(5), list.Completed, true),
		entry(3, "Naruto", f64(6), list.Watching, false),
	}}
	sim := &mockSimilar{neighbours: map[int64][]result.Result{
		1: {hit(3, 0.99), hit(10, 0.9), hit(11, 0.8)},
		2: {hit(10, 0.95), hit(12, 0.7)},
	}}
	svc := New(sim, lists, zap.NewNop())

	got, err := svc.ForUser(context.Background(), "u1", title.Anime, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.BasedOn) != 2 || got.BasedOn[0].TitleID != 1 || got.BasedOn[1].TitleID != 2 {
		t.Errorf("based on = %+v", got.BasedOn)
	}
	for _, l := range sim.limits {
		if l != neighboursPerSeed {
			t.Errorf("neighbour limit = %d, want %d", l, neighboursPerSeed)
		}
	}

	ids := make(map[int64]string)
	for _, it := range got.Items {
		ids[it.TitleID] = it.Reason
	}
	if len(got.Items) != 3 {
		t.Fatalf("items = %+v, want 3 unique unlisted", got.Items)
	}
	if _, ok := ids[3]; ok {
		t.Error("listed title 3 was recommended")
	}
	if ids[10] != "Because you liked Bebop" {
		t.Errorf("reason for 10 = %q, want first seed", ids[10])
	}
	if ids[12] != "Because you liked Trigun" {
		t.Errorf("reason for 12 = %q", ids[12])
	}
	for i := 1; i < len(got.Items); i++ {
		if got.Items[i].CombinedScore > got.Items[i-1].CombinedScore {
			t.Error("items not reranked")
		}
	}
}

func TestForUser_CompletedFallbackSeeds(t *testing.T) {
	lists := &mockLists{entries: []list.Entry{
		entry(1, "A", f64(4), list.Completed, false),
		entry(2, "B", nil, list.Watching, false),
		entry(3, "C", nil, list.Completed, false),
		entry(4, "D", nil, list.Completed, false),
		entry(5, "E", nil, list.Completed, false),
	}}
	sim := &mockSimilar{}
	svc := New(sim, lists, zap.NewNop())

	got, err := svc.ForUser(context.Background(), "u1", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int64{1, 3, 4}
	if len(sim.seeded) != len(want) {
		t.Fatalf("seeded = %v, want %v", sim.seeded, want)
	}
	for i := range want {
		if sim.seeded[i] != want[i] {
			t.Errorf("seed %d = %d, want %d", i, sim.seeded[i], want[i])
		}
	}
	if len(got.Items) != 0 {
		t.Errorf("items = %+v", got.Items)
	}
}

func TestForUser_UnratedFavouriteSeeds(t *testing.T) {
	lists := &mockLists{entries: []list.Entry{
		entry(1, "Planned", nil, list.Planned, false),
		entry(2, "Mushishi", nil, list.Watching, true),
		entry(3, "Done", nil, list.Completed, false),
	}}
	sim := &mockSimilar{neighbours: map[int64][]result.Result{2: {hit(20, 0.9)}}}
	svc := New(sim, lists, zap.NewNop())

	got, err := svc.ForUser(context.Background(), "u1", title.Anime, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sim.seeded) != 1 || sim.seeded[0] != 2 {
		t.Fatalf("seeded = %v, want only the favourite", sim.seeded)
	}
	if len(got.BasedOn) != 1 || !got.BasedOn[0].IsFavorite {
		t.Errorf("based on = %+v", got.BasedOn)
	}
	if len(got.Items) != 1 || got.Items[0].Reason != "Because you liked Mushishi" {
		t.Errorf("items = %+v", got.Items)
	}
}

func TestForUser_NoSeeds(t *testing.T) {
	lists := &mockLists{entries: []list.Entry{entry(1, "A", nil, list.Planned, false)}}
	svc := New(&mockSimilar{}, lists, zap.NewNop())

	_, err := svc.ForUser(context.Background(), "u1", title.Anime, 5)
	if !errors.Is(err, ErrNoSeeds) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrNoSeeds, got %v", err)
	}
}

func TestForUser_DegradedNote(t *testing.T) {
	lists := &mockLists{entries: []list.Entry{
		entry(1, "A", f64(9), list.Completed, false),
		entry(2, "B", f64(8), list.Completed, false),
	}}
	sim := &mockSimilar{note: "unavailable"}
	svc := New(sim, lists, zap.NewNop())

	got, err := svc.ForUser(context.Background(), "u1", title.Anime, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Note != "unavailable" || len(got.Items) != 0 {
		t.Errorf("got %+v", got)
	}
	if len(sim.seeded) != 1 {
		t.Errorf("expected to stop after the first degraded answer, seeded %v", sim.seeded)
	}
}

func TestForUser_Validation(t *testing.T) {
	svc := New(&mockSimilar{}, &mockLists{}, zap.NewNop())
	if _, err := svc.ForUser(context.Background(), "", title.Anime, 5); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty user: %v", err)
	}
	if _, err := svc.ForUser(context.Background(), "u1", "novel", 5); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad kind: %v", err)
	}
}

func TestForTitle_SkipsListedAndLimits(t *testing.T) {
	lists := &mockLists{entries: []list.Entry{entry(10, "X", nil, list.Completed, false)}}
	sim := &mockSimilar{neighbours: map[int64][]result.Result{
		1: {hit(10, 0.9), hit(11, 0.8), hit(12, 0.7), hit(13, 0.6)},
	}}
	svc := New(sim, lists, zap.NewNop())

	got, err := svc.ForTitle(context.Background(), "u1", title.Anime, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim.limits[0] != 2+quickExtraFetched {
		t.Errorf("fetched %d neighbours", sim.limits[0])
	}
	if len(got.Items) != 2 || got.Items[0].TitleID != 11 || got.Items[1].TitleID != 12 {
		t.Errorf("items = %+v", got.Items)
	}

	anon, err := svc.ForTitle(context.Background(), "", title.Anime, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if anon.Items[0].TitleID != 10 {
		t.Errorf("anonymous request must not filter, got %+v", anon.Items)
	}
}
