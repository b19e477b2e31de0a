package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/search/filter"
	"github.com/kailas-cloud/animedex/internal/domain/search/mode"
	"github.com/kailas-cloud/animedex/internal/domain/search/request"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/usecase/fallback"
	"github.com/kailas-cloud/animedex/internal/usecase/index"
)

// --- Search ---

func TestSearch_Primary(t *testing.T) {
	idx := &mockIndex{textFn: func(title.Kind, string, int, filter.Expression) ([]result.Result, error) {
		return []result.Result{hit(10, "Bebop", 0.9)}, nil
	}}
	s := newTestService(t, &opener{idx: idx}, Config{})

	resp, err := s.Search(context.Background(), request.Request{Query: "space cowboys"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Path != mode.PathIndex || resp.Mode != mode.Primary {
		t.Errorf("path/mode = %s/%s, want index/primary", resp.Path, resp.Mode)
	}
	if len(resp.Results) != 1 || resp.Results[0].TitleID != 10 {
		t.Errorf("results = %+v", resp.Results)
	}
	if idx.lastTextK != request.DefaultLimit {
		t.Errorf("k = %d, want default %d", idx.lastTextK, request.DefaultLimit)
	}
	if !idx.lastFilter.IsEmpty() {
		t.Errorf("expected no filter, got %+v", idx.lastFilter.Must())
	}
}

func TestSearch_PushesFiltersDown(t *testing.T) {
	idx := &mockIndex{}
	s := newTestService(t, &opener{idx: idx}, Config{})

	_, err := s.Search(context.Background(), request.Request{
		Query: "robots", Genre: "Mecha", MediaType: "TV", MinScore: f64(8),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	must := idx.lastFilter.Must()
	if len(must) != 3 {
		t.Fatalf("got %d conditions, want 3", len(must))
	}
	want := map[string]filter.Op{
		title.FieldGenres:    filter.OpContains,
		title.FieldMediaType: filter.OpMatch,
		title.FieldScore:     filter.OpRange,
	}
	for _, c := range must {
		if want[c.Key()] != c.Op() {
			t.Errorf("condition %s has op %v", c.Key(), c.Op())
		}
	}
}

func TestSearch_MinScorePostFilter(t *testing.T) {
	idx := &mockIndex{textFn: func(title.Kind, string, int, filter.Expression) ([]result.Result, error) {
		low, high := hit(1, "Low", 0.9), hit(2, "High", 0.8)
		low.Metadata.Score, high.Metadata.Score = f64(6.5), f64(8.5)
		return []result.Result{low, hit(3, "Unrated", 0.7), high}, nil
	}}
	s := newTestService(t, &opener{idx: idx}, Config{})

	resp, err := s.Search(context.Background(), request.Request{Query: "x", MinScore: f64(8)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := result.IDs(resp.Results)
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("ids = %v, want [2]", ids)
	}
}

func TestSearch_ReadOnlyPath(t *testing.T) {
	idx := &mockIndex{readOnly: true}
	s := newTestService(t, &opener{idx: idx}, Config{})

	resp, err := s.Search(context.Background(), request.Request{Query: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Path != mode.PathReadOnly || resp.Mode != mode.Primary {
		t.Errorf("path/mode = %s/%s, want readonly/primary", resp.Path, resp.Mode)
	}
}

func TestSearch_Validation(t *testing.T) {
	s := newTestService(t, &opener{idx: &mockIndex{}}, Config{})

	_, err := s.Search(context.Background(), request.Request{Query: "   "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	_, err = s.Search(context.Background(), request.Request{Query: "x", Kind: "novel"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad kind, got %v", err)
	}
}

func TestSearch_FallbackAfterOpenFailure(t *testing.T) {
	o := &opener{err: errConnRefused}
	s := newTestService(t, o, Config{Policy: ReattemptSticky})

	resp, err := s.Search(context.Background(), request.Request{Query: "mecha"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Path != mode.PathFallback || resp.Mode != mode.Degraded {
		t.Errorf("path/mode = %s/%s, want fallback/degraded", resp.Path, resp.Mode)
	}
	ids := result.IDs(resp.Results)
	want := []int64{2, 3, 1}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("pos %d: id %d, want %d", i, ids[i], want[i])
		}
	}
	if s.Mode() != mode.Degraded {
		t.Errorf("Mode() = %s, want degraded", s.Mode())
	}
}

func TestSearch_FallbackAppliesFilters(t *testing.T) {
	s := newTestService(t, &opener{err: errConnRefused}, Config{})

	resp, err := s.Search(context.Background(), request.Request{Query: "mecha", MinScore: f64(8.5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := result.IDs(resp.Results)
	if len(ids) != 1 || ids[0] != 3 {
		t.Errorf("ids = %v, want [3]", ids)
	}
}

func TestSearch_QueryFailureDegrades(t *testing.T) {
	idx := &mockIndex{textFn: func(title.Kind, string, int, filter.Expression) ([]result.Result, error) {
		return nil, errConnRefused
	}}
	s := newTestService(t, &opener{idx: idx}, Config{})

	resp, err := s.Search(context.Background(), request.Request{Query: "mecha"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Path != mode.PathFallback || len(resp.Results) == 0 {
		t.Errorf("expected fallback results, got path %s with %d results", resp.Path, len(resp.Results))
	}
	if s.Mode() != mode.Degraded {
		t.Errorf("Mode() = %s, want degraded", s.Mode())
	}
}

func TestSearch_StickyNeverReopens(t *testing.T) {
	o := &opener{err: errConnRefused}
	s := newTestService(t, o, Config{Policy: ReattemptSticky})

	if _, err := s.Search(context.Background(), request.Request{Query: "mecha"}); err != nil {
		t.Fatal(err)
	}
	o.setErr(nil)
	o.idx = &mockIndex{}

	for range 5 {
		resp, err := s.Search(context.Background(), request.Request{Query: "mecha"})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Path != mode.PathFallback {
			t.Fatalf("path = %s, want fallback", resp.Path)
		}
	}
	if o.count() != 1 {
		t.Errorf("open called %d times, want 1", o.count())
	}
}

func TestSearch_PeriodicReattempt(t *testing.T) {
	o := &opener{err: errConnRefused}
	s := newTestService(t, o, Config{Policy: ReattemptPeriodic, ReattemptInterval: 20 * time.Millisecond})

	if _, err := s.Search(context.Background(), request.Request{Query: "mecha"}); err != nil {
		t.Fatal(err)
	}
	if s.Mode() != mode.Degraded {
		t.Fatalf("Mode() = %s, want degraded", s.Mode())
	}

	o.setErr(nil)
	o.idx = &mockIndex{}
	time.Sleep(40 * time.Millisecond)

	resp, err := s.Search(context.Background(), request.Request{Query: "mecha"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Path != mode.PathIndex {
		t.Errorf("path = %s, want index after re-attempt", resp.Path)
	}
	if s.Mode() != mode.Primary {
		t.Errorf("Mode() = %s, want primary", s.Mode())
	}
	if o.count() != 2 {
		t.Errorf("open called %d times, want 2", o.count())
	}
}

func TestSearch_FailureThreshold(t *testing.T) {
	idx := &mockIndex{textFn: func(title.Kind, string, int, filter.Expression) ([]result.Result, error) {
		return nil, errConnRefused
	}}
	s := newTestService(t, &opener{idx: idx}, Config{FailureThreshold: 3})

	for i := range 2 {
		if _, err := s.Search(context.Background(), request.Request{Query: "x"}); err != nil {
			t.Fatal(err)
		}
		if s.Mode() != mode.Primary {
			t.Fatalf("degraded after %d failures", i+1)
		}
	}
	if _, err := s.Search(context.Background(), request.Request{Query: "x"}); err != nil {
		t.Fatal(err)
	}
	if s.Mode() != mode.Degraded {
		t.Error("expected degraded after threshold")
	}
}

func TestSearch_CallerCancelDoesNotDegrade(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	idx := &mockIndex{textFn: func(title.Kind, string, int, filter.Expression) ([]result.Result, error) {
		cancel()
		return nil, context.Canceled
	}}
	s := newTestService(t, &opener{idx: idx}, Config{})

	_, err := s.Search(ctx, request.Request{Query: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.Mode() != mode.Primary {
		t.Errorf("Mode() = %s, want primary", s.Mode())
	}
}

func TestSearch_Metrics(t *testing.T) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_search_requests_total"}, []string{"kind", "path"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_search_mode"})
	s := New(index.NewHandle((&opener{err: errConnRefused}).open), fallback.New(testCatalog()),
		Config{}, Metrics{Requests: requests, Mode: gauge}, zap.NewNop())

	if v := testutil.ToFloat64(gauge); v != 1 {
		t.Errorf("mode gauge = %v, want 1 before any failure", v)
	}
	if _, err := s.Search(context.Background(), request.Request{Query: "mecha"}); err != nil {
		t.Fatal(err)
	}
	if v := testutil.ToFloat64(requests.WithLabelValues("anime", "fallback")); v != 1 {
		t.Errorf("fallback count = %v, want 1", v)
	}
	if v := testutil.ToFloat64(gauge); v != 0 {
		t.Errorf("mode gauge = %v, want 0 when degraded", v)
	}
}

// --- FindSimilar ---

func TestFindSimilar_Primary(t *testing.T) {
	idx := &mockIndex{idFn: func(_ title.Kind, id int64, k int) ([]result.Result, error) {
		return []result.Result{hit(2, "Trigun", 0.8)}, nil
	}}
	s := newTestService(t, &opener{idx: idx}, Config{})

	resp, err := s.FindSimilar(context.Background(), request.Similar{ID: 1, Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Note != "" || len(resp.Results) != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if idx.lastIDLimit != 5 {
		t.Errorf("limit = %d, want 5", idx.lastIDLimit)
	}
}

func TestFindSimilar_UnknownIDIsEmptyWithoutNote(t *testing.T) {
	s := newTestService(t, &opener{idx: &mockIndex{}}, Config{})

	resp, err := s.FindSimilar(context.Background(), request.Similar{ID: 999})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("results = %#v, want empty non-nil", resp.Results)
	}
	if resp.Note != "" {
		t.Errorf("note = %q, want none", resp.Note)
	}
}

func TestFindSimilar_Degraded(t *testing.T) {
	s := newTestService(t, &opener{err: errConnRefused}, Config{})

	for range 2 {
		resp, err := s.FindSimilar(context.Background(), request.Similar{ID: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Results) != 0 || resp.Note != NoteSimilarUnavailable {
			t.Errorf("resp = %+v", resp)
		}
		if resp.Mode != mode.Degraded {
			t.Errorf("mode = %s, want degraded", resp.Mode)
		}
	}
}

func TestFindSimilar_Validation(t *testing.T) {
	s := newTestService(t, &opener{idx: &mockIndex{}}, Config{})
	if _, err := s.FindSimilar(context.Background(), request.Similar{ID: 0}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// --- ResolveTitle ---

func TestResolveTitle(t *testing.T) {
	candidates := []result.Result{hit(5, "Trigun", 0.7), hit(1, "Cowboy Bebop", 0.6), hit(9, "Space Dandy", 0.5)}

	tests := []struct {
		name   string
		ref    string
		wantID int64
	}{
		{"name contains ref", "bebop", 1},
		{"ref contains name", "the cowboy bebop series", 1},
		{"case insensitive", "TRIGUN", 5},
		{"no substring match takes top", "spike spiegel", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &mockIndex{textFn: func(_ title.Kind, _ string, k int, _ filter.Expression) ([]result.Result, error) {
				if k != resolveCandidates {
					t.Errorf("k = %d, want %d", k, resolveCandidates)
				}
				return candidates, nil
			}}
			s := newTestService(t, &opener{idx: idx}, Config{})

			got, err := s.ResolveTitle(context.Background(), title.Anime, tt.ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.TitleID != tt.wantID {
				t.Errorf("resolved id %d, want %d", got.TitleID, tt.wantID)
			}
		})
	}
}

func TestResolveTitle_NotFound(t *testing.T) {
	s := newTestService(t, &opener{idx: &mockIndex{}}, Config{})
	_, err := s.ResolveTitle(context.Background(), title.Anime, "nothing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveTitle_IndexUnavailable(t *testing.T) {
	s := newTestService(t, &opener{err: errConnRefused}, Config{})

	for range 2 {
		_, err := s.ResolveTitle(context.Background(), title.Manga, "Berserk")
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			t.Fatalf("expected ErrIndexUnavailable, got %v", err)
		}
	}
}

// --- Title ---

func TestTitle_FromIndex(t *testing.T) {
	idx := &mockIndex{getFn: func(kind title.Kind, id int64) (result.Result, error) {
		return hit(id, "Berserk", 1), nil
	}}
	s := newTestService(t, &opener{idx: idx}, Config{})

	resp, err := s.Title(context.Background(), title.Manga, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Path != mode.PathIndex || len(resp.Results) != 1 || resp.Results[0].Metadata.Title != "Berserk" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestTitle_MissingFromIndexReadsCatalog(t *testing.T) {
	s := newTestService(t, &opener{idx: &mockIndex{}}, Config{})

	resp, err := s.Title(context.Background(), title.Anime, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Path != mode.PathFallback || resp.Results[0].Metadata.Title != "Clannad" {
		t.Errorf("resp = %+v", resp)
	}
	if s.Mode() != mode.Primary {
		t.Errorf("a missing record must not degrade search, mode = %s", s.Mode())
	}
}

func TestTitle_DegradedReadsCatalog(t *testing.T) {
	s := newTestService(t, &opener{err: errConnRefused}, Config{})

	resp, err := s.Title(context.Background(), title.Anime, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Path != mode.PathFallback || resp.Mode != mode.Degraded {
		t.Errorf("path/mode = %s/%s, want fallback/degraded", resp.Path, resp.Mode)
	}
	if resp.Results[0].TitleID != 3 || resp.Results[0].Document != "A prince rebels." {
		t.Errorf("result = %+v", resp.Results[0])
	}
}

func TestTitle_NotFoundAnywhere(t *testing.T) {
	s := newTestService(t, &opener{idx: &mockIndex{}}, Config{})
	if _, err := s.Title(context.Background(), title.Anime, 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTitle_Validation(t *testing.T) {
	s := newTestService(t, &opener{idx: &mockIndex{}}, Config{})
	tests := []struct {
		name string
		kind title.Kind
		id   int64
	}{
		{"unknown kind", "novel", 1},
		{"zero id", title.Anime, 0},
		{"negative id", title.Anime, -4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Title(context.Background(), tt.kind, tt.id); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

// --- IndexSizes ---

func TestIndexSizes(t *testing.T) {
	idx := &mockIndex{sizes: map[title.Kind]int{title.Anime: 120, title.Manga: 40}}
	s := newTestService(t, &opener{idx: idx}, Config{})

	sizes, err := s.IndexSizes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sizes[title.Anime] != 120 || sizes[title.Manga] != 40 {
		t.Errorf("sizes = %v", sizes)
	}
}

func TestIndexSizes_CountFailure(t *testing.T) {
	s := newTestService(t, &opener{idx: &mockIndex{countErr: errConnRefused}}, Config{})
	if _, err := s.IndexSizes(context.Background()); !errors.Is(err, errConnRefused) {
		t.Fatalf("expected count error, got %v", err)
	}
}

func TestIndexSizes_DegradedSkipsIndex(t *testing.T) {
	o := &opener{err: errConnRefused}
	s := newTestService(t, o, Config{Policy: ReattemptSticky})
	if _, err := s.Search(context.Background(), request.Request{Query: "mecha"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opens := o.count()

	if _, err := s.IndexSizes(context.Background()); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	if o.count() != opens {
		t.Errorf("open attempts = %d, want %d", o.count(), opens)
	}
}

func TestRerank_Delegates(t *testing.T) {
	s := newTestService(t, &opener{idx: &mockIndex{}}, Config{})
	ranked := s.Rerank([]result.Result{hit(1, "A", 0.2), hit(2, "B", 0.9)}, 1)
	if len(ranked) != 1 || ranked[0].TitleID != 2 {
		t.Errorf("ranked = %+v", ranked)
	}
}
