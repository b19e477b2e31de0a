package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/search/filter"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/usecase/fallback"
	"github.com/kailas-cloud/animedex/internal/usecase/index"
)

var errConnRefused = errors.New("dial tcp: connection refused")

// --- Mocks ---

type mockIndex struct {
	mu sync.Mutex

	readOnly bool
	textFn   func(kind title.Kind, text string, k int, f filter.Expression) ([]result.Result, error)
	idFn     func(kind title.Kind, id int64, k int) ([]result.Result, error)
	getFn    func(kind title.Kind, id int64) (result.Result, error)
	sizes    map[title.Kind]int
	countErr error

	textCalls   int
	lastFilter  filter.Expression
	lastTextK   int
	lastIDLimit int
}

func (m *mockIndex) ReadOnly() bool { return m.readOnly }

func (m *mockIndex) QueryByText(
	_ context.Context, kind title.Kind, text string, k int, f filter.Expression,
) ([]result.Result, error) {
	m.mu.Lock()
	m.textCalls++
	m.lastFilter = f
	m.lastTextK = k
	m.mu.Unlock()
	if m.textFn != nil {
		return m.textFn(kind, text, k, f)
	}
	return nil, nil
}

func (m *mockIndex) QueryByID(_ context.Context, kind title.Kind, id int64, k int) ([]result.Result, error) {
	m.mu.Lock()
	m.lastIDLimit = k
	m.mu.Unlock()
	if m.idFn != nil {
		return m.idFn(kind, id, k)
	}
	return nil, nil
}

func (m *mockIndex) GetByID(_ context.Context, kind title.Kind, id int64) (result.Result, error) {
	if m.getFn != nil {
		return m.getFn(kind, id)
	}
	return result.Result{}, domain.ErrNotFound
}

func (m *mockIndex) Count(_ context.Context, kind title.Kind) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.sizes[kind], nil
}

// opener counts open attempts and fails while err is set.
type opener struct {
	mu    sync.Mutex
	idx   Index
	err   error
	calls int
}

func (o *opener) open(context.Context) (Index, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	return o.idx, nil
}

func (o *opener) setErr(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

func (o *opener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type staticCatalog []title.Title

func (c staticCatalog) ByKind(kind title.Kind) []title.Title {
	var out []title.Title
	for _, t := range c {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// --- Helpers ---

func f64(v float64) *float64 { return &v }

func testCatalog() staticCatalog {
	return staticCatalog{
		{ID: 1, Name: "Mobile Suit Gundam", Kind: title.Anime, Genres: []string{"Mecha", "Sci-Fi"},
			Synopsis: "War in space.", Score: f64(7.8), MediaType: "TV"},
		{ID: 2, Name: "Neon Genesis Evangelion", Kind: title.Anime, Genres: []string{"Mecha", "Drama"},
			Synopsis: "Teens pilot mecha units.", Score: f64(8.3), MediaType: "TV"},
		{ID: 3, Name: "Code Geass", Kind: title.Anime, Genres: []string{"Mecha"},
			Synopsis: "A prince rebels.", Score: f64(8.7), MediaType: "TV"},
		{ID: 4, Name: "Clannad", Kind: title.Anime, Genres: []string{"Drama"},
			Synopsis: "School life.", Score: f64(8.0), MediaType: "TV"},
	}
}

func hit(id int64, name string, sim float64) result.Result {
	return result.Result{TitleID: id, Metadata: title.Metadata{Title: name}, Similarity: sim}
}

func newTestService(t *testing.T, o *opener, cfg Config) *Service {
	t.Helper()
	return New(index.NewHandle(o.open), fallback.New(testCatalog()), cfg, Metrics{}, zap.NewNop())
}
