package index

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/db"
	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/search/filter"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/repository/vector"
)

// --- Mocks ---

type mockStore struct {
	mu sync.Mutex

	ensureFn func(kind title.Kind, dim int) (db.IndexInfo, error)
	upsertFn func(call int, records []title.Record, vectors [][]float32) error
	getFn    func(kind title.Kind, id int64) (vector.Stored, bool, error)
	knnFn    func(ctx context.Context, vec []float32, k int) ([]result.Result, error)
	textFn   func(query string, k int) ([]result.Result, error)
	countFn  func(kind title.Kind) (int, error)

	upsertSizes []int
	knnK        []int
	textCalls   int
}

func (m *mockStore) EnsureIndex(_ context.Context, kind title.Kind, dim int) (db.IndexInfo, error) {
	if m.ensureFn != nil {
		return m.ensureFn(kind, dim)
	}
	return db.IndexInfo{Name: vector.IndexName(kind), VectorDim: dim, NumDocs: 10}, nil
}

func (m *mockStore) Upsert(_ context.Context, _ title.Kind, records []title.Record, vectors [][]float32) error {
	m.mu.Lock()
	call := len(m.upsertSizes)
	m.upsertSizes = append(m.upsertSizes, len(records))
	m.mu.Unlock()
	if m.upsertFn != nil {
		return m.upsertFn(call, records, vectors)
	}
	return nil
}

func (m *mockStore) Get(_ context.Context, kind title.Kind, id int64) (vector.Stored, bool, error) {
	if m.getFn != nil {
		return m.getFn(kind, id)
	}
	return vector.Stored{}, false, nil
}

func (m *mockStore) KNN(
	ctx context.Context, _ title.Kind, vec []float32, k int, _ filter.Expression,
) ([]result.Result, error) {
	m.mu.Lock()
	m.knnK = append(m.knnK, k)
	m.mu.Unlock()
	if m.knnFn != nil {
		return m.knnFn(ctx, vec, k)
	}
	return nil, nil
}

func (m *mockStore) Text(
	_ context.Context, _ title.Kind, query string, k int, _ filter.Expression,
) ([]result.Result, error) {
	m.mu.Lock()
	m.textCalls++
	m.mu.Unlock()
	if m.textFn != nil {
		return m.textFn(query, k)
	}
	return nil, nil
}

func (m *mockStore) Count(_ context.Context, kind title.Kind) (int, error) {
	if m.countFn != nil {
		return m.countFn(kind)
	}
	return 0, nil
}

type mockEmbedder struct {
	mu     sync.Mutex
	dim    int
	err    error
	calls  int
	inputs []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.inputs = append(m.inputs, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: make([]float32, m.dim), TotalTokens: 1}, nil
}

type healthEmbedder struct {
	mockEmbedder
	healthErr error
}

func (h *healthEmbedder) HealthCheck(_ context.Context) error { return h.healthErr }

// --- Helpers ---

const testDim = 4

func newTestAdapter(store *mockStore, emb *mockEmbedder, readOnly bool) *Adapter {
	return &Adapter{
		store:        store,
		docEmbed:     emb,
		queryEmbed:   emb,
		readOnly:     readOnly,
		queryTimeout: time.Second,
		logger:       zap.NewNop(),
	}
}

func records(n int) []title.Record {
	out := make([]title.Record, n)
	for i := range out {
		out[i] = title.Record{
			ID:       int64(i + 1),
			Text:     "text",
			Metadata: title.Metadata{Title: "Title"},
		}
	}
	return out
}

func hit(id int64, sim float64) result.Result {
	return result.Result{TitleID: id, Similarity: sim, Metadata: title.Metadata{Title: "t"}}
}
