package chat

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	domchat "github.com/kailas-cloud/animedex/internal/domain/chat"
	domintent "github.com/kailas-cloud/animedex/internal/domain/intent"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/search/mode"
	"github.com/kailas-cloud/animedex/internal/domain/search/request"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/usecase/ranking"
	"github.com/kailas-cloud/animedex/internal/usecase/search"
)

// --- Mocks ---

type mockActions struct {
	results []domintent.Result
	err     error
	calls   int
}

func (m *mockActions) DetectAndExecute(context.Context, string, string) ([]domintent.Result, error) {
	m.calls++
	return m.results, m.err
}

type mockSearcher struct {
	results []result.Result
	err     error
	lastReq request.Request
}

func (m *mockSearcher) Search(_ context.Context, req request.Request) (search.Response, error) {
	m.lastReq = req
	if m.err != nil {
		return search.Response{}, m.err
	}
	return search.Response{Results: m.results, Mode: mode.Primary, Path: mode.PathIndex}, nil
}

func (m *mockSearcher) Rerank(results []result.Result, limit int) []result.Ranked {
	return ranking.Rerank(results, limit)
}

type mockLists struct {
	entries []list.Entry
	err     error
}

func (m *mockLists) ListByUser(context.Context, string, title.Kind) ([]list.Entry, error) {
	return m.entries, m.err
}

type mockGenerator struct {
	reply    string
	err      error
	messages []domchat.Message
}

func (m *mockGenerator) Generate(_ context.Context, messages []domchat.Message) (string, error) {
	m.messages = messages
	return m.reply, m.err
}

// --- Helpers ---

type fixture struct {
	actions   *mockActions
	searcher  *mockSearcher
	lists     *mockLists
	generator *mockGenerator
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		actions:   &mockActions{},
		searcher:  &mockSearcher{results: rankedResults(20)},
		lists:     &mockLists{},
		generator: &mockGenerator{reply: "Try Cowboy Bebop."},
	}
	f.svc = New(f.actions, f.searcher, f.lists, f.generator, zap.NewNop())
	return f
}

func f64(v float64) *float64 { return &v }

// rankedResults returns n results whose similarity strictly decreases with id,
// so reranking keeps id order.
func rankedResults(n int) []result.Result {
	out := make([]result.Result, n)
	for i := range out {
		id := int64(i + 1)
		out[i] = result.Result{
			TitleID:    id,
			Similarity: 1 - float64(i)*0.01,
			Metadata: title.Metadata{
				Title:  "Title " + strconv.FormatInt(id, 10),
				Score:  f64(8),
				Genres: []string{"Action"},
			},
		}
	}
	return out
}

func rated(id int64, name string, rating float64, status list.Status) list.Entry {
	return list.Entry{
		Key:       list.Key{UserID: "u1", TitleID: id, Kind: title.Anime},
		Status:    status,
		Rating:    f64(rating),
		TitleName: name,
	}
}
