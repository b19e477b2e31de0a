// Package search routes queries to the embedding index and degrades to
// catalog keyword search when the index cannot answer.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/search/filter"
	"github.com/kailas-cloud/animedex/internal/domain/search/mode"
	"github.com/kailas-cloud/animedex/internal/domain/search/request"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/usecase/fallback"
	"github.com/kailas-cloud/animedex/internal/usecase/ranking"
)

// NoteSimilarUnavailable is attached to similarity responses served while degraded.
const NoteSimilarUnavailable = "Similarity search requires vector database which is currently unavailable"

// resolveCandidates is how many index hits ResolveTitle inspects.
const resolveCandidates = 5

// ReattemptPolicy decides whether a degraded engine ever retries the index.
type ReattemptPolicy string

const (
	// ReattemptSticky keeps the engine degraded for the process lifetime.
	ReattemptSticky ReattemptPolicy = "sticky"
	// ReattemptPeriodic re-opens the index after ReattemptInterval.
	ReattemptPeriodic ReattemptPolicy = "periodic"
)

const (
	stickyTimeout            = 100 * 365 * 24 * time.Hour
	defaultReattemptInterval = time.Minute
)

// Config tunes the degrade/re-attempt behaviour.
type Config struct {
	Policy            ReattemptPolicy
	ReattemptInterval time.Duration
	// FailureThreshold is the number of consecutive index failures before degrading.
	FailureThreshold uint32
}

// Metrics are optional collectors; nil fields are skipped.
type Metrics struct {
	// Requests has labels kind and path.
	Requests *prometheus.CounterVec
	Mode     prometheus.Gauge
}

// Response is a search answer with the engine state that produced it.
type Response struct {
	Results []result.Result
	Mode    mode.Mode
	Path    mode.Path
	Note    string
}

// Service is the search orchestrator.
type Service struct {
	handle   IndexHandle
	fallback Fallback
	cb       *gobreaker.CircuitBreaker[[]result.Result]
	metrics  Metrics
	logger   *zap.Logger
}

// New creates a search service in Primary mode.
func New(handle IndexHandle, fb Fallback, cfg Config, m Metrics, logger *zap.Logger) *Service {
	s := &Service{handle: handle, fallback: fb, metrics: m, logger: logger}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	timeout := stickyTimeout
	if cfg.Policy == ReattemptPeriodic {
		timeout = cfg.ReattemptInterval
		if timeout <= 0 {
			timeout = defaultReattemptInterval
		}
	}

	s.cb = gobreaker.NewCircuitBreaker[[]result.Result](gobreaker.Settings{
		Name:        "vector-index",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: s.onStateChange,
		IsSuccessful: func(err error) bool {
			// A caller that went away or a missing record says nothing about the index.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrNotFound)
		},
	})
	s.setModeGauge(mode.Primary)
	return s
}

func (s *Service) onStateChange(name string, from, to gobreaker.State) {
	switch to {
	case gobreaker.StateOpen:
		s.logger.Warn("Search degraded to keyword fallback",
			zap.String("breaker", name), zap.String("from", from.String()))
		s.setModeGauge(mode.Degraded)
	case gobreaker.StateHalfOpen:
		s.logger.Info("Re-attempting vector index", zap.String("breaker", name))
		s.handle.Reset()
	case gobreaker.StateClosed:
		s.logger.Info("Vector index restored", zap.String("breaker", name))
		s.setModeGauge(mode.Primary)
	}
}

func (s *Service) setModeGauge(m mode.Mode) {
	if s.metrics.Mode == nil {
		return
	}
	if m == mode.Primary {
		s.metrics.Mode.Set(1)
		return
	}
	s.metrics.Mode.Set(0)
}

func (s *Service) countPath(kind title.Kind, p mode.Path) {
	if s.metrics.Requests != nil {
		s.metrics.Requests.WithLabelValues(string(kind), string(p)).Inc()
	}
}

// Mode reports Primary while the index answers and Degraded otherwise.
func (s *Service) Mode() mode.Mode {
	if s.cb.State() == gobreaker.StateClosed {
		return mode.Primary
	}
	return mode.Degraded
}

// Search answers a query from the index, or from the catalog when the index fails.
// Only a malformed request is an error.
func (s *Service) Search(ctx context.Context, req request.Request) (Response, error) {
	req, err := req.Normalize()
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	var readOnly bool
	results, err := s.cb.Execute(func() ([]result.Result, error) {
		idx, err := s.index(ctx)
		if err != nil {
			return nil, err
		}
		readOnly = idx.ReadOnly()
		return s.queryIndex(ctx, idx, req)
	})
	if err == nil {
		p := mode.PathIndex
		if readOnly {
			p = mode.PathReadOnly
		}
		s.countPath(req.Kind, p)
		return Response{Results: results, Mode: s.Mode(), Path: p}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Response{}, fmt.Errorf("search: %w", ctxErr)
	}

	if !isBreakerRejection(err) {
		s.logger.Warn("Index search failed, using keyword fallback",
			zap.String("kind", string(req.Kind)), zap.Error(err))
	}
	results = s.fallback.Search(req.Kind, req.Query, req.Limit, fallback.Filters{
		Genre:     req.Genre,
		MinScore:  req.MinScore,
		MediaType: req.MediaType,
	})
	s.countPath(req.Kind, mode.PathFallback)
	return Response{Results: results, Mode: s.Mode(), Path: mode.PathFallback}, nil
}

func (s *Service) index(ctx context.Context) (Index, error) {
	idx, err := s.handle.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
		return nil, err
	}
	return idx, nil
}

func (s *Service) queryIndex(ctx context.Context, idx Index, req request.Request) ([]result.Result, error) {
	results, err := idx.QueryByText(ctx, req.Kind, req.Query, req.Limit, buildFilter(req))
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	if req.MinScore == nil {
		return results, nil
	}
	out := results[:0:0]
	for _, r := range results {
		if r.Metadata.Score != nil && *r.Metadata.Score >= *req.MinScore {
			out = append(out, r)
		}
	}
	return out, nil
}

// buildFilter pushes genre, media type and min score down to the index.
func buildFilter(req request.Request) filter.Expression {
	var conds []filter.Condition
	if req.Genre != "" {
		if c, err := filter.NewContains(title.FieldGenres, req.Genre); err == nil {
			conds = append(conds, c)
		}
	}
	if req.MediaType != "" {
		if c, err := filter.NewMatch(title.FieldMediaType, req.MediaType); err == nil {
			conds = append(conds, c)
		}
	}
	if req.MinScore != nil {
		if r, err := filter.NewRangeFilter(req.MinScore, nil); err == nil {
			if c, err := filter.NewRange(title.FieldScore, r); err == nil {
				conds = append(conds, c)
			}
		}
	}
	return filter.Expression{}.And(conds...)
}

// FindSimilar returns neighbours of a stored title. While degraded it returns
// no results and NoteSimilarUnavailable.
func (s *Service) FindSimilar(ctx context.Context, req request.Similar) (Response, error) {
	req, err := req.Normalize()
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	results, err := s.cb.Execute(func() ([]result.Result, error) {
		idx, err := s.index(ctx)
		if err != nil {
			return nil, err
		}
		return idx.QueryByID(ctx, req.Kind, req.ID, req.Limit)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, fmt.Errorf("find similar: %w", ctxErr)
		}
		if !isBreakerRejection(err) {
			s.logger.Warn("Similarity search failed",
				zap.String("kind", string(req.Kind)), zap.Int64("id", req.ID), zap.Error(err))
		}
		return Response{
			Results: []result.Result{},
			Mode:    mode.Degraded,
			Path:    mode.PathFallback,
			Note:    NoteSimilarUnavailable,
		}, nil
	}
	if results == nil {
		results = []result.Result{}
	}
	return Response{Results: results, Mode: s.Mode(), Path: mode.PathIndex}, nil
}

// Title returns one title, read from the index or from the catalog when the
// index cannot answer or never stored it. domain.ErrNotFound when neither has it.
func (s *Service) Title(ctx context.Context, kind title.Kind, id int64) (Response, error) {
	if !kind.IsValid() {
		return Response{}, fmt.Errorf("invalid kind %q: %w", kind, domain.ErrValidation)
	}
	if id <= 0 {
		return Response{}, fmt.Errorf("id must be positive: %w", domain.ErrValidation)
	}

	var readOnly bool
	results, err := s.cb.Execute(func() ([]result.Result, error) {
		idx, err := s.index(ctx)
		if err != nil {
			return nil, err
		}
		readOnly = idx.ReadOnly()
		r, err := idx.GetByID(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		return []result.Result{r}, nil
	})
	if err == nil {
		p := mode.PathIndex
		if readOnly {
			p = mode.PathReadOnly
		}
		return Response{Results: results, Mode: s.Mode(), Path: p}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Response{}, fmt.Errorf("title: %w", ctxErr)
	}
	if !isBreakerRejection(err) && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("Index lookup failed, reading catalog",
			zap.String("kind", string(kind)), zap.Int64("id", id), zap.Error(err))
	}

	r, ok := s.fallback.Lookup(kind, id)
	if !ok {
		return Response{}, fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return Response{Results: []result.Result{r}, Mode: s.Mode(), Path: mode.PathFallback}, nil
}

// IndexSizes returns the record count per kind. It never opens the index while degraded.
func (s *Service) IndexSizes(ctx context.Context) (map[title.Kind]int, error) {
	if s.Mode() == mode.Degraded {
		return nil, fmt.Errorf("index sizes: %w", domain.ErrIndexUnavailable)
	}
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	sizes := make(map[title.Kind]int, len(title.Kinds()))
	for _, kind := range title.Kinds() {
		n, err := idx.Count(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("index size of %s: %w", kind, err)
		}
		sizes[kind] = n
	}
	return sizes, nil
}

// ResolveTitle maps a free-text reference to a title: the first of the top
// candidates whose name contains the reference or is contained in it, else the
// top candidate. domain.ErrNotFound when nothing matches, domain.ErrIndexUnavailable
// when the index cannot answer.
func (s *Service) ResolveTitle(ctx context.Context, kind title.Kind, ref string) (result.Result, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return result.Result{}, fmt.Errorf("empty title reference: %w", domain.ErrValidation)
	}

	candidates, err := s.cb.Execute(func() ([]result.Result, error) {
		idx, err := s.index(ctx)
		if err != nil {
			return nil, err
		}
		return idx.QueryByText(ctx, kind, ref, resolveCandidates, filter.Expression{})
	})
	if err != nil {
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
		return result.Result{}, fmt.Errorf("resolve %q: %w", ref, err)
	}
	if len(candidates) == 0 {
		return result.Result{}, fmt.Errorf("resolve %q: %w", ref, domain.ErrNotFound)
	}

	lowerRef := strings.ToLower(ref)
	for _, c := range candidates {
		name := strings.ToLower(c.Metadata.Title)
		if strings.Contains(name, lowerRef) || strings.Contains(lowerRef, name) {
			return c, nil
		}
	}
	return candidates[0], nil
}

// Rerank orders results by combined score and keeps at most limit.
func (s *Service) Rerank(results []result.Result, limit int) []result.Ranked {
	return ranking.Rerank(results, limit)
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
