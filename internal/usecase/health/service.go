// Package health aggregates dependency checks and the search mode.
package health

import (
	"context"

	"github.com/kailas-cloud/animedex/internal/domain/search/mode"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates search or embeddings run on a fallback path.
	Degraded Status = "degraded"
	// Unhealthy indicates the list store is down and no list can be read or changed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used in Report.Checks.
const (
	ComponentIndex     = "index"
	ComponentPostgres  = "postgres"
	ComponentEmbedding = "embedding"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Mode   mode.Mode
	Checks map[string]CheckResult
	// IndexSizes is nil when the index could not be counted.
	IndexSizes map[title.Kind]int
}

// Service coordinates health checks.
type Service struct {
	index     Pinger
	postgres  Pinger
	embedding EmbeddingChecker
	search    Search
}

// New creates a Service. embedding can be nil.
func New(index, postgres Pinger, embedding EmbeddingChecker, search Search) *Service {
	return &Service{index: index, postgres: postgres, embedding: embedding, search: search}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		ComponentIndex:    result(s.index.Ping(ctx)),
		ComponentPostgres: result(s.postgres.Ping(ctx)),
	}
	if s.embedding != nil {
		checks[ComponentEmbedding] = result(s.embedding.HealthCheck(ctx))
	}

	m := s.search.Mode()
	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if m == mode.Degraded {
		status = Degraded
	}
	if checks[ComponentPostgres] == CheckError {
		status = Unhealthy
	}

	rep := Report{Status: status, Mode: m, Checks: checks}
	if checks[ComponentIndex] == CheckOK {
		if sizes, err := s.search.IndexSizes(ctx); err == nil {
			rep.IndexSizes = sizes
		}
	}
	return rep
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
