package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	domchat "github.com/kailas-cloud/animedex/internal/domain/chat"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/search/request"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	logpkg "github.com/kailas-cloud/animedex/internal/logger"
	healthuc "github.com/kailas-cloud/animedex/internal/usecase/health"
	listsuc "github.com/kailas-cloud/animedex/internal/usecase/lists"
)

const (
	maxChatBodyBytes = 1 << 20
	maxListBodyBytes = 64 << 10
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the public HTTP API.
type Server struct {
	search        Searcher
	chat          Chatter
	recommend     Recommender
	lists         Lists
	health        HealthChecker
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	chat Chatter,
	recommend Recommender,
	lists Lists,
	health HealthChecker,
) *Server {
	s := &Server{
		search:    search,
		chat:      chat,
		recommend: recommend,
		lists:     lists,
		health:    health,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, CodeTimeout),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrGeneratorError, http.StatusBadGateway, CodeGeneratorError),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, CodeIndexUnavailable),
		sentinelHandler(domain.ErrIndexReadOnly, http.StatusServiceUnavailable, CodeIndexUnavailable),
		sentinelHandler(domain.ErrStoreCommit, http.StatusServiceUnavailable, CodeStoreCommitFailed),
	}
	return s
}

// Register mounts every route on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.Search)
		r.Get("/titles/{kind}/{id}", s.GetTitle)
		r.Get("/titles/{kind}/{id}/similar", s.FindSimilar)
		r.Get("/titles/{kind}/{id}/recommendations", s.TitleRecommendations)
		r.Post("/users/{user}/chat", s.Chat)
		r.Get("/users/{user}/list", s.ListEntries)
		r.Post("/users/{user}/list", s.AddEntry)
		r.Patch("/users/{user}/list/{kind}/{id}", s.UpdateEntry)
		r.Delete("/users/{user}/list/{kind}/{id}", s.RemoveEntry)
		r.Get("/users/{user}/stats", s.ListStats)
		r.Get("/users/{user}/recommendations", s.UserRecommendations)
	})
}

// Search handles GET /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := title.ParseKind(q.Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit: "+err.Error())
		return
	}
	minScore, err := floatParam(q.Get("min_score"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "min_score: "+err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), request.Request{
		Kind:      kind,
		Query:     q.Get("q"),
		Limit:     limit,
		Genre:     q.Get("genre"),
		MinScore:  minScore,
		MediaType: q.Get("media_type"),
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Results: resultsToResponse(resp.Results),
		Mode:    string(resp.Mode),
		Path:    string(resp.Path),
		Note:    resp.Note,
	})
}

// GetTitle handles GET /api/v1/titles/{kind}/{id}.
func (s *Server) GetTitle(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := titleParams(w, r)
	if !ok {
		return
	}

	resp, err := s.search.Title(r.Context(), kind, id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if len(resp.Results) == 0 {
		writeError(w, http.StatusNotFound, CodeNotFound, "title not found")
		return
	}

	writeJSON(w, http.StatusOK, TitleDetailResponse{
		TitleResponse: resultToResponse(&resp.Results[0]),
		Kind:          string(kind),
		Document:      resp.Results[0].Document,
		Mode:          string(resp.Mode),
		Path:          string(resp.Path),
	})
}

// FindSimilar handles GET /api/v1/titles/{kind}/{id}/similar.
func (s *Server) FindSimilar(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := titleParams(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit: "+err.Error())
		return
	}

	resp, err := s.search.FindSimilar(r.Context(), request.Similar{Kind: kind, ID: id, Limit: limit})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Results: resultsToResponse(resp.Results),
		Mode:    string(resp.Mode),
		Path:    string(resp.Path),
		Note:    resp.Note,
	})
}

// TitleRecommendations handles GET /api/v1/titles/{kind}/{id}/recommendations.
// The optional user query parameter hides titles already on that user's list.
func (s *Server) TitleRecommendations(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := titleParams(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit: "+err.Error())
		return
	}

	recs, err := s.recommend.ForTitle(r.Context(), strings.TrimSpace(r.URL.Query().Get("user")), kind, id, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationsToResponse(&recs))
}

// Chat handles POST /api/v1/users/{user}/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	history := make([]domchat.Message, len(req.History))
	for i, m := range req.History {
		history[i] = domchat.Message{Role: domchat.Role(m.Role), Content: m.Content}
	}

	ctx := logpkg.WithFields(r.Context(), zap.String("user", user))
	reply, err := s.chat.Turn(ctx, user, req.Message, history)
	if err != nil {
		s.handleDomainError(w, r.WithContext(ctx), err)
		return
	}

	resp := ChatResponse{
		Reply:        reply.Text,
		ActionsTaken: actionsToResponse(reply.ActionsTaken),
		Context:      make([]TitleResponse, len(reply.Context)),
	}
	for i := range reply.Context {
		resp.Context[i] = rankedToResponse(&reply.Context[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListEntries handles GET /api/v1/users/{user}/list. Without kind every kind is returned.
func (s *Server) ListEntries(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	var kind title.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k, err := title.ParseKind(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
		kind = k
	}

	entries, err := s.lists.ListByUser(r.Context(), user, kind)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := ListResponse{
		User:    user,
		Entries: make([]EntryResponse, len(entries)),
		Total:   len(entries),
	}
	for i := range entries {
		resp.Entries[i] = entryToResponse(&entries[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddEntry handles POST /api/v1/users/{user}/list. An existing entry is replaced.
func (s *Server) AddEntry(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	var req AddEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxListBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	kind, err := title.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	e, err := s.lists.Add(r.Context(), user, listsuc.AddRequest{
		Kind:       kind,
		TitleID:    req.TitleID,
		Status:     list.Status(req.Status),
		Rating:     req.Rating,
		IsFavorite: req.IsFavorite,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entryToResponse(&e))
}

// UpdateEntry handles PATCH /api/v1/users/{user}/list/{kind}/{id}.
func (s *Server) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := titleParams(w, r)
	if !ok {
		return
	}

	var req UpdateEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxListBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	p := listsuc.Patch{Rating: req.Rating, ClearRating: req.ClearRating, IsFavorite: req.IsFavorite}
	if req.Status != nil {
		st := list.Status(*req.Status)
		p.Status = &st
	}

	key := list.Key{UserID: chi.URLParam(r, "user"), TitleID: id, Kind: kind}
	e, err := s.lists.Update(r.Context(), key, p)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entryToResponse(&e))
}

// RemoveEntry handles DELETE /api/v1/users/{user}/list/{kind}/{id}.
func (s *Server) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := titleParams(w, r)
	if !ok {
		return
	}

	key := list.Key{UserID: chi.URLParam(r, "user"), TitleID: id, Kind: kind}
	if err := s.lists.Remove(r.Context(), key); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListStats handles GET /api/v1/users/{user}/stats. Without kind every kind is counted.
func (s *Server) ListStats(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	var kind title.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k, err := title.ParseKind(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
		kind = k
	}

	st, err := s.lists.Stats(r.Context(), user, kind)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsToResponse(user, &st))
}

// UserRecommendations handles GET /api/v1/users/{user}/recommendations.
func (s *Server) UserRecommendations(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	q := r.URL.Query()
	kind, err := title.ParseKind(q.Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit: "+err.Error())
		return
	}

	recs, err := s.recommend.ForUser(r.Context(), user, kind, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationsToResponse(&recs))
}

// HealthCheck handles GET /health. Degraded search still answers, so only an
// unhealthy report returns 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	var sizes map[string]int
	if report.IndexSizes != nil {
		sizes = make(map[string]int, len(report.IndexSizes))
		for k, n := range report.IndexSizes {
			sizes[string(k)] = n
		}
	}
	writeJSON(w, status, HealthResponse{
		Status:     string(report.Status),
		Mode:       string(report.Mode),
		Checks:     checks,
		IndexSizes: sizes,
	})
}

// --- Helpers ---

func titleParams(w http.ResponseWriter, r *http.Request) (title.Kind, int64, bool) {
	kind, err := title.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return "", 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "id must be a positive integer")
		return "", 0, false
	}
	return kind, id, true
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	return v, nil
}

func floatParam(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("must be a number")
	}
	return &v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrTimeout,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrGeneratorError,
		domain.ErrIndexUnavailable,
		domain.ErrIndexReadOnly,
		domain.ErrStoreCommit,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler echoes the validation detail; it only ever describes the request.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
