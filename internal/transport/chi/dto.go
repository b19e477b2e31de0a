package chi

import (
	"time"

	"github.com/kailas-cloud/animedex/internal/domain/intent"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	listsuc "github.com/kailas-cloud/animedex/internal/usecase/lists"
	recommenduc "github.com/kailas-cloud/animedex/internal/usecase/recommend"
)

// ErrorCode is a machine-readable error code returned in ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeNotFound               ErrorCode = "not_found"
	CodeRateLimited            ErrorCode = "rate_limited"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeGeneratorError         ErrorCode = "generator_error"
	CodeIndexUnavailable       ErrorCode = "index_unavailable"
	CodeTimeout                ErrorCode = "timeout"
	CodeStoreCommitFailed      ErrorCode = "store_commit_failed"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// TitleResponse is one title in search results, chat context and recommendations.
type TitleResponse struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Score         *float64 `json:"score,omitempty"`
	Genres        []string `json:"genres"`
	MediaType     string   `json:"media_type,omitempty"`
	Status        string   `json:"status,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	Popularity    *int     `json:"popularity,omitempty"`
	Similarity    float64  `json:"similarity"`
	CombinedScore *float64 `json:"combined_score,omitempty"`
}

// SearchResponse is returned by search and similarity endpoints.
type SearchResponse struct {
	Results []TitleResponse `json:"results"`
	Mode    string          `json:"mode"`
	Path    string          `json:"path"`
	Note    string          `json:"note,omitempty"`
}

// ChatRequest is the body of POST /api/v1/users/{user}/chat.
type ChatRequest struct {
	Message string           `json:"message"`
	History []MessagePayload `json:"history,omitempty"`
}

// MessagePayload is one prior conversation turn.
type MessagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ActionResponse reports one list mutation performed during a chat turn.
type ActionResponse struct {
	Operation string `json:"operation"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	TitleID   *int64 `json:"title_id,omitempty"`
	TitleName string `json:"title_name,omitempty"`
}

// ChatResponse is the outcome of one chat turn.
type ChatResponse struct {
	Reply        string           `json:"reply"`
	ActionsTaken []ActionResponse `json:"actions_taken"`
	Context      []TitleResponse  `json:"context"`
}

// EntryResponse is one list entry.
type EntryResponse struct {
	TitleID    int64     `json:"title_id"`
	Kind       string    `json:"kind"`
	TitleName  string    `json:"title_name,omitempty"`
	Status     string    `json:"status"`
	Rating     *float64  `json:"rating,omitempty"`
	IsFavorite bool      `json:"is_favorite"`
	AddedAt    time.Time `json:"added_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListResponse is a user's list, optionally narrowed to one kind.
type ListResponse struct {
	User    string          `json:"user"`
	Entries []EntryResponse `json:"entries"`
	Total   int             `json:"total"`
}

// AddEntryRequest is the body of POST /api/v1/users/{user}/list.
type AddEntryRequest struct {
	Kind       string   `json:"kind"`
	TitleID    int64    `json:"title_id"`
	Status     string   `json:"status,omitempty"`
	Rating     *float64 `json:"rating,omitempty"`
	IsFavorite bool     `json:"is_favorite"`
}

// UpdateEntryRequest is the body of PATCH /api/v1/users/{user}/list/{kind}/{id}.
// Absent fields are left unchanged.
type UpdateEntryRequest struct {
	Status      *string  `json:"status,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ClearRating bool     `json:"clear_rating,omitempty"`
	IsFavorite  *bool    `json:"is_favorite,omitempty"`
}

// ListStatsResponse is the body of GET /api/v1/users/{user}/stats.
type ListStatsResponse struct {
	User          string         `json:"user"`
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	Favorites     int            `json:"favorites"`
	Rated         int            `json:"rated"`
	AverageRating *float64       `json:"average_rating,omitempty"`
}

// SeedResponse is a list entry recommendations were derived from.
type SeedResponse struct {
	TitleID    int64    `json:"title_id"`
	Title      string   `json:"title"`
	Rating     *float64 `json:"rating,omitempty"`
	IsFavorite bool     `json:"is_favorite"`
}

// RecommendationResponse is one recommended title with the reason it was picked.
type RecommendationResponse struct {
	TitleResponse
	Reason string `json:"reason,omitempty"`
}

// RecommendationsResponse is returned by both recommendation endpoints.
type RecommendationsResponse struct {
	BasedOn []SeedResponse           `json:"based_on"`
	Items   []RecommendationResponse `json:"recommendations"`
	Note    string                   `json:"note,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Mode       string            `json:"mode"`
	Checks     map[string]string `json:"checks"`
	IndexSizes map[string]int    `json:"index_sizes,omitempty"`
}

// TitleDetailResponse is the body of GET /api/v1/titles/{kind}/{id}.
type TitleDetailResponse struct {
	TitleResponse
	Kind     string `json:"kind"`
	Document string `json:"document,omitempty"`
	Mode     string `json:"mode"`
	Path     string `json:"path"`
}

func resultToResponse(r *result.Result) TitleResponse {
	genres := r.Metadata.Genres
	if genres == nil {
		genres = []string{}
	}
	return TitleResponse{
		ID:         r.TitleID,
		Title:      r.Metadata.Title,
		Score:      r.Metadata.Score,
		Genres:     genres,
		MediaType:  r.Metadata.MediaType,
		Status:     r.Metadata.Status,
		ImageURL:   r.Metadata.ImageURL,
		Popularity: r.Metadata.Popularity,
		Similarity: r.Similarity,
	}
}

func resultsToResponse(rs []result.Result) []TitleResponse {
	out := make([]TitleResponse, len(rs))
	for i := range rs {
		out[i] = resultToResponse(&rs[i])
	}
	return out
}

func rankedToResponse(r *result.Ranked) TitleResponse {
	out := resultToResponse(&r.Result)
	score := r.CombinedScore
	out.CombinedScore = &score
	return out
}

func actionsToResponse(rs []intent.Result) []ActionResponse {
	out := make([]ActionResponse, len(rs))
	for i, r := range rs {
		out[i] = ActionResponse{
			Operation: string(r.Operation),
			Success:   r.Success,
			Message:   r.Message,
			TitleID:   r.TitleID,
			TitleName: r.TitleName,
		}
	}
	return out
}

func entryToResponse(e *list.Entry) EntryResponse {
	return EntryResponse{
		TitleID:    e.TitleID,
		Kind:       string(e.Kind),
		TitleName:  e.TitleName,
		Status:     string(e.Status),
		Rating:     e.Rating,
		IsFavorite: e.IsFavorite,
		AddedAt:    e.AddedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func statsToResponse(user string, st *listsuc.Stats) ListStatsResponse {
	byStatus := make(map[string]int, len(st.ByStatus))
	for s, n := range st.ByStatus {
		byStatus[string(s)] = n
	}
	return ListStatsResponse{
		User:          user,
		Total:         st.Total,
		ByStatus:      byStatus,
		Favorites:     st.Favorites,
		Rated:         st.Rated,
		AverageRating: st.AverageRating,
	}
}

func recommendationsToResponse(recs *recommenduc.Recommendations) RecommendationsResponse {
	out := RecommendationsResponse{
		BasedOn: make([]SeedResponse, len(recs.BasedOn)),
		Items:   make([]RecommendationResponse, len(recs.Items)),
		Note:    recs.Note,
	}
	for i, s := range recs.BasedOn {
		out.BasedOn[i] = SeedResponse{
			TitleID:    s.TitleID,
			Title:      s.Title,
			Rating:     s.Rating,
			IsFavorite: s.IsFavorite,
		}
	}
	for i := range recs.Items {
		out.Items[i] = RecommendationResponse{
			TitleResponse: rankedToResponse(&recs.Items[i].Ranked),
			Reason:        recs.Items[i].Reason,
		}
	}
	return out
}
