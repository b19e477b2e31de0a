// Package chat assembles one conversational turn: list actions, the user's
// profile, retrieved context and the generated reply.
package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	domchat "github.com/kailas-cloud/animedex/internal/domain/chat"
	domintent "github.com/kailas-cloud/animedex/internal/domain/intent"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/search/request"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/usecase/ranking"
)

// Retrieval and context sizes.
const (
	retrievalLimit   = 30
	contextLimit     = ranking.DefaultRerankLimit
	keepUnfiltered   = 5
	replyContextMax  = 10
	profileRatedMax  = 10
	lovedMax         = 5
	likedMax         = 3
	dislikedMax      = 3
	lovedThreshold   = 8.0
	likedThreshold   = 6.0
	maxHistoryLength = 50
)

// Reply is the outcome of one chat turn.
type Reply struct {
	Text         string
	ActionsTaken []domintent.Result
	// Context holds at most 10 titles the reply was grounded on.
	Context []result.Ranked
}

// Service runs chat turns.
type Service struct {
	actions   Actions
	searcher  Searcher
	lists     Lists
	generator Generator
	logger    *zap.Logger
}

// New creates a chat service.
func New(actions Actions, searcher Searcher, lists Lists, generator Generator, logger *zap.Logger) *Service {
	return &Service{
		actions:   actions,
		searcher:  searcher,
		lists:     lists,
		generator: generator,
		logger:    logger,
	}
}

// Turn executes detected actions, builds context and asks the generator for a
// reply. An empty userID runs an anonymous turn without actions or profile.
// Action failures are reported in the reply, not as an error.
func (s *Service) Turn(ctx context.Context, userID, message string, history []domchat.Message) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, fmt.Errorf("message is required: %w", domain.ErrValidation)
	}
	if len(history) > maxHistoryLength {
		return Reply{}, fmt.Errorf("history exceeds %d messages: %w", maxHistoryLength, domain.ErrValidation)
	}
	for i, m := range history {
		if err := m.Validate(); err != nil {
			return Reply{}, fmt.Errorf("history[%d]: %w: %w", i, domain.ErrValidation, err)
		}
	}

	actions, err := s.actions.DetectAndExecute(ctx, userID, message)
	if err != nil {
		s.logger.Warn("Some chat actions failed", zap.String("user_id", userID), zap.Error(err))
	}

	var entries []list.Entry
	if userID != "" {
		entries, err = s.lists.ListByUser(ctx, userID, title.Anime)
		if err != nil {
			s.logger.Warn("Failed to load user list for chat", zap.String("user_id", userID), zap.Error(err))
			entries = nil
		}
	}

	ranked := s.retrieve(ctx, message, entries)

	var b strings.Builder
	if userID != "" {
		b.WriteString(profileBlock(userID, entries))
	}
	b.WriteString(actionsBlock(actions))
	b.WriteString("\n=== Relevant Anime ===\n")
	b.WriteString(contextBlock(message, ranked))

	messages := make([]domchat.Message, 0, len(history)+3)
	messages = append(messages, domchat.Message{Role: domchat.RoleSystem, Content: SystemPrompt})
	if full := strings.TrimSpace(b.String()); full != "" {
		messages = append(messages, domchat.Message{Role: domchat.RoleSystem, Content: contextPreamble + full})
	}
	messages = append(messages, history...)
	messages = append(messages, domchat.Message{Role: domchat.RoleUser, Content: message})

	text, err := s.generator.Generate(ctx, messages)
	if err != nil {
		return Reply{}, fmt.Errorf("generate reply: %w", err)
	}

	if len(ranked) > replyContextMax {
		ranked = ranked[:replyContextMax]
	}
	return Reply{Text: text, ActionsTaken: actions, Context: ranked}, nil
}

// retrieve searches, reranks and, for a known user, drops listed titles past
// the top five.
func (s *Service) retrieve(ctx context.Context, message string, entries []list.Entry) []result.Ranked {
	resp, err := s.searcher.Search(ctx, request.Request{Kind: title.Anime, Query: message, Limit: retrievalLimit})
	if err != nil {
		s.logger.Warn("Chat retrieval failed", zap.Error(err))
		return nil
	}
	ranked := s.searcher.Rerank(resp.Results, contextLimit)
	if len(entries) == 0 || len(ranked) <= keepUnfiltered {
		return ranked
	}

	listed := make(map[int64]struct{}, len(entries))
	for i := range entries {
		listed[entries[i].TitleID] = struct{}{}
	}
	out := append([]result.Ranked{}, ranked[:keepUnfiltered]...)
	for _, r := range ranked[keepUnfiltered:] {
		if len(out) == contextLimit {
			break
		}
		if _, ok := listed[r.TitleID]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// profileBlock summarises the user's ten best rated titles and watch stats.
// Empty when nothing is rated.
func profileBlock(userID string, entries []list.Entry) string {
	var loved, liked, disliked []string
	var watching, completed, rated int
	for i := range entries {
		e := &entries[i]
		switch e.Status {
		case list.Watching:
			watching++
		case list.Completed:
			completed++
		}
		if e.Rating == nil || rated == profileRatedMax {
			continue
		}
		rated++
		line := fmt.Sprintf("%s (%s/10)", entryName(e), formatNumber(*e.Rating))
		switch {
		case *e.Rating >= lovedThreshold:
			loved = append(loved, line)
		case *e.Rating >= likedThreshold:
			liked = append(liked, line)
		default:
			disliked = append(disliked, line)
		}
	}
	if rated == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n\n=== %s's Anime Profile ===\n", userID)
	writeGroup(&b, "LOVED", loved, lovedMax)
	writeGroup(&b, "Liked", liked, likedMax)
	writeGroup(&b, "Disliked", disliked, dislikedMax)
	fmt.Fprintf(&b, "Stats: %d watching, %d completed\n", watching, completed)
	return b.String()
}

func writeGroup(b *strings.Builder, label string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	if len(items) > limit {
		items = items[:limit]
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, ", "))
}

func entryName(e *list.Entry) string {
	if e.TitleName != "" {
		return e.TitleName
	}
	return "Anime #" + strconv.FormatInt(e.TitleID, 10)
}

// actionsBlock lists every executed action. Only successes get a check mark.
func actionsBlock(actions []domintent.Result) string {
	if len(actions) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n=== ACTIONS EXECUTED ===\n")
	for _, a := range actions {
		mark := "✗"
		if a.Success {
			mark = "✓"
		}
		fmt.Fprintf(&b, "- %s %s\n", mark, a.Message)
	}
	b.WriteString("Acknowledge these actions in your response.\n")
	return b.String()
}

func contextBlock(message string, ranked []result.Ranked) string {
	var b strings.Builder
	if genres := ranking.DetectGenres(message); len(genres) > 0 {
		fmt.Fprintf(&b, "\nQuery suggests: %s\n", strings.Join(genres, ", "))
	}
	for i := range ranked {
		md := &ranked[i].Metadata
		score := "N/A"
		if md.Score != nil {
			score = formatNumber(*md.Score)
		}
		fmt.Fprintf(&b, "\n- %s (Score: %s/10, Genres: %s)", md.Title, score, md.GenreString())
	}
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
