package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	domchat "github.com/kailas-cloud/animedex/internal/domain/chat"
)

type chatRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestGenerator_Generate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  got.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "Watch **Cowboy Bebop**."},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	g := NewGenerator(&GeneratorConfig{APIKey: "k", BaseURL: srv.URL, Logger: zap.NewNop()})
	reply, err := g.Generate(context.Background(), []domchat.Message{
		{Role: domchat.RoleSystem, Content: "be helpful"},
		{Role: domchat.RoleUser, Content: "space western?"},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if reply != "Watch **Cowboy Bebop**." {
		t.Errorf("reply = %q", reply)
	}
	if got.Model != DefaultChatModel || got.MaxTokens != DefaultMaxTokens || got.Temperature != DefaultTemperature {
		t.Errorf("request settings = %s/%d/%v", got.Model, got.MaxTokens, got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "space western?" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestGenerator_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "x", "choices": []any{}})
	}))
	defer srv.Close()

	g := NewGenerator(&GeneratorConfig{APIKey: "k", BaseURL: srv.URL, Logger: zap.NewNop()})
	_, err := g.Generate(context.Background(), []domchat.Message{{Role: domchat.RoleUser, Content: "hi"}})
	if !errors.Is(err, domain.ErrGeneratorError) {
		t.Fatalf("expected ErrGeneratorError, got %v", err)
	}
}

func TestGenerator_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "upstream down"}})
	}))
	defer srv.Close()

	g := NewGenerator(&GeneratorConfig{APIKey: "k", BaseURL: srv.URL, Model: "custom", Logger: zap.NewNop()})
	if g.Model() != "custom" {
		t.Errorf("model = %q", g.Model())
	}
	_, err := g.Generate(context.Background(), []domchat.Message{{Role: domchat.RoleUser, Content: "hi"}})
	if !errors.Is(err, domain.ErrGeneratorError) {
		t.Fatalf("expected ErrGeneratorError, got %v", err)
	}
	if errors.Is(err, domain.ErrRateLimited) {
		t.Error("500 must not be reported as rate limited")
	}
}
