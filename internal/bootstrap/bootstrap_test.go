package bootstrap

import (
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/config"
	"github.com/kailas-cloud/animedex/internal/domain"
)

func testConfig() config.Config {
	cfg := config.Config{
		Embedding: config.EmbeddingConfig{
			Providers: map[string]config.ProviderConfig{"openai": {APIKey: "k", BaseURL: "http://localhost:1/v1"}},
			Vectorizers: map[string]config.VectorizerConfig{
				"small": {Provider: "openai", QueryInstruction: "query: "},
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestBuildEmbedders_Defaults(t *testing.T) {
	cfg := testConfig()
	emb, err := BuildEmbedders(&cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.Dim != domain.DefaultEmbeddingDim || emb.Model != domain.DefaultEmbeddingModel {
		t.Errorf("defaults: got dim=%d model=%q", emb.Dim, emb.Model)
	}
	if _, ok := emb.Query.(*domain.InstructionEmbedder); !ok {
		t.Errorf("query side must carry the instruction, got %T", emb.Query)
	}
	if _, ok := emb.Doc.(*domain.InstructionEmbedder); ok {
		t.Error("document side has no instruction configured")
	}
}

func TestBuildEmbedders_NoVectorizer(t *testing.T) {
	cfg := config.Config{}
	if _, err := BuildEmbedders(&cfg, nil, zap.NewNop()); err == nil {
		t.Error("expected error without vectorizers")
	}
}
