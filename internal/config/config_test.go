package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dmaslov/passage-search/internal/core/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.VectorWeight != 0.6 || cfg.KeywordWeight != 0.4 {
		t.Fatalf("unexpected default weights: %f/%f", cfg.VectorWeight, cfg.KeywordWeight)
	}
	if cfg.BM25K1 != 1.2 || cfg.BM25B != 0.75 {
		t.Fatalf("unexpected BM25 defaults: k1=%f b=%f", cfg.BM25K1, cfg.BM25B)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsWeightsNotSummingToOne(t *testing.T) {
	cfg := Load()
	cfg.VectorWeight = 0.8
	cfg.KeywordWeight = 0.4

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}

func TestValidateRejectsNegativeWeight(t *testing.T) {
	cfg := Load()
	cfg.VectorWeight = 1.4
	cfg.KeywordWeight = -0.4

	if err := cfg.Validate(); !domain.IsKind(err, domain.ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FUSION_VECTOR_WEIGHT", "0.5")
	t.Setenv("FUSION_KEYWORD_WEIGHT", "0.5")
	t.Setenv("MAX_QUERY_VARIANTS", "4")

	cfg := Load()
	if cfg.VectorWeight != 0.5 || cfg.KeywordWeight != 0.5 {
		t.Fatalf("env weights not applied: %f/%f", cfg.VectorWeight, cfg.KeywordWeight)
	}
	if cfg.MaxQueryVariants != 4 {
		t.Fatalf("env variant cap not applied: %d", cfg.MaxQueryVariants)
	}
}

func TestLoadVocabularyDefaultsWhenPathEmpty(t *testing.T) {
	vocab, err := LoadVocabulary("")
	if err != nil {
		t.Fatalf("LoadVocabulary() error = %v", err)
	}
	if len(vocab.Synonyms["aws"]) == 0 {
		t.Fatalf("expected built-in aws synonyms")
	}
}

func TestLoadVocabularyOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	content := []byte("synonyms:\n  gdpr:\n    - general data protection regulation\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write vocab file: %v", err)
	}

	vocab, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary() error = %v", err)
	}
	if got := vocab.Synonyms["gdpr"]; len(got) != 1 || got[0] != "general data protection regulation" {
		t.Fatalf("file synonyms not applied: %v", got)
	}
	if len(vocab.VagueScopes) == 0 {
		t.Fatalf("default vague scopes should survive a partial file")
	}
}

func TestLoadVocabularyRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	if err := os.WriteFile(path, []byte("synonyms: [broken"), 0o600); err != nil {
		t.Fatalf("write vocab file: %v", err)
	}
	if _, err := LoadVocabulary(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
