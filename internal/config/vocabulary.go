package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmaslov/passage-search/internal/core/domain"
)

// LoadVocabulary reads the expansion vocabulary from a YAML file. An empty
// path selects the built-in table. Entries present in the file override the
// defaults wholesale per section.
func LoadVocabulary(path string) (domain.ExpansionVocabulary, error) {
	vocab := domain.DefaultExpansionVocabulary()
	if path == "" {
		return vocab, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ExpansionVocabulary{}, fmt.Errorf("read vocabulary file: %w", err)
	}

	var fromFile domain.ExpansionVocabulary
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return domain.ExpansionVocabulary{}, fmt.Errorf("parse vocabulary yaml: %w", err)
	}

	if len(fromFile.Categories) > 0 {
		vocab.Categories = fromFile.Categories
	}
	if len(fromFile.Synonyms) > 0 {
		vocab.Synonyms = fromFile.Synonyms
	}
	if len(fromFile.VagueScopes) > 0 {
		vocab.VagueScopes = fromFile.VagueScopes
	}
	return vocab, nil
}
