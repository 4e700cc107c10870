package domain

// ExpansionVocabulary is the domain knowledge the query expander works from:
// category keyword lists for query-type detection, a synonym table for term
// substitution, and scope suffixes applied to vague "everything about X"
// queries.
type ExpansionVocabulary struct {
	Categories  map[string][]string `yaml:"categories"`
	Synonyms    map[string][]string `yaml:"synonyms"`
	VagueScopes []string            `yaml:"vague_scopes"`
}

// DefaultExpansionVocabulary is the built-in table used when no vocabulary
// file is configured.
func DefaultExpansionVocabulary() ExpansionVocabulary {
	return ExpansionVocabulary{
		Categories: map[string][]string{
			"legal": {
				"law", "legal", "statute", "regulation", "compliance", "liability",
				"contract", "clause", "amendment", "bylaw", "policy", "article",
			},
			"technical": {
				"api", "server", "database", "deployment", "configuration", "protocol",
				"encryption", "authentication", "architecture", "infrastructure",
			},
			"procedural": {
				"procedure", "process", "steps", "workflow", "howto", "instructions",
				"checklist", "approval", "submission", "request",
			},
		},
		Synonyms: map[string][]string{
			"aws":          {"amazon web services", "aws cloud"},
			"requirements": {"requirements and criteria", "mandatory conditions", "prerequisites"},
			"quorum":       {"minimum attendance", "quorum threshold"},
			"security":     {"security controls", "protection measures", "safeguards"},
			"policy":       {"policy document", "rules and guidelines"},
			"meeting":      {"session", "assembly"},
			"deadline":     {"due date", "time limit"},
			"budget":       {"financial plan", "allocated funds"},
		},
		VagueScopes: []string{
			"definition and scope",
			"requirements and procedures",
			"key rules and exceptions",
		},
	}
}
