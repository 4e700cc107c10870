package ollama

import (
	"fmt"
	"strings"
)

func buildParaphrasePrompt(query string) string {
	return fmt.Sprintf(`You rewrite search queries.
Return strict JSON object with one key:
paraphrases (array of up to %d strings).
Each paraphrase must keep the original intent, use different wording, and stay short.
No markdown, no extra keys.

Query:
%s
`, maxParaphrases, query)
}

func buildPairScorePrompt(query string, passages []string) string {
	const maxSnippet = 1500

	var passageBuilder strings.Builder
	for idx, passage := range passages {
		snippet := passage
		if len(snippet) > maxSnippet {
			snippet = snippet[:maxSnippet]
		}
		passageBuilder.WriteString(fmt.Sprintf("[%d]\n%s\n\n", idx+1, snippet))
	}

	return fmt.Sprintf(`You judge how well each passage answers a search query.
Return strict JSON object with one key:
scores (array of exactly %d numbers from 0 to 1, one per passage, in order).
Score 1 means the passage directly answers the query, 0 means unrelated.
No markdown, no extra keys.

Query:
%s

Passages:
%s`, len(passages), query, passageBuilder.String())
}
