package mcpadapter

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func searchPassagesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_passages",
		Description: "Search a loaded corpus with hybrid keyword and semantic retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language search query",
				},
				"corpus_id": map[string]interface{}{
					"type":        "string",
					"description": "Identifier of a loaded corpus",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-20)",
					"default":     5,
					"minimum":     1,
					"maximum":     20,
				},
				"expand_query": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, run multi-query expansion before retrieval",
					"default":     true,
				},
			},
			Required: []string{"query", "corpus_id"},
		},
	}
}

func listCorporaTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_corpora",
		Description: "List loaded corpora with passage counts and index statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
