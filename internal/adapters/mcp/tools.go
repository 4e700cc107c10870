package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dmaslov/passage-search/internal/core/domain"
	"github.com/dmaslov/passage-search/internal/core/ports"
)

const (
	errorCodeInvalidParams   = -32602
	errorCodeInternalError   = -32603
	errorCodeCorpusNotLoaded = -32001
)

func (s *Server) handleSearchPassages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(errorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(errorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	corpusID, ok := args["corpus_id"].(string)
	if !ok || strings.TrimSpace(corpusID) == "" {
		return nil, newMCPError(errorCodeInvalidParams, "corpus_id parameter is required", map[string]interface{}{
			"param":  "corpus_id",
			"reason": "missing or empty",
		})
	}

	maxResults := getIntDefault(args, "max_results", 0)
	if maxResults < 0 || maxResults > 20 {
		return nil, newMCPError(errorCodeInvalidParams, "max_results must be between 1 and 20", map[string]interface{}{
			"param": "max_results",
			"value": maxResults,
		})
	}
	expand := getBoolDefault(args, "expand_query", true)

	run := s.engine.Search
	if expand {
		run = s.engine.SearchMultiQuery
	}

	outcome, err := run(ctx, query, corpusID, ports.SearchOptions{MaxResults: maxResults})
	if err != nil {
		if domain.IsKind(err, domain.ErrCorpusNotLoaded) {
			return nil, newMCPError(errorCodeCorpusNotLoaded, "corpus not loaded", map[string]interface{}{
				"corpus_id": corpusID,
			})
		}
		if domain.IsKind(err, domain.ErrInvalidInput) || domain.IsKind(err, domain.ErrInvalidWeights) {
			return nil, newMCPError(errorCodeInvalidParams, err.Error(), nil)
		}
		return nil, newMCPError(errorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"kind":    string(outcome.Kind),
		"results": outcome.Results,
	}
	if outcome.Suggestion != "" {
		response["suggestion"] = outcome.Suggestion
	}
	if outcome.LowConfidence {
		response["low_confidence"] = true
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) handleListCorpora(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response := map[string]interface{}{
		"corpora": s.corpora.CorpusStats(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func formatJSON(data map[string]interface{}) string {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(raw)
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	return defaultValue
}

func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}
