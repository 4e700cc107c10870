package mcpadapter

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dmaslov/passage-search/internal/core/ports"
)

const (
	serverName    = "passage-search"
	serverVersion = "1.0.0"
)

// Server exposes the retrieval engine over the Model Context Protocol so
// agent runtimes can call it as a tool, next to the HTTP surface.
type Server struct {
	mcp     *server.MCPServer
	engine  ports.SearchEngine
	corpora ports.CorpusManager
}

func NewServer(engine ports.SearchEngine, corpora ports.CorpusManager) *Server {
	s := &Server{
		mcp:     server.NewMCPServer(serverName, serverVersion),
		engine:  engine,
		corpora: corpora,
	}
	s.mcp.AddTool(searchPassagesTool(), s.handleSearchPassages)
	s.mcp.AddTool(listCorporaTool(), s.handleListCorpora)
	return s
}

// Serve runs the MCP server on stdio and blocks until the transport closes.
func (s *Server) Serve(_ context.Context) error {
	return server.ServeStdio(s.mcp)
}
