// Package mcpadapter exposes question answering and search history as MCP
// tools for a single configured identity.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const (
	serverName         = "pdf-rag-assistant"
	defaultHistorySize = 10
)

type Server struct {
	answerer ports.QuestionAnswerer
	history  ports.SearchHistoryService
	user     domain.Identity
}

func NewServer(answerer ports.QuestionAnswerer, history ports.SearchHistoryService, user domain.Identity) *Server {
	return &Server{answerer: answerer, history: history, user: user}
}

// MCPServer builds the protocol server with all tools registered.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("ask_documents",
		mcp.WithDescription("Answer a question from the indexed PDF documents and list the passages used."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language question")),
	), s.handleAsk)

	srv.AddTool(mcp.NewTool("search_history",
		mcp.WithDescription("List the most recent questions asked by this identity."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records, 1 to 100")),
	), s.handleHistory)

	return srv
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.answerer.Ask(ctx, s.user, query)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("ask documents: %w", err)
	}
	if result.Error {
		return mcp.NewToolResultError(result.Answer), nil
	}
	return mcp.NewToolResultText(renderAnswer(result)), nil
}

func (s *Server) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultHistorySize)
	records, err := s.history.History(ctx, s.user, limit)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode search history: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func renderAnswer(result *domain.AnswerResult) string {
	var b strings.Builder
	b.WriteString(result.Answer)
	if len(result.Sources) == 0 {
		return b.String()
	}
	b.WriteString("\n\nSources:\n")
	for i, src := range result.Sources {
		fmt.Fprintf(&b, "%d. %s (passage %d, similarity %.2f)\n", i+1, src.Filename, src.ChunkIndex, src.Similarity)
	}
	return strings.TrimRight(b.String(), "\n")
}
