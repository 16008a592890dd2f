// Package mcpserver exposes question answering and retrieval as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Version is reported to MCP clients.
var Version = "dev"

// Service is the subset of *rag.Service the tools call.
type Service interface {
	Query(ctx context.Context, question string, topK int) (*models.Answer, error)
	Retrieve(ctx context.Context, question string, topK int) ([]models.RetrievedResult, error)
}

type handlers struct {
	service Service
	logger  *zap.Logger
}

// New registers the ask_documents and search_documents tools.
func New(service Service, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{service: service, logger: logger}

	ask := mcp.NewTool("ask_documents",
		mcp.WithDescription("Answer a question from the indexed knowledge base and cite the source chunks"),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question to answer"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Number of chunks to retrieve (defaults to the server setting)"),
		))
	search := mcp.NewTool("search_documents",
		mcp.WithDescription("Return the indexed chunks nearest to a query without generating an answer"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Number of chunks to return (defaults to the server setting)"),
		))

	srv := server.NewMCPServer("kotae", Version, server.WithToolCapabilities(false))
	srv.AddTool(ask, h.ask)
	srv.AddTool(search, h.search)
	return srv
}

// NewSSEServer wraps srv in an SSE transport reachable at addr.
func NewSSEServer(srv *server.MCPServer, addr string) *server.SSEServer {
	return server.NewSSEServer(srv, server.WithBaseURL(fmt.Sprintf("http://%s", addr)))
}

func (h *handlers) ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := h.service.Query(ctx, q, request.GetInt("top_k", 0))
	if err != nil {
		h.logger.Warn("ask_documents failed", zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString(answer.Answer)
	if len(answer.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for _, src := range answer.Sources {
			b.WriteString("\n- " + models.CitationLabel(src.Metadata))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

type searchHit struct {
	Source   string   `json:"source"`
	Distance *float64 `json:"distance,omitempty"`
	Text     string   `json:"text"`
}

// search returns one JSON object per line, nearest first.
func (h *handlers) search(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := h.service.Retrieve(ctx, q, request.GetInt("top_k", 0))
	if err != nil {
		h.logger.Warn("search_documents failed", zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response strings.Builder
	for _, r := range results {
		raw, err := json.Marshal(searchHit{
			Source:   models.CitationLabel(r.Metadata),
			Distance: r.Score,
			Text:     r.Content,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		response.Write(raw)
		response.WriteByte('\n')
	}
	return mcp.NewToolResultText(response.String()), nil
}
