// Package server exposes the page operations over the Model Context
// Protocol. Tools and resources are registered at construction; the
// server then runs over stdio.
package server

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/grist"
	"github.com/gwhthompson/grist-mcp-server-sub003/internal/pages"
)

const serverVersion = "0.4.0"

// Server wires the executor and grist client into an MCP server.
type Server struct {
	mcpServer    *mcp.Server
	exec         *pages.Executor
	grist        *grist.Client
	log          *log.Logger
	systemPrompt string
}

// New builds the server and registers all tools and resources.
func New(client *grist.Client, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    "grist-mcp-server",
			Version: serverVersion,
		}, nil),
		exec:         pages.New(client, client, logger),
		grist:        client,
		log:          logger,
		systemPrompt: usageGuidelines,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves MCP over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("serving", "doc", s.grist.DocID())
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Failed to encode result: " + err.Error())
	}
	return textResult(string(jsonBytes))
}
