// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes link search and editing to LLMs via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/blitlinks/internal/linkservice"
	"github.com/starford/blitlinks/internal/models"
)

// Server wraps the MCP server with blitlinks tools.
type Server struct {
	mcp *server.MCPServer
	svc *linkservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *linkservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"blitlinks",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_links",
		mcp.WithDescription("Search saved links by prefix. Exact shortcut matches come first. "+
			"An empty query lists every link, newest first. See "+QuerySyntaxURI+" for details."),
		mcp.WithString("query", mcp.Description("Search query")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results; omit or 0 for every match")),
	), s.searchLinks)

	s.mcp.AddTool(mcp.NewTool("get_link",
		mcp.WithDescription("Read a single link by id."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Link id")),
	), s.getLink)

	s.mcp.AddTool(mcp.NewTool("save_link",
		mcp.WithDescription("Create a link, or replace every field of an existing one when id is given. "+
			"At least one field must be non-blank."),
		mcp.WithNumber("id", mcp.Description("Id of the link to replace; omit to create")),
		mcp.WithString("text", mcp.Description("Free-form notes")),
		mcp.WithString("link", mcp.Description("URL")),
		mcp.WithString("title", mcp.Description("Title")),
		mcp.WithString("shortcut", mcp.Description("Short keyword for instant recall")),
	), s.saveLink)

	s.mcp.AddTool(mcp.NewTool("list_links",
		mcp.WithDescription("List every saved link, newest first."),
	), s.listLinks)

	s.mcp.AddResource(
		mcp.NewResource(QuerySyntaxURI, "Query Syntax",
			mcp.WithResourceDescription("How queries are matched and ranked."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readQuerySyntax,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	limit := req.GetInt("limit", 0)

	links, err := s.svc.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	return jsonResult(links), nil
}

func (s *Server) getLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetInt("id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("id must be a positive integer"), nil
	}
	l, err := s.svc.Get(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("link %d: %v", id, err)), nil
	}
	return jsonResult(l), nil
}

func (s *Server) saveLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetInt("id", 0)
	if id < 0 {
		return mcp.NewToolResultError("id must not be negative"), nil
	}
	f := models.Fields{
		Text:     req.GetString("text", ""),
		Link:     req.GetString("link", ""),
		Title:    req.GetString("title", ""),
		Shortcut: req.GetString("shortcut", ""),
	}
	l, err := s.svc.Save(ctx, int64(id), f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(l), nil
}

func (s *Server) listLinks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	links, err := s.svc.ListAll(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(links), nil
}

func (s *Server) readQuerySyntax(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      QuerySyntaxURI,
			MIMEType: "text/markdown",
			Text:     QuerySyntax,
		},
	}, nil
}
