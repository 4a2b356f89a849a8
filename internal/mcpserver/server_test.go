package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/blitlinks/internal/linkservice"
	"github.com/starford/blitlinks/internal/models"
	"github.com/starford/blitlinks/internal/testutil"
)

func testServer(t *testing.T) (*Server, *linkservice.Service) {
	t.Helper()
	svc, _ := testutil.TestService(t)
	return New(svc, "test"), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so dispatch to the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_links":
		result, err = srv.searchLinks(ctx, req)
	case "get_link":
		result, err = srv.getLink(ctx, req)
	case "save_link":
		result, err = srv.saveLink(ctx, req)
	case "list_links":
		result, err = srv.listLinks(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func resultLinks(t *testing.T, r *mcp.CallToolResult) []models.Link {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	var links []models.Link
	if err := json.Unmarshal([]byte(resultText(r)), &links); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return links
}

func TestSaveAndGetLink(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "save_link", map[string]interface{}{
		"link":     "https://pkg.go.dev",
		"title":    "Go Packages",
		"shortcut": "pkg",
	})
	if r.IsError {
		t.Fatalf("save failed: %s", resultText(r))
	}
	var saved models.Link
	if err := json.Unmarshal([]byte(resultText(r)), &saved); err != nil {
		t.Fatal(err)
	}

	r = callTool(t, srv, "get_link", map[string]interface{}{"id": float64(saved.ID)})
	if r.IsError {
		t.Fatalf("get failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"title": "Go Packages"`) {
		t.Errorf("get result = %q", resultText(r))
	}
}

func TestSaveLink_ReplacesWithID(t *testing.T) {
	srv, svc := testServer(t)
	l := testutil.MustSave(t, svc, models.Fields{Title: "old", Shortcut: "o"})

	r := callTool(t, srv, "save_link", map[string]interface{}{"id": float64(l.ID), "title": "new"})
	if r.IsError {
		t.Fatalf("save failed: %s", resultText(r))
	}
	got, err := svc.Get(context.Background(), l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "new" || got.Shortcut != "" {
		t.Errorf("after replace = %+v", got.Fields)
	}
}

func TestSaveLink_Blank(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "save_link", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for blank link")
	}
}

func TestSearchLinks(t *testing.T) {
	srv, svc := testServer(t)
	gh := testutil.MustSave(t, svc, models.Fields{Link: "https://github.com", Shortcut: "gh"})
	for i := 0; i < 3; i++ {
		testutil.MustSave(t, svc, models.Fields{Text: "gh mirror"})
	}

	links := resultLinks(t, callTool(t, srv, "search_links", map[string]interface{}{"query": "gh"}))
	if len(links) != 4 || links[0].ID != gh.ID {
		t.Errorf("search = %+v, want shortcut first of 4", links)
	}

	links = resultLinks(t, callTool(t, srv, "search_links", map[string]interface{}{"query": "gh", "limit": float64(2)}))
	if len(links) != 2 {
		t.Errorf("limited search returned %d", len(links))
	}
}

func TestSearchLinks_ReturnsEveryMatchByDefault(t *testing.T) {
	srv, svc := testServer(t)
	for i := 0; i < 30; i++ {
		testutil.MustSave(t, svc, models.Fields{Text: "bulk entry"})
	}

	links := resultLinks(t, callTool(t, srv, "search_links", map[string]interface{}{"query": "bulk"}))
	if len(links) != 30 {
		t.Errorf("search returned %d links, want all 30", len(links))
	}
	links = resultLinks(t, callTool(t, srv, "search_links", map[string]interface{}{}))
	if len(links) != 30 {
		t.Errorf("listing returned %d links, want all 30", len(links))
	}
}

func TestListLinks(t *testing.T) {
	srv, svc := testServer(t)
	testutil.MustSave(t, svc, models.Fields{Text: "a"})
	b := testutil.MustSave(t, svc, models.Fields{Text: "b"})

	links := resultLinks(t, callTool(t, srv, "list_links", map[string]interface{}{}))
	if len(links) != 2 || links[0].ID != b.ID {
		t.Errorf("list = %+v, want newest first", links)
	}
}

func TestGetLinkMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_link", map[string]interface{}{"id": float64(99)})
	if !r.IsError {
		t.Error("expected error for missing link")
	}
	r = callTool(t, srv, "get_link", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing id")
	}
}

func TestQuerySyntaxResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readQuerySyntax(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != QuerySyntaxURI || !strings.Contains(tc.Text, "prefix") {
		t.Errorf("resource = %+v", contents[0])
	}
}
