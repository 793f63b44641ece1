package toolrun

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestResultFromMCPConcatenatesTextContent(t *testing.T) {
	res := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "hello "},
			mcp.TextContent{Type: "text", Text: "world"},
		},
	}
	got := resultFromMCP(res)
	if got.Text != "hello world" {
		t.Fatalf("Text = %q, want %q", got.Text, "hello world")
	}
	if got.IsError {
		t.Fatal("expected IsError=false")
	}
}

func TestResultFromMCPCarriesIsError(t *testing.T) {
	res := &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "boom"}},
	}
	got := resultFromMCP(res)
	if !got.IsError {
		t.Fatal("expected IsError=true")
	}
	if got.Text != "boom" {
		t.Fatalf("Text = %q", got.Text)
	}
}

func TestResultFromMCPNilResult(t *testing.T) {
	got := resultFromMCP(nil)
	if got.Text != "" || got.IsError {
		t.Fatalf("expected zero Result, got %+v", got)
	}
}

func TestSchemasFromMCPCopiesNameAndDescription(t *testing.T) {
	tools := []mcp.Tool{
		{Name: "read_file", Description: "reads a file"},
	}
	got := schemasFromMCP(tools)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Name != "read_file" || got[0].Description != "reads a file" {
		t.Fatalf("got %+v", got[0])
	}
}
