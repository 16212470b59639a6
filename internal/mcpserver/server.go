// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Bucketpress tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/bucketpress/internal/apperr"
	"github.com/starford/bucketpress/internal/docservice"
	"github.com/starford/bucketpress/internal/pathkey"
)

const formatURI = "bucketpress://document-format"

// Server wraps the MCP server with Bucketpress tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all Bucketpress tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Bucketpress",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_folder",
		mcp.WithDescription("List the files and sub-folders of a bucket folder."),
		mcp.WithString("path", mcp.Description("Folder path (empty for the bucket root)")),
	), s.listFolder)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the raw text of a Markdown document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Full document path (e.g. blog/post.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("write_document",
		mcp.WithDescription("Create or replace a Markdown document. The content is stored verbatim. "+
			"Read the format first via get_document_format or the "+formatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Full document path ending in .md")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document text including optional frontmatter")),
		mcp.WithString("if_match", mcp.Description("Checksum returned by read_document; the write fails if the document changed")),
		mcp.WithBoolean("publish", mcp.Description("Request a publish after saving")),
	), s.writeDocument)

	s.mcp.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Create an empty folder."),
		mcp.WithString("path", mcp.Description("Parent folder path (empty for the root)")),
		mcp.WithString("name", mcp.Required(), mcp.Description("New folder name")),
	), s.createFolder)

	s.mcp.AddTool(mcp.NewTool("delete_file",
		mcp.WithDescription("Delete a single file."),
		mcp.WithString("path", mcp.Description("Folder containing the file")),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name")),
	), s.deleteFile)

	s.mcp.AddTool(mcp.NewTool("delete_folder",
		mcp.WithDescription("Delete a folder and everything beneath it. This cannot be undone."),
		mcp.WithString("path", mcp.Description("Parent folder path")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Folder name")),
		mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true to delete")),
	), s.deleteFolder)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document titles, tags and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("publish",
		mcp.WithDescription("Trigger the publish webhook. Rate limited by a cooldown."),
	), s.publish)

	s.mcp.AddTool(mcp.NewTool("get_document_format",
		mcp.WithDescription("Returns the Bucketpress document format. "+
			"Call this before writing documents."),
	), s.getDocumentFormat)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Store an image in a bucket folder from an http(s) URL or a base64 data URI."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("path", mcp.Description("Target folder, usually the folder of the document")),
		mcp.WithString("filename", mcp.Description("Optional file name")),
	), s.uploadImage)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Document Format",
			mcp.WithResourceDescription("Markdown document format used in the bucket."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(apperr.Message(err, err.Error()))
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	listing, err := s.svc.List(ctx, req.GetString("path", ""))
	if err != nil {
		return toolError(err), nil
	}
	var lines []string
	for _, f := range listing.Folders {
		lines = append(lines, f.Name+"/")
	}
	for _, f := range listing.Files {
		lines = append(lines, f.Name)
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("(empty)"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Open(ctx, path)
	if err != nil {
		if docservice.IsNotFound(err) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("checksum: %s\n\n%s", doc.Checksum, doc.Raw)), nil
}

func (s *Server) writeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Save(ctx, path, []byte(content), req.GetString("if_match", ""), req.GetBool("publish", false))
	if err != nil {
		return toolError(err), nil
	}
	msg := fmt.Sprintf("saved: %s (checksum %s)", path, res.Document.Checksum)
	switch {
	case res.PublishError != "":
		msg += "\npublish failed: " + res.PublishError
	case res.Publish != nil:
		msg += "\npublish: " + res.Publish.Snapshot.Message
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) createFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent := req.GetString("path", "")
	if err := s.svc.CreateFolder(ctx, parent, name); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("created: " + pathkey.Join(parent, name)), nil
}

func (s *Server) deleteFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent := req.GetString("path", "")
	if err := s.svc.DeleteFile(ctx, parent, name); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("deleted: " + pathkey.Join(parent, name)), nil
}

func (s *Server) deleteFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !req.GetBool("confirm", false) {
		return mcp.NewToolResultError("confirm must be true to delete a folder"), nil
	}
	parent := req.GetString("path", "")
	n, err := s.svc.DeleteFolder(ctx, parent, name)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s (%d objects)", pathkey.Join(parent, name), n)), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) publish(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Publish(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if !res.Triggered {
		return mcp.NewToolResultText("not published: " + res.Snapshot.Message), nil
	}
	return mcp.NewToolResultText(res.Snapshot.Message), nil
}

func (s *Server) getDocumentFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormat), nil
}

func (s *Server) readFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormat,
		},
	}, nil
}
