// Package mcp exposes the index over the Model Context Protocol so AI
// clients can search and manage collections through typed tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docindex/docindex/internal/docs"
	"github.com/docindex/docindex/internal/search"
	"github.com/docindex/docindex/internal/syncer"
	"github.com/docindex/docindex/pkg/version"
)

// Server bridges MCP clients with the retrieval engine, content store,
// and sync coordinator.
type Server struct {
	mcp     *mcp.Server
	engine  *search.Engine
	content *docs.ContentStore
	coord   *syncer.Coordinator
	logger  *slog.Logger
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the search query to execute"`
	Collections []string `json:"collections,omitempty" jsonschema:"restrict results to these collection IDs"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	MaxDistance float64  `json:"maxDistance,omitempty" jsonschema:"drop results whose vector distance exceeds this value"`
	Rerank      bool     `json:"rerank,omitempty" jsonschema:"re-score candidates with the independent re-ranking model"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []search.Result `json:"results" jsonschema:"ranked chunks"`
}

// CollectionsOutput lists registered collections.
type CollectionsOutput struct {
	Collections []CollectionInfo `json:"collections"`
}

// CollectionInfo is one collection summary.
type CollectionInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Version       string `json:"version,omitempty"`
	Description   string `json:"description,omitempty"`
	Locator       string `json:"locator"`
	DocumentCount int    `json:"documentCount"`
	LastSyncedAt  string `json:"lastSyncedAt,omitempty"`
}

// DocumentInput addresses one document.
type DocumentInput struct {
	Collection string `json:"collection" jsonschema:"collection ID"`
	Document   string `json:"document" jsonschema:"document ID within the collection"`
}

// DocumentOutput carries a full document.
type DocumentOutput struct {
	Collection string `json:"collection"`
	Document   string `json:"document"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// ListDocumentsInput pages through a collection's documents.
type ListDocumentsInput struct {
	Collection string `json:"collection" jsonschema:"collection ID"`
	Cursor     string `json:"cursor,omitempty" jsonschema:"pagination cursor from a previous call"`
	Limit      int    `json:"limit,omitempty" jsonschema:"page size, default 50"`
}

// ListDocumentsOutput is one page of document summaries.
type ListDocumentsOutput struct {
	Documents  []DocumentSummary `json:"documents"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// DocumentSummary is one document listing entry.
type DocumentSummary struct {
	Document  string `json:"document"`
	Title     string `json:"title"`
	SizeBytes int64  `json:"sizeBytes"`
}

// OutlineInput requests a document's heading outline.
type OutlineInput struct {
	Collection string `json:"collection" jsonschema:"collection ID"`
	Document   string `json:"document" jsonschema:"document ID"`
	MaxDepth   int    `json:"maxDepth,omitempty" jsonschema:"deepest heading level to include, 0 for all"`
}

// OutlineOutput is an ordered heading list.
type OutlineOutput struct {
	Headings []OutlineHeading `json:"headings"`
}

// OutlineHeading is one outline entry.
type OutlineHeading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Line  int    `json:"line"`
}

// SectionInput requests a section body by heading substring.
type SectionInput struct {
	Collection         string `json:"collection" jsonschema:"collection ID"`
	Document           string `json:"document" jsonschema:"document ID"`
	Heading            string `json:"heading" jsonschema:"case-insensitive substring of the target heading"`
	IncludeSubsections bool   `json:"includeSubsections,omitempty" jsonschema:"include nested subsections in the body"`
}

// SectionOutput carries a matched section, Found false when no heading
// matched.
type SectionOutput struct {
	Found     bool   `json:"found"`
	Heading   string `json:"heading,omitempty"`
	Content   string `json:"content,omitempty"`
	StartLine int    `json:"startLine,omitempty"`
	EndLine   int    `json:"endLine,omitempty"`
}

// FindRelatedInput locates chunks similar to a document.
type FindRelatedInput struct {
	Collection  string `json:"collection" jsonschema:"collection ID"`
	Document    string `json:"document" jsonschema:"source document ID"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	IncludeSelf bool   `json:"includeSelf,omitempty" jsonschema:"include the source document's own chunks"`
}

// SyncInput registers or refreshes a collection from a source.
type SyncInput struct {
	Name   string `json:"name" jsonschema:"display name for the collection"`
	Source string `json:"source" jsonschema:"source locator: path, URL, git+URL#ref, or bundle"`
	Force  bool   `json:"force,omitempty" jsonschema:"re-sync even when the manifest is unchanged"`
}

// DropInput removes a collection.
type DropInput struct {
	Collection string `json:"collection" jsonschema:"collection ID to drop"`
}

// StatusOutput acknowledges a mutation.
type StatusOutput struct {
	Status string `json:"status"`
}

// NewServer wires the MCP server and registers its tools.
func NewServer(engine *search.Engine, content *docs.ContentStore, coord *syncer.Coordinator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  engine,
		content: content,
		coord:   coord,
		logger:  logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "docindex",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid search over indexed documentation. Combines semantic similarity with keyword matching; use this to find passages by meaning, not just exact words.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_related",
		Description: "Find chunks semantically similar to an existing document. Useful for discovering connected guides and overlapping topics.",
	}, s.handleFindRelated)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_collections",
		Description: "List indexed collections with document counts and last-sync timestamps.",
	}, s.handleListCollections)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_documents",
		Description: "Page through the documents of one collection with title and size per entry.",
	}, s.handleListDocuments)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_document",
		Description: "Fetch the full content of one document.",
	}, s.handleGetDocument)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_outline",
		Description: "Return a document's heading outline, ordered, up to a maximum depth.",
	}, s.handleGetOutline)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_section",
		Description: "Extract one section's body by heading substring, optionally with nested subsections.",
	}, s.handleGetSection)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "sync",
		Description: "Register or refresh a collection from a source locator (local manifest, URL, git repository, or zip bundle).",
	}, s.handleSync)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "drop_collection",
		Description: "Remove a collection and all its documents and chunks.",
	}, s.handleDrop)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 9))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, fmt.Errorf("query is required")
	}

	start := time.Now()
	results, err := s.engine.Search(ctx, search.Options{
		Query:       input.Query,
		Collections: input.Collections,
		Limit:       input.Limit,
		MaxDistance: input.MaxDistance,
		Rerank:      input.Rerank,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	s.logger.Info("search_completed",
		slog.String("query", input.Query),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	return nil, SearchOutput{Results: results}, nil
}

func (s *Server) handleFindRelated(ctx context.Context, _ *mcp.CallToolRequest, input FindRelatedInput) (*mcp.CallToolResult, SearchOutput, error) {
	results, err := s.engine.FindRelated(ctx, input.Collection, input.Document, input.Limit, !input.IncludeSelf)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, SearchOutput{Results: results}, nil
}

func (s *Server) handleListCollections(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, CollectionsOutput, error) {
	cols, err := s.content.ListCollections(ctx)
	if err != nil {
		return nil, CollectionsOutput{}, err
	}

	out := CollectionsOutput{Collections: make([]CollectionInfo, 0, len(cols))}
	for _, c := range cols {
		info := CollectionInfo{
			ID:            c.ID,
			Name:          c.Name,
			Version:       c.Version,
			Description:   c.Description,
			Locator:       c.Locator,
			DocumentCount: c.DocumentCount,
		}
		if !c.LastSyncedAt.IsZero() {
			info.LastSyncedAt = c.LastSyncedAt.Format(time.RFC3339)
		}
		out.Collections = append(out.Collections, info)
	}
	return nil, out, nil
}

func (s *Server) handleListDocuments(ctx context.Context, _ *mcp.CallToolRequest, input ListDocumentsInput) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	infos, next, err := s.content.ListDocuments(ctx, input.Collection, input.Cursor, input.Limit)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	out := ListDocumentsOutput{
		Documents:  make([]DocumentSummary, 0, len(infos)),
		NextCursor: next,
	}
	for _, d := range infos {
		out.Documents = append(out.Documents, DocumentSummary{
			Document:  d.ID,
			Title:     d.Title,
			SizeBytes: d.SizeBytes,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetDocument(ctx context.Context, _ *mcp.CallToolRequest, input DocumentInput) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.content.GetDocument(ctx, input.Collection, input.Document)
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	return nil, DocumentOutput{
		Collection: doc.CollectionID,
		Document:   doc.ID,
		Title:      doc.Title,
		Content:    doc.Content,
	}, nil
}

func (s *Server) handleGetOutline(ctx context.Context, _ *mcp.CallToolRequest, input OutlineInput) (*mcp.CallToolResult, OutlineOutput, error) {
	headings, err := s.content.Outline(ctx, input.Collection, input.Document, input.MaxDepth)
	if err != nil {
		return nil, OutlineOutput{}, err
	}

	out := OutlineOutput{Headings: make([]OutlineHeading, 0, len(headings))}
	for _, h := range headings {
		out.Headings = append(out.Headings, OutlineHeading{Level: h.Level, Text: h.Text, Line: h.Line})
	}
	return nil, out, nil
}

func (s *Server) handleGetSection(ctx context.Context, _ *mcp.CallToolRequest, input SectionInput) (*mcp.CallToolResult, SectionOutput, error) {
	section, err := s.content.Section(ctx, input.Collection, input.Document, input.Heading, input.IncludeSubsections)
	if err != nil {
		return nil, SectionOutput{}, err
	}
	if section == nil {
		return nil, SectionOutput{Found: false}, nil
	}
	return nil, SectionOutput{
		Found:     true,
		Heading:   section.Heading,
		Content:   section.Content,
		StartLine: section.StartLine,
		EndLine:   section.EndLine,
	}, nil
}

func (s *Server) handleSync(ctx context.Context, _ *mcp.CallToolRequest, input SyncInput) (*mcp.CallToolResult, syncer.Result, error) {
	if input.Source == "" {
		return nil, syncer.Result{}, fmt.Errorf("source is required")
	}
	result, err := s.coord.Sync(ctx, input.Name, input.Source, "", syncer.Options{Force: input.Force})
	if err != nil {
		return nil, syncer.Result{}, err
	}
	return nil, *result, nil
}

func (s *Server) handleDrop(ctx context.Context, _ *mcp.CallToolRequest, input DropInput) (*mcp.CallToolResult, StatusOutput, error) {
	if err := s.coord.Drop(ctx, input.Collection); err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{Status: "dropped"}, nil
}

// Serve runs the server over stdio until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}
