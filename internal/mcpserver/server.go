// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes pathgraph tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/pathgraph/internal/classify"
	"github.com/starford/pathgraph/internal/extract"
	"github.com/starford/pathgraph/internal/graphstore"
	"github.com/starford/pathgraph/internal/models"
	"github.com/starford/pathgraph/internal/pipeline"
	"github.com/starford/pathgraph/internal/source"
	"github.com/starford/pathgraph/internal/vocab"
)

const recordFormatURI = "pathgraph://record-format"

// Builder runs a build synchronously.
type Builder interface {
	Build(ctx context.Context, trigger string) (*pipeline.Report, error)
}

// Classification is the dry-run answer of classify_record.
type Classification struct {
	Primary  models.Category `json:"primary,omitempty"`
	Entities []models.Entity `json:"entities"`
	Edges    []models.Edge   `json:"edges"`
}

// Server wraps the MCP server with pathgraph tools.
type Server struct {
	mcp        *server.MCPServer
	vocab      *vocab.Vocabulary
	classifier *classify.Classifier
	builds     Builder
	store      graphstore.Store
}

// New creates an MCP server with every tool registered. A nil v selects the default vocabulary.
func New(v *vocab.Vocabulary, builds Builder, store graphstore.Store) *Server {
	if v == nil {
		v = vocab.Default()
	}
	s := &Server{vocab: v, classifier: classify.New(v), builds: builds, store: store}

	s.mcp = server.NewMCPServer(
		"pathgraph",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("classify_record",
		mcp.WithDescription("Classify one input record without writing anything. "+
			"Returns the entities the record contributes and its candidate relationships. "+
			"Read the record format first via get_record_contract or the "+recordFormatURI+" resource."),
		mcp.WithString("record", mcp.Required(), mcp.Description("One record as a JSON object")),
	), s.classifyRecord)

	s.mcp.AddTool(mcp.NewTool("build_graph",
		mcp.WithDescription("Rebuild the knowledge graph from the configured input file and return the run report."),
	), s.buildGraph)

	s.mcp.AddTool(mcp.NewTool("graph_counts",
		mcp.WithDescription("Node counts per label and relationship counts per type currently in the graph store."),
	), s.graphCounts)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the input record format and the type labels of every category."),
	), s.getRecordContract)

	s.mcp.AddResource(
		mcp.NewResource(recordFormatURI, "Record Format Contract",
			mcp.WithResourceDescription("Input record format and type vocabularies."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
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

func (s *Server) classifyRecord(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("record")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := source.DecodeLine([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.classifier.Classify(rec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := Classification{Primary: res.Primary, Entities: res.Entities, Edges: extract.Edges(rec, res)}
	if out.Entities == nil {
		out.Entities = []models.Entity{}
	}
	if out.Edges == nil {
		out.Edges = []models.Edge{}
	}
	return jsonResult(out)
}

func (s *Server) buildGraph(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.builds == nil {
		return mcp.NewToolResultError("builds are not available"), nil
	}
	rep, err := s.builds.Build(ctx, "mcp")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("build failed: %v", err)), nil
	}
	return jsonResult(rep)
}

func (s *Server) graphCounts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("graph store is not available"), nil
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(counts)
}

func (s *Server) getRecordContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordContract(s.vocab)), nil
}

func (s *Server) readRecordFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      recordFormatURI,
			MIMEType: "text/markdown",
			Text:     RecordContract(s.vocab),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
