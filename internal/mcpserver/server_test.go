package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/pathgraph/internal/models"
	"github.com/starford/pathgraph/internal/pipeline"
	"github.com/starford/pathgraph/internal/source"
	"github.com/starford/pathgraph/internal/testutil"
	"github.com/starford/pathgraph/internal/vocab"
)

type fakeBuilder struct {
	rep *pipeline.Report
	err error
}

func (f fakeBuilder) Build(context.Context, string) (*pipeline.Report, error) {
	return f.rep, f.err
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error
	switch name {
	case "classify_record":
		result, err = srv.classifyRecord(ctx, req)
	case "build_graph":
		result, err = srv.buildGraph(ctx, req)
	case "graph_counts":
		result, err = srv.graphCounts(ctx, req)
	case "get_record_contract":
		result, err = srv.getRecordContract(ctx, req)
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

func TestClassifyRecord(t *testing.T) {
	srv := New(nil, nil, nil)

	r := callTool(t, srv, "classify_record", map[string]any{
		"record": `{"name":"Rapamycin","type":"MTOR抑制剂","target":"MTOR","related_diseases":["AD"]}`,
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	var out Classification
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Primary != models.Compound {
		t.Errorf("primary = %q", out.Primary)
	}
	if len(out.Entities) != 2 {
		t.Errorf("entities = %+v, want compound and disease", out.Entities)
	}
	// targets + assoc_with + treats
	if len(out.Edges) != 3 {
		t.Errorf("edges = %+v", out.Edges)
	}
}

func TestClassifyRecord_Errors(t *testing.T) {
	srv := New(nil, nil, nil)
	for _, rec := range []string{`not json`, `{"type":"核心基因"}`} {
		r := callTool(t, srv, "classify_record", map[string]any{"record": rec})
		if !r.IsError {
			t.Errorf("record %s: expected error, got %s", rec, resultText(r))
		}
	}
	if r := callTool(t, srv, "classify_record", map[string]any{}); !r.IsError {
		t.Error("missing argument should be an error")
	}
}

func TestClassifyRecord_Unclassified(t *testing.T) {
	srv := New(nil, nil, nil)
	r := callTool(t, srv, "classify_record", map[string]any{"record": `{"name":"x","type":"other"}`})
	if r.IsError {
		t.Fatal(resultText(r))
	}
	if !strings.Contains(resultText(r), `"entities": []`) {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestClassifyRecord_ExtendedVocabulary(t *testing.T) {
	v := vocab.Default()
	v.Add(models.Gene, "core gene")
	srv := New(v, nil, nil)

	r := callTool(t, srv, "classify_record", map[string]any{"record": `{"name":"TFEB","type":"core gene"}`})
	if !strings.Contains(resultText(r), `"primary": "Gene"`) {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestBuildGraph(t *testing.T) {
	store := testutil.TestStore(t)
	path := testutil.WriteJSONL(t, "records.jsonl", `{"name":"MTOR","type":"核心基因","related_diseases":["AD"]}`)
	p := pipeline.New(store, nil, pipeline.WithLogger(testutil.Logger()))
	b := builderFunc(func(ctx context.Context) (*pipeline.Report, error) {
		return p.Run(ctx, source.NewJSONL(path))
	})
	srv := New(nil, b, store)

	r := callTool(t, srv, "build_graph", nil)
	if r.IsError {
		t.Fatalf("build_graph: %s", resultText(r))
	}
	var rep pipeline.Report
	if err := json.Unmarshal([]byte(resultText(r)), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Store.TotalNodes() != 2 || rep.Store.TotalRelationships() != 1 {
		t.Errorf("store = %+v", rep.Store)
	}

	r = callTool(t, srv, "graph_counts", nil)
	if !strings.Contains(resultText(r), `"assoc_with": 1`) {
		t.Errorf("graph_counts = %s", resultText(r))
	}
}

type builderFunc func(ctx context.Context) (*pipeline.Report, error)

func (f builderFunc) Build(ctx context.Context, _ string) (*pipeline.Report, error) { return f(ctx) }

func TestBuildGraph_Failure(t *testing.T) {
	srv := New(nil, fakeBuilder{err: errors.New("store unavailable")}, nil)
	r := callTool(t, srv, "build_graph", nil)
	if !r.IsError || !strings.Contains(resultText(r), "store unavailable") {
		t.Errorf("result = %+v", r)
	}
	if r := callTool(t, srv, "graph_counts", nil); !r.IsError {
		t.Error("graph_counts without a store should fail")
	}
}

func TestGetRecordContract(t *testing.T) {
	srv := New(nil, nil, nil)
	text := resultText(callTool(t, srv, "get_record_contract", nil))
	for _, want := range []string{"related_diseases", "### Compound", "- 动物模型", "- 激酶"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract missing %q", want)
		}
	}

	contents, err := srv.readRecordFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.Text != text {
		t.Error("resource should match the tool output")
	}
}
