package mcp

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/catalog"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/serve"
)

const fixture = "../../testdata/catalog/protocols.yaml"

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	cf, err := catalog.LoadFile(fixture)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	srv := httptest.NewServer(serve.New(cf).Handler())
	t.Cleanup(srv.Close)
	return &Handlers{Service: client.New(srv.URL, 5*time.Second), TickInterval: time.Hour}
}

func call(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := fn(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	return result, text.Text
}

func TestHandleList(t *testing.T) {
	h := newTestHandlers(t)
	tests := []struct {
		name string
		args map[string]any
		want []string
	}{
		{"all", map[string]any{}, []string{"serial-dilution", "plate-wash", "tip-check"}},
		{"query", map[string]any{"query": "wash"}, []string{"plate-wash"}},
		{"tag", map[string]any{"tag": "maintenance"}, []string{"plate-wash", "tip-check"}},
		{"where", map[string]any{"where": "param_count > 2"}, []string{"serial-dilution"}},
		{"tag and where", map[string]any{"tag": "maintenance", "where": `"cycles" in required`}, []string{"plate-wash"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, text := call(t, h.HandleList, tt.args)
			if result.IsError {
				t.Fatalf("unexpected error: %s", text)
			}
			var rows []protocolSummary
			if err := json.Unmarshal([]byte(text), &rows); err != nil {
				t.Fatal(err)
			}
			var ids []string
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandleList_BadFilter(t *testing.T) {
	h := newTestHandlers(t)
	result, text := call(t, h.HandleList, map[string]any{"where": `param_count + "x"`})
	if !result.IsError || !strings.Contains(text, "compile filter") {
		t.Errorf("expected compile error, got %v %s", result.IsError, text)
	}
}

func TestHandleGet(t *testing.T) {
	h := newTestHandlers(t)
	result, text := call(t, h.HandleGet, map[string]any{"id": "plate-wash"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	var got struct {
		Fields []fieldInfo `json:"fields"`
	}
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatal(err)
	}
	lo, hi := 1.0, 5.0
	want := []fieldInfo{
		{Name: "cycles", Label: "cycles", Kind: "integer", Control: "range", Required: true, Default: 3.0, Minimum: &lo, Maximum: &hi},
		{Name: "buffer", Label: "buffer", Kind: "enum", Control: "select", Options: []string{"PBS", "TBS"}},
	}
	if diff := cmp.Diff(want, got.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleGet_NotFoundSuggests(t *testing.T) {
	h := newTestHandlers(t)
	result, text := call(t, h.HandleGet, map[string]any{"id": "plate-wsh"})
	if !result.IsError || !strings.Contains(text, "did you mean: plate-wash") {
		t.Errorf("expected suggestion, got %v %s", result.IsError, text)
	}
	result, _ = call(t, h.HandleGet, map[string]any{})
	if !result.IsError {
		t.Error("expected error for missing id")
	}
}

func TestHandleRun(t *testing.T) {
	h := newTestHandlers(t)
	result, text := call(t, h.HandleRun, map[string]any{
		"id":     "serial-dilution",
		"params": map[string]any{"volume": 250.0},
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	var got struct {
		Status   string         `json:"status"`
		Simulate bool           `json:"simulate"`
		RunID    string         `json:"run_id"`
		Summary  map[string]int `json:"summary"`
	}
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "success" || !got.Simulate || got.RunID == "" {
		t.Errorf("response = %+v", got)
	}
	if diff := cmp.Diff(map[string]int{"commands": 3, "succeeded": 3, "failed": 0}, got.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(text, `"volume": 250`) {
		t.Errorf("scripted data should carry the submitted volume:\n%s", text)
	}
}

func TestHandleRun_Invalid(t *testing.T) {
	h := newTestHandlers(t)
	result, text := call(t, h.HandleRun, map[string]any{
		"id":     "serial-dilution",
		"params": map[string]any{"volume": 5.0},
	})
	if !result.IsError || !strings.Contains(text, `"status": "invalid"`) || !strings.Contains(text, `"field": "volume"`) {
		t.Errorf("expected validation failure, got %v %s", result.IsError, text)
	}

	result, text = call(t, h.HandleRun, map[string]any{"id": "plate-wash", "params": "cycles=2"})
	if !result.IsError || !strings.Contains(text, "params must be an object") {
		t.Errorf("expected params type error, got %v %s", result.IsError, text)
	}
}

func TestHandleRun_HardwareRefused(t *testing.T) {
	h := newTestHandlers(t)
	result, text := call(t, h.HandleRun, map[string]any{"id": "plate-wash", "simulate": false})
	if !result.IsError {
		t.Fatalf("expected error, got %s", text)
	}
	if !strings.Contains(text, serve.HardwareUnavailable) || !strings.Contains(text, `"status": "error"`) {
		t.Errorf("response should carry the service detail:\n%s", text)
	}
}

func TestHandleValidate(t *testing.T) {
	result, text := call(t, HandleValidate, map[string]any{"path": fixture})
	if result.IsError || !strings.Contains(text, "3 protocols") {
		t.Errorf("expected valid catalog, got %v %s", result.IsError, text)
	}
	result, _ = call(t, HandleValidate, map[string]any{})
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleSchema(t *testing.T) {
	for _, typ := range []string{"protocol", "result", "catalog"} {
		result, text := call(t, HandleSchema, map[string]any{"type": typ})
		if result.IsError || !strings.Contains(text, `"$schema"`) {
			t.Errorf("%s: unexpected result %v %.80s", typ, result.IsError, text)
		}
	}
	result, _ := call(t, HandleSchema, map[string]any{"type": "foo"})
	if !result.IsError {
		t.Error("expected error for unknown schema type")
	}
}

func TestNewServer(t *testing.T) {
	s := NewServer("test", newTestHandlers(t))
	if s == nil {
		t.Fatal("nil server")
	}
}
