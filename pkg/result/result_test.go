package result

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

func scenarioResult(t *testing.T) *protocol.ProtocolResult {
	t.Helper()
	in := `{"status":"OK","command_count":2,"results":[
  {"status":"SUCCESS","errors":[],"data":{}},
  {"status":"FAILED","errors":["timeout"],"data":{"temp":37}}
]}`
	var r protocol.ProtocolResult
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &r
}

func TestExpansionToggleOnlyTouchesIndex(t *testing.T) {
	var e Expansion
	e = e.Toggle(3)
	want := Expansion{false, false, false, true}
	if diff := cmp.Diff(want, e); diff != "" {
		t.Errorf("Toggle(3) mismatch (-want +got):\n%s", diff)
	}
	e = e.Toggle(1)
	if !e.IsExpanded(1) || !e.IsExpanded(3) || e.IsExpanded(0) || e.IsExpanded(2) {
		t.Errorf("after Toggle(1): %v", e)
	}
	e = e.Toggle(3)
	if e.IsExpanded(3) || !e.IsExpanded(1) {
		t.Errorf("after second Toggle(3): %v", e)
	}
	if e.IsExpanded(99) || e.IsExpanded(-1) {
		t.Error("out of range should read collapsed")
	}
}

func TestExpansionToggleDoesNotAlias(t *testing.T) {
	orig := Expansion{true, false}
	_ = orig.Toggle(0)
	if !orig[0] {
		t.Error("Toggle mutated its receiver")
	}
}

func TestBuildScenario(t *testing.T) {
	v := Build(scenarioResult(t), nil)
	if len(v.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(v.Entries))
	}
	first, second := v.Entries[0], v.Entries[1]
	if first.Expandable {
		t.Error("first command has empty data and must not be expandable")
	}
	if !second.Expandable || second.Expanded {
		t.Errorf("second: expandable=%v expanded=%v, want true/false", second.Expandable, second.Expanded)
	}
	if diff := cmp.Diff([]string{"timeout"}, second.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
	if v.Succeeded != 1 || v.Failed != 1 || v.Mismatch {
		t.Errorf("summary = %d/%d mismatch=%v", v.Succeeded, v.Failed, v.Mismatch)
	}

	text := Renderer{Cursor: -1}.Render(v)
	if !strings.Contains(text, "error: timeout") {
		t.Errorf("collapsed render must still show errors:\n%s", text)
	}
	if strings.Contains(text, "temp: 37") {
		t.Errorf("collapsed render leaked data:\n%s", text)
	}

	expanded := Renderer{Cursor: -1}.Render(Build(scenarioResult(t), Expansion{}.Toggle(1)))
	if !strings.Contains(expanded, "temp: 37") {
		t.Errorf("expanded render missing data:\n%s", expanded)
	}
}

func TestBuildToleratesMismatchAndStaleExpansion(t *testing.T) {
	r := &protocol.ProtocolResult{
		Status:       "OK",
		CommandCount: 3,
		Results: []protocol.CommandResult{
			{Status: "SUCCESS", Data: map[string]any{"a": 1}},
		},
	}
	v := Build(r, Expansion{false, true, true, true, true})
	if !v.Mismatch {
		t.Error("Mismatch = false, want true")
	}
	if len(v.Entries) != 1 || v.Entries[0].Expanded {
		t.Errorf("entries = %+v", v.Entries)
	}
	if v.Entries[0].Errors == nil {
		t.Error("nil errors should be normalised to empty")
	}
	text := Renderer{Cursor: -1}.Render(v)
	if !strings.Contains(text, "received 1 results for 3 declared commands") {
		t.Errorf("render missing mismatch warning:\n%s", text)
	}
}

func TestBuildNil(t *testing.T) {
	v := Build(nil, nil)
	if len(v.Entries) != 0 || v.Mismatch {
		t.Errorf("Build(nil) = %+v", v)
	}
}

func TestParseExpansion(t *testing.T) {
	tests := []struct {
		spec    string
		want    Expansion
		wantErr bool
	}{
		{"", nil, false},
		{"none", nil, false},
		{"all", Expansion{true, true, true}, false},
		{"2", Expansion{false, true}, false},
		{"1, 3", Expansion{true, false, true}, false},
		{"0", nil, true},
		{"x", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseExpansion(tt.spec, 3)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseExpansion(%q) err = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseExpansion(%q) mismatch (-want +got):\n%s", tt.spec, diff)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, scenarioResult(t)); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"command_count": 2`) {
		t.Errorf("output = %s", buf.String())
	}
}
