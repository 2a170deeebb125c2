package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mattn/go-runewidth"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

const fixture = "../../testdata/catalog/protocols.yaml"

func loadFixture(t *testing.T) *File {
	t.Helper()
	cf, err := LoadFile(fixture)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	return cf
}

func TestLoadFile(t *testing.T) {
	cf := loadFixture(t)
	var ids []string
	for _, p := range cf.List() {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff([]string{"serial-dilution", "plate-wash", "tip-check"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	e, ok := cf.Find("serial-dilution")
	if !ok {
		t.Fatal("serial-dilution not found")
	}
	if diff := cmp.Diff([]string{"volume", "plate", "steps", "mix", "wells"}, e.ParamsSchema.Names()); diff != "" {
		t.Errorf("param order mismatch (-want +got):\n%s", diff)
	}
	if e.Simulation == nil || len(e.Simulation.Commands) != 3 {
		t.Errorf("simulation = %+v", e.Simulation)
	}
	if _, ok := cf.Find("nope"); ok {
		t.Error("Find(nope) = true")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("protocols:\n  - id: x\n    name: X\n    colour: red\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	doc := `{"protocols": [{"id": "a", "name": "A", "description": "", "params_schema": {"properties": {"z": {"type": "string"}, "y": {"type": "number"}}}}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cf, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if diff := cmp.Diff([]string{"z", "y"}, cf.Protocols[0].ParamsSchema.Names()); diff != "" {
		t.Errorf("param order mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch(t *testing.T) {
	protocols := loadFixture(t).List()
	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"empty", Query{}, []string{"serial-dilution", "plate-wash", "tip-check"}},
		{"name", Query{Text: "WASH"}, []string{"plate-wash"}},
		{"description", Query{Text: "buffer"}, []string{"plate-wash"}},
		{"tag text", Query{Text: "liquid"}, []string{"serial-dilution"}},
		{"tag filter", Query{Tag: "maintenance"}, []string{"plate-wash", "tip-check"}},
		{"both", Query{Text: "tip", Tag: "maintenance"}, []string{"tip-check"}},
		{"none", Query{Text: "centrifuge"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, p := range Search(protocols, tt.q) {
				got = append(got, p.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Search mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTags(t *testing.T) {
	got := Tags(loadFixture(t).List())
	want := []string{"liquid-handling", "plates", "maintenance"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tags mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	protocols := loadFixture(t).List()
	tests := []struct {
		src  string
		want []string
	}{
		{"", []string{"serial-dilution", "plate-wash", "tip-check"}},
		{`"plates" in tags`, []string{"serial-dilution", "plate-wash"}},
		{`param_count > 2`, []string{"serial-dilution"}},
		{`"cycles" in required`, []string{"plate-wash"}},
		{`id startsWith "tip"`, []string{"tip-check"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			f, err := CompileFilter(tt.src)
			if err != nil {
				t.Fatalf("CompileFilter: %v", err)
			}
			matched, err := f.Apply(protocols)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			var got []string
			for _, p := range matched {
				got = append(got, p.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("filter mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := CompileFilter(`param_count + "x"`); err == nil {
		t.Error("expected compile error for non-bool expression")
	}
}

func TestSuggest(t *testing.T) {
	protocols := loadFixture(t).List()
	if got := Suggest("plate-wsh", protocols, 3); len(got) == 0 || got[0] != "plate-wash" {
		t.Errorf("Suggest(plate-wsh) = %v", got)
	}
	if got := Suggest("tip", protocols, 3); len(got) == 0 || got[0] != "tip-check" {
		t.Errorf("Suggest(tip) = %v", got)
	}
	if got := Suggest("centrifuge-spin", protocols, 3); len(got) != 0 {
		t.Errorf("Suggest(centrifuge-spin) = %v, want none", got)
	}
}

func TestWriteTable(t *testing.T) {
	protocols := []protocol.Protocol{
		{ID: "a", Name: "Ünïcode 試薬", Tags: []string{"x"}, Description: "first line\nsecond"},
		{ID: "bb", Name: "Plain", Description: strings.Repeat("long ", 30)},
	}
	var buf bytes.Buffer
	if err := WriteTable(&buf, protocols); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if strings.Contains(buf.String(), "second") {
		t.Error("description should be cut at the first line")
	}
	if !strings.Contains(lines[2], "…") {
		t.Errorf("long description not truncated: %q", lines[2])
	}
	// PARAMS column starts at the same display column in every row.
	col := strings.Index(lines[0], "PARAMS")
	for _, l := range lines[1:] {
		prefix := l[:strings.Index(l, "0  ")]
		if w := runewidth.StringWidth(prefix); w != col {
			t.Errorf("params column at %d, want %d in %q", w, col, l)
		}
	}
}

func TestValidateFile(t *testing.T) {
	if _, issues := ValidateFile(fixture); len(issues) != 0 {
		for _, i := range issues {
			t.Errorf("unexpected issue: %v", i)
		}
	}

	_, issues := ValidateFile("../../testdata/catalog/invalid.yaml")
	if !HasErrors(issues) {
		t.Fatalf("expected errors, got %v", issues)
	}
	var msgs []string
	for _, i := range issues {
		msgs = append(msgs, i.Error())
	}
	joined := strings.Join(msgs, "\n")
	for _, want := range []string{
		`duplicate protocol id "dup"`,
		`required parameter "missing" is not declared`,
		"minimum 10 exceeds maximum 1",
		`invalid delay "soon"`,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("issues missing %q:\n%s", want, joined)
		}
	}
}

func TestValidateFileStructural(t *testing.T) {
	_, issues := ValidateFile("../../testdata/catalog/does-not-exist.yaml")
	if len(issues) != 1 || issues[0].Phase != "structural" {
		t.Errorf("issues = %v", issues)
	}
}
