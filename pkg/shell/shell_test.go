package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// mockService returns canned catalog entries and run outcomes.
type mockService struct {
	protocols []protocol.Protocol
	result    *protocol.ProtocolResult
	runErr    error

	gotParams   map[string]any
	gotSimulate bool
}

func (m *mockService) ListProtocols(context.Context) ([]protocol.Protocol, error) {
	return m.protocols, nil
}

func (m *mockService) GetProtocol(_ context.Context, id string) (*protocol.Protocol, error) {
	for _, p := range m.protocols {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, &client.NotFoundError{ID: id}
}

func (m *mockService) RunProtocol(_ context.Context, _ string, params map[string]any, simulate bool) (*protocol.ProtocolResult, error) {
	m.gotParams = params
	m.gotSimulate = simulate
	return m.result, m.runErr
}

func newMockService(t *testing.T) *mockService {
	t.Helper()
	var p protocol.Protocol
	err := json.Unmarshal([]byte(`{
	  "id": "plate-wash", "name": "Plate Wash", "description": "Wash a plate", "tags": ["plates"],
	  "params_schema": {"properties": {
	    "buffer": {"type": "string", "enum": ["PBS", "TBS"]},
	    "cycles": {"type": "integer", "minimum": 1, "maximum": 10, "default": 3}
	  }, "required": ["buffer"]}}`), &p)
	if err != nil {
		t.Fatal(err)
	}
	return &mockService{
		protocols: []protocol.Protocol{p},
		result: &protocol.ProtocolResult{
			Status:       "SUCCESS",
			CommandCount: 1,
			Results: []protocol.CommandResult{
				{Status: "SUCCESS", Errors: []string{}, Data: map[string]any{"volume": 250.0}},
			},
		},
	}
}

func newTestShell(t *testing.T, svc *mockService) (*Shell, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	s := New(svc, WithOutput(&buf), WithTickInterval(time.Hour))
	t.Cleanup(s.Close)
	return s, &buf
}

func exec(t *testing.T, s *Shell, buf *bytes.Buffer, line string) string {
	t.Helper()
	buf.Reset()
	if s.Exec(context.Background(), line) {
		t.Fatalf("%q unexpectedly quit", line)
	}
	return buf.String()
}

func TestShellHelp(t *testing.T) {
	s, buf := newTestShell(t, newMockService(t))
	out := exec(t, s, buf, "help")
	for _, cmd := range []string{"list", "use", "params", "set", "unset", "simulate", "run", "expand", "reset", "quit"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing command %q", cmd)
		}
	}
}

func TestShellList(t *testing.T) {
	s, buf := newTestShell(t, newMockService(t))
	if out := exec(t, s, buf, "list wash"); !strings.Contains(out, "plate-wash") {
		t.Errorf("list missing protocol: %s", out)
	}
	if out := exec(t, s, buf, "list centrifuge"); !strings.Contains(out, "No protocols match.") {
		t.Errorf("list should report no matches: %s", out)
	}
}

func TestShellUseUnknownSuggests(t *testing.T) {
	s, buf := newTestShell(t, newMockService(t))
	exec(t, s, buf, "list")
	out := exec(t, s, buf, "use plate-wsh")
	if !strings.Contains(out, `did you mean "plate-wash"`) {
		t.Errorf("expected suggestion: %s", out)
	}
	if s.buildPrompt() != "labrun> " {
		t.Errorf("prompt = %q", s.buildPrompt())
	}
}

func TestShellRunLifecycle(t *testing.T) {
	svc := newMockService(t)
	s, buf := newTestShell(t, svc)

	out := exec(t, s, buf, "use plate-wash")
	if !strings.Contains(out, "Plate Wash [plate-wash]") || !strings.Contains(out, "cycles") {
		t.Errorf("use output unexpected: %s", out)
	}
	if !strings.Contains(out, "options: PBS, TBS") {
		t.Errorf("use should list enum options: %s", out)
	}
	if p := s.buildPrompt(); p != "labrun[plate-wash | idle | sim]> " {
		t.Errorf("prompt = %q", p)
	}

	out = exec(t, s, buf, "run")
	if !strings.Contains(out, "Cannot run") || !strings.Contains(out, "buffer") {
		t.Errorf("run should refuse the missing buffer: %s", out)
	}
	if svc.gotParams != nil {
		t.Fatal("invalid form reached the service")
	}

	if out := exec(t, s, buf, "set cycles 11"); !strings.Contains(out, "cycles = 11") {
		t.Errorf("set output: %s", out)
	}
	if out := exec(t, s, buf, "params"); !strings.Contains(out, "✗") {
		t.Errorf("params should flag out-of-range cycles: %s", out)
	}
	exec(t, s, buf, "set cycles=4")
	exec(t, s, buf, "set buffer=PBS")
	exec(t, s, buf, "simulate off")

	out = exec(t, s, buf, "run")
	if !strings.Contains(out, "Running plate-wash (hardware)") || !strings.Contains(out, "✓ Protocol completed") {
		t.Errorf("run output: %s", out)
	}
	if svc.gotSimulate {
		t.Error("simulate off should reach the service")
	}
	if svc.gotParams["buffer"] != "PBS" || svc.gotParams["cycles"] != 4.0 {
		t.Errorf("params = %v", svc.gotParams)
	}
	if p := s.buildPrompt(); p != "labrun[plate-wash | success | hw]> " {
		t.Errorf("prompt = %q", p)
	}

	if out := exec(t, s, buf, "expand 1"); !strings.Contains(out, "volume: 250") {
		t.Errorf("expand should show data: %s", out)
	}
	if out := exec(t, s, buf, "expand none"); strings.Contains(out, "volume: 250") {
		t.Errorf("expand none should hide data: %s", out)
	}
	if out := exec(t, s, buf, "expand 2"); !strings.Contains(out, "invalid command index") {
		t.Errorf("expand out of range: %s", out)
	}

	if out := exec(t, s, buf, "reset"); !strings.Contains(out, "Ready.") {
		t.Errorf("reset output: %s", out)
	}
	if out := exec(t, s, buf, "reset"); !strings.Contains(out, "Error:") {
		t.Errorf("reset from idle should fail: %s", out)
	}
}

func TestShellRunFailure(t *testing.T) {
	svc := newMockService(t)
	svc.runErr = &client.ExecutionError{StatusCode: 503, Detail: "Hardware offline"}
	s, buf := newTestShell(t, svc)

	exec(t, s, buf, "use plate-wash")
	exec(t, s, buf, "set buffer TBS")
	out := exec(t, s, buf, "run")
	if !strings.Contains(out, "✗ Protocol failed: Hardware offline") {
		t.Errorf("run output: %s", out)
	}
}

func TestShellRequiresProtocol(t *testing.T) {
	s, buf := newTestShell(t, newMockService(t))
	for _, line := range []string{"set a=1", "unset a", "run", "expand 1", "reset"} {
		if out := exec(t, s, buf, line); !strings.Contains(out, "no protocol selected") {
			t.Errorf("%q: %s", line, out)
		}
	}
}

func TestShellUnsetUnknown(t *testing.T) {
	s, buf := newTestShell(t, newMockService(t))
	exec(t, s, buf, "use plate-wash")
	if out := exec(t, s, buf, "unset volume"); !strings.Contains(out, "unknown parameter") {
		t.Errorf("unset unknown: %s", out)
	}
	if out := exec(t, s, buf, "unset cycles"); !strings.Contains(out, "cycles unset") {
		t.Errorf("unset: %s", out)
	}
}

func TestShellQuit(t *testing.T) {
	s, _ := newTestShell(t, newMockService(t))
	if !s.Exec(context.Background(), "quit") {
		t.Error("quit should exit")
	}
	if s.Exec(context.Background(), "   ") {
		t.Error("blank line should not exit")
	}
}
