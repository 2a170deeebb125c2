package serve

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/catalog"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/log"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

func newTestClient(t *testing.T, opts ...Option) (*client.Client, *bytes.Buffer) {
	t.Helper()
	cf, err := catalog.LoadFile("../../testdata/catalog/protocols.yaml")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	var logs bytes.Buffer
	logger, err := log.NewWithWriter(&logs, "debug")
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithLogger(logger)}, opts...)
	srv := httptest.NewServer(New(cf, opts...).Handler())
	t.Cleanup(srv.Close)
	return client.New(srv.URL, 5*time.Second), &logs
}

func TestListAndGet(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	protocols, err := c.ListProtocols(ctx)
	if err != nil {
		t.Fatalf("ListProtocols: %v", err)
	}
	var ids []string
	for _, p := range protocols {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff([]string{"serial-dilution", "plate-wash", "tip-check"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	p, err := c.GetProtocol(ctx, "serial-dilution")
	if err != nil {
		t.Fatalf("GetProtocol: %v", err)
	}
	if diff := cmp.Diff([]string{"volume", "plate", "steps", "mix", "wells"}, p.ParamsSchema.Names()); diff != "" {
		t.Errorf("param order mismatch (-want +got):\n%s", diff)
	}
	volume, _ := p.ParamsSchema.Lookup("volume")
	if !volume.HasDefault || volume.Default != 100.0 {
		t.Errorf("volume default = %v (has %v), want 100", volume.Default, volume.HasDefault)
	}

	_, err = c.GetProtocol(ctx, "centrifuge")
	if !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	var nf *client.NotFoundError
	if errors.As(err, &nf) && nf.Detail != "Protocol 'centrifuge' not found" {
		t.Errorf("Detail = %q", nf.Detail)
	}
}

func TestRunScripted(t *testing.T) {
	c, logs := newTestClient(t)

	result, err := c.RunProtocol(context.Background(), "serial-dilution",
		map[string]any{"volume": 250, "plate": "384"}, true)
	if err != nil {
		t.Fatalf("RunProtocol: %v", err)
	}
	if result.Status != protocol.StatusSuccess || result.CommandCount != 3 || len(result.Results) != 3 {
		t.Fatalf("result = %+v", result)
	}
	want := []map[string]any{
		{"command": "aspirate", "volume": 250.0},
		{"command": "dispense", "plate": "384"},
		{"command": "mix"},
	}
	for i, r := range result.Results {
		if diff := cmp.Diff(want[i], r.Data); diff != "" {
			t.Errorf("results[%d].data mismatch (-want +got):\n%s", i, diff)
		}
	}
	if !strings.Contains(logs.String(), `"run simulated"`) {
		t.Errorf("expected run log entry, got:\n%s", logs.String())
	}
}

func TestRunScriptedFailure(t *testing.T) {
	c, _ := newTestClient(t)

	result, err := c.RunProtocol(context.Background(), "tip-check", map[string]any{"rack": "A1"}, true)
	if err != nil {
		t.Fatalf("RunProtocol: %v", err)
	}
	if result.Status != "FAILED" {
		t.Errorf("Status = %q, want FAILED", result.Status)
	}
	if diff := cmp.Diff([]string{"tip rack not detected at A1"}, result.Results[0].Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestRunUnscriptedEchoesParams(t *testing.T) {
	c, _ := newTestClient(t)

	result, err := c.RunProtocol(context.Background(), "plate-wash", map[string]any{"buffer": "PBS", "cycles": 2}, true)
	if err != nil {
		t.Fatalf("RunProtocol: %v", err)
	}
	if result.CommandCount != 1 || len(result.Results) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if diff := cmp.Diff(map[string]any{"buffer": "PBS", "cycles": 2.0}, result.Results[0].Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestRunValidationFailure(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.RunProtocol(context.Background(), "serial-dilution", map[string]any{"volume": 600, "plate": "96"}, true)
	var ee *client.ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *ExecutionError", err)
	}
	if ee.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want 422", ee.StatusCode)
	}
	if !strings.HasPrefix(ee.Detail, "params.volume: ") {
		t.Errorf("Detail = %q, want params.volume violation", ee.Detail)
	}
}

func TestRunMissingRequired(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.RunProtocol(context.Background(), "plate-wash", nil, true)
	var ee *client.ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *ExecutionError", err)
	}
	if !strings.Contains(ee.Detail, "cycles") {
		t.Errorf("Detail = %q, want mention of cycles", ee.Detail)
	}
}

func TestRunHardwareRefused(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.RunProtocol(context.Background(), "plate-wash", map[string]any{"cycles": 1}, false)
	var ee *client.ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *ExecutionError", err)
	}
	if ee.StatusCode != http.StatusServiceUnavailable || ee.Error() != HardwareUnavailable {
		t.Errorf("got %d %q", ee.StatusCode, ee.Error())
	}
}

func TestRunUnknownProtocol(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.RunProtocol(context.Background(), "centrifuge", nil, true)
	var ee *client.ExecutionError
	if !errors.As(err, &ee) || ee.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 *ExecutionError", err)
	}
}

func TestRunMalformedBody(t *testing.T) {
	cf := &catalog.File{Protocols: []catalog.Entry{{Protocol: protocol.Protocol{ID: "p", Name: "P"}}}}
	h := New(cf).Handler()

	req := httptest.NewRequest(http.MethodPost, "/protocols/p/run", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("code = %d, want 422", rec.Code)
	}
}

func TestRunDefaultsToSimulate(t *testing.T) {
	cf := &catalog.File{Protocols: []catalog.Entry{{Protocol: protocol.Protocol{ID: "p", Name: "P"}}}}
	h := New(cf).Handler()

	req := httptest.NewRequest(http.MethodPost, "/protocols/p/run", strings.NewReader(`{"params": {}}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestRunLatency(t *testing.T) {
	c, _ := newTestClient(t, WithLatency(50*time.Millisecond))

	start := time.Now()
	if _, err := c.RunProtocol(context.Background(), "plate-wash", map[string]any{"cycles": 1}, true); err != nil {
		t.Fatalf("RunProtocol: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("elapsed = %v, want at least the configured latency", elapsed)
	}
}

func TestSimulateAppliesDefaults(t *testing.T) {
	cf, err := catalog.LoadFile("../../testdata/catalog/protocols.yaml")
	if err != nil {
		t.Fatal(err)
	}
	e, _ := cf.Find("serial-dilution")
	result := Simulate(e, map[string]any{"plate": "96"})
	if got := result.Results[0].Data["volume"]; got != 100.0 {
		t.Errorf("volume = %v, want schema default 100", got)
	}
}

func TestSubstituterEmbedded(t *testing.T) {
	s := newSubstituter(map[string]any{"rack": "B2", "n": 3.0})
	if got := s.text("rack {{rack}} x{{n}} {{missing}}"); got != "rack B2 x3 {{missing}}" {
		t.Errorf("text = %q", got)
	}
	if got := s.value("{{n}}"); got != 3.0 {
		t.Errorf("value = %v, want 3.0", got)
	}
	nested := s.value(map[string]any{"list": []any{"{{rack}}", 1.0}})
	want := map[string]any{"list": []any{"B2", 1.0}}
	if diff := cmp.Diff(want, nested); diff != "" {
		t.Errorf("nested mismatch (-want +got):\n%s", diff)
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(nil).ListenAndServe(ctx, "127.0.0.1:0")
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
