package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/catalog"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/form"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/run"
)

// protocolSummary is one listing row.
type protocolSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Params      []string `json:"params"`
	Required    []string `json:"required"`
}

// fieldInfo describes how a parameter is edited and validated.
type fieldInfo struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"`
	Control  string   `json:"control"`
	Required bool     `json:"required"`
	Default  any      `json:"default,omitempty"`
	Options  []string `json:"options,omitempty"`
	Minimum  *float64 `json:"minimum,omitempty"`
	Maximum  *float64 `json:"maximum,omitempty"`
}

// HandleList implements the protocols_list tool.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	tag, _ := args["tag"].(string)
	where, _ := args["where"].(string)

	filter, err := catalog.CompileFilter(where)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	ps, err := h.Service.ListProtocols(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("list protocols: %s", err)), nil
	}
	ps = catalog.Search(ps, catalog.Query{Text: query, Tag: tag})
	ps, err = filter.Apply(ps)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	out := make([]protocolSummary, 0, len(ps))
	for _, p := range ps {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		required := p.ParamsSchema.Required
		if required == nil {
			required = []string{}
		}
		out = append(out, protocolSummary{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Tags:        tags,
			Params:      p.ParamsSchema.Names(),
			Required:    required,
		})
	}
	return jsonResult(out, false)
}

// HandleGet implements the protocol_get tool.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, _ := args["id"].(string)
	if id == "" {
		return errorResult("id argument is required"), nil
	}
	p, err := h.lookup(ctx, id)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	plan := form.Interpret(p.ParamsSchema)
	fields := make([]fieldInfo, 0, plan.Len())
	for _, f := range plan.Fields {
		fi := fieldInfo{
			Name:     f.Name,
			Label:    f.Label,
			Kind:     f.Kind.String(),
			Control:  string(f.Control.Kind),
			Required: f.Required,
			Options:  f.Control.Options,
			Minimum:  f.Control.Min,
			Maximum:  f.Control.Max,
		}
		if f.HasDefault {
			fi.Default = f.Default
		}
		fields = append(fields, fi)
	}
	return jsonResult(map[string]any{
		"protocol": p,
		"fields":   fields,
	}, false)
}

// lookup fetches a protocol, suggesting near ids when it is unknown.
func (h *Handlers) lookup(ctx context.Context, id string) (*protocol.Protocol, error) {
	p, err := h.Service.GetProtocol(ctx, id)
	if !errors.Is(err, client.ErrNotFound) {
		return p, err
	}
	if ps, lerr := h.Service.ListProtocols(ctx); lerr == nil {
		if hints := catalog.Suggest(id, ps, 3); len(hints) > 0 {
			return nil, fmt.Errorf("%w; did you mean: %s", err, strings.Join(hints, ", "))
		}
	}
	return nil, err
}

// HandleRun implements the protocol_run tool. The run goes through a
// run.Controller so agents get the same validation and outcome messages as
// operators.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, _ := args["id"].(string)
	if id == "" {
		return errorResult("id argument is required"), nil
	}
	simulate := true // safe default for agents
	if v, ok := args["simulate"].(bool); ok {
		simulate = v
	}
	raw := map[string]any{}
	if v, ok := args["params"]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return errorResult(fmt.Sprintf("params must be an object, got %T", v)), nil
		}
		raw = m
	}

	p, err := h.lookup(ctx, id)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	plan := form.Interpret(p.ParamsSchema)
	values := plan.Defaults()
	for k, v := range raw {
		values[k] = v
	}

	ctrl := run.New(p.ID, h.Service,
		run.WithContext(ctx),
		run.WithTickInterval(h.TickInterval),
		run.WithSimulate(simulate),
		run.WithLogger(h.Logger),
	)
	defer ctrl.Close()

	err = ctrl.SubmitForm(plan, values)
	var fe form.FieldErrors
	if errors.As(err, &fe) {
		return jsonResult(map[string]any{"status": "invalid", "errors": fe}, true)
	}
	if err != nil {
		return errorResult(err.Error()), nil
	}
	ctrl.Wait()

	st := ctrl.State()
	response := map[string]any{
		"run_id":   st.RunID,
		"protocol": p.ID,
		"simulate": st.Simulate,
		"status":   st.Phase.String(),
	}
	if st.Phase == run.Error {
		response["error"] = st.ErrorMessage
	}
	if st.Result != nil {
		response["result"] = st.Result
		v := st.View()
		response["summary"] = map[string]int{
			"commands":  v.CommandCount,
			"succeeded": v.Succeeded,
			"failed":    v.Failed,
		}
	}
	return jsonResult(response, st.Phase == run.Error)
}

// HandleValidate implements the catalog_validate tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	cf, issues := catalog.ValidateFile(path)
	if catalog.HasErrors(issues) {
		return errorResult(formatIssues(issues)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d protocols)", path, len(cf.Protocols))
	if len(issues) > 0 {
		msg += "\n" + formatIssues(issues)
	}
	return textResult(msg), nil
}

// HandleSchema implements the schema tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	schemaType, _ := args["type"].(string)

	var data []byte
	var err error

	switch schemaType {
	case "protocol":
		data, err = protocol.GenerateProtocolJSONSchema()
	case "result":
		data, err = protocol.GenerateResultJSONSchema()
	case "catalog":
		data, err = catalog.GenerateJSONSchema()
	default:
		return errorResult(fmt.Sprintf("unknown schema type %q: use 'protocol', 'result' or 'catalog'", schemaType)), nil
	}

	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func formatIssues(issues []*catalog.Issue) string {
	msgs := make([]string, len(issues))
	for i, is := range issues {
		msgs[i] = fmt.Sprintf("%s: %s", is.Severity, is.Error())
	}
	return strings.Join(msgs, "\n")
}

func jsonResult(v any, isErr bool) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
