package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"gqlmcpd/internal/buildinfo"
	"gqlmcpd/internal/domain"
	"gqlmcpd/internal/infra/batch"
	"gqlmcpd/internal/infra/registry"
	"gqlmcpd/internal/infra/transport"
)

// Gateway is the MCP server surface. It exposes the static endpoint
// management tools plus one dynamic tool per synthesized GraphQL operation,
// kept in sync with the tool registry through the dynamic registrar.
type Gateway struct {
	logger         *zap.Logger
	server         *mcp.Server
	endpoints      *registry.EndpointRegistry
	tools          *registry.ToolRegistry
	engine         *batch.Engine
	client         *transport.Client
	dynamic        *dynamicRegistry
	requestTimeout time.Duration
	batchTimeout   time.Duration
}

type Options struct {
	Logger         *zap.Logger
	Endpoints      *registry.EndpointRegistry
	Tools          *registry.ToolRegistry
	Engine         *batch.Engine
	Client         *transport.Client
	RequestTimeout time.Duration
	BatchTimeout   time.Duration
}

func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = domain.DefaultRequestTimeoutSeconds * time.Second
	}
	batchTimeout := opts.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = domain.DefaultBatchTimeoutSeconds * time.Second
	}

	g := &Gateway{
		logger:         logger.Named("gateway"),
		endpoints:      opts.Endpoints,
		tools:          opts.Tools,
		engine:         opts.Engine,
		client:         opts.Client,
		requestTimeout: requestTimeout,
		batchTimeout:   batchTimeout,
	}

	g.server = mcp.NewServer(&mcp.Implementation{
		Name:    "gqlmcpd",
		Version: buildinfo.Version,
	}, &mcp.ServerOptions{
		HasTools: true,
	})

	g.server.AddTool(toolPtr(RegisterEndpointTool()), g.handleRegisterEndpoint)
	g.server.AddTool(toolPtr(UnregisterEndpointTool()), g.handleUnregisterEndpoint)
	g.server.AddTool(toolPtr(RefreshEndpointTool()), g.handleRefreshEndpoint)
	g.server.AddTool(toolPtr(ListDynamicToolsTool()), g.handleListDynamicTools)
	g.server.AddTool(toolPtr(EndpointStatsTool()), g.handleEndpointStats)
	g.server.AddTool(toolPtr(IntrospectSchemaTool()), g.handleIntrospectSchema)
	g.server.AddTool(toolPtr(ExecuteBatchTool()), g.handleExecuteBatch)

	g.dynamic = newDynamicRegistry(g.server, g.dynamicHandler, logger)
	if g.endpoints != nil {
		g.endpoints.SetToolsListener(g.dynamic)
	}
	if g.tools != nil {
		g.dynamic.ApplyTools(g.tools.Templates())
	}

	return g
}

// Run serves MCP over stdio until the context is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("gateway starting (stdio transport)")
	return g.Serve(ctx, &mcp.StdioTransport{})
}

// Serve runs the MCP server over an arbitrary transport.
func (g *Gateway) Serve(ctx context.Context, t mcp.Transport) error {
	return g.server.Run(ctx, t)
}

type registerEndpointArgs struct {
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers"`
	AllowMutations bool              `json:"allowMutations"`
	ToolPrefix     string            `json:"toolPrefix"`
}

func (g *Gateway) handleRegisterEndpoint(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args registerEndpointArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Name == "" || args.URL == "" {
		return errorResult(errors.New("name and url are required")), nil
	}

	info := domain.EndpointInfo{
		Name:           args.Name,
		URL:            args.URL,
		Headers:        args.Headers,
		AllowMutations: args.AllowMutations,
		ToolPrefix:     args.ToolPrefix,
	}
	count, err := g.endpoints.Register(ctx, info)
	if err != nil {
		return errorResult(err), nil
	}

	return jsonResult(
		fmt.Sprintf("registered endpoint %q with %d tools", args.Name, count),
		map[string]any{
			"endpoint":  args.Name,
			"url":       args.URL,
			"toolCount": count,
		},
	)
}

type endpointNameArgs struct {
	Name string `json:"name"`
}

func (g *Gateway) handleUnregisterEndpoint(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args endpointNameArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Name == "" {
		return errorResult(errors.New("name is required")), nil
	}
	if err := g.endpoints.Unregister(args.Name); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(
		fmt.Sprintf("unregistered endpoint %q", args.Name),
		map[string]any{"endpoint": args.Name},
	)
}

func (g *Gateway) handleRefreshEndpoint(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args endpointNameArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Name == "" {
		return errorResult(errors.New("name is required")), nil
	}
	count, err := g.endpoints.Refresh(ctx, args.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(
		fmt.Sprintf("refreshed endpoint %q, %d tools", args.Name, count),
		map[string]any{"endpoint": args.Name, "toolCount": count},
	)
}

type listToolsArgs struct {
	Endpoint string `json:"endpoint"`
}

func (g *Gateway) handleListDynamicTools(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args listToolsArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	all := g.tools.ListAll()
	summaries := all
	if args.Endpoint != "" {
		summaries = summaries[:0:0]
		for _, summary := range all {
			if summary.EndpointName == args.Endpoint {
				summaries = append(summaries, summary)
			}
		}
	}

	return jsonResult(
		fmt.Sprintf("%d tools", len(summaries)),
		map[string]any{"tools": summaries, "count": len(summaries)},
	)
}

func (g *Gateway) handleEndpointStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args endpointNameArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	if args.Name != "" {
		stats, ok := g.endpoints.Stats(args.Name)
		if !ok {
			return errorResult(fmt.Errorf("%w: %s", domain.ErrEndpointNotFound, args.Name)), nil
		}
		return jsonResult(
			fmt.Sprintf("stats for endpoint %q", args.Name),
			map[string]any{args.Name: stats},
		)
	}

	infos := g.endpoints.List()
	all := make(map[string]domain.EndpointStats, len(infos))
	for _, info := range infos {
		if stats, ok := g.endpoints.Stats(info.Name); ok {
			all[info.Name] = stats
		}
	}
	return jsonResult(
		fmt.Sprintf("stats for %d endpoints", len(all)),
		all,
	)
}

type introspectSchemaArgs struct {
	Name     string `json:"name"`
	TypeName string `json:"typeName"`
}

type schemaDescription struct {
	Endpoint     string           `json:"endpoint"`
	QueryType    string           `json:"queryType,omitempty"`
	MutationType string           `json:"mutationType,omitempty"`
	Types        []schemaTypeView `json:"types"`
}

type schemaTypeView struct {
	Name          string            `json:"name"`
	Kind          domain.TypeKind   `json:"kind"`
	Description   string            `json:"description,omitempty"`
	Fields        []schemaFieldView `json:"fields,omitempty"`
	InputFields   []schemaArgView   `json:"inputFields,omitempty"`
	EnumValues    []string          `json:"enumValues,omitempty"`
	PossibleTypes []string          `json:"possibleTypes,omitempty"`
}

type schemaFieldView struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Arguments   []schemaArgView `json:"arguments,omitempty"`
	Deprecated  bool            `json:"deprecated,omitempty"`
}

type schemaArgView struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// handleIntrospectSchema serves schema descriptions from the compiled
// graph cached at registration time; it never re-contacts the endpoint.
func (g *Gateway) handleIntrospectSchema(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args introspectSchemaArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Name == "" {
		return errorResult(errors.New("name is required")), nil
	}

	graph, ok := g.endpoints.TypeGraph(args.Name)
	if !ok {
		return errorResult(fmt.Errorf("%w: %s", domain.ErrEndpointNotFound, args.Name)), nil
	}

	description := schemaDescription{
		Endpoint:     args.Name,
		QueryType:    graph.QueryType,
		MutationType: graph.MutationType,
	}

	if args.TypeName != "" {
		def, found := graph.Types[args.TypeName]
		if !found {
			return errorResult(fmt.Errorf("endpoint %q has no type %q", args.Name, args.TypeName)), nil
		}
		description.Types = []schemaTypeView{describeType(def)}
		return jsonResult(
			fmt.Sprintf("type %q on endpoint %q", args.TypeName, args.Name),
			description,
		)
	}

	names := make([]string, 0, len(graph.Types))
	for name := range graph.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	description.Types = make([]schemaTypeView, 0, len(names))
	for _, name := range names {
		description.Types = append(description.Types, describeType(graph.Types[name]))
	}

	return jsonResult(
		fmt.Sprintf("schema of endpoint %q, %d types", args.Name, len(description.Types)),
		description,
	)
}

func describeType(def *domain.TypeDefinition) schemaTypeView {
	view := schemaTypeView{
		Name:          def.Name,
		Kind:          def.Kind,
		Description:   def.Description,
		EnumValues:    def.EnumValues,
		PossibleTypes: def.PossibleTypes,
	}
	for _, field := range def.Fields {
		fieldView := schemaFieldView{
			Name:        field.Name,
			Type:        field.Type.Signature,
			Description: field.Description,
			Deprecated:  field.Deprecated,
		}
		for _, arg := range field.Arguments {
			fieldView.Arguments = append(fieldView.Arguments, schemaArgView{
				Name:     arg.Name,
				Type:     arg.Type.Signature,
				Required: arg.Required,
			})
		}
		view.Fields = append(view.Fields, fieldView)
	}
	for _, input := range def.InputFields {
		view.InputFields = append(view.InputFields, schemaArgView{
			Name:     input.Name,
			Type:     input.Type.Signature,
			Required: input.Required,
		})
	}
	return view
}

type executeBatchArgs struct {
	Operations      []domain.BatchRequest `json:"operations"`
	ExecutionMode   string                `json:"executionMode"`
	ContinueOnError *bool                 `json:"continueOnError"`
	TimeoutSeconds  int                   `json:"timeoutSeconds"`
}

func (g *Gateway) handleExecuteBatch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args executeBatchArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if len(args.Operations) == 0 {
		return errorResult(errors.New("operations must not be empty")), nil
	}

	mode := domain.ModeParallel
	switch args.ExecutionMode {
	case "", string(domain.ModeParallel):
	case string(domain.ModeSequential):
		mode = domain.ModeSequential
	default:
		return errorResult(fmt.Errorf("unknown execution mode %q", args.ExecutionMode)), nil
	}

	continueOnError := true
	if args.ContinueOnError != nil {
		continueOnError = *args.ContinueOnError
	}

	timeout := g.batchTimeout
	if args.TimeoutSeconds > 0 {
		timeout = time.Duration(args.TimeoutSeconds) * time.Second
	}

	response, err := g.engine.Execute(ctx, args.Operations, mode, continueOnError, timeout)
	if err != nil {
		raw, marshalErr := json.MarshalIndent(response, "", "  ")
		if marshalErr != nil {
			return errorResult(err), nil
		}
		return &mcp.CallToolResult{
			IsError:           true,
			Content:           []mcp.Content{&mcp.TextContent{Text: string(raw)}},
			StructuredContent: response,
		}, nil
	}

	return jsonResult(
		fmt.Sprintf("executed %d operations, %d failed",
			response.Summary.TotalOperations, response.Summary.Failed),
		response,
	)
}

// dynamicHandler builds the handler for one synthesized operation tool. The
// template is looked up at call time so refreshes take effect without
// re-binding handlers.
func (g *Gateway) dynamicHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tmpl, ok := g.tools.Lookup(name)
		if !ok {
			return errorResult(fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)), nil
		}
		endpoint, ok := g.endpoints.Get(tmpl.EndpointName)
		if !ok {
			return errorResult(fmt.Errorf("%w: %s", domain.ErrEndpointNotFound, tmpl.EndpointName)), nil
		}
		if tmpl.OperationKind == domain.OperationMutation && !endpoint.AllowMutations {
			return errorResult(fmt.Errorf("%w: %s", domain.ErrMutationsDisabled, endpoint.Name)), nil
		}

		var variables map[string]any
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &variables); err != nil {
				return errorResult(fmt.Errorf("decode arguments: %w", err)), nil
			}
		}

		result, err := g.client.Execute(ctx, endpoint.URL, endpoint.Headers, transport.Request{
			Query:         tmpl.OperationString,
			Variables:     variables,
			OperationName: tmpl.OperationName,
		}, g.requestTimeout)

		success := err == nil && result != nil && len(result.Errors) == 0
		g.endpoints.RecordAccess(tmpl.EndpointName, success)

		if err != nil {
			return errorResult(err), nil
		}
		if len(result.Errors) > 0 {
			return errorResult(errors.New(result.ErrorText())), nil
		}
		return dataResult(result.Data)
	}
}

func decodeArgs(req *mcp.CallToolRequest, out any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, out); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

func jsonResult(text string, structured any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(structured, "", "  ")
	if err != nil {
		return nil, err
	}
	if text == "" {
		text = string(raw)
	} else {
		text = text + "\n" + string(raw)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: structured,
	}, nil
}

func dataResult(data json.RawMessage) (*mcp.CallToolResult, error) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	var pretty bytes.Buffer
	text := string(data)
	if err := json.Indent(&pretty, data, "", "  "); err == nil {
		text = pretty.String()
	}
	var structured any
	_ = json.Unmarshal(data, &structured)
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: structured,
	}, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %s", err.Error())},
		},
	}
}

func toolPtr(tool mcp.Tool) *mcp.Tool {
	return &tool
}
