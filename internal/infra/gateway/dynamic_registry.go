package gateway

import (
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"gqlmcpd/internal/domain"
)

// dynamicRegistry mirrors the tool registry's current templates onto the
// MCP server. ApplyTools diffs against the previously advertised set so a
// refresh only touches the tools that actually changed.
type dynamicRegistry struct {
	server     *mcp.Server
	handler    func(name string) mcp.ToolHandler
	logger     *zap.Logger
	mu         sync.Mutex
	registered map[string]struct{}
}

func newDynamicRegistry(server *mcp.Server, handler func(name string) mcp.ToolHandler, logger *zap.Logger) *dynamicRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dynamicRegistry{
		server:     server,
		handler:    handler,
		logger:     logger.Named("dynamic_registry"),
		registered: make(map[string]struct{}),
	}
}

func (r *dynamicRegistry) ApplyTools(templates []domain.OperationTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]struct{}, len(templates))
	for _, tmpl := range templates {
		if tmpl.ToolName == "" {
			continue
		}
		schema := tmpl.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tool := mcp.Tool{
			Name:        tmpl.ToolName,
			Description: tmpl.Description,
			InputSchema: schema,
		}
		r.server.AddTool(&tool, r.handler(tool.Name))
		next[tool.Name] = struct{}{}
	}

	var remove []string
	for name := range r.registered {
		if _, ok := next[name]; !ok {
			remove = append(remove, name)
		}
	}
	if len(remove) > 0 {
		r.server.RemoveTools(remove...)
		r.logger.Debug("removed stale tools", zap.Int("count", len(remove)))
	}

	r.registered = next
}
