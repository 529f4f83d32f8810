package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"gqlmcpd/internal/domain"
	"gqlmcpd/internal/infra/schema"
)

// ToolsListener is notified after the dynamic tool set changes. The
// gateway uses it to keep the advertised MCP tools in sync.
type ToolsListener interface {
	ApplyTools(templates []domain.OperationTemplate)
}

// Metrics receives registry gauge and counter updates.
type Metrics interface {
	SetRegisteredTools(endpointName string, count int)
	ObserveRegistration(endpointName string, err error)
}

// EndpointRegistry owns endpoint connection metadata and coordinates the
// register/refresh/unregister lifecycle against the tool registry.
type EndpointRegistry struct {
	logger       *zap.Logger
	introspector *schema.Introspector
	compiler     *schema.Compiler
	synthesizer  *schema.Synthesizer
	tools        *ToolRegistry
	metrics      Metrics

	names *namedLocks

	mu        sync.RWMutex
	endpoints map[string]domain.EndpointInfo
	graphs    map[string]*domain.TypeGraph
	stats     map[string]*domain.EndpointStats

	listenerMu sync.Mutex
	listener   ToolsListener
}

type EndpointRegistryOptions struct {
	Logger       *zap.Logger
	Introspector *schema.Introspector
	Compiler     *schema.Compiler
	Synthesizer  *schema.Synthesizer
	Tools        *ToolRegistry
	Metrics      Metrics
}

func NewEndpointRegistry(opts EndpointRegistryOptions) *EndpointRegistry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EndpointRegistry{
		logger:       logger.Named("endpoint_registry"),
		introspector: opts.Introspector,
		compiler:     opts.Compiler,
		synthesizer:  opts.Synthesizer,
		tools:        opts.Tools,
		metrics:      opts.Metrics,
		names:        newNamedLocks(),
		endpoints:    make(map[string]domain.EndpointInfo),
		graphs:       make(map[string]*domain.TypeGraph),
		stats:        make(map[string]*domain.EndpointStats),
	}
}

// SetToolsListener installs the listener notified on tool set changes.
func (r *EndpointRegistry) SetToolsListener(listener ToolsListener) {
	r.listenerMu.Lock()
	r.listener = listener
	r.listenerMu.Unlock()
}

// Register introspects the endpoint, compiles its schema, synthesizes one
// tool per root field, and swaps the endpoint's tool set atomically.
// Registering an existing name replaces it wholesale.
func (r *EndpointRegistry) Register(ctx context.Context, info domain.EndpointInfo) (int, error) {
	const op = "registry.Register"

	unlock := r.names.lock(info.Name)
	defer unlock()

	count, err := r.populate(ctx, op, info)
	if r.metrics != nil {
		r.metrics.ObserveRegistration(info.Name, err)
	}
	if err != nil {
		return 0, err
	}

	r.logger.Info("endpoint registered",
		zap.String("endpoint", info.Name),
		zap.String("url", info.URL),
		zap.Int("tools", count))
	return count, nil
}

// Refresh re-introspects a registered endpoint and atomically replaces its
// tools.
func (r *EndpointRegistry) Refresh(ctx context.Context, name string) (int, error) {
	const op = "registry.Refresh"

	unlock := r.names.lock(name)
	defer unlock()

	r.mu.RLock()
	info, ok := r.endpoints[name]
	r.mu.RUnlock()
	if !ok {
		return 0, domain.E(domain.CodeRegistration, op, "", domain.ErrEndpointNotFound)
	}

	count, err := r.populate(ctx, op, info)
	if err != nil {
		return 0, err
	}

	r.logger.Info("endpoint refreshed", zap.String("endpoint", name), zap.Int("tools", count))
	return count, nil
}

// Unregister removes the endpoint and all its tools in one logical step.
// Tools go first: a concurrent lookup may still resolve a template, but it
// must never find one whose endpoint is already gone.
func (r *EndpointRegistry) Unregister(name string) error {
	const op = "registry.Unregister"

	unlock := r.names.lock(name)
	defer unlock()

	r.mu.RLock()
	_, ok := r.endpoints[name]
	r.mu.RUnlock()
	if !ok {
		return domain.E(domain.CodeRegistration, op, "", domain.ErrEndpointNotFound)
	}

	removed := r.tools.RemoveAllForEndpoint(name)

	r.mu.Lock()
	delete(r.endpoints, name)
	delete(r.graphs, name)
	delete(r.stats, name)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetRegisteredTools(name, 0)
	}
	r.notifyListener()

	r.logger.Info("endpoint unregistered",
		zap.String("endpoint", name),
		zap.Int("tools_removed", len(removed)))
	return nil
}

// populate runs the introspect -> compile -> synthesize -> store pipeline.
// The caller must hold the endpoint's name lock.
func (r *EndpointRegistry) populate(ctx context.Context, op string, info domain.EndpointInfo) (int, error) {
	payload, err := r.introspector.Fetch(ctx, info)
	if err != nil {
		return 0, domain.Wrap(domain.CodeConnection, op, err)
	}

	graph, err := r.compiler.Compile(payload)
	if err != nil {
		return 0, domain.Wrap(domain.CodeSchema, op, err)
	}

	templates := r.synthesizeAll(info, graph)
	if len(templates) == 0 {
		return 0, domain.E(domain.CodeSchema, op, "", domain.ErrEmptySchema)
	}

	now := time.Now()
	r.mu.Lock()
	r.endpoints[info.Name] = info
	r.graphs[info.Name] = graph
	stat, ok := r.stats[info.Name]
	if !ok {
		stat = &domain.EndpointStats{RegisteredAt: now}
		r.stats[info.Name] = stat
	}
	stat.LastIntrospection = now
	stat.ToolCount = len(templates)
	r.mu.Unlock()

	r.tools.ReplaceForEndpoint(info.Name, templates)
	if r.metrics != nil {
		r.metrics.SetRegisteredTools(info.Name, len(templates))
	}
	r.notifyListener()

	return len(templates), nil
}

// synthesizeAll generates templates for the query root and, when the
// endpoint allows it, the mutation root. A field that fails synthesis is
// logged and skipped; it never aborts the rest of the endpoint.
func (r *EndpointRegistry) synthesizeAll(info domain.EndpointInfo, graph *domain.TypeGraph) []domain.OperationTemplate {
	var templates []domain.OperationTemplate

	appendFields := func(root *domain.TypeDefinition, kind domain.OperationKind) {
		if root == nil {
			return
		}
		for _, field := range root.Fields {
			template, err := r.synthesizer.Synthesize(field, kind, info, graph)
			if err != nil {
				r.logger.Warn("skipping field that failed synthesis",
					zap.String("endpoint", info.Name),
					zap.String("field", field.Name),
					zap.Error(err))
				continue
			}
			templates = append(templates, template)
		}
	}

	appendFields(graph.QueryRoot(), domain.OperationQuery)
	if info.AllowMutations {
		appendFields(graph.MutationRoot(), domain.OperationMutation)
	}
	return templates
}

// Get returns the endpoint metadata stored under name.
func (r *EndpointRegistry) Get(name string) (domain.EndpointInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.endpoints[name]
	return info, ok
}

// List returns all registered endpoints sorted by name.
func (r *EndpointRegistry) List() []domain.EndpointInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	endpoints := make([]domain.EndpointInfo, 0, len(r.endpoints))
	for _, info := range r.endpoints {
		endpoints = append(endpoints, info)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].Name < endpoints[j].Name
	})
	return endpoints
}

// TypeGraph returns the cached compiled schema for an endpoint.
func (r *EndpointRegistry) TypeGraph(name string) (*domain.TypeGraph, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	graph, ok := r.graphs[name]
	return graph, ok
}

// Stats returns a copy of the endpoint's counters.
func (r *EndpointRegistry) Stats(name string) (domain.EndpointStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stat, ok := r.stats[name]
	if !ok {
		return domain.EndpointStats{}, false
	}
	copied := *stat
	copied.ToolCount = r.tools.CountForEndpoint(name)
	return copied, true
}

// RecordAccess bumps the endpoint's access counters.
func (r *EndpointRegistry) RecordAccess(name string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stat, ok := r.stats[name]
	if !ok {
		return
	}
	stat.LastAccessed = time.Now()
	stat.AccessCount++
	if success {
		stat.SuccessCount++
	} else {
		stat.ErrorCount++
	}
}

func (r *EndpointRegistry) notifyListener() {
	r.listenerMu.Lock()
	listener := r.listener
	r.listenerMu.Unlock()
	if listener != nil {
		listener.ApplyTools(r.tools.Templates())
	}
}
