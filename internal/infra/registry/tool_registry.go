package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"gqlmcpd/internal/domain"
)

// ToolRegistry stores one operation template per generated tool name, with
// a secondary endpoint index so endpoint-scoped operations never scan the
// whole registry.
type ToolRegistry struct {
	logger     *zap.Logger
	mu         sync.RWMutex
	templates  map[string]domain.OperationTemplate
	byEndpoint map[string][]string
}

func NewToolRegistry(logger *zap.Logger) *ToolRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolRegistry{
		logger:     logger.Named("tool_registry"),
		templates:  make(map[string]domain.OperationTemplate),
		byEndpoint: make(map[string][]string),
	}
}

// Register stores a template under its tool name. A colliding name is
// overwritten, never silently dropped; the endpoint index is de-duplicated
// so re-registration cannot double an entry.
func (r *ToolRegistry) Register(template domain.OperationTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(template)
}

func (r *ToolRegistry) registerLocked(template domain.OperationTemplate) {
	name := template.ToolName
	if prev, ok := r.templates[name]; ok && prev.EndpointName != template.EndpointName {
		r.logger.Warn("tool name collision across endpoints, overwriting",
			zap.String("tool", name),
			zap.String("previous_endpoint", prev.EndpointName),
			zap.String("endpoint", template.EndpointName))
		r.removeFromIndexLocked(prev.EndpointName, name)
	}
	r.templates[name] = template

	for _, existing := range r.byEndpoint[template.EndpointName] {
		if existing == name {
			return
		}
	}
	r.byEndpoint[template.EndpointName] = append(r.byEndpoint[template.EndpointName], name)
}

// ReplaceForEndpoint swaps the endpoint's whole tool set in one critical
// section, so a concurrent lookup never observes the cleared-but-not-yet-
// repopulated state. It returns the names removed by the swap.
func (r *ToolRegistry) ReplaceForEndpoint(endpointName string, templates []domain.OperationTemplate) (removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]struct{}, len(templates))
	for _, template := range templates {
		next[template.ToolName] = struct{}{}
	}
	for _, name := range r.byEndpoint[endpointName] {
		if _, keep := next[name]; !keep {
			delete(r.templates, name)
			removed = append(removed, name)
		}
	}
	delete(r.byEndpoint, endpointName)

	for _, template := range templates {
		r.registerLocked(template)
	}
	return removed
}

// Lookup returns the template stored under name.
func (r *ToolRegistry) Lookup(name string) (domain.OperationTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	template, ok := r.templates[name]
	return template, ok
}

// RemoveAllForEndpoint drops every template whose endpoint matches, via the
// secondary index. Returns the removed names.
func (r *ToolRegistry) RemoveAllForEndpoint(endpointName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := r.byEndpoint[endpointName]
	for _, name := range names {
		delete(r.templates, name)
	}
	delete(r.byEndpoint, endpointName)
	return names
}

// CountForEndpoint reports the endpoint's tool count from the index.
func (r *ToolRegistry) CountForEndpoint(endpointName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEndpoint[endpointName])
}

// ListAll enumerates every registered tool, sorted by tool name.
func (r *ToolRegistry) ListAll() []domain.ToolSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]domain.ToolSummary, 0, len(r.templates))
	for _, template := range r.templates {
		summaries = append(summaries, domain.ToolSummary{
			EndpointName:  template.EndpointName,
			ToolName:      template.ToolName,
			OperationKind: template.OperationKind,
			Description:   template.Description,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ToolName < summaries[j].ToolName
	})
	return summaries
}

// Templates returns a snapshot of every stored template.
func (r *ToolRegistry) Templates() []domain.OperationTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	templates := make([]domain.OperationTemplate, 0, len(r.templates))
	for _, template := range r.templates {
		templates = append(templates, template)
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].ToolName < templates[j].ToolName
	})
	return templates
}

func (r *ToolRegistry) removeFromIndexLocked(endpointName, toolName string) {
	names := r.byEndpoint[endpointName]
	for i, name := range names {
		if name == toolName {
			r.byEndpoint[endpointName] = append(names[:i], names[i+1:]...)
			break
		}
	}
	if len(r.byEndpoint[endpointName]) == 0 {
		delete(r.byEndpoint, endpointName)
	}
}
