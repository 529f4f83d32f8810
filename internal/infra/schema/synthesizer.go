package schema

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gqlmcpd/internal/domain"
)

// Synthesizer turns root fields into executable operation templates.
// Selection depth is bounded by MaxDepth; a long acyclic chain is truncated
// the same way a true cycle is.
type Synthesizer struct {
	logger            *zap.Logger
	maxDepth          int
	includeAllScalars bool
}

type SynthesizerOptions struct {
	Logger *zap.Logger
	// MaxDepth bounds the nested selection depth. Nil means
	// DefaultMaxDepth; an explicit zero suppresses selections entirely.
	MaxDepth          *int
	IncludeAllScalars *bool
}

func NewSynthesizer(opts SynthesizerOptions) *Synthesizer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxDepth := domain.DefaultMaxDepth
	if opts.MaxDepth != nil && *opts.MaxDepth >= 0 {
		maxDepth = *opts.MaxDepth
	}
	includeAllScalars := true
	if opts.IncludeAllScalars != nil {
		includeAllScalars = *opts.IncludeAllScalars
	}
	return &Synthesizer{
		logger:            logger.Named("synthesizer"),
		maxDepth:          maxDepth,
		includeAllScalars: includeAllScalars,
	}
}

// Synthesize produces the operation template for one root field.
func (s *Synthesizer) Synthesize(field domain.FieldDefinition, kind domain.OperationKind, endpoint domain.EndpointInfo, graph *domain.TypeGraph) (domain.OperationTemplate, error) {
	const op = "schema.Synthesize"

	if field.Name == "" {
		return domain.OperationTemplate{}, domain.E(domain.CodeSynthesis, op, "field has no name", nil)
	}
	if strings.HasPrefix(field.Name, domain.ReservedFieldPrefix) {
		return domain.OperationTemplate{}, domain.E(domain.CodeSynthesis, op,
			fmt.Sprintf("field %q uses the reserved prefix", field.Name), nil)
	}

	operationName := operationNameFor(kind, field.Name)

	var sb strings.Builder
	sb.WriteString(string(kind))
	sb.WriteString(" ")
	sb.WriteString(operationName)
	if len(field.Arguments) > 0 {
		sb.WriteString("(")
		for i, arg := range field.Arguments {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(arg.Name)
			sb.WriteString(": ")
			sb.WriteString(arg.Type.Signature)
		}
		sb.WriteString(")")
	}
	sb.WriteString(" { ")
	sb.WriteString(field.Name)
	if len(field.Arguments) > 0 {
		sb.WriteString("(")
		for i, arg := range field.Arguments {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(arg.Name)
			sb.WriteString(": $")
			sb.WriteString(arg.Name)
		}
		sb.WriteString(")")
	}

	selection := s.buildSelection(field.Type, graph, 0)
	if selection != "" {
		sb.WriteString(" ")
		sb.WriteString(selection)
	}
	sb.WriteString(" }")

	return domain.OperationTemplate{
		ToolName:        ToolName(endpoint.ToolPrefix, kind, field.Name),
		EndpointName:    endpoint.Name,
		OperationKind:   kind,
		OperationName:   operationName,
		OperationString: sb.String(),
		Description:     describeField(field, kind, endpoint),
		SourceField:     field.Name,
		InputSchema:     inputSchemaFor(field.Arguments),
	}, nil
}

// buildSelection emits a depth-bounded nested field selection for the
// given return type. It returns "" when the type needs no selection or
// recursion bottomed out before any field was emitted.
func (s *Synthesizer) buildSelection(ref domain.TypeRef, graph *domain.TypeGraph, depth int) string {
	if graph == nil {
		return ""
	}
	def := graph.Types[ref.Name]
	if def == nil {
		return ""
	}
	if def.Kind != domain.KindObject && def.Kind != domain.KindInterface {
		return ""
	}
	if depth >= s.maxDepth {
		return ""
	}

	var emitted []string
	for _, field := range def.Fields {
		if strings.HasPrefix(field.Name, domain.ReservedFieldPrefix) {
			continue
		}
		nested := graph.Types[field.Type.Name]
		isLeaf := nested == nil || (nested.Kind != domain.KindObject && nested.Kind != domain.KindInterface)
		if isLeaf {
			if s.includeAllScalars {
				emitted = append(emitted, field.Name)
			}
			continue
		}
		inner := s.buildSelection(field.Type, graph, depth+1)
		if inner == "" {
			continue
		}
		emitted = append(emitted, field.Name+" "+inner)
	}

	if len(emitted) == 0 {
		return ""
	}
	return "{ " + strings.Join(emitted, " ") + " }"
}

// ToolName derives the globally unique tool name for a root field. The
// prefix segment is omitted when the endpoint declares none.
func ToolName(prefix string, kind domain.OperationKind, fieldName string) string {
	base := string(kind) + "_" + toCamelCase(fieldName)
	if prefix == "" {
		return base
	}
	return prefix + "_" + base
}

func operationNameFor(kind domain.OperationKind, fieldName string) string {
	switch kind {
	case domain.OperationMutation:
		return "Mutation_" + fieldName
	default:
		return "Query_" + fieldName
	}
}

func describeField(field domain.FieldDefinition, kind domain.OperationKind, endpoint domain.EndpointInfo) string {
	if field.Description != "" {
		return field.Description
	}
	return fmt.Sprintf("Execute GraphQL %s %s against endpoint %q", kind, field.Name, endpoint.Name)
}

func toCamelCase(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return name
	}
	var sb strings.Builder
	for i, part := range parts {
		if i == 0 {
			sb.WriteString(strings.ToLower(part[:1]) + part[1:])
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return sb.String()
}

// inputSchemaFor maps GraphQL argument types onto a JSON schema object for
// the generated tool.
func inputSchemaFor(args []domain.InputValueDefinition) map[string]any {
	properties := make(map[string]any, len(args))
	required := []string{}
	for _, arg := range args {
		properties[arg.Name] = jsonSchemaFor(arg)
		if arg.Required {
			required = append(required, arg.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func jsonSchemaFor(arg domain.InputValueDefinition) map[string]any {
	schema := map[string]any{}
	if arg.Description != "" {
		schema["description"] = arg.Description
	}

	signature := strings.TrimSuffix(arg.Type.Signature, "!")
	if strings.HasPrefix(signature, "[") {
		schema["type"] = "array"
		schema["items"] = map[string]any{"type": jsonType(arg.Type)}
		return schema
	}
	schema["type"] = jsonType(arg.Type)
	return schema
}

func jsonType(ref domain.TypeRef) string {
	switch ref.Kind {
	case domain.KindEnum:
		return "string"
	case domain.KindInputObject, domain.KindObject:
		return "object"
	}
	switch ref.Name {
	case "String", "ID":
		return "string"
	case "Int", "Float":
		return "number"
	case "Boolean":
		return "boolean"
	default:
		return "string"
	}
}
