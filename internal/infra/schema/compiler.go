package schema

import (
	"go.uber.org/zap"

	"gqlmcpd/internal/domain"
)

// Compiler turns raw introspection payloads into type graphs. Malformed
// types and fields are skipped with a diagnostic; partial schemas compile
// rather than aborting.
type Compiler struct {
	logger *zap.Logger
}

func NewCompiler(logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{logger: logger.Named("compiler")}
}

// Compile builds an immutable TypeGraph from the payload.
func (c *Compiler) Compile(payload *SchemaPayload) (*domain.TypeGraph, error) {
	const op = "schema.Compile"

	if payload == nil {
		return nil, domain.E(domain.CodeSchema, op, "nil introspection payload", nil)
	}

	graph := &domain.TypeGraph{
		Types: make(map[string]*domain.TypeDefinition, len(payload.Types)),
	}

	graph.QueryType = domain.DefaultQueryRootName
	if payload.QueryType != nil && payload.QueryType.Name != "" {
		graph.QueryType = payload.QueryType.Name
	}
	if payload.MutationType != nil {
		graph.MutationType = payload.MutationType.Name
	}
	if payload.SubscriptionType != nil {
		graph.SubscriptionType = payload.SubscriptionType.Name
	}

	for _, raw := range payload.Types {
		if raw.Name == "" || raw.Kind == "" {
			c.logger.Warn("skipping type with missing name or kind",
				zap.String("name", raw.Name),
				zap.String("kind", raw.Kind))
			continue
		}
		if len(raw.Name) >= 2 && raw.Name[:2] == domain.ReservedFieldPrefix {
			continue
		}

		def := c.compileType(raw)
		if def == nil {
			continue
		}
		graph.Types[def.Name] = def
	}

	return graph, nil
}

func (c *Compiler) compileType(raw IntrospectionType) *domain.TypeDefinition {
	kind := domain.TypeKind(raw.Kind)

	def := &domain.TypeDefinition{
		Kind:        kind,
		Name:        raw.Name,
		Description: raw.Description,
	}

	switch kind {
	case domain.KindObject, domain.KindInterface:
		def.Fields = c.compileFields(raw)
	case domain.KindInputObject:
		def.InputFields = c.compileInputValues(raw.Name, raw.InputFields)
	case domain.KindEnum:
		for _, value := range raw.EnumValues {
			if value.Name == "" {
				continue
			}
			def.EnumValues = append(def.EnumValues, value.Name)
		}
	case domain.KindUnion:
		for _, possible := range raw.PossibleTypes {
			if possible.Name == "" {
				continue
			}
			def.PossibleTypes = append(def.PossibleTypes, possible.Name)
		}
	case domain.KindScalar:
		// Custom scalars keep their entry so field selections can classify
		// them as leaves; builtins are leaves by absence.
		if domain.IsBuiltinScalar(raw.Name) {
			return nil
		}
	default:
		c.logger.Warn("skipping type with unknown kind",
			zap.String("type", raw.Name),
			zap.String("kind", raw.Kind))
		return nil
	}

	return def
}

func (c *Compiler) compileFields(raw IntrospectionType) []domain.FieldDefinition {
	fields := make([]domain.FieldDefinition, 0, len(raw.Fields))
	for _, field := range raw.Fields {
		if field.Name == "" || field.Type == nil {
			c.logger.Warn("skipping field with missing name or type",
				zap.String("type", raw.Name),
				zap.String("field", field.Name))
			continue
		}
		fields = append(fields, domain.FieldDefinition{
			Name:        field.Name,
			Description: field.Description,
			Arguments:   c.compileInputValues(raw.Name, field.Args),
			Type:        unwrapRef(field.Type),
			Deprecated:  field.IsDeprecated,
		})
	}
	return fields
}

func (c *Compiler) compileInputValues(typeName string, raw []IntrospectionInput) []domain.InputValueDefinition {
	values := make([]domain.InputValueDefinition, 0, len(raw))
	for _, input := range raw {
		if input.Name == "" || input.Type == nil {
			c.logger.Warn("skipping input value with missing name or type",
				zap.String("type", typeName),
				zap.String("input", input.Name))
			continue
		}
		values = append(values, domain.InputValueDefinition{
			Name:        input.Name,
			Description: input.Description,
			Type:        unwrapRef(input.Type),
			Required:    domain.TypeKind(input.Type.Kind) == domain.KindNonNull,
		})
	}
	return values
}

// unwrapRef peels NON_NULL and LIST wrappers down to the named type and
// reconstructs the signature string, e.g. "[String!]!".
func unwrapRef(ref *IntrospectionRef) domain.TypeRef {
	signature := formatSignature(ref)
	inner := ref
	for inner.OfType != nil {
		kind := domain.TypeKind(inner.Kind)
		if kind != domain.KindNonNull && kind != domain.KindList {
			break
		}
		inner = inner.OfType
	}
	return domain.TypeRef{
		Kind:      domain.TypeKind(inner.Kind),
		Name:      inner.Name,
		Signature: signature,
	}
}

func formatSignature(ref *IntrospectionRef) string {
	if ref == nil {
		return ""
	}
	switch domain.TypeKind(ref.Kind) {
	case domain.KindNonNull:
		return formatSignature(ref.OfType) + "!"
	case domain.KindList:
		return "[" + formatSignature(ref.OfType) + "]"
	default:
		return ref.Name
	}
}
