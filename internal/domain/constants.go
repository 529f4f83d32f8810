package domain

const (
	DefaultMaxDepth                   = 3
	DefaultRequestTimeoutSeconds      = 30
	DefaultBatchTimeoutSeconds        = 30
	DefaultBatchConcurrency           = 5
	DefaultBootstrapConcurrency       = 3
	DefaultObservabilityListenAddress = "127.0.0.1:9464"

	// ReservedFieldPrefix marks GraphQL introspection types and fields,
	// which are never compiled into the type graph or selections.
	ReservedFieldPrefix = "__"

	// DefaultQueryRootName is assumed when introspection omits queryType.
	DefaultQueryRootName = "Query"
)

// BuiltinScalars are GraphQL's predefined scalar type names.
var BuiltinScalars = map[string]struct{}{
	"String":  {},
	"Int":     {},
	"Float":   {},
	"Boolean": {},
	"ID":      {},
}

// IsBuiltinScalar reports whether name is one of GraphQL's builtin scalars.
func IsBuiltinScalar(name string) bool {
	_, ok := BuiltinScalars[name]
	return ok
}
