package domain

import (
	"errors"
	"time"
)

// TypeKind is the closed set of GraphQL type kinds surfaced by introspection.
type TypeKind string

const (
	KindScalar      TypeKind = "SCALAR"
	KindObject      TypeKind = "OBJECT"
	KindInterface   TypeKind = "INTERFACE"
	KindUnion       TypeKind = "UNION"
	KindEnum        TypeKind = "ENUM"
	KindInputObject TypeKind = "INPUT_OBJECT"
	KindNonNull     TypeKind = "NON_NULL"
	KindList        TypeKind = "LIST"
)

// OperationKind distinguishes query and mutation tools. Subscriptions are
// out of scope.
type OperationKind string

const (
	OperationQuery    OperationKind = "query"
	OperationMutation OperationKind = "mutation"
)

// ExecutionMode selects how a batch runs its operations.
type ExecutionMode string

const (
	// ModeSequential runs operations one at a time, in order, with result
	// chaining between them.
	ModeSequential ExecutionMode = "sequential"

	// ModeParallel runs operations concurrently with bounded parallelism.
	// Ordering is restored in the result list by index.
	ModeParallel ExecutionMode = "parallel"
)

// EndpointInfo holds the connection metadata for one registered GraphQL
// endpoint. Owned exclusively by the endpoint registry; replaced wholesale
// on refresh.
type EndpointInfo struct {
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers,omitempty"`
	AllowMutations bool              `json:"allowMutations"`
	ToolPrefix     string            `json:"toolPrefix,omitempty"`
}

// TypeGraph is the compiled view of one endpoint's schema. Immutable once
// compiled; refresh swaps the whole value.
type TypeGraph struct {
	Types            map[string]*TypeDefinition
	QueryType        string
	MutationType     string
	SubscriptionType string
}

// QueryRoot returns the query root type definition, if present.
func (g *TypeGraph) QueryRoot() *TypeDefinition {
	if g == nil || g.QueryType == "" {
		return nil
	}
	return g.Types[g.QueryType]
}

// MutationRoot returns the mutation root type definition, if present.
func (g *TypeGraph) MutationRoot() *TypeDefinition {
	if g == nil || g.MutationType == "" {
		return nil
	}
	return g.Types[g.MutationType]
}

// TypeDefinition describes one named type in the graph. Fields is populated
// for OBJECT and INTERFACE kinds only.
type TypeDefinition struct {
	Kind          TypeKind
	Name          string
	Description   string
	Fields        []FieldDefinition
	InputFields   []InputValueDefinition
	EnumValues    []string
	PossibleTypes []string
}

// FieldDefinition is one field on an object or interface type.
type FieldDefinition struct {
	Name        string
	Description string
	Arguments   []InputValueDefinition
	Type        TypeRef
	Deprecated  bool
}

// InputValueDefinition is a field argument or an input-object field.
type InputValueDefinition struct {
	Name        string
	Description string
	Type        TypeRef
	Required    bool
}

// TypeRef is an unwrapped type reference: the underlying named type plus
// the reconstructed signature, e.g. "[String!]!".
type TypeRef struct {
	Kind      TypeKind
	Name      string
	Signature string
}

// OperationTemplate is one generated tool: a parameterized GraphQL
// operation plus the metadata needed to execute it.
type OperationTemplate struct {
	ToolName        string         `json:"toolName"`
	EndpointName    string         `json:"endpointName"`
	OperationKind   OperationKind  `json:"operationKind"`
	OperationName   string         `json:"operationName"`
	OperationString string         `json:"operationString"`
	Description     string         `json:"description,omitempty"`
	SourceField     string         `json:"sourceField"`
	InputSchema     map[string]any `json:"-"`
}

// ToolSummary is the listing shape returned by list_dynamic_tools.
type ToolSummary struct {
	EndpointName  string        `json:"endpointName"`
	ToolName      string        `json:"toolName"`
	OperationKind OperationKind `json:"operationKind"`
	Description   string        `json:"description,omitempty"`
}

// EndpointStats tracks per-endpoint access counters.
type EndpointStats struct {
	RegisteredAt      time.Time `json:"registeredAt"`
	LastAccessed      time.Time `json:"lastAccessed,omitzero"`
	LastIntrospection time.Time `json:"lastIntrospection,omitzero"`
	AccessCount       int64     `json:"accessCount"`
	SuccessCount      int64     `json:"successCount"`
	ErrorCount        int64     `json:"errorCount"`
	ToolCount         int       `json:"toolCount"`
}

// BatchRequest is one operation inside a batch call.
type BatchRequest struct {
	Endpoint  string         `json:"endpoint"`
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
	Name      string         `json:"name,omitempty"`
}

// BatchResult is the per-operation outcome. The result list handed back to
// the caller is always sorted by Index.
type BatchResult struct {
	Name          string         `json:"name"`
	Index         int            `json:"index"`
	Success       bool           `json:"success"`
	Data          any            `json:"data,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime time.Duration  `json:"executionTime"`
	Endpoint      string         `json:"endpoint"`
	Query         string         `json:"query,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// BatchSummary aggregates one batch run.
type BatchSummary struct {
	BatchID         string        `json:"batchId"`
	TotalOperations int           `json:"totalOperations"`
	Successful      int           `json:"successfulOperations"`
	Failed          int           `json:"failedOperations"`
	ExecutionMode   ExecutionMode `json:"executionMode"`
	ContinueOnError bool          `json:"continueOnError"`
	StartedAt       time.Time     `json:"startedAt"`
	CompletedAt     time.Time     `json:"completedAt"`
	WallTime        time.Duration `json:"wallTime"`
}

// BatchResponse is the full batch execution result.
type BatchResponse struct {
	Results []BatchResult `json:"results"`
	Summary BatchSummary  `json:"summary"`
	Errors  []string      `json:"errors,omitempty"`
}

var ErrEndpointNotFound = errors.New("endpoint not found")
var ErrToolNotFound = errors.New("tool not found")
var ErrMutationsDisabled = errors.New("mutations disabled for endpoint")
var ErrIntrospectionUnsupported = errors.New("endpoint does not support introspection")
var ErrEmptySchema = errors.New("schema has no query root fields")
