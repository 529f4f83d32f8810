package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"gqlmcpd/internal/domain"
)

func scalarRef(name string) *IntrospectionRef {
	return &IntrospectionRef{Kind: "SCALAR", Name: name}
}

func nonNull(inner *IntrospectionRef) *IntrospectionRef {
	return &IntrospectionRef{Kind: "NON_NULL", OfType: inner}
}

func list(inner *IntrospectionRef) *IntrospectionRef {
	return &IntrospectionRef{Kind: "LIST", OfType: inner}
}

func samplePayload() *SchemaPayload {
	return &SchemaPayload{
		QueryType: &RootTypeRef{Name: "Query"},
		Types: []IntrospectionType{
			{
				Kind: "OBJECT",
				Name: "Query",
				Fields: []IntrospectionField{
					{Name: "hello", Type: scalarRef("String")},
					{
						Name: "users",
						Args: []IntrospectionInput{
							{Name: "limit", Type: scalarRef("Int")},
						},
						Type: nonNull(list(nonNull(&IntrospectionRef{Kind: "OBJECT", Name: "User"}))),
					},
				},
			},
			{
				Kind: "OBJECT",
				Name: "User",
				Fields: []IntrospectionField{
					{Name: "id", Type: nonNull(scalarRef("ID"))},
					{Name: "name", Type: scalarRef("String")},
				},
			},
			{
				Kind: "ENUM",
				Name: "Role",
				EnumValues: []IntrospectionEnum{
					{Name: "ADMIN"}, {Name: "VIEWER"},
				},
			},
			{Kind: "OBJECT", Name: "__Schema"},
			{Kind: "SCALAR", Name: "String"},
		},
	}
}

func TestCompiler_Compile(t *testing.T) {
	compiler := NewCompiler(nil)

	graph, err := compiler.Compile(samplePayload())
	require.NoError(t, err)
	require.Equal(t, "Query", graph.QueryType)
	require.Empty(t, graph.MutationType)

	require.NotContains(t, graph.Types, "__Schema")
	require.NotContains(t, graph.Types, "String")

	query := graph.QueryRoot()
	require.NotNil(t, query)
	require.Len(t, query.Fields, 2)

	users := query.Fields[1]
	require.Equal(t, "users", users.Name)
	require.Equal(t, "[User!]!", users.Type.Signature)
	require.Equal(t, "User", users.Type.Name)
	require.Equal(t, domain.KindObject, users.Type.Kind)

	role := graph.Types["Role"]
	require.Equal(t, []string{"ADMIN", "VIEWER"}, role.EnumValues)
}

func TestCompiler_CompileDefaultsQueryRootName(t *testing.T) {
	compiler := NewCompiler(nil)

	graph, err := compiler.Compile(&SchemaPayload{
		Types: []IntrospectionType{
			{
				Kind: "OBJECT",
				Name: "Query",
				Fields: []IntrospectionField{
					{Name: "ping", Type: scalarRef("String")},
				},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Query", graph.QueryType)
	require.NotNil(t, graph.QueryRoot())
}

func TestCompiler_CompileSkipsMalformedEntries(t *testing.T) {
	compiler := NewCompiler(nil)

	graph, err := compiler.Compile(&SchemaPayload{
		QueryType: &RootTypeRef{Name: "Query"},
		Types: []IntrospectionType{
			{Kind: "OBJECT", Name: ""},
			{Kind: "", Name: "Nameless"},
			{
				Kind: "OBJECT",
				Name: "Query",
				Fields: []IntrospectionField{
					{Name: "", Type: scalarRef("String")},
					{Name: "broken", Type: nil},
					{Name: "ok", Type: scalarRef("String")},
				},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, graph.Types, 1)
	require.Len(t, graph.QueryRoot().Fields, 1)
	require.Equal(t, "ok", graph.QueryRoot().Fields[0].Name)
}

func TestCompiler_CompileNilPayload(t *testing.T) {
	compiler := NewCompiler(nil)

	_, err := compiler.Compile(nil)
	require.Error(t, err)

	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeSchema, code)
}

func TestCompiler_CompileDeterministic(t *testing.T) {
	compiler := NewCompiler(nil)

	first, err := compiler.Compile(samplePayload())
	require.NoError(t, err)
	second, err := compiler.Compile(samplePayload())
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(first, second))
}
