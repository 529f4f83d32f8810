package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"gqlmcpd/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_LoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
endpoints:
  - name: demo
    url: https://example.com/graphql
`)

	loader := NewLoader(nil)
	cat, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(Default().Runtime, cat.Runtime))
	require.Len(t, cat.Endpoints, 1)
	require.Empty(t, cmp.Diff(domain.EndpointInfo{
		Name: "demo",
		URL:  "https://example.com/graphql",
	}, cat.Endpoints[0]))
}

func TestLoader_LoadFullEndpoint(t *testing.T) {
	path := writeConfig(t, `
maxDepth: 2
includeAllScalars: false
batchConcurrency: 10
endpoints:
  - name: shop
    url: http://localhost:4000/graphql
    allowMutations: true
    toolPrefix: shop
    headers:
      Authorization: Bearer abc
`)

	loader := NewLoader(nil)
	cat, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, 2, cat.Runtime.MaxDepth)
	require.False(t, cat.Runtime.IncludeAllScalars)
	require.Equal(t, 10, cat.Runtime.BatchConcurrency)

	endpoint := cat.Endpoints[0]
	require.True(t, endpoint.AllowMutations)
	require.Equal(t, "shop", endpoint.ToolPrefix)
	require.Equal(t, "Bearer abc", endpoint.Headers["Authorization"])
}

func TestLoader_LoadPreservesHeaderKeyCase(t *testing.T) {
	path := writeConfig(t, `
endpoints:
  - name: demo
    url: https://example.com/graphql
    headers:
      Authorization: Bearer abc
      X-API-KEY: k1
`)

	loader := NewLoader(nil)
	cat, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	headers := cat.Endpoints[0].Headers
	require.Equal(t, "Bearer abc", headers["Authorization"])
	require.Equal(t, "k1", headers["X-API-KEY"])
	require.NotContains(t, headers, "authorization")
}

func TestLoader_LoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_GRAPHQL_TOKEN", "secret-token")
	path := writeConfig(t, `
endpoints:
  - name: demo
    url: https://example.com/graphql
    headers:
      Authorization: Bearer ${TEST_GRAPHQL_TOKEN}
`)

	loader := NewLoader(nil)
	cat, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "Bearer secret-token", cat.Endpoints[0].Headers["Authorization"])
}

func TestLoader_LoadRejectsInvalidEndpoints(t *testing.T) {
	cases := []struct {
		name   string
		config string
		want   string
	}{
		{
			name: "missing url",
			config: `
endpoints:
  - name: demo
`,
			want: "url is required",
		},
		{
			name: "bad scheme",
			config: `
endpoints:
  - name: demo
    url: ftp://example.com/graphql
`,
			want: "scheme must be http or https",
		},
		{
			name: "bad name",
			config: `
endpoints:
  - name: "1demo"
    url: https://example.com/graphql
`,
			want: "invalid name",
		},
		{
			name: "duplicate name",
			config: `
endpoints:
  - name: demo
    url: https://example.com/graphql
  - name: demo
    url: https://other.example.com/graphql
`,
			want: "duplicate name",
		},
		{
			name: "negative depth",
			config: `
maxDepth: -1
endpoints:
  - name: demo
    url: https://example.com/graphql
`,
			want: "maxDepth must be >= 0",
		},
	}

	loader := NewLoader(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.config)
			_, err := loader.Load(context.Background(), path)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoader_LoadMissingFile(t *testing.T) {
	loader := NewLoader(nil)
	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoader_LoadEmptyPath(t *testing.T) {
	loader := NewLoader(nil)
	_, err := loader.Load(context.Background(), "")
	require.Error(t, err)
}
