package catalog

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"gqlmcpd/internal/domain"
)

type fakeApplier struct {
	registered   []string
	unregistered []string
}

func (f *fakeApplier) Register(ctx context.Context, info domain.EndpointInfo) (int, error) {
	f.registered = append(f.registered, info.Name)
	return 1, nil
}

func (f *fakeApplier) Unregister(name string) error {
	f.unregistered = append(f.unregistered, name)
	return nil
}

func TestWatcher_ReloadAppliesDiff(t *testing.T) {
	path := writeConfig(t, `
endpoints:
  - name: kept
    url: https://example.com/graphql
  - name: changed
    url: https://example.com/graphql
  - name: dropped
    url: https://example.com/graphql
`)

	applier := &fakeApplier{}
	initial := []domain.EndpointInfo{
		{Name: "kept", URL: "https://example.com/graphql"},
		{Name: "changed", URL: "https://example.com/graphql"},
		{Name: "dropped", URL: "https://example.com/graphql"},
	}
	watcher := NewWatcher(nil, NewLoader(nil), path, applier, initial)

	// Rewrite the config: change one endpoint, add one, drop one.
	require.NoError(t, os.WriteFile(path, []byte(`
endpoints:
  - name: kept
    url: https://example.com/graphql
  - name: changed
    url: https://example.com/graphql
    toolPrefix: v2
  - name: added
    url: https://example.com/graphql
`), 0o600))

	watcher.reload(context.Background())

	require.ElementsMatch(t, []string{"changed", "added"}, applier.registered)
	require.Equal(t, []string{"dropped"}, applier.unregistered)

	// A second reload with no changes applies nothing.
	applier.registered = nil
	applier.unregistered = nil
	watcher.reload(context.Background())
	require.Empty(t, applier.registered)
	require.Empty(t, applier.unregistered)
}

func TestWatcher_ReloadKeepsStateOnInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
endpoints:
  - name: demo
    url: not-a-url
`)

	applier := &fakeApplier{}
	initial := []domain.EndpointInfo{{Name: "demo", URL: "https://example.com/graphql"}}
	watcher := NewWatcher(nil, NewLoader(nil), path, applier, initial)

	watcher.reload(context.Background())

	require.Empty(t, applier.registered)
	require.Empty(t, applier.unregistered)
	require.Equal(t, initial, watcher.current)
}
