package batch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gqlmcpd/internal/domain"
	"gqlmcpd/internal/infra/transport"
)

type staticResolver struct {
	mu        sync.Mutex
	endpoints map[string]domain.EndpointInfo
	accesses  []bool
}

func (r *staticResolver) Get(name string) (domain.EndpointInfo, bool) {
	info, ok := r.endpoints[name]
	return info, ok
}

func (r *staticResolver) RecordAccess(name string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accesses = append(r.accesses, success)
}

// echoServer replies per query content: queries containing "fail" get a
// GraphQL error, everything else echoes the query string back as data.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transport.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Query == "fail" {
			_, _ = w.Write([]byte(`{"errors":[{"message":"boom"}]}`))
			return
		}
		payload := map[string]any{"data": map[string]any{"echo": req.Query}}
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestEngine(t *testing.T, serverURL string) (*Engine, *staticResolver) {
	t.Helper()
	resolver := &staticResolver{
		endpoints: map[string]domain.EndpointInfo{
			"demo": {Name: "demo", URL: serverURL},
		},
	}
	engine := NewEngine(EngineOptions{
		Endpoints:   resolver,
		Client:      transport.NewClient(transport.ClientOptions{}),
		Concurrency: 2,
	})
	return engine, resolver
}

func TestEngine_ParallelPreservesOrderAndLength(t *testing.T) {
	server := echoServer(t)
	engine, resolver := newTestEngine(t, server.URL)

	requests := []domain.BatchRequest{
		{Endpoint: "demo", Query: "one"},
		{Endpoint: "demo", Query: "two", Name: "second"},
		{Endpoint: "demo", Query: "three"},
	}

	response, err := engine.Execute(context.Background(), requests, domain.ModeParallel, true, time.Second)
	require.NoError(t, err)
	require.Len(t, response.Results, 3)

	for i, result := range response.Results {
		require.Equal(t, i, result.Index)
		require.True(t, result.Success)
	}
	require.Equal(t, "operation_0", response.Results[0].Name)
	require.Equal(t, "second", response.Results[1].Name)

	require.Equal(t, 3, response.Summary.TotalOperations)
	require.Equal(t, 3, response.Summary.Successful)
	require.Equal(t, 0, response.Summary.Failed)
	require.NotEmpty(t, response.Summary.BatchID)
	require.Len(t, resolver.accesses, 3)
}

func TestEngine_ParallelContinueOnErrorKeepsAllResults(t *testing.T) {
	server := echoServer(t)
	engine, _ := newTestEngine(t, server.URL)

	requests := []domain.BatchRequest{
		{Endpoint: "demo", Query: "one"},
		{Endpoint: "demo", Query: "fail"},
		{Endpoint: "demo", Query: "three"},
	}

	response, err := engine.Execute(context.Background(), requests, domain.ModeParallel, true, time.Second)
	require.NoError(t, err)
	require.Len(t, response.Results, 3)
	require.True(t, response.Results[0].Success)
	require.False(t, response.Results[1].Success)
	require.Contains(t, response.Results[1].Error, "boom")
	require.True(t, response.Results[2].Success)
	require.Equal(t, 1, response.Summary.Failed)
}

func TestEngine_ParallelStopOnErrorReturnsBatchError(t *testing.T) {
	server := echoServer(t)
	engine, _ := newTestEngine(t, server.URL)

	requests := []domain.BatchRequest{
		{Endpoint: "demo", Query: "fail"},
		{Endpoint: "demo", Query: "two"},
	}

	response, err := engine.Execute(context.Background(), requests, domain.ModeParallel, false, time.Second)
	require.Error(t, err)
	// Parallel mode still attempts every operation before reporting.
	require.Len(t, response.Results, 2)
	require.NotEmpty(t, response.Errors)
}

func TestEngine_SequentialChaining(t *testing.T) {
	server := echoServer(t)
	engine, _ := newTestEngine(t, server.URL)

	requests := []domain.BatchRequest{
		{Endpoint: "demo", Query: "first"},
		{Endpoint: "demo", Query: "prev={result.0.data}"},
		{Endpoint: "demo", Query: "also={result.0}"},
	}

	response, err := engine.Execute(context.Background(), requests, domain.ModeSequential, true, time.Second)
	require.NoError(t, err)
	require.Len(t, response.Results, 3)

	// The echo server returns {"echo":"<query>"}, so the serialized data of
	// operation 0 is spliced verbatim into the later queries.
	require.Equal(t, `prev={"echo":"first"}`, response.Results[1].Query)
	require.Equal(t, `also={"echo":"first"}`, response.Results[2].Query)
	require.True(t, response.Results[2].Success)
}

func TestEngine_SequentialStopOnErrorTruncates(t *testing.T) {
	server := echoServer(t)
	engine, _ := newTestEngine(t, server.URL)

	requests := []domain.BatchRequest{
		{Endpoint: "demo", Query: "one"},
		{Endpoint: "demo", Query: "fail"},
		{Endpoint: "demo", Query: "never-runs"},
	}

	response, err := engine.Execute(context.Background(), requests, domain.ModeSequential, false, time.Second)
	require.NoError(t, err)
	require.Len(t, response.Results, 2)
	require.True(t, response.Results[0].Success)
	require.False(t, response.Results[1].Success)
	require.Equal(t, 3, response.Summary.TotalOperations)
	require.Equal(t, 1, response.Summary.Failed)
}

func TestEngine_UnknownEndpointBecomesResult(t *testing.T) {
	server := echoServer(t)
	engine, _ := newTestEngine(t, server.URL)

	requests := []domain.BatchRequest{
		{Endpoint: "ghost", Query: "one"},
		{Endpoint: "demo", Query: "two"},
	}

	response, err := engine.Execute(context.Background(), requests, domain.ModeParallel, true, time.Second)
	require.NoError(t, err)
	require.Len(t, response.Results, 2)
	require.False(t, response.Results[0].Success)
	require.Contains(t, response.Results[0].Error, "endpoint not found: ghost")
	require.True(t, response.Results[1].Success)
}

func TestEngine_EmptyBatch(t *testing.T) {
	server := echoServer(t)
	engine, _ := newTestEngine(t, server.URL)

	response, err := engine.Execute(context.Background(), nil, domain.ModeParallel, true, time.Second)
	require.NoError(t, err)
	require.Empty(t, response.Results)
	require.Equal(t, 0, response.Summary.TotalOperations)
}

func TestSubstituteChaining(t *testing.T) {
	prior := []domain.BatchResult{
		{Index: 0, Data: map[string]any{"id": "42"}},
	}

	require.Equal(t, `query { node(id: {"id":"42"}) }`,
		substituteChaining(`query { node(id: {result.0}) }`, prior))
	require.Equal(t, `query { node(id: {"id":"42"}) }`,
		substituteChaining(`query { node(id: {result.0.data}) }`, prior))
	require.Equal(t, "no placeholders here",
		substituteChaining("no placeholders here", prior))
	require.Equal(t, "{result.9}",
		substituteChaining("{result.9}", prior))
}
