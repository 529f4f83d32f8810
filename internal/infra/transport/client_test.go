package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gqlmcpd/internal/domain"
)

func TestClient_ExecuteSuccess(t *testing.T) {
	var captured Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"data":{"hello":"world"}}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientOptions{})
	result, err := client.Execute(context.Background(), server.URL, nil, Request{
		Query:         "query Query_hello { hello }",
		OperationName: "Query_hello",
	}, time.Second)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.HTTPStatus)
	require.Empty(t, result.Errors)
	require.JSONEq(t, `{"hello":"world"}`, string(result.Data))
	require.Equal(t, "Query_hello", captured.OperationName)
}

func TestClient_ExecuteSendsEndpointHeaders(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientOptions{})
	_, err := client.Execute(context.Background(), server.URL,
		map[string]string{"Authorization": "Bearer token"},
		Request{Query: "{ __typename }"}, time.Second)
	require.NoError(t, err)
	require.Equal(t, "Bearer token", auth)
}

func TestClient_ExecuteGraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"field not found"},{"message":"bad variable"}]}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientOptions{})
	result, err := client.Execute(context.Background(), server.URL, nil,
		Request{Query: "{ nope }"}, time.Second)
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)
	require.Equal(t, "field not found; bad variable", result.ErrorText())
}

func TestClient_ExecuteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream failure"))
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientOptions{})
	_, err := client.Execute(context.Background(), server.URL, nil,
		Request{Query: "{ __typename }"}, time.Second)
	require.Error(t, err)

	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeHTTP, code)

	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, http.StatusBadGateway, domainErr.HTTPStatus)
	require.Contains(t, domainErr.Message, "upstream failure")
}

func TestClient_ExecuteConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(ClientOptions{})
	_, err := client.Execute(context.Background(), server.URL, nil,
		Request{Query: "{ __typename }"}, time.Second)
	require.Error(t, err)

	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeConnection, code)
}

func TestClient_ExecuteParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientOptions{})
	_, err := client.Execute(context.Background(), server.URL, nil,
		Request{Query: "{ __typename }"}, time.Second)
	require.Error(t, err)

	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeParse, code)
}

func TestClient_ExecuteTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(func() {
		close(block)
		server.Close()
	})

	client := NewClient(ClientOptions{})
	_, err := client.Execute(context.Background(), server.URL, nil,
		Request{Query: "{ __typename }"}, 50*time.Millisecond)
	require.Error(t, err)

	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeTimeout, code)
}
