package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gqlmcpd/internal/domain"
	"gqlmcpd/internal/infra/transport"
)

// syntheticResultName labels the single result entry produced when the
// engine itself faults, as opposed to an individual operation failing.
const syntheticResultName = "BatchOperationError"

// EndpointResolver resolves batch requests to endpoint metadata.
type EndpointResolver interface {
	Get(name string) (domain.EndpointInfo, bool)
	RecordAccess(name string, success bool)
}

// Metrics receives per-operation execution observations.
type Metrics interface {
	ObserveExecution(endpointName string, duration time.Duration, success bool)
}

// Engine executes operation batches either with bounded parallelism or
// sequentially with result chaining. Operation-level failures never escape
// the batch boundary; they become result entries.
type Engine struct {
	logger      *zap.Logger
	endpoints   EndpointResolver
	client      *transport.Client
	metrics     Metrics
	concurrency int
}

type EngineOptions struct {
	Logger      *zap.Logger
	Endpoints   EndpointResolver
	Client      *transport.Client
	Metrics     Metrics
	Concurrency int
}

func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = domain.DefaultBatchConcurrency
	}
	return &Engine{
		logger:      logger.Named("batch"),
		endpoints:   opts.Endpoints,
		client:      opts.Client,
		metrics:     opts.Metrics,
		concurrency: concurrency,
	}
}

// Execute runs the batch and returns results sorted by original index. The
// batch context is propagated into every per-operation context, so
// cancelling it cancels all in-flight members.
func (e *Engine) Execute(ctx context.Context, requests []domain.BatchRequest, mode domain.ExecutionMode, continueOnError bool, timeout time.Duration) (domain.BatchResponse, error) {
	if timeout <= 0 {
		timeout = domain.DefaultBatchTimeoutSeconds * time.Second
	}

	startedAt := time.Now()

	var results []domain.BatchResult
	var err error
	switch mode {
	case domain.ModeParallel:
		results, err = e.executeParallel(ctx, requests, continueOnError, timeout)
	default:
		results = e.executeSequential(ctx, requests, continueOnError, timeout)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})

	completedAt := time.Now()
	summary := domain.BatchSummary{
		BatchID:         uuid.NewString(),
		TotalOperations: len(requests),
		ExecutionMode:   mode,
		ContinueOnError: continueOnError,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
		WallTime:        completedAt.Sub(startedAt),
	}
	for _, result := range results {
		if result.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	response := domain.BatchResponse{Results: results, Summary: summary}
	if err != nil {
		response.Errors = append(response.Errors, err.Error())
	}
	return response, err
}

// executeParallel attempts every request regardless of individual
// failures. When continueOnError is false, the first failure (by index) is
// propagated as a batch-level error after all tasks finish.
func (e *Engine) executeParallel(ctx context.Context, requests []domain.BatchRequest, continueOnError bool, timeout time.Duration) (results []domain.BatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("batch engine fault", zap.Any("panic", r))
			results = append(results, syntheticResult(len(requests), r))
		}
	}()

	results = make([]domain.BatchResult, len(requests))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)
	for i, request := range requests {
		group.Go(func() error {
			results[i] = e.executeOne(groupCtx, request, i, timeout)
			return nil
		})
	}
	_ = group.Wait()

	if !continueOnError {
		for _, result := range results {
			if !result.Success {
				return results, domain.E(domain.CodeInternal, "batch.Execute",
					fmt.Sprintf("operation %d (%s) failed: %s", result.Index, result.Name, result.Error), nil)
			}
		}
	}
	return results, nil
}

// executeSequential runs requests one at a time, in order, substituting
// chaining placeholders before each execution. When continueOnError is
// false, processing stops at the first failure and the remaining requests
// are omitted from the result list.
func (e *Engine) executeSequential(ctx context.Context, requests []domain.BatchRequest, continueOnError bool, timeout time.Duration) (results []domain.BatchResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("batch engine fault", zap.Any("panic", r))
			results = append(results, syntheticResult(len(requests), r))
		}
	}()

	for i, request := range requests {
		request.Query = substituteChaining(request.Query, results)

		result := e.executeOne(ctx, request, i, timeout)
		results = append(results, result)

		if !result.Success && !continueOnError {
			break
		}
	}
	return results
}

// executeOne resolves the request's endpoint and runs it through the
// transport, capturing every failure as a result entry.
func (e *Engine) executeOne(ctx context.Context, request domain.BatchRequest, index int, timeout time.Duration) domain.BatchResult {
	start := time.Now()

	result := domain.BatchResult{
		Name:      request.Name,
		Index:     index,
		Endpoint:  request.Endpoint,
		Query:     request.Query,
		Variables: request.Variables,
	}
	if result.Name == "" {
		result.Name = fmt.Sprintf("operation_%d", index)
	}

	info, ok := e.endpoints.Get(request.Endpoint)
	if !ok {
		result.Error = fmt.Sprintf("endpoint not found: %s", request.Endpoint)
		result.ExecutionTime = time.Since(start)
		return result
	}

	execResult, err := e.client.Execute(ctx, info.URL, info.Headers, transport.Request{
		Query:     request.Query,
		Variables: request.Variables,
	}, timeout)

	result.ExecutionTime = time.Since(start)

	switch {
	case err != nil:
		result.Error = err.Error()
	case len(execResult.Errors) > 0:
		result.Error = execResult.ErrorText()
	default:
		result.Success = true
		if len(execResult.Data) > 0 {
			var data any
			if unmarshalErr := json.Unmarshal(execResult.Data, &data); unmarshalErr == nil {
				result.Data = data
			}
		}
	}

	e.endpoints.RecordAccess(request.Endpoint, result.Success)
	if e.metrics != nil {
		e.metrics.ObserveExecution(request.Endpoint, result.ExecutionTime, result.Success)
	}
	return result
}

// substituteChaining replaces {result.<j>} and {result.<j>.data}
// placeholders with the JSON-serialized data of earlier results.
func substituteChaining(query string, prior []domain.BatchResult) string {
	if !strings.Contains(query, "{result.") {
		return query
	}
	for _, result := range prior {
		serialized, err := json.Marshal(result.Data)
		if err != nil {
			continue
		}
		query = strings.ReplaceAll(query, fmt.Sprintf("{result.%d.data}", result.Index), string(serialized))
		query = strings.ReplaceAll(query, fmt.Sprintf("{result.%d}", result.Index), string(serialized))
	}
	return query
}

func syntheticResult(index int, cause any) domain.BatchResult {
	return domain.BatchResult{
		Name:  syntheticResultName,
		Index: index,
		Error: fmt.Sprintf("batch engine fault: %v", cause),
	}
}
