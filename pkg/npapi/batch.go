package npapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrTransactionFailed = errors.New("transaction failed")
)

// BatchOperation is a single call within a batch: a verb, a path, and an
// optional body. Operations execute in input order.
type BatchOperation struct {
	// ID labels the operation in results and logs. Optional.
	ID string

	// Method is the HTTP verb.
	Method string

	// Path is the endpoint path.
	Path string

	// Body is serialized as the JSON request body. Ignored for GET/DELETE.
	Body interface{}

	// RetrySafe marks a POST operation as safe to retry.
	RetrySafe bool
}

// BatchResult is the outcome of one batch slot. Results are one-to-one with
// the input operations, in input order.
type BatchResult struct {
	ID       string
	Success  bool
	Response *Response
	Error    error
	Duration time.Duration
}

// BatchBuilder assembles batch operations fluently.
type BatchBuilder struct {
	operations []BatchOperation
}

// NewBatchBuilder creates a new batch builder.
func NewBatchBuilder() *BatchBuilder {
	return &BatchBuilder{
		operations: make([]BatchOperation, 0),
	}
}

// AddGet adds a read operation.
func (b *BatchBuilder) AddGet(id, path string) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:     id,
		Method: http.MethodGet,
		Path:   path,
	})

	return b
}

// AddCreate adds an idempotent create (PUT to the object path).
func (b *BatchBuilder) AddCreate(id, path string, body interface{}) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:     id,
		Method: http.MethodPut,
		Path:   path,
		Body:   body,
	})

	return b
}

// AddUpdate adds a partial update (PATCH to the object path).
func (b *BatchBuilder) AddUpdate(id, path string, body interface{}) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:     id,
		Method: http.MethodPatch,
		Path:   path,
		Body:   body,
	})

	return b
}

// AddDelete adds a delete operation.
func (b *BatchBuilder) AddDelete(id, path string) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:     id,
		Method: http.MethodDelete,
		Path:   path,
	})

	return b
}

// AddOperation adds a custom operation.
func (b *BatchBuilder) AddOperation(operation BatchOperation) *BatchBuilder {
	b.operations = append(b.operations, operation)

	return b
}

// Build returns the built operations.
func (b *BatchBuilder) Build() []BatchOperation {
	return b.operations
}

// BatchTransaction layers best-effort rollback on top of ExecuteBatch.
// The batch itself is never atomic: each slot succeeds or fails
// independently. With rollback enabled, objects created by successful PUT
// operations are deleted again when any slot failed.
type BatchTransaction struct {
	client     Client
	operations []BatchOperation
	results    []BatchResult
	rollback   bool
}

// NewBatchTransaction creates a transaction executing through the given
// client.
func NewBatchTransaction(client Client) *BatchTransaction {
	return &BatchTransaction{
		client:     client,
		operations: make([]BatchOperation, 0),
		rollback:   true,
	}
}

// Add appends an operation to the transaction.
func (t *BatchTransaction) Add(operation BatchOperation) *BatchTransaction {
	t.operations = append(t.operations, operation)

	return t
}

// SetRollback sets whether to roll back created objects on failure.
func (t *BatchTransaction) SetRollback(rollback bool) *BatchTransaction {
	t.rollback = rollback

	return t
}

// Execute runs the transaction. The per-slot results are always returned;
// the error reports how many slots failed.
func (t *BatchTransaction) Execute(ctx context.Context) ([]BatchResult, error) {
	results := t.client.ExecuteBatch(ctx, t.operations)
	t.results = results

	var failedOps []string

	for _, result := range results {
		if !result.Success {
			id := result.ID
			if id == "" {
				id = "(unnamed)"
			}

			failedOps = append(failedOps, id)
		}
	}

	if len(failedOps) > 0 && t.rollback {
		t.performRollback(ctx)

		return results, fmt.Errorf("%w, %d operations failed: %v", ErrTransactionFailed, len(failedOps), failedOps)
	}

	if len(failedOps) > 0 {
		return results, fmt.Errorf("%w, %d operations failed: %v", ErrTransactionFailed, len(failedOps), failedOps)
	}

	return results, nil
}

// performRollback deletes objects created by successful PUT slots, in
// reverse order. PATCH and DELETE slots cannot be undone without the prior
// state and are left for manual intervention.
func (t *BatchTransaction) performRollback(ctx context.Context) {
	for i := len(t.results) - 1; i >= 0; i-- {
		result := t.results[i]
		if !result.Success {
			continue
		}

		original := t.operations[i]
		if original.Method != http.MethodPut {
			continue
		}

		_, _ = t.client.Delete(ctx, original.Path)
	}
}
