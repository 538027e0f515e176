package npapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// batchStubClient satisfies Client through the embedded interface; only the
// methods the transaction touches are implemented.
type batchStubClient struct {
	Client

	results []BatchResult
	deletes []string
}

func (c *batchStubClient) ExecuteBatch(_ context.Context, _ []BatchOperation) []BatchResult {
	return c.results
}

func (c *batchStubClient) Delete(_ context.Context, path string) (*Response, error) {
	c.deletes = append(c.deletes, path)

	return &Response{StatusCode: http.StatusOK}, nil
}

func TestBatchBuilder(t *testing.T) {
	t.Parallel()

	operations := NewBatchBuilder().
		AddGet("read", "/policy/api/v1/infra/domains/default").
		AddCreate("create", "/policy/api/v1/infra/services/web", map[string]string{"display_name": "web"}).
		AddUpdate("update", "/policy/api/v1/infra/services/web", map[string]string{"description": "updated"}).
		AddDelete("remove", "/policy/api/v1/infra/services/old").
		AddOperation(BatchOperation{ID: "probe", Method: http.MethodPost, Path: "/api/v1/node", RetrySafe: true}).
		Build()

	require.Len(t, operations, 5)

	assert.Equal(t, http.MethodGet, operations[0].Method)
	assert.Equal(t, http.MethodPut, operations[1].Method)
	assert.NotNil(t, operations[1].Body)
	assert.Equal(t, http.MethodPatch, operations[2].Method)
	assert.Equal(t, http.MethodDelete, operations[3].Method)
	assert.Equal(t, "remove", operations[3].ID)
	assert.True(t, operations[4].RetrySafe)
}

func TestBatchTransaction_Execute(t *testing.T) {
	t.Parallel()

	t.Run("all operations succeed", func(t *testing.T) {
		t.Parallel()

		stub := &batchStubClient{
			results: []BatchResult{
				{ID: "a", Success: true},
				{ID: "b", Success: true},
			},
		}

		transaction := NewBatchTransaction(stub).
			Add(BatchOperation{ID: "a", Method: http.MethodPut, Path: "/policy/api/v1/infra/services/a"}).
			Add(BatchOperation{ID: "b", Method: http.MethodPut, Path: "/policy/api/v1/infra/services/b"})

		results, err := transaction.Execute(context.Background())
		require.NoError(t, err)
		assert.Len(t, results, 2)
		assert.Empty(t, stub.deletes)
	})

	t.Run("failure rolls back created objects in reverse order", func(t *testing.T) {
		t.Parallel()

		stub := &batchStubClient{
			results: []BatchResult{
				{ID: "first", Success: true},
				{ID: "second", Success: true},
				{ID: "third", Success: false, Error: &BackendError{StatusCode: http.StatusConflict}},
			},
		}

		transaction := NewBatchTransaction(stub).
			Add(BatchOperation{ID: "first", Method: http.MethodPut, Path: "/policy/api/v1/infra/services/first"}).
			Add(BatchOperation{ID: "second", Method: http.MethodPut, Path: "/policy/api/v1/infra/services/second"}).
			Add(BatchOperation{ID: "third", Method: http.MethodPatch, Path: "/policy/api/v1/infra/services/third"})

		results, err := transaction.Execute(context.Background())
		require.ErrorIs(t, err, ErrTransactionFailed)
		assert.Contains(t, err.Error(), "1 operations failed")
		assert.Len(t, results, 3)

		// Reverse order, PUT slots only.
		assert.Equal(t, []string{
			"/policy/api/v1/infra/services/second",
			"/policy/api/v1/infra/services/first",
		}, stub.deletes)
	})

	t.Run("rollback skips failed and non-create slots", func(t *testing.T) {
		t.Parallel()

		stub := &batchStubClient{
			results: []BatchResult{
				{ID: "read", Success: true},
				{ID: "create", Success: false, Error: &BackendError{StatusCode: http.StatusBadRequest}},
			},
		}

		transaction := NewBatchTransaction(stub).
			Add(BatchOperation{ID: "read", Method: http.MethodGet, Path: "/policy/api/v1/infra/domains"}).
			Add(BatchOperation{ID: "create", Method: http.MethodPut, Path: "/policy/api/v1/infra/services/create"})

		_, err := transaction.Execute(context.Background())
		require.ErrorIs(t, err, ErrTransactionFailed)
		assert.Empty(t, stub.deletes)
	})

	t.Run("rollback disabled leaves created objects", func(t *testing.T) {
		t.Parallel()

		stub := &batchStubClient{
			results: []BatchResult{
				{ID: "a", Success: true},
				{ID: "b", Success: false, Error: &BackendError{StatusCode: http.StatusServiceUnavailable}},
			},
		}

		transaction := NewBatchTransaction(stub).
			SetRollback(false).
			Add(BatchOperation{ID: "a", Method: http.MethodPut, Path: "/policy/api/v1/infra/services/a"}).
			Add(BatchOperation{ID: "b", Method: http.MethodPut, Path: "/policy/api/v1/infra/services/b"})

		_, err := transaction.Execute(context.Background())
		require.ErrorIs(t, err, ErrTransactionFailed)
		assert.Empty(t, stub.deletes)
	})

	t.Run("unnamed failed operation reported as unnamed", func(t *testing.T) {
		t.Parallel()

		stub := &batchStubClient{
			results: []BatchResult{
				{Success: false, Error: &BackendError{StatusCode: http.StatusInternalServerError}},
			},
		}

		transaction := NewBatchTransaction(stub).
			Add(BatchOperation{Method: http.MethodDelete, Path: "/policy/api/v1/infra/services/x"})

		_, err := transaction.Execute(context.Background())
		require.ErrorIs(t, err, ErrTransactionFailed)
		assert.Contains(t, err.Error(), "(unnamed)")
	})
}
