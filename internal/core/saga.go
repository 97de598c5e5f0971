package core

// saga.go coordinates work that spans the relational store and the object
// store, which share no transaction. An Operation prepares and commits; if
// either step fails the Coordinator runs its compensations newest first and
// then deletes every object key the operation uploaded. Compensation is
// best-effort: each failure is logged and counted, and the next step runs.

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/routeimport/internal/logging"
)

// TransactionContext records the compensable effects of one saga.
type TransactionContext struct {
	ID uuid.UUID

	mu            sync.Mutex
	uploadedKeys  []string
	compensations []compensation
}

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

func newTransactionContext() *TransactionContext {
	return &TransactionContext{ID: uuid.New()}
}

// RecordUpload registers an object key to delete on rollback.
func (tc *TransactionContext) RecordUpload(key string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.uploadedKeys = append(tc.uploadedKeys, key)
}

// OnRollback registers a compensating action. Actions run in reverse
// registration order, before uploaded keys are deleted.
func (tc *TransactionContext) OnRollback(name string, fn func(ctx context.Context) error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.compensations = append(tc.compensations, compensation{name: name, fn: fn})
}

// UploadedKeys returns a copy of the recorded keys.
func (tc *TransactionContext) UploadedKeys() []string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]string(nil), tc.uploadedKeys...)
}

// Operation is one saga. Prepare does the work and returns its result;
// Commit finalizes it. Rollback is told why the saga failed so it can
// record the cause; its own failures are not reported.
type Operation[T any] interface {
	Prepare(ctx context.Context, tc *TransactionContext) (T, error)
	Commit(ctx context.Context, tc *TransactionContext, result T) error
	Rollback(ctx context.Context, tc *TransactionContext, cause error)
}

// Coordinator runs Operations against an object store.
type Coordinator struct {
	objects ObjectStore
}

// NewCoordinator returns a Coordinator that removes uploaded keys from objects.
func NewCoordinator(objects ObjectStore) *Coordinator {
	return &Coordinator{objects: objects}
}

// Execute runs op. On a Prepare or Commit error it rolls back and returns
// the zero T with that error.
func Execute[T any](ctx context.Context, c *Coordinator, op Operation[T]) (T, error) {
	tc := newTransactionContext()
	logger := logging.WithFields(ctx, "transaction_id", tc.ID.String())
	var zero T

	result, err := op.Prepare(ctx, tc)
	if err != nil {
		logger.Warn("saga prepare failed, rolling back", "error", err)
		c.rollback(ctx, logger, tc, op.Rollback, err)
		return zero, err
	}
	if err := op.Commit(ctx, tc, result); err != nil {
		logger.Error("saga commit failed, rolling back", "error", err)
		c.rollback(ctx, logger, tc, op.Rollback, err)
		return zero, err
	}
	logger.Debug("saga committed")
	return result, nil
}

// rollback runs compensations using a context detached from ctx's
// cancellation so cleanup still happens when the request is gone.
func (c *Coordinator) rollback(
	ctx context.Context,
	logger *slog.Logger,
	tc *TransactionContext,
	opRollback func(context.Context, *TransactionContext, error),
	cause error,
) {
	ctx = context.WithoutCancel(ctx)

	opRollback(ctx, tc, cause)

	tc.mu.Lock()
	comps := append([]compensation(nil), tc.compensations...)
	keys := append([]string(nil), tc.uploadedKeys...)
	tc.mu.Unlock()

	for i := len(comps) - 1; i >= 0; i-- {
		if err := comps[i].fn(ctx); err != nil {
			logger.Error("compensation failed", "step", comps[i].name, "error", err)
			getMetrics().compensationFailures.WithLabelValues(comps[i].name).Inc()
		}
	}

	for _, key := range keys {
		if err := c.objects.Delete(ctx, key); err != nil {
			logger.Error("uploaded file cleanup failed, manual audit required", "key", key, "error", err)
			getMetrics().compensationFailures.WithLabelValues("delete_object").Inc()
			continue
		}
		logger.Info("rolled back uploaded file", "key", key)
	}
}
