package core

import (
	"context"
	"fmt"
	"time"
)

// Ledger records the lifecycle of import operations. Operations start
// IN_PROGRESS and end in SUCCESS or FAILED; nothing leaves a terminal state,
// except that Fail may overwrite the message of an already FAILED operation.
type Ledger struct {
	repo OperationRepository
	now  func() time.Time
}

// NewLedger returns a Ledger over repo.
func NewLedger(repo OperationRepository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Open creates an IN_PROGRESS operation starting now.
func (l *Ledger) Open(ctx context.Context, username, filename string, totalRecords int) (ImportOperation, error) {
	op, err := l.repo.InsertOperation(ctx, ImportOperation{
		Username:     username,
		Filename:     filename,
		Status:       StatusInProgress,
		StartTime:    l.now().UTC(),
		TotalRecords: totalRecords,
	})
	if err != nil {
		return ImportOperation{}, fmt.Errorf("open import operation: %w", err)
	}
	return op, nil
}

// AttachFile stores the object store descriptor of the uploaded file.
func (l *Ledger) AttachFile(ctx context.Context, id int64, key string, size int64, contentType string) (ImportOperation, error) {
	return l.mutate(ctx, id, "attach file", func(op *ImportOperation) {
		op.FileKey = key
		op.FileSize = size
		op.FileContentType = contentType
	})
}

// RecordProgress stores processed and successful counts.
func (l *Ledger) RecordProgress(ctx context.Context, id int64, processed, successful int) (ImportOperation, error) {
	return l.mutate(ctx, id, "record progress", func(op *ImportOperation) {
		op.ProcessedRecords = processed
		op.SuccessfulRecords = successful
	})
}

// Complete marks the operation SUCCESS. Processed becomes the total.
func (l *Ledger) Complete(ctx context.Context, id int64, successful int) (ImportOperation, error) {
	return l.mutate(ctx, id, "complete", func(op *ImportOperation) {
		end := l.now().UTC()
		op.Status = StatusSuccess
		op.EndTime = &end
		op.ProcessedRecords = op.TotalRecords
		op.SuccessfulRecords = successful
	})
}

// Fail marks the operation FAILED with message. Failing an operation that
// already FAILED overwrites its message; failing a SUCCESS is rejected.
func (l *Ledger) Fail(ctx context.Context, id int64, message string) (ImportOperation, error) {
	op, err := l.repo.GetOperation(ctx, id)
	if err != nil {
		return ImportOperation{}, fmt.Errorf("fail import operation %d: %w", id, err)
	}
	if op.Status == StatusSuccess {
		return op, fmt.Errorf("fail import operation %d from %s: %w", id, op.Status, ErrInvalidTransition)
	}

	from := op.Status
	end := l.now().UTC()
	op.Status = StatusFailed
	op.EndTime = &end
	op.ErrorMessage = message
	if err := l.repo.UpdateOperation(ctx, op, from); err != nil {
		return ImportOperation{}, fmt.Errorf("fail import operation %d: %w", id, err)
	}
	return op, nil
}

// Get returns the operation id.
func (l *Ledger) Get(ctx context.Context, id int64) (ImportOperation, error) {
	return l.repo.GetOperation(ctx, id)
}

// mutate applies fn to an IN_PROGRESS operation and writes it back,
// guarded on the status it was read with.
func (l *Ledger) mutate(ctx context.Context, id int64, what string, fn func(*ImportOperation)) (ImportOperation, error) {
	op, err := l.repo.GetOperation(ctx, id)
	if err != nil {
		return ImportOperation{}, fmt.Errorf("%s on import operation %d: %w", what, id, err)
	}
	if op.Status != StatusInProgress {
		return op, fmt.Errorf("%s on import operation %d in %s: %w", what, id, op.Status, ErrInvalidTransition)
	}

	fn(&op)
	if err := l.repo.UpdateOperation(ctx, op, StatusInProgress); err != nil {
		return ImportOperation{}, fmt.Errorf("%s on import operation %d: %w", what, id, err)
	}
	return op, nil
}
