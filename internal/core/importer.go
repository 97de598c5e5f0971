package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/routeimport/internal/logging"
)

// Result messages reported to the caller.
const (
	msgImportSucceeded    = "Import completed successfully"
	msgImportPartial      = "Import completed: %d routes imported, %d routes skipped (already exist)"
	msgImportAllExisting  = "No new routes imported: all %d routes already exist"
	msgImportInvalid      = "Import failed due to validation errors"
	msgImportBatchDupes   = "Duplicate names found in import file"
	msgImportSystemFailed = "Import failed due to system error"
)

// ImportRequest is one file submitted for import.
type ImportRequest struct {
	Username string
	Filename string
	Content  []byte
}

// Importer runs CSV imports as sagas: the file is archived in the object
// store, the ledger tracks the operation, and every route of the batch is
// created in one relational transaction.
type Importer struct {
	store       Store
	objects     ObjectStore
	ledger      *Ledger
	coordinator *Coordinator
	limiter     *ImportLimiter
	keyPrefix   string
	now         func() time.Time
}

// NewImporter returns an Importer. A nil limiter disables the concurrency limit.
func NewImporter(store Store, objects ObjectStore, limiter *ImportLimiter, keyPrefix string) *Importer {
	return &Importer{
		store:       store,
		objects:     objects,
		ledger:      NewLedger(store),
		coordinator: NewCoordinator(objects),
		limiter:     limiter,
		keyPrefix:   keyPrefix,
		now:         time.Now,
	}
}

// ImportBatch imports req. Rejected input is reported in the result with a
// nil error. A system fault is reported in a FAILED result and also
// returned, after the saga has rolled back.
func (im *Importer) ImportBatch(ctx context.Context, req ImportRequest) (ImportResult, error) {
	if im.limiter != nil {
		if err := im.limiter.Acquire(ctx); err != nil {
			return ImportResult{}, err
		}
		defer im.limiter.Release()
	}

	logger := logging.WithFields(ctx, "filename", req.Filename, "username", req.Username)
	start := im.now()

	op := &fileImport{im: im, req: req}
	result, err := Execute[ImportResult](ctx, im.coordinator, op)
	if err != nil {
		result = op.systemFailure(err)
		logger.Error("import failed", "operation_id", result.OperationID, "error", err)
	} else {
		logger.Info("import finished",
			"operation_id", result.OperationID,
			"status", result.Status,
			"successful", result.SuccessfulRecords,
			"failed", result.FailedRecords,
		)
	}

	m := getMetrics()
	m.importsTotal.WithLabelValues(string(result.Status)).Inc()
	m.importDuration.WithLabelValues(string(result.Status)).Observe(im.now().Sub(start).Seconds())
	if result.Status == StatusSuccess {
		m.importRows.WithLabelValues("imported").Add(float64(result.SuccessfulRecords))
		m.importRows.WithLabelValues("skipped").Add(float64(result.FailedRecords))
	} else {
		m.importRows.WithLabelValues("rejected").Add(float64(result.TotalRecords))
	}

	audit := AuditEntry{
		Action:       ActionImportComplete,
		OperationID:  result.OperationID,
		Filename:     req.Filename,
		RowsAffected: result.SuccessfulRecords,
	}
	if result.Status != StatusSuccess {
		audit.Action = ActionImportFail
		audit.Reason = result.Message
	}
	LogAudit(ctx, audit)

	return result, err
}

// fileImport is the saga for one ImportRequest.
type fileImport struct {
	im  *Importer
	req ImportRequest

	op    ImportOperation
	total int
	tx    Tx
	cause error
}

func (f *fileImport) Prepare(ctx context.Context, tc *TransactionContext) (ImportResult, error) {
	im := f.im
	logger := logging.WithFields(ctx, "transaction_id", tc.ID.String(), "filename", f.req.Filename)

	key := ObjectKey(im.keyPrefix, f.req.Filename, im.now())
	contentType := DetectContentType(f.req.Filename, f.req.Content)
	info, err := im.objects.Put(ctx, key, f.req.Content, contentType)
	if err != nil {
		return ImportResult{}, err
	}
	tc.RecordUpload(info.Key)
	logger.Debug("import file archived", "key", info.Key, "size", info.Size)

	f.total = CountDataLines(f.req.Content)
	f.op, err = im.ledger.Open(ctx, f.req.Username, f.req.Filename, f.total)
	if err != nil {
		return ImportResult{}, err
	}
	tc.OnRollback("ledger_fail", f.failLedger)

	if _, err := im.ledger.AttachFile(ctx, f.op.ID, info.Key, info.Size, contentType); err != nil {
		return ImportResult{}, err
	}

	rows, err := ParseRoutesCSV(f.req.Content)
	if err != nil {
		logger.Info("import file rejected", "operation_id", f.op.ID, "error", err)
		return f.reject(ctx, f.total, []string{err.Error()}, msgImportInvalid)
	}
	f.total = len(rows)

	report, err := ValidateRows(ctx, rows, RepositoryNameLookup(im.store))
	if err != nil {
		return ImportResult{}, err
	}
	if report.Rejected() {
		msg := msgImportInvalid
		if onlyBatchDuplicates(report) {
			msg = msgImportBatchDupes
		}
		logger.Info("import batch rejected", "operation_id", f.op.ID, "hard_errors", report.Hard)
		return f.reject(ctx, len(rows), report.Messages(), msg)
	}

	if _, err := im.ledger.RecordProgress(ctx, f.op.ID, len(rows), 0); err != nil {
		return ImportResult{}, err
	}

	f.tx, err = im.store.Begin(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("begin import transaction: %w", err)
	}
	tc.OnRollback("rollback_relational", f.tx.Rollback)

	routes := NewRouteManager(f.tx)
	successful := 0
	for _, row := range report.Valid {
		if _, err := routes.Create(ctx, row.Spec()); err != nil {
			return ImportResult{}, fmt.Errorf("import line %d: %w", row.Line, err)
		}
		successful++
	}

	return ImportResult{
		OperationID:       f.op.ID,
		Status:            StatusSuccess,
		TotalRecords:      len(rows),
		SuccessfulRecords: successful,
		FailedRecords:     report.Soft,
		Errors:            report.Messages(),
		Message:           successMessage(successful, report.Soft),
	}, nil
}

func (f *fileImport) Commit(ctx context.Context, _ *TransactionContext, result ImportResult) error {
	if result.Status != StatusSuccess {
		return nil
	}
	if _, err := NewLedger(f.tx).Complete(ctx, f.op.ID, result.SuccessfulRecords); err != nil {
		return err
	}
	if err := f.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import transaction: %w", err)
	}
	return nil
}

func (f *fileImport) Rollback(_ context.Context, _ *TransactionContext, cause error) {
	f.cause = cause
}

// failLedger marks the operation FAILED with the saga's cause. It runs
// after the relational transaction has been rolled back.
func (f *fileImport) failLedger(ctx context.Context) error {
	msg := msgImportSystemFailed
	if f.cause != nil {
		msg = f.cause.Error()
	}
	_, err := f.im.ledger.Fail(ctx, f.op.ID, msg)
	return err
}

// reject fails the ledger entry and returns the rejection result. The
// archived file is kept as evidence of what was submitted.
func (f *fileImport) reject(ctx context.Context, total int, errs []string, message string) (ImportResult, error) {
	ledgerMsg := "Validation failed: " + strings.Join(errs, "; ")
	if _, err := f.im.ledger.Fail(ctx, f.op.ID, ledgerMsg); err != nil {
		return ImportResult{}, err
	}
	return ImportResult{
		OperationID:   f.op.ID,
		Status:        StatusFailed,
		TotalRecords:  total,
		FailedRecords: total,
		Errors:        errs,
		Message:       message,
	}, nil
}

// systemFailure builds the result of a saga that rolled back. A name taken
// by a concurrent import is reported as a duplicate, not a system fault.
func (f *fileImport) systemFailure(err error) ImportResult {
	msg := msgImportSystemFailed
	if errors.Is(err, ErrDuplicateName) {
		msg = MapError(err).Message
	}
	return ImportResult{
		OperationID:   f.op.ID,
		Status:        StatusFailed,
		TotalRecords:  f.total,
		FailedRecords: f.total,
		Errors:        []string{err.Error()},
		Message:       msg,
	}
}

func successMessage(imported, skipped int) string {
	switch {
	case skipped == 0:
		return msgImportSucceeded
	case imported == 0:
		return fmt.Sprintf(msgImportAllExisting, skipped)
	default:
		return fmt.Sprintf(msgImportPartial, imported, skipped)
	}
}

func onlyBatchDuplicates(r BatchReport) bool {
	found := false
	for _, issue := range r.Issues {
		switch issue.Kind {
		case IssueDuplicateInBatch:
			found = true
		case IssueDuplicateExisting:
		default:
			return false
		}
	}
	return found
}
