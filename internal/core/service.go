package core

import (
	"context"
	"fmt"
	"time"
)

// MaxPageSize caps page sizes of list operations.
const MaxPageSize = 100

// DefaultUsername is recorded on imports submitted without an identity.
const DefaultUsername = "anonymous"

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	// KeyPrefix prefixes object keys of archived import files.
	KeyPrefix string
	// MaxConcurrentImports bounds parallel imports.
	MaxConcurrentImports int
	// MaxImportWait is how long an import waits for a free slot.
	MaxImportWait time.Duration
}

// Service is the entry point for route management and CSV imports. It is
// safe for concurrent use.
type Service struct {
	store    Store
	objects  ObjectStore
	limiter  *ImportLimiter
	importer *Importer
}

// NewService returns a Service over store and objects.
func NewService(store Store, objects ObjectStore, cfg ServiceConfig) *Service {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "imports"
	}
	limiter := NewImportLimiter(cfg.MaxConcurrentImports, cfg.MaxImportWait)
	return &Service{
		store:    store,
		objects:  objects,
		limiter:  limiter,
		importer: NewImporter(store, objects, limiter, cfg.KeyPrefix),
	}
}

// ImportBatch imports the CSV content of filename on behalf of username.
// An empty username falls back to the identity in ctx.
func (s *Service) ImportBatch(ctx context.Context, username, filename string, content []byte) (ImportResult, error) {
	if username == "" {
		username = UsernameFromContext(ctx)
	}
	if username == "" {
		username = DefaultUsername
	}
	return s.importer.ImportBatch(ctx, ImportRequest{
		Username: username,
		Filename: filename,
		Content:  content,
	})
}

// GetOperation returns the ledger entry id.
func (s *Service) GetOperation(ctx context.Context, id int64) (ImportOperation, error) {
	return s.store.GetOperation(ctx, id)
}

// ListOperations returns one page of ledger entries, newest first. An
// empty username lists every user's operations.
func (s *Service) ListOperations(ctx context.Context, username string, page, size int) (OperationPage, error) {
	page, size = clampPage(page, size, MaxPageSize)
	ops, total, err := s.store.ListOperations(ctx, username, size, (page-1)*size)
	if err != nil {
		return OperationPage{}, fmt.Errorf("list import operations: %w", err)
	}
	if ops == nil {
		ops = []ImportOperation{}
	}
	return OperationPage{
		Operations: ops,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: totalPages(total, size),
	}, nil
}

// ImportFile is an archived import file.
type ImportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DownloadImportFile returns the archived file of operation id.
func (s *Service) DownloadImportFile(ctx context.Context, id int64) (ImportFile, error) {
	op, err := s.store.GetOperation(ctx, id)
	if err != nil {
		return ImportFile{}, err
	}
	if op.FileKey == "" {
		return ImportFile{}, notFound("import file", id)
	}
	obj, err := s.objects.Get(ctx, op.FileKey)
	if err != nil {
		return ImportFile{}, err
	}
	ct := obj.ContentType
	if ct == "" {
		ct = op.FileContentType
	}
	return ImportFile{Filename: op.Filename, ContentType: ct, Data: obj.Data}, nil
}

// ImportFileExists reports whether the archived file of operation id is
// still in the object store.
func (s *Service) ImportFileExists(ctx context.Context, id int64) (bool, error) {
	op, err := s.store.GetOperation(ctx, id)
	if err != nil {
		return false, err
	}
	if op.FileKey == "" {
		return false, nil
	}
	return s.objects.Exists(ctx, op.FileKey)
}

// ImportStatus reports import slot usage.
func (s *Service) ImportStatus() LimiterStatus {
	return s.limiter.Status()
}

// Drain waits for running imports to finish.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}
