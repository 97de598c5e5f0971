// Package memstore is an in-memory implementation of core.Store.
//
// A transaction takes the store's write lock at Begin and holds it until
// Commit or Rollback, working on a private copy of the data, so
// transactions are serializable. Calls made directly on the Store
// autocommit and wait for any open transaction. The goroutine that holds
// a transaction must not call the Store directly until it ends.
//
// Faults can be injected per method name to exercise failure paths.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/JonMunkholm/routeimport/internal/core"
)

var (
	// ErrTxDone is returned when a finished transaction is used.
	ErrTxDone = errors.New("memstore: transaction already finished")
	// ErrForeignKey is returned when a delete would leave a route pointing
	// at a missing row, or an insert references one.
	ErrForeignKey = errors.New("memstore: foreign key violation")
	// ErrCheck is returned when a row violates a column constraint.
	ErrCheck = errors.New("memstore: check constraint violation")
)

// Store is an in-memory core.Store.
type Store struct {
	*repo

	writeMu sync.Mutex
	live    *state

	faultMu sync.Mutex
	faults  map[string]error
	calls   map[string]int
}

var _ core.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	s := &Store{
		live:   newState(),
		faults: make(map[string]error),
		calls:  make(map[string]int),
	}
	s.repo = &repo{st: s.live, store: s}
	return s
}

// FailOn makes every later call of method fail with err until ClearFaults.
// Method names are the core.Repository method names plus "Begin" and
// "Commit".
func (s *Store) FailOn(method string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[method] = err
}

// ClearFaults removes every injected fault.
func (s *Store) ClearFaults() {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults = make(map[string]error)
}

// Calls returns how often method was invoked, including failed calls.
func (s *Store) Calls(method string) int {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.calls[method]
}

func (s *Store) injected(method string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.calls[method]++
	return s.faults[method]
}

// Begin starts a transaction. It blocks while another transaction is open.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.injected("Begin"); err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	return &Tx{
		repo:  &repo{st: s.live.clone(), store: s, inTx: true},
		store: s,
	}, nil
}

// Tx is a transaction over a private copy of the store.
type Tx struct {
	*repo
	store *Store
	once  sync.Once
}

// Commit publishes the transaction's writes and ends it.
func (t *Tx) Commit(_ context.Context) error {
	if t.repo.closed {
		return ErrTxDone
	}
	err := t.store.injected("Commit")
	t.finish(func() {
		if err == nil {
			*t.store.live = *t.repo.st
		}
	})
	return err
}

// Rollback discards the transaction's writes. Calling it after Commit is a no-op.
func (t *Tx) Rollback(_ context.Context) error {
	t.finish(func() {})
	return nil
}

func (t *Tx) finish(apply func()) {
	t.once.Do(func() {
		apply()
		t.repo.closed = true
		t.store.writeMu.Unlock()
	})
}
