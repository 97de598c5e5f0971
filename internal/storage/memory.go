package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/JonMunkholm/routeimport/internal/core"
)

// Memory is an in-process core.ObjectStore. Failures can be injected per
// operation ("put", "get", "delete", "exists").
type Memory struct {
	mu      sync.RWMutex
	objects map[string]core.Object
	faults  map[string]error
	now     func() time.Time
}

var _ core.ObjectStore = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]core.Object),
		faults:  make(map[string]error),
		now:     time.Now,
	}
}

// FailOn makes op fail with err until ClearFaults.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = err
}

// ClearFaults removes every injected fault.
func (m *Memory) ClearFaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = make(map[string]error)
}

// Keys returns the stored keys in order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Memory) fault(op, key string) error {
	if err := m.faults[op]; err != nil {
		return &core.ObjectStoreError{Op: op, Key: key, Err: err}
	}
	return nil
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) (core.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return core.ObjectInfo{}, &core.ObjectStoreError{Op: "put", Key: key, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("put", key); err != nil {
		observe("put", err)
		return core.ObjectInfo{}, err
	}

	m.objects[key] = core.Object{
		Data:         append([]byte(nil), data...),
		ContentType:  contentType,
		Size:         int64(len(data)),
		LastModified: m.now().UTC(),
	}
	observe("put", nil)
	sum := md5.Sum(data)
	return core.ObjectInfo{Key: key, Size: int64(len(data)), ETag: hex.EncodeToString(sum[:])}, nil
}

func (m *Memory) Get(_ context.Context, key string) (core.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fault("get", key); err != nil {
		observe("get", err)
		return core.Object{}, err
	}

	obj, ok := m.objects[key]
	if !ok {
		err := &core.ObjectStoreError{Op: "get", Key: key, Err: errors.Wrapf(core.ErrNotFound, "object %q", key)}
		observe("get", err)
		return core.Object{}, err
	}
	observe("get", nil)
	obj.Data = append([]byte(nil), obj.Data...)
	return obj, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("delete", key); err != nil {
		observe("delete", err)
		return err
	}
	delete(m.objects, key)
	observe("delete", nil)
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fault("exists", key); err != nil {
		observe("exists", err)
		return false, err
	}
	_, ok := m.objects[key]
	observe("exists", nil)
	return ok, nil
}
