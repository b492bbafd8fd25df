package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process ObjectStore for tests and local runs. References
// use mem:// unless another scheme is given.
type Memory struct {
	mu      sync.RWMutex
	scheme  string
	objects map[string]Object

	// FailPuts makes every Put fail, to exercise write-error paths.
	FailPuts bool
}

// NewMemory creates an empty store serving mem:// references.
func NewMemory() *Memory {
	return &Memory{scheme: "mem", objects: make(map[string]Object)}
}

func (m *Memory) Ref(bucket, key string) string {
	return Ref{Scheme: m.scheme, Bucket: bucket, Key: key}.String()
}

// Seed stores an object directly, bypassing FailPuts.
func (m *Memory) Seed(ref string, obj Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj.Created.IsZero() {
		obj.Created = time.Now().UTC()
	}
	obj.Data = append([]byte(nil), obj.Data...)
	m.objects[ref] = obj
}

func (m *Memory) Get(_ context.Context, ref string) (*Object, error) {
	r, err := parseRefWithScheme(ref, m.scheme)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[r.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return &obj, nil
}

func (m *Memory) Put(_ context.Context, ref string, data []byte, contentType string) (string, error) {
	r, err := parseRefWithScheme(ref, m.scheme)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPuts {
		return "", errors.New("memory store: writes disabled")
	}
	m.objects[r.String()] = Object{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		Created:     time.Now().UTC(),
	}
	return r.String(), nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
