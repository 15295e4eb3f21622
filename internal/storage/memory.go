package storage

import (
	"context"
	"sync"
)

// Object is a stored blob with its content type.
type Object struct {
	ContentType string
	Body        []byte
}

// MemoryStore keeps objects in process. URLs are served by the API under
// its base path.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object), baseURL: baseURL}
}

func (m *MemoryStore) Put(_ context.Context, key, contentType string, body []byte) (string, error) {
	buf := make([]byte, len(body))
	copy(buf, body)
	m.mu.Lock()
	m.objects[key] = Object{ContentType: contentType, Body: buf}
	m.mu.Unlock()
	return m.URL(key), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(key string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return Object{}, ErrNotFound
	}
	return obj, nil
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemoryStore) URL(key string) string { return joinURL(m.baseURL, key) }

func (m *MemoryStore) KeyFromURL(url string) (string, bool) { return trimBase(m.baseURL, url) }
