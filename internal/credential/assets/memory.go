package assets

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type object struct {
	contentType string
	data        []byte
}

// Memory keeps objects in process. Pointers look like mem://<key>.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]object
	puts    int
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]object)}
}

func (m *Memory) Put(ctx context.Context, prefix, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	key := ContentKey(prefix, data)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if _, ok := m.objects[key]; !ok {
		m.objects[key] = object{contentType: contentType, data: append([]byte(nil), data...)}
	}
	return "mem://" + key, nil
}

func (m *Memory) Get(ctx context.Context, pointer string) ([]byte, string, error) {
	key, ok := strings.CutPrefix(pointer, "mem://")
	if !ok {
		return nil, "", ErrBadPointer
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]byte(nil), obj.data...), obj.contentType, nil
}

// Link returns the pointer itself; there is nothing to sign in memory.
func (m *Memory) Link(_ context.Context, pointer string) (string, error) {
	if !strings.HasPrefix(pointer, "mem://") {
		return "", ErrBadPointer
	}
	return pointer, nil
}

// PutCount reports how many Put calls were made, including duplicates.
func (m *Memory) PutCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
