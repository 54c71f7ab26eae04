package docstore

import (
	"context"
	"sync"

	"ramadan-bot/internal/domain"
)

// Memory держит документы в памяти процесса, используется в тестах и как STATE_BACKEND=memory.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

// Load возвращает копию документа.
func (m *Memory) Load(_ context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[path]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return append([]byte(nil), data...), nil
}

// Save сохраняет копию документа.
func (m *Memory) Save(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = append([]byte(nil), data...)
	return nil
}
