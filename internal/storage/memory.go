package storage

import (
	"sort"
	"sync"
)

// Memory is an in-process KV used for tests and ephemeral CLI runs.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	quota  int64
	closed bool
}

// NewMemory returns an empty store. quota is bytes per namespace; 0 means unlimited.
func NewMemory(quota int64) *Memory {
	return &Memory{data: make(map[string]map[string][]byte), quota: quota}
}

func (m *Memory) Get(namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	v, ok := m.data[namespace][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.data[namespace] = ns
	}
	if m.quota > 0 {
		used := int64(len(value))
		for k, v := range ns {
			if k != key {
				used += int64(len(v))
			}
		}
		if used > m.quota {
			return ErrQuotaExceeded
		}
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	delete(m.data[namespace], key)
	return nil
}

func (m *Memory) Keys(namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	keys := make([]string, 0, len(m.data[namespace]))
	for k := range m.data[namespace] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
