package store

import (
	"context"
	"sync"
)

// Memory 为进程内后端，主要用于测试与一次性运行。
type Memory struct {
	mu   sync.Mutex
	data map[string]map[string]string
	fail error
}

func NewMemory() *Memory {
	return &Memory{data: map[string]map[string]string{}}
}

// Fail 使后续所有操作返回 err，传 nil 恢复。
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *Memory) Get(_ context.Context, origin, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", false, m.fail
	}
	v, ok := m.data[origin][key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, origin, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if m.data[origin] == nil {
		m.data[origin] = map[string]string{}
	}
	m.data[origin][key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, origin, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	delete(m.data[origin], key)
	return nil
}

func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data = map[string]map[string]string{}
	return nil
}

func (m *Memory) Close() error { return nil }
