package storage

import (
	"context"
	"sync"
)

// MemorySink keeps tables in process. Used for dry runs and tests.
type MemorySink struct {
	mu     sync.Mutex
	tables map[string][][]string
}

func NewMemorySink() *MemorySink {
	return &MemorySink{tables: make(map[string][][]string)}
}

func (m *MemorySink) Read(_ context.Context, t Table) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRows(m.tables[t.Name]), nil
}

func (m *MemorySink) ClearAndWrite(_ context.Context, t Table, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fitted := make([][]string, 0, len(rows))
	for _, r := range rows {
		fitted = append(fitted, fit(t, r))
	}
	m.tables[t.Name] = fitted
	return nil
}

func (m *MemorySink) Append(_ context.Context, t Table, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[t.Name] = append(m.tables[t.Name], fit(t, row))
	return nil
}

func (m *MemorySink) EnsureHeaders(context.Context) error { return nil }

func (m *MemorySink) Close() error { return nil }

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, append([]string(nil), r...))
	}
	return out
}
