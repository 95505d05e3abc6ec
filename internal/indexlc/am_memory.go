package indexlc

import (
	"context"
	"sync"
)

// MemoryAccessMethod is a minimal in-process AccessMethod: "building" an
// index just records that it happened. The real tuple-scan/build machinery
// is out of scope (§1 lists the reindex and tuple-scan AM plug-ins as
// external collaborators whose interface only is named here); this gives
// cmd/depctl and the test suite something concrete to drive createIndex and
// reindex against without a storage engine.
type MemoryAccessMethod struct {
	mu      sync.Mutex
	built   map[int64]bool
	emptied map[int64]bool
}

// NewMemoryAccessMethod returns a ready-to-use MemoryAccessMethod.
func NewMemoryAccessMethod() *MemoryAccessMethod {
	return &MemoryAccessMethod{built: map[int64]bool{}, emptied: map[int64]bool{}}
}

func (m *MemoryAccessMethod) Build(ctx context.Context, heapID, indexID int64, info IndexInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.built[indexID] = true
	delete(m.emptied, indexID)
	return nil
}

func (m *MemoryAccessMethod) BuildEmpty(ctx context.Context, indexID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emptied[indexID] = true
	return nil
}

// Built reports whether indexID has ever had Build invoked on it, used by
// tests to confirm createIndex reached the build step.
func (m *MemoryAccessMethod) Built(indexID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.built[indexID]
}

var _ AccessMethod = (*MemoryAccessMethod)(nil)
