// Package pending correlates asynchronous capture outcomes with the callers
// waiting on them. The table is keyed by operation kind and holds at most one
// caller per kind.
package pending

import (
	"sync"

	"camsession/internal/domain"
)

// Duplicate requests are answered with this message.
const duplicateMessage = "Method handler already called"

// Table holds one pending ResultSink per domain.OperationKind.
//
// Sinks are always invoked after mu is released, so a sink may safely
// register or resolve other kinds.
type Table struct {
	mu      sync.Mutex
	entries map[domain.OperationKind]domain.ResultSink
}

// New creates an empty table.
func New() *Table {
	return &Table{entries: make(map[domain.OperationKind]domain.ResultSink)}
}

// Register stores sink under kind. If an entry for kind already exists the
// new sink is rejected with CodeDuplicateRequest and the existing entry is
// left untouched; Register then returns false.
func (t *Table) Register(kind domain.OperationKind, sink domain.ResultSink) bool {
	t.mu.Lock()
	if _, exists := t.entries[kind]; exists {
		t.mu.Unlock()
		sink.Error(domain.CodeDuplicateRequest, duplicateMessage)
		return false
	}
	t.entries[kind] = sink
	t.mu.Unlock()
	return true
}

// Take removes and returns the sink registered under kind.
func (t *Table) Take(kind domain.OperationKind) (domain.ResultSink, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sink, ok := t.entries[kind]
	if ok {
		delete(t.entries, kind)
	}
	return sink, ok
}

// Succeed resolves the caller waiting on kind with value. It reports whether
// a caller was waiting.
func (t *Table) Succeed(kind domain.OperationKind, value any) bool {
	sink, ok := t.Take(kind)
	if ok {
		sink.Success(value)
	}
	return ok
}

// Fail resolves the caller waiting on kind with an error.
func (t *Table) Fail(kind domain.OperationKind, code domain.ErrorCode, message string) bool {
	sink, ok := t.Take(kind)
	if ok {
		sink.Error(code, message)
	}
	return ok
}

// FailWith resolves the caller waiting on kind with err split by domain.Describe.
func (t *Table) FailWith(kind domain.OperationKind, err error) bool {
	code, message := domain.Describe(err)
	return t.Fail(kind, code, message)
}

// Has reports whether a caller is waiting on kind.
func (t *Table) Has(kind domain.OperationKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[kind]
	return ok
}

// Len returns the number of pending entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// FlushAll fails every pending entry with the same code and message and
// empties the table. It returns the number of callers resolved.
func (t *Table) FlushAll(code domain.ErrorCode, message string) int {
	t.mu.Lock()
	flushed := make([]domain.ResultSink, 0, len(t.entries))
	for _, kind := range domain.OperationKinds() {
		if sink, ok := t.entries[kind]; ok {
			flushed = append(flushed, sink)
		}
	}
	clear(t.entries)
	t.mu.Unlock()

	for _, sink := range flushed {
		sink.Error(code, message)
	}
	return len(flushed)
}
