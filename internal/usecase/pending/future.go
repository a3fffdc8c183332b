package pending

import (
	"context"
	"sync"

	"camsession/internal/domain"
)

// Outcome is the resolved value of a Future.
type Outcome struct {
	Value any
	Err   *domain.ResultError
}

// Future is a ResultSink that can be awaited. Only the first resolution is
// kept; later calls are ignored.
type Future struct {
	once sync.Once
	done chan struct{}
	out  Outcome
}

// NewFuture creates an unresolved Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) Success(value any) {
	f.once.Do(func() {
		f.out = Outcome{Value: value}
		close(f.done)
	})
}

func (f *Future) Error(code domain.ErrorCode, message string) {
	f.once.Do(func() {
		f.out = Outcome{Err: &domain.ResultError{Code: code, Message: message}}
		close(f.done)
	})
}

// Done is closed once the Future is resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the Future resolves or ctx ends. A resolved error is
// returned as *domain.ResultError.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		if f.out.Err != nil {
			return nil, f.out.Err
		}
		return f.out.Value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Outcome returns the resolved outcome and whether the Future is resolved.
func (f *Future) Outcome() (Outcome, bool) {
	select {
	case <-f.done:
		return f.out, true
	default:
		return Outcome{}, false
	}
}

// SinkFunc adapts a function pair to domain.ResultSink.
type SinkFunc struct {
	OnSuccess func(value any)
	OnError   func(code domain.ErrorCode, message string)
}

func (s SinkFunc) Success(value any) {
	if s.OnSuccess != nil {
		s.OnSuccess(value)
	}
}

func (s SinkFunc) Error(code domain.ErrorCode, message string) {
	if s.OnError != nil {
		s.OnError(code, message)
	}
}
