package master

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/supmcu-protocol/supmcu-go/pkg/module"
)

// Result is one module's outcome from a fan-out operation.
type Result[T any] struct {
	Module *module.Module
	Value  T
	Err    error
}

// PanicError wraps a panic recovered from a fan-out worker.
type PanicError struct {
	Address uint16
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in operation on module %#04x: %v", e.Address, e.Value)
}

// ForEach runs op once per module on m's worker pool and returns the
// results in module order. All modules run to completion before ForEach
// returns, so partial side effects (a half-saved catalog, half-read sweep)
// are retained even when some modules fail; callers inspect per-module
// errors in the results.
//
// A panicking op never takes down unrelated modules mid-flight: the panic
// is captured, every other module still runs, and after all workers join
// the first captured panic is re-raised. With the RecoverPanics option the
// panic is converted to a PanicError in that module's result instead.
func ForEach[T any](ctx context.Context, m *Master, op func(context.Context, *module.Module) (T, error)) []Result[T] {
	modules := m.modules
	results := make([]Result[T], len(modules))

	workers := m.workers
	if workers > len(modules) {
		workers = len(modules)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	work := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				results[i] = runOne(ctx, modules[i], op)
			}
		}()
	}

	for i := range modules {
		work <- i
	}
	close(work)
	wg.Wait()

	if !m.recoverPanics {
		for _, r := range results {
			var pe *PanicError
			if errors.As(r.Err, &pe) {
				panic(pe)
			}
		}
	}
	return results
}

// runOne executes op for a single module, converting panics to PanicError
// so the worker survives.
func runOne[T any](ctx context.Context, mod *module.Module, op func(context.Context, *module.Module) (T, error)) (result Result[T]) {
	result.Module = mod
	defer func() {
		if r := recover(); r != nil {
			result.Err = &PanicError{
				Address: mod.Address(),
				Value:   r,
				Stack:   debug.Stack(),
			}
		}
	}()
	result.Value, result.Err = op(ctx, mod)
	return result
}
