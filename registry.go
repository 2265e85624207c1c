package fieldgate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/fieldgate/fieldgate/query"
)

// RuleFunc is a user-supplied predicate invocable from customFunction
// rules. It receives the requesting user, the candidate row (empty for
// row-independent evaluation), and the live database handle. Returning
// an error denies access for that rule (fail-closed).
//
// Functions may be invoked concurrently for different rows and must be
// safe for concurrent use.
type RuleFunc func(ctx context.Context, user *UserContext, row Row, db query.Querier) (bool, error)

// FuncRegistry is a named registry of RuleFuncs. It is injected into the
// Evaluator rather than being process-global, so tests and embedded
// instances stay isolated. Registration is last-write-wins; replacing an
// existing name logs a warning.
//
// Register functions at startup. The registry is safe for concurrent
// reads during evaluation.
type FuncRegistry struct {
	mu     sync.RWMutex
	funcs  map[string]RuleFunc
	logger *slog.Logger
}

// NewFuncRegistry creates an empty registry. A nil logger falls back to
// slog.Default().
func NewFuncRegistry(logger *slog.Logger) *FuncRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &FuncRegistry{
		funcs:  make(map[string]RuleFunc),
		logger: logger,
	}
}

// Register adds fn under name, replacing any existing function.
func (r *FuncRegistry) Register(name string, fn RuleFunc) {
	if name == "" || fn == nil {
		r.logger.Warn("fieldgate: ignoring invalid rule function registration", "name", name)
		return
	}
	r.mu.Lock()
	_, replaced := r.funcs[name]
	r.funcs[name] = fn
	r.mu.Unlock()
	if replaced {
		r.logger.Warn("fieldgate: rule function replaced", "name", name)
	}
}

// Unregister removes the function under name, if any.
func (r *FuncRegistry) Unregister(name string) {
	r.mu.Lock()
	delete(r.funcs, name)
	r.mu.Unlock()
}

// Lookup returns the function registered under name.
func (r *FuncRegistry) Lookup(name string) (RuleFunc, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	return fn, nil
}

// Names returns the registered function names, sorted.
func (r *FuncRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
