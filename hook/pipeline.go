package hook

import (
	"context"
	"log/slog"
)

// Named entry types pair a hook with its name for logging.

type beforeQueryEntry struct {
	name string
	hook BeforeQuery
}
type afterQueryEntry struct {
	name string
	hook AfterQuery
}
type beforeMutationEntry struct {
	name string
	hook BeforeMutation
}
type afterMutationEntry struct {
	name string
	hook AfterMutation
}
type onErrorEntry struct {
	name string
	hook OnError
}

// Pipeline holds registered hooks and dispatches lifecycle events.
// It type-caches hooks at registration time so emit calls iterate only
// over hooks implementing the relevant interface.
type Pipeline struct {
	hooks  []Hook
	logger *slog.Logger

	beforeQuery    []beforeQueryEntry
	afterQuery     []afterQueryEntry
	beforeMutation []beforeMutationEntry
	afterMutation  []afterMutationEntry
	onError        []onErrorEntry
}

// NewPipeline creates a hook pipeline with the given logger.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable caches.
// Hooks are notified in registration order.
func (p *Pipeline) Register(h Hook) {
	p.hooks = append(p.hooks, h)
	name := h.Name()

	if x, ok := h.(BeforeQuery); ok {
		p.beforeQuery = append(p.beforeQuery, beforeQueryEntry{name, x})
	}
	if x, ok := h.(AfterQuery); ok {
		p.afterQuery = append(p.afterQuery, afterQueryEntry{name, x})
	}
	if x, ok := h.(BeforeMutation); ok {
		p.beforeMutation = append(p.beforeMutation, beforeMutationEntry{name, x})
	}
	if x, ok := h.(AfterMutation); ok {
		p.afterMutation = append(p.afterMutation, afterMutationEntry{name, x})
	}
	if x, ok := h.(OnError); ok {
		p.onError = append(p.onError, onErrorEntry{name, x})
	}
}

// Hooks returns all registered hooks.
func (p *Pipeline) Hooks() []Hook { return p.hooks }

// EmitBeforeQuery notifies all hooks that implement BeforeQuery.
func (p *Pipeline) EmitBeforeQuery(ctx context.Context, ev *QueryEvent) {
	for _, e := range p.beforeQuery {
		if err := e.hook.OnBeforeQuery(ctx, ev); err != nil {
			p.logHookError("OnBeforeQuery", e.name, err)
		}
	}
}

// EmitAfterQuery notifies all hooks that implement AfterQuery.
func (p *Pipeline) EmitAfterQuery(ctx context.Context, ev *QueryEvent) {
	for _, e := range p.afterQuery {
		if err := e.hook.OnAfterQuery(ctx, ev); err != nil {
			p.logHookError("OnAfterQuery", e.name, err)
		}
	}
}

// EmitBeforeMutation notifies all hooks that implement BeforeMutation.
func (p *Pipeline) EmitBeforeMutation(ctx context.Context, ev *MutationEvent) {
	for _, e := range p.beforeMutation {
		if err := e.hook.OnBeforeMutation(ctx, ev); err != nil {
			p.logHookError("OnBeforeMutation", e.name, err)
		}
	}
}

// EmitAfterMutation notifies all hooks that implement AfterMutation.
func (p *Pipeline) EmitAfterMutation(ctx context.Context, ev *MutationEvent) {
	for _, e := range p.afterMutation {
		if err := e.hook.OnAfterMutation(ctx, ev); err != nil {
			p.logHookError("OnAfterMutation", e.name, err)
		}
	}
}

// EmitError notifies all hooks that implement OnError.
func (p *Pipeline) EmitError(ctx context.Context, ev any, opErr error) {
	for _, e := range p.onError {
		e.hook.OnError(ctx, ev, opErr)
	}
}

func (p *Pipeline) logHookError(event, name string, err error) {
	p.logger.Warn("fieldgate: hook failed", "event", event, "hook", name, "error", err)
}
