package hook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

// recordingHook implements every lifecycle interface and records calls.
type recordingHook struct {
	name   string
	calls  []string
	errOut error
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) OnBeforeQuery(_ context.Context, ev *QueryEvent) error {
	h.calls = append(h.calls, "beforeQuery:"+ev.Table)
	return h.errOut
}

func (h *recordingHook) OnAfterQuery(_ context.Context, ev *QueryEvent) error {
	h.calls = append(h.calls, "afterQuery:"+ev.Table)
	return h.errOut
}

func (h *recordingHook) OnBeforeMutation(_ context.Context, ev *MutationEvent) error {
	h.calls = append(h.calls, "beforeMutation:"+ev.Operation)
	return h.errOut
}

func (h *recordingHook) OnAfterMutation(_ context.Context, ev *MutationEvent) error {
	h.calls = append(h.calls, "afterMutation:"+ev.Operation)
	return h.errOut
}

func (h *recordingHook) OnError(_ context.Context, _ any, err error) {
	h.calls = append(h.calls, "onError:"+err.Error())
}

// queryOnlyHook opts in to before-query only.
type queryOnlyHook struct {
	called bool
}

func (h *queryOnlyHook) Name() string { return "query-only" }

func (h *queryOnlyHook) OnBeforeQuery(context.Context, *QueryEvent) error {
	h.called = true
	return nil
}

func testPipeline() *Pipeline {
	return NewPipeline(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPipelineDispatch(t *testing.T) {
	p := testPipeline()
	h := &recordingHook{name: "recorder"}
	p.Register(h)

	ctx := context.Background()
	p.EmitBeforeQuery(ctx, &QueryEvent{Table: "notes"})
	p.EmitAfterQuery(ctx, &QueryEvent{Table: "notes"})
	p.EmitBeforeMutation(ctx, &MutationEvent{Operation: "INSERT"})
	p.EmitAfterMutation(ctx, &MutationEvent{Operation: "INSERT"})
	p.EmitError(ctx, &QueryEvent{Table: "notes"}, errors.New("boom"))

	want := []string{
		"beforeQuery:notes",
		"afterQuery:notes",
		"beforeMutation:INSERT",
		"afterMutation:INSERT",
		"onError:boom",
	}
	if len(h.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", h.calls, want)
	}
	for i := range want {
		if h.calls[i] != want[i] {
			t.Fatalf("calls[%d] = %q, want %q", i, h.calls[i], want[i])
		}
	}
}

func TestPipelineOptIn(t *testing.T) {
	p := testPipeline()
	h := &queryOnlyHook{}
	p.Register(h)

	ctx := context.Background()
	// Mutation events must not reach a hook that never opted in.
	p.EmitBeforeMutation(ctx, &MutationEvent{Operation: "DELETE"})
	p.EmitAfterMutation(ctx, &MutationEvent{Operation: "DELETE"})
	if h.called {
		t.Fatal("mutation event reached a query-only hook")
	}

	p.EmitBeforeQuery(ctx, &QueryEvent{Table: "notes"})
	if !h.called {
		t.Fatal("query event did not reach the hook")
	}
}

func TestPipelineHookErrorDoesNotStopOthers(t *testing.T) {
	p := testPipeline()
	failing := &recordingHook{name: "failing", errOut: errors.New("hook broke")}
	second := &recordingHook{name: "second"}
	p.Register(failing)
	p.Register(second)

	p.EmitBeforeQuery(context.Background(), &QueryEvent{Table: "notes"})
	if len(second.calls) != 1 {
		t.Fatal("a failing hook must not block later hooks")
	}
}

func TestPipelineRegistrationOrder(t *testing.T) {
	p := testPipeline()
	var order []string
	first := &orderedHook{name: "first", order: &order}
	second := &orderedHook{name: "second", order: &order}
	p.Register(first)
	p.Register(second)

	p.EmitBeforeQuery(context.Background(), &QueryEvent{Table: "notes"})
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v", order)
	}
	if got := len(p.Hooks()); got != 2 {
		t.Fatalf("Hooks() = %d, want 2", got)
	}
}

type orderedHook struct {
	name  string
	order *[]string
}

func (h *orderedHook) Name() string { return h.name }

func (h *orderedHook) OnBeforeQuery(context.Context, *QueryEvent) error {
	*h.order = append(*h.order, h.name)
	return nil
}
