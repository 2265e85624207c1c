package fieldgate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/fieldgate/fieldgate/query"
)

func testRegistry(t *testing.T) *FuncRegistry {
	t.Helper()
	return NewFuncRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func grantAll(context.Context, *UserContext, Row, query.Querier) (bool, error) {
	return true, nil
}

func denyAll(context.Context, *UserContext, Row, query.Querier) (bool, error) {
	return false, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := testRegistry(t)
	r.Register("grant", grantAll)

	fn, err := r.Lookup("grant")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	granted, err := fn(context.Background(), nil, Row{}, nil)
	if err != nil || !granted {
		t.Fatalf("registered function not returned: granted=%v err=%v", granted, err)
	}
}

func TestRegistryLookupMissing(t *testing.T) {
	r := testRegistry(t)
	_, err := r.Lookup("absent")
	if !errors.Is(err, ErrFunctionNotFound) {
		t.Fatalf("expected ErrFunctionNotFound, got %v", err)
	}
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := testRegistry(t)
	r.Register("fn", grantAll)
	r.Register("fn", denyAll)

	fn, err := r.Lookup("fn")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	granted, _ := fn(context.Background(), nil, Row{}, nil)
	if granted {
		t.Fatal("re-registration should replace the function")
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := testRegistry(t)
	r.Register("fn", grantAll)
	r.Unregister("fn")
	if _, err := r.Lookup("fn"); !errors.Is(err, ErrFunctionNotFound) {
		t.Fatalf("expected ErrFunctionNotFound after unregister, got %v", err)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := testRegistry(t)
	r.Register("zeta", grantAll)
	r.Register("alpha", grantAll)
	r.Register("mid", grantAll)

	names := r.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}
