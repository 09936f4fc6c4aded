package customcheck_test

import (
	"testing"
	"time"

	"github.com/pgEdge/data-gatekeeper/internal/customcheck"
)

func eval(t *testing.T, expr string, row map[string]any) bool {
	t.Helper()
	p, err := customcheck.Compile(expr)
	if err != nil {
		t.Fatalf("compile %q: %v", expr, err)
	}
	got, err := p.Eval(row, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("eval %q: %v", expr, err)
	}
	return got
}

func TestArithmeticComparison(t *testing.T) {
	if !eval(t, "amount > 0 and amount < 100", map[string]any{"amount": 50.0}) {
		t.Error("expected true")
	}
	if eval(t, "amount > 0 and amount < 100", map[string]any{"amount": 150.0}) {
		t.Error("expected false")
	}
}

func TestBooleanConnectives(t *testing.T) {
	if !eval(t, "not (status == 'failed')", map[string]any{"status": "ok"}) {
		t.Error("expected true")
	}
	if !eval(t, "a == 1 or b == 2", map[string]any{"a": 1.0, "b": 0.0}) {
		t.Error("expected true via or")
	}
}

func TestArithmeticExpression(t *testing.T) {
	if !eval(t, "(price * quantity) == total", map[string]any{
		"price": 2.0, "quantity": 3.0, "total": 6.0,
	}) {
		t.Error("expected true")
	}
}

func TestUnknownColumnErrors(t *testing.T) {
	p, err := customcheck.Compile("missing_col > 0")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := p.Eval(map[string]any{}, time.Now()); err == nil {
		t.Fatal("expected an error for an unknown column reference")
	}
}

func TestCompileSyntaxError(t *testing.T) {
	if _, err := customcheck.Compile("amount >"); err == nil {
		t.Fatal("expected a compile error for incomplete expression")
	}
}

func TestDivisionByZero(t *testing.T) {
	p, err := customcheck.Compile("1 / x == 1")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := p.Eval(map[string]any{"x": 0.0}, time.Now()); err == nil {
		t.Fatal("expected a division-by-zero error")
	}
}
