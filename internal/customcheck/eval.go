package customcheck

import (
	"fmt"
	"strconv"
	"time"
)

// Predicate is a compiled, reusable custom_checks[].sql_condition expression.
type Predicate struct {
	root node
	src  string
}

// Compile parses expr once so it can be evaluated repeatedly per row
// without re-lexing.
func Compile(expr string) (*Predicate, error) {
	root, err := parse(expr)
	if err != nil {
		return nil, fmt.Errorf("compile predicate %q: %w", expr, err)
	}
	return &Predicate{root: root, src: expr}, nil
}

// Eval evaluates the predicate against one row's column values. now is
// the evaluation-time clock value bound to the now() builtin.
func (p *Predicate) Eval(row map[string]any, now time.Time) (bool, error) {
	r := Row{}
	for k, v := range row {
		r[k] = v
	}
	r["now()"] = now

	v, err := p.root.eval(r)
	if err != nil {
		return false, fmt.Errorf("evaluate predicate %q: %w", p.src, err)
	}
	b, err := toBool(v)
	if err != nil {
		return false, fmt.Errorf("predicate %q did not evaluate to a boolean: %w", p.src, err)
	}
	return b, nil
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	default:
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case time.Time:
		return float64(n.Unix()), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got non-numeric string %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func compareEqual(l, r any) bool {
	if lt, ok := l.(time.Time); ok {
		if rt, ok := r.(time.Time); ok {
			return lt.Equal(rt)
		}
	}
	lf, lerr := toFloat(l)
	rf, rerr := toFloat(r)
	if lerr == nil && rerr == nil {
		return lf == rf
	}
	return l == r
}
