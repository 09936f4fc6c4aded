package profiler_test

import (
	"testing"

	"github.com/pgEdge/data-gatekeeper/internal/loader"
	"github.com/pgEdge/data-gatekeeper/internal/profiler"
)

func TestProfileNumericColumn(t *testing.T) {
	tbl := &loader.Table{
		Columns: []string{"amount"},
		Rows: [][]any{
			{"10"}, {"12"}, {"11"}, {"13"}, {"9"}, {nil},
		},
	}
	profiles := profiler.Profile(tbl)
	p, ok := profiles["amount"]
	if !ok {
		t.Fatal("expected a profile for amount")
	}
	if p.DType != "float" {
		t.Errorf("dtype = %q, want float", p.DType)
	}
	if p.NullFraction <= 0 {
		t.Errorf("null fraction = %v, want > 0", p.NullFraction)
	}
	if p.Mean == nil || p.Std == nil {
		t.Fatal("expected mean/std to be populated")
	}
}

func TestProfileStringColumn(t *testing.T) {
	tbl := &loader.Table{
		Columns: []string{"name"},
		Rows:    [][]any{{"alice"}, {"bob"}, {"alice"}},
	}
	profiles := profiler.Profile(tbl)
	p := profiles["name"]
	if p.DType != "string" {
		t.Errorf("dtype = %q, want string", p.DType)
	}
	if p.UniqueFraction <= 0 || p.UniqueFraction >= 1 {
		t.Errorf("unique fraction = %v, want between 0 and 1", p.UniqueFraction)
	}
}

func TestZScoreOutliers(t *testing.T) {
	m := profiler.ZScoreMethod{Mean: 10, Std: 1}
	got := m.Outliers([]float64{10, 10.5, 20, 9.5})
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("got %v, want [2]", got)
	}
}

func TestIQROutliers(t *testing.T) {
	m := profiler.IQRMethod{Q1: 10, Q3: 20}
	got := m.Outliers([]float64{15, 16, 100, -50})
	if len(got) != 2 {
		t.Errorf("got %v, want 2 outliers", got)
	}
}
