package selection

import (
	"testing"

	"github.com/vanderheijden86/sheetview/pkg/model"
	"github.com/vanderheijden86/sheetview/pkg/testutil"
)

func benchGenerator() *testutil.Generator {
	return testutil.New(testutil.GeneratorConfig{
		Seed:     7,
		Name:     "Bench",
		StateMix: []model.State{0, model.StateIncluded, model.StateSelected, model.StateExcluded},
		SortType: model.SortSpecific,
	})
}

func BenchmarkListShowAllToggle_10k(b *testing.B) {
	c := NewList(benchGenerator().List(10000), Deps{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%2 == 0 {
			c.ShowAllValues()
		} else {
			c.HideExcludedValues()
		}
	}
}

func BenchmarkListClickApply_10k(b *testing.B) {
	h := newHarness()
	c := NewList(benchGenerator().List(10000), h.deps())
	values := c.VisibleValues()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Click(values[i%len(values)], false, false)
		c.ApplySelections("")
	}
}

func BenchmarkTreeSetModel_Depth5(b *testing.B) {
	a := benchGenerator().TreeAssembly(model.ModeColumn, 5, 6)
	c := NewTree(a.Tree, Deps{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.SetModel(a)
	}
}

func BenchmarkTreeSubtreeColumn_Depth5(b *testing.B) {
	h := newHarness()
	m := benchGenerator().Tree(model.ModeColumn, 5, 6)
	c := NewTree(m, h.deps())
	top := c.VisibleValues()[0]
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.SetSubtree(top, top.State.NextClickState(false), false, false)
		c.ApplySelections("")
	}
}
