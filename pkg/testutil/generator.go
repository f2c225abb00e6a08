// Package testutil provides fixture generators, fakes and assertions for
// selection tests. All generators produce deterministic output for
// reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/vanderheijden86/sheetview/pkg/model"
)

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed     int64         // Random seed for determinism (0 = 42)
	Name     string        // Assembly name (default: "Selection1")
	StateMix []model.State // States drawn for each value (nil = all zero)
	Measures bool          // Attach a measure to each value
	SortType model.SortType
	// SubmitMode sets submitOnChange on generated models.
	SubmitMode bool
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed: 42,
		Name: "Selection1",
	}
}

// Generator creates list and tree fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.Name == "" {
		cfg.Name = "Selection1"
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

func (g *Generator) options() model.SelectionOptions {
	return model.SelectionOptions{
		Name:           g.cfg.Name,
		SortType:       g.cfg.SortType,
		SubmitOnChange: g.cfg.SubmitMode,
	}
}

func (g *Generator) pickState() model.State {
	if len(g.cfg.StateMix) == 0 {
		return 0
	}
	return g.cfg.StateMix[g.rng.Intn(len(g.cfg.StateMix))]
}

func (g *Generator) value(label string) model.Value {
	v := model.Value{Label: label, Value: label, State: g.pickState()}
	if g.cfg.Measures {
		m := float64(g.rng.Intn(1000))
		v.MeasureValue = &m
		v.MeasureLabel = fmt.Sprintf("%.0f", m)
	}
	return v
}

// List creates a list of size values labelled v0..v{size-1}.
func (g *Generator) List(size int) *model.ListModel {
	m := &model.ListModel{SelectionOptions: g.options()}
	for i := 0; i < size; i++ {
		v := g.value(fmt.Sprintf("v%d", i))
		m.Values = append(m.Values, &v)
	}
	m.Index()
	return m
}

// Tree creates a full tree of the given depth and breadth in mode. Labels
// encode the position, e.g. "n0", "n0.1", "n0.1.2".
func (g *Generator) Tree(mode model.TreeMode, depth, breadth int) *model.TreeModel {
	var build func(prefix string, d int) []model.TreeValue
	build = func(prefix string, d int) []model.TreeValue {
		out := make([]model.TreeValue, 0, breadth)
		for i := 0; i < breadth; i++ {
			label := fmt.Sprintf("%s%d", prefix, i)
			v := g.value(label)
			if d == depth-1 {
				out = append(out, model.TreeValue{Value: v})
				continue
			}
			children := build(label+".", d+1)
			out = append(out, model.TreeValue{Value: v, SelectionList: &children})
		}
		return out
	}
	var top []model.TreeValue
	if depth > 0 {
		top = build("n", 0)
	}
	root := model.TreeValue{SelectionList: &top}
	return &model.TreeModel{
		SelectionOptions: g.options(),
		Root:             root,
		Mode:             mode,
		ExpandAll:        true,
	}
}

// ListAssembly wraps List in an assembly.
func (g *Generator) ListAssembly(size int) *model.Assembly {
	return &model.Assembly{Kind: model.KindList, List: g.List(size)}
}

// TreeAssembly wraps Tree in an assembly.
func (g *Generator) TreeAssembly(mode model.TreeMode, depth, breadth int) *model.Assembly {
	return &model.Assembly{Kind: model.KindTree, Tree: g.Tree(mode, depth, breadth)}
}

// QuickList returns a list with states taken in order from states.
func QuickList(name string, states ...model.State) *model.ListModel {
	m := &model.ListModel{SelectionOptions: model.SelectionOptions{Name: name}}
	for i, s := range states {
		label := fmt.Sprintf("v%d", i)
		m.Values = append(m.Values, &model.Value{Label: label, Value: label, State: s})
	}
	m.Index()
	return m
}

// QuickTree returns a tree model over the given top-level values.
func QuickTree(name string, mode model.TreeMode, top ...model.TreeValue) *model.TreeModel {
	list := append([]model.TreeValue{}, top...)
	return &model.TreeModel{
		SelectionOptions: model.SelectionOptions{Name: name},
		Root:             model.TreeValue{SelectionList: &list},
		Mode:             mode,
		ExpandAll:        true,
	}
}

// RegionTree is the fixture used across tree tests:
//
//	US
//	  CA
//	    SF
//	    LA
//	  NY
//	EU
//	  FR
func RegionTree(name string, mode model.TreeMode) *model.TreeModel {
	return QuickTree(name, mode,
		model.NewFolder("US", "US", 0,
			model.NewFolder("CA", "CA", 0,
				model.NewLeaf("SF", "SF", 0),
				model.NewLeaf("LA", "LA", 0),
			),
			model.NewLeaf("NY", "NY", 0),
		),
		model.NewFolder("EU", "EU", 0,
			model.NewLeaf("FR", "FR", 0),
		),
	)
}
