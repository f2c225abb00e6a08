//go:build ignore

// generate_testdata.go creates viewsheet snapshots for benchmarking and
// manual testing of the viewer.
// Usage: go run scripts/generate_testdata.go
//
// Creates, under testdata/benchmark/<name>/:
//
//	viewsheet.json  (list + COLUMN tree + ID tree)
//	viewsheet.db    (the same snapshot as SQLite)
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/sheetview/internal/datasource"
	"github.com/vanderheijden86/sheetview/pkg/model"
	"github.com/vanderheijden86/sheetview/pkg/testutil"
)

type datasetSpec struct {
	name    string
	list    int
	depth   int
	breadth int
}

var datasets = []datasetSpec{
	{"small", 50, 3, 4},
	{"medium", 1000, 4, 6},
	{"large", 10000, 5, 8},
}

func main() {
	outputDir := filepath.Join("testdata", "benchmark")
	stamp := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, ds := range datasets {
		dir := filepath.Join(outputDir, ds.name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", dir, err)
			os.Exit(1)
		}

		vs := generate(ds)
		data, err := json.MarshalIndent(vs, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode %s: %v\n", ds.name, err)
			os.Exit(1)
		}
		jsonPath := filepath.Join(dir, "viewsheet.json")
		if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", jsonPath, err)
			os.Exit(1)
		}
		dbPath := filepath.Join(dir, "viewsheet.db")
		_ = os.Remove(dbPath)
		if err := datasource.WriteSQLite(dbPath, vs, stamp); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", dbPath, err)
			os.Exit(1)
		}

		fmt.Printf("  Written %s (%d bytes) and %s\n", jsonPath, len(data), dbPath)
	}

	fmt.Println("\nDone! Test datasets created in", outputDir)
}

func generate(ds datasetSpec) *model.Viewsheet {
	states := []model.State{0, 0, model.StateIncluded, model.StateSelected, model.StateExcluded}
	gen := func(name string, seed int64) *testutil.Generator {
		return testutil.New(testutil.GeneratorConfig{
			Seed:     seed,
			Name:     name,
			StateMix: states,
			Measures: true,
			SortType: model.SortSpecific,
		})
	}

	return &model.Viewsheet{
		Name: "Bench-" + ds.name,
		Assemblies: []*model.Assembly{
			gen("Bench.List", int64(ds.list)).ListAssembly(ds.list),
			gen("Bench.Column", int64(ds.depth*100+ds.breadth)).TreeAssembly(model.ModeColumn, ds.depth, ds.breadth),
			gen("Bench.ID", int64(ds.depth*1000+ds.breadth)).TreeAssembly(model.ModeID, ds.depth, ds.breadth),
		},
	}
}
