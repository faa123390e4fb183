// Command schema-gen writes JSON Schema files for the allocation API and
// the scenario catalogue.
//
//	go run ./cmd/schema-gen -out schemas
//	go run ./cmd/schema-gen -out schemas -check
//
// With -check nothing is written and the command fails when a file on disk
// differs from the generated schema.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/invopop/jsonschema"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kosarica/allocation-service/internal/handlers"
	"github.com/kosarica/allocation-service/internal/optimizer"
)

const schemaBaseURL = "https://kosarica.hr/schemas/allocation-service/"

type group struct {
	name  string
	types []any
}

var groups = []group{
	{
		name: "allocation",
		types: []any{
			handlers.AllocateRequest{},
			handlers.SKUInput{},
			handlers.StoreInput{},
			handlers.ErrorResponse{},
			optimizer.Result{},
			optimizer.RunMetadata{},
			optimizer.Totals{},
			optimizer.AllocationRecord{},
			optimizer.StoreSummary{},
			optimizer.SKUSummary{},
		},
	},
	{
		name: "scenarios",
		types: []any{
			optimizer.Scenario{},
			handlers.ScenarioSummary{},
			handlers.ListScenariosResponse{},
			handlers.ScenarioResponse{},
			handlers.HealthResponse{},
		},
	},
}

var errStale = errors.New("schema out of date")

func main() {
	outDir := flag.String("out", "schemas", "output directory")
	check := flag.Bool("check", false, "compare with the files in -out instead of writing")
	flag.Parse()

	if err := run(*outDir, *check); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(outDir string, check bool) error {
	if !check {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", outDir, err)
		}
	}
	var stale []string
	for _, g := range groups {
		data, err := render(g)
		if err != nil {
			return fmt.Errorf("%s: %w", g.name, err)
		}
		path := filepath.Join(outDir, g.name+".json")
		if check {
			current, err := os.ReadFile(path)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if !bytes.Equal(current, data) {
				stale = append(stale, path)
			}
			continue
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("Generated %s\n", path)
	}
	if len(stale) > 0 {
		return fmt.Errorf("%w: %v", errStale, stale)
	}
	return nil
}

// render merges the definitions of every type in g into one document.
// Keys are sorted by encoding/json, so output is stable across runs.
func render(g group) ([]byte, error) {
	r := &jsonschema.Reflector{}
	defs := map[string]*jsonschema.Schema{}
	for _, t := range g.types {
		s := r.Reflect(t)
		for name, def := range s.Definitions {
			defs[name] = def
		}
	}
	if len(defs) == 0 {
		return nil, errors.New("no definitions reflected")
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	title := cases.Title(language.English).String(g.name)
	doc := map[string]any{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"$id":         schemaBaseURL + g.name + ".json",
		"title":       title + " API Types",
		"description": fmt.Sprintf("Definitions: %d", len(names)),
		"$defs":       defs,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
