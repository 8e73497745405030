// Command validate checks the outputs of an ETL run: every per-year file holds
// exactly the retained variables with derived values consistent with their
// inputs, and the merged CSV has one row per grid cell with the year of the
// block it came from.
//
// Usage:
//
//	go run ./cmd/validate -out-dir ../data/preprocessed/era5-datasets
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"strconv"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	csvadapter "github.com/couchcryptid/era5-etl/internal/adapter/csv"
	"github.com/couchcryptid/era5-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/era5-etl/internal/domain"
)

// Values are stored as float32, so derived checks compare with a relative
// tolerance.
const tolerance = 1e-4

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	outDir := flag.String("out-dir", sharedcfg.EnvOrDefault("ERA5_OUTPUT_DIR", "../data/preprocessed/era5-datasets"), "preprocessed output root")
	flag.Parse()

	os.Exit(run(*outDir))
}

func run(outDir string) int {
	fmt.Println("=== ERA5 Output Validation ===")
	fmt.Println()

	ncWriter := netcdf.NewWriter(outDir, slog.Default())
	datasets := make(map[int]*domain.Dataset, len(domain.Years))
	for _, year := range domain.Years {
		ds, err := netcdf.ReadFile(ncWriter.Path(year))
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load %d: %v\n", year, err)
			return 1
		}
		datasets[year] = ds
	}

	records, err := loadCSV(csvadapter.NewWriter(outDir, slog.Default()).Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load merged CSV: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateVariables(datasets),
		validateDerived(datasets),
		validateMerged(records, datasets),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d merged CSV rows across %d years\n", max(len(records)-1, 0), len(datasets))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no header in %s", path)
	}
	return all, nil
}

// ── Validation phases ──

func validateVariables(datasets map[int]*domain.Dataset) *phase {
	p := &phase{name: "Per-year variables"}
	want := slices.Clone(domain.RetainedVariables)
	slices.Sort(want)
	for _, year := range domain.Years {
		got := datasets[year].VarNames()
		slices.Sort(got)
		if !slices.Equal(want, got) {
			p.errorf("%d: variables %v, want %v", year, got, want)
		}
	}
	return p
}

func validateDerived(datasets map[int]*domain.Dataset) *phase {
	p := &phase{name: "Derived variable consistency"}
	for _, year := range domain.Years {
		ds := datasets[year]
		vars := make(map[string][]float64, len(domain.RetainedVariables))
		for _, name := range domain.RetainedVariables {
			v, ok := ds.Var(name)
			if !ok {
				p.errorf("%d: %s missing", year, name)
				return p
			}
			vars[name] = v.Data
		}
		checks := []struct {
			name string
			fn   func(i int) float64
		}{
			{domain.VarWindSpeed, func(i int) float64 {
				return domain.WindSpeed(vars[domain.VarU10][i], vars[domain.VarV10][i])
			}},
			{domain.VarRH, func(i int) float64 {
				return domain.RelativeHumidity(vars[domain.VarT2M][i], vars[domain.VarD2M][i])
			}},
			{domain.VarVPD, func(i int) float64 {
				return domain.VaporPressureDeficit(vars[domain.VarT2M][i], vars[domain.VarD2M][i])
			}},
		}
		for _, c := range checks {
			mismatches := 0
			for i, got := range vars[c.name] {
				want := c.fn(i)
				if math.IsNaN(want) && math.IsNaN(got) {
					continue
				}
				if math.Abs(got-want) > tolerance*math.Max(1, math.Abs(want)) {
					if mismatches == 0 {
						p.errorf("%d: %s[%d] = %v, recomputed %v", year, c.name, i, got, want)
					}
					mismatches++
				}
			}
			if mismatches > 1 {
				p.errorf("%d: %s has %d mismatching cells", year, c.name, mismatches)
			}
		}
	}
	return p
}

func validateMerged(records [][]string, datasets map[int]*domain.Dataset) *phase {
	p := &phase{name: "Merged CSV rows and year column"}
	header := records[0]
	yearCol := slices.Index(header, domain.YearColumn)
	if yearCol < 0 {
		p.errorf("header %v has no %q column", header, domain.YearColumn)
		return p
	}
	for _, name := range domain.RetainedVariables {
		if !slices.Contains(header, name) {
			p.errorf("header %v has no %q column", header, name)
		}
	}

	rows := records[1:]
	want := 0
	for _, year := range domain.Years {
		want += gridSize(datasets[year])
	}
	if len(rows) != want {
		p.errorf("merged rows = %d, want %d (sum of per-year grid sizes)", len(rows), want)
		return p
	}

	offset := 0
	for _, year := range domain.Years {
		n := gridSize(datasets[year])
		label := strconv.Itoa(year)
		for i, r := range rows[offset : offset+n] {
			if len(r) != len(header) {
				p.errorf("row %d: %d fields, want %d", offset+i+2, len(r), len(header))
				continue
			}
			if r[yearCol] != label {
				p.errorf("row %d: year %q, want %q", offset+i+2, r[yearCol], label)
			}
		}
		offset += n
	}
	return p
}

func gridSize(ds *domain.Dataset) int {
	if len(ds.Vars) == 0 {
		return 0
	}
	return len(ds.Vars[0].Data)
}
