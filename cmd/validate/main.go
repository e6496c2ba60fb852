// Command validate performs integrity checks on a basin GeoJSON file before
// it is served: geometry well-formedness, statistic coverage, monthly series
// completeness, and color scale construction.
//
// Usage:
//
//	go run ./cmd/validate -geojson data/basins.geojson.gz -default-basin Amazon
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/basinatlas/server/internal/config"
	"github.com/basinatlas/server/internal/data/geojson"
	"github.com/basinatlas/server/internal/stats"
	"github.com/basinatlas/server/pkg/colorscale"
)

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
	geojsonPath := flag.String("geojson", "", "path to basin GeoJSON file (plain or .gz)")
	defaultBasin := flag.String("default-basin", config.DefaultBasin, "basin every view falls back to")
	cutoffStrategy := flag.String("cutoff-strategy", string(colorscale.CutoffPercentile), "diverging cutoff strategy (percentile, mean, fixed)")
	flag.Parse()

	if *geojsonPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*geojsonPath, *defaultBasin, *cutoffStrategy); code != 0 {
		os.Exit(code)
	}
}

func run(path, defaultBasin, cutoffStrategy string) int {
	fmt.Println("=== Basin Dataset Validation ===")
	fmt.Println()

	fc, err := geojson.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load basins: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateGeometry(fc),
		validateStatistics(fc, defaultBasin),
		validateMonthlySeries(fc),
		validateScales(fc, cutoffStrategy),
	}

	// Report results.
	pass := color.New(color.FgGreen).Sprint("PASS")
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := pass
		if !p.passed() {
			status = color.New(color.FgRed).Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Basins: %d, Continents: %d\n", fc.Len(), len(fc.Continents()))

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

// ── Phase 1: Geometry ──
// Rings must be closed and bounds must be plausible coordinates.

func validateGeometry(fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "Phase 1: Geometry (rings, bounds)"}

	withGeometry := 0
	for _, f := range fc.Features() {
		if len(f.Geometry.Polygons) == 0 {
			p.errorf("%s: no geometry", f.Name)
			continue
		}
		withGeometry++
		for pi, poly := range f.Geometry.Polygons {
			for ri, ring := range poly {
				if len(ring) < 4 {
					p.errorf("%s: polygon %d ring %d has %d positions (need at least 4)", f.Name, pi, ri, len(ring))
					continue
				}
				if ring[0] != ring[len(ring)-1] {
					p.errorf("%s: polygon %d ring %d is not closed", f.Name, pi, ri)
				}
				for _, pos := range ring {
					if pos[0] < -180 || pos[0] > 180 || pos[1] < -90 || pos[1] > 90 {
						p.errorf("%s: polygon %d ring %d has out-of-range position (%g, %g)", f.Name, pi, ri, pos[0], pos[1])
						break
					}
				}
			}
		}
	}
	if withGeometry == 0 && fc.Len() > 0 {
		p.errorf("no basin carries any geometry")
	}
	return p
}

// ── Phase 2: Statistics ──
// Population and average scarcity must be present and non-negative where set,
// and the default basin must exist.

func validateStatistics(fc *geojson.FeatureCollection, defaultBasin string) *phase {
	p := &phase{name: "Phase 2: Statistics (population, average)"}

	if _, ok := fc.Get(defaultBasin); !ok && fc.Len() > 0 {
		p.errorf("default basin %q not in dataset; every unresolved selection will dead-end", defaultBasin)
	}

	var missingPop, missingAvg int
	for _, f := range fc.Features() {
		if f.Population == nil {
			missingPop++
		} else if *f.Population < 0 {
			p.errorf("%s: negative population %g", f.Name, *f.Population)
		}
		if f.Average == nil {
			missingAvg++
		} else if *f.Average < 0 {
			p.errorf("%s: negative average scarcity %g", f.Name, *f.Average)
		}
	}
	if fc.Len() > 0 && missingPop == fc.Len() {
		p.errorf("no basin has a population value")
	}
	if fc.Len() > 0 && missingAvg == fc.Len() {
		p.errorf("no basin has an average scarcity value")
	}
	fmt.Printf("  missing values: population=%d, average=%d\n", missingPop, missingAvg)
	return p
}

// ── Phase 3: Monthly Series ──
// Reports per-month coverage and checks the global range is computable.

func validateMonthlySeries(fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "Phase 3: Monthly Series (coverage, range)"}

	var monthCounts [12]int
	for _, f := range fc.Features() {
		for m := 0; m < 12; m++ {
			if _, ok := f.Month(m); ok {
				monthCounts[m]++
			}
		}
	}
	for m, n := range monthCounts {
		fmt.Printf("  %s: %d/%d basins\n", geojson.MonthKeys[m], n, fc.Len())
	}

	min, max, ok := stats.GlobalMonthlyRange(fc)
	if !ok {
		if fc.Len() > 0 {
			p.errorf("no monthly observations anywhere; the monthly view will render as no-data")
		}
		return p
	}
	if min < 0 {
		p.errorf("negative monthly scarcity %g", min)
	}
	fmt.Printf("  global monthly range: [%g, %g]\n", min, max)
	return p
}

// ── Phase 4: Scales ──
// Every statistic the server offers must yield a constructible scale (or a
// clean no-data outcome).

func validateScales(fc *geojson.FeatureCollection, cutoffStrategy string) *phase {
	p := &phase{name: "Phase 4: Color Scales (construction)"}

	opts := colorscale.DivergingOptions{Strategy: colorscale.CutoffStrategy(cutoffStrategy)}
	for _, stat := range []stats.Statistic{stats.StatPopulation, stats.StatAverage} {
		sel := stats.Selector{Stat: stat}
		domain := stats.Domain(fc, sel)
		switch _, err := colorscale.NewDiverging(domain, opts); {
		case errors.Is(err, colorscale.ErrNoData):
			fmt.Printf("  %s: no data (scale skipped)\n", stat)
		case err != nil:
			p.errorf("%s: %v", stat, err)
		}
	}

	if min, max, ok := stats.GlobalMonthlyRange(fc); ok {
		sc := colorscale.NewContinuous(min, max)
		bp := sc.Breakpoints()
		if len(bp) != 2 {
			p.errorf("monthly: continuous scale has %d breakpoints", len(bp))
		}
	}
	return p
}
