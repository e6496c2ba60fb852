// Package stats extracts numeric statistics from basin feature collections.
package stats

import (
	"fmt"

	"github.com/basinatlas/server/internal/data/geojson"
)

// Statistic names a displayable basin statistic.
type Statistic string

const (
	StatPopulation Statistic = "population"
	StatAverage    Statistic = "average"
	StatMonthly    Statistic = "monthly"
)

// Selector pairs a statistic with a month index. Month is only meaningful
// for StatMonthly.
type Selector struct {
	Stat  Statistic
	Month int
}

// Validate checks the selector names a known statistic and, for monthly, a
// month in range.
func (s Selector) Validate() error {
	switch s.Stat {
	case StatPopulation, StatAverage:
		return nil
	case StatMonthly:
		if s.Month < 0 || s.Month > 11 {
			return fmt.Errorf("stats: month index %d out of range", s.Month)
		}
		return nil
	default:
		return fmt.Errorf("stats: unknown statistic %q", s.Stat)
	}
}

// Key returns a stable cache key for the selector.
func (s Selector) Key() string {
	if s.Stat == StatMonthly {
		return fmt.Sprintf("%s:%d", s.Stat, s.Month)
	}
	return string(s.Stat)
}

// Value extracts the selected statistic from a single feature.
func Value(f *geojson.Feature, sel Selector) (float64, bool) {
	switch sel.Stat {
	case StatPopulation:
		if f.Population == nil {
			return 0, false
		}
		return *f.Population, true
	case StatAverage:
		if f.Average == nil {
			return 0, false
		}
		return *f.Average, true
	case StatMonthly:
		return f.Month(sel.Month)
	default:
		return 0, false
	}
}

// Domain returns the value set for scale building: one value per feature that
// actually has the statistic. Features with missing values are excluded, not
// zero-substituted, so placeholder zeros cannot distort the scale domain.
// An unknown statistic yields an empty set ("no data"), never an error.
func Domain(fc *geojson.FeatureCollection, sel Selector) []float64 {
	features := fc.Features()
	values := make([]float64, 0, len(features))
	for i := range features {
		if v, ok := Value(&features[i], sel); ok {
			values = append(values, v)
		}
	}
	return values
}

// Series returns a feature's twelve monthly values for charting, substituting
// 0 for any absent month. Charts always show 12 bars per basin.
func Series(f *geojson.Feature) [12]float64 {
	var out [12]float64
	for m := 0; m < 12; m++ {
		if v, ok := f.Month(m); ok {
			out[m] = v
		}
	}
	return out
}

// GlobalMonthlyRange computes the min and max across all features and all
// twelve months. It is computed once per collection so the monthly color
// scale stays fixed while scrubbing through months. ok is false when no
// feature has any monthly value.
func GlobalMonthlyRange(fc *geojson.FeatureCollection) (min, max float64, ok bool) {
	features := fc.Features()
	for i := range features {
		for m := 0; m < 12; m++ {
			v, has := features[i].Month(m)
			if !has {
				continue
			}
			if !ok {
				min, max, ok = v, v, true
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return min, max, ok
}
