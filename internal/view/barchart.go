package view

import (
	"github.com/basinatlas/server/internal/data/geojson"
	"github.com/basinatlas/server/internal/stats"
)

// BarChart is the twelve-bar monthly series for one basin.
type BarChart struct {
	Basin    string    `json:"basin"`
	Fallback bool      `json:"fallback,omitempty"`
	Months   []string  `json:"months"`
	Values   []float64 `json:"values"`
	NoData   bool      `json:"no_data,omitempty"`
}

// BuildBarChart produces the monthly series for a resolved feature. Absent
// months are zero-substituted so the chart always shows twelve bars.
// fallback records that the requested basin did not resolve and the default
// basin is shown instead.
func BuildBarChart(f *geojson.Feature, fallback bool) BarChart {
	series := stats.Series(f)
	return BarChart{
		Basin:    f.Name,
		Fallback: fallback,
		Months:   geojson.MonthKeys[:],
		Values:   series[:],
	}
}

// BarChartNoData is the terminal-but-non-fatal presentation when nothing
// resolves, not even the default basin.
func BarChartNoData() BarChart {
	return BarChart{
		Months: geojson.MonthKeys[:],
		Values: make([]float64, 12),
		NoData: true,
	}
}
