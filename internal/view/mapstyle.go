// Package view produces presentation structures consumed by the dashboard
// views: map polygon styling, legend, bar chart series, and treemap nodes.
package view

import (
	"github.com/basinatlas/server/internal/data/geojson"
	"github.com/basinatlas/server/internal/stats"
	"github.com/basinatlas/server/pkg/colorscale"
)

// Polygon border styling. The selected basin gets the thick dark border.
const (
	strokeDefault       = "#ffffff"
	strokeSelected      = "#222222"
	strokeWidthDefault  = 0.5
	strokeWidthSelected = 2.5
	fillOpacityDefault  = 1.0
)

// FeatureStyle is the per-basin styling consumed by the map view.
type FeatureStyle struct {
	ID          string  `json:"id"`
	Fill        string  `json:"fill"`
	FillOpacity float64 `json:"fill_opacity"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"stroke_width"`
	NoData      bool    `json:"no_data,omitempty"`
	Selected    bool    `json:"selected,omitempty"`
}

// MapStyles styles every basin in the collection for the given statistic.
// Basins missing the statistic get the fixed neutral no-data fill and are
// never passed through the scale. A nil scale (empty value set) styles the
// whole collection as no-data.
func MapStyles(fc *geojson.FeatureCollection, sel stats.Selector, scale colorscale.Scale, selected string) []FeatureStyle {
	features := fc.Features()
	styles := make([]FeatureStyle, 0, len(features))
	for i := range features {
		f := &features[i]
		st := FeatureStyle{
			ID:          f.Name,
			Stroke:      strokeDefault,
			StrokeWidth: strokeWidthDefault,
		}
		if f.Name == selected {
			st.Stroke = strokeSelected
			st.StrokeWidth = strokeWidthSelected
			st.Selected = true
		}

		v, ok := stats.Value(f, sel)
		if !ok || scale == nil {
			st.Fill = colorscale.Hex(colorscale.NoDataColor)
			st.FillOpacity = colorscale.NoDataOpacity
			st.NoData = true
		} else {
			st.Fill = colorscale.Hex(scale.At(v))
			st.FillOpacity = fillOpacityDefault
		}
		styles = append(styles, st)
	}
	return styles
}
