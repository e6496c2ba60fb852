package view

import (
	"github.com/basinatlas/server/pkg/colorscale"
)

// NoDataSwatch describes how basins without a value are shown next to the
// legend ramp.
type NoDataSwatch struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

// Legend is the scale description consumed by the legend view.
type Legend struct {
	Mode        string       `json:"mode"`
	Breakpoints []float64    `json:"breakpoints"`
	Colors      []string     `json:"colors"`
	NoData      NoDataSwatch `json:"no_data"`
	Empty       bool         `json:"empty,omitempty"`
}

// BuildLegend renders a scale into legend form. A nil scale (empty value
// set) produces the documented no-data legend rather than failing.
func BuildLegend(scale colorscale.Scale) Legend {
	legend := Legend{
		NoData: NoDataSwatch{
			Color:   colorscale.Hex(colorscale.NoDataColor),
			Opacity: colorscale.NoDataOpacity,
		},
	}
	if scale == nil {
		legend.Empty = true
		return legend
	}

	legend.Mode = string(scale.Mode())
	legend.Breakpoints = scale.Breakpoints()
	for _, stop := range scale.Stops() {
		legend.Colors = append(legend.Colors, colorscale.Hex(stop.Color))
	}
	return legend
}
