// Package colorscale builds value-to-color mappings for basin statistics.
package colorscale

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
)

// Mode identifies the kind of scale.
type Mode string

const (
	ModeDiverging  Mode = "diverging"
	ModeContinuous Mode = "continuous"
)

// CutoffStrategy selects how the diverging midpoint is computed.
type CutoffStrategy string

const (
	CutoffPercentile CutoffStrategy = "percentile"
	CutoffMean       CutoffStrategy = "mean"
	CutoffFixed      CutoffStrategy = "fixed"
)

// DefaultCutoffFraction is the percentile fraction used when none is given.
// This is the 30th percentile, not the median.
const DefaultCutoffFraction = 0.3

// Diverging scale endpoint colors.
var (
	ColorLow  = color.RGBA{R: 0x2c, G: 0x7b, B: 0xb6, A: 255} // #2c7bb6
	ColorMid  = color.RGBA{R: 0xff, G: 0xff, B: 0xbf, A: 255} // #ffffbf
	ColorHigh = color.RGBA{R: 0xd7, G: 0x19, B: 0x1c, A: 255} // #d7191c
)

// Continuous scale endpoint colors.
var (
	ContinuousLow  = color.RGBA{R: 0xfe, G: 0xe5, B: 0xd9, A: 255} // #fee5d9
	ContinuousHigh = color.RGBA{R: 0xa5, G: 0x0f, B: 0x15, A: 255} // #a50f15
)

// NoDataColor is the neutral fill for features without a value. It is not a
// point on any scale; such features are never passed into a scale.
var NoDataColor = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 255}

// NoDataOpacity is the fill opacity used alongside NoDataColor.
const NoDataOpacity = 0.4

// ErrNoData is returned when a scale is requested over an empty value set.
var ErrNoData = errors.New("colorscale: no values")

// Stop is a value-anchored color stop.
type Stop struct {
	Value float64
	Color color.RGBA
}

// Scale maps numeric values to colors. The mapping is total over the reals:
// values outside the domain clamp to the nearest endpoint color.
type Scale interface {
	At(v float64) color.RGBA
	Mode() Mode
	Breakpoints() []float64
	Stops() []Stop
}

// DivergingOptions configures the cutoff of a diverging scale.
type DivergingOptions struct {
	Strategy CutoffStrategy
	Fraction float64 // percentile fraction; 0 means DefaultCutoffFraction
	Value    float64 // midpoint for CutoffFixed
}

// Diverging is a three-stop scale emphasizing deviation from a cutoff.
type Diverging struct {
	stops      [3]Stop
	degenerate bool
}

// NewDiverging builds a diverging scale over the given values. Values must be
// real observations only; callers exclude missing data before calling.
// An unrecognized cutoff strategy is a caller bug and fails construction.
func NewDiverging(values []float64, opt DivergingOptions) (*Diverging, error) {
	cutoffFn, err := cutoffFunc(opt)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if min == max {
		return &Diverging{
			stops: [3]Stop{
				{Value: min, Color: ColorMid},
				{Value: min, Color: ColorMid},
				{Value: min, Color: ColorMid},
			},
			degenerate: true,
		}, nil
	}

	return &Diverging{
		stops: [3]Stop{
			{Value: min, Color: ColorLow},
			{Value: cutoffFn(values), Color: ColorMid},
			{Value: max, Color: ColorHigh},
		},
	}, nil
}

func cutoffFunc(opt DivergingOptions) (func([]float64) float64, error) {
	switch opt.Strategy {
	case CutoffPercentile, "":
		p := opt.Fraction
		if p == 0 {
			p = DefaultCutoffFraction
		}
		return func(values []float64) float64 {
			return percentile(values, p)
		}, nil
	case CutoffMean:
		return mean, nil
	case CutoffFixed:
		return func([]float64) float64 { return opt.Value }, nil
	default:
		return nil, fmt.Errorf("colorscale: unknown cutoff strategy %q", opt.Strategy)
	}
}

// percentile sorts ascending and takes the value at index floor(n*p).
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// At returns the color for v, clamping outside [min, max].
func (s *Diverging) At(v float64) color.RGBA {
	if s.degenerate {
		return ColorMid
	}
	return at(s.stops[:], v)
}

// Mode returns ModeDiverging.
func (s *Diverging) Mode() Mode { return ModeDiverging }

// Breakpoints returns [min, cutoff, max].
func (s *Diverging) Breakpoints() []float64 {
	return []float64{s.stops[0].Value, s.stops[1].Value, s.stops[2].Value}
}

// Stops returns the three color stops.
func (s *Diverging) Stops() []Stop {
	return []Stop{s.stops[0], s.stops[1], s.stops[2]}
}

// Continuous is a two-stop linear scale over a fixed range. The range is
// supplied by the caller (a global min/max across all features and months)
// so that a value's color stays stable while scrubbing through months.
type Continuous struct {
	stops [2]Stop
}

// NewContinuous builds a continuous scale from min to max.
func NewContinuous(min, max float64) *Continuous {
	return &Continuous{
		stops: [2]Stop{
			{Value: min, Color: ContinuousLow},
			{Value: max, Color: ContinuousHigh},
		},
	}
}

// At returns the color for v, clamping outside [min, max].
func (s *Continuous) At(v float64) color.RGBA {
	return at(s.stops[:], v)
}

// Mode returns ModeContinuous.
func (s *Continuous) Mode() Mode { return ModeContinuous }

// Breakpoints returns [min, max].
func (s *Continuous) Breakpoints() []float64 {
	return []float64{s.stops[0].Value, s.stops[1].Value}
}

// Stops returns the two color stops.
func (s *Continuous) Stops() []Stop {
	return []Stop{s.stops[0], s.stops[1]}
}

// at evaluates a piecewise-linear stop sequence at v. Stops are ordered
// ascending by value; zero-width segments resolve to the upper stop.
func at(stops []Stop, v float64) color.RGBA {
	if v <= stops[0].Value {
		return stops[0].Color
	}
	last := stops[len(stops)-1]
	if v >= last.Value {
		return last.Color
	}
	for i := 1; i < len(stops); i++ {
		if v <= stops[i].Value {
			lo, hi := stops[i-1], stops[i]
			span := hi.Value - lo.Value
			if span == 0 {
				return hi.Color
			}
			return interpolate(lo.Color, hi.Color, (v-lo.Value)/span)
		}
	}
	return last.Color
}

func interpolate(c1, c2 color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c1.R) + t*(float64(c2.R)-float64(c1.R))),
		G: uint8(float64(c1.G) + t*(float64(c2.G)-float64(c1.G))),
		B: uint8(float64(c1.B) + t*(float64(c2.B)-float64(c1.B))),
		A: 255,
	}
}

// Hex formats a color as a lowercase #rrggbb string.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses a #rrggbb string.
func ParseHex(s string) (color.RGBA, error) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("colorscale: parse hex %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
