// Package render draws legend strips and basin choropleths using fogleman/gg.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"strconv"
	"sync"

	"github.com/fogleman/gg"

	"github.com/basinatlas/server/internal/data/geojson"
	"github.com/basinatlas/server/internal/view"
	"github.com/basinatlas/server/pkg/colorscale"
)

// Config contains renderer configuration.
type Config struct {
	LegendWidth  int
	LegendHeight int
	MapWidth     int
	MapHeight    int
}

// Renderer renders PNG images for the legend and map views.
type Renderer struct {
	config     Config
	bufferPool sync.Pool
}

// NewRenderer creates a new renderer.
func NewRenderer(cfg Config) *Renderer {
	if cfg.LegendWidth <= 0 {
		cfg.LegendWidth = 320
	}
	if cfg.LegendHeight <= 0 {
		cfg.LegendHeight = 40
	}
	if cfg.MapWidth <= 0 {
		cfg.MapWidth = 1024
	}
	if cfg.MapHeight <= 0 {
		cfg.MapHeight = 768
	}
	return &Renderer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}
}

// LegendSize returns the configured legend dimensions.
func (r *Renderer) LegendSize() (int, int) {
	return r.config.LegendWidth, r.config.LegendHeight
}

// MapSize returns the configured map dimensions.
func (r *Renderer) MapSize() (int, int) {
	return r.config.MapWidth, r.config.MapHeight
}

// RenderLegend draws a horizontal color ramp for the scale with tick labels
// at each breakpoint. A nil scale renders the no-data swatch alone.
func (r *Renderer) RenderLegend(scale colorscale.Scale) ([]byte, error) {
	w, h := r.config.LegendWidth, r.config.LegendHeight
	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	rampH := float64(h) * 0.5

	if scale == nil {
		dc.SetColor(colorscale.NoDataColor)
		dc.DrawRectangle(0, 0, float64(w), rampH)
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored("no data", float64(w)/2, rampH+(float64(h)-rampH)/2, 0.5, 0.5)
		return r.encodeContext(dc)
	}

	bp := scale.Breakpoints()
	min, max := bp[0], bp[len(bp)-1]
	span := max - min

	// Sample the scale across every pixel column.
	for x := 0; x < w; x++ {
		v := min
		if span > 0 {
			v = min + span*float64(x)/float64(w-1)
		}
		dc.SetColor(scale.At(v))
		dc.DrawRectangle(float64(x), 0, 1, rampH)
		dc.Fill()
	}

	// Tick marks and labels at breakpoints.
	dc.SetRGB(0, 0, 0)
	for i, v := range bp {
		x := 0.0
		if span > 0 {
			x = (v - min) / span * float64(w-1)
		}
		dc.SetLineWidth(1)
		dc.DrawLine(x, rampH, x, rampH+4)
		dc.Stroke()

		anchor := 0.5
		switch i {
		case 0:
			anchor = 0
		case len(bp) - 1:
			anchor = 1
		}
		label := strconv.FormatFloat(v, 'g', 4, 64)
		dc.DrawStringAnchored(label, x, rampH+(float64(h)-rampH)/2+2, anchor, 0.5)
	}

	return r.encodeContext(dc)
}

// RenderMap draws a choropleth of the collection using per-basin styles. The
// styles slice is positional, one entry per feature in collection order; the
// selected basin (if any) is drawn last so its border stays on top.
func (r *Renderer) RenderMap(fc *geojson.FeatureCollection, styles []view.FeatureStyle) ([]byte, error) {
	if fc.Len() != len(styles) {
		return nil, fmt.Errorf("render: %d styles for %d features", len(styles), fc.Len())
	}

	w, h := r.config.MapWidth, r.config.MapHeight
	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFillRuleEvenOdd()

	proj, ok := newProjection(fc.Bounds(), w, h)
	if !ok {
		// No geometry at all: blank map.
		return r.encodeContext(dc)
	}

	features := fc.Features()
	order := make([]int, 0, len(features))
	selected := -1
	for i := range features {
		if styles[i].Selected {
			selected = i
			continue
		}
		order = append(order, i)
	}
	if selected >= 0 {
		order = append(order, selected)
	}

	for _, i := range order {
		if err := r.drawFeature(dc, proj, &features[i], styles[i]); err != nil {
			return nil, err
		}
	}

	return r.encodeContext(dc)
}

func (r *Renderer) drawFeature(dc *gg.Context, proj projection, f *geojson.Feature, style view.FeatureStyle) error {
	fill, err := colorscale.ParseHex(style.Fill)
	if err != nil {
		return err
	}
	stroke, err := colorscale.ParseHex(style.Stroke)
	if err != nil {
		return err
	}

	for _, poly := range f.Geometry.Polygons {
		dc.NewSubPath()
		for _, ring := range poly {
			for j, pos := range ring {
				x, y := proj.project(pos[0], pos[1])
				if j == 0 {
					dc.MoveTo(x, y)
				} else {
					dc.LineTo(x, y)
				}
			}
			dc.ClosePath()
		}
		dc.SetRGBA(float64(fill.R)/255, float64(fill.G)/255, float64(fill.B)/255, style.FillOpacity)
		dc.FillPreserve()
		dc.SetRGBA(float64(stroke.R)/255, float64(stroke.G)/255, float64(stroke.B)/255, 1)
		dc.SetLineWidth(style.StrokeWidth)
		dc.Stroke()
	}
	return nil
}

// projection maps lon/lat into image coordinates. Latitude is flipped so
// north is up.
type projection struct {
	bounds geojson.Bounds
	scaleX float64
	scaleY float64
}

func newProjection(b geojson.Bounds, w, h int) (projection, bool) {
	spanLon := b.MaxLon - b.MinLon
	spanLat := b.MaxLat - b.MinLat
	if spanLon <= 0 || spanLat <= 0 {
		return projection{}, false
	}
	return projection{
		bounds: b,
		scaleX: float64(w) / spanLon,
		scaleY: float64(h) / spanLat,
	}, true
}

func (p projection) project(lon, lat float64) (float64, float64) {
	return (lon - p.bounds.MinLon) * p.scaleX, (p.bounds.MaxLat - lat) * p.scaleY
}

func (r *Renderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
