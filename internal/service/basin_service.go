// Package service provides the coordination logic for basin datasets.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/basinatlas/server/internal/cache"
	"github.com/basinatlas/server/internal/config"
	"github.com/basinatlas/server/internal/data/geojson"
	"github.com/basinatlas/server/internal/observability"
	"github.com/basinatlas/server/internal/render"
	"github.com/basinatlas/server/internal/selection"
	"github.com/basinatlas/server/internal/stats"
	"github.com/basinatlas/server/internal/view"
	"github.com/basinatlas/server/pkg/colorscale"
)

// BasinServiceConfig contains basin service configuration.
type BasinServiceConfig struct {
	DatasetID    string
	Collection   *geojson.FeatureCollection
	Cache        *cache.Manager
	Renderer     *render.Renderer
	Metrics      *observability.Metrics
	DefaultBasin string
	Cutoff       colorscale.DivergingOptions
}

// BasinService coordinates one dataset: it owns the immutable feature
// collection, the per-statistic color scales, and the shared selection cell,
// and produces every view payload from them.
type BasinService struct {
	datasetID    string
	fc           *geojson.FeatureCollection
	cache        *cache.Manager
	renderer     *render.Renderer
	metrics      *observability.Metrics
	defaultBasin string
	cutoff       colorscale.DivergingOptions

	// Scales are pure functions of (collection, selector); they are built
	// lazily and kept for the lifetime of the service. Rebuilding with the
	// same selector always yields an identical mapping.
	scaleMu sync.Mutex
	scales  map[string]colorscale.Scale

	// Global monthly extrema, computed once so the monthly scale stays fixed
	// while scrubbing through months.
	monthlyMin float64
	monthlyMax float64
	monthlyOK  bool

	selection *selection.Cell
}

// NewBasinService creates a basin service for one loaded collection.
func NewBasinService(cfg BasinServiceConfig) *BasinService {
	if cfg.DatasetID == "" {
		cfg.DatasetID = "default"
	}
	if cfg.DefaultBasin == "" {
		cfg.DefaultBasin = config.DefaultBasin
	}

	s := &BasinService{
		datasetID:    cfg.DatasetID,
		fc:           cfg.Collection,
		cache:        cfg.Cache,
		renderer:     cfg.Renderer,
		metrics:      cfg.Metrics,
		defaultBasin: cfg.DefaultBasin,
		cutoff:       cfg.Cutoff,
		scales:       make(map[string]colorscale.Scale),
		selection:    selection.NewCell(),
	}
	s.monthlyMin, s.monthlyMax, s.monthlyOK = stats.GlobalMonthlyRange(s.fc)

	if s.metrics != nil {
		s.metrics.BasinsLoaded.WithLabelValues(s.datasetID).Set(float64(s.fc.Len()))
		s.selection.Subscribe(func(_ string, selected bool) {
			action := "set"
			if !selected {
				action = "clear"
			}
			s.metrics.SelectionWrites.WithLabelValues(s.datasetID, action).Inc()
		})
	}
	return s
}

// DatasetID returns the dataset identifier.
func (s *BasinService) DatasetID() string { return s.datasetID }

// Collection returns the immutable feature collection.
func (s *BasinService) Collection() *geojson.FeatureCollection { return s.fc }

// Selection returns the shared selection cell.
func (s *BasinService) Selection() *selection.Cell { return s.selection }

// DefaultBasin returns the documented fallback basin for this dataset.
func (s *BasinService) DefaultBasin() string { return s.defaultBasin }

// ScaleFor returns the color scale for a selector, building it on first use.
// A nil scale with nil error means the selector has no data; callers degrade
// to the no-data presentation. All twelve monthly selectors share one
// continuous scale over the global monthly range.
func (s *BasinService) ScaleFor(sel stats.Selector) (colorscale.Scale, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	// Monthly scales are month-independent.
	key := string(sel.Stat)

	s.scaleMu.Lock()
	defer s.scaleMu.Unlock()

	if sc, ok := s.scales[key]; ok {
		return sc, nil
	}

	var sc colorscale.Scale
	switch sel.Stat {
	case stats.StatMonthly:
		if s.monthlyOK {
			sc = colorscale.NewContinuous(s.monthlyMin, s.monthlyMax)
		}
	default:
		domain := stats.Domain(s.fc, sel)
		built, err := colorscale.NewDiverging(domain, s.cutoff)
		switch {
		case errors.Is(err, colorscale.ErrNoData):
			// No observations: cache the no-data outcome.
		case err != nil:
			// Bad cutoff configuration is a caller bug; do not cache it.
			return nil, err
		default:
			sc = built
		}
	}

	s.scales[key] = sc
	if s.metrics != nil {
		s.metrics.ScaleRebuilds.WithLabelValues(s.datasetID, key).Inc()
	}
	return sc, nil
}

// selectedBasin resolves the current selection for highlighting. An active
// selection naming an absent basin highlights the default basin instead; no
// selection highlights nothing.
func (s *BasinService) selectedBasin() string {
	name, ok := s.selection.Get()
	if !ok {
		return ""
	}
	if _, found := s.fc.Get(name); found {
		return name
	}
	return s.defaultBasin
}

// stylePayload is the map-style response body.
type stylePayload struct {
	Dataset   string              `json:"dataset"`
	Statistic string              `json:"statistic"`
	Month     *int                `json:"month,omitempty"`
	Styles    []view.FeatureStyle `json:"styles"`
	NoData    bool                `json:"no_data,omitempty"`
}

// StyleJSON returns the per-basin styling payload for a selector.
func (s *BasinService) StyleJSON(sel stats.Selector) ([]byte, error) {
	selected := s.selectedBasin()
	key := cache.StyleKey(s.datasetID, sel.Key(), selected)
	if s.cache != nil {
		if data, ok := s.cache.GetView(key); ok {
			return data, nil
		}
	}

	scale, err := s.ScaleFor(sel)
	if err != nil {
		return nil, err
	}

	payload := stylePayload{
		Dataset:   s.datasetID,
		Statistic: string(sel.Stat),
		Styles:    view.MapStyles(s.fc, sel, scale, selected),
		NoData:    scale == nil,
	}
	if sel.Stat == stats.StatMonthly {
		m := sel.Month
		payload.Month = &m
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetView(key, data)
	}
	return data, nil
}

// legendPayload is the legend response body.
type legendPayload struct {
	Dataset   string `json:"dataset"`
	Statistic string `json:"statistic"`
	view.Legend
}

// LegendJSON returns the legend payload for a selector.
func (s *BasinService) LegendJSON(sel stats.Selector) ([]byte, error) {
	key := cache.LegendKey(s.datasetID, sel.Key())
	if s.cache != nil {
		if data, ok := s.cache.GetView(key); ok {
			return data, nil
		}
	}

	scale, err := s.ScaleFor(sel)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(legendPayload{
		Dataset:   s.datasetID,
		Statistic: string(sel.Stat),
		Legend:    view.BuildLegend(scale),
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetView(key, data)
	}
	return data, nil
}

// LegendPNG renders the legend strip for a selector.
func (s *BasinService) LegendPNG(sel stats.Selector) ([]byte, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("service: no renderer configured")
	}

	w, h := s.renderer.LegendSize()
	key := cache.LegendImageKey(s.datasetID, sel.Key(), w, h)
	if s.cache != nil {
		if data, ok := s.cache.GetImage(key); ok {
			return data, nil
		}
	}

	scale, err := s.ScaleFor(sel)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := s.renderer.RenderLegend(scale)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RenderDuration.WithLabelValues(s.datasetID, "legend").Observe(time.Since(start).Seconds())
	}
	if s.cache != nil {
		s.cache.SetImage(key, data)
	}
	return data, nil
}

// MapPNG renders the choropleth for a selector, highlighting the selected
// basin.
func (s *BasinService) MapPNG(sel stats.Selector) ([]byte, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("service: no renderer configured")
	}

	selected := s.selectedBasin()
	w, h := s.renderer.MapSize()
	key := cache.MapImageKey(s.datasetID, sel.Key(), selected, w, h)
	if s.cache != nil {
		if data, ok := s.cache.GetImage(key); ok {
			return data, nil
		}
	}

	scale, err := s.ScaleFor(sel)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := s.renderer.RenderMap(s.fc, view.MapStyles(s.fc, sel, scale, selected))
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RenderDuration.WithLabelValues(s.datasetID, "map").Observe(time.Since(start).Seconds())
	}
	if s.cache != nil {
		s.cache.SetImage(key, data)
	}
	return data, nil
}

// BarChartForSelection resolves the shared selection to a basin and returns
// its monthly series. With no selection the default basin is shown; a
// selection that does not resolve also falls back to the default basin and
// is flagged.
func (s *BasinService) BarChartForSelection() view.BarChart {
	name, active := s.selection.Get()
	f, ok := s.selection.Resolve(s.fc, s.defaultBasin)
	if !ok {
		return view.BarChartNoData()
	}
	fallback := active && f.Name != name
	return view.BuildBarChart(f, fallback)
}

// MonthlySeries returns the monthly series for an explicitly named basin,
// falling back to the default basin when the name does not resolve.
func (s *BasinService) MonthlySeries(name string) view.BarChart {
	if f, ok := s.fc.Get(name); ok {
		return view.BuildBarChart(f, false)
	}
	f, ok := s.fc.Get(s.defaultBasin)
	if !ok {
		return view.BarChartNoData()
	}
	return view.BuildBarChart(f, true)
}

// treemapPayload is the treemap response body.
type treemapPayload struct {
	Dataset string             `json:"dataset"`
	Nodes   []view.TreemapNode `json:"nodes"`
}

// TreemapJSON returns the ranked treemap payload.
func (s *BasinService) TreemapJSON() ([]byte, error) {
	key := cache.TreemapKey(s.datasetID)
	if s.cache != nil {
		if data, ok := s.cache.GetView(key); ok {
			return data, nil
		}
	}

	data, err := json.Marshal(treemapPayload{
		Dataset: s.datasetID,
		Nodes:   view.BuildTreemap(s.fc),
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetView(key, data)
	}
	return data, nil
}

// MonthlyRange reports the global monthly extrema.
type MonthlyRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	OK  bool    `json:"ok"`
}

// Metadata describes a dataset for the API.
type Metadata struct {
	Dataset      string         `json:"dataset"`
	BasinCount   int            `json:"basin_count"`
	Continents   []string       `json:"continents"`
	Bounds       geojson.Bounds `json:"bounds"`
	DefaultBasin string         `json:"default_basin"`
	MonthlyRange MonthlyRange   `json:"monthly_range"`
	Statistics   []string       `json:"statistics"`
	Months       []string       `json:"months"`
}

// Metadata returns dataset metadata.
func (s *BasinService) Metadata() Metadata {
	return Metadata{
		Dataset:      s.datasetID,
		BasinCount:   s.fc.Len(),
		Continents:   s.fc.Continents(),
		Bounds:       s.fc.Bounds(),
		DefaultBasin: s.defaultBasin,
		MonthlyRange: MonthlyRange{Min: s.monthlyMin, Max: s.monthlyMax, OK: s.monthlyOK},
		Statistics:   []string{string(stats.StatPopulation), string(stats.StatAverage), string(stats.StatMonthly)},
		Months:       geojson.MonthKeys[:],
	}
}
