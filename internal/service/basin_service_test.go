package service

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/basinatlas/server/internal/cache"
	"github.com/basinatlas/server/internal/data/geojson"
	"github.com/basinatlas/server/internal/observability"
	"github.com/basinatlas/server/internal/render"
	"github.com/basinatlas/server/internal/stats"
	"github.com/basinatlas/server/internal/view"
	"github.com/basinatlas/server/pkg/colorscale"
)

func f64(v float64) *float64 { return &v }

func testCollection(t *testing.T) *geojson.FeatureCollection {
	t.Helper()

	amazon := geojson.Feature{
		Name:       "Amazon",
		Continent:  "South America",
		Population: f64(1000000),
		Average:    f64(5),
		Geometry: geojson.Geometry{Polygons: []geojson.Polygon{{
			{{-70, -5}, {-60, -5}, {-60, 5}, {-70, 5}, {-70, -5}},
		}}},
	}
	for m := 0; m < 12; m++ {
		if m == 6 {
			continue
		}
		amazon.Months[m] = f64(float64(m + 1))
	}

	nile := geojson.Feature{
		Name:       "Nile",
		Continent:  "Africa",
		Population: f64(500000),
		Average:    f64(8),
		Geometry: geojson.Geometry{Polygons: []geojson.Polygon{{
			{{30, 0}, {35, 0}, {35, 30}, {30, 30}, {30, 0}},
		}}},
	}
	for m := 0; m < 12; m++ {
		nile.Months[m] = f64(40)
	}

	fc, err := geojson.New([]geojson.Feature{amazon, nile})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return fc
}

func newTestService(t *testing.T) *BasinService {
	t.Helper()

	cacheManager, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: 16,
		ImageTTL:         time.Minute,
		ViewCacheSize:    32,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { cacheManager.Close() })

	return NewBasinService(BasinServiceConfig{
		DatasetID:    "basins",
		Collection:   testCollection(t),
		Cache:        cacheManager,
		Renderer:     render.NewRenderer(render.Config{LegendWidth: 120, LegendHeight: 24, MapWidth: 200, MapHeight: 150}),
		Metrics:      observability.NewMetricsForTesting(),
		DefaultBasin: "Amazon",
	})
}

func TestScaleForIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	sel := stats.Selector{Stat: stats.StatPopulation}

	s1, err := svc.ScaleFor(sel)
	if err != nil {
		t.Fatalf("ScaleFor failed: %v", err)
	}
	s2, err := svc.ScaleFor(sel)
	if err != nil {
		t.Fatalf("ScaleFor failed: %v", err)
	}
	if s1 != s2 {
		t.Fatal("expected cached scale on second call")
	}
	for _, v := range []float64{500000, 750000, 1000000} {
		if s1.At(v) != s2.At(v) {
			t.Fatalf("recompute changed mapping at %v", v)
		}
	}
}

func TestMonthlyScaleStableAcrossMonths(t *testing.T) {
	svc := newTestService(t)

	jan, err := svc.ScaleFor(stats.Selector{Stat: stats.StatMonthly, Month: 0})
	if err != nil {
		t.Fatalf("ScaleFor failed: %v", err)
	}
	jul, err := svc.ScaleFor(stats.Selector{Stat: stats.StatMonthly, Month: 6})
	if err != nil {
		t.Fatalf("ScaleFor failed: %v", err)
	}

	// The scale is global across months: same object, breakpoints spanning
	// all features and months.
	if jan != jul {
		t.Fatal("expected one shared monthly scale")
	}
	bp := jan.Breakpoints()
	if len(bp) != 2 || bp[0] != 1 || bp[1] != 40 {
		t.Fatalf("unexpected monthly breakpoints: %v", bp)
	}
}

func TestScaleForInvalidSelector(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.ScaleFor(stats.Selector{Stat: "rainfall"}); err == nil {
		t.Fatal("expected error for unknown statistic")
	}
	if _, err := svc.ScaleFor(stats.Selector{Stat: stats.StatMonthly, Month: 13}); err == nil {
		t.Fatal("expected error for month out of range")
	}
}

func TestScaleForBadCutoffFailsLoudly(t *testing.T) {
	svc := NewBasinService(BasinServiceConfig{
		DatasetID:  "basins",
		Collection: testCollection(t),
		Cutoff:     colorscale.DivergingOptions{Strategy: "quartile"},
	})
	if _, err := svc.ScaleFor(stats.Selector{Stat: stats.StatPopulation}); err == nil {
		t.Fatal("expected construction error for unknown cutoff strategy")
	}
}

func TestStyleJSON(t *testing.T) {
	svc := newTestService(t)
	svc.Selection().Set("Nile")

	data, err := svc.StyleJSON(stats.Selector{Stat: stats.StatPopulation})
	if err != nil {
		t.Fatalf("StyleJSON failed: %v", err)
	}

	var payload struct {
		Dataset   string              `json:"dataset"`
		Statistic string              `json:"statistic"`
		Styles    []view.FeatureStyle `json:"styles"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload.Dataset != "basins" || payload.Statistic != "population" {
		t.Errorf("unexpected payload header: %+v", payload)
	}
	if len(payload.Styles) != 2 {
		t.Fatalf("expected 2 styles, got %d", len(payload.Styles))
	}
	var foundSelected bool
	for _, st := range payload.Styles {
		if st.ID == "Nile" && st.Selected {
			foundSelected = true
		}
	}
	if !foundSelected {
		t.Error("expected Nile to be highlighted")
	}
}

func TestStyleJSONUnresolvableSelectionHighlightsDefault(t *testing.T) {
	svc := newTestService(t)
	svc.Selection().Set("Atlantis")

	data, err := svc.StyleJSON(stats.Selector{Stat: stats.StatAverage})
	if err != nil {
		t.Fatalf("StyleJSON failed: %v", err)
	}
	var payload struct {
		Styles []view.FeatureStyle `json:"styles"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, st := range payload.Styles {
		if st.Selected && st.ID != "Amazon" {
			t.Errorf("expected default basin highlight, got %s", st.ID)
		}
	}
}

func TestBarChartForSelection(t *testing.T) {
	svc := newTestService(t)

	// No selection: default basin, not flagged as fallback.
	chart := svc.BarChartForSelection()
	if chart.Basin != "Amazon" || chart.Fallback {
		t.Fatalf("unexpected chart: %+v", chart)
	}

	svc.Selection().Set("Nile")
	chart = svc.BarChartForSelection()
	if chart.Basin != "Nile" || chart.Fallback {
		t.Fatalf("unexpected chart: %+v", chart)
	}

	// Unresolvable selection falls back and is flagged.
	svc.Selection().Set("Atlantis")
	chart = svc.BarChartForSelection()
	if chart.Basin != "Amazon" || !chart.Fallback {
		t.Fatalf("expected flagged fallback, got %+v", chart)
	}

	svc.Selection().Clear()
	chart = svc.BarChartForSelection()
	if chart.Basin != "Amazon" || chart.Fallback {
		t.Fatalf("unexpected chart after clear: %+v", chart)
	}
}

func TestMonthlySeries(t *testing.T) {
	svc := newTestService(t)

	chart := svc.MonthlySeries("Amazon")
	if chart.Basin != "Amazon" || chart.Fallback {
		t.Fatalf("unexpected chart: %+v", chart)
	}
	if chart.Values[6] != 0 {
		t.Errorf("expected zero-substituted jul, got %v", chart.Values[6])
	}

	chart = svc.MonthlySeries("Atlantis")
	if chart.Basin != "Amazon" || !chart.Fallback {
		t.Fatalf("expected fallback to default basin, got %+v", chart)
	}
}

func TestTreemapJSON(t *testing.T) {
	svc := newTestService(t)

	data, err := svc.TreemapJSON()
	if err != nil {
		t.Fatalf("TreemapJSON failed: %v", err)
	}
	var payload struct {
		Nodes []view.TreemapNode `json:"nodes"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(payload.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(payload.Nodes))
	}
	if payload.Nodes[0].ID != "Amazon" || payload.Nodes[0].Value != 5000000 {
		t.Errorf("unexpected top node: %+v", payload.Nodes[0])
	}
}

func TestLegendAndMapPNG(t *testing.T) {
	svc := newTestService(t)
	sel := stats.Selector{Stat: stats.StatPopulation}

	legend, err := svc.LegendPNG(sel)
	if err != nil {
		t.Fatalf("LegendPNG failed: %v", err)
	}
	if len(legend) == 0 {
		t.Fatal("empty legend PNG")
	}

	// Second call comes from cache and is byte-identical.
	again, err := svc.LegendPNG(sel)
	if err != nil {
		t.Fatalf("LegendPNG failed: %v", err)
	}
	if !bytes.Equal(legend, again) {
		t.Fatal("cached legend differs")
	}

	mp, err := svc.MapPNG(sel)
	if err != nil {
		t.Fatalf("MapPNG failed: %v", err)
	}
	if len(mp) == 0 {
		t.Fatal("empty map PNG")
	}
}

func TestEmptyCollectionDegrades(t *testing.T) {
	fc, err := geojson.New(nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	svc := NewBasinService(BasinServiceConfig{DatasetID: "empty", Collection: fc})

	scale, err := svc.ScaleFor(stats.Selector{Stat: stats.StatPopulation})
	if err != nil {
		t.Fatalf("ScaleFor failed: %v", err)
	}
	if scale != nil {
		t.Fatal("expected nil scale for empty collection")
	}

	data, err := svc.StyleJSON(stats.Selector{Stat: stats.StatPopulation})
	if err != nil {
		t.Fatalf("StyleJSON failed: %v", err)
	}
	var payload struct {
		NoData bool `json:"no_data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !payload.NoData {
		t.Fatal("expected no_data payload")
	}

	chart := svc.BarChartForSelection()
	if !chart.NoData {
		t.Fatalf("expected no-data chart, got %+v", chart)
	}
}

func TestMetadata(t *testing.T) {
	svc := newTestService(t)
	md := svc.Metadata()

	if md.BasinCount != 2 {
		t.Errorf("unexpected basin count: %d", md.BasinCount)
	}
	if md.DefaultBasin != "Amazon" {
		t.Errorf("unexpected default basin: %q", md.DefaultBasin)
	}
	if !md.MonthlyRange.OK || md.MonthlyRange.Min != 1 || md.MonthlyRange.Max != 40 {
		t.Errorf("unexpected monthly range: %+v", md.MonthlyRange)
	}
	if len(md.Continents) != 2 || md.Continents[0] != "Africa" {
		t.Errorf("unexpected continents: %v", md.Continents)
	}
	if len(md.Months) != 12 {
		t.Errorf("unexpected months: %v", md.Months)
	}
}
