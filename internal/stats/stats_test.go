package stats

import (
	"testing"

	"github.com/basinatlas/server/internal/data/geojson"
)

func f64(v float64) *float64 { return &v }

// testCollection builds a small in-memory collection. The Amazon is missing
// jul; the Orinoco has no statistics at all.
func testCollection(t *testing.T) *geojson.FeatureCollection {
	t.Helper()

	amazon := geojson.Feature{
		Name:       "Amazon",
		Continent:  "South America",
		Population: f64(1000000),
		Average:    f64(5),
	}
	for m := 0; m < 12; m++ {
		if m == 6 {
			continue // jul absent
		}
		amazon.Months[m] = f64(float64(m + 1))
	}

	nile := geojson.Feature{
		Name:       "Nile",
		Continent:  "Africa",
		Population: f64(2000000),
		Average:    f64(8),
	}
	for m := 0; m < 12; m++ {
		nile.Months[m] = f64(40)
	}

	orinoco := geojson.Feature{Name: "Orinoco", Continent: "South America"}

	fc, err := geojson.New([]geojson.Feature{amazon, nile, orinoco})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return fc
}

func TestSelectorValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		sel     Selector
		wantErr bool
	}{
		{Selector{Stat: StatPopulation}, false},
		{Selector{Stat: StatAverage}, false},
		{Selector{Stat: StatMonthly, Month: 0}, false},
		{Selector{Stat: StatMonthly, Month: 11}, false},
		{Selector{Stat: StatMonthly, Month: 12}, true},
		{Selector{Stat: StatMonthly, Month: -1}, true},
		{Selector{Stat: "rainfall"}, true},
	}
	for _, tc := range cases {
		err := tc.sel.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("Validate(%+v): got err=%v, wantErr=%v", tc.sel, err, tc.wantErr)
		}
	}
}

func TestSelectorKey(t *testing.T) {
	t.Parallel()

	if got := (Selector{Stat: StatPopulation}).Key(); got != "population" {
		t.Errorf("unexpected key: %q", got)
	}
	if got := (Selector{Stat: StatMonthly, Month: 6}).Key(); got != "monthly:6" {
		t.Errorf("unexpected key: %q", got)
	}
}

func TestDomainExcludesMissing(t *testing.T) {
	t.Parallel()

	fc := testCollection(t)

	// jul: Amazon is missing it, Orinoco has nothing. Only the Nile remains.
	got := Domain(fc, Selector{Stat: StatMonthly, Month: 6})
	if len(got) != 1 || got[0] != 40 {
		t.Fatalf("expected [40], got %v", got)
	}

	// population: Orinoco excluded.
	got = Domain(fc, Selector{Stat: StatPopulation})
	if len(got) != 2 || got[0] != 1000000 || got[1] != 2000000 {
		t.Fatalf("unexpected population domain: %v", got)
	}
}

func TestDomainUnknownStatisticIsEmpty(t *testing.T) {
	t.Parallel()

	fc := testCollection(t)
	if got := Domain(fc, Selector{Stat: "rainfall"}); len(got) != 0 {
		t.Fatalf("expected empty domain, got %v", got)
	}
}

func TestSeriesZeroSubstitution(t *testing.T) {
	t.Parallel()

	fc := testCollection(t)
	amazon, _ := fc.Get("Amazon")

	series := Series(amazon)
	if series[6] != 0 {
		t.Errorf("expected 0 at jul, got %v", series[6])
	}
	if series[0] != 1 || series[11] != 12 {
		t.Errorf("unexpected series: %v", series)
	}

	// A feature with no data still yields twelve bars.
	orinoco, _ := fc.Get("Orinoco")
	series = Series(orinoco)
	for m, v := range series {
		if v != 0 {
			t.Errorf("month %d: expected 0, got %v", m, v)
		}
	}
}

func TestGlobalMonthlyRange(t *testing.T) {
	t.Parallel()

	fc := testCollection(t)
	min, max, ok := GlobalMonthlyRange(fc)
	if !ok {
		t.Fatal("expected monthly data")
	}
	if min != 1 || max != 40 {
		t.Errorf("unexpected range: [%v, %v]", min, max)
	}
}

func TestGlobalMonthlyRangeEmpty(t *testing.T) {
	t.Parallel()

	fc, err := geojson.New([]geojson.Feature{{Name: "Dry"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, _, ok := GlobalMonthlyRange(fc); ok {
		t.Fatal("expected no monthly data")
	}
}
