package colorscale

import (
	"testing"
)

func TestDivergingEndpoints(t *testing.T) {
	t.Parallel()

	s, err := NewDiverging([]float64{10, 50, 90}, DivergingOptions{Strategy: CutoffMean})
	if err != nil {
		t.Fatalf("NewDiverging failed: %v", err)
	}

	if got := s.At(10); got != ColorLow {
		t.Fatalf("At(min): got %v, want %v", got, ColorLow)
	}
	if got := s.At(50); got != ColorMid {
		t.Fatalf("At(cutoff): got %v, want %v", got, ColorMid)
	}
	if got := s.At(90); got != ColorHigh {
		t.Fatalf("At(max): got %v, want %v", got, ColorHigh)
	}
}

func TestDivergingClampsOutsideDomain(t *testing.T) {
	t.Parallel()

	s, err := NewDiverging([]float64{0, 100}, DivergingOptions{Strategy: CutoffMean})
	if err != nil {
		t.Fatalf("NewDiverging failed: %v", err)
	}

	if got := s.At(-1e9); got != ColorLow {
		t.Errorf("below min: got %v, want %v", got, ColorLow)
	}
	if got := s.At(1e9); got != ColorHigh {
		t.Errorf("above max: got %v, want %v", got, ColorHigh)
	}
}

func TestDivergingMonotonicChannels(t *testing.T) {
	t.Parallel()

	s, err := NewDiverging([]float64{0, 25, 50, 75, 100}, DivergingOptions{Strategy: CutoffMean})
	if err != nil {
		t.Fatalf("NewDiverging failed: %v", err)
	}

	// Within each segment every channel must move in the direction set by the
	// segment's endpoint colors.
	stops := s.Stops()
	for seg := 0; seg < 2; seg++ {
		lo, hi := stops[seg], stops[seg+1]
		prev := s.At(lo.Value)
		for i := 1; i <= 20; i++ {
			v := lo.Value + (hi.Value-lo.Value)*float64(i)/20
			cur := s.At(v)
			if !stepsToward(prev.R, cur.R, lo.Color.R, hi.Color.R) ||
				!stepsToward(prev.G, cur.G, lo.Color.G, hi.Color.G) ||
				!stepsToward(prev.B, cur.B, lo.Color.B, hi.Color.B) {
				t.Fatalf("channel not monotonic at v=%v: prev=%v cur=%v", v, prev, cur)
			}
			prev = cur
		}
	}
}

func stepsToward(prev, cur, from, to uint8) bool {
	if to >= from {
		return cur >= prev
	}
	return cur <= prev
}

func TestDivergingSingleDistinctValue(t *testing.T) {
	t.Parallel()

	s, err := NewDiverging([]float64{7, 7, 7}, DivergingOptions{})
	if err != nil {
		t.Fatalf("NewDiverging failed: %v", err)
	}

	for _, v := range []float64{-1, 0, 7, 100} {
		if got := s.At(v); got != ColorMid {
			t.Errorf("At(%v): got %v, want %v", v, got, ColorMid)
		}
	}
	bp := s.Breakpoints()
	if len(bp) != 3 || bp[0] != 7 || bp[1] != 7 || bp[2] != 7 {
		t.Errorf("unexpected breakpoints: %v", bp)
	}
}

func TestPercentileCutoffDefaultFraction(t *testing.T) {
	t.Parallel()

	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	s, err := NewDiverging(values, DivergingOptions{Strategy: CutoffPercentile})
	if err != nil {
		t.Fatalf("NewDiverging failed: %v", err)
	}

	// floor(10*0.3) = 3 -> value 4 in the ascending sort.
	bp := s.Breakpoints()
	if bp[1] != 4 {
		t.Fatalf("expected cutoff 4, got %v", bp[1])
	}
	if bp[0] != 1 || bp[2] != 10 {
		t.Fatalf("unexpected extrema: %v", bp)
	}
}

func TestPercentileUnsortedInput(t *testing.T) {
	t.Parallel()

	values := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}
	s, err := NewDiverging(values, DivergingOptions{Strategy: CutoffPercentile, Fraction: 0.3})
	if err != nil {
		t.Fatalf("NewDiverging failed: %v", err)
	}
	if got := s.Breakpoints()[1]; got != 4 {
		t.Fatalf("expected cutoff 4, got %v", got)
	}
	// Input must not be reordered.
	if values[0] != 10 || values[9] != 5 {
		t.Fatal("percentile mutated its input")
	}
}

func TestMeanCutoff(t *testing.T) {
	t.Parallel()

	s, err := NewDiverging([]float64{2, 4, 9}, DivergingOptions{Strategy: CutoffMean})
	if err != nil {
		t.Fatalf("NewDiverging failed: %v", err)
	}
	if got := s.Breakpoints()[1]; got != 5 {
		t.Fatalf("expected mean cutoff 5, got %v", got)
	}
}

func TestFixedCutoff(t *testing.T) {
	t.Parallel()

	s, err := NewDiverging([]float64{0, 100}, DivergingOptions{Strategy: CutoffFixed, Value: 30})
	if err != nil {
		t.Fatalf("NewDiverging failed: %v", err)
	}
	if got := s.Breakpoints()[1]; got != 30 {
		t.Fatalf("expected fixed cutoff 30, got %v", got)
	}
	if got := s.At(30); got != ColorMid {
		t.Fatalf("At(cutoff): got %v, want %v", got, ColorMid)
	}
}

func TestUnknownCutoffStrategy(t *testing.T) {
	t.Parallel()

	_, err := NewDiverging([]float64{1, 2}, DivergingOptions{Strategy: "quartile"})
	if err == nil {
		t.Fatal("expected error for unknown cutoff strategy")
	}
}

func TestEmptyValueSet(t *testing.T) {
	t.Parallel()

	if _, err := NewDiverging(nil, DivergingOptions{}); err != ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestContinuousEndpointsAndMidpoint(t *testing.T) {
	t.Parallel()

	s := NewContinuous(0, 100)

	if got := s.At(0); got != ContinuousLow {
		t.Fatalf("At(0): got %v, want %v", got, ContinuousLow)
	}
	if got := s.At(100); got != ContinuousHigh {
		t.Fatalf("At(100): got %v, want %v", got, ContinuousHigh)
	}

	// Midpoint interpolates each channel halfway between the two stops.
	want := interpolate(ContinuousLow, ContinuousHigh, 0.5)
	if got := s.At(50); got != want {
		t.Fatalf("At(50): got %v, want %v", got, want)
	}
}

func TestContinuousClamps(t *testing.T) {
	t.Parallel()

	s := NewContinuous(10, 20)
	if got := s.At(-5); got != ContinuousLow {
		t.Errorf("below min: got %v", got)
	}
	if got := s.At(500); got != ContinuousHigh {
		t.Errorf("above max: got %v", got)
	}
}

func TestContinuousBreakpoints(t *testing.T) {
	t.Parallel()

	s := NewContinuous(3, 9)
	bp := s.Breakpoints()
	if len(bp) != 2 || bp[0] != 3 || bp[1] != 9 {
		t.Fatalf("unexpected breakpoints: %v", bp)
	}
	if s.Mode() != ModeContinuous {
		t.Fatalf("unexpected mode: %s", s.Mode())
	}
}

func TestHex(t *testing.T) {
	t.Parallel()

	if got := Hex(ColorLow); got != "#2c7bb6" {
		t.Errorf("Hex(ColorLow): got %q", got)
	}
	if got := Hex(ContinuousHigh); got != "#a50f15" {
		t.Errorf("Hex(ContinuousHigh): got %q", got)
	}
}
