package trends

import (
	"math"
	"testing"
	"time"
)

func monthlySeries(start time.Time, values ...float64) []Point {
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{Date: start.AddDate(0, i, 0), Value: v}
	}
	return points
}

func TestAnalyzeEmptySeries(t *testing.T) {
	a := Analyze(nil, 6)
	if a.Direction != DirectionStable || a.Strength != StrengthVeryWeak {
		t.Fatalf("empty series: %+v", a)
	}
	if a.Confidence != 0 || a.Score != 0 {
		t.Fatalf("empty series should carry zero confidence and score: %+v", a)
	}
}

func TestAnalyzeRisingSeries(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Analyze(monthlySeries(start, 10, 20, 30, 40, 50, 60), 3)

	if a.Direction != DirectionRising {
		t.Errorf("direction = %v, want rising", a.Direction)
	}
	if a.Score != 35 {
		t.Errorf("score = %v, want 35", a.Score)
	}
	if len(a.Forecast) != 3 {
		t.Fatalf("forecast length = %d, want 3", len(a.Forecast))
	}
	// The fitted slope is exactly 10 per step, so the extrapolation runs
	// 70, 80, 90.
	for i, want := range []float64{70, 80, 90} {
		if math.Abs(a.Forecast[i]-want) > 1e-9 {
			t.Errorf("forecast[%d] = %v, want %v", i, a.Forecast[i], want)
		}
	}
}

func TestAnalyzeDecliningSeries(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Analyze(monthlySeries(start, 90, 75, 60, 45, 30, 15), 12)

	if a.Direction != DirectionDeclining {
		t.Errorf("direction = %v, want declining", a.Direction)
	}
	// A steep decline must bottom out at zero, never go negative.
	for i, v := range a.Forecast {
		if v < 0 || v > 100 {
			t.Errorf("forecast[%d] = %v out of bounds", i, v)
		}
	}
	if last := a.Forecast[len(a.Forecast)-1]; last != 0 {
		t.Errorf("long declining forecast should floor at 0, got %v", last)
	}
}

func TestAnalyzeStableSeries(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Analyze(monthlySeries(start, 50, 51, 49, 50, 50, 51), 6)
	if a.Direction != DirectionStable {
		t.Errorf("direction = %v, want stable", a.Direction)
	}
}

func TestStrengthTable(t *testing.T) {
	cases := []struct {
		maxVal, std float64
		want        Strength
	}{
		{85, 5, StrengthVeryStrong},
		{85, 15, StrengthStrong},
		{65, 15, StrengthStrong},
		{45, 25, StrengthModerate},
		{25, 40, StrengthWeak},
		{10, 2, StrengthVeryWeak},
	}
	for _, tc := range cases {
		if got := strength(tc.maxVal, tc.std); got != tc.want {
			t.Errorf("strength(%v, %v) = %v, want %v", tc.maxVal, tc.std, got, tc.want)
		}
	}
}

func TestConfidenceDiscountsSparseSeries(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	dense := Analyze(monthlySeries(start, 80, 80, 80, 80), 0)
	sparse := Analyze(monthlySeries(start, 80, 0, 0, 0), 0)
	if sparse.Confidence >= dense.Confidence {
		t.Fatalf("sparse confidence %v should be below dense %v", sparse.Confidence, dense.Confidence)
	}
	if dense.Confidence > 1 {
		t.Fatalf("confidence %v above 1", dense.Confidence)
	}
}

func TestSeasonalDetection(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// December spike, June trough.
	values := []float64{40, 40, 40, 40, 40, 10, 40, 40, 40, 40, 40, 95}
	a := Analyze(monthlySeries(start, values...), 0)

	if a.Seasonal == nil {
		t.Fatal("expected seasonal pattern for a full year")
	}
	if a.Seasonal.PeakMonth != time.December {
		t.Errorf("peak month = %v, want December", a.Seasonal.PeakMonth)
	}
	if a.Seasonal.LowMonth != time.June {
		t.Errorf("low month = %v, want June", a.Seasonal.LowMonth)
	}
	if a.Seasonal.Volatility <= 0 {
		t.Errorf("volatility = %v, want positive", a.Seasonal.Volatility)
	}
	if len(a.Seasonal.MonthlyAverages) != 12 {
		t.Errorf("monthly averages = %d entries, want 12", len(a.Seasonal.MonthlyAverages))
	}
}

func TestSeasonalRequiresFullYear(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Analyze(monthlySeries(start, 10, 20, 30), 0)
	if a.Seasonal != nil {
		t.Fatal("seasonal pattern reported for a three-point series")
	}
}

func TestForecastNeedsThreePoints(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if a := Analyze(monthlySeries(start, 10, 20), 6); a.Forecast != nil {
		t.Fatal("forecast produced from two points")
	}
}
