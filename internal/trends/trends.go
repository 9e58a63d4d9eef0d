// Package trends analyzes interest-over-time series: overall score, trend
// direction and strength, seasonal pattern detection and a short bounded
// forecast. Everything here is pure and deterministic.
package trends

import (
	"fmt"
	"math"
	"time"
)

// Direction classifies the series' least-squares slope.
type Direction int

const (
	DirectionStable Direction = iota
	DirectionRising
	DirectionDeclining
)

func (d Direction) String() string {
	switch d {
	case DirectionRising:
		return "rising"
	case DirectionDeclining:
		return "declining"
	case DirectionStable:
		return "stable"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Strength grades how pronounced the trend is, from its peak value and
// volatility.
type Strength int

const (
	StrengthVeryWeak Strength = iota
	StrengthWeak
	StrengthModerate
	StrengthStrong
	StrengthVeryStrong
)

func (s Strength) String() string {
	switch s {
	case StrengthVeryWeak:
		return "very_weak"
	case StrengthWeak:
		return "weak"
	case StrengthModerate:
		return "moderate"
	case StrengthStrong:
		return "strong"
	case StrengthVeryStrong:
		return "very_strong"
	default:
		return fmt.Sprintf("Strength(%d)", int(s))
	}
}

func (s Strength) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Point is one interest observation, value in [0,100].
type Point struct {
	Date  time.Time `json:"date" yaml:"date"`
	Value float64   `json:"value" yaml:"value"`
}

// Seasonal describes a detected yearly pattern. Present only when the
// series spans at least twelve points.
type Seasonal struct {
	MonthlyAverages map[time.Month]float64 `json:"monthlyAverages" yaml:"monthlyAverages"`
	PeakMonth       time.Month             `json:"peakMonth" yaml:"peakMonth"`
	LowMonth        time.Month             `json:"lowMonth" yaml:"lowMonth"`
	Volatility      float64                `json:"volatility" yaml:"volatility"`
}

// Analysis is the full result of analyzing one interest series.
type Analysis struct {
	Score      float64   `json:"score" yaml:"score"`
	Direction  Direction `json:"direction" yaml:"direction"`
	Strength   Strength  `json:"strength" yaml:"strength"`
	Confidence float64   `json:"confidence" yaml:"confidence"` // [0,1]
	Seasonal   *Seasonal `json:"seasonal,omitempty" yaml:"seasonal,omitempty"`
	Forecast   []float64 `json:"forecast,omitempty" yaml:"forecast,omitempty"`
	DataPoints int       `json:"dataPoints" yaml:"dataPoints"`
}

// Analyze computes the analysis for points, forecasting forecastMonths
// values ahead. An empty series yields a zero-confidence stable result.
func Analyze(points []Point, forecastMonths int) Analysis {
	if len(points) == 0 {
		return Analysis{Direction: DirectionStable, Strength: StrengthVeryWeak}
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	maxVal := values[0]
	nonZero := 0
	sum := 0.0
	for _, v := range values {
		sum += v
		if v > maxVal {
			maxVal = v
		}
		if v != 0 {
			nonZero++
		}
	}
	mean := sum / float64(len(values))
	std := stddev(values, mean)

	return Analysis{
		Score:      mean,
		Direction:  direction(values),
		Strength:   strength(maxVal, std),
		Confidence: math.Min(1, float64(nonZero)/float64(len(values))*(maxVal/100)),
		Seasonal:   seasonal(points),
		Forecast:   forecast(values, forecastMonths),
		DataPoints: len(values),
	}
}

// direction fits a least-squares line through the series; a slope above 1
// interest point per step is rising, below -1 declining.
func direction(values []float64) Direction {
	if len(values) < 2 {
		return DirectionStable
	}
	n := float64(len(values))
	meanX := (n - 1) / 2
	var meanY float64
	for _, v := range values {
		meanY += v
	}
	meanY /= n

	var num, den float64
	for i, v := range values {
		dx := float64(i) - meanX
		num += dx * (v - meanY)
		den += dx * dx
	}
	slope := num / den

	switch {
	case slope > 1:
		return DirectionRising
	case slope < -1:
		return DirectionDeclining
	default:
		return DirectionStable
	}
}

func strength(maxVal, std float64) Strength {
	switch {
	case maxVal >= 80 && std <= 10:
		return StrengthVeryStrong
	case maxVal >= 60 && std <= 20:
		return StrengthStrong
	case maxVal >= 40 && std <= 30:
		return StrengthModerate
	case maxVal >= 20:
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}

// seasonal groups values by calendar month. It needs at least a year of
// points to say anything.
func seasonal(points []Point) *Seasonal {
	if len(points) < 12 {
		return nil
	}

	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	for _, p := range points {
		m := p.Date.Month()
		sums[m] += p.Value
		counts[m]++
	}

	averages := make(map[time.Month]float64, len(sums))
	var avgValues []float64
	peak, low := time.January, time.January
	peakVal, lowVal := math.Inf(-1), math.Inf(1)
	for m := time.January; m <= time.December; m++ {
		c, ok := counts[m]
		if !ok {
			continue
		}
		avg := sums[m] / float64(c)
		averages[m] = avg
		avgValues = append(avgValues, avg)
		if avg > peakVal {
			peak, peakVal = m, avg
		}
		if avg < lowVal {
			low, lowVal = m, avg
		}
	}

	var meanAvg float64
	for _, v := range avgValues {
		meanAvg += v
	}
	meanAvg /= float64(len(avgValues))

	return &Seasonal{
		MonthlyAverages: averages,
		PeakMonth:       peak,
		LowMonth:        low,
		Volatility:      stddev(avgValues, meanAvg),
	}
}

// forecast extrapolates the fitted line months steps ahead, bounded to
// [0,100]. Fewer than three points is too little to extrapolate.
func forecast(values []float64, months int) []float64 {
	if len(values) < 3 || months <= 0 {
		return nil
	}

	n := float64(len(values))
	meanX := (n - 1) / 2
	var meanY float64
	for _, v := range values {
		meanY += v
	}
	meanY /= n

	var num, den float64
	for i, v := range values {
		dx := float64(i) - meanX
		num += dx * (v - meanY)
		den += dx * dx
	}
	slope := num / den
	intercept := meanY - slope*meanX

	out := make([]float64, 0, months)
	for i := 0; i < months; i++ {
		x := n + float64(i)
		predicted := slope*x + intercept
		out = append(out, math.Max(0, math.Min(100, predicted)))
	}
	return out
}

func stddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}
