// Package signals normalizes loosely-typed upstream payloads into the
// structured inputs the scoring engine consumes. Missing or mistyped
// fields default conservatively; normalization never fails.
package signals

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/nichescope/nichescope/internal/scoring"
	"github.com/nichescope/nichescope/internal/trends"
)

// TrendSignal is the normalized shape of a trend payload.
type TrendSignal struct {
	Keyword    string           `json:"keyword" yaml:"keyword"`
	Score      float64          `json:"score" yaml:"score"`           // mean interest, [0,100]
	Direction  trends.Direction `json:"direction" yaml:"direction"`
	Strength   trends.Strength  `json:"strength" yaml:"strength"`
	Confidence float64          `json:"confidence" yaml:"confidence"` // [0,1]
}

// CompetitorSignal is the normalized shape of a competitor-data payload.
type CompetitorSignal struct {
	Count      int     `json:"count" yaml:"count"`
	AvgReviews float64 `json:"avgReviews" yaml:"avgReviews"`
	AvgRating  float64 `json:"avgRating" yaml:"avgRating"`
}

// NormalizeTrend extracts a TrendSignal from a raw decoded payload.
// Unknown directions read as stable, unknown strengths as very weak, and
// absent confidence as zero.
func NormalizeTrend(raw map[string]any) TrendSignal {
	s := TrendSignal{
		Keyword:   asString(pick(raw, "keyword", "query")),
		Score:     clamp100(asFloat(pick(raw, "trend_score", "trendScore", "score"))),
		Direction: parseDirection(asString(pick(raw, "direction", "trend_direction"))),
		Strength:  parseStrength(asString(pick(raw, "strength", "trend_strength"))),
	}

	conf := asFloat(pick(raw, "confidence", "confidence_level", "confidenceLevel"))
	if conf > 1 {
		// Some upstreams report confidence as a percentage.
		conf /= 100
	}
	s.Confidence = math.Max(0, math.Min(1, conf))
	return s
}

// NormalizeCompetitors extracts a CompetitorSignal from a raw decoded
// payload.
func NormalizeCompetitors(raw map[string]any) CompetitorSignal {
	return CompetitorSignal{
		Count:      int(asFloat(pick(raw, "competitor_count", "competitorCount", "count"))),
		AvgReviews: math.Max(0, asFloat(pick(raw, "avg_review_count", "avgReviews", "avg_reviews"))),
		AvgRating:  math.Max(0, asFloat(pick(raw, "avg_rating", "avgRating", "rating"))),
	}
}

// BuildInputs folds the two signals into scoring inputs. Competition rises
// with competitor count, review saturation and rating quality; market size
// scales the trend score by how contested the space is.
func BuildInputs(t TrendSignal, c CompetitorSignal) scoring.Inputs {
	return scoring.Inputs{
		Competition:   100 - opportunityScore(c),
		Profitability: profitability(t),
		MarketSize:    marketSize(t, c),
		Confidence:    clamp100(t.Confidence * 100),
	}
}

// opportunityScore rates how open the niche looks, higher meaning less
// contested.
func opportunityScore(c CompetitorSignal) float64 {
	var base float64
	switch {
	case c.Count == 0:
		base = 100
	case c.Count < 10:
		base = 90
	case c.Count < 50:
		base = 70
	case c.Count < 100:
		base = 50
	default:
		base = 30
	}

	switch {
	case c.AvgReviews > 1000:
		base *= 0.6
	case c.AvgReviews > 100:
		base *= 0.8
	case c.AvgReviews < 10:
		base *= 1.2
	}

	switch {
	case c.AvgRating > 0 && c.AvgRating < 3.5:
		base *= 1.3
	case c.AvgRating > 4.5:
		base *= 0.9
	}

	return clamp100(base)
}

func profitability(t TrendSignal) float64 {
	score := t.Score
	switch t.Direction {
	case trends.DirectionRising:
		score *= 1.2
	case trends.DirectionDeclining:
		score *= 0.7
	}
	score *= strengthMultiplier(t.Strength)
	return clamp100(score)
}

func marketSize(t TrendSignal, c CompetitorSignal) float64 {
	score := t.Score
	switch {
	case c.Count == 0:
		score *= 1.5
	case c.Count < 10:
		score *= 1.2
	case c.Count < 50:
		// Contested but viable.
	default:
		score *= 0.8
	}
	switch t.Strength {
	case trends.StrengthStrong, trends.StrengthVeryStrong:
		score *= 1.3
	case trends.StrengthModerate:
	default:
		score *= 0.7
	}
	return clamp100(score)
}

func strengthMultiplier(s trends.Strength) float64 {
	switch s {
	case trends.StrengthVeryStrong:
		return 1.3
	case trends.StrengthStrong:
		return 1.1
	case trends.StrengthModerate:
		return 1.0
	case trends.StrengthWeak:
		return 0.8
	default:
		return 0.5
	}
}

func parseDirection(s string) trends.Direction {
	switch s {
	case "rising":
		return trends.DirectionRising
	case "declining":
		return trends.DirectionDeclining
	default:
		return trends.DirectionStable
	}
}

func parseStrength(s string) trends.Strength {
	switch s {
	case "very_strong":
		return trends.StrengthVeryStrong
	case "strong":
		return trends.StrengthStrong
	case "moderate":
		return trends.StrengthModerate
	case "weak":
		return trends.StrengthWeak
	default:
		return trends.StrengthVeryWeak
	}
}

func pick(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
