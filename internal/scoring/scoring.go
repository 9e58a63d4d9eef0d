// Package scoring turns normalized market signals into scored niche
// opportunities. Scoring is pure: the same inputs always produce the same
// numeric score and the same derived levels, and malformed inputs are
// clamped and flagged rather than rejected.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nichescope/nichescope/internal/config"
)

// Level is a categorical rating derived from numeric scores.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelVeryHigh
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	case LevelVeryHigh:
		return "VERY_HIGH"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// MarshalText lets levels render as their names in JSON and YAML output.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Inputs are the normalized signals for one niche, each in [0,100].
type Inputs struct {
	Competition   float64 `json:"competition" yaml:"competition"`
	Profitability float64 `json:"profitability" yaml:"profitability"`
	MarketSize    float64 `json:"marketSize" yaml:"marketSize"`
	Confidence    float64 `json:"confidence" yaml:"confidence"`
}

// Weights blends the four signals into the overall score. The four fields
// must sum to 1.0.
type Weights struct {
	Profitability float64
	Competition   float64
	MarketSize    float64
	Confidence    float64
}

// DefaultWeights returns the standard 0.4/0.3/0.2/0.1 blend.
func DefaultWeights() Weights {
	return Weights{Profitability: 0.4, Competition: 0.3, MarketSize: 0.2, Confidence: 0.1}
}

// WeightsFromConfig lifts the configured scoring weights.
func WeightsFromConfig(cfg *config.Config) Weights {
	return Weights{
		Profitability: cfg.WeightProfitability,
		Competition:   cfg.WeightCompetition,
		MarketSize:    cfg.WeightMarketSize,
		Confidence:    cfg.WeightConfidence,
	}
}

// Validate checks the weights sum to 1.0 within rounding tolerance.
func (w Weights) Validate() error {
	sum := w.Profitability + w.Competition + w.MarketSize + w.Confidence
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// Thresholds hold the categorical cutoffs. They are business heuristics,
// kept injectable rather than baked in.
type Thresholds struct {
	CompetitionLow    float64 // at or below: LOW
	CompetitionMedium float64 // at or below: MEDIUM, above: HIGH

	ProfitabilityHigh   float64 // at or above: HIGH
	ProfitabilityMedium float64 // at or above: MEDIUM, below: LOW

	RiskConfidenceLow    float64 // confidence floor for LOW risk
	RiskConfidenceMedium float64 // confidence floor for MEDIUM risk
	RiskOverallHigh      float64 // overall floor separating HIGH from VERY_HIGH
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CompetitionLow:       30,
		CompetitionMedium:    60,
		ProfitabilityHigh:    80,
		ProfitabilityMedium:  60,
		RiskConfidenceLow:    80,
		RiskConfidenceMedium: 60,
		RiskOverallHigh:      40,
	}
}

// Levels are the categorical ratings of one opportunity, always re-derivable
// from its numeric fields.
type Levels struct {
	Competition   Level `json:"competitionLevel" yaml:"competitionLevel"`
	Profitability Level `json:"profitabilityTier" yaml:"profitabilityTier"`
	Risk          Level `json:"riskLevel" yaml:"riskLevel"`
}

// Opportunity is a scored niche. It is immutable after creation; re-scoring
// produces a fresh value with a fresh ID.
type Opportunity struct {
	ID      string  `json:"id" yaml:"id"`
	Keyword string  `json:"keyword" yaml:"keyword"`
	Inputs  Inputs  `json:"inputs" yaml:"inputs"`
	Overall float64 `json:"overallScore" yaml:"overallScore"`
	Levels  Levels  `json:"levels" yaml:"levels"`

	// Clamped names the input fields that fell outside [0,100] and were
	// pulled back in. Non-empty Clamped means lower trust, never an error.
	Clamped []string `json:"clamped,omitempty" yaml:"clamped,omitempty"`

	ScoredAt time.Time `json:"scoredAt" yaml:"scoredAt"`
}

// Engine scores opportunities with a fixed weight and threshold set.
type Engine struct {
	weights    Weights
	thresholds Thresholds

	now func() time.Time
}

// NewEngine builds an engine. Zero-value weights fall back to the defaults.
func NewEngine(w Weights, t Thresholds) *Engine {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	if t == (Thresholds{}) {
		t = DefaultThresholds()
	}
	return &Engine{weights: w, thresholds: t, now: time.Now}
}

// Score computes the overall score and categorical levels for keyword.
// Out-of-range inputs are clamped into [0,100] and recorded in Clamped.
func (e *Engine) Score(keyword string, in Inputs) Opportunity {
	in, clamped := clampInputs(in)

	overall := round2(in.Profitability*e.weights.Profitability +
		(100-in.Competition)*e.weights.Competition +
		in.MarketSize*e.weights.MarketSize +
		in.Confidence*e.weights.Confidence)

	return Opportunity{
		ID:       uuid.NewString(),
		Keyword:  keyword,
		Inputs:   in,
		Overall:  overall,
		Levels:   e.DeriveLevels(in, overall),
		Clamped:  clamped,
		ScoredAt: e.now().UTC(),
	}
}

// DeriveLevels recomputes the categorical levels from numeric scores without
// re-scoring. The rules are ordered thresholds, first match wins.
func (e *Engine) DeriveLevels(in Inputs, overall float64) Levels {
	t := e.thresholds

	var competition Level
	switch {
	case in.Competition <= t.CompetitionLow:
		competition = LevelLow
	case in.Competition <= t.CompetitionMedium:
		competition = LevelMedium
	default:
		competition = LevelHigh
	}

	var tier Level
	switch {
	case in.Profitability >= t.ProfitabilityHigh:
		tier = LevelHigh
	case in.Profitability >= t.ProfitabilityMedium:
		tier = LevelMedium
	default:
		tier = LevelLow
	}

	var risk Level
	switch {
	case in.Competition <= t.CompetitionLow && in.Confidence >= t.RiskConfidenceLow && tier == LevelHigh:
		risk = LevelLow
	case in.Competition <= t.CompetitionMedium && in.Confidence >= t.RiskConfidenceMedium && (tier == LevelHigh || tier == LevelMedium):
		risk = LevelMedium
	case overall >= t.RiskOverallHigh:
		risk = LevelHigh
	default:
		risk = LevelVeryHigh
	}

	return Levels{Competition: competition, Profitability: tier, Risk: risk}
}

// Weights returns the engine's weight blend.
func (e *Engine) Weights() Weights { return e.weights }

func clampInputs(in Inputs) (Inputs, []string) {
	var clamped []string
	clamp := func(name string, v float64) float64 {
		switch {
		case v < 0:
			clamped = append(clamped, name)
			return 0
		case v > 100:
			clamped = append(clamped, name)
			return 100
		}
		return v
	}
	in.Competition = clamp("competition", in.Competition)
	in.Profitability = clamp("profitability", in.Profitability)
	in.MarketSize = clamp("marketSize", in.MarketSize)
	in.Confidence = clamp("confidence", in.Confidence)
	return in, clamped
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
