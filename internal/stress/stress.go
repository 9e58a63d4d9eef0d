// Package stress re-scores an opportunity under adverse market scenarios
// and aggregates the results into a resilience report. Runs are synchronous
// and deterministic: the same baseline and scenario set always yield the
// same numbers.
package stress

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nichescope/nichescope/internal/metrics"
	"github.com/nichescope/nichescope/internal/scoring"
)

// Scenario identifies one adverse-market simulation.
type Scenario int

const (
	CompetitionIncrease Scenario = iota
	TrendReversal
	SeasonalDecline
	MarketSaturation
	EconomicDownturn
)

func (s Scenario) String() string {
	switch s {
	case CompetitionIncrease:
		return "competition_increase"
	case TrendReversal:
		return "trend_reversal"
	case SeasonalDecline:
		return "seasonal_decline"
	case MarketSaturation:
		return "market_saturation"
	case EconomicDownturn:
		return "economic_downturn"
	default:
		return fmt.Sprintf("Scenario(%d)", int(s))
	}
}

func (s Scenario) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseScenario maps a scenario name back to its identifier.
func ParseScenario(name string) (Scenario, error) {
	for _, s := range []Scenario{CompetitionIncrease, TrendReversal, SeasonalDecline, MarketSaturation, EconomicDownturn} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown scenario %q", name)
}

// Params configures one scenario run. Severity scales the input transform
// and runs from 0.1 (mild) to 1.0 (severe).
type Params struct {
	Scenario       Scenario `json:"scenario" yaml:"scenario"`
	Severity       float64  `json:"severity" yaml:"severity"`
	DurationMonths int      `json:"durationMonths" yaml:"durationMonths"`
	Probability    float64  `json:"probability" yaml:"probability"`
	Description    string   `json:"description" yaml:"description"`
}

// DefaultScenarios returns the standard scenario table in report order.
func DefaultScenarios() []Params {
	return []Params{
		{CompetitionIncrease, 0.8, 4, 0.4, "Sudden influx of new competitors"},
		{TrendReversal, 0.8, 12, 0.25, "Major trend reversal or consumer preference shift"},
		{SeasonalDecline, 0.9, 3, 0.5, "Severe seasonal demand drop"},
		{MarketSaturation, 0.7, 6, 0.3, "Market becomes oversaturated with competitors"},
		{EconomicDownturn, 0.6, 8, 0.2, "Economic recession reduces consumer spending"},
	}
}

// highImpactCutoff is the impact percentage above which a scenario counts
// as high impact for resilience weighting and the risk profile.
const highImpactCutoff = 50.0

// ScenarioResult is the outcome of re-scoring the baseline under one
// scenario's transformed inputs.
type ScenarioResult struct {
	Scenario            Scenario `json:"scenario" yaml:"scenario"`
	Severity            float64  `json:"severity" yaml:"severity"`
	StressedScore       float64  `json:"stressedScore" yaml:"stressedScore"`
	ImpactPct           float64  `json:"impactPct" yaml:"impactPct"`
	SurvivalProbability float64  `json:"survivalProbability" yaml:"survivalProbability"`
}

// HighImpact reports whether this scenario erased more than half the
// baseline's value.
func (r ScenarioResult) HighImpact() bool { return r.ImpactPct > highImpactCutoff }

// Report is the terminal artifact of one stress run. It is never mutated
// after creation.
type Report struct {
	ID                string              `json:"id" yaml:"id"`
	Baseline          scoring.Opportunity `json:"baseline" yaml:"baseline"`
	Results           []ScenarioResult    `json:"results" yaml:"results"`
	OverallResilience float64             `json:"overallResilience" yaml:"overallResilience"`
	HighImpactCount   int                 `json:"highImpactCount" yaml:"highImpactCount"`
	RiskProfile       scoring.Level       `json:"riskProfile" yaml:"riskProfile"`
	RanAt             time.Time           `json:"ranAt" yaml:"ranAt"`
}

// Simulator runs stress scenarios against a scoring engine.
type Simulator struct {
	engine *scoring.Engine

	now func() time.Time
}

// NewSimulator builds a simulator around engine.
func NewSimulator(engine *scoring.Engine) *Simulator {
	return &Simulator{engine: engine, now: time.Now}
}

// Run re-scores baseline under each scenario and aggregates resilience.
// A nil or empty scenario list runs the default table.
func (s *Simulator) Run(baseline scoring.Opportunity, scenarios []Params) Report {
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}

	results := make([]ScenarioResult, 0, len(scenarios))
	highImpact := 0
	weightedRetention := 0.0
	weightSum := 0.0

	for _, p := range scenarios {
		stressed := s.engine.Score(baseline.Keyword, transform(baseline.Inputs, p))

		impact := 0.0
		retention := 100.0
		if baseline.Overall > 0 {
			impact = round2((baseline.Overall - stressed.Overall) / baseline.Overall * 100)
			retention = clamp(stressed.Overall / baseline.Overall * 100)
		}

		r := ScenarioResult{
			Scenario:            p.Scenario,
			Severity:            p.Severity,
			StressedScore:       stressed.Overall,
			ImpactPct:           impact,
			SurvivalProbability: survival(stressed.Overall, p.Severity),
		}
		results = append(results, r)

		if r.HighImpact() {
			highImpact++
		}
		weight := p.Probability
		if weight <= 0 {
			weight = 0.01
		}
		weightedRetention += weight * retention
		weightSum += weight
	}

	resilience := 0.0
	if weightSum > 0 {
		resilience = weightedRetention / weightSum
	}
	resilience = round2(clamp(resilience * math.Max(0, 1-0.05*float64(highImpact))))

	metrics.StressRunsTotal.Inc()

	return Report{
		ID:                uuid.NewString(),
		Baseline:          baseline,
		Results:           results,
		OverallResilience: resilience,
		HighImpactCount:   highImpact,
		RiskProfile:       riskProfile(resilience, highImpact),
		RanAt:             s.now().UTC(),
	}
}

// transform applies the scenario's deterministic input adjustment, scaled
// by severity. Results may leave [0,100]; the scoring engine clamps them.
func transform(in scoring.Inputs, p Params) scoring.Inputs {
	sev := p.Severity
	switch p.Scenario {
	case CompetitionIncrease:
		in.Competition += 40 * sev
		in.Confidence -= 5 * sev
	case TrendReversal:
		in.Profitability -= 35 * sev
		in.MarketSize -= 20 * sev
	case SeasonalDecline:
		in.MarketSize -= 40 * sev
		in.Profitability -= 15 * sev
	case MarketSaturation:
		in.Competition += 30 * sev
		in.Profitability -= 20 * sev
		in.MarketSize -= 10 * sev
	case EconomicDownturn:
		in.Profitability -= 30 * sev
		in.MarketSize -= 25 * sev
	}
	return in
}

// survival maps the stressed score and severity to a survival probability.
// It rises with the stressed score and strictly falls as severity grows.
func survival(stressedScore, severity float64) float64 {
	return round2(clamp(0.9*stressedScore + 12 - 15*severity))
}

func riskProfile(resilience float64, highImpact int) scoring.Level {
	switch {
	case resilience >= 80 && highImpact <= 1:
		return scoring.LevelLow
	case resilience >= 60 && highImpact <= 3:
		return scoring.LevelMedium
	case resilience >= 40:
		return scoring.LevelHigh
	default:
		return scoring.LevelVeryHigh
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
