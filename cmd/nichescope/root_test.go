package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nichescope/nichescope/internal/config"
	"github.com/nichescope/nichescope/internal/stress"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func testConfig() *config.Config {
	return &config.Config{
		WeightProfitability: 0.4,
		WeightCompetition:   0.3,
		WeightMarketSize:    0.2,
		WeightConfidence:    0.1,
	}
}

func TestScoreFromFileWithInputs(t *testing.T) {
	path := writeFixture(t, "metrics.yaml", `
keyword: ceramic pour over
inputs:
  competition: 20
  profitability: 85
  marketSize: 70
  confidence: 90
`)

	opp, err := scoreFromFile(testConfig(), path)
	if err != nil {
		t.Fatalf("scoreFromFile: %v", err)
	}
	if opp.Keyword != "ceramic pour over" {
		t.Errorf("keyword = %q", opp.Keyword)
	}
	if opp.Overall != 81.0 {
		t.Errorf("overall = %v, want 81.0", opp.Overall)
	}
}

func TestScoreFromFileWithRawSignals(t *testing.T) {
	path := writeFixture(t, "metrics.yaml", `
keyword: watercolor journals
trend:
  trend_score: 65
  direction: rising
  strength: moderate
  confidence: 0.7
competitors:
  competitor_count: 15
  avg_review_count: 45
  avg_rating: 4.1
`)

	opp, err := scoreFromFile(testConfig(), path)
	if err != nil {
		t.Fatalf("scoreFromFile: %v", err)
	}
	if opp.Overall <= 0 {
		t.Errorf("overall = %v, want positive", opp.Overall)
	}
	if opp.Inputs.Confidence != 70 {
		t.Errorf("confidence input = %v, want 70", opp.Inputs.Confidence)
	}
}

func TestReadMetricsRejectsEmptyFile(t *testing.T) {
	path := writeFixture(t, "metrics.yaml", "keyword: lonely\n")
	if _, err := readMetrics(path); err == nil {
		t.Fatal("expected error for metrics without inputs or payloads")
	}

	path = writeFixture(t, "nokeyword.yaml", "inputs: {competition: 10}\n")
	if _, err := readMetrics(path); err == nil {
		t.Fatal("expected error for metrics without keyword")
	}
}

func TestReadScenarios(t *testing.T) {
	path := writeFixture(t, "scenarios.yaml", `
scenarios:
  - scenario: competition_increase
    severity: 0.5
    probability: 0.4
  - scenario: economic_downturn
    severity: 0.9
    probability: 0.2
`)

	params, err := readScenarios(path)
	if err != nil {
		t.Fatalf("readScenarios: %v", err)
	}
	if len(params) != 2 {
		t.Fatalf("params = %d, want 2", len(params))
	}
	if params[0].Scenario != stress.CompetitionIncrease || params[0].Severity != 0.5 {
		t.Errorf("first override = %+v", params[0])
	}
	if params[1].Scenario != stress.EconomicDownturn {
		t.Errorf("second override = %+v", params[1])
	}
}

func TestReadScenariosRejectsUnknownName(t *testing.T) {
	path := writeFixture(t, "scenarios.yaml", `
scenarios:
  - scenario: asteroid_strike
    severity: 1.0
`)
	if _, err := readScenarios(path); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
}
