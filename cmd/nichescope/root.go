package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nichescope/nichescope/internal/config"
	"github.com/nichescope/nichescope/internal/scoring"
	"github.com/nichescope/nichescope/internal/signals"
	"github.com/nichescope/nichescope/internal/stress"
)

// Execute runs the root command.
func Execute(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	root := &cobra.Command{
		Use:           "nichescope",
		Short:         "Score niche opportunities and stress-test them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(scoreCmd(cfg, logger))
	root.AddCommand(stressCmd(cfg, logger))
	root.AddCommand(healthCmd(cfg, logger))

	return root.ExecuteContext(ctx)
}

// metricsFile is the YAML input shape shared by score and stress. Either
// pre-normalized inputs or raw trend/competitor payloads must be present.
type metricsFile struct {
	Keyword     string          `yaml:"keyword"`
	Inputs      *scoring.Inputs `yaml:"inputs"`
	Trend       map[string]any  `yaml:"trend"`
	Competitors map[string]any  `yaml:"competitors"`
}

func readMetrics(path string) (*metricsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var mf metricsFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if mf.Keyword == "" {
		return nil, fmt.Errorf("%s: keyword is required", path)
	}
	if mf.Inputs == nil && mf.Trend == nil && mf.Competitors == nil {
		return nil, fmt.Errorf("%s: inputs or trend/competitors payloads are required", path)
	}
	return &mf, nil
}

func (mf *metricsFile) scoringInputs() scoring.Inputs {
	if mf.Inputs != nil {
		return *mf.Inputs
	}
	return signals.BuildInputs(signals.NormalizeTrend(mf.Trend), signals.NormalizeCompetitors(mf.Competitors))
}

func scoreFromFile(cfg *config.Config, path string) (scoring.Opportunity, error) {
	mf, err := readMetrics(path)
	if err != nil {
		return scoring.Opportunity{}, err
	}
	engine := scoring.NewEngine(scoring.WeightsFromConfig(cfg), scoring.DefaultThresholds())
	return engine.Score(mf.Keyword, mf.scoringInputs()), nil
}

func scoreCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a niche from a YAML metrics file",
		RunE: func(cmd *cobra.Command, args []string) error {
			opp, err := scoreFromFile(cfg, input)
			if err != nil {
				return err
			}
			logger.Info("scored niche", "keyword", opp.Keyword, "overall", opp.Overall, "risk", opp.Levels.Risk)
			return printJSON(cmd, opp)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "YAML metrics file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// scenarioOverride is one entry of the optional --scenarios file.
type scenarioOverride struct {
	Scenario       string  `yaml:"scenario"`
	Severity       float64 `yaml:"severity"`
	DurationMonths int     `yaml:"durationMonths"`
	Probability    float64 `yaml:"probability"`
	Description    string  `yaml:"description"`
}

func readScenarios(path string) ([]stress.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var file struct {
		Scenarios []scenarioOverride `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	params := make([]stress.Params, 0, len(file.Scenarios))
	for _, o := range file.Scenarios {
		s, err := stress.ParseScenario(o.Scenario)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		params = append(params, stress.Params{
			Scenario:       s,
			Severity:       o.Severity,
			DurationMonths: o.DurationMonths,
			Probability:    o.Probability,
			Description:    o.Description,
		})
	}
	return params, nil
}

func stressCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var input, scenarioPath string
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Stress-test a niche baseline from a YAML metrics file",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := scoreFromFile(cfg, input)
			if err != nil {
				return err
			}

			var scenarios []stress.Params
			if scenarioPath != "" {
				if scenarios, err = readScenarios(scenarioPath); err != nil {
					return err
				}
			}

			engine := scoring.NewEngine(scoring.WeightsFromConfig(cfg), scoring.DefaultThresholds())
			report := stress.NewSimulator(engine).Run(baseline, scenarios)
			logger.Info("stress run complete",
				"keyword", baseline.Keyword,
				"resilience", report.OverallResilience,
				"risk_profile", report.RiskProfile,
			)
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "YAML metrics file with the baseline")
	cmd.Flags().StringVar(&scenarioPath, "scenarios", "", "YAML file overriding the default scenario table")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
