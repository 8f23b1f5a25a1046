package cmd

import (
	"fmt"

	"github.com/prokopidis/presidio/internal/anonymizer"
	"github.com/prokopidis/presidio/internal/config"
	"github.com/prokopidis/presidio/internal/detector"
)

// buildPipeline assembles the detector and pipeline from operator config.
// Configured entities get the reversible counter operator in reversible mode
// and the type-name placeholder otherwise; everything else is kept verbatim.
func buildPipeline(cfg *config.Config) (*anonymizer.Pipeline, error) {
	opts := []detector.Option{
		detector.WithEnabledEntities(cfg.Entities),
	}
	if cfg.PatternFile != "" {
		opts = append(opts, detector.WithPatternFile(cfg.PatternFile))
	}
	if cfg.MinScore > 0 {
		opts = append(opts, detector.WithMinScore(cfg.MinScore))
	}
	det, err := detector.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("building detector: %w", err)
	}

	var op anonymizer.Operator = anonymizer.Replace{}
	pipelineOpts := []anonymizer.Option{}
	if cfg.Reversible {
		op = anonymizer.Counter{}
		pipelineOpts = append(pipelineOpts, anonymizer.WithReversible())
	}
	pipelineOpts = append(pipelineOpts,
		anonymizer.WithOperators(anonymizer.Operators(op, cfg.Entities...)))

	return anonymizer.NewPipeline([]anonymizer.Detector{det}, pipelineOpts...), nil
}
