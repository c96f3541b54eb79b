package detector

import (
	"context"
	_ "embed"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// CompoundRule is one named pyrolysis signature: a set of channels whose
// baseline deviations must all exceed their thresholds simultaneously.
type CompoundRule struct {
	Name     string        `yaml:"name"`
	Weight   string        `yaml:"weight"`
	Channels []RuleChannel `yaml:"channels"`
}

// RuleChannel names one required channel deviation.
type RuleChannel struct {
	Parameter string `yaml:"parameter"`
	Threshold string `yaml:"threshold"`
}

type ruleFile struct {
	Rules []CompoundRule `yaml:"rules"`
}

// LoadCompoundRules parses a rule table from YAML.
func LoadCompoundRules(data []byte) ([]CompoundRule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rule table: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rule table is empty")
	}
	for _, r := range f.Rules {
		if r.Name == "" || r.Weight == "" || len(r.Channels) == 0 {
			return nil, fmt.Errorf("incomplete rule %q", r.Name)
		}
	}
	return f.Rules, nil
}

// DefaultCompoundRules returns the embedded rule table.
func DefaultCompoundRules() []CompoundRule {
	rules, err := LoadCompoundRules(defaultRulesYAML)
	if err != nil {
		// The embedded table ships with the binary; failing to parse it
		// is a build defect, not a runtime condition.
		panic(err)
	}
	return rules
}

// Chemical is the chemical signature analyzer. It evaluates VOC channel
// deviations against the compound rule table plus two ratio checks and
// accumulates a weighted pyrolysis score.
type Chemical struct {
	rules []CompoundRule
}

// NewChemical creates the analyzer with the given rule table.
func NewChemical(rules []CompoundRule) *Chemical {
	return &Chemical{rules: rules}
}

// Name implements Detector.
func (c *Chemical) Name() string { return "chemical" }

// Evaluate implements Detector.
func (c *Chemical) Evaluate(_ context.Context, in *Input) ([]Result, error) {
	p := &in.Params.Chemical
	thresholds := chemicalThresholds(p)
	weights := chemicalWeights(p)

	var (
		score        float64
		maxScore     float64
		evidence     []model.DetectionEvidence
		satisfied    int
		magnitudeSum float64
	)

	for _, rule := range c.rules {
		weight, ok := weights[rule.Weight]
		if !ok {
			return nil, fmt.Errorf("rule %q references unknown weight %q", rule.Name, rule.Weight)
		}
		maxScore += weight

		allMet := true
		ruleMagnitude := 0.0
		for _, ch := range rule.Channels {
			threshold, ok := thresholds[ch.Threshold]
			if !ok {
				return nil, fmt.Errorf("rule %q references unknown threshold %q", rule.Name, ch.Threshold)
			}
			dev, present := baselineDeviation(in, model.ParameterID(ch.Parameter))
			if !present || dev <= threshold {
				allMet = false
				break
			}
			ruleMagnitude += math.Min(dev/threshold, 3.0)
		}
		if !allMet {
			continue
		}

		score += weight
		satisfied++
		magnitudeSum += ruleMagnitude / float64(len(rule.Channels))
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          rule.Name,
			Contribution: weight,
		})
	}

	maxScore += p.WeightRatio1 + p.WeightRatio2

	if ok, measurement := c.ratioSatisfied(in, model.ParamVOCFormaldehyde, p.ThresholdFormaldehyde,
		model.ParamVOCAcetaldehyde, p.ThresholdAcetaldehyde, p.RatioFormAcetMin, p.RatioFormAcetMax); ok {
		score += p.WeightRatio1
		satisfied++
		magnitudeSum += 1.0
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "formaldehyde_acetaldehyde_ratio",
			Contribution: p.WeightRatio1,
			Measurement:  measurement,
		})
	}
	if ok, measurement := c.ratioSatisfied(in, model.ParamGasCO, p.ThresholdCO,
		model.ParamGasNO2, p.ThresholdNO2, p.RatioCONO2Min, p.RatioCONO2Max); ok {
		score += p.WeightRatio2
		satisfied++
		magnitudeSum += 1.0
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "co_no2_ratio",
			Contribution: p.WeightRatio2,
			Measurement:  measurement,
		})
	}

	probability := 0.0
	if maxScore > 0 {
		probability = model.Clamp01(score / maxScore)
	}

	confidence := 0.0
	if satisfied > 0 {
		ruleFraction := float64(satisfied) / float64(len(c.rules)+2)
		avgMagnitude := magnitudeSum / float64(satisfied)
		confidence = model.Clamp01(0.6*ruleFraction + 0.4*math.Min(avgMagnitude/3.0, 1.0))
	}

	return []Result{{
		Type:        model.AlertChemicalSignature,
		Probability: probability,
		Confidence:  confidence,
		Evidence:    evidence,
	}}, nil
}

// ratioSatisfied checks a compound ratio against its expected range.
// The ratio only corroborates when both channels are themselves elevated;
// a ratio of two quiescent channels carries no signal.
func (c *Chemical) ratioSatisfied(in *Input, numParam model.ParameterID, numThreshold float64,
	denParam model.ParameterID, denThreshold float64, lo, hi float64) (bool, string) {

	numDev, okNum := baselineDeviation(in, numParam)
	denDev, okDen := baselineDeviation(in, denParam)
	if !okNum || !okDen {
		return false, ""
	}
	if numDev <= numThreshold || denDev <= denThreshold {
		return false, ""
	}
	if denDev == 0 {
		return false, ""
	}
	ratio := numDev / denDev
	if ratio < lo || ratio > hi {
		return false, ""
	}
	return true, fmt.Sprintf("ratio=%.2f expected=[%.2f,%.2f]", ratio, lo, hi)
}

func chemicalThresholds(p *config.ChemicalParams) map[string]float64 {
	return map[string]float64{
		"formaldehyde": p.ThresholdFormaldehyde,
		"acetaldehyde": p.ThresholdAcetaldehyde,
		"acrolein":     p.ThresholdAcrolein,
		"phenol":       p.ThresholdPhenol,
		"cresol":       p.ThresholdCresol,
		"guaiacol":     p.ThresholdGuaiacol,
		"co":           p.ThresholdCO,
		"no2":          p.ThresholdNO2,
	}
}

func chemicalWeights(p *config.ChemicalParams) map[string]float64 {
	return map[string]float64{
		"cellulose":  p.WeightCellulose,
		"lignin":     p.WeightLignin,
		"combustion": p.WeightCombustion,
	}
}
