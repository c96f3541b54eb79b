package detector

import (
	"context"
	"fmt"
	"math"

	"github.com/pyrewatch-systems/sentinel-node/internal/config"
	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// Electrical detects arcing discharges and scores equipment health from
// thermal, electromagnetic, acoustic and vibration channels.
type Electrical struct{}

// NewElectrical creates the electrical anomaly detector.
func NewElectrical() *Electrical { return &Electrical{} }

// Name implements Detector.
func (e *Electrical) Name() string { return "electrical" }

// MaintenanceUrgency labels the recommended response to a health score.
type MaintenanceUrgency string

const (
	UrgencyImmediate MaintenanceUrgency = "immediate"
	UrgencyScheduled MaintenanceUrgency = "scheduled"
	UrgencyMonitor   MaintenanceUrgency = "monitor"
	UrgencyNone      MaintenanceUrgency = "none"
)

// HealthReport is the equipment-health sub-result.
type HealthReport struct {
	Score           float64
	Urgency         MaintenanceUrgency
	Recommendations []string
}

// Evaluate implements Detector. It emits an arcing result every cycle and
// an equipment-degradation result when health drops below the advisory
// cutoff.
func (e *Electrical) Evaluate(_ context.Context, in *Input) ([]Result, error) {
	p := &in.Params.Electrical

	arcing := e.evaluateArcing(in, p)
	results := []Result{arcing}

	health, healthEvidence := e.evaluateHealth(in, p)
	if health.Score < p.HealthAdvisoryCutoff {
		degradation := model.Clamp01((p.HealthAdvisoryCutoff - health.Score) / p.HealthAdvisoryCutoff)
		results = append(results, Result{
			Type:        model.AlertEquipmentDegradation,
			Probability: degradation,
			Confidence:  healthConfidence(in),
			Evidence:    healthEvidence,
		})
	}

	return results, nil
}

// evaluateArcing combines the three independent arcing channels via the
// configured weighted average. Confidence reflects how many channels agree.
func (e *Electrical) evaluateArcing(in *Input, p *config.ElectricalParams) Result {
	var evidence []model.DetectionEvidence

	acousticProb := e.acousticProbability(in, p)
	if acousticProb > 0 {
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "acoustic_arcing_signature",
			Contribution: acousticProb,
		})
	}

	emfProb := e.emfProbability(in, p)
	if emfProb > 0 {
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "emf_fluctuation",
			Contribution: emfProb,
		})
	}

	thermalProb, hotspotTemp := e.thermalProbability(in, p)
	if thermalProb > 0 {
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "thermal_hotspot",
			Contribution: thermalProb,
			Measurement:  fmt.Sprintf("%.1fC above %.1fC threshold", hotspotTemp, p.HotspotTemperatureC),
		})
	}

	probability := model.Clamp01(p.AcousticWeight*acousticProb + p.EMFWeight*emfProb + p.ThermalWeight*thermalProb)
	if probability < p.ArcingProbabilityMin {
		// Below the noise floor: report silence, not weak evidence.
		return Result{Type: model.AlertElectricalArcing, Probability: 0, Confidence: 0}
	}

	agreeing := 0
	for _, prob := range []float64{acousticProb, emfProb, thermalProb} {
		if prob >= p.ArcingProbabilityMin {
			agreeing++
		}
	}

	return Result{
		Type:        model.AlertElectricalArcing,
		Probability: probability,
		Confidence:  model.Clamp01(float64(agreeing) / 3.0),
		Evidence:    evidence,
	}
}

func (e *Electrical) acousticProbability(in *Input, p *config.ElectricalParams) float64 {
	// Prefer raw waveform analysis when the driver exposes sample blocks.
	if samples, ok := in.Waveforms[model.ParamInfraAcousticBand]; ok && len(samples) > 0 {
		score := ArcingSignatureScore(samples, in.SampleRateHz, p.AcousticBandLowHz, p.AcousticBandHighHz)
		if score < p.AcousticMatchMin {
			return 0
		}
		return score
	}

	// Scalar fallback: the channel reports a pre-computed band match.
	r, ok := reading(in, model.ParamInfraAcousticBand)
	if !ok || r.Value < p.AcousticMatchMin {
		return 0
	}
	return model.Clamp01(r.Value)
}

func (e *Electrical) emfProbability(in *Input, p *config.ElectricalParams) float64 {
	r, ok := reading(in, model.ParamInfraEMF)
	if !ok {
		return 0
	}
	b := in.Baselines[model.ParamInfraEMF]
	if !b.HasData() || b.StdDev == 0 {
		return 0
	}
	z := math.Abs(r.Value-b.Mean) / b.StdDev
	if z < p.EMFFluctuationSigma {
		return 0
	}
	// Linearly saturates at twice the fluctuation threshold.
	return model.Clamp01((z - p.EMFFluctuationSigma) / p.EMFFluctuationSigma)
}

func (e *Electrical) thermalProbability(in *Input, p *config.ElectricalParams) (float64, float64) {
	r, ok := reading(in, model.ParamInfraThermal)
	if !ok || r.Value <= p.HotspotTemperatureC {
		return 0, 0
	}
	excess := r.Value - p.HotspotTemperatureC
	return model.Clamp01(excess / (p.HotspotTemperatureC * 0.5)), excess
}

// evaluateHealth starts at 100 and subtracts configured penalties for each
// degradation signature, then applies the environmental adjustment.
func (e *Electrical) evaluateHealth(in *Input, p *config.ElectricalParams) (HealthReport, []model.DetectionEvidence) {
	health := 100.0
	var evidence []model.DetectionEvidence
	var recommendations []string

	thermalSamples := baselineSamples(in, model.ParamInfraThermal)
	if s := slope(recentWindow(thermalSamples, 12)); s > p.ThermalTrendSlopeMin {
		health -= p.PenaltyThermalTrend
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "thermal_trend",
			Contribution: p.PenaltyThermalTrend,
			Measurement:  fmt.Sprintf("slope=%.3fC/cycle", s),
		})
		recommendations = append(recommendations, "inspect conductor terminations for heating")
	}

	if amp := cyclicAmplitude(recentWindow(thermalSamples, 12)); amp > p.ThermalCyclicAmplitude {
		health -= p.PenaltyThermalCyclic
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "thermal_cyclic_pattern",
			Contribution: p.PenaltyThermalCyclic,
			Measurement:  fmt.Sprintf("swing=%.1fC", amp),
		})
		recommendations = append(recommendations, "check for loose connection under load cycling")
	}

	if r, ok := reading(in, model.ParamInfraEMF); ok {
		b := in.Baselines[model.ParamInfraEMF]
		if b.HasData() && b.StdDev > 0 && math.Abs(r.Value-b.Mean) > p.EMFFluctuationSigma*b.StdDev {
			health -= p.PenaltyEMFDeviation
			evidence = append(evidence, model.DetectionEvidence{
				Tag:          "emf_baseline_deviation",
				Contribution: p.PenaltyEMFDeviation,
			})
			recommendations = append(recommendations, "verify load balance and shielding")
		}
	}

	if r, ok := reading(in, model.ParamInfraVibrationHF); ok && r.Value > p.VibrationHFEnergyMax {
		health -= p.PenaltyVibrationHF
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "vibration_hf_energy",
			Contribution: p.PenaltyVibrationHF,
			Measurement:  fmt.Sprintf("%.3f > %.3f", r.Value, p.VibrationHFEnergyMax),
		})
		recommendations = append(recommendations, "inspect mechanical mounting")
	}

	if r, ok := reading(in, model.ParamInfraHarmonicRatio); ok && r.Value > p.HarmonicRatioMax {
		health -= p.PenaltyHarmonic
		evidence = append(evidence, model.DetectionEvidence{
			Tag:          "harmonic_resonance",
			Contribution: p.PenaltyHarmonic,
		})
		recommendations = append(recommendations, "review harmonic filtering")
	}

	// Heat accelerates degradation; cool ambient extends margins.
	health -= p.EnvAdjustmentPerDegree * (in.Env.TemperatureC - p.EnvReferenceTempC)

	if health < 0 {
		health = 0
	}
	if health > 100 {
		health = 100
	}

	report := HealthReport{Score: health, Recommendations: recommendations}
	switch {
	case health < p.HealthCriticalCutoff:
		report.Urgency = UrgencyImmediate
	case health < p.HealthWarningCutoff:
		report.Urgency = UrgencyScheduled
	case health < p.HealthAdvisoryCutoff:
		report.Urgency = UrgencyMonitor
	default:
		report.Urgency = UrgencyNone
	}

	return report, evidence
}

// Health exposes the equipment health report directly, for the status
// surface and tests.
func (e *Electrical) Health(in *Input) HealthReport {
	report, _ := e.evaluateHealth(in, &in.Params.Electrical)
	return report
}

func healthConfidence(in *Input) float64 {
	present := 0
	for _, param := range []model.ParameterID{
		model.ParamInfraThermal, model.ParamInfraEMF,
		model.ParamInfraVibrationHF, model.ParamInfraHarmonicRatio,
	} {
		if len(in.Readings[param]) > 0 {
			present++
		}
	}
	return model.Clamp01(0.4 + 0.15*float64(present))
}

func baselineSamples(in *Input, param model.ParameterID) []float64 {
	b := in.Baselines[param]
	if b == nil {
		return nil
	}
	return b.Samples
}

func recentWindow(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
