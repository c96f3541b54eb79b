package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DetectionParameters holds every tunable threshold, weight and window used
// by the detection pipeline. All numeric defaults are starting configuration
// for a deployment, not fixed constants; each is independently overridable.
type DetectionParameters struct {
	Chemical      ChemicalParams      `mapstructure:"chemical"`
	Electrical    ElectricalParams    `mapstructure:"electrical"`
	Environmental EnvironmentalParams `mapstructure:"environmental"`
	Fusion        FusionParams        `mapstructure:"fusion"`
	Temporal      TemporalParams      `mapstructure:"temporal"`
	Classifier    ClassifierParams    `mapstructure:"classifier"`
	Acquisition   AcquisitionParams   `mapstructure:"acquisition"`
}

// ChemicalParams configures the chemical signature analyzer.
// Channel thresholds are minimum deviations from baseline, in ppb.
type ChemicalParams struct {
	ThresholdFormaldehyde float64 `mapstructure:"threshold_formaldehyde"`
	ThresholdAcetaldehyde float64 `mapstructure:"threshold_acetaldehyde"`
	ThresholdAcrolein     float64 `mapstructure:"threshold_acrolein"`
	ThresholdPhenol       float64 `mapstructure:"threshold_phenol"`
	ThresholdCresol       float64 `mapstructure:"threshold_cresol"`
	ThresholdGuaiacol     float64 `mapstructure:"threshold_guaiacol"`
	ThresholdCO           float64 `mapstructure:"threshold_co"`
	ThresholdNO2          float64 `mapstructure:"threshold_no2"`

	WeightCellulose  float64 `mapstructure:"weight_cellulose"`
	WeightLignin     float64 `mapstructure:"weight_lignin"`
	WeightCombustion float64 `mapstructure:"weight_combustion"`
	WeightRatio1     float64 `mapstructure:"weight_ratio_1"`
	WeightRatio2     float64 `mapstructure:"weight_ratio_2"`

	// Expected compound-ratio ranges; a ratio inside the range is
	// corroborating evidence for thermal decomposition.
	RatioFormAcetMin float64 `mapstructure:"ratio_form_acet_min"`
	RatioFormAcetMax float64 `mapstructure:"ratio_form_acet_max"`
	RatioCONO2Min    float64 `mapstructure:"ratio_co_no2_min"`
	RatioCONO2Max    float64 `mapstructure:"ratio_co_no2_max"`
}

// ElectricalParams configures arcing detection and equipment health scoring.
type ElectricalParams struct {
	AcousticWeight float64 `mapstructure:"acoustic_weight"`
	EMFWeight      float64 `mapstructure:"emf_weight"`
	ThermalWeight  float64 `mapstructure:"thermal_weight"`

	AcousticBandLowHz    float64 `mapstructure:"acoustic_band_low_hz"`
	AcousticBandHighHz   float64 `mapstructure:"acoustic_band_high_hz"`
	AcousticMatchMin     float64 `mapstructure:"acoustic_match_min"`
	EMFFluctuationSigma  float64 `mapstructure:"emf_fluctuation_sigma"`
	HotspotTemperatureC  float64 `mapstructure:"hotspot_temperature_c"`
	ArcingProbabilityMin float64 `mapstructure:"arcing_probability_min"`

	ThermalTrendSlopeMin   float64 `mapstructure:"thermal_trend_slope_min"`
	ThermalCyclicAmplitude float64 `mapstructure:"thermal_cyclic_amplitude"`
	PenaltyThermalTrend    float64 `mapstructure:"penalty_thermal_trend"`
	PenaltyThermalCyclic   float64 `mapstructure:"penalty_thermal_cyclic"`
	PenaltyEMFDeviation    float64 `mapstructure:"penalty_emf_deviation"`
	PenaltyVibrationHF     float64 `mapstructure:"penalty_vibration_hf"`
	PenaltyHarmonic        float64 `mapstructure:"penalty_harmonic"`
	VibrationHFEnergyMax   float64 `mapstructure:"vibration_hf_energy_max"`
	HarmonicRatioMax       float64 `mapstructure:"harmonic_ratio_max"`
	HealthCriticalCutoff   float64 `mapstructure:"health_critical_cutoff"`
	HealthWarningCutoff    float64 `mapstructure:"health_warning_cutoff"`
	HealthAdvisoryCutoff   float64 `mapstructure:"health_advisory_cutoff"`
	EnvAdjustmentPerDegree float64 `mapstructure:"env_adjustment_per_degree"`
	EnvReferenceTempC      float64 `mapstructure:"env_reference_temp_c"`
}

// EnvironmentalParams configures the fire-weather composite index.
type EnvironmentalParams struct {
	TempFactorMax     float64 `mapstructure:"temp_factor_max"`
	TempLowC          float64 `mapstructure:"temp_low_c"`
	TempHighC         float64 `mapstructure:"temp_high_c"`
	HumidityFactorMax float64 `mapstructure:"humidity_factor_max"`
	HumidityCritical  float64 `mapstructure:"humidity_critical_pct"`
	WindFactorMax     float64 `mapstructure:"wind_factor_max"`
	WindHighMS        float64 `mapstructure:"wind_high_ms"`
	DroughtFactorMax  float64 `mapstructure:"drought_factor_max"`
	DroughtDays       int     `mapstructure:"drought_days"`
	FuelFactorMax     float64 `mapstructure:"fuel_factor_max"`

	// Red-flag gate: per-factor fractions of factor max that must all be
	// exceeded simultaneously for the combination bonus to apply.
	RedFlagTempFrac     float64 `mapstructure:"red_flag_temp_frac"`
	RedFlagHumidityFrac float64 `mapstructure:"red_flag_humidity_frac"`
	RedFlagWindFrac     float64 `mapstructure:"red_flag_wind_frac"`
	RedFlagBonus        float64 `mapstructure:"red_flag_bonus"`

	SeasonSummerMult float64 `mapstructure:"season_summer_mult"`
	SeasonAutumnMult float64 `mapstructure:"season_autumn_mult"`
	SeasonSpringMult float64 `mapstructure:"season_spring_mult"`
	SeasonWinterMult float64 `mapstructure:"season_winter_mult"`
	DiurnalPeakMult  float64 `mapstructure:"diurnal_peak_mult"`
	DiurnalNightMult float64 `mapstructure:"diurnal_night_mult"`
}

// FusionParams configures the multi-sensor fusion engine.
type FusionParams struct {
	OutlierDeviationSigma float64 `mapstructure:"outlier_deviation_sigma"`
	FallbackConfidence    float64 `mapstructure:"fallback_confidence"`
	MinSources            int     `mapstructure:"min_sources"`
}

// TemporalParams configures the temporal correlation engine.
type TemporalParams struct {
	WindowSize             int     `mapstructure:"window_size"`
	OutlierSigma           float64 `mapstructure:"outlier_sigma"`
	OutlierConfidenceMin   float64 `mapstructure:"outlier_confidence_min"`
	OutlierConfidenceScale float64 `mapstructure:"outlier_confidence_scale"`
	AnomalyPenalty         float64 `mapstructure:"anomaly_penalty"`
	TrendWorseningSlope    float64 `mapstructure:"trend_worsening_slope"`
	TrendSustainedCycles   int     `mapstructure:"trend_sustained_cycles"`
}

// ClassifierParams configures alert verification and duplicate suppression.
type ClassifierParams struct {
	// Minimum probability required per severity level, keyed by severity
	// wire name. A candidate maps to the highest level it clears.
	SeverityThresholds map[string]float64 `mapstructure:"severity_thresholds"`
	ConfidenceMin      float64            `mapstructure:"confidence_min"`
	SuppressionWindow  time.Duration      `mapstructure:"suppression_window"`
}

// AcquisitionParams configures sampling and preprocessing.
type AcquisitionParams struct {
	SmoothingSamples    int     `mapstructure:"smoothing_samples"`
	SpikeRejectionSigma float64 `mapstructure:"spike_rejection_sigma"`
	FaultDegradeCount   int     `mapstructure:"fault_degrade_count"`
	TempCompPerDegree   float64 `mapstructure:"temp_comp_per_degree"`
	TempReferenceC      float64 `mapstructure:"temp_reference_c"`
	HumidityCompPerPct  float64 `mapstructure:"humidity_comp_per_pct"`
	HumidityReferencePc float64 `mapstructure:"humidity_reference_pct"`
}

func setDetectionDefaults(v *viper.Viper) {
	v.SetDefault("detection.chemical.threshold_formaldehyde", 25.0)
	v.SetDefault("detection.chemical.threshold_acetaldehyde", 30.0)
	v.SetDefault("detection.chemical.threshold_acrolein", 5.0)
	v.SetDefault("detection.chemical.threshold_phenol", 15.0)
	v.SetDefault("detection.chemical.threshold_cresol", 10.0)
	v.SetDefault("detection.chemical.threshold_guaiacol", 8.0)
	v.SetDefault("detection.chemical.threshold_co", 9.0)
	v.SetDefault("detection.chemical.threshold_no2", 40.0)
	v.SetDefault("detection.chemical.weight_cellulose", 30.0)
	v.SetDefault("detection.chemical.weight_lignin", 25.0)
	v.SetDefault("detection.chemical.weight_combustion", 20.0)
	v.SetDefault("detection.chemical.weight_ratio_1", 15.0)
	v.SetDefault("detection.chemical.weight_ratio_2", 10.0)
	v.SetDefault("detection.chemical.ratio_form_acet_min", 0.8)
	v.SetDefault("detection.chemical.ratio_form_acet_max", 1.2)
	v.SetDefault("detection.chemical.ratio_co_no2_min", 0.5)
	v.SetDefault("detection.chemical.ratio_co_no2_max", 2.0)

	v.SetDefault("detection.electrical.acoustic_weight", 0.5)
	v.SetDefault("detection.electrical.emf_weight", 0.3)
	v.SetDefault("detection.electrical.thermal_weight", 0.2)
	v.SetDefault("detection.electrical.acoustic_band_low_hz", 1000.0)
	v.SetDefault("detection.electrical.acoustic_band_high_hz", 20000.0)
	v.SetDefault("detection.electrical.acoustic_match_min", 0.6)
	v.SetDefault("detection.electrical.emf_fluctuation_sigma", 3.0)
	v.SetDefault("detection.electrical.hotspot_temperature_c", 70.0)
	v.SetDefault("detection.electrical.arcing_probability_min", 0.05)
	v.SetDefault("detection.electrical.thermal_trend_slope_min", 0.1)
	v.SetDefault("detection.electrical.thermal_cyclic_amplitude", 4.0)
	v.SetDefault("detection.electrical.penalty_thermal_trend", 20.0)
	v.SetDefault("detection.electrical.penalty_thermal_cyclic", 15.0)
	v.SetDefault("detection.electrical.penalty_emf_deviation", 15.0)
	v.SetDefault("detection.electrical.penalty_vibration_hf", 10.0)
	v.SetDefault("detection.electrical.penalty_harmonic", 10.0)
	v.SetDefault("detection.electrical.vibration_hf_energy_max", 0.5)
	v.SetDefault("detection.electrical.harmonic_ratio_max", 0.3)
	v.SetDefault("detection.electrical.health_critical_cutoff", 30.0)
	v.SetDefault("detection.electrical.health_warning_cutoff", 55.0)
	v.SetDefault("detection.electrical.health_advisory_cutoff", 75.0)
	v.SetDefault("detection.electrical.env_adjustment_per_degree", 0.5)
	v.SetDefault("detection.electrical.env_reference_temp_c", 25.0)

	v.SetDefault("detection.environmental.temp_factor_max", 25.0)
	v.SetDefault("detection.environmental.temp_low_c", 10.0)
	v.SetDefault("detection.environmental.temp_high_c", 40.0)
	v.SetDefault("detection.environmental.humidity_factor_max", 30.0)
	v.SetDefault("detection.environmental.humidity_critical_pct", 20.0)
	v.SetDefault("detection.environmental.wind_factor_max", 20.0)
	v.SetDefault("detection.environmental.wind_high_ms", 15.0)
	v.SetDefault("detection.environmental.drought_factor_max", 15.0)
	v.SetDefault("detection.environmental.drought_days", 14)
	v.SetDefault("detection.environmental.fuel_factor_max", 10.0)
	v.SetDefault("detection.environmental.red_flag_temp_frac", 0.7)
	v.SetDefault("detection.environmental.red_flag_humidity_frac", 0.7)
	v.SetDefault("detection.environmental.red_flag_wind_frac", 0.6)
	v.SetDefault("detection.environmental.red_flag_bonus", 1.25)
	v.SetDefault("detection.environmental.season_summer_mult", 1.3)
	v.SetDefault("detection.environmental.season_autumn_mult", 1.1)
	v.SetDefault("detection.environmental.season_spring_mult", 1.0)
	v.SetDefault("detection.environmental.season_winter_mult", 0.8)
	v.SetDefault("detection.environmental.diurnal_peak_mult", 1.2)
	v.SetDefault("detection.environmental.diurnal_night_mult", 0.9)

	v.SetDefault("detection.fusion.outlier_deviation_sigma", 2.5)
	v.SetDefault("detection.fusion.fallback_confidence", 0.2)
	v.SetDefault("detection.fusion.min_sources", 2)

	v.SetDefault("detection.temporal.window_size", 24)
	v.SetDefault("detection.temporal.outlier_sigma", 3.0)
	v.SetDefault("detection.temporal.outlier_confidence_min", 0.7)
	v.SetDefault("detection.temporal.outlier_confidence_scale", 0.6)
	v.SetDefault("detection.temporal.anomaly_penalty", 0.5)
	v.SetDefault("detection.temporal.trend_worsening_slope", 0.05)
	v.SetDefault("detection.temporal.trend_sustained_cycles", 4)

	v.SetDefault("detection.classifier.severity_thresholds", map[string]float64{
		"information": 0.10,
		"advisory":    0.25,
		"watch":       0.40,
		"warning":     0.55,
		"critical":    0.70,
		"emergency":   0.85,
	})
	v.SetDefault("detection.classifier.confidence_min", 0.3)
	v.SetDefault("detection.classifier.suppression_window", "10m")

	v.SetDefault("detection.acquisition.smoothing_samples", 3)
	v.SetDefault("detection.acquisition.spike_rejection_sigma", 4.0)
	v.SetDefault("detection.acquisition.fault_degrade_count", 3)
	v.SetDefault("detection.acquisition.temp_comp_per_degree", 0.01)
	v.SetDefault("detection.acquisition.temp_reference_c", 25.0)
	v.SetDefault("detection.acquisition.humidity_comp_per_pct", 0.005)
	v.SetDefault("detection.acquisition.humidity_reference_pct", 50.0)
}

// Validate checks threshold and weight sanity. A failure here is fatal at
// boot and discards the snapshot on hot reload.
func (p *DetectionParameters) Validate() error {
	c := p.Chemical
	for name, th := range map[string]float64{
		"threshold_formaldehyde": c.ThresholdFormaldehyde,
		"threshold_acetaldehyde": c.ThresholdAcetaldehyde,
		"threshold_acrolein":     c.ThresholdAcrolein,
		"threshold_phenol":       c.ThresholdPhenol,
		"threshold_cresol":       c.ThresholdCresol,
		"threshold_guaiacol":     c.ThresholdGuaiacol,
		"threshold_co":           c.ThresholdCO,
		"threshold_no2":          c.ThresholdNO2,
	} {
		if th <= 0 {
			return fmt.Errorf("chemical.%s must be positive, got %v", name, th)
		}
	}
	if c.RatioFormAcetMin >= c.RatioFormAcetMax {
		return fmt.Errorf("chemical ratio_form_acet range inverted: [%v,%v]", c.RatioFormAcetMin, c.RatioFormAcetMax)
	}
	if c.RatioCONO2Min >= c.RatioCONO2Max {
		return fmt.Errorf("chemical ratio_co_no2 range inverted: [%v,%v]", c.RatioCONO2Min, c.RatioCONO2Max)
	}

	e := p.Electrical
	weightSum := e.AcousticWeight + e.EMFWeight + e.ThermalWeight
	if weightSum < 0.99 || weightSum > 1.01 {
		return fmt.Errorf("electrical channel weights must sum to 1.0, got %v", weightSum)
	}
	if !(e.HealthCriticalCutoff < e.HealthWarningCutoff && e.HealthWarningCutoff < e.HealthAdvisoryCutoff) {
		return fmt.Errorf("electrical health cutoffs must be ordered critical < warning < advisory")
	}

	if p.Fusion.OutlierDeviationSigma <= 0 {
		return fmt.Errorf("fusion.outlier_deviation_sigma must be positive")
	}
	if p.Fusion.FallbackConfidence < 0 || p.Fusion.FallbackConfidence > 1 {
		return fmt.Errorf("fusion.fallback_confidence must be in [0,1]")
	}

	if p.Temporal.WindowSize < 3 {
		return fmt.Errorf("temporal.window_size must be at least 3")
	}
	if p.Temporal.OutlierConfidenceScale <= 0 || p.Temporal.OutlierConfidenceScale > 1 {
		return fmt.Errorf("temporal.outlier_confidence_scale must be in (0,1]")
	}

	if len(p.Classifier.SeverityThresholds) == 0 {
		return fmt.Errorf("classifier.severity_thresholds must not be empty")
	}
	for name, th := range p.Classifier.SeverityThresholds {
		if th < 0 || th > 1 {
			return fmt.Errorf("classifier severity threshold %q out of [0,1]: %v", name, th)
		}
	}
	if p.Classifier.SuppressionWindow <= 0 {
		return fmt.Errorf("classifier.suppression_window must be positive")
	}

	if p.Acquisition.SmoothingSamples < 1 {
		return fmt.Errorf("acquisition.smoothing_samples must be at least 1")
	}

	return nil
}
