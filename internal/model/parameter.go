package model

// ParameterID identifies a physical parameter a sensor channel measures.
// Multiple sensors may report the same parameter; the fusion engine groups
// readings by this identifier.
type ParameterID string

// VOC channels used for pyrolysis and combustion precursor detection.
const (
	ParamVOCFormaldehyde ParameterID = "chem_voc_formaldehyde"
	ParamVOCAcetaldehyde ParameterID = "chem_voc_acetaldehyde"
	ParamVOCAcrolein     ParameterID = "chem_voc_acrolein"
	ParamVOCPhenol       ParameterID = "chem_voc_phenol"
	ParamVOCCresol       ParameterID = "chem_voc_cresol"
	ParamVOCGuaiacol     ParameterID = "chem_voc_guaiacol"
	ParamGasCO           ParameterID = "chem_gas_co"
	ParamGasNO2          ParameterID = "chem_gas_no2"
)

// Infrastructure channels for electrical anomaly detection.
const (
	ParamInfraEMF           ParameterID = "infra_emf"
	ParamInfraThermal       ParameterID = "infra_thermal"
	ParamInfraAcousticBand  ParameterID = "infra_acoustic_band"
	ParamInfraVibrationHF   ParameterID = "infra_vibration_hf"
	ParamInfraHarmonicRatio ParameterID = "infra_harmonic_ratio"
)

// Meteorological channels feeding environmental risk and compensation.
const (
	ParamMetTemperature   ParameterID = "met_temperature"
	ParamMetHumidity      ParameterID = "met_humidity"
	ParamMetWindSpeed     ParameterID = "met_wind_speed"
	ParamMetPrecipitation ParameterID = "met_precipitation"
	ParamMetDewPoint      ParameterID = "met_dew_point"
)

// IsVOC reports whether the parameter is a chemical gas channel, which
// receives humidity-sensitive compensation during acquisition.
func (p ParameterID) IsVOC() bool {
	switch p {
	case ParamVOCFormaldehyde, ParamVOCAcetaldehyde, ParamVOCAcrolein,
		ParamVOCPhenol, ParamVOCCresol, ParamVOCGuaiacol,
		ParamGasCO, ParamGasNO2:
		return true
	}
	return false
}

// IsMeteorological reports whether the parameter is a weather channel.
func (p ParameterID) IsMeteorological() bool {
	switch p {
	case ParamMetTemperature, ParamMetHumidity, ParamMetWindSpeed,
		ParamMetPrecipitation, ParamMetDewPoint:
		return true
	}
	return false
}
