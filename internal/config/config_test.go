package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "sentinel-0", cfg.Node.ID)
	assert.False(t, cfg.NATS.Enabled)
	assert.False(t, cfg.Redis.Enabled)

	// Spot-check detection defaults from the parameter appendix.
	assert.Equal(t, 25.0, cfg.Detection.Chemical.ThresholdFormaldehyde)
	assert.Equal(t, 30.0, cfg.Detection.Chemical.WeightCellulose)
	assert.Equal(t, 15.0, cfg.Detection.Chemical.WeightRatio1)
	assert.Equal(t, 0.5, cfg.Detection.Electrical.AcousticWeight)
	assert.Equal(t, 2.5, cfg.Detection.Fusion.OutlierDeviationSigma)
	assert.Equal(t, 24, cfg.Detection.Temporal.WindowSize)
	assert.Equal(t, 0.7, cfg.Detection.Temporal.OutlierConfidenceMin)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
node:
  id: ridge-07
  location: "substation north"
detection:
  chemical:
    threshold_formaldehyde: 40.0
  fusion:
    outlier_deviation_sigma: 3.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ridge-07", cfg.Node.ID)
	assert.Equal(t, 40.0, cfg.Detection.Chemical.ThresholdFormaldehyde)
	assert.Equal(t, 3.5, cfg.Detection.Fusion.OutlierDeviationSigma)
	// Untouched defaults survive partial overrides.
	assert.Equal(t, 30.0, cfg.Detection.Chemical.ThresholdAcetaldehyde)
}

func TestLoadRejectsInvalidParameters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
detection:
  electrical:
    acoustic_weight: 0.9
    emf_weight: 0.9
    thermal_weight: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights must sum")
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*DetectionParameters)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*DetectionParameters) {},
			wantErr: "",
		},
		{
			name: "negative chemical threshold",
			mutate: func(p *DetectionParameters) {
				p.Chemical.ThresholdAcrolein = -1
			},
			wantErr: "must be positive",
		},
		{
			name: "inverted ratio range",
			mutate: func(p *DetectionParameters) {
				p.Chemical.RatioFormAcetMin = 2.0
			},
			wantErr: "range inverted",
		},
		{
			name: "unordered health cutoffs",
			mutate: func(p *DetectionParameters) {
				p.Electrical.HealthWarningCutoff = 10
			},
			wantErr: "cutoffs must be ordered",
		},
		{
			name: "fallback confidence out of range",
			mutate: func(p *DetectionParameters) {
				p.Fusion.FallbackConfidence = 1.5
			},
			wantErr: "fallback_confidence",
		},
		{
			name: "tiny temporal window",
			mutate: func(p *DetectionParameters) {
				p.Temporal.WindowSize = 1
			},
			wantErr: "window_size",
		},
		{
			name: "severity threshold above one",
			mutate: func(p *DetectionParameters) {
				p.Classifier.SeverityThresholds["warning"] = 1.2
			},
			wantErr: "out of [0,1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			p := cfg.Detection
			tt.mutate(&p)
			err = p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}

	_ = base
}

func TestWatcherKeepsLastValidOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node:\n  id: w-1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	var reloadErr error
	w := NewWatcher(path, cfg, func(err error) { reloadErr = err })
	require.NotNil(t, w.Current())
	assert.Equal(t, 25.0, w.Current().Chemical.ThresholdFormaldehyde)
	assert.NoError(t, reloadErr)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SENTINEL_NODE_ID", "env-node")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-node", cfg.Node.ID)
}
