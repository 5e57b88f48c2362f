package volatility

import (
	"os"
	"path/filepath"
	"testing"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristic(t *testing.T) {
	h := Heuristic{}
	tests := []struct {
		name string
		in   models.VolatilityFeatures
		want float64
	}{
		{"quiet", models.VolatilityFeatures{}, 0},
		{"half vol", models.VolatilityFeatures{Volatility: 0.05}, 0.3},
		{"vol capped", models.VolatilityFeatures{Volatility: 0.5}, 0.6},
		{"flow only", models.VolatilityFeatures{CVD: -1, Imbalance: 0.5}, 0.3},
		{"everything", models.VolatilityFeatures{Volatility: 1, CVD: 1, Imbalance: -1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, h.Predict(tt.in), 1e-12)
		})
	}
}

func writeModel(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLinearModel(t *testing.T) {
	path := writeModel(t, `
version: test
intercept: 0.1
coefficients:
  volatility_history: 0.5
  cvd: 0.2
`)
	m, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, "linear:test", m.Name())

	// vol 0.05 -> 0.5, cvd 0 -> 0.5
	assert.InDelta(t, 0.1+0.25+0.1, m.Predict(models.VolatilityFeatures{Volatility: 0.05}), 1e-12)
	assert.Equal(t, 0.0, (&LinearModel{Intercept: -3, Coefficients: map[string]float64{"cvd": 1}}).Predict(models.VolatilityFeatures{}))
	assert.Equal(t, 1.0, (&LinearModel{Intercept: 3, Coefficients: map[string]float64{"cvd": 1}}).Predict(models.VolatilityFeatures{}))
}

func TestLinearModel_SumsInFeatureNameOrder(t *testing.T) {
	m := &LinearModel{
		Intercept: 0.1,
		Coefficients: map[string]float64{
			FeatureVolatility: 0.3,
			FeatureCVD:        0.07,
			FeatureImbalance:  0.11,
			FeatureFunding:    0.013,
			FeatureSentiment:  0.05,
			FeatureTrends:     0.017,
			FeatureOIChange:   0.029,
		},
	}
	in := models.VolatilityFeatures{
		Volatility: 0.033, CVD: 0.17, Imbalance: -0.23, FundingRate: 0.0007,
		Sentiment: 0.41, Trends: -0.09, OIChange: 0.13,
	}
	x := Normalize(in)
	// cvd, funding_rate, google_trends, oi_change, orderbook_imbalance, sentiment, volatility_history
	want := 0.1
	want += 0.07 * x[FeatureCVD]
	want += 0.013 * x[FeatureFunding]
	want += 0.017 * x[FeatureTrends]
	want += 0.029 * x[FeatureOIChange]
	want += 0.11 * x[FeatureImbalance]
	want += 0.05 * x[FeatureSentiment]
	want += 0.3 * x[FeatureVolatility]

	for i := 0; i < 50; i++ {
		require.Equal(t, want, m.Predict(in))
	}
}

func TestLoadModel_Errors(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadModel(writeModel(t, "version: x\n"))
	assert.Error(t, err)

	_, err = LoadModel(writeModel(t, "coefficients:\n  moon_phase: 1\n"))
	assert.Error(t, err)
}

func TestNewPredictor_FallsBackToHeuristic(t *testing.T) {
	p := NewPredictor(filepath.Join(t.TempDir(), "missing.yaml"), logger.Nop())
	assert.Equal(t, "heuristic", p.Name())

	p = NewPredictor(writeModel(t, "version: v1\ncoefficients:\n  cvd: 1\n"), logger.Nop())
	assert.Equal(t, "linear:v1", p.Name())
}
