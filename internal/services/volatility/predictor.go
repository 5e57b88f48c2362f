package volatility

import (
	"fmt"
	"os"
	"sort"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/internal/domain/service"
	"CryptoPulse/internal/services/features"
	"CryptoPulse/pkg/logger"

	"gopkg.in/yaml.v3"
)

var (
	_ service.VolatilityPredictor = Heuristic{}
	_ service.VolatilityPredictor = (*LinearModel)(nil)
)

// Heuristic blends realized volatility with order flow activity.
type Heuristic struct{}

func (Heuristic) Name() string { return "heuristic" }

func (Heuristic) Predict(f models.VolatilityFeatures) float64 {
	volProb := f.Volatility / 0.1
	if volProb > 1 {
		volProb = 1
	}
	activity := (abs(f.CVD) + abs(f.Imbalance)) / 2
	return features.Clamp(0.6*volProb+0.4*activity, 0, 1)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Feature names accepted in a model file.
const (
	FeatureVolatility = "volatility_history"
	FeatureCVD        = "cvd"
	FeatureImbalance  = "orderbook_imbalance"
	FeatureFunding    = "funding_rate"
	FeatureSentiment  = "sentiment"
	FeatureTrends     = "google_trends"
	FeatureOIChange   = "oi_change"
)

// Normalize maps raw features onto [0,1]-ish inputs for the linear model.
func Normalize(f models.VolatilityFeatures) map[string]float64 {
	vol := f.Volatility
	if vol > 0.1 {
		vol = 0.1
	}
	half := func(x float64) float64 { return (x + 1) / 2 }
	return map[string]float64{
		FeatureVolatility: vol / 0.1,
		FeatureCVD:        half(f.CVD),
		FeatureImbalance:  half(f.Imbalance),
		FeatureFunding:    (f.FundingRate + 0.01) / 0.02,
		FeatureSentiment:  half(f.Sentiment),
		FeatureTrends:     half(f.Trends),
		FeatureOIChange:   half(f.OIChange),
	}
}

// LinearModel is a regression over normalized features loaded from YAML.
type LinearModel struct {
	Version      string             `yaml:"version"`
	Intercept    float64            `yaml:"intercept"`
	Coefficients map[string]float64 `yaml:"coefficients"`
}

func (m *LinearModel) Name() string { return "linear:" + m.Version }

// Predict sums the terms in feature name order so equal inputs always give
// bit-identical scores.
func (m *LinearModel) Predict(f models.VolatilityFeatures) float64 {
	x := Normalize(f)
	names := make([]string, 0, len(m.Coefficients))
	for name := range m.Coefficients {
		names = append(names, name)
	}
	sort.Strings(names)

	y := m.Intercept
	for _, name := range names {
		y += m.Coefficients[name] * x[name]
	}
	return features.Clamp(y, 0, 1)
}

// LoadModel reads coefficients from path. Unknown feature names are rejected.
func LoadModel(path string) (*LinearModel, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m LinearModel
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if len(m.Coefficients) == 0 {
		return nil, fmt.Errorf("model %s has no coefficients", path)
	}
	known := Normalize(models.VolatilityFeatures{})
	for name := range m.Coefficients {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("model %s: unknown feature %q", path, name)
		}
	}
	return &m, nil
}

// NewPredictor returns the model at path when it loads, otherwise the heuristic.
func NewPredictor(path string, log *logger.Logger) service.VolatilityPredictor {
	if path != "" {
		m, err := LoadModel(path)
		if err == nil {
			log.Info("volatility model loaded", logger.String("path", path), logger.String("version", m.Version))
			return m
		}
		log.Warn("volatility model unavailable, using heuristic", logger.Error(err))
	}
	return Heuristic{}
}
