package models

import "time"

// RangeKind describes the native output range of a signal source.
type RangeKind int

const (
	RangeSymmetric   RangeKind = iota // [-1, 1]
	RangeProbability                  // [0, 1]
	RangeHalf                         // [-0.5, 0.5]
)

func (k RangeKind) String() string {
	switch k {
	case RangeProbability:
		return "probability"
	case RangeHalf:
		return "half"
	default:
		return "symmetric"
	}
}

// Neutral is the value substituted when a source of this kind is unavailable.
func (k RangeKind) Neutral() float64 {
	if k == RangeProbability {
		return 0.5
	}
	return 0
}

// Normalize maps a raw value onto the symmetric scale used by fusion.
func (k RangeKind) Normalize(v float64) float64 {
	if k == RangeProbability {
		return 2 * (v - 0.5)
	}
	return v
}

// Signal is one source's reading for a symbol.
type Signal struct {
	Source     string    `json:"source"`
	Value      float64   `json:"value"`
	Normalized float64   `json:"normalized"`
	Range      string    `json:"range"`
	Timestamp  time.Time `json:"timestamp"`
}

type Action string

const (
	ActionLong    Action = "LONG"
	ActionShort   Action = "SHORT"
	ActionNeutral Action = "NEUTRAL"
)

// Side maps a directional action onto an order side. ok is false for neutral.
func (a Action) Side() (Side, bool) {
	switch a {
	case ActionLong:
		return SideBuy, true
	case ActionShort:
		return SideSell, true
	}
	return "", false
}

// Composite is the fused result for one symbol.
type Composite struct {
	Symbol      string             `json:"symbol"`
	Value       float64            `json:"composite"`
	Action      Action             `json:"action"`
	Confidence  float64            `json:"confidence"`
	Components  map[string]Signal  `json:"components"`
	Weights     map[string]float64 `json:"weights"`
	Failures    map[string]string  `json:"failures,omitempty"`
	ModuleCount int                `json:"module_count"`
	Timestamp   time.Time          `json:"timestamp"`
}

// VolatilityFeatures feed the volatility-probability predictor.
type VolatilityFeatures struct {
	Volatility  float64
	CVD         float64
	Imbalance   float64
	FundingRate float64
	Sentiment   float64
	Trends      float64
	OIChange    float64
}
