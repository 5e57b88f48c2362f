package orderbook

import (
	"CryptoPulse/internal/domain/models"
	"CryptoPulse/internal/services/features"
)

const (
	imbalanceWeight = 0.6
	wallWeight      = 0.3
	cvdWeight       = 0.1
)

// Microstructure blends imbalance, wall direction and CVD divergence into
// one reading in [-1, 1]. Components that have no signal contribute nothing.
func Microstructure(book models.OrderBookSnapshot, threshold float64, cvd *CVDTracker) float64 {
	signal := 0.0
	if imb, ok := Imbalance(book); ok {
		signal += imbalanceWeight * imb
	}
	signal += wallWeight * DetectWalls(book, threshold).Direction()
	if cvd != nil {
		if div, ok := cvd.Divergence(); ok {
			signal += cvdWeight * div
		}
	}
	return features.Clamp(signal, -1, 1)
}
