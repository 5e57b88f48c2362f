package orderbook

import "CryptoPulse/internal/domain/models"

// DefaultWallThreshold is the share of a side's depth one level must exceed to count as a wall.
const DefaultWallThreshold = 0.10

func sideTotal(levels []models.Level) (total, maxQty float64) {
	for _, l := range levels {
		total += l.Quantity
		if l.Quantity > maxQty {
			maxQty = l.Quantity
		}
	}
	return total, maxQty
}

// Imbalance is (bids-asks)/(bids+asks) over total quantity. ok is false when
// either side is empty or the depth sums to zero.
func Imbalance(book models.OrderBookSnapshot) (float64, bool) {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 0, false
	}
	bid, _ := sideTotal(book.Bids)
	ask, _ := sideTotal(book.Asks)
	if bid+ask == 0 {
		return 0, false
	}
	return (bid - ask) / (bid + ask), true
}

// Walls holds the largest-level ratio for each side, set only when flagged.
type Walls struct {
	Buy  *float64 `json:"buy_wall,omitempty"`
	Sell *float64 `json:"sell_wall,omitempty"`
}

// Direction is +1 for a buy wall, -1 for a sell wall and 0 for neither.
// A buy wall wins when both are flagged.
func (w Walls) Direction() float64 {
	switch {
	case w.Buy != nil:
		return 1
	case w.Sell != nil:
		return -1
	}
	return 0
}

// DetectWalls flags a side when its largest level exceeds threshold of the side total.
func DetectWalls(book models.OrderBookSnapshot, threshold float64) Walls {
	if threshold <= 0 {
		threshold = DefaultWallThreshold
	}
	return Walls{
		Buy:  wallRatio(book.Bids, threshold),
		Sell: wallRatio(book.Asks, threshold),
	}
}

func wallRatio(levels []models.Level, threshold float64) *float64 {
	total, maxQty := sideTotal(levels)
	if total == 0 {
		return nil
	}
	ratio := maxQty / total
	if ratio > threshold {
		return &ratio
	}
	return nil
}
