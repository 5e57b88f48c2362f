package metrics

import (
	"CryptoPulse/internal/domain/models"
	"CryptoPulse/internal/domain/repository"
)

var _ repository.Metrics = Nop{}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordFeedState(string, models.FeedState)       {}
func (Nop) RecordMessage(string, string)                   {}
func (Nop) RecordParseDrop(string)                         {}
func (Nop) RecordReconnect(string)                         {}
func (Nop) RecordLastPrice(string, float64)                {}
func (Nop) RecordSignal(string, string, float64)           {}
func (Nop) RecordComposite(string, float64, models.Action) {}
func (Nop) RecordSourceFailure(string)                     {}
func (Nop) RecordRiskDecision(bool)                        {}
func (Nop) RecordOrder(models.Side, models.OrderStatus)    {}
func (Nop) RecordError(string)                             {}
func (Nop) RecordLatency(string, float64)                  {}
