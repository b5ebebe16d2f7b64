package confidence

import "github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"

// DefaultHistoricalAccuracy is the placeholder used until a calibrated source exists.
const DefaultHistoricalAccuracy = 0.5

// AccuracySource supplies the historical-accuracy factor. Implementations must
// return a value in [0,1]; the model clamps anyway.
type AccuracySource interface {
	HistoricalAccuracy(in signals.Input) float64
}

// ConstantAccuracy returns the same accuracy for every input.
type ConstantAccuracy float64

// HistoricalAccuracy implements AccuracySource.
func (c ConstantAccuracy) HistoricalAccuracy(signals.Input) float64 {
	return float64(c)
}
