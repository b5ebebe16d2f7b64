package engine

import (
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// Volatility and degradation cut-offs for risk classification.
const (
	criticalVolatility = 0.85
	highVolatility     = 0.65
	mediumVolatility   = 0.45
	highDegradation    = 0.30
)

// ClassifyRisk derives the risk class from the input alone. It reads no engine state.
func ClassifyRisk(in signals.Input) decision.Risk {
	vol := in.ClampedVolatility()
	switch {
	case in.RiskState == signals.RiskRed || vol > criticalVolatility:
		return decision.RiskCritical
	case in.RiskState == signals.RiskOrange || vol > highVolatility || in.ClampedDegradation() > highDegradation:
		return decision.RiskHigh
	case in.RiskState == signals.RiskYellow || vol > mediumVolatility:
		return decision.RiskMedium
	default:
		return decision.RiskLow
	}
}
