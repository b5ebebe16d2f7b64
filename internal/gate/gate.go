package gate

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// #region check
// Check runs the hard veto pass. It is a pure function of the input and returns
// nil when the tick may proceed. RED risk outranks the execution warning.
func Check(in signals.Input) *Block {
	if in.RiskState == signals.RiskRed {
		return &Block{Type: VetoRiskCascade, Reason: ReasonRiskCascade}
	}
	if in.ExecutionWarning {
		return &Block{Type: VetoExecutionShield, Reason: ReasonExecutionShield}
	}
	return nil
}

// #endregion check

// #region malformed
// Malformed wraps an input validation failure as a block so the engine can
// resolve it to the same conservative WAIT as a safety veto.
func Malformed(err error) *Block {
	return &Block{
		Type:   VetoMalformedInput,
		Reason: fmt.Sprintf("Malformed input: %s", strings.TrimPrefix(err.Error(), signals.ErrMalformedInput.Error()+": ")),
	}
}

// #endregion malformed
