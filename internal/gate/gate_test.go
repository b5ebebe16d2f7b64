package gate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

func cleanInput() signals.Input {
	return signals.Input{
		FusedScore: 70,
		Trend:      signals.DirectionUp,
		RiskState:  signals.RiskGreen,
		Volatility: 0.2,
	}
}

func TestCheck_PassesCleanInput(t *testing.T) {
	for _, rs := range []signals.RiskState{signals.RiskGreen, signals.RiskYellow, signals.RiskOrange} {
		in := cleanInput()
		in.RiskState = rs
		assert.Nil(t, Check(in), "risk state %s", rs)
	}
}

func TestCheck_BlocksRed(t *testing.T) {
	in := cleanInput()
	in.RiskState = signals.RiskRed

	b := Check(in)

	require.NotNil(t, b)
	assert.Equal(t, VetoRiskCascade, b.Type)
	assert.Equal(t, "High-risk cascade detected", b.Reason)
}

func TestCheck_BlocksExecutionWarning(t *testing.T) {
	in := cleanInput()
	in.ExecutionWarning = true
	in.MemoryInstability = true

	b := Check(in)

	require.NotNil(t, b)
	assert.Equal(t, VetoExecutionShield, b.Type)
	assert.Equal(t, "Execution shield warning active", b.Reason)
}

func TestCheck_RedOutranksExecutionWarning(t *testing.T) {
	in := cleanInput()
	in.RiskState = signals.RiskRed
	in.ExecutionWarning = true

	assert.Equal(t, VetoRiskCascade, Check(in).Type)
}

func TestCheck_MemoryInstabilityIsInformational(t *testing.T) {
	in := cleanInput()
	in.MemoryInstability = true

	assert.Nil(t, Check(in))
}

func TestMalformed(t *testing.T) {
	err := fmt.Errorf("%w: unknown risk state %q", signals.ErrMalformedInput, "PURPLE")

	b := Malformed(err)

	assert.Equal(t, VetoMalformedInput, b.Type)
	assert.Equal(t, `Malformed input: unknown risk state "PURPLE"`, b.Reason)
}
