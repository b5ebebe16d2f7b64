package gate

// #region veto-type
// VetoType enumerates the hard veto categories that block a tick.
type VetoType string

const (
	VetoRiskCascade     VetoType = "risk_cascade"
	VetoExecutionShield VetoType = "execution_shield"
	VetoMalformedInput  VetoType = "malformed_input"
)

// #endregion veto-type

// #region block
// Block is returned when the gate vetoes a tick. Reason is user-facing and
// becomes the single reason on the forced WAIT decision.
type Block struct {
	Type   VetoType
	Reason string
}

// #endregion block

// #region reasons
const (
	ReasonRiskCascade     = "High-risk cascade detected"
	ReasonExecutionShield = "Execution shield warning active"
)

// #endregion reasons
