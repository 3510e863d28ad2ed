package risk

import "fmt"

// Reason is a machine-readable rejection code. The set is closed: callers
// switch on it for user-facing behavior, so new codes are additions to the
// public contract.
type Reason string

const (
	ReasonMissingStopLoss            Reason = "MissingStopLoss"
	ReasonInvalidStopLossDirection   Reason = "InvalidStopLossDirection"
	ReasonStopLossTooClose           Reason = "StopLossTooClose"
	ReasonRiskExceeded               Reason = "RiskExceeded"
	ReasonInvalidTakeProfitDirection Reason = "InvalidTakeProfitDirection"
	ReasonHedgingDisabled            Reason = "HedgingDisabled"
)

// Result is the outcome of a validation step: either accepted, or rejected
// with a reason code and a human-readable message. Rejections are values,
// not errors; the caller always gets a well-formed Result back.
type Result struct {
	Accepted bool
	Reason   Reason // Empty when accepted
	Message  string // Empty when accepted
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given reason and message.
func Reject(reason Reason, format string, args ...interface{}) Result {
	return Result{Reason: reason, Message: fmt.Sprintf(format, args...)}
}
