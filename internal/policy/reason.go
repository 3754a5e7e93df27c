package policy

import "fmt"

// Reason classifies why an action was rejected. Reasons are stable kinds, not
// display strings; callers switch on them to explain rejections.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonPermissionDenied   Reason = "permission_denied"
	ReasonNotActivated       Reason = "not_activated"
	ReasonExpired            Reason = "expired"
	ReasonLimitExceeded      Reason = "limit_exceeded"
	ReasonCooldownActive     Reason = "cooldown_active"
	ReasonInvalidConfig      Reason = "invalid_configuration"
	ReasonAlreadyExists      Reason = "already_exists"
	ReasonNotFound           Reason = "not_found"
	ReasonTimelockNotReached Reason = "timelock_not_reached"
	ReasonOwnerMismatch      Reason = "owner_mismatch"

	// Refinements of the base taxonomy so callers never re-derive them.
	ReasonZeroPrice       Reason = "zero_price"
	ReasonAssetNotAllowed Reason = "asset_not_allowed"
)

// Error is a rejection carrying its reason kind.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Reject builds a reason-tagged error.
func Reject(reason Reason, format string, args ...interface{}) *Error {
	return &Error{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the reason kind from err, or ReasonNone if err carries none.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	if pe, ok := err.(*Error); ok {
		return pe.Reason
	}
	return ReasonNone
}
