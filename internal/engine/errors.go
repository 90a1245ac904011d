package engine

import (
	"errors"
	"fmt"
)

// Kind classifies a caller-facing engine failure. Kinds are stable: the HTTP
// layer maps them to status codes and clients branch on them.
type Kind string

const (
	// KindInvalidItemID means the item id is not in the configured catalog.
	KindInvalidItemID Kind = "invalid_item_id"
	// KindPurchaseVerificationFailed means the marketplace check failed,
	// returned malformed data, or the item id did not match.
	KindPurchaseVerificationFailed Kind = "purchase_verification_failed"
	// KindLicenseInactive means the license is administratively disabled.
	KindLicenseInactive Kind = "license_inactive"
	// KindMissingDeviceID means a device-mode request carried no device id.
	KindMissingDeviceID Kind = "missing_device_id"
	// KindMissingNetworkAddress means a network-mode request carried no address.
	KindMissingNetworkAddress Kind = "missing_network_address"
	// KindAlreadyActivatedElsewhere means the license is bound to a different
	// identifier.
	KindAlreadyActivatedElsewhere Kind = "already_activated_elsewhere"
	// KindLicenseNotFound means no license exists for the purchase code.
	KindLicenseNotFound Kind = "license_not_found"
)

// Error is a recoverable, caller-facing engine failure. It carries a stable
// kind plus a human-readable message; any underlying provider or storage
// error is preserved as diagnostic context via Unwrap.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// E creates a new engine error with the given kind and message.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new engine error wrapping an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the engine error kind from an error chain.
// The second return value is false if no engine error is present.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether the error chain contains an engine error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
