package monitor

import "errors"

var (
	// ErrNotFound: the display is missing or has no terminal configured.
	ErrNotFound = errors.New("display not found")
	// ErrRemoteUnavailable: the device API call failed (network, timeout, non-2xx).
	ErrRemoteUnavailable = errors.New("device api unavailable")
	// ErrReconciliation: schedule evaluation or publish failed after the
	// status was already recorded. Logged only.
	ErrReconciliation = errors.New("schedule reconciliation failed")
)
