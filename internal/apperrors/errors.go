package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrOptionNotFound indicates that an investment option with the given ID does not exist.
	ErrOptionNotFound = errors.New("investment option not found")

	// ErrSyncLogNotFound indicates that a sync log row with the given ID does not exist.
	ErrSyncLogNotFound = errors.New("sync log not found")

	// ErrSettingNotFound indicates a settings key lookup returned no row.
	ErrSettingNotFound = errors.New("setting not found")
)

// Job control errors represent rejected or refused job invocations.
var (
	// ErrUnauthorized indicates a job trigger with a missing or invalid credential.
	// Rejected before any side effect; no sync log row is created.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrJobAlreadyRunning indicates a trigger raced an in-flight execution of
	// the same job id. The in-flight run is unaffected.
	ErrJobAlreadyRunning = errors.New("job is already running")
)

// Business logic errors represent validation failures or constraint violations.
var (
	// ErrInvalidSymbol indicates that a required symbol is empty or missing.
	ErrInvalidSymbol = errors.New("symbol is required")

	// ErrEmptyID indicates that a required ID parameter is empty or missing.
	ErrEmptyID = errors.New("ID cannot be empty")

	// ErrSecretsNotConfigured indicates the fernet key is missing so encrypted
	// credential storage is unavailable.
	ErrSecretsNotConfigured = errors.New("secret encryption is not configured")
)

// VendorUnavailableError indicates that a required external feed could not be
// obtained after exhausting retries and fallback endpoints. It aborts the
// whole job and carries actionable diagnostic text for the operator.
type VendorUnavailableError struct {
	Vendor   string
	LastErr  error
	Remedies string
}

// Error formats the vendor, the last underlying error, and suggested remedies.
func (e *VendorUnavailableError) Error() string {
	msg := fmt.Sprintf("%s feed unavailable", e.Vendor)
	if e.LastErr != nil {
		msg += fmt.Sprintf(": %v", e.LastErr)
	}
	if e.Remedies != "" {
		msg += ". " + e.Remedies
	}
	return msg
}

func (e *VendorUnavailableError) Unwrap() error {
	return e.LastErr
}

// NewVendorUnavailable builds a VendorUnavailableError for the given vendor.
func NewVendorUnavailable(vendor string, lastErr error, remedies ...string) *VendorUnavailableError {
	return &VendorUnavailableError{Vendor: vendor, LastErr: lastErr, Remedies: strings.Join(remedies, "; ")}
}

// IsVendorUnavailable reports whether err is (or wraps) a VendorUnavailableError.
func IsVendorUnavailable(err error) bool {
	var vu *VendorUnavailableError
	return errors.As(err, &vu)
}

// IsRateLimited classifies an error as a vendor rate limit. Vendors signal
// limits inconsistently (status 429, quota text, throttle text), so this
// matches on message content the way the job-trigger contract expects:
// rate-limited failures surface to callers as HTTP 429.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota exceeded")
}
