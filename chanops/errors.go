package chanops

import (
	"errors"
	"strings"

	"github.com/marovik/scribe/platform"
)

// ErrInput tags failures caused by the request itself: an unknown target
// record, a malformed bundle, a record the service does not own. The HTTP
// layer maps these to 4xx responses. Wrap with %w.
var ErrInput = errors.New("invalid request")

// ErrEditCancelled reports that the user replied Cancel to an interactive
// edit prompt. Nothing was written.
var ErrEditCancelled = errors.New("edit cancelled by user")

// ErrorClass sorts an operation error for the audit log and the API layer.
type ErrorClass int

const (
	// ErrorClassRetryable indicates transient platform or network trouble.
	ErrorClassRetryable ErrorClass = iota
	// ErrorClassFatal indicates credentials or configuration problems that
	// retrying will not help.
	ErrorClassFatal
	// ErrorClassInput indicates the request itself was at fault.
	ErrorClassInput
	// ErrorClassUnknown indicates the error type cannot be determined.
	ErrorClassUnknown
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassRetryable:
		return "retryable"
	case ErrorClassFatal:
		return "fatal"
	case ErrorClassInput:
		return "input"
	default:
		return "unknown"
	}
}

// Classify buckets an operation error. Typed errors from the platform and
// catalog layers are checked first; anything else falls back to message
// pattern matching so wrapped transport errors still classify sensibly.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}
	switch {
	case errors.Is(err, ErrInput),
		errors.Is(err, ErrEditCancelled),
		errors.Is(err, platform.ErrNotFound),
		errors.Is(err, platform.ErrBadLink),
		errors.Is(err, platform.ErrAwaitTimeout):
		return ErrorClassInput
	case errors.Is(err, platform.ErrForbidden):
		return ErrorClassFatal
	}

	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == 429 || apiErr.Status >= 500:
			return ErrorClassRetryable
		case apiErr.Status == 401 || apiErr.Status == 403:
			return ErrorClassFatal
		case apiErr.Status >= 400:
			return ErrorClassInput
		}
	}

	lower := strings.ToLower(err.Error())

	fatalPatterns := []string{
		"401",
		"unauthorized",
		"invalid_client",
		"missing client id",
		"missing client secret",
		"access_token",
		"token request failed",
	}
	for _, pattern := range fatalPatterns {
		if strings.Contains(lower, pattern) {
			return ErrorClassFatal
		}
	}

	retryablePatterns := []string{
		"429",
		"too many requests",
		"rate limit",
		"timeout",
		"timed out",
		"connection reset",
		"connection refused",
		"broken pipe",
		"eof",
		"no route to host",
		"network unreachable",
		"temporary failure in name resolution",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
		"internal server error",
		"500",
		"502",
		"503",
		"504",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(lower, pattern) {
			return ErrorClassRetryable
		}
	}

	inputPatterns := []string{
		"not found",
		"does not exist",
		"malformed",
		"invalid",
	}
	for _, pattern := range inputPatterns {
		if strings.Contains(lower, pattern) {
			return ErrorClassInput
		}
	}

	// Unmatched errors are treated as retryable to avoid giving up on
	// recoverable platform weather.
	return ErrorClassRetryable
}

// IsInputError checks whether an error should be reported as a caller
// mistake rather than a service failure.
func IsInputError(err error) bool {
	return Classify(err) == ErrorClassInput
}

// IsRetryableError checks whether an error is worth retrying.
func IsRetryableError(err error) bool {
	return Classify(err) == ErrorClassRetryable
}
