package bridge

import (
	"errors"
	"log/slog"
)

// ErrorSeverity indicates how critical an error is.
type ErrorSeverity int

const (
	// SeverityDebug is informational, logged in debug mode only.
	SeverityDebug ErrorSeverity = iota
	// SeverityWarning is non-critical, the bridge keeps operating.
	SeverityWarning
	// SeverityCritical is a serious issue the app should handle.
	SeverityCritical
	// SeverityFatal means the bridge cannot operate and must be recreated.
	SeverityFatal
)

func (s ErrorSeverity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error codes for categorization.
const (
	ErrCodeNotInitialized     = "NOT_INITIALIZED"
	ErrCodeInvalidConfig      = "INVALID_CONFIG"
	ErrCodeInvalidArgument    = "INVALID_ARGUMENT"
	ErrCodeNativeCallFailed   = "NATIVE_CALL_FAILED"
	ErrCodeDecodeFailed       = "DECODE_FAILED"
	ErrCodeUnsupportedNative  = "UNSUPPORTED_NATIVE_VERSION"
	ErrCodeInvalidVersion     = "INVALID_NATIVE_VERSION"
	ErrCodeDuplicateID        = "DUPLICATE_CORRELATION_ID"
	ErrCodeHandlerUnavailable = "MAIN_THREAD_UNAVAILABLE"
)

// Sentinel errors returned by the bridge API.
var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("bridge closed")
	// ErrNoTransport is returned by New without a transport.
	ErrNoTransport = errors.New("bridge needs a native transport")
	// ErrEmptyAppID is returned by Initialize without an app id.
	ErrEmptyAppID = errors.New("app id is required")
	// ErrInvalidArgument is returned before any native call is made.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCancelled completes a Future whose pending call was cancelled.
	ErrCancelled = errors.New("native call cancelled")
	// ErrDecode completes a Future whose response could not be decoded.
	ErrDecode = errors.New("native response could not be decoded")
	// ErrNativeFailure completes a Future answered on the failure channel.
	ErrNativeFailure = errors.New("native call reported failure")
)

// SDKError represents a structured error with severity and code.
type SDKError struct {
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Severity ErrorSeverity `json:"severity"`
	Err      error         `json:"-"`
}

// Error implements the error interface.
func (e *SDKError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *SDKError) Unwrap() error {
	return e.Err
}

func newWarningError(code, message string, cause error) *SDKError {
	return &SDKError{Code: code, Message: message, Severity: SeverityWarning, Err: cause}
}

func newCriticalError(code, message string, cause error) *SDKError {
	return &SDKError{Code: code, Message: message, Severity: SeverityCritical, Err: cause}
}

func newFatalError(code, message string, cause error) *SDKError {
	return &SDKError{Code: code, Message: message, Severity: SeverityFatal, Err: cause}
}

// logLevel maps a severity to the slog level used to record it.
func (s ErrorSeverity) logLevel() slog.Level {
	switch s {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
