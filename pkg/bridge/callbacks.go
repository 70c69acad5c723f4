package bridge

import (
	"context"
	"sync"
)

// ErrorCallback is invoked when the bridge reports an error of warning
// severity or above.
//
// Parameters:
//   - code: Error code (e.g., "DECODE_FAILED", "UNSUPPORTED_NATIVE_VERSION")
//   - message: Human-readable error message
//   - severity: 0=debug, 1=warning, 2=critical, 3=fatal
type ErrorCallback interface {
	OnError(code string, message string, severity int)
}

// ErrorCallbackFunc adapts a function to ErrorCallback.
type ErrorCallbackFunc func(code string, message string, severity int)

// OnError calls f.
func (f ErrorCallbackFunc) OnError(code string, message string, severity int) {
	f(code, message, severity)
}

// errorCallbacks is the bridge-owned list of registered callbacks.
type errorCallbacks struct {
	mu  sync.RWMutex
	cbs []ErrorCallback
}

func (e *errorCallbacks) add(cb ErrorCallback) {
	if cb == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cbs = append(e.cbs, cb)
}

func (e *errorCallbacks) clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cbs = nil
}

// notify dispatches err to every callback. Callbacks run on their own
// goroutines so a slow callback never blocks a native thread.
func (e *errorCallbacks) notify(err *SDKError) {
	if err == nil || err.Severity < SeverityWarning {
		return
	}

	e.mu.RLock()
	callbacks := make([]ErrorCallback, len(e.cbs))
	copy(callbacks, e.cbs)
	e.mu.RUnlock()

	for _, cb := range callbacks {
		go cb.OnError(err.Code, err.Message, int(err.Severity))
	}
}

// RegisterErrorCallback adds a callback for error notifications. Multiple
// callbacks can be registered; all are notified.
func (b *Bridge) RegisterErrorCallback(cb ErrorCallback) {
	b.errCallbacks.add(cb)
}

// UnregisterErrorCallbacks removes all registered callbacks.
func (b *Bridge) UnregisterErrorCallbacks() {
	b.errCallbacks.clear()
}

// report logs err by severity and notifies callbacks for warning and above.
// Debug entries are only logged in debug mode.
func (b *Bridge) report(err *SDKError) {
	if err == nil {
		return
	}
	if err.Severity == SeverityDebug && !b.cfg.DebugMode {
		return
	}

	attrs := []any{"code", err.Code, "severity", err.Severity.String()}
	if err.Err != nil {
		attrs = append(attrs, "error", err.Err)
	}
	b.logger.Log(context.Background(), err.Severity.logLevel(), err.Message, attrs...)
	b.errCallbacks.notify(err)
}
