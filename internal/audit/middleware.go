package audit

import "fmt"

// WrapCommand logs a `*_start` event before executing action, a
// `*_success` event on success, or a `*_failure` event carrying the error
// string on failure. The action's result is returned unchanged:
// the audit log never hides application errors.
func WrapCommand[T any](l *Ledger, base string, sourceSpec string, action func() (T, error)) (T, error) {
	if _, err := l.LogEvent(EventType(base+"-start"), sourceSpec, nil); err != nil {
		var zero T
		return zero, fmt.Errorf("audit: log start event: %w", err)
	}

	result, err := action()

	if err != nil {
		if _, logErr := l.LogEvent(EventType(base+"-failure"), sourceSpec, map[string]string{"error": err.Error()}); logErr != nil {
			return result, fmt.Errorf("%w (also failed to log audit failure: %v)", err, logErr)
		}
		return result, err
	}

	if _, logErr := l.LogEvent(EventType(base+"-success"), sourceSpec, nil); logErr != nil {
		return result, fmt.Errorf("audit: log success event: %w", logErr)
	}
	return result, nil
}
