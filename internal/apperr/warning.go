package apperr

import (
	"errors"
	"fmt"
)

// Warning reports a secondary step that failed after the primary write had
// already been committed: publishing a notification or bumping a recipe's
// updated_at. The value returned alongside a Warning is valid.
type Warning struct {
	Op  string
	Err error
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%s: committed with warning: %v", w.Op, w.Err)
}

func (w *Warning) Unwrap() error { return w.Err }

// Warn wraps err as a Warning, or returns nil when err is nil.
func Warn(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Warning{Op: op, Err: err}
}

// IsWarning reports whether err is a post-commit warning rather than a failure.
func IsWarning(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return false
	}
	var w *Warning
	return errors.As(err, &w)
}
