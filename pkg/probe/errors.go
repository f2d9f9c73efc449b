package probe

import (
	"errors"
	"fmt"
)

// ConfigError reports invalid operator input: an unknown write-path name,
// barrier token, policy, or layout. The CLI responds with usage text and a
// non-zero exit instead of a stack of wrapped syscall errors.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return e.msg
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// SetupError reports a failed syscall during file creation, extension,
// writing, or barrier application. The experiment's premise is broken once
// any of these fails, so a SetupError is always fatal and never retried.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

func setupError(op string, err error) error {
	return &SetupError{Op: op, Err: err}
}
