package cli

import "fmt"

// ExitError carries a process exit code out of a command without printing
// cobra's usage noise.
type ExitError struct {
	code    int
	message string
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *ExitError) Code() int {
	if e == nil {
		return 1
	}
	return e.code
}

func (e *ExitError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func exitWith(code int, format string, args ...any) *ExitError {
	return &ExitError{code: code, message: fmt.Sprintf(format, args...)}
}
