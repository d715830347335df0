package optimizer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfig = errors.New("optimizer: invalid config")
	ErrToolFailure   = errors.New("optimizer: compiler reported failure")
)

// ToolFailureError is returned when FailOnToolError is set and the compiler
// exits non-zero.
type ToolFailureError struct {
	ExitCode    int32
	Diagnostics string
}

func (e *ToolFailureError) Error() string {
	msg := fmt.Sprintf("optimizer: compiler exited %d", e.ExitCode)
	if first := firstLine(e.Diagnostics); first != "" {
		msg += ": " + first
	}
	return msg
}

func (e *ToolFailureError) Is(target error) bool { return target == ErrToolFailure }

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
