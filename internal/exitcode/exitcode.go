package exitcode

import (
	"context"
	"errors"
	"strings"

	"github.com/kjourdan1/azaudit/internal/remediate"
	"github.com/kjourdan1/azaudit/internal/scan"
)

const (
	OK          = 0
	Generic     = 1
	Validation  = 2
	Azure       = 3
	Auth        = 4
	Findings    = 5
	Interrupted = 130
)

type Error struct {
	Code  int
	Cause error
}

func (e *Error) Error() string {
	return e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Cause: err}
}

func Of(err error) int {
	if err == nil {
		return OK
	}

	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}

	if errors.Is(err, context.Canceled) {
		return Interrupted
	}
	if errors.Is(err, remediate.ErrAuth) {
		return Auth
	}

	var fatal *scan.FatalError
	if errors.As(err, &fatal) {
		return Azure
	}

	// Fallback: string-based classification for errors not yet wrapped with typed codes.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "az login") || strings.Contains(msg, "not authenticated"):
		return Auth
	case strings.Contains(msg, "validation") || strings.Contains(msg, "invalid"):
		return Validation
	case strings.Contains(msg, "azure") || strings.Contains(msg, "subscription"):
		return Azure
	default:
		return Generic
	}
}
