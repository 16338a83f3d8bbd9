package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorCode string

const (
	// CodeNoManifest: the directory holds no Package*.swift.
	CodeNoManifest ErrorCode = "NO_MANIFEST"
	// CodeNoTranscript: neither overrides nor the build transcript yielded
	// compiler arguments.
	CodeNoTranscript         ErrorCode = "NO_TRANSCRIPT"
	CodeMalformedOutput      ErrorCode = "MALFORMED_OUTPUT"
	CodeIntrospectionFailed  ErrorCode = "INTROSPECTION_FAILED"
	CodeToolchainUnavailable ErrorCode = "TOOLCHAIN_UNAVAILABLE"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeValidationError      ErrorCode = "VALIDATION_ERROR"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
)

const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxModule    = "module"
	CtxCommand   = "command"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]any
}

func (e *DomainError) WithContext(key string, value any) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]any, 1)
	}
	e.Context[key] = value
	return e
}

// Error renders "[CODE] message: cause key=value ..." with keys sorted.
func (e *DomainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Context[k])
		}
	}
	return b.String()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext attaches a context value, promoting plain errors to CodeInternal.
func AddContext(err error, key string, value any) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]any{key: value},
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost DomainError, or "" for plain errors.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// EndsSlice reports whether err stops a project's slice before any
// introspection ran. Every other failure is per-unit and only logged.
func EndsSlice(err error) bool {
	return IsCode(err, CodeNoManifest) || IsCode(err, CodeNoTranscript)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}
