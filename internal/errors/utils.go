package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Wrap wraps an error with additional context, creating a GrowError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *GrowError {
	if err == nil {
		return nil
	}

	// If it's already a GrowError, preserve its location but update the message
	var ge *GrowError
	if errors.As(err, &ge) {
		return &GrowError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       ge,
			Context:     ge.Context,
			PodPath:     ge.PodPath,
			Locale:      ge.Locale,
			Offset:      ge.Offset,
			Recoverable: ge.Recoverable,
		}
	}

	return &GrowError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeRender,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *GrowError {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *GrowError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

// WrapRender wraps an error as a render error for a document
func WrapRender(err error, code, message, podPath, locale string) *GrowError {
	ge := Wrap(err, ErrorTypeRender, code, message)
	if ge != nil {
		ge.PodPath = podPath
		ge.Locale = locale
	}
	return ge
}

// WrapExtension wraps an error raised by an extension hook
func WrapExtension(err error, hook, extension string) *GrowError {
	ge := Wrap(err, ErrorTypeExtension, ErrCodeHookFailed, fmt.Sprintf("hook %s of extension %s failed", hook, extension))
	if ge != nil {
		ge.WithContext("hook", hook).WithContext("extension", extension)
	}
	return ge
}

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Join returns an error that wraps the given errors.
func Join(errs ...error) error { return errors.Join(errs...) }

// Traceback formats the chain of causes of err, one per line, outermost
// first. It is used where no panic stack is available.
func Traceback(err error) string {
	if err == nil {
		return ""
	}
	var lines []string
	for depth := 0; err != nil; depth++ {
		lines = append(lines, fmt.Sprintf("%s%T: %s", strings.Repeat("  ", depth), err, err.Error()))
		err = errors.Unwrap(err)
	}
	return strings.Join(lines, "\n")
}

// GetErrorContext extracts context information from a GrowError
func GetErrorContext(err error) map[string]interface{} {
	var ge *GrowError
	if errors.As(err, &ge) {
		context := make(map[string]interface{})
		for k, v := range ge.Context {
			context[k] = v
		}
		if ge.PodPath != "" {
			context["pod_path"] = ge.PodPath
			if ge.Offset > 0 {
				context["offset"] = ge.Offset
			}
		}
		if ge.Locale != "" {
			context["locale"] = ge.Locale
		}
		context["type"] = string(ge.Type)
		context["code"] = ge.Code
		context["recoverable"] = ge.Recoverable
		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    string(TypeOf(err)),
	}
}
