// Package errors provides the structured error types used across grow: a
// general GrowError carrying type, code and location context, and the domain
// errors raised by the content pipeline (format, not-found, duplicate path,
// path format) together with the BulkErrors and RenderErrors aggregates.
package errors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeFormat     ErrorType = "format"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeRouting    ErrorType = "routing"
	ErrorTypeRender     ErrorType = "render"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeExtension  ErrorType = "extension"
	ErrorTypeInternal   ErrorType = "internal"
)

// GrowError is a structured error type with context.
type GrowError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	PodPath     string
	Locale      string
	Offset      int
	Recoverable bool
}

// Error implements the error interface.
func (e *GrowError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.PodPath != "" {
		location := e.PodPath
		if e.Locale != "" {
			location += "@" + e.Locale
		}
		if e.Offset > 0 {
			location += fmt.Sprintf(":%d", e.Offset)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *GrowError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *GrowError) Is(target error) bool {
	var t *GrowError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *GrowError) WithContext(key string, value interface{}) *GrowError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds pod path and byte offset information.
func (e *GrowError) WithLocation(podPath string, offset int) *GrowError {
	e.PodPath = podPath
	e.Offset = offset

	return e
}

// WithLocale adds locale context.
func (e *GrowError) WithLocale(locale string) *GrowError {
	e.Locale = locale

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *GrowError {
	return &GrowError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewRenderError creates a render error.
func NewRenderError(code, message string, cause error) *GrowError {
	return &GrowError{
		Type:        ErrorTypeRender,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *GrowError {
	return &GrowError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *GrowError {
	return &GrowError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *GrowError {
	return &GrowError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ge *GrowError
	if errors.As(err, &ge) {
		return ge.Recoverable
	}

	return false
}

// TypeOf returns the ErrorType of err, or "" when err carries none.
func TypeOf(err error) ErrorType {
	var ge *GrowError
	if errors.As(err, &ge) {
		return ge.Type
	}
	var fe *FormatError
	if errors.As(err, &fe) {
		return ErrorTypeFormat
	}
	var dp *DuplicatePathsError
	if errors.As(err, &dp) {
		return ErrorTypeRouting
	}
	var pf *PathFormatError
	if errors.As(err, &pf) {
		return ErrorTypeRouting
	}
	if IsNotFound(err) {
		return ErrorTypeNotFound
	}

	return ""
}

// ErrorHandler logs errors the pipeline recovers from, at a level matching
// how serious they are.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err with msg. Recoverable and extension errors are warnings;
// anything else is an error. The type, code and context of a GrowError are
// appended to fields.
func (h *ErrorHandler) Handle(ctx context.Context, err error, msg string, fields ...interface{}) {
	if err == nil || h == nil || h.logger == nil {
		return
	}

	var ge *GrowError
	if !errors.As(err, &ge) {
		h.logger.Error(ctx, err, msg, fields...)
		return
	}

	errCtx := GetErrorContext(err)
	keys := make([]string, 0, len(errCtx))
	for k := range errCtx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, k, errCtx[k])
	}

	if ge.Recoverable || ge.Type == ErrorTypeExtension {
		h.logger.Warn(ctx, err, msg, fields...)
		return
	}
	h.logger.Error(ctx, err, msg, fields...)
}

// Common error codes.
const (
	ErrCodeInvalidPath        = "ERR_INVALID_PATH"
	ErrCodeBadFrontMatter     = "ERR_BAD_FRONT_MATTER"
	ErrCodeBadYAML            = "ERR_BAD_YAML"
	ErrCodeBadLocales         = "ERR_BAD_LOCALES"
	ErrCodeDocumentNotFound   = "ERR_DOCUMENT_NOT_FOUND"
	ErrCodeCollectionNotFound = "ERR_COLLECTION_NOT_FOUND"
	ErrCodeFileNotFound       = "ERR_FILE_NOT_FOUND"
	ErrCodeDuplicatePath      = "ERR_DUPLICATE_PATH"
	ErrCodePathFormat         = "ERR_PATH_FORMAT"
	ErrCodeRenderFailed       = "ERR_RENDER_FAILED"
	ErrCodeTemplateNotFound   = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeCacheWrite         = "ERR_CACHE_WRITE"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeHookFailed         = "ERR_HOOK_FAILED"
	ErrCodeCatalog            = "ERR_CATALOG"
	ErrCodeWatcher            = "ERR_WATCHER"
	ErrCodeInternalError      = "ERR_INTERNAL"
)
