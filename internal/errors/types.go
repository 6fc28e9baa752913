// Package errors defines the structured error taxonomy used across templpack
// and the error-handling collaborator that decides whether a reported
// failure is suppressed or escalated.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeInvalidResource ErrorType = "invalid_resource"
	ErrorTypeInvalidContext  ErrorType = "invalid_context"
	ErrorTypeResourceParsing ErrorType = "resource_parsing"
	ErrorTypeAssetNotFound   ErrorType = "asset_not_found"
	ErrorTypeBuild           ErrorType = "build"
	ErrorTypeConfig          ErrorType = "config"
	ErrorTypeIO              ErrorType = "io"
)

// Common error codes.
const (
	ErrCodeInvalidResource = "ERR_INVALID_RESOURCE"
	ErrCodeInvalidContext  = "ERR_INVALID_CONTEXT"
	ErrCodeResourceParsing = "ERR_RESOURCE_PARSING"
	ErrCodeGroupConflict   = "ERR_GROUP_CONFLICT"
	ErrCodeAssetNotFound   = "ERR_ASSET_NOT_FOUND"
	ErrCodeBuildFailed     = "ERR_BUILD_FAILED"
	ErrCodeManifestMissing = "ERR_MANIFEST_MISSING"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound    = "ERR_FILE_NOT_FOUND"
)

// ErrNoEntryPoints is returned when a configuration snapshot would contain no
// entry points. Callers treat it as "nothing to build", not as a failure.
var ErrNoEntryPoints = errors.New("no entry points found")

// TemplpackError is a structured error type with context.
type TemplpackError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
	Line     int
}

// Error implements the error interface.
func (e *TemplpackError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
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
func (e *TemplpackError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *TemplpackError) Is(target error) bool {
	var t *TemplpackError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *TemplpackError) WithContext(key string, value interface{}) *TemplpackError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// NewInvalidResourceError reports a template source that cannot be read.
func NewInvalidResourceError(path string, cause error) *TemplpackError {
	return &TemplpackError{
		Type:     ErrorTypeInvalidResource,
		Code:     ErrCodeInvalidResource,
		Message:  "template file is not readable",
		Cause:    cause,
		FilePath: path,
	}
}

// NewInvalidContextError reports a previous-cycle token of the wrong shape.
func NewInvalidContextError(message string) *TemplpackError {
	return &TemplpackError{
		Type:    ErrorTypeInvalidContext,
		Code:    ErrCodeInvalidContext,
		Message: message,
	}
}

// NewResourceParsingError reports a syntax or declaration failure in a template.
func NewResourceParsingError(path string, line int, message string, cause error) *TemplpackError {
	return &TemplpackError{
		Type:     ErrorTypeResourceParsing,
		Code:     ErrCodeResourceParsing,
		Message:  message,
		Cause:    cause,
		FilePath: path,
		Line:     line,
	}
}

// NewGroupConflictError reports an asset declared with two different groups.
func NewGroupConflictError(resource, first, second string) *TemplpackError {
	return &TemplpackError{
		Type: ErrorTypeResourceParsing,
		Code: ErrCodeGroupConflict,
		Message: fmt.Sprintf(
			"Same assets must have same groups. Different groups (%s and %s) found for asset %q",
			groupLabel(first), groupLabel(second), resource,
		),
	}
}

func groupLabel(group string) string {
	if group == "" {
		return "none"
	}

	return group
}

// NewAssetNotFoundError reports a declared resource that does not resolve to a file.
func NewAssetNotFoundError(resource string, cause error) *TemplpackError {
	return &TemplpackError{
		Type:    ErrorTypeAssetNotFound,
		Code:    ErrCodeAssetNotFound,
		Message: "asset not found: " + resource,
		Cause:   cause,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *TemplpackError {
	return &TemplpackError{
		Type:    ErrorTypeBuild,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *TemplpackError {
	return &TemplpackError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *TemplpackError {
	return &TemplpackError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

func hasType(err error, t ErrorType) bool {
	var te *TemplpackError
	if errors.As(err, &te) {
		return te.Type == t
	}

	return false
}

// IsInvalidResource checks if an error reports an unreadable template.
func IsInvalidResource(err error) bool {
	return hasType(err, ErrorTypeInvalidResource)
}

// IsInvalidContext checks if an error reports a malformed cache token.
func IsInvalidContext(err error) bool {
	return hasType(err, ErrorTypeInvalidContext)
}

// IsResourceParsing checks if an error is a template parsing failure.
func IsResourceParsing(err error) bool {
	return hasType(err, ErrorTypeResourceParsing)
}

// IsAssetNotFound checks if an error reports an unresolvable asset.
func IsAssetNotFound(err error) bool {
	return hasType(err, ErrorTypeAssetNotFound)
}

// IsBuildError checks if an error is build-related.
func IsBuildError(err error) bool {
	return hasType(err, ErrorTypeBuild)
}

// IsNoEntryPoints checks for ErrNoEntryPoints anywhere in the chain.
func IsNoEntryPoints(err error) bool {
	return errors.Is(err, ErrNoEntryPoints)
}
