package errors

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Policy selects which reported errors are suppressed and which escalate.
type Policy string

const (
	// PolicySuppress logs every reported error and never escalates.
	PolicySuppress Policy = "suppress"
	// PolicyIgnoreUnknowns suppresses only syntax errors caused by
	// references to undefined template functions.
	PolicyIgnoreUnknowns Policy = "ignore_unknowns"
	// PolicyStrict escalates every reported error.
	PolicyStrict Policy = "strict"
)

// ParsePolicy accepts the policy names plus the boolean spellings used in
// configuration files ("true" suppresses, "false" is strict).
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", string(PolicySuppress):
		return PolicySuppress, nil
	case "false", string(PolicyStrict):
		return PolicyStrict, nil
	case string(PolicyIgnoreUnknowns):
		return PolicyIgnoreUnknowns, nil
	default:
		return "", fmt.Errorf("unknown error policy %q (supported: true, false, ignore_unknowns)", value)
	}
}

// Handler receives recoverable failures found while scanning. A nil return
// means the failure was absorbed; a non-nil return must abort the caller.
type Handler interface {
	Handle(ctx context.Context, err error) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, err error) error

// Handle calls f(ctx, err).
func (f HandlerFunc) Handle(ctx context.Context, err error) error {
	return f(ctx, err)
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// unknownReference is implemented by syntax errors that name an undefined
// template function.
type unknownReference interface {
	UnknownReference() bool
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	policy    Policy
	logger    Logger
	collector *ErrorCollector
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(policy Policy, logger Logger) *ErrorHandler {
	return &ErrorHandler{
		policy: policy,
		logger: logger,
	}
}

// WithCollector records every handled error in c.
func (h *ErrorHandler) WithCollector(c *ErrorCollector) *ErrorHandler {
	h.collector = c

	return h
}

// Policy returns the active policy.
func (h *ErrorHandler) Policy() Policy {
	return h.policy
}

// Handle applies the policy to err.
func (h *ErrorHandler) Handle(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if h.collector != nil {
		h.collector.Add(err)
	}

	if h.suppresses(err) {
		if h.logger != nil {
			h.logger.Warn(ctx, err, "Suppressed error while collecting assets", errorFields(err)...)
		}

		return nil
	}

	if h.logger != nil {
		h.logger.Error(ctx, err, "Error while collecting assets", errorFields(err)...)
	}

	return err
}

func (h *ErrorHandler) suppresses(err error) bool {
	switch h.policy {
	case PolicySuppress:
		return true
	case PolicyIgnoreUnknowns:
		var u unknownReference

		return errors.As(err, &u) && u.UnknownReference()
	default:
		return false
	}
}

func errorFields(err error) []interface{} {
	var te *TemplpackError
	if !errors.As(err, &te) {
		return nil
	}

	fields := []interface{}{"type", te.Type, "code", te.Code}
	if te.FilePath != "" {
		fields = append(fields, "file", te.FilePath)
	}
	if te.Line > 0 {
		fields = append(fields, "line", te.Line)
	}
	keys := make([]string, 0, len(te.Context))
	for k := range te.Context {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fields = append(fields, k, te.Context[k])
	}

	return fields
}
