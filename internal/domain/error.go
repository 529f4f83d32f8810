package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures across the introspection, registration and
// execution paths.
type ErrorCode string

const (
	CodeConnection    ErrorCode = "CONNECTION_ERROR"
	CodeHTTP          ErrorCode = "HTTP_ERROR"
	CodeGraphQL       ErrorCode = "GRAPHQL_ERRORS"
	CodeSchema        ErrorCode = "SCHEMA_ERROR"
	CodeParse         ErrorCode = "PARSE_ERROR"
	CodeRegistration  ErrorCode = "REGISTRATION_ERROR"
	CodeSynthesis     ErrorCode = "SYNTHESIS_WARNING"
	CodeTimeout       ErrorCode = "EXECUTION_TIMEOUT"
	CodeInvalid       ErrorCode = "INVALID_ARGUMENT"
	CodeInternal      ErrorCode = "INTERNAL"
)

type Error struct {
	Code       ErrorCode
	Op         string
	Message    string
	Cause      error
	HTTPStatus int
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:       existing.Code,
			Op:         op,
			Message:    existing.Message,
			Cause:      existing.Cause,
			HTTPStatus: existing.HTTPStatus,
		}
	}
	return E(code, op, "", err)
}

// CodeFrom resolves the error code for any error produced by this module.
func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrEndpointNotFound), errors.Is(err, ErrToolNotFound):
		return CodeRegistration, true
	case errors.Is(err, ErrMutationsDisabled):
		return CodeInvalid, true
	case errors.Is(err, ErrIntrospectionUnsupported), errors.Is(err, ErrEmptySchema):
		return CodeSchema, true
	default:
		return "", false
	}
}
