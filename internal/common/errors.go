package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorKind is the stable, user-facing error taxonomy of a pipeline run.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindUnsupportedFormat  ErrorKind = "UnsupportedFormat"
	KindParseFailure       ErrorKind = "ParseFailure"
	KindLLMCallFailure     ErrorKind = "LLMCallFailure"
	KindOCRFailure         ErrorKind = "OCRFailure"
	KindNoValidRecords     ErrorKind = "NoValidRecords"
	KindValidationRejected ErrorKind = "ValidationRejected"
	KindCanceled           ErrorKind = "Canceled"
	KindInternal           ErrorKind = "Internal"
)

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")

	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrParseFailure       = errors.New("parse failure")
	ErrLLMCallFailure     = errors.New("llm call failure")
	ErrOCRFailure         = errors.New("ocr failure")
	ErrNoValidRecords     = errors.New("no valid records")
	ErrValidationRejected = errors.New("validation rejected")
	ErrStageDisabled      = errors.New("stage disabled")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewKindError builds an AppError whose code is the kind and whose cause chain
// includes the kind's sentinel, so KindOf keeps working after further wrapping.
func NewKindError(kind ErrorKind, message string, cause error) *AppError {
	sentinel := sentinelFor(kind)
	if cause != nil && sentinel != nil && !errors.Is(cause, sentinel) {
		cause = fmt.Errorf("%w: %w", sentinel, cause)
	} else if cause == nil {
		cause = sentinel
	}
	return NewAppError(string(kind), message, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf classifies err into the pipeline taxonomy. An explicit kind wins over a
// context error further down the chain, so a stage timeout wrapped as
// OCRFailure or LLMCallFailure is not reported as Canceled.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrParseFailure):
		return KindParseFailure
	case errors.Is(err, ErrOCRFailure):
		return KindOCRFailure
	case errors.Is(err, ErrNoValidRecords):
		return KindNoValidRecords
	case errors.Is(err, ErrLLMCallFailure):
		return KindLLMCallFailure
	case errors.Is(err, ErrValidationRejected):
		return KindValidationRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		var appErr *AppError
		if errors.As(err, &appErr) && appErr.Code != "" {
			return ErrorKind(appErr.Code)
		}
		return KindInternal
	}
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindUnsupportedFormat:
		return ErrUnsupportedFormat
	case KindParseFailure:
		return ErrParseFailure
	case KindLLMCallFailure:
		return ErrLLMCallFailure
	case KindOCRFailure:
		return ErrOCRFailure
	case KindNoValidRecords:
		return ErrNoValidRecords
	case KindValidationRejected:
		return ErrValidationRejected
	case KindCanceled:
		return context.Canceled
	case KindInternal:
		return ErrInternal
	default:
		return nil
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

// CodeForKind maps a pipeline error kind to the closest gRPC status code.
func CodeForKind(kind ErrorKind) codes.Code {
	switch kind {
	case KindNone:
		return codes.OK
	case KindUnsupportedFormat, KindParseFailure:
		return codes.InvalidArgument
	case KindOCRFailure, KindNoValidRecords, KindValidationRejected:
		return codes.FailedPrecondition
	case KindLLMCallFailure:
		return codes.Unavailable
	case KindCanceled:
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// ToStatus builds the gRPC status reported for a failed pipeline run.
func ToStatus(kind ErrorKind, message string) *status.Status {
	if kind == KindNone {
		kind = KindInternal
	}
	return status.New(CodeForKind(kind), fmt.Sprintf("%s: %s", kind, message))
}
