package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds raised by the pipeline components. Wrapped errors keep their kind,
// so callers branch with errors.Is.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrConversion          = errors.New("conversion failure")
	ErrRecognition         = errors.New("recognition failure")
	ErrStorage             = errors.New("storage failure")
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failure")
)

// StageError records where in the pipeline a failure happened.
type StageError struct {
	Kind  error
	Stage string
	Page  int
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(e.Stage)
	if e.Page > 0 {
		fmt.Fprintf(&b, " page %d", e.Page)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	return b.String()
}

func (e *StageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Wrap tags err with kind unless it already carries one of the known kinds.
func Wrap(kind error, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if KindOf(err) != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w", msg, &kindError{kind: kind, err: err})
}

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string   { return e.err.Error() }
func (e *kindError) Unwrap() []error { return []error{e.kind, e.err} }

// KindOf returns the first known error kind carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrUnsupportedFileType,
		ErrConversion,
		ErrRecognition,
		ErrStorage,
		ErrNotFound,
		ErrValidation,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

type AppError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewBadRequestError(message string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{StatusCode: http.StatusForbidden, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Message: message}
}

func NewUnsupportedMediaError(message string) *AppError {
	return &AppError{StatusCode: http.StatusUnsupportedMediaType, Message: message}
}

func NewUnprocessableError(message string) *AppError {
	return &AppError{StatusCode: http.StatusUnprocessableEntity, Message: message}
}

func NewInternalError(message string) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Message: message}
}

// ToAppError maps a component error onto an HTTP facing AppError. Errors that
// are already AppErrors pass through; anything without a kind becomes a 500
// carrying fallback as its message.
func ToAppError(err error, fallback string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var e *AppError
	switch KindOf(err) {
	case ErrUnsupportedFileType:
		e = NewUnsupportedMediaError(err.Error())
	case ErrValidation:
		e = NewBadRequestError(err.Error())
	case ErrNotFound:
		e = NewNotFoundError(err.Error())
	case ErrConversion, ErrRecognition:
		e = NewUnprocessableError(err.Error())
	default:
		e = NewInternalError(fallback)
	}
	e.Err = err
	return e
}
