package errors

import (
	"errors"
	"net/http"
)

// Kind classifies failures so the HTTP layer can map them without string matching.
type Kind int

const (
	// KindInternal is any failure that was not classified.
	KindInternal Kind = iota
	// KindValidation is malformed client input.
	KindValidation
	// KindConflict is a uniqueness violation, e.g. a duplicate email.
	KindConflict
	// KindAuthentication is a credential check failure.
	KindAuthentication
	// KindToken is an invalid, tampered or expired session token.
	KindToken
	// KindHashing is a password hashing failure.
	KindHashing
	// KindStore is a credential store failure.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindToken:
		return "token"
	case KindHashing:
		return "hashing"
	case KindStore:
		return "store"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message is the internal description; it is only
// returned to clients for kinds whose public text is safe.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a classified error.
func E(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Validation, Conflict, Authentication, Token, Hashing and Store are shorthands for E.
func Validation(op, message string) *Error { return E(KindValidation, op, message, nil) }

func Conflict(op, message string) *Error { return E(KindConflict, op, message, nil) }

func Authentication(op, reason string) *Error { return E(KindAuthentication, op, reason, nil) }

func Token(op, reason string, err error) *Error { return E(KindToken, op, reason, err) }

func Hashing(op string, err error) *Error { return E(KindHashing, op, "hash password", err) }

func Store(op string, err error) *Error { return E(KindStore, op, "credential store", err) }

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Public messages. Authentication failures share one text regardless of cause.
const (
	MsgInvalidCredentials = "invalid credentials"
	MsgUserExists         = "user already exists"
	MsgUnauthorized       = "unauthorized"
	MsgValidationFailed   = "validation failed"
	MsgInternal           = "internal server error"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Code    string       `json:"code"`
	Details []FieldError `json:"details,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps classified errors to HTTP errors. Infrastructure kinds never
// expose their internal message.
func MapErrorToHTTP(err error) *HTTPError {
	switch kind := KindOf(err); kind {
	case KindValidation:
		return NewHTTPError(http.StatusBadRequest, MsgValidationFailed, "VALIDATION_FAILED")
	case KindConflict:
		return NewHTTPError(http.StatusConflict, MsgUserExists, "USER_ALREADY_EXISTS")
	case KindAuthentication:
		return NewHTTPError(http.StatusUnauthorized, MsgInvalidCredentials, "INVALID_CREDENTIALS")
	case KindToken:
		return NewHTTPError(http.StatusUnauthorized, MsgUnauthorized, "UNAUTHORIZED")
	case KindHashing, KindStore, KindInternal:
		return NewHTTPError(http.StatusInternalServerError, MsgInternal, "INTERNAL_ERROR")
	default:
		panic("errors: unmapped kind " + kind.String())
	}
}
