// Package validation checks request shapes and reports field-level errors.
package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	apperrors "authapi/internal/errors"
	"authapi/internal/model"
)

// Length bounds for sign-up fields.
const (
	NameMinLength     = 2
	NameMaxLength     = 255
	EmailMaxLength    = 255
	PasswordMinLength = 6
	PasswordMaxLength = 128
)

var validate = validator.New()

// Validatable is a request shape with its own field checks.
type Validatable interface {
	Validate() []apperrors.FieldError
}

// Error carries the field errors of a rejected request.
type Error struct {
	Fields []apperrors.FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return apperrors.MsgValidationFailed + ": " + strings.Join(parts, "; ")
}

// Check runs v's validator and wraps any field errors.
func Check(v Validatable) error {
	if fields := v.Validate(); len(fields) > 0 {
		return &Error{Fields: fields}
	}
	return nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUpRequest is the sign-up body.
type SignUpRequest struct {
	Name     string `json:"name" example:"Ann"`
	Email    string `json:"email" example:"ann@example.com"`
	Password string `json:"password" example:"secret123"`
	Role     string `json:"role,omitempty" example:"user"`
}

// Validate checks name length, email syntax, password length and the role enum.
// It normalizes Name, Email and Role in place.
func (r *SignUpRequest) Validate() []apperrors.FieldError {
	var errs []apperrors.FieldError

	r.Name = strings.TrimSpace(r.Name)
	switch n := utf8.RuneCountInString(r.Name); {
	case n == 0:
		errs = append(errs, required("name"))
	case n < NameMinLength || n > NameMaxLength:
		errs = append(errs, apperrors.FieldError{Field: "name", Message: "must be between 2 and 255 characters"})
	}

	r.Email = NormalizeEmail(r.Email)
	errs = appendEmailErrors(errs, r.Email)

	switch n := len(r.Password); {
	case n == 0:
		errs = append(errs, required("password"))
	case utf8.RuneCountInString(r.Password) < PasswordMinLength:
		errs = append(errs, apperrors.FieldError{Field: "password", Message: "must be at least 6 characters"})
	case utf8.RuneCountInString(r.Password) > PasswordMaxLength:
		errs = append(errs, apperrors.FieldError{Field: "password", Message: "must be at most 128 characters"})
	}

	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	if r.Role == "" {
		r.Role = model.RoleUser
	} else if !model.ValidRole(r.Role) {
		errs = append(errs, apperrors.FieldError{Field: "role", Message: "must be one of: user, admin"})
	}

	return errs
}

// LoginRequest is the login body.
type LoginRequest struct {
	Email    string `json:"email" example:"ann@example.com"`
	Password string `json:"password" example:"secret123"`
}

// Validate checks that both fields are present and the email is well formed.
// Password length is not checked so that rules can tighten without locking
// out existing accounts.
func (r *LoginRequest) Validate() []apperrors.FieldError {
	var errs []apperrors.FieldError

	r.Email = NormalizeEmail(r.Email)
	errs = appendEmailErrors(errs, r.Email)

	if r.Password == "" {
		errs = append(errs, required("password"))
	}
	return errs
}

func appendEmailErrors(errs []apperrors.FieldError, email string) []apperrors.FieldError {
	switch {
	case email == "":
		return append(errs, required("email"))
	case len(email) > EmailMaxLength:
		return append(errs, apperrors.FieldError{Field: "email", Message: "must be at most 255 characters"})
	case validate.Var(email, "email") != nil:
		return append(errs, apperrors.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	return errs
}

func required(field string) apperrors.FieldError {
	return apperrors.FieldError{Field: field, Message: "is required"}
}
