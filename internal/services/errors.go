package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"storefront/internal/validation"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrSignatureInvalid    = errors.New("webhook signature verification failed")
	ErrForbidden           = errors.New("not authorized to access this order")
	ErrOrderNotPaid        = errors.New("order has not been paid")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidToken        = errors.New("invalid token")
	ErrUserNotFound        = errors.New("user not found")
	ErrCannotDeleteAdmin   = errors.New("cannot delete admin user")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrCategoryExists      = errors.New("category already exists")
)

// ValidationError is returned when a request body is rejected before any side effect.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

// validationFailure converts a validator error into a ValidationError. Other errors
// are returned unchanged.
func validationFailure(err error) error {
	if fields, ok := validation.Messages(err); ok {
		return &ValidationError{Message: "validation failed", Fields: fields}
	}
	return err
}
