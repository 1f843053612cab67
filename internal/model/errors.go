package model

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrConfiguration          = errors.New("configuration error")
	ErrNotAuthenticated       = errors.New("not authenticated")
	ErrAuthExchange           = errors.New("authorization code exchange failed")
	ErrAuthRefresh            = errors.New("token refresh failed")
	ErrUnsupportedMarketplace = errors.New("unsupported marketplace")
	ErrNoProgrammaticPublish  = errors.New("marketplace has no programmatic publish path")
	ErrInvalidTransition      = errors.New("invalid listing status transition")
	ErrNotFound               = errors.New("not found")
)

// Error carries an error kind together with the marketplace it concerns
type Error struct {
	Kind        error
	Marketplace MarketplaceID
	Message     string
	Err         error
}

// NewError creates an Error of the given kind
func NewError(kind error, m MarketplaceID, message string, cause error) *Error {
	return &Error{Kind: kind, Marketplace: m, Message: message, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Marketplace != "" {
		msg = fmt.Sprintf("%s: %s", e.Marketplace, msg)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsRetryable returns true for token-lifecycle errors that clear after re-authentication
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrAuthExchange) ||
		errors.Is(err, ErrAuthRefresh)
}
