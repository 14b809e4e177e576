// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrIDGeneratorFailed          = errors.New("id generation failed")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrUnsupportedChallengeMethod = errors.New("unsupported PKCE challenge method")
	ErrAuthorizationPending       = errors.New("authorization already pending")
	ErrResponseStateInvalid       = errors.New("authorization response state")
	ErrNoResponse                 = errors.New("no authorization response")
	ErrFrameTimeout               = errors.New("non-interactive frame timed out")
	ErrTokenRequest               = errors.New("token request failed")
)

// Error codes reported by the Authorizer itself. Codes returned by an
// authorization server are reported as they were received.
const (
	CodeNoState      = "no_state"
	CodeInvalidState = "invalid_state"
	CodeNoCode       = "no_code"
	CodeNoResponse   = "no_response"
	CodeFrameLoad    = "iframe_load_error"
	CodePopupBlocked = "popup_blocked"
	CodeRequestError = "request_error"
)

// errorMessages maps the OAuth 2.0 and OpenID Connect error codes to
// readable messages.
var errorMessages = map[string]string{
	"interaction_required":       "The request requires user interaction.",
	"login_required":             "The request requires user authentication.",
	"account_selection_required": "The user is required to select a session at the authorization server.",
	"consent_required":           "The user consent is required.",
	"invalid_request_uri":        "The request_uri in the authorization request returns an error or contains invalid data.",
	"invalid_request_object":     "The request parameter contains an invalid request object.",
	"request_not_supported":      "The provider does not support use of the request parameter.",
	"request_uri_not_supported":  "The provider does not support use of the request_uri parameter.",
	"registration_not_supported": "The provider does not support use of the registration parameter.",
	"invalid_request":            "The request is missing a required parameter, includes an invalid parameter value, includes a parameter more than once, or is otherwise malformed.",
	"invalid_client":             "Client authentication failed.",
	"invalid_grant":              "The provided authorization grant or refresh token is invalid, expired, revoked, does not match the redirection URI used in the authorization request, or was issued to another client.",
	"unauthorized_client":        "The authenticated client is not authorized to use this authorization grant type.",
	"unsupported_grant_type":     "The authorization grant type is not supported by the authorization server.",
	"invalid_scope":              "The requested scope is invalid, unknown, or malformed.",
	"access_denied":              "The resource owner or authorization server denied the request.",
	"unsupported_response_type":  "The authorization server does not support obtaining an authorization code using this method.",
	"server_error":               "The authorization server encountered an unexpected condition that prevented it from fulfilling the request.",
	"temporarily_unavailable":    "The authorization server is currently unable to handle the request due to a temporary overloading or maintenance of the server.",
}

// ErrorMessage returns the readable message for a server reported error
// code. The description is used for unknown codes and "Unknown error" when
// there's neither.
func ErrorMessage(code, description string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	if description != "" {
		return description
	}
	return "Unknown error"
}

// AuthorizationError is returned for failures of an authorization attempt.
// State is the Authorizer's state and Interactive reports whether the flow
// which failed used an interactive window.
type AuthorizationError struct {
	Message     string
	Code        string
	State       string
	Interactive bool

	// Wrapped is the underlying error, when there is one.
	Wrapped error
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AuthorizationError) Unwrap() error { return e.Wrapped }

// CodeExchangeError is returned by a TokenClient for failed token requests.
// An Authorizer reports it wrapped by an AuthorizationError.
type CodeExchangeError struct {
	Message string
	Code    string

	// Wrapped is the underlying error, when there is one.
	Wrapped error
}

// Error implements the error interface.
func (e *CodeExchangeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *CodeExchangeError) Unwrap() error { return e.Wrapped }

// newRequestError is a CodeExchangeError of the request_error class.
func newRequestError(msg string, wrapped error) *CodeExchangeError {
	if wrapped == nil {
		wrapped = ErrTokenRequest
	} else {
		wrapped = fmt.Errorf("%w: %w", ErrTokenRequest, wrapped)
	}
	return &CodeExchangeError{
		Message: msg,
		Code:    CodeRequestError,
		Wrapped: wrapped,
	}
}
