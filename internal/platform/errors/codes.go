// Package errors provides structured domain errors with stable codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// Identifier errors
	CodeInvalidIdentifier        Code = "INVALID_IDENTIFIER"
	CodeIdentifierSpaceExhausted Code = "IDENTIFIER_SPACE_EXHAUSTED"

	// Layout errors
	CodeInsufficientIdentifiers Code = "INSUFFICIENT_IDENTIFIERS"
	CodeExcessIdentifiers       Code = "EXCESS_IDENTIFIERS"
	CodeInvalidGeometry         Code = "INVALID_GEOMETRY"
	CodeEncoderFailure          Code = "ENCODER_FAILURE"

	// Binding errors
	CodeRedirectTargetMissing Code = "REDIRECT_TARGET_MISSING"
	CodeCredentialMissing     Code = "CREDENTIAL_MISSING"
	CodeCredentialInvalid     Code = "CREDENTIAL_INVALID"
)

var userMessages = map[Code]string{
	CodeNotFound:                 "Not found",
	CodeAlreadyExists:            "Already exists",
	CodeInvalidIdentifier:        "Invalid identifier",
	CodeIdentifierSpaceExhausted: "Could not allocate unique QR codes, try again",
	CodeInsufficientIdentifiers:  "Sheet does not hold enough QR codes for this layout",
	CodeExcessIdentifiers:        "Sheet holds more QR codes than this layout fits",
	CodeInvalidGeometry:          "Sheet layout is misconfigured",
	CodeEncoderFailure:           "Could not encode QR code",
	CodeRedirectTargetMissing:    "No redirect URL provided",
	CodeCredentialMissing:        "No password provided",
	CodeCredentialInvalid:        "Incorrect password",
}

// UserMessage returns the text shown to people for this code.
func (c Code) UserMessage() string {
	if message, ok := userMessages[c]; ok {
		return message
	}
	return "Something went wrong"
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeInvalidIdentifier,
		CodeRedirectTargetMissing,
		CodeCredentialMissing:
		return http.StatusBadRequest

	// Unauthorized - the shared secret did not match
	case CodeCredentialInvalid:
		return http.StatusUnauthorized

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - unique resource constraint
	case CodeAlreadyExists:
		return http.StatusConflict

	// ServiceUnavailable - retrying later may succeed
	case CodeIdentifierSpaceExhausted:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
