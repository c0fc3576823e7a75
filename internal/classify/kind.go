// Package classify maps connector failures onto a fixed error taxonomy and
// computes retry delays. Everything here is a pure function of its inputs.
package classify

import "net/http"

// Kind is an error kind from the fixed taxonomy
type Kind string

const (
	KindValidation  Kind = "VALIDATION_ERROR"
	KindAuth        Kind = "AUTH_ERROR"
	KindTransport   Kind = "TRANSPORT_ERROR"
	KindTimeout     Kind = "TIMEOUT"
	KindRateLimit   Kind = "RATE_LIMIT"
	KindPayerReject Kind = "PAYER_REJECT"
	KindDuplicate   Kind = "DUPLICATE"
	KindUnknown     Kind = "UNKNOWN"
)

// Kinds lists every kind in the taxonomy
var Kinds = []Kind{
	KindValidation,
	KindAuth,
	KindTransport,
	KindTimeout,
	KindRateLimit,
	KindPayerReject,
	KindDuplicate,
	KindUnknown,
}

// Classify maps an HTTP status code to an error kind. The body is accepted
// for callers that have it but does not influence the kind.
func Classify(statusCode int, _ []byte) Kind {
	switch {
	case statusCode == http.StatusBadRequest:
		return KindValidation
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusConflict:
		return KindDuplicate
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case statusCode >= 400 && statusCode < 500:
		return KindPayerReject
	case statusCode >= 500 && statusCode < 600:
		return KindTransport
	default:
		return KindUnknown
	}
}

// IsRetriable reports whether repeating the operation can succeed.
// A malformed submission, a duplicate or a payer rejection never will.
func IsRetriable(kind Kind) bool {
	switch kind {
	case KindTransport, KindTimeout, KindRateLimit:
		return true
	default:
		return false
	}
}
