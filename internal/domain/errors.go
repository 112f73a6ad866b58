package domain

import "errors"

// Typed failures surfaced to callers. None of them is retried automatically:
// a blind retry of an order submission risks duplicate execution, so retry is
// always an explicit second call by the caller.
var (
	// ErrInvalidOrder means an order precondition was violated before any
	// engine or ledger was touched.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrTransportUnavailable means there is no connection to forward a
	// live request over. Calls fail fast rather than queue.
	ErrTransportUnavailable = errors.New("broker transport unavailable")

	// ErrRequestTimeout means no response arrived within the request
	// deadline. The request is not retracted at the venue.
	ErrRequestTimeout = errors.New("broker request timeout")

	// ErrRemoteRejected means the venue returned an explicit error.
	ErrRemoteRejected = errors.New("rejected by venue")

	// ErrUnknownOrExpiredToken means a confirmation token was missing,
	// expired, or already consumed.
	ErrUnknownOrExpiredToken = errors.New("unknown or expired confirmation token")
)
