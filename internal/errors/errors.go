package errors

import "errors"

// Sentinel errors shared by every layer. Services wrap them with %w and the
// API layer maps them to HTTP responses with errors.Is. The chat service also
// maps them to the inline warnings written into a reply stream.

var (
	// ErrNotFound signifies that a requested resource could not be located.
	// This is typically mapped to a 404 Not Found HTTP status.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that input data provided by a client failed
	// validation.
	// This is typically mapped to a 400 Bad Request HTTP status.
	ErrValidation = errors.New("validation failed")

	// ErrConflict signifies that an operation conflicts with the current state
	// of a resource.
	// This is typically mapped to a 409 Conflict HTTP status.
	ErrConflict = errors.New("resource conflict")

	// ErrPermission signifies that the caller is not allowed to perform the
	// requested action.
	// This is typically mapped to a 403 Forbidden HTTP status.
	ErrPermission = errors.New("permission denied")

	// ErrInternal signifies an unexpected error on the server.
	// This is typically mapped to a 500 Internal Server Error HTTP status.
	ErrInternal = errors.New("internal server error")

	// ErrQuotaExhausted signifies that the model provider rejected a request
	// because the account ran out of quota or hit a rate limit (HTTP 429).
	ErrQuotaExhausted = errors.New("model quota exhausted")

	// ErrUpstream signifies that a third-party service (model provider or
	// market data source) answered with a client or server error.
	// This is typically mapped to a 502 Bad Gateway HTTP status.
	ErrUpstream = errors.New("upstream service error")

	// ErrNoData signifies that the market data source had nothing for the
	// requested ticker or period.
	ErrNoData = errors.New("no data available")
)
