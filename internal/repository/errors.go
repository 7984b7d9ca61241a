package repository

import "errors"

// ErrNotFound is returned when a thread that must exist (e.g. on delete) is
// missing. The service layer translates it into app_errors.ErrNotFound so
// callers never depend on a storage backend's own not-found error.
var ErrNotFound = errors.New("repository: not found")
