package store

import "errors"

// ErrNotFound indicates a job or file lookup matched nothing.
var ErrNotFound = errors.New("not found")

// ErrNoJobs indicates the store holds no jobs at all.
var ErrNoJobs = errors.New("no jobs available")

// ErrSchemaMismatch indicates the database schema version doesn't match
// the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrStoreUnavailable indicates the database stayed busy past the retry
// budget. Callers should treat it as fatal to the run.
var ErrStoreUnavailable = errors.New("store unavailable")
