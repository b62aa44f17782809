// Package discovery walks a directory tree, filters files by
// extension, and registers matches with the store in batches.
// Registration is idempotent, so re-running discovery over a tree that
// is already enrolled inserts nothing new.
package discovery
