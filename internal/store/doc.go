// Package store manages scan state persistence backed by SQLite. It is
// the single source of truth for jobs, files, results, and entities;
// every mutation runs inside a transaction, and the claim primitive is a
// single atomic statement so concurrent workers never double-claim a
// file.
package store
