// Package snapshot exports a job's per-file outcomes as JSON Lines.
// Records stream page by page from the store so exports of very large
// jobs run in constant memory.
package snapshot
