// Command scour scans directory trees for files containing sensitive
// data and records per-file findings in a resumable SQLite-backed job.
package main
