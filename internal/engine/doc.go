// Package engine drives job processing: a pool of workers claims file
// batches from the store, runs each file through extraction and
// analysis, and records the outcome. A background reclaimer returns
// stale claims to the queue so a crashed run never strands work.
package engine
