// Package scan defines the collaborator boundary the worker pool drives:
// an Extractor that turns a file into text and an Analyzer that turns
// text into detected entities. The engine depends only on these
// interfaces; the bundled implementations cover plain-text formats and
// common sensitive-data patterns.
package scan
