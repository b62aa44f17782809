package scan

import (
	"context"
	"fmt"
)

// Entity is one detected item within extracted text.
type Entity struct {
	Type  string
	Text  string
	Start int
	End   int
	Score float64
}

// Extractor turns a file into analyzable text. Implementations own
// their call-level timeouts and must surface a bounded failure rather
// than blocking indefinitely.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Analyzer detects entities within extracted text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) ([]Entity, error)
}

// FailureKind classifies extraction failures for error reporting.
type FailureKind string

const (
	FailureUnsupportedFormat FailureKind = "unsupported_format"
	FailureCorruptFile       FailureKind = "corrupt_file"
	FailureTimeout           FailureKind = "extraction_timeout"
)

// ExtractionError is a typed per-file extraction failure. It is recorded
// on the file row and never aborts the worker loop.
type ExtractionError struct {
	Kind FailureKind
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
