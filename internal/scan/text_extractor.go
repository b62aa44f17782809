package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// TextExtractor reads plain-text formats straight off disk. Anything
// outside its extension allow-list is an unsupported format, and files
// above MaxFileBytes or containing invalid UTF-8 are treated as corrupt.
type TextExtractor struct {
	// MaxFileBytes caps how much of a file is read. Zero means no cap.
	MaxFileBytes int64

	extensions map[string]struct{}
}

// NewTextExtractor builds an extractor for the given extensions
// (".txt", ".csv", ...). Extensions are matched case-insensitively.
func NewTextExtractor(maxFileBytes int64, extensions []string) *TextExtractor {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &TextExtractor{MaxFileBytes: maxFileBytes, extensions: allowed}
}

// Supports reports whether the extractor handles the file's extension.
func (x *TextExtractor) Supports(path string) bool {
	_, ok := x.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (x *TextExtractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ExtractionError{Kind: FailureTimeout, Path: path, Err: err}
	}
	if !x.Supports(path) {
		return "", &ExtractionError{
			Kind: FailureUnsupportedFormat,
			Path: path,
			Err:  fmt.Errorf("extension %q not handled", filepath.Ext(path)),
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", &ExtractionError{Kind: FailureCorruptFile, Path: path, Err: err}
	}
	defer f.Close()

	if x.MaxFileBytes > 0 {
		info, err := f.Stat()
		if err != nil {
			return "", &ExtractionError{Kind: FailureCorruptFile, Path: path, Err: err}
		}
		if info.Size() > x.MaxFileBytes {
			return "", &ExtractionError{
				Kind: FailureCorruptFile,
				Path: path,
				Err:  fmt.Errorf("file size %d exceeds limit %d", info.Size(), x.MaxFileBytes),
			}
		}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		kind := FailureCorruptFile
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = FailureTimeout
		}
		return "", &ExtractionError{Kind: kind, Path: path, Err: err}
	}
	if !utf8.Valid(data) {
		return "", &ExtractionError{
			Kind: FailureCorruptFile,
			Path: path,
			Err:  errors.New("content is not valid UTF-8"),
		}
	}
	return string(data), nil
}
