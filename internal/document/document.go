// Package document loads the plain text that reviewers annotate.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxBytes bounds documents read without an explicit limit.
const DefaultMaxBytes = 1 << 20

var (
	// ErrUnsupportedFormat is returned for binary or rich-text input.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrTooLarge is returned when the input exceeds the size limit.
	ErrTooLarge = errors.New("document too large")
	// ErrEmpty is returned when the document has no non-whitespace text.
	ErrEmpty = errors.New("document is empty")
)

// Document is a base text plus the name it was loaded from.
type Document struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

var binaryExt = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".odt": true, ".rtf": true,
	".pages": true, ".epub": true, ".zip": true, ".png": true, ".jpg": true,
}

// Load reads the document at path. "-" reads standard input.
func Load(path string, maxBytes int64) (Document, error) {
	if path == "-" || path == "" {
		return Read(os.Stdin, "stdin", maxBytes)
	}
	if binaryExt[strings.ToLower(filepath.Ext(path))] {
		return Document{}, fmt.Errorf("%s: %w: convert it to plain text first", path, ErrUnsupportedFormat)
	}
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path), maxBytes)
}

// Read decodes r as UTF-8, or as UTF-16 when a byte order mark is present.
// A leading UTF-8 BOM is dropped and line endings are normalized to \n.
func Read(r io.Reader, name string, maxBytes int64) (Document, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	raw, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("reading document: %w", err)
	}
	if int64(len(raw)) > maxBytes {
		return Document{}, fmt.Errorf("%s: %w (limit %d bytes)", name, ErrTooLarge, maxBytes)
	}

	text, err := decode(raw)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", name, err)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return Document{}, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	return Document{Name: name, Text: text}, nil
}

func decode(raw []byte) (string, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}), bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		out, _, err := transform.Bytes(dec, raw)
		if err != nil {
			return "", fmt.Errorf("decoding UTF-16: %w", err)
		}
		return string(out), nil
	case bytes.HasPrefix(raw, []byte("%PDF-")), bytes.HasPrefix(raw, []byte("PK\x03\x04")), bytes.HasPrefix(raw, []byte("{\\rtf")):
		return "", ErrUnsupportedFormat
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if bytes.IndexByte(raw, 0) >= 0 || !utf8.Valid(raw) {
		return "", ErrUnsupportedFormat
	}
	return string(raw), nil
}
