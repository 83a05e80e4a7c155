package stream

import (
	"errors"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// DefaultField is the field carried by Ollama generate chunks.
const DefaultField = "response"

// ErrClosed is returned by Feed after Close.
var ErrClosed = errors.New("stream: extractor closed")

// State is the lifecycle state of an Extractor.
type State int

const (
	Open State = iota
	Closed
)

func (s State) String() string {
	if s == Closed {
		return "closed"
	}
	return "open"
}

type sink int

const (
	sinkNone sink = iota
	sinkKey
	sinkValue
)

// Extractor accumulates the value of one top-level string field across a
// stream of JSON objects. It is not safe for concurrent use.
type Extractor struct {
	field string
	state State

	// container stack; only '{' is pushed at the top level
	stack []byte

	inString  bool
	escape    bool
	inUnicode bool
	hex       []byte
	high      rune // pending high surrogate, 0 when none
	target    sink

	expectKey bool
	valuePos  bool
	key       strings.Builder
	lastKey   string

	pending []byte
	text    strings.Builder
}

// New returns an open Extractor for field. An empty field selects
// DefaultField.
func New(field string) *Extractor {
	if field == "" {
		field = DefaultField
	}
	return &Extractor{field: field}
}

// Field returns the extracted field name.
func (x *Extractor) Field() string { return x.field }

// State reports whether the extractor still accepts chunks.
func (x *Extractor) State() State { return x.state }

// Text returns everything emitted so far.
func (x *Extractor) Text() string { return x.text.String() }

// Feed consumes chunk and returns the newly revealed portion of the field
// value. A multi-byte UTF-8 sequence split across chunks is held back until it
// is complete.
func (x *Extractor) Feed(chunk string) (string, error) {
	if x.state == Closed {
		return "", ErrClosed
	}
	for i := 0; i < len(chunk); i++ {
		x.step(chunk[i])
	}
	delta := x.drain()
	x.text.WriteString(delta)
	return delta, nil
}

// Close marks the stream finished and returns the final text. Bytes of an
// incomplete trailing UTF-8 sequence are replaced with U+FFFD.
func (x *Extractor) Close() string {
	if x.state == Closed {
		return x.text.String()
	}
	x.state = Closed
	if len(x.pending) > 0 {
		x.text.WriteString(strings.ToValidUTF8(string(x.pending), "�"))
		x.pending = nil
	}
	return x.text.String()
}

func (x *Extractor) step(c byte) {
	// A raw newline cannot occur inside a JSON string, so it always ends a
	// line. Dropping whatever the line left open skips a malformed fragment.
	if c == '\n' {
		x.resync()
		return
	}
	if x.inString {
		x.stringByte(c)
		return
	}

	if len(x.stack) == 0 {
		// Outside any object only an opening brace matters.
		if c == '{' {
			x.stack = append(x.stack, '{')
			x.expectKey = true
			x.valuePos = false
			x.lastKey = ""
		}
		return
	}

	top := len(x.stack) == 1
	switch c {
	case '"':
		x.inString = true
		x.target = sinkNone
		switch {
		case top && x.expectKey:
			x.target = sinkKey
			x.key.Reset()
			x.expectKey = false
		case top && x.valuePos:
			if x.lastKey == x.field {
				x.target = sinkValue
			}
			x.valuePos = false
		}
	case '{', '[':
		if top {
			x.valuePos = false
		}
		x.stack = append(x.stack, c)
	case '}', ']':
		x.stack = x.stack[:len(x.stack)-1]
		if len(x.stack) == 0 {
			x.expectKey = false
			x.valuePos = false
			x.lastKey = ""
		}
	case ':':
		if top {
			x.valuePos = true
		}
	case ',':
		if top {
			x.expectKey = true
			x.valuePos = false
			x.lastKey = ""
		}
	}
}

// resync returns the tokenizer to the top level between objects. Value bytes
// already emitted are kept.
func (x *Extractor) resync() {
	x.flushHigh()
	x.stack = x.stack[:0]
	x.inString = false
	x.escape = false
	x.inUnicode = false
	x.hex = x.hex[:0]
	x.target = sinkNone
	x.expectKey = false
	x.valuePos = false
	x.key.Reset()
	x.lastKey = ""
}

func (x *Extractor) stringByte(c byte) {
	if x.inUnicode {
		if isHex(c) {
			x.hex = append(x.hex, c)
			if len(x.hex) == 4 {
				x.inUnicode = false
				x.unicodeEscape(parseHex(x.hex))
				x.hex = x.hex[:0]
			}
			return
		}
		// Malformed \u escape: pass it through and reprocess c.
		x.inUnicode = false
		x.writeString(`\u` + string(x.hex))
		x.hex = x.hex[:0]
		x.stringByte(c)
		return
	}

	if x.escape {
		x.escape = false
		switch c {
		case 'n':
			x.writeByte('\n')
		case 't':
			x.writeByte('\t')
		case 'r':
			x.writeByte('\r')
		case 'b':
			x.writeByte('\b')
		case 'f':
			x.writeByte('\f')
		case '"', '\\', '/':
			x.writeByte(c)
		case 'u':
			x.inUnicode = true
		default:
			x.writeByte('\\')
			x.writeByte(c)
		}
		return
	}

	switch c {
	case '\\':
		x.escape = true
	case '"':
		x.flushHigh()
		x.inString = false
		if x.target == sinkKey {
			x.lastKey = x.key.String()
		}
		x.target = sinkNone
	default:
		x.writeByte(c)
	}
}

func (x *Extractor) unicodeEscape(r rune) {
	switch {
	case utf16.IsSurrogate(r) && r < 0xDC00:
		x.flushHigh()
		x.high = r
	case utf16.IsSurrogate(r):
		if x.high != 0 {
			x.writeRune(utf16.DecodeRune(x.high, r), false)
			x.high = 0
			return
		}
		x.writeRune(utf8.RuneError, true)
	default:
		x.writeRune(r, true)
	}
}

// flushHigh emits an unpaired high surrogate as U+FFFD.
func (x *Extractor) flushHigh() {
	if x.high != 0 {
		x.high = 0
		x.emit(string(utf8.RuneError))
	}
}

func (x *Extractor) writeRune(r rune, flush bool) {
	if flush {
		x.flushHigh()
	}
	x.emit(string(r))
}

func (x *Extractor) writeByte(c byte) {
	x.flushHigh()
	x.emit(string([]byte{c}))
}

func (x *Extractor) writeString(s string) {
	x.flushHigh()
	x.emit(s)
}

func (x *Extractor) emit(s string) {
	switch x.target {
	case sinkKey:
		x.key.WriteString(s)
	case sinkValue:
		x.pending = append(x.pending, s...)
	}
}

// drain returns the pending bytes up to the last complete rune.
func (x *Extractor) drain() string {
	n := len(x.pending)
	if n == 0 {
		return ""
	}
	cut := n
	for i := n - 1; i >= 0 && i >= n-utf8.UTFMax; i-- {
		if utf8.RuneStart(x.pending[i]) {
			if !utf8.FullRune(x.pending[i:]) {
				cut = i
			}
			break
		}
	}
	out := string(x.pending[:cut])
	x.pending = append(x.pending[:0], x.pending[cut:]...)
	return out
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func parseHex(h []byte) rune {
	var r rune
	for _, c := range h {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c-'a') + 10
		default:
			r |= rune(c-'A') + 10
		}
	}
	return r
}
