package stream

import (
	"context"
	"errors"
	"io"
)

const readBufSize = 4 << 10

// Pump reads r until EOF, feeding every read into x and passing each
// non-empty delta to onDelta. It closes x and returns the final text. A
// cancelled ctx stops the pump between reads; the partial text is discarded
// by returning ctx.Err().
func Pump(ctx context.Context, r io.Reader, x *Extractor, onDelta func(string)) (string, error) {
	buf := make([]byte, readBufSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := r.Read(buf)
		if n > 0 {
			delta, ferr := x.Feed(string(buf[:n]))
			if ferr != nil {
				return "", ferr
			}
			if delta != "" && onDelta != nil {
				onDelta(delta)
			}
		}
		if errors.Is(err, io.EOF) {
			return x.Close(), nil
		}
		if err != nil {
			return "", err
		}
	}
}
