package traffic

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// MaxDecodedSize caps what one response body may expand to. GraphQL pages
// are a few hundred KiB; anything near this is not a page of posts.
const MaxDecodedSize = 64 << 20

// ErrBodyTooLarge is returned for a body that decodes past the size cap
var ErrBodyTooLarge = errors.New("decoded body exceeds size limit")

// Decode reverses a Content-Encoding header value, capped at MaxDecodedSize
func Decode(body []byte, encoding string) ([]byte, error) {
	return DecodeLimit(body, encoding, MaxDecodedSize)
}

// DecodeLimit reverses a Content-Encoding header value. Multiple codings are
// undone in reverse order of application; no stage may produce more than
// limit bytes.
func DecodeLimit(body []byte, encoding string, limit int64) ([]byte, error) {
	codings := strings.Split(encoding, ",")
	out := body
	for i := len(codings) - 1; i >= 0; i-- {
		var err error
		out, err = decodeOne(out, strings.ToLower(strings.TrimSpace(codings[i])), limit)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeOne(body []byte, coding string, limit int64) ([]byte, error) {
	switch coding {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer r.Close()
		return readAll(r, "gzip", limit)
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw.
		if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer r.Close()
			return readAll(r, "deflate", limit)
		}
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		return readAll(r, "deflate", limit)
	case "br":
		return readAll(brotli.NewReader(bytes.NewReader(body)), "br", limit)
	case "zstd":
		d, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer d.Close()
		out, err := d.DecodeAll(body, nil)
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
			return nil, fmt.Errorf("zstd: %w", ErrBodyTooLarge)
		}
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if int64(len(out)) > limit {
			return nil, fmt.Errorf("zstd: %w", ErrBodyTooLarge)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", coding)
	}
}

func readAll(r io.Reader, name string, limit int64) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%s: %w", name, ErrBodyTooLarge)
	}
	return out, nil
}
