// internal/netutil/transport.go

// Package netutil carries the HTTP plumbing shared by outbound API clients:
// a round-tripper that negotiates response compression and transparently
// undoes it, with pooled decompressors to keep allocation pressure down.
package netutil

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

var (
	gzipPool = sync.Pool{
		New: func() any { return new(gzip.Reader) },
	}
	brotliPool = sync.Pool{
		New: func() any { return brotli.NewReader(nil) },
	}
)

// emptyReader detaches pooled readers from their previous stream on put.
// gzip's Reset(nil) tries to read a header, so nil is not safe here.
var emptyReader = strings.NewReader("")

func getGzipReader(r io.Reader) (*gzip.Reader, error) {
	zr := gzipPool.Get().(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		gzipPool.Put(zr)
		return nil, err
	}
	return zr, nil
}

func putGzipReader(zr *gzip.Reader) {
	if zr == nil {
		return
	}
	_ = zr.Reset(emptyReader)
	gzipPool.Put(zr)
}

func getBrotliReader(r io.Reader) (*brotli.Reader, error) {
	br := brotliPool.Get().(*brotli.Reader)
	if err := br.Reset(r); err != nil {
		brotliPool.Put(br)
		return nil, err
	}
	return br, nil
}

func putBrotliReader(br *brotli.Reader) {
	if br == nil {
		return
	}
	_ = br.Reset(emptyReader)
	brotliPool.Put(br)
}

// Transport is an http.RoundTripper that advertises compression support on
// outgoing requests and decompresses response bodies according to their
// Content-Encoding. It handles gzip, brotli, and both zlib-wrapped and raw
// deflate, including layered encodings.
type Transport struct {
	// Base is the underlying round-tripper; nil means http.DefaultTransport.
	Base http.RoundTripper
}

// NewTransport wraps base with transparent response decompression.
func NewTransport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "br, gzip, deflate, identity")
	}

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := DecompressResponse(resp); err != nil {
		// The body may be partially consumed at this point; the response is
		// unusable.
		_ = resp.Body.Close()
		return nil, fmt.Errorf("decompressing response: %w", err)
	}
	return resp, nil
}

// CloseIdleConnections forwards to the base transport so http.Client
// cleanup reaches the real connection pool.
func (t *Transport) CloseIdleConnections() {
	if ci, ok := t.Base.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

// closeWrapper closes the decompression reader and the original body, and
// returns pooled readers through the callback.
type closeWrapper struct {
	io.ReadCloser
	originalBody io.ReadCloser
	poolCallback func()
}

func (w *closeWrapper) Close() error {
	if w.poolCallback != nil {
		w.poolCallback()
		w.poolCallback = nil
	}
	err1 := w.ReadCloser.Close()
	err2 := w.originalBody.Close()
	return errors.Join(err1, err2)
}

// DecompressResponse wraps resp.Body with the decoders its Content-Encoding
// names. Encodings are listed in the order they were applied, possibly
// comma-separated within one header line, and are undone in reverse. On
// success the encoding and length headers are dropped and resp.Uncompressed
// is set; on error the body may be partially consumed and the caller should
// discard the response.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}

	var layers []string
	for _, v := range resp.Header.Values("Content-Encoding") {
		for _, part := range strings.Split(v, ",") {
			layers = append(layers, strings.ToLower(strings.TrimSpace(part)))
		}
	}
	if len(layers) == 0 {
		return nil
	}

	for i := len(layers) - 1; i >= 0; i-- {
		var (
			reader       io.ReadCloser
			poolCallback func()
		)

		switch layers[i] {
		case "gzip":
			zr, err := getGzipReader(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip layer: %w", err)
			}
			reader = zr
			poolCallback = func() { putGzipReader(zr) }

		case "deflate":
			dr, err := tryDeflate(resp.Body)
			if err != nil {
				return fmt.Errorf("deflate layer: %w", err)
			}
			reader = dr

		case "br":
			br, err := getBrotliReader(resp.Body)
			if err != nil {
				return fmt.Errorf("brotli layer: %w", err)
			}
			reader = io.NopCloser(br)
			poolCallback = func() { putBrotliReader(br) }

		case "identity", "":
			continue

		default:
			return fmt.Errorf("unsupported Content-Encoding layer %q", layers[i])
		}

		resp.Body = &closeWrapper{
			ReadCloser:   reader,
			originalBody: resp.Body,
			poolCallback: poolCallback,
		}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// resettableReader buffers what has been read so a failed decode attempt can
// be replayed from the start of the stream.
type resettableReader struct {
	r      io.Reader
	buf    *bytes.Buffer
	source io.Reader
}

func newResettableReader(r io.Reader) *resettableReader {
	buf := bytes.NewBuffer(make([]byte, 0, 128))
	return &resettableReader{
		r:      io.TeeReader(r, buf),
		buf:    buf,
		source: r,
	}
}

func (rr *resettableReader) Read(p []byte) (int, error) {
	return rr.r.Read(p)
}

func (rr *resettableReader) reset() {
	rr.r = io.MultiReader(bytes.NewReader(rr.buf.Bytes()), rr.source)
}

// tryDeflate decodes as zlib first (RFC 1950), then falls back to a raw
// deflate stream (RFC 1951) for servers that send deflate without the zlib
// wrapper.
func tryDeflate(r io.Reader) (io.ReadCloser, error) {
	rr := newResettableReader(r)

	if zr, err := zlib.NewReader(rr); err == nil {
		return zr, nil
	}

	rr.reset()
	return flate.NewReader(rr), nil
}
