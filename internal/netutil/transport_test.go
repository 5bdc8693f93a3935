// internal/netutil/transport_test.go
package netutil

import (
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = "the quick brown fox jumps over the lazy dog"

func fetch(t *testing.T, url string) *http.Response {
	t.Helper()
	client := &http.Client{Transport: NewTransport(nil)}
	resp, err := client.Get(url)
	require.NoError(t, err)
	return resp
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestTransportGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		_, _ = zw.Write([]byte(payload))
		_ = zw.Close()
	}))
	defer srv.Close()

	// Two requests in a row exercise the reader pool round trip.
	for i := 0; i < 2; i++ {
		resp := fetch(t, srv.URL)
		assert.Equal(t, payload, readAll(t, resp))
		assert.True(t, resp.Uncompressed)
		assert.Empty(t, resp.Header.Get("Content-Encoding"))
		assert.Equal(t, int64(-1), resp.ContentLength)
	}
}

func TestTransportBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte(payload))
		_ = bw.Close()
	}))
	defer srv.Close()

	resp := fetch(t, srv.URL)
	assert.Equal(t, payload, readAll(t, resp))
}

func TestTransportDeflate(t *testing.T) {
	t.Run("zlib wrapped", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "deflate")
			zw := zlib.NewWriter(w)
			_, _ = zw.Write([]byte(payload))
			_ = zw.Close()
		}))
		defer srv.Close()

		resp := fetch(t, srv.URL)
		assert.Equal(t, payload, readAll(t, resp))
	})

	t.Run("raw stream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "deflate")
			fw, err := flate.NewWriter(w, flate.DefaultCompression)
			require.NoError(t, err)
			_, _ = fw.Write([]byte(payload))
			_ = fw.Close()
		}))
		defer srv.Close()

		resp := fetch(t, srv.URL)
		assert.Equal(t, payload, readAll(t, resp))
	})
}

func TestTransportLayeredEncodings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// deflate applied first, then gzip over it.
		w.Header().Add("Content-Encoding", "deflate")
		w.Header().Add("Content-Encoding", "gzip")
		gw := gzip.NewWriter(w)
		zw := zlib.NewWriter(gw)
		_, _ = zw.Write([]byte(payload))
		_ = zw.Close()
		_ = gw.Close()
	}))
	defer srv.Close()

	resp := fetch(t, srv.URL)
	assert.Equal(t, payload, readAll(t, resp))
}

func TestTransportCommaSeparatedEncodings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "deflate, gzip")
		gw := gzip.NewWriter(w)
		zw := zlib.NewWriter(gw)
		_, _ = zw.Write([]byte(payload))
		_ = zw.Close()
		_ = gw.Close()
	}))
	defer srv.Close()

	resp := fetch(t, srv.URL)
	assert.Equal(t, payload, readAll(t, resp))
}

func TestTransportIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "identity")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	resp := fetch(t, srv.URL)
	assert.Equal(t, payload, readAll(t, resp))
}

func TestTransportUnsupportedEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "zstd")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(nil)}
	resp, err := client.Get(srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported Content-Encoding")
	if resp != nil {
		_ = resp.Body.Close()
	}
}

func TestTransportKeepsCallerAcceptEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("Accept-Encoding")))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	client := &http.Client{Transport: NewTransport(nil)}
	resp, err := client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "gzip", readAll(t, resp))
}

func TestDecompressResponseNoEncoding(t *testing.T) {
	resp := &http.Response{
		Header: http.Header{},
		Body:   http.NoBody,
	}
	require.NoError(t, DecompressResponse(resp))
	assert.False(t, resp.Uncompressed)

	require.NoError(t, DecompressResponse(nil))
}
