package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	bufra "github.com/avvmoto/buf-readerat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_remote_info(t *testing.T) {
	wordlist := strings.Repeat("/api/v1/users\n", 100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "routes.txt", time.Time{}, strings.NewReader(wordlist))
	}))
	defer server.Close()

	info, err := remote_info(server.Client(), server.URL+"/routes.txt")
	require.Nil(t, err)
	assert.Equal(t, int64(len(wordlist)), info.Size)
	assert.Equal(t, "text/plain; charset=utf-8", info.ContentType)
	assert.Equal(t, "text/plain; charset=utf-8", info.Sniffed)
	assert.Equal(t, "", info.Archive)
}

// an `io.ReaderAt` that counts the reads made of it.
type counting_readerat struct {
	r         io.ReaderAt
	num_reads int
}

func (x *counting_readerat) ReadAt(p []byte, off int64) (int, error) {
	x.num_reads += 1
	return x.r.ReadAt(p, off)
}

// a minimal tar header, "ustar" at its magic offset.
func tar_bytes() []byte {
	data := make([]byte, 1024)
	copy(data, "swagger.json")
	copy(data[TAR_MAGIC_OFFSET:], TAR_MAGIC)
	return data
}

func Test_sniff(t *testing.T) {
	data := tar_bytes()
	counter := &counting_readerat{r: bytes.NewReader(data)}

	archive, content_type, err := sniff(bufra.NewBufReaderAt(counter, SNIFF_LEN), int64(len(data)))
	require.Nil(t, err)
	assert.Equal(t, "tar", archive)
	assert.Equal(t, "application/octet-stream", content_type)

	// every read after the first is served from the buffer
	assert.Equal(t, 1, counter.num_reads)

	// without a buffer each read goes to the source
	counter = &counting_readerat{r: bytes.NewReader(data)}
	_, _, err = sniff(counter, int64(len(data)))
	require.Nil(t, err)
	assert.Equal(t, 3, counter.num_reads)
}

func Test_sniff__gzip(t *testing.T) {
	data := append([]byte{0x1f, 0x8b, 0x08, 0x00}, make([]byte, 60)...)
	archive, content_type, err := sniff(bytes.NewReader(data), int64(len(data)))
	require.Nil(t, err)
	assert.Equal(t, "gzip", archive)
	assert.Equal(t, "application/x-gzip", content_type)
}

func Test_sniff__short_file(t *testing.T) {
	data := []byte("/api/v1/users\n")
	counter := &counting_readerat{r: bytes.NewReader(data)}

	archive, content_type, err := sniff(bufra.NewBufReaderAt(counter, SNIFF_LEN), int64(len(data)))
	require.Nil(t, err)
	assert.Equal(t, "", archive)
	assert.Equal(t, "text/plain; charset=utf-8", content_type)
	assert.Equal(t, 1, counter.num_reads)
}

func Test_remote_info__tar(t *testing.T) {
	data := tar_bytes()
	var num_range_requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			num_range_requests.Add(1)
		}
		http.ServeContent(w, r, "swagger-files.tar", time.Time{}, bytes.NewReader(data))
	}))
	defer server.Close()

	info, err := remote_info(server.Client(), server.URL+"/swagger-files.tar")
	require.Nil(t, err)
	assert.Equal(t, int64(len(data)), info.Size)
	assert.Equal(t, "tar", info.Archive)

	// one request to learn the size, one to fill the buffer
	assert.Equal(t, int32(2), num_range_requests.Load())
}

func Test_remote_info__missing(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := remote_info(server.Client(), server.URL+"/routes.txt")
	assert.NotNil(t, err)
}
