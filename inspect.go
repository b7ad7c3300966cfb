package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	bufra "github.com/avvmoto/buf-readerat"
	"github.com/snabb/httpreaderat"
)

// how many leading bytes of a remote file are needed to guess its type.
const SNIFF_LEN = 512

// what can be learned about a remote file without downloading all of it.
type RemoteInfo struct {
	URL         string
	Size        int64
	ContentType string // as reported by the server
	Sniffed     string // as guessed from the first few bytes
	Archive     string // "gzip", "tar" or empty
}

var GZIP_MAGIC = []byte{0x1f, 0x8b}

// tar headers carry "ustar" at this offset.
const TAR_MAGIC_OFFSET = 257

var TAR_MAGIC = []byte("ustar")

// true if `r` holds `magic` at `off`.
// a read cut short by the end of the file is a miss, not an error.
func has_magic(r io.ReaderAt, off int64, magic []byte) (bool, error) {
	buf := make([]byte, len(magic))
	n, err := r.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return n == len(magic) && bytes.Equal(buf, magic), nil
}

// guesses the archive format and content type of the first `size` bytes of `r`.
// a negative `size` is unknown.
// every read falls within the first SNIFF_LEN bytes so a buffered `r` fills itself once.
func sniff(r io.ReaderAt, size int64) (archive string, content_type string, err error) {
	is_gzip, err := has_magic(r, 0, GZIP_MAGIC)
	if err != nil {
		return "", "", fmt.Errorf("failed to read gzip header: %w", err)
	}
	is_tar, err := has_magic(r, TAR_MAGIC_OFFSET, TAR_MAGIC)
	if err != nil {
		return "", "", fmt.Errorf("failed to read tar header: %w", err)
	}

	switch {
	case is_gzip:
		archive = "gzip"
	case is_tar:
		archive = "tar"
	}

	head_len := int64(SNIFF_LEN)
	if size >= 0 {
		head_len = min(head_len, size)
	}
	head := make([]byte, head_len)
	n, err := r.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", "", fmt.Errorf("failed to read start of file: %w", err)
	}
	return archive, http.DetectContentType(head[:n]), nil
}

// inspects the remote file at `url` using HTTP Range requests,
// returning its size and a guess at its content type.
func remote_info(client *http.Client, url string) (RemoteInfo, error) {
	empty_response := RemoteInfo{}

	req, err := http.NewRequestWithContext(trace_context(), http.MethodGet, url, nil)
	if err != nil {
		return empty_response, fmt.Errorf("failed to create request: %w", err)
	}

	// a 'readerat' is an implementation of the built-in Go interface `io.ReaderAt`,
	// that provides a means to jump around within the bytes of a remote file using
	// HTTP Range requests.
	http_readerat, err := httpreaderat.New(client, req, nil)
	if err != nil {
		return empty_response, fmt.Errorf("failed to create a HTTPReaderAt: %w", err)
	}

	// a 'buffered readerat' remembers the bytes read of a `io.ReaderAt` implementation.
	// the sniff makes several small reads near the start of the file, the first of
	// them fetches SNIFF_LEN bytes and the rest are served from the buffer.
	buffered_http_readerat := bufra.NewBufReaderAt(http_readerat, SNIFF_LEN)

	size := http_readerat.Size()
	archive, sniffed, err := sniff(buffered_http_readerat, size)
	if err != nil {
		return empty_response, fmt.Errorf("failed to sniff remote file: %w", err)
	}

	return RemoteInfo{
		URL:         url,
		Size:        size,
		ContentType: http_readerat.ContentType(),
		Sniffed:     sniffed,
		Archive:     archive,
	}, nil
}

// logs what would be downloaded from `url` to `path` during a dry run.
// failing to inspect the remote file is not an error.
func report_planned_download(state *State, url string, path string) {
	info, err := remote_info(state.Client, url)
	if err != nil {
		slog.Warn("would download file, failed to inspect it", "url", url, "path", path, "error", err)
		return
	}
	slog.Info("would download file", "url", url, "path", path, "size", info.Size, "content-type", info.ContentType, "sniffed", info.Sniffed, "archive", info.Archive)
}
