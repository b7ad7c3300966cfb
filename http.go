package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// a non-2xx response. these are never retried.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unsuccessful response from '%s': %d", e.URL, e.StatusCode)
}

func is_status_error(err error) bool {
	var status_err *HTTPStatusError
	return errors.As(err, &status_err)
}

// a failure to connect, or a connection that broke while the body was being read.
// these are retried.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error with '%s': %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func is_connection_error(err error) bool {
	var conn_err *ConnectionError
	return errors.As(err, &conn_err)
}

// true if `err` looks like a network failure that may not happen again.
// bad requests, unsupported schemes, redirect loops and certificate errors are permanent.
func retryable(err error) bool {
	var url_err *url.Error
	if errors.As(err, &url_err) {
		if url_err.Timeout() {
			return true
		}
		// a `url.Error` is itself a `net.Error`, what it wraps decides.
		err = url_err.Err
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var net_err net.Error
	return errors.As(err, &net_err)
}

func successful(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

type ResponseWrapper struct {
	*http.Response
	Text string
}

// --- caching

// returns a path like "/path/to/cache/dir/711f20df1f76da140218e51445a6fc47"
func cache_path(cache_dir, cache_key string) string {
	return filepath.Join(cache_dir, cache_key)
}

// creates a key that is unique to the given `http.Request` URL (including query parameters),
// hashed to an MD5 string.
// the result can be safely used as a filename.
func make_cache_key(r *http.Request) string {
	// inconsistent case and url params etc will cause cache misses
	key := r.URL.String()
	md5sum := md5.Sum([]byte(key))
	return hex.EncodeToString(md5sum[:])
}

// reads the cached response as if it were the result of `httputil.DumpResponse`,
// a status code, followed by a series of headers, followed by the response body.
func read_cache_entry(cache_dir, cache_key string) (*http.Response, error) {
	blob, err := os.ReadFile(cache_path(cache_dir, cache_key))
	if err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(blob)), nil)
}

// a `http.RoundTripper` that writes successful responses to `Dir`
// and replays them on subsequent requests for the same URL.
type FileCachingRequest struct {
	Dir       string
	Transport http.RoundTripper
}

func (x FileCachingRequest) transport() http.RoundTripper {
	if x.Transport == nil {
		return http.DefaultTransport
	}
	return x.Transport
}

func (x FileCachingRequest) RoundTrip(req *http.Request) (*http.Response, error) {
	cache_key := make_cache_key(req)
	path := cache_path(x.Dir, cache_key)
	cached_resp, err := read_cache_entry(x.Dir, cache_key)
	if err == nil {
		slog.Debug("cache HIT", "url", req.URL, "cache-path", path)
		return cached_resp, nil
	}

	slog.Debug("cache MISS", "url", req.URL, "cache-path", path)

	resp, err := x.transport().RoundTrip(req)
	if err != nil {
		// do not cache error response, pass through
		return resp, err
	}

	if resp.StatusCode != 200 {
		slog.Debug("non-200 response, pass through", "code", resp.StatusCode)
		return resp, nil
	}

	dumped_bytes, err := httputil.DumpResponse(resp, true)
	if err != nil {
		slog.Warn("failed to dump response to bytes", "error", err)
		return resp, nil
	}

	err = os.MkdirAll(x.Dir, 0755)
	if err != nil {
		slog.Warn("failed to create cache directory", "error", err)
		return resp, nil
	}

	err = os.WriteFile(path, dumped_bytes, 0644)
	if err != nil {
		slog.Warn("failed to write all bytes in response to cache file", "error", err)
		return resp, nil
	}

	cached_resp, err = read_cache_entry(x.Dir, cache_key)
	if err != nil {
		slog.Warn("failed to read cache file", "error", err)
		return resp, nil
	}
	resp.Body.Close()
	return cached_resp, nil
}

// --- requests

// client trace to log whether the request's underlying tcp connection was re-used
func trace_context() context.Context {
	client_tracer := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			slog.Debug("HTTP connection reuse", "reused", info.Reused, "remote", info.Conn.RemoteAddr())
		},
	}
	return httptrace.WithClientTrace(context.Background(), client_tracer)
}

func new_client(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// returns a client whose successful responses are cached to `cache_dir`.
func new_caching_client(timeout time.Duration, cache_dir string) *http.Client {
	client := new_client(timeout)
	client.Transport = &FileCachingRequest{Dir: cache_dir}
	return client
}

// fetches `url` and reads the whole body into memory.
// a non-2xx response is returned as a `*HTTPStatusError`.
func download(client *http.Client, url string) (ResponseWrapper, error) {
	slog.Debug("HTTP GET", "url", url)
	empty_response := ResponseWrapper{}

	req, err := http.NewRequestWithContext(trace_context(), http.MethodGet, url, nil)
	if err != nil {
		return empty_response, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return empty_response, fmt.Errorf("failed to fetch '%s': %w", url, err)
	}
	defer resp.Body.Close()

	if !successful(resp) {
		return empty_response, &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	content_bytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty_response, fmt.Errorf("failed to read response body: %w", err)
	}

	return ResponseWrapper{
		Response: resp,
		Text:     string(content_bytes),
	}, nil
}

// partial downloads are written here and only moved to `path` once complete.
func part_path(path string) string {
	return path + ".part"
}

// streams `url` to the file at `path`, creating any missing parent directories.
// nothing is left at `path` if the download fails.
func download_file(client *http.Client, url string, path string) error {
	slog.Debug("HTTP GET", "url", url, "path", path)

	req, err := http.NewRequestWithContext(trace_context(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if retryable(err) {
			return &ConnectionError{URL: url, Err: err}
		}
		return fmt.Errorf("failed to request file: %w", err)
	}
	defer resp.Body.Close()

	if !successful(resp) {
		return &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	err = os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := part_path(path)
	fh, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to open file for writing: %w", err)
	}

	_, err = io.Copy(fh, resp.Body)
	if err != nil {
		fh.Close()
		os.Remove(tmp)
		var path_err *fs.PathError
		if errors.As(err, &path_err) {
			return fmt.Errorf("failed to write file: %w", err)
		}
		if retryable(err) {
			return &ConnectionError{URL: url, Err: err}
		}
		return fmt.Errorf("failed to read response body: %w", err)
	}

	err = fh.Close()
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write file: %w", err)
	}

	err = os.Rename(tmp, path)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move completed download into place: %w", err)
	}
	return nil
}

// waits the configured delay between download attempts.
func wait(state *State) {
	slog.Debug("waiting before next attempt", "delay", state.Config.RetryDelay)
	state.sleep(state.Config.RetryDelay)
}

// downloads `url` to `path`, retrying connection and mid-stream errors.
// unsuccessful responses and local filesystem errors are not retried.
func download_file_with_retries_and_backoff(state *State, url string, path string) error {
	var err error
	num_attempts := state.Config.NumAttempts

	for i := 1; i <= num_attempts; i++ {
		err = download_file(state.Client, url, path)
		if err == nil {
			slog.Info("downloaded file", "path", path)
			return nil
		}

		if !is_connection_error(err) {
			slog.Error("failed to download file", "url", url, "error", err)
			return err
		}

		slog.Warn("connection error", "url", url, "attempt", i, "num-attempts", num_attempts, "error", err)
		if i < num_attempts {
			wait(state)
		}
	}

	slog.Error("failed to download url after a number of attempts", "url", url, "num-attempts", num_attempts)
	return fmt.Errorf("failed to download '%s' after %d attempts: %w", url, num_attempts, err)
}
