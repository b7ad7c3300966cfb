package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const LISTING_FIXTURE = `<html>
<head><title>Index of /data/automated/</title></head>
<body>
<h1>Index of /data/automated/</h1><hr><pre>
<a href="../">../</a>
<a href="?C=N;O=D">Name</a>
<a href="sub/">sub/</a>
<a href="a.txt">a.txt</a>
<a href="b.tar.gz">b.tar.gz</a>
<a href="c.tar">c.tar</a>
<a href="d.json.tar.gz">d.json.tar.gz</a>
<a href="e.zip">e.zip</a>
<a href="f.txt.bak">f.txt.bak</a>
<a href="/data/automated/g.txt">g.txt</a>
<a href="h.txt?dl=1">h.txt</a>
<a name="anchor">no href</a>
<a href="a.txt">a.txt again</a>
</pre><hr></body>
</html>`

func Test_parse_listing(t *testing.T) {
	file_list, err := parse_listing(strings.NewReader(LISTING_FIXTURE), DEFAULT_EXTENSIONS)
	require.Nil(t, err)

	expected := []string{"a.txt", "b.tar.gz", "c.tar", "d.json.tar.gz", "g.txt", "h.txt", "a.txt"}
	assert.Equal(t, expected, file_list)

	for _, filename := range file_list {
		assert.True(t, has_extension(filename, DEFAULT_EXTENSIONS), filename)
	}
}

func Test_parse_listing__no_links(t *testing.T) {
	file_list, err := parse_listing(strings.NewReader("<html><body>nothing here</body></html>"), DEFAULT_EXTENSIONS)
	require.Nil(t, err)
	assert.Empty(t, file_list)
}

func Test_href_filename(t *testing.T) {
	cases := map[string]string{
		"":                     "",
		"../":                  "",
		"sub/":                 "",
		"#top":                 "",
		"?C=N;O=D":             "",
		"foo.txt":              "foo.txt",
		"  foo.txt ":           "foo.txt",
		"/data/foo.txt":        "foo.txt",
		"../../etc/passwd.txt": "passwd.txt",
		"foo.txt?dl=1#x":       "foo.txt",
		"foo%20bar.txt":        "foo bar.txt",
	}
	for given, expected := range cases {
		assert.Equal(t, expected, href_filename(given), given)
	}
	assert.Equal(t, "foo.tar", href_filename("https://example.org/data/automated/foo.tar"))
}

func Test_has_extension(t *testing.T) {
	cases := map[string]bool{
		"":                false,
		"foo":             false,
		"foo.zip":         false,
		"foo.txt":         true,
		"foo.tar":         true,
		"foo.tar.gz":      true,
		"foo.json.tar.gz": true,
		"foo.TXT":         false, // case sensitive
	}
	for given, expected := range cases {
		assert.Equal(t, expected, has_extension(given, DEFAULT_EXTENSIONS), given)
	}
}

func Test_join_url(t *testing.T) {
	assert.Equal(t, "https://example.org/data/automated/", category_url("https://example.org/", "data/automated"))
	assert.Equal(t, "https://example.org/data/automated/", category_url("https://example.org", "/data/automated/"))
	assert.Equal(t, "https://example.org/rawdata/kiterunner/x.tar", join_url("https://example.org/rawdata/", "kiterunner", "x.tar"))
}

func Test_HTTPListing_List(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/automated/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(LISTING_FIXTURE))
	}))
	defer server.Close()

	listing := HTTPListing{BaseURL: server.URL + "/", Extensions: DEFAULT_EXTENSIONS, Client: server.Client()}

	file_list, err := listing.List("data/automated")
	require.Nil(t, err)
	assert.Len(t, file_list, 7)

	file_list, err = listing.List("data/missing")
	require.NotNil(t, err)
	assert.True(t, is_status_error(err))
	assert.Empty(t, file_list)
}
