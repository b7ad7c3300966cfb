package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// a source of filenames published under a category.
type ListingSource interface {
	List(category string) ([]string, error)
}

// lists a category by scraping the directory index served at `<BaseURL>/<category>/`.
type HTTPListing struct {
	BaseURL    string
	Extensions []string
	Client     *http.Client
}

// "https://example.org/" + "data/automated" => "https://example.org/data/automated/"
func category_url(base_url string, category string) string {
	return join_url(base_url, category) + "/"
}

// joins url path segments with exactly one '/' between each.
func join_url(base_url string, bits ...string) string {
	acc := strings.TrimRight(base_url, "/")
	for _, bit := range bits {
		acc = acc + "/" + strings.Trim(bit, "/")
	}
	return acc
}

func (l HTTPListing) List(category string) ([]string, error) {
	resp, err := download(l.Client, category_url(l.BaseURL, category))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	return parse_listing(strings.NewReader(resp.Text), l.Extensions)
}

// returns true if `filename` ends with any of the given `extensions`.
func has_extension(filename string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

// reduces a hyperlink target to the bare filename it points to.
// "/data/automated/foo.txt?x=1#y" => "foo.txt"
// returns an empty string if there is no usable filename.
func href_filename(href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Path, "/") {
		return ""
	}
	filename := path.Base(u.Path)
	if filename == "." || filename == ".." || filename == "/" {
		return ""
	}
	return filename
}

// extracts the target of every hyperlink in the HTML document `body`,
// returning just those filenames ending in one of `extensions`.
// results are in document order and may contain duplicates.
func parse_listing(body io.Reader, extensions []string) ([]string, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing as HTML: %w", err)
	}

	results_acc := []string{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				filename := href_filename(attr.Val)
				if filename != "" && has_extension(filename, extensions) {
					results_acc = append(results_acc, filename)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return results_acc, nil
}
