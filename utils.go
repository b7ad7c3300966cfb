// general purpose utilities
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// replaced in tests.
var exit = os.Exit

// cannot continue, exit immediately without a stacktrace.
// just use `panic` if you do need a stracktrace.
// stdout is reserved for the summary line.
func fatal() {
	fmt.Fprintln(os.Stderr, "cannot continue")
	exit(1)
}

// when `b` is true, log error `msg` and die quietly.
func die(b bool, msg string, args ...any) {
	if b {
		slog.Error(msg, args...)
		fatal()
	}
}

// assert `b` is true, otherwise panic with message `msg`.
func ensure(b bool, msg string) {
	if !b {
		panic(msg)
	}
}

// returns `true` if tests are being run.
func is_testing() bool {
	// https://stackoverflow.com/questions/14249217/how-do-i-know-im-running-within-go-test
	return strings.HasSuffix(os.Args[0], ".test")
}

// "title case" => "Title Case"
// `strings.ToTitle` behaves strangely and isn't safe with unicode.
func title_case(s string) string {
	caser := cases.Title(language.English)
	return caser.String(s)
}

// a human friendly name for a category.
// "data/automated" => "Automated"
func category_label(category string) string {
	return title_case(path.Base(strings.Trim(category, "/")))
}

// returns just the unique items in `list`.
// order is preserved.
func unique[T comparable](list []T) []T {
	idx := make(map[T]bool)
	var result []T
	for _, item := range list {
		_, present := idx[item]
		if !present {
			idx[item] = true
			result = append(result, item)
		}
	}
	return result
}

func path_exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
