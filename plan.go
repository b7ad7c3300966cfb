package main

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// "2023_06_28"
const DATE_LAYOUT = "2006_01_02"

var DATE_TOKEN_PATTERN = regexp.MustCompile(`\d{4}_\d{2}_\d{2}`)

// a file whose name carries a release date.
type DatedFile struct {
	Filename  string
	Prefix    string    // "httparchive_apiroutes_", everything before the date
	DateToken string    // "2023_06_28"
	Date      time.Time // 2023-06-28
}

// every release of a single rolling wordlist.
type DatedGroup struct {
	Prefix  string
	Name    string // prefix without its trailing separator, for display
	Members []DatedFile
	Latest  DatedFile
}

// what a category's listing looks like once sorted into dated and static files.
type Plan struct {
	Category string
	Groups   []DatedGroup // in the order their prefix was first seen
	Static   []string
}

// returns the first date token in `filename`, or an empty string if there isn't one.
// "httparchive_apiroutes_2023_06_28.txt" => "2023_06_28"
func date_token(filename string) string {
	return DATE_TOKEN_PATTERN.FindString(filename)
}

// splits a dated `filename` into its parts.
// returns false if `filename` has no date token or the token isn't a calendar date.
func parse_dated_file(filename string) (DatedFile, bool) {
	loc := DATE_TOKEN_PATTERN.FindStringIndex(filename)
	if loc == nil {
		return DatedFile{}, false
	}
	token := filename[loc[0]:loc[1]]
	date, err := time.Parse(DATE_LAYOUT, token)
	if err != nil {
		return DatedFile{}, false
	}
	return DatedFile{
		Filename:  filename,
		Prefix:    filename[:loc[0]],
		DateToken: token,
		Date:      date,
	}, true
}

// "httparchive_apiroutes_" => "httparchive_apiroutes"
func series_name(prefix string) string {
	return strings.TrimSuffix(prefix, "_")
}

// returns the most recently dated file in `members`.
// when two files share a date, the lexicographically larger filename wins.
func latest(members []DatedFile) DatedFile {
	ensure(len(members) > 0, "cannot select the latest of an empty group")
	best := members[0]
	for _, candidate := range members[1:] {
		if candidate.Date.After(best.Date) {
			best = candidate
			continue
		}
		if candidate.Date.Equal(best.Date) && candidate.Filename > best.Filename {
			best = candidate
		}
	}
	return best
}

// sorts the `files` listed for a `category` into groups of dated files and a list of static files.
// files are grouped by everything before their date, so "foo_2023_01_01.txt" and "foo2023_01_01.txt"
// belong to different groups.
func plan_category(category string, files []string) Plan {
	plan := Plan{Category: category, Static: []string{}}

	group_idx := map[string]int{}
	for _, filename := range unique(files) {
		if date_token(filename) == "" {
			plan.Static = append(plan.Static, filename)
			continue
		}

		dated, ok := parse_dated_file(filename)
		if !ok {
			slog.Warn("file has a date that isn't a valid date, treating it as static", "category", category, "filename", filename)
			plan.Static = append(plan.Static, filename)
			continue
		}

		i, present := group_idx[dated.Prefix]
		if !present {
			i = len(plan.Groups)
			group_idx[dated.Prefix] = i
			plan.Groups = append(plan.Groups, DatedGroup{Prefix: dated.Prefix, Name: series_name(dated.Prefix)})
		}
		plan.Groups[i].Members = append(plan.Groups[i].Members, dated)
	}

	for i := range plan.Groups {
		plan.Groups[i].Latest = latest(plan.Groups[i].Members)
	}

	return plan
}
