package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
)

// the outcome of syncing a single category.
type CategoryResult struct {
	Category   string
	Current    bool   // every dated file was already present, nothing dated was fetched
	LatestDate string // newest date token among the category's latest files, "2023_06_28"
	Downloaded int
	Deleted    int
	Failed     int
}

// the outcome of syncing every category.
type Summary struct {
	AllCurrent bool
	LatestDate string // date token of the most recently synced category that had one
	DryRun     bool
	Results    []CategoryResult
}

// returns a path like "/output/dir/data/automated/foo.txt"
func local_path(state *State, category string, filename string) string {
	return filepath.Join(state.Config.OutputDir, filepath.FromSlash(category), filename)
}

// returns a URL like "https://example.org/data/automated/foo.txt"
func file_url(state *State, category string, filename string) string {
	return join_url(state.Config.BaseURL, category, url.PathEscape(filename))
}

// returns a URL like "https://example.org/rawdata/kiterunner/routes-small.json.tar.gz"
func special_file_url(state *State, filename string) string {
	return join_url(state.Config.RawBaseURL, state.Config.SpecialSubpath, url.PathEscape(filename))
}

// downloads `url` to `path`, tallying the outcome in `result`.
// during a dry run the remote file is only inspected.
func fetch(state *State, result *CategoryResult, url string, path string) {
	if state.Config.DryRun {
		report_planned_download(state, url, path)
		return
	}
	err := download_file_with_retries_and_backoff(state, url, path)
	if err != nil {
		result.Failed += 1
		return
	}
	result.Downloaded += 1
}

// returns the paths of files in `dir` that belong to the dated group with the given `prefix`.
// these may be releases that are no longer listed remotely.
func local_group_members(dir string, prefix string, extensions []string) []string {
	entry_list, err := os.ReadDir(dir)
	if err != nil {
		// directory doesn't exist yet, nothing to find
		return []string{}
	}
	results_acc := []string{}
	for _, entry := range entry_list {
		if entry.IsDir() || !has_extension(entry.Name(), extensions) {
			continue
		}
		dated, ok := parse_dated_file(entry.Name())
		if ok && dated.Prefix == prefix {
			results_acc = append(results_acc, filepath.Join(dir, entry.Name()))
		}
	}
	return results_acc
}

// removes the file at `path`, tallying it in `result`.
func remove_stale(state *State, result *CategoryResult, path string) {
	if state.Config.DryRun {
		slog.Info("would delete old file", "path", path)
		return
	}
	err := os.Remove(path)
	if err != nil {
		slog.Warn("failed to delete old file", "path", path, "error", err)
		return
	}
	slog.Info("deleted old file", "path", path)
	result.Deleted += 1
}

// ensures only the latest file of a dated `group` is present locally.
// returns true if the latest file was already present.
func sync_dated_group(state *State, result *CategoryResult, group DatedGroup) bool {
	category := result.Category
	latest_path := local_path(state, category, group.Latest.Filename)
	if path_exists(latest_path) {
		slog.Debug("latest file already present", "series", group.Name, "path", latest_path, "date", group.Latest.DateToken)
		return true
	}

	stale_list := []string{}
	for _, member := range group.Members {
		stale_list = append(stale_list, local_path(state, category, member.Filename))
	}
	dir := filepath.Dir(latest_path)
	stale_list = append(stale_list, local_group_members(dir, group.Prefix, state.Config.Extensions)...)

	for _, stale_path := range unique(stale_list) {
		if path_exists(stale_path) {
			remove_stale(state, result, stale_path)
		}
	}

	fetch(state, result, file_url(state, category, group.Latest.Filename), latest_path)
	return false
}

// syncs a single category.
// dated files are reduced to the latest of each group,
// static files are fetched once and never replaced,
// and the special category also gets its extra files.
func sync_category(state *State, category string) CategoryResult {
	result := CategoryResult{Category: category}
	label := category_label(category)

	slog.Info("fetching listing", "category", label)
	file_list, err := state.Listing.List(category)
	if err != nil {
		slog.Error("failed to fetch files", "category", label, "bad-status", is_status_error(err), "error", err)
		return result
	}
	if len(file_list) == 0 {
		slog.Warn("no files found for category", "category", label)
		return result
	}

	plan := plan_category(category, file_list)
	slog.Debug("planned category", "category", label, "dated-groups", len(plan.Groups), "static-files", len(plan.Static))

	result.Current = true
	for _, group := range plan.Groups {
		// date tokens are fixed width, so comparing them as strings compares them as dates
		if group.Latest.DateToken > result.LatestDate {
			result.LatestDate = group.Latest.DateToken
		}
		if !sync_dated_group(state, &result, group) {
			result.Current = false
		}
	}

	for _, filename := range plan.Static {
		path := local_path(state, category, filename)
		if path_exists(path) {
			slog.Debug("static file already present", "path", path)
			continue
		}
		fetch(state, &result, file_url(state, category, filename), path)
	}

	if category == state.Config.SpecialCategory {
		for _, filename := range state.Config.SpecialFiles {
			path := local_path(state, category, filename)
			if path_exists(path) {
				slog.Debug("special file already present", "path", path)
				continue
			}
			fetch(state, &result, special_file_url(state, filename), path)
		}
	}

	if result.Current {
		slog.Info("you have the latest files", "category", label, "date", result.LatestDate)
	}
	slog.Info("category synced", "category", label, "downloaded", result.Downloaded, "deleted", result.Deleted, "failed", result.Failed)
	return result
}

// syncs every configured category, in order.
func sync_all(state *State) Summary {
	summary := Summary{AllCurrent: true, DryRun: state.Config.DryRun}
	for _, category := range state.Config.Categories {
		result := sync_category(state, category)
		summary.Results = append(summary.Results, result)
		if !result.Current {
			summary.AllCurrent = false
		}
		if result.LatestDate != "" {
			summary.LatestDate = result.LatestDate
		}
	}
	return summary
}

// a single line describing the outcome of a run.
func summary_line(summary Summary) string {
	var msg string
	switch {
	case summary.AllCurrent:
		msg = "You have the latest wordlists"
	case summary.DryRun:
		msg = "Some files are out of date"
	default:
		msg = "Downloaded all the latest files"
	}
	if summary.LatestDate == "" {
		return msg + "."
	}
	return fmt.Sprintf("%s (%s).", msg, summary.LatestDate)
}
