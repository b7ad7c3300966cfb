package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
)

type State struct {
	Config  Config
	Client  *http.Client // used for file downloads
	Listing ListingSource
	sleep   func(time.Duration)
}

func NewState(config Config) *State {
	listing_client := new_client(config.Timeout)
	if config.HTTPCacheDir != "" {
		listing_client = new_caching_client(config.Timeout, config.HTTPCacheDir)
	}
	return &State{
		Config: config,
		Client: new_client(config.Timeout),
		Listing: HTTPListing{
			BaseURL:    config.BaseURL,
			Extensions: config.Extensions,
			Client:     listing_client,
		},
		sleep: time.Sleep,
	}
}

// --- bootstrap

type Args struct {
	Config  Config
	Verbose bool
}

// parses the command line `arg_list` into a `Config`.
// precedence is defaults, then the config file (if any), then flags.
func parse_args(arg_list []string) (Args, error) {
	defaults := NewConfig()
	flags := pflag.NewFlagSet("wordlist-mirror", pflag.ContinueOnError)

	config_path := flags.String("config", "", "path to a JSON config file")
	base_url := flags.String("base-url", defaults.BaseURL, "where category listings and files are published")
	raw_base_url := flags.String("raw-base-url", defaults.RawBaseURL, "where the special category's extra files are published")
	output_dir := flags.StringP("output-dir", "o", defaults.OutputDir, "directory to mirror categories into")
	category_list := flags.StringSliceP("category", "c", defaults.Categories, "category to sync, may be given many times")
	num_attempts := flags.Int("attempts", defaults.NumAttempts, "number of attempts to download a file when the connection fails")
	retry_delay := flags.Duration("retry-delay", defaults.RetryDelay, "time to wait between download attempts")
	timeout := flags.Duration("timeout", defaults.Timeout, "HTTP client timeout, 0 for none")
	http_cache_dir := flags.String("http-cache", "", "cache category listings in this directory")
	dry_run := flags.Bool("dry-run", false, "report what would change without changing anything")
	verbose := flags.BoolP("verbose", "v", false, "log debug messages")

	err := flags.Parse(arg_list)
	if err != nil {
		return Args{}, err
	}
	if flags.NArg() > 0 {
		return Args{}, fmt.Errorf("unexpected arguments: %v", flags.Args())
	}

	config := defaults
	if *config_path != "" {
		config, err = load_config_file(config, *config_path)
		if err != nil {
			return Args{}, err
		}
	}

	if flags.Changed("base-url") {
		config.BaseURL = *base_url
	}
	if flags.Changed("raw-base-url") {
		config.RawBaseURL = *raw_base_url
	}
	if flags.Changed("output-dir") {
		config.OutputDir = *output_dir
	}
	if flags.Changed("category") {
		config.Categories = *category_list
	}
	if flags.Changed("attempts") {
		config.NumAttempts = *num_attempts
	}
	if flags.Changed("retry-delay") {
		config.RetryDelay = *retry_delay
	}
	if flags.Changed("timeout") {
		config.Timeout = *timeout
	}
	config.HTTPCacheDir = *http_cache_dir
	config.DryRun = *dry_run

	err = config.validate()
	if err != nil {
		return Args{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return Args{Config: config, Verbose: *verbose}, nil
}

func init_logging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(os.Stderr, &tint.Options{Level: level})
	slog.SetDefault(slog.New(handler).With("run", uuid.New().String()[:8]))
}

func init() {
	if is_testing() {
		return
	}
	init_logging(false)
}

func main() {
	args, err := parse_args(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	die(err != nil, "cannot start", "error", err)

	init_logging(args.Verbose)
	state := NewState(args.Config)

	slog.Info("syncing wordlists", "categories", len(state.Config.Categories), "output-dir", state.Config.OutputDir, "dry-run", state.Config.DryRun)
	summary := sync_all(state)
	fmt.Println(summary_line(summary))
}
