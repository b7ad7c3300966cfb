package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// --- defaults

const DEFAULT_BASE_URL = "https://wordlists-cdn.assetnote.io/"
const DEFAULT_RAW_BASE_URL = "https://wordlists-cdn.assetnote.io/rawdata/"

// the one category whose tool needs extra files that aren't in its listing.
const DEFAULT_SPECIAL_CATEGORY = "data/kiterunner"
const DEFAULT_SPECIAL_SUBPATH = "kiterunner"

const DEFAULT_NUM_ATTEMPTS = 3
const DEFAULT_RETRY_DELAY = 5 * time.Second

// order is important, categories are synced in this order.
var DEFAULT_CATEGORIES = []string{
	"data/automated",
	"data/manual",
	"data/technologies",
	"data/kiterunner",
}

// longest first isn't required, any match will do.
var DEFAULT_EXTENSIONS = []string{".txt", ".tar.gz", ".tar", ".json.tar.gz"}

var DEFAULT_SPECIAL_FILES = []string{
	"swagger-files.tar",
	"routes-small.json.tar.gz",
	"routes-large.json.tar.gz",
}

// everything the sync needs to know about where to look and where to write.
type Config struct {
	BaseURL         string
	RawBaseURL      string
	OutputDir       string
	Categories      []string
	Extensions      []string
	SpecialCategory string
	SpecialSubpath  string
	SpecialFiles    []string
	NumAttempts     int
	RetryDelay      time.Duration
	Timeout         time.Duration
	HTTPCacheDir    string
	DryRun          bool
}

func NewConfig() Config {
	return Config{
		BaseURL:         DEFAULT_BASE_URL,
		RawBaseURL:      DEFAULT_RAW_BASE_URL,
		OutputDir:       ".",
		Categories:      slices.Clone(DEFAULT_CATEGORIES),
		Extensions:      slices.Clone(DEFAULT_EXTENSIONS),
		SpecialCategory: DEFAULT_SPECIAL_CATEGORY,
		SpecialSubpath:  DEFAULT_SPECIAL_SUBPATH,
		SpecialFiles:    slices.Clone(DEFAULT_SPECIAL_FILES),
		NumAttempts:     DEFAULT_NUM_ATTEMPTS,
		RetryDelay:      DEFAULT_RETRY_DELAY,
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base url cannot be empty")
	}
	if strings.TrimSpace(c.RawBaseURL) == "" {
		return errors.New("raw base url cannot be empty")
	}
	if len(c.Categories) == 0 {
		return errors.New("at least one category is required")
	}
	for _, category := range c.Categories {
		if strings.TrimSpace(category) == "" {
			return errors.New("category cannot be empty")
		}
	}
	if len(c.Extensions) == 0 {
		return errors.New("at least one file extension is required")
	}
	if c.NumAttempts < 1 {
		return fmt.Errorf("number of attempts must be at least 1, not %d", c.NumAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative: %s", c.RetryDelay)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative: %s", c.Timeout)
	}
	return nil
}

// --- config file

const CONFIG_SCHEMA = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"base_url": {"type": "string", "minLength": 1},
		"raw_base_url": {"type": "string", "minLength": 1},
		"output_dir": {"type": "string", "minLength": 1},
		"categories": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		},
		"extensions": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "pattern": "^\\."}
		},
		"special": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"category": {"type": "string"},
				"subpath": {"type": "string"},
				"files": {"type": "array", "items": {"type": "string", "minLength": 1}}
			}
		},
		"attempts": {"type": "integer", "minimum": 1},
		"retry_delay": {"type": "string"},
		"timeout": {"type": "string"}
	}
}`

func config_schema() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("config.schema.json", CONFIG_SCHEMA)
}

// validates `blob` against the config schema.
func validate_config_json(blob []byte) error {
	schema, err := config_schema()
	if err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	var doc any
	decoder := json.NewDecoder(bytes.NewReader(blob))
	decoder.UseNumber()
	err = decoder.Decode(&doc)
	if err != nil {
		return fmt.Errorf("config is not valid JSON: %w", err)
	}

	err = schema.Validate(doc)
	if err != nil {
		return fmt.Errorf("config failed validation: %w", err)
	}
	return nil
}

func gjson_string_list(val gjson.Result) []string {
	results_acc := []string{}
	for _, item := range val.Array() {
		results_acc = append(results_acc, item.String())
	}
	return results_acc
}

// applies the values in the JSON config `blob` over the top of `config`.
// keys that are absent keep their existing value.
func apply_config_json(config Config, blob []byte) (Config, error) {
	err := validate_config_json(blob)
	if err != nil {
		return config, err
	}

	jsonstr := string(blob)

	if val := gjson.Get(jsonstr, "base_url"); val.Exists() {
		config.BaseURL = val.String()
	}
	if val := gjson.Get(jsonstr, "raw_base_url"); val.Exists() {
		config.RawBaseURL = val.String()
	}
	if val := gjson.Get(jsonstr, "output_dir"); val.Exists() {
		config.OutputDir = val.String()
	}
	if val := gjson.Get(jsonstr, "categories"); val.Exists() {
		config.Categories = gjson_string_list(val)
	}
	if val := gjson.Get(jsonstr, "extensions"); val.Exists() {
		config.Extensions = gjson_string_list(val)
	}
	if val := gjson.Get(jsonstr, "special.category"); val.Exists() {
		config.SpecialCategory = val.String()
	}
	if val := gjson.Get(jsonstr, "special.subpath"); val.Exists() {
		config.SpecialSubpath = val.String()
	}
	if val := gjson.Get(jsonstr, "special.files"); val.Exists() {
		config.SpecialFiles = gjson_string_list(val)
	}
	if val := gjson.Get(jsonstr, "attempts"); val.Exists() {
		config.NumAttempts = int(val.Int())
	}
	if val := gjson.Get(jsonstr, "retry_delay"); val.Exists() {
		delay, err := time.ParseDuration(val.String())
		if err != nil {
			return config, fmt.Errorf("bad 'retry_delay' value: %w", err)
		}
		config.RetryDelay = delay
	}
	if val := gjson.Get(jsonstr, "timeout"); val.Exists() {
		timeout, err := time.ParseDuration(val.String())
		if err != nil {
			return config, fmt.Errorf("bad 'timeout' value: %w", err)
		}
		config.Timeout = timeout
	}

	return config, nil
}

// reads the JSON config file at `path` and applies it over `config`.
func load_config_file(config Config, path string) (Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	return apply_config_json(config, blob)
}
