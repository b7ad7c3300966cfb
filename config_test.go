package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_config_schema(t *testing.T) {
	_, err := config_schema()
	assert.Nil(t, err)
}

func Test_apply_config_json(t *testing.T) {
	blob := `{
		"base_url": "http://mirror.local/",
		"raw_base_url": "http://mirror.local/raw/",
		"output_dir": "/srv/wordlists",
		"categories": ["data/automated", "data/kiterunner"],
		"extensions": [".txt"],
		"special": {
			"category": "data/kiterunner",
			"subpath": "kr",
			"files": ["routes-small.json.tar.gz"]
		},
		"attempts": 4,
		"retry_delay": "250ms",
		"timeout": "1m"
	}`
	config, err := apply_config_json(NewConfig(), []byte(blob))
	require.Nil(t, err)

	assert.Equal(t, "http://mirror.local/", config.BaseURL)
	assert.Equal(t, "http://mirror.local/raw/", config.RawBaseURL)
	assert.Equal(t, "/srv/wordlists", config.OutputDir)
	assert.Equal(t, []string{"data/automated", "data/kiterunner"}, config.Categories)
	assert.Equal(t, []string{".txt"}, config.Extensions)
	assert.Equal(t, "data/kiterunner", config.SpecialCategory)
	assert.Equal(t, "kr", config.SpecialSubpath)
	assert.Equal(t, []string{"routes-small.json.tar.gz"}, config.SpecialFiles)
	assert.Equal(t, 4, config.NumAttempts)
	assert.Equal(t, 250*time.Millisecond, config.RetryDelay)
	assert.Equal(t, time.Minute, config.Timeout)
	assert.Nil(t, config.validate())
}

func Test_apply_config_json__partial(t *testing.T) {
	config, err := apply_config_json(NewConfig(), []byte(`{"output_dir": "/srv/wordlists"}`))
	require.Nil(t, err)

	expected := NewConfig()
	expected.OutputDir = "/srv/wordlists"
	assert.Equal(t, expected, config)
}

func Test_apply_config_json__invalid(t *testing.T) {
	cases := []string{
		``,
		`[]`,
		`{"unknown": true}`,
		`{"attempts": 0}`,
		`{"attempts": "3"}`,
		`{"categories": []}`,
		`{"categories": [""]}`,
		`{"extensions": ["txt"]}`,
		`{"special": {"file": []}}`,
		`{"retry_delay": "soon"}`,
		`{"timeout": 30}`,
	}
	for _, given := range cases {
		_, err := apply_config_json(NewConfig(), []byte(given))
		assert.NotNil(t, err, given)
	}
}

func Test_Config_validate(t *testing.T) {
	assert.Nil(t, NewConfig().validate())

	cases := []func(*Config){
		func(c *Config) { c.BaseURL = " " },
		func(c *Config) { c.RawBaseURL = "" },
		func(c *Config) { c.Categories = []string{} },
		func(c *Config) { c.Categories = []string{"data/automated", ""} },
		func(c *Config) { c.Extensions = nil },
		func(c *Config) { c.NumAttempts = 0 },
		func(c *Config) { c.RetryDelay = -time.Second },
		func(c *Config) { c.Timeout = -time.Second },
	}
	for i, mutate := range cases {
		config := NewConfig()
		mutate(&config)
		assert.NotNil(t, config.validate(), i)
	}
}
