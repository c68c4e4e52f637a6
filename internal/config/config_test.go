package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/websee/internal/event"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "websee.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaultsAndEnv(t *testing.T) {
	t.Setenv("WEBSEE_DSN", "http://collector.local/report")
	path := writeFile(t, `
dsn: ${WEBSEE_DSN}
api_key: abcd
silent_xhr: false
throttle_delay_time: 200ms
filter_xhr_url_regexp: "/health$"
`)

	opts, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://collector.local/report", opts.DSN)
	assert.Equal(t, "abcd", opts.APIKey)
	assert.False(t, opts.Monitor(event.XHR))
	assert.True(t, opts.Monitor(event.Fetch))
	assert.False(t, opts.Monitor(event.WhiteScreen))
	assert.Equal(t, 200*time.Millisecond, opts.ThrottleDelayTime)
	assert.Equal(t, 20, opts.MaxBreadcrumbs)
	assert.Equal(t, 10*time.Second, opts.OverTime)
	assert.Equal(t, []string{"html", "body", "#app", "#root"}, opts.WhiteBoxElements)
	assert.True(t, opts.FilteredURL("http://api.local/health"))
	assert.False(t, opts.FilteredURL("http://api.local/users"))
}

func TestLoad_BadRegexp(t *testing.T) {
	path := writeFile(t, "dsn: x\napi_key: y\nfilter_xhr_url_regexp: \"(\"\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	opts := Default()
	assert.ErrorIs(t, opts.Validate(), ErrMissingDSN)

	opts.DSN = "http://collector.local/report"
	assert.ErrorIs(t, opts.Validate(), ErrMissingAPIKey)

	opts.APIKey = "abcd"
	assert.NoError(t, opts.Validate())
}

func TestNormalize_FillsZeroValues(t *testing.T) {
	var opts Options
	require.NoError(t, opts.Normalize())
	assert.Equal(t, 20, opts.MaxBreadcrumbs)
	assert.True(t, opts.RecordsOn(event.XHR))
	assert.False(t, opts.RecordsOn(event.Click))
	assert.False(t, opts.FilteredURL("anything"))
}

func TestNormalize_SilentFlagsDefaultOn(t *testing.T) {
	opts := Options{SilentClick: Bool(false), SilentWhiteScreen: Bool(true)}
	require.NoError(t, opts.Normalize())

	for _, typ := range []event.Type{event.XHR, event.Fetch, event.Error, event.UnhandledRejection, event.Hashchange, event.History, event.Performance} {
		assert.True(t, opts.Monitor(typ), typ)
	}
	assert.False(t, opts.Monitor(event.Click))
	assert.True(t, opts.Monitor(event.WhiteScreen))
	assert.False(t, opts.Monitor(event.RecordScreen))
	assert.True(t, opts.Monitor(event.Custom))
}

func TestMonitor_UnnormalizedOptions(t *testing.T) {
	var opts Options
	assert.True(t, opts.Monitor(event.XHR))
	assert.False(t, opts.Monitor(event.WhiteScreen))
	assert.False(t, opts.Monitor(event.RecordScreen))
}
