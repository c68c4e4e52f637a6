package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gosight/gosight/websee/internal/event"
)

// Options configures the SDK. Silent* flags keep their historical meaning:
// true turns the corresponding monitor on. Read them with Monitor.
type Options struct {
	DSN      string `yaml:"dsn"`
	APIKey   string `yaml:"api_key"`
	UserID   string `yaml:"user_id"`
	Disabled bool   `yaml:"disabled"`

	// nil takes the default: every monitor on, except record screen and
	// white screen which are off.
	SilentXHR                *bool `yaml:"silent_xhr"`
	SilentFetch              *bool `yaml:"silent_fetch"`
	SilentClick              *bool `yaml:"silent_click"`
	SilentError              *bool `yaml:"silent_error"`
	SilentUnhandledRejection *bool `yaml:"silent_unhandledrejection"`
	SilentHashchange         *bool `yaml:"silent_hashchange"`
	SilentHistory            *bool `yaml:"silent_history"`
	SilentPerformance        *bool `yaml:"silent_performance"`
	SilentRecordScreen       *bool `yaml:"silent_record_screen"`
	SilentWhiteScreen        *bool `yaml:"silent_white_screen"`

	RecordScreenTime     time.Duration `yaml:"record_screen_time"`
	RecordScreenTypeList []event.Type  `yaml:"record_screen_type_list"`

	SkeletonProject  bool     `yaml:"skeleton_project"`
	WhiteBoxElements []string `yaml:"white_box_elements"`

	FilterXHRURLRegExp string `yaml:"filter_xhr_url_regexp"`
	UseImgUpload       bool   `yaml:"use_img_upload"`

	ThrottleDelayTime time.Duration `yaml:"throttle_delay_time"`
	OverTime          time.Duration `yaml:"over_time"`
	MaxBreadcrumbs    int           `yaml:"max_breadcrumbs"`
	RepeatCodeError   bool          `yaml:"repeat_code_error"`

	// BeforePushBreadcrumb may rewrite an entry; returning false drops it.
	BeforePushBreadcrumb func(event.Breadcrumb) (event.Breadcrumb, bool) `yaml:"-"`
	// BeforeDataReport runs before delivery; returning false cancels the send.
	BeforeDataReport func(context.Context, event.Report) (event.Report, bool) `yaml:"-"`
	// GetUserID is consulted when UserID is empty. It must yield a string or
	// a number.
	GetUserID func() any `yaml:"-"`
	// HandleHTTPStatus overrides status code classification of HTTP calls.
	HandleHTTPStatus func(event.HTTPCall) bool `yaml:"-"`

	filterRe *regexp.Regexp
}

// Default returns options with every default applied.
func Default() Options {
	return Options{
		SilentXHR:                Bool(true),
		SilentFetch:              Bool(true),
		SilentClick:              Bool(true),
		SilentError:              Bool(true),
		SilentUnhandledRejection: Bool(true),
		SilentHashchange:         Bool(true),
		SilentHistory:            Bool(true),
		SilentPerformance:        Bool(true),
		SilentRecordScreen:       Bool(false),
		SilentWhiteScreen:        Bool(false),
		RecordScreenTime:         10 * time.Second,
		RecordScreenTypeList: []event.Type{
			event.Error, event.UnhandledRejection, event.Resource, event.Fetch, event.XHR,
		},
		WhiteBoxElements: []string{"html", "body", "#app", "#root"},
		OverTime:         10 * time.Second,
		MaxBreadcrumbs:   20,
	}
}

// Load reads a YAML options file on top of Default.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	opts := Default()
	if err := yaml.Unmarshal([]byte(expanded), &opts); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := opts.Normalize(); err != nil {
		return nil, err
	}
	return &opts, nil
}

var (
	ErrMissingDSN    = errors.New("config: dsn is required")
	ErrMissingAPIKey = errors.New("config: api_key is required")
)

// Validate reports the first missing required option.
func (o *Options) Validate() error {
	if o.DSN == "" {
		return ErrMissingDSN
	}
	if o.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Normalize fills zero values with defaults and compiles the URL filter.
func (o *Options) Normalize() error {
	def := Default()
	if o.MaxBreadcrumbs <= 0 {
		o.MaxBreadcrumbs = def.MaxBreadcrumbs
	}
	if o.OverTime <= 0 {
		o.OverTime = def.OverTime
	}
	if o.RecordScreenTime <= 0 {
		o.RecordScreenTime = def.RecordScreenTime
	}
	if len(o.RecordScreenTypeList) == 0 {
		o.RecordScreenTypeList = def.RecordScreenTypeList
	}
	if len(o.WhiteBoxElements) == 0 {
		o.WhiteBoxElements = def.WhiteBoxElements
	}
	for _, f := range []struct {
		flag **bool
		def  *bool
	}{
		{&o.SilentXHR, def.SilentXHR},
		{&o.SilentFetch, def.SilentFetch},
		{&o.SilentClick, def.SilentClick},
		{&o.SilentError, def.SilentError},
		{&o.SilentUnhandledRejection, def.SilentUnhandledRejection},
		{&o.SilentHashchange, def.SilentHashchange},
		{&o.SilentHistory, def.SilentHistory},
		{&o.SilentPerformance, def.SilentPerformance},
		{&o.SilentRecordScreen, def.SilentRecordScreen},
		{&o.SilentWhiteScreen, def.SilentWhiteScreen},
	} {
		if *f.flag == nil {
			*f.flag = f.def
		}
	}
	if o.ThrottleDelayTime < 0 {
		o.ThrottleDelayTime = 0
	}

	o.filterRe = nil
	if o.FilterXHRURLRegExp != "" {
		re, err := regexp.Compile(o.FilterXHRURLRegExp)
		if err != nil {
			return fmt.Errorf("config: filter_xhr_url_regexp: %w", err)
		}
		o.filterRe = re
	}
	return nil
}

// Bool returns a pointer to v, for setting Silent* flags in literals.
func Bool(v bool) *bool {
	return &v
}

// Monitor reports whether the monitor for t is switched on. Types without a
// Silent* flag are always on.
func (o *Options) Monitor(t event.Type) bool {
	var flag *bool
	switch t {
	case event.XHR:
		flag = o.SilentXHR
	case event.Fetch:
		flag = o.SilentFetch
	case event.Click:
		flag = o.SilentClick
	case event.Error:
		flag = o.SilentError
	case event.UnhandledRejection:
		flag = o.SilentUnhandledRejection
	case event.Hashchange:
		flag = o.SilentHashchange
	case event.History:
		flag = o.SilentHistory
	case event.Performance:
		flag = o.SilentPerformance
	case event.RecordScreen:
		flag = o.SilentRecordScreen
	case event.WhiteScreen:
		flag = o.SilentWhiteScreen
	default:
		return true
	}
	if flag == nil {
		return t != event.RecordScreen && t != event.WhiteScreen
	}
	return *flag
}

// FilteredURL reports whether url matches the configured exclusion pattern.
func (o *Options) FilteredURL(url string) bool {
	return o.filterRe != nil && o.filterRe.MatchString(url)
}

// RecordsOn reports whether an error of type t should flag the active
// screen recording.
func (o *Options) RecordsOn(t event.Type) bool {
	for _, rt := range o.RecordScreenTypeList {
		if rt == t {
			return true
		}
	}
	return false
}
