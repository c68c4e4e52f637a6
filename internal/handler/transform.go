package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/gosight/gosight/websee/internal/browser"
	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
)

// HTTPTransform classifies an intercepted call. Status 0 means the request
// never completed; below 400 is ok unless the HandleHTTPStatus hook says
// otherwise; anything else is an error.
func HTTPTransform(call event.HTTPCall, opts *config.Options) event.HTTPResult {
	var (
		status  event.Status
		message string
	)
	switch {
	case call.Status == 0:
		status = event.StatusError
		if call.ElapsedTime <= opts.OverTime.Milliseconds() {
			message = "request failed, status: 0"
		} else {
			message = "request failed, timeout"
		}
	case call.Status < http.StatusBadRequest:
		status = event.StatusOK
		if opts.HandleHTTPStatus != nil && !opts.HandleHTTPStatus(call) {
			status = event.StatusError
			message = "api error, response: " + stringify(call.Response)
		}
	default:
		status = event.StatusError
		message = fmt.Sprintf("request failed, status: %d, %s", call.Status, FromHTTPStatus(call.Status))
	}

	reqData := call.RequestData
	if reqData == nil {
		reqData = ""
	}
	resp := &event.ResponseData{Status: call.Status}
	if status == event.StatusError {
		resp.Data = call.Response
	}

	return event.HTTPResult{
		URL:         call.URL,
		Time:        call.Time,
		Status:      status,
		ElapsedTime: call.ElapsedTime,
		Message:     call.URL + "; " + message,
		RequestData: &event.RequestData{
			HTTPType: string(call.Type),
			Method:   call.Method,
			Data:     reqData,
		},
		Response: resp,
	}
}

// FromHTTPStatus maps an HTTP status code to a span status name.
func FromHTTPStatus(code int) string {
	switch {
	case code < 400:
		return "ok"
	case code < 500:
		switch code {
		case http.StatusUnauthorized:
			return "unauthenticated"
		case http.StatusForbidden:
			return "permission_denied"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusConflict:
			return "already_exists"
		case http.StatusRequestEntityTooLarge:
			return "failed_precondition"
		case http.StatusTooManyRequests:
			return "resource_exhausted"
		default:
			return "invalid_argument"
		}
	case code < 600:
		switch code {
		case http.StatusNotImplemented:
			return "unimplemented"
		case http.StatusServiceUnavailable:
			return "unavailable"
		case http.StatusGatewayTimeout:
			return "deadline_exceeded"
		default:
			return "internal_error"
		}
	}
	return "unknown_error"
}

const resourceURLLimit = 120

// ResourceInfo describes a failed resource load.
type ResourceInfo struct {
	Time    int64  `json:"time"`
	Message string `json:"message"`
	Name    string `json:"name"`
}

// ResourceTransform extracts the failing source from a resource element.
func ResourceTransform(el *browser.Element) ResourceInfo {
	src := truncate(el.Src, resourceURLLimit)
	if src == "" {
		src = truncate(el.Href, resourceURLLimit)
	}
	return ResourceInfo{
		Time:    event.Now(),
		Message: src + "; resource load failed",
		Name:    el.LocalName(),
	}
}

// HTMLElementAsString renders el as a short tag for click breadcrumbs.
// Clicks on the body itself are not interesting and render as "".
func HTMLElementAsString(el *browser.Element) string {
	if el == nil {
		return ""
	}
	tag := el.LocalName()
	if tag == "" || tag == "body" {
		return ""
	}
	var b strings.Builder
	b.WriteString("<" + tag)
	if el.ID != "" {
		b.WriteString(` id="` + el.ID + `"`)
	}
	if el.ClassName != "" {
		b.WriteString(` class="` + el.ClassName + `"`)
	}
	b.WriteString(">" + el.Text + "</" + tag + ">")
	return b.String()
}

// RelativeURL strips scheme and host, keeping path, query and fragment.
func RelativeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	rel := u.EscapedPath()
	if u.RawQuery != "" {
		rel += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		rel += "#" + u.EscapedFragment()
	}
	return rel
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// stringify renders a value as JSON unless it already is text.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case error:
		return x.Error()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
