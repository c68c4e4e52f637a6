package event

import "time"

// Breadcrumb is one entry in the rolling trail of recent activity.
type Breadcrumb struct {
	Type     Type     `json:"type"`
	Category Category `json:"category"`
	Status   Status   `json:"status"`
	Time     int64    `json:"time"`
	Data     any      `json:"data"`
}

// RequestData describes the outbound side of an intercepted HTTP call.
type RequestData struct {
	HTTPType string `json:"httpType"`
	Method   string `json:"method"`
	Data     any    `json:"data"`
}

// ResponseData describes the inbound side of an intercepted HTTP call.
// Data is only retained when the call was classified as an error.
type ResponseData struct {
	Status int `json:"Status"`
	Data   any `json:"data"`
}

// HTTPCall is the raw record published by the xhr and fetch interceptors.
type HTTPCall struct {
	Type        Type   `json:"type"`
	Method      string `json:"method"`
	URL         string `json:"url"`
	Time        int64  `json:"time"`
	ElapsedTime int64  `json:"elapsedTime"`
	Status      int    `json:"Status"`
	RequestData any    `json:"requestData,omitempty"`
	Response    any    `json:"response,omitempty"`
}

// HTTPResult is an HTTPCall after status classification.
type HTTPResult struct {
	URL         string        `json:"url"`
	Time        int64         `json:"time"`
	Status      Status        `json:"status"`
	ElapsedTime int64         `json:"elapsedTime"`
	Message     string        `json:"message"`
	RequestData *RequestData  `json:"requestData"`
	Response    *ResponseData `json:"response"`
}

// DeviceInfo is derived once per session from the user agent.
type DeviceInfo struct {
	BrowserVersion string `json:"browserVersion"`
	Browser        string `json:"browser"`
	OSVersion      string `json:"osVersion"`
	OS             string `json:"os"`
	UA             string `json:"ua"`
	Device         string `json:"device"`
	DeviceType     string `json:"device_type"`
}

// Report is the envelope delivered to the DSN. Event specific fields are
// optional so that one schema covers every event type.
type Report struct {
	Type    Type   `json:"type"`
	Status  Status `json:"status"`
	Time    int64  `json:"time"`
	Message string `json:"message,omitempty"`

	// code errors
	FileName string `json:"fileName,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`

	// http
	URL         string        `json:"url,omitempty"`
	ElapsedTime int64         `json:"elapsedTime,omitempty"`
	RequestData *RequestData  `json:"requestData,omitempty"`
	Response    *ResponseData `json:"response,omitempty"`

	// resource errors and performance metrics
	Name   string  `json:"name,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Rating string  `json:"rating,omitempty"`

	// screen recording
	RecordScreenID string `json:"recordScreenId,omitempty"`
	Events         string `json:"events,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`

	// envelope, filled by the transport
	UserID     string       `json:"userId"`
	SDKVersion string       `json:"sdkVersion"`
	APIKey     string       `json:"apiKey"`
	UUID       string       `json:"uuid"`
	PageURL    string       `json:"pageUrl"`
	DeviceInfo *DeviceInfo  `json:"deviceInfo,omitempty"`
	Breadcrumb []Breadcrumb `json:"breadcrumb,omitempty"`
}

// Now returns the current time in unix milliseconds, the unit used for every
// timestamp on the wire.
func Now() int64 {
	return time.Now().UnixMilli()
}

// Route is published by the history interceptor on every navigation.
type Route struct {
	From string `json:"from"`
	To   string `json:"to"`
}
