// Package registry holds the per-page application context shared by every
// SDK component: device info, the session id, the code error dedup set and
// screen recording state. One Registry lives from Init to Shutdown.
package registry

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"github.com/gosight/gosight/websee/internal/event"
)

type Registry struct {
	mu sync.Mutex

	sessionID string
	device    event.DeviceInfo

	// errorMap grows for the whole session and is never pruned.
	errorMap map[string]struct{}

	recording      bool
	hasError       bool
	recordScreenID string
}

func New(userAgent string) *Registry {
	return &Registry{
		sessionID: uuid.New().String(),
		device:    parseDevice(userAgent),
		errorMap:  make(map[string]struct{}),
	}
}

func parseDevice(ua string) event.DeviceInfo {
	info := event.DeviceInfo{
		UA:         ua,
		Device:     "Unknown",
		DeviceType: "PC",
	}
	if ua == "" {
		return info
	}

	parsed := useragent.New(ua)
	info.Browser, info.BrowserVersion = parsed.Browser()
	osInfo := parsed.OSInfo()
	info.OS = osInfo.Name
	info.OSVersion = osInfo.Version
	if model := parsed.Model(); model != "" {
		info.Device = model
	}
	switch {
	case parsed.Bot():
		info.DeviceType = "bot"
	case parsed.Mobile():
		info.DeviceType = "mobile"
	}
	return info
}

// SessionID identifies this page load.
func (r *Registry) SessionID() string {
	return r.sessionID
}

// Device returns a copy of the parsed device info.
func (r *Registry) Device() *event.DeviceInfo {
	d := r.device
	return &d
}

// ErrorSignature hashes the identity of a code error.
func ErrorSignature(t event.Type, message, file string, column int) string {
	sig := string(t) + "-" + message + "-" + file + "-" + strconv.Itoa(column)
	return strconv.FormatUint(xxhash.Sum64String(sig), 16)
}

// SeenError records hash and reports whether it had been recorded before.
func (r *Registry) SeenError(hash string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.errorMap[hash]; ok {
		return true
	}
	r.errorMap[hash] = struct{}{}
	return false
}

// StartRecording marks screen recording active under a fresh id.
func (r *Registry) StartRecording() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	r.hasError = false
	r.recordScreenID = uuid.New().String()
	return r.recordScreenID
}

// StopRecording clears all recording state.
func (r *Registry) StopRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	r.hasError = false
	r.recordScreenID = ""
}

// Recording reports whether a screen recording is active.
func (r *Registry) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// MarkRecordError flags the current recording window as containing an error
// and returns the id the report should reference.
func (r *Registry) MarkRecordError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasError = true
	return r.recordScreenID
}

// RotateRecording closes the current recording window. It returns the id of
// the closed window and whether an error was flagged during it, then starts a
// new window.
func (r *Registry) RotateRecording() (id string, hadError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, hadError = r.recordScreenID, r.hasError
	r.recordScreenID = uuid.New().String()
	r.hasError = false
	return id, hadError
}
