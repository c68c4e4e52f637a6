package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/websee/internal/event"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/107.0.0.0 Safari/537.36"

func TestNew_ParsesDevice(t *testing.T) {
	r := New(chromeUA)

	_, err := uuid.Parse(r.SessionID())
	require.NoError(t, err)

	d := r.Device()
	assert.Equal(t, "Chrome", d.Browser)
	assert.Equal(t, "107.0.0.0", d.BrowserVersion)
	assert.Equal(t, "PC", d.DeviceType)
	assert.Equal(t, chromeUA, d.UA)
}

func TestNew_EmptyUserAgent(t *testing.T) {
	d := New("").Device()
	assert.Equal(t, "Unknown", d.Device)
	assert.Equal(t, "PC", d.DeviceType)
	assert.Empty(t, d.Browser)
}

func TestSeenError(t *testing.T) {
	r := New("")
	a := ErrorSignature(event.Error, "boom", "app.js", 7)
	b := ErrorSignature(event.Error, "boom", "app.js", 8)

	assert.NotEqual(t, a, b)
	assert.False(t, r.SeenError(a))
	assert.True(t, r.SeenError(a))
	assert.False(t, r.SeenError(b))
}

func TestRecordingLifecycle(t *testing.T) {
	r := New("")
	assert.False(t, r.Recording())

	first := r.StartRecording()
	assert.True(t, r.Recording())
	assert.Equal(t, first, r.MarkRecordError())

	id, hadError := r.RotateRecording()
	assert.Equal(t, first, id)
	assert.True(t, hadError)

	next, hadError := r.RotateRecording()
	assert.NotEqual(t, first, next)
	assert.False(t, hadError)

	r.StopRecording()
	assert.False(t, r.Recording())
}
