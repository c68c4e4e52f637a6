package interceptor

import (
	"bytes"
	"io"
	"sync"
)

// maxCapturedBody caps how much of a fetch response is kept for the status
// classifier. The caller always receives the full stream.
const maxCapturedBody = 1 << 20

// capturedBody passes a response body through to the caller while copying
// it aside. done runs exactly once: at EOF, on a read error, or after a body
// closed early has been drained in the background.
type capturedBody struct {
	rc   io.ReadCloser
	done func(data []byte, err error)

	mu       sync.Mutex
	buf      bytes.Buffer
	finished bool
	once     sync.Once
}

func newCapturedBody(rc io.ReadCloser, done func([]byte, error)) *capturedBody {
	return &capturedBody{rc: rc, done: done}
}

func (b *capturedBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	b.Write(p[:n])
	if err != nil {
		b.finish(err)
	}
	return n, err
}

// Write appends to the captured copy up to maxCapturedBody.
func (b *capturedBody) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := maxCapturedBody - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *capturedBody) Close() error {
	b.mu.Lock()
	finished := b.finished
	b.mu.Unlock()
	if finished {
		return b.rc.Close()
	}

	go func() {
		_, err := io.Copy(b, b.rc)
		b.rc.Close()
		if err == nil {
			err = io.EOF
		}
		b.finish(err)
	}()
	return nil
}

func (b *capturedBody) finish(err error) {
	b.once.Do(func() {
		b.mu.Lock()
		b.finished = true
		data := bytes.Clone(b.buf.Bytes())
		b.mu.Unlock()
		b.done(data, err)
	})
}
