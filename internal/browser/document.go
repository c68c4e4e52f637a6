package browser

import "sync"

const (
	ReadyStateLoading  = "loading"
	ReadyStateComplete = "complete"
)

// HitTestFunc returns the element stack at a viewport point, topmost first.
type HitTestFunc func(x, y float64) []*Element

type Document struct {
	EventTarget

	mu         sync.Mutex
	readyState string
	active     *Element
	hitTest    HitTestFunc
}

func NewDocument() *Document {
	return &Document{readyState: ReadyStateLoading}
}

func (d *Document) ReadyState() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readyState
}

func (d *Document) SetReadyState(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readyState = s
}

func (d *Document) ActiveElement() *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// SetHitTest installs the layout used by ElementsFromPoint.
func (d *Document) SetHitTest(fn HitTestFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hitTest = fn
}

func (d *Document) ElementsFromPoint(x, y float64) []*Element {
	d.mu.Lock()
	fn := d.hitTest
	d.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(x, y)
}

// Click focuses el and dispatches a click to document listeners.
func (d *Document) Click(el *Element) {
	d.mu.Lock()
	d.active = el
	d.mu.Unlock()
	d.DispatchEvent(&Event{Type: "click", Target: el})
}
