package breadcrumb

import (
	"sort"
	"sync"

	"github.com/gosight/gosight/websee/internal/event"
)

const DefaultCapacity = 20

// Hook may rewrite an entry before it is stored. Returning false drops it.
type Hook func(event.Breadcrumb) (event.Breadcrumb, bool)

// Buffer keeps the most recent breadcrumbs in ascending time order.
// Entries can arrive out of order (an HTTP call completes after a later
// click), so every push re-sorts.
type Buffer struct {
	mu         sync.Mutex
	stack      []event.Breadcrumb
	capacity   int
	beforePush Hook
}

func New(capacity int, beforePush Hook) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		stack:      make([]event.Breadcrumb, 0, capacity),
		capacity:   capacity,
		beforePush: beforePush,
	}
}

// Push stores b, evicting the oldest entry when full.
func (buf *Buffer) Push(b event.Breadcrumb) {
	if buf.beforePush != nil {
		var ok bool
		if b, ok = buf.beforePush(b); !ok {
			return
		}
	}
	if b.Time == 0 {
		b.Time = event.Now()
	}

	buf.mu.Lock()
	defer buf.mu.Unlock()
	if len(buf.stack) >= buf.capacity {
		buf.stack = append(buf.stack[:0], buf.stack[1:]...)
	}
	buf.stack = append(buf.stack, b)
	sort.SliceStable(buf.stack, func(i, j int) bool {
		return buf.stack[i].Time < buf.stack[j].Time
	})
}

// Snapshot returns a copy of the current entries, oldest first.
func (buf *Buffer) Snapshot() []event.Breadcrumb {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	if len(buf.stack) == 0 {
		return nil
	}
	out := make([]event.Breadcrumb, len(buf.stack))
	copy(out, buf.stack)
	return out
}

func (buf *Buffer) Clear() {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	buf.stack = buf.stack[:0]
}

func (buf *Buffer) Len() int {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	return len(buf.stack)
}

func (buf *Buffer) Capacity() int {
	return buf.capacity
}

// Category maps an event type to its breadcrumb category.
func Category(t event.Type) event.Category {
	switch t {
	case event.XHR, event.Fetch:
		return event.CategoryHTTP
	case event.Click:
		return event.CategoryClick
	case event.History, event.Hashchange:
		return event.CategoryRoute
	case event.Resource:
		return event.CategoryResource
	case event.UnhandledRejection, event.Error:
		return event.CategoryCodeError
	default:
		return event.CategoryCustom
	}
}
