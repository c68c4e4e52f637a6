// Package whitescreen detects pages that never rendered. It samples 17
// viewport points; when the topmost element at every point is a bare
// container the page is considered blank and sampling repeats until content
// shows up.
package whitescreen

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/browser"
	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
)

const (
	DefaultInterval = time.Second
	probePoints     = 17
)

type Option func(*Detector)

// WithInterval sets the delay between samples while the page looks blank.
func WithInterval(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.interval = d
		}
	}
}

type Detector struct {
	win      *browser.Window
	skeleton bool
	whiteBox []string
	interval time.Duration

	mu         sync.Mutex
	onResult   func(event.Status)
	loopNum    int
	initList   []string
	nowList    []string
	stopLoop   chan struct{}
	removeLoad func()
	started    bool
}

func New(win *browser.Window, opts *config.Options, options ...Option) *Detector {
	det := &Detector{
		win:      win,
		skeleton: opts.SkeletonProject,
		whiteBox: opts.WhiteBoxElements,
		interval: DefaultInterval,
	}
	for _, o := range options {
		o(det)
	}
	return det
}

// Start begins detection, delivering each sample outcome to onResult. It
// samples right away when the document is ready (or, for skeleton pages,
// while it is still loading) and otherwise waits for the load event.
func (det *Detector) Start(onResult func(event.Status)) {
	det.mu.Lock()
	if det.started {
		det.mu.Unlock()
		return
	}
	det.started = true
	det.onResult = onResult
	det.mu.Unlock()

	complete := det.win.Document.ReadyState() == browser.ReadyStateComplete
	switch {
	case det.skeleton:
		if !complete {
			det.idle()
		}
	case complete:
		det.idle()
	default:
		var once sync.Once
		remove := det.win.AddEventListener("load", func(*browser.Event) {
			once.Do(det.idle)
		}, false)
		det.mu.Lock()
		det.removeLoad = remove
		det.mu.Unlock()
	}
}

func (det *Detector) idle() {
	if det.win.RequestIdleCallback != nil {
		det.win.RequestIdleCallback(det.sample)
		return
	}
	det.sample()
}

// Selector names an element the way white box entries are written:
// #id, then .class.list, then the lowercase tag name.
func Selector(el *browser.Element) string {
	switch {
	case el == nil:
		return ""
	case el.ID != "":
		return "#" + el.ID
	case strings.TrimSpace(el.ClassName) != "":
		return "." + strings.Join(strings.Fields(el.ClassName), ".")
	default:
		return el.LocalName()
	}
}

// isContainer reports whether the element at a probe point counts as empty
// and records its selector for skeleton comparison.
func (det *Detector) isContainer(elements []*browser.Element) bool {
	var el *browser.Element
	if len(elements) > 0 {
		el = elements[0]
	}
	sel := Selector(el)

	if det.skeleton {
		det.mu.Lock()
		if det.loopNum == 0 {
			det.initList = append(det.initList, sel)
		} else {
			det.nowList = append(det.nowList, sel)
		}
		det.mu.Unlock()
	}
	return el == nil || slices.Contains(det.whiteBox, sel)
}

func (det *Detector) sample() {
	doc := det.win.Document
	w, h := det.win.InnerWidth, det.win.InnerHeight

	empty := 0
	for i := 1; i <= 9; i++ {
		if det.isContainer(doc.ElementsFromPoint(w*float64(i)/10, h/2)) {
			empty++
		}
		// centre point is shared by both axes
		if i != 5 && det.isContainer(doc.ElementsFromPoint(w/2, h*float64(i)/10)) {
			empty++
		}
	}

	det.mu.Lock()
	cb := det.onResult
	if empty != probePoints {
		if det.skeleton {
			if det.loopNum == 0 {
				det.openLoopLocked()
				det.mu.Unlock()
				return
			}
			if slices.Equal(det.nowList, det.initList) {
				det.mu.Unlock()
				if cb != nil {
					cb(event.StatusError)
				}
				return
			}
		}
		det.closeLoopLocked()
	} else {
		det.openLoopLocked()
	}
	det.mu.Unlock()

	status := event.StatusOK
	if empty == probePoints {
		status = event.StatusError
	}
	if cb != nil {
		cb(status)
	}
}

func (det *Detector) openLoopLocked() {
	if det.stopLoop != nil {
		return
	}
	stop := make(chan struct{})
	det.stopLoop = stop

	go func() {
		ticker := time.NewTicker(det.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				det.mu.Lock()
				if det.skeleton {
					det.loopNum++
					det.nowList = nil
				}
				det.mu.Unlock()
				det.idle()
			case <-stop:
				return
			}
		}
	}()
}

func (det *Detector) closeLoopLocked() {
	if det.stopLoop != nil {
		close(det.stopLoop)
		det.stopLoop = nil
		log.Debug().Msg("websee: white screen loop stopped")
	}
}

// Looping reports whether the re-sampling loop is active.
func (det *Detector) Looping() bool {
	det.mu.Lock()
	defer det.mu.Unlock()
	return det.stopLoop != nil
}

// Stop ends sampling. It is safe to call at any time and more than once.
func (det *Detector) Stop() {
	det.mu.Lock()
	det.closeLoopLocked()
	remove := det.removeLoad
	det.removeLoad = nil
	det.onResult = nil
	det.mu.Unlock()

	if remove != nil {
		remove()
	}
}
