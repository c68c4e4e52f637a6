package browser

import "sync"

// PerformanceEntry carries the timing fields used by the web-vitals metrics.
// Times are milliseconds since navigation start.
type PerformanceEntry struct {
	EntryType       string
	Name            string
	StartTime       float64
	Duration        float64
	ProcessingStart float64
	ResponseStart   float64
	// Value is the layout-shift score for layout-shift entries.
	Value          float64
	HadRecentInput bool
}

type observer struct {
	entryType string
	fn        func(PerformanceEntry)
}

type Performance struct {
	mu        sync.Mutex
	entries   []PerformanceEntry
	observers []*observer
}

func NewPerformance() *Performance {
	return &Performance{}
}

// Record adds an entry and notifies observers of its type.
func (p *Performance) Record(e PerformanceEntry) {
	p.mu.Lock()
	p.entries = append(p.entries, e)
	var notify []*observer
	for _, o := range p.observers {
		if o.entryType == e.EntryType {
			notify = append(notify, o)
		}
	}
	p.mu.Unlock()

	for _, o := range notify {
		o.fn(e)
	}
}

// Observe subscribes to entries of entryType. With buffered set, already
// recorded entries are replayed first.
func (p *Performance) Observe(entryType string, buffered bool, fn func(PerformanceEntry)) (disconnect func()) {
	o := &observer{entryType: entryType, fn: fn}

	p.mu.Lock()
	p.observers = append(p.observers, o)
	var past []PerformanceEntry
	if buffered {
		past = p.entriesLocked(entryType)
	}
	p.mu.Unlock()

	for _, e := range past {
		fn(e)
	}

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, x := range p.observers {
			if x == o {
				p.observers = append(p.observers[:i], p.observers[i+1:]...)
				return
			}
		}
	}
}

func (p *Performance) Entries(entryType string) []PerformanceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entriesLocked(entryType)
}

func (p *Performance) entriesLocked(entryType string) []PerformanceEntry {
	var out []PerformanceEntry
	for _, e := range p.entries {
		if e.EntryType == entryType {
			out = append(out, e)
		}
	}
	return out
}
