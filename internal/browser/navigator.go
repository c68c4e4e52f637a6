package browser

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MaxBeaconSize is the payload limit above which sendBeacon refuses.
const MaxBeaconSize = 64 << 10

// BeaconFunc queues data for delivery and reports whether it was accepted.
type BeaconFunc func(rawURL string, data []byte) bool

type Navigator struct {
	UserAgent  string
	SendBeacon *Slot[BeaconFunc]

	inflight sync.WaitGroup
}

func newNavigator(userAgent string, client *http.Client) *Navigator {
	n := &Navigator{UserAgent: userAgent}
	n.SendBeacon = NewSlot[BeaconFunc](func(rawURL string, data []byte) bool {
		if len(data) > MaxBeaconSize {
			log.Debug().Int("size", len(data)).Msg("websee: beacon payload over limit")
			return false
		}
		req, err := http.NewRequest(http.MethodPost, rawURL, bytes.NewReader(data))
		if err != nil {
			return false
		}
		req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
		n.inflight.Add(1)
		go func() {
			defer n.inflight.Done()
			resp, err := client.Do(req)
			if err != nil {
				log.Debug().Err(err).Str("url", rawURL).Msg("websee: beacon delivery failed")
				return
			}
			resp.Body.Close()
		}()
		return true
	})
	return n
}

// Wait blocks until every beacon accepted by the default sendBeacon has
// been delivered or failed, or until timeout. It reports whether all of
// them finished.
func (n *Navigator) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Beacon calls the installed sendBeacon.
func (n *Navigator) Beacon(rawURL string, data []byte) bool {
	fn := n.SendBeacon.Get()
	if fn == nil {
		return false
	}
	return fn(rawURL, data)
}

// Recorder captures page mutations for session replay.
type Recorder interface {
	// Record starts capturing. emit receives each event; checkout is true on
	// the full snapshot taken every checkoutEvery.
	Record(emit func(ev []byte, checkout bool), checkoutEvery time.Duration) (stop func())
}
