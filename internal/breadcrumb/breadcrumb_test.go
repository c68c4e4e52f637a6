package breadcrumb

import (
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/websee/internal/event"
)

func crumb(ts int64) event.Breadcrumb {
	return event.Breadcrumb{Type: event.Click, Category: event.CategoryClick, Status: event.StatusOK, Time: ts}
}

func TestPush_EvictsOldest(t *testing.T) {
	buf := New(3, nil)
	for ts := int64(1); ts <= 5; ts++ {
		buf.Push(crumb(ts))
	}

	snap := buf.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, int64(3), snap[0].Time)
	assert.Equal(t, int64(4), snap[1].Time)
	assert.Equal(t, int64(5), snap[2].Time)
}

func TestPush_SortsOutOfOrder(t *testing.T) {
	buf := New(10, nil)
	buf.Push(crumb(30))
	buf.Push(crumb(10))
	buf.Push(crumb(20))

	snap := buf.Snapshot()
	assert.Equal(t, []int64{10, 20, 30}, []int64{snap[0].Time, snap[1].Time, snap[2].Time})
}

func TestPush_DefaultsTime(t *testing.T) {
	buf := New(0, nil)
	buf.Push(event.Breadcrumb{Type: event.Custom})

	snap := buf.Snapshot()
	require.Len(t, snap, 1)
	assert.NotZero(t, snap[0].Time)
	assert.Equal(t, DefaultCapacity, buf.Capacity())
}

func TestPush_BeforePushHook(t *testing.T) {
	buf := New(5, func(b event.Breadcrumb) (event.Breadcrumb, bool) {
		if b.Type == event.Click {
			return b, false
		}
		b.Data = "rewritten"
		return b, true
	})

	buf.Push(crumb(1))
	buf.Push(event.Breadcrumb{Type: event.Fetch, Time: 2})

	snap := buf.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, event.Fetch, snap[0].Type)
	assert.Equal(t, "rewritten", snap[0].Data)
}

func TestSnapshot_IsACopy(t *testing.T) {
	buf := New(5, nil)
	buf.Push(crumb(1))

	snap := buf.Snapshot()
	snap[0].Time = 99
	assert.Equal(t, int64(1), buf.Snapshot()[0].Time)
}

func TestClear(t *testing.T) {
	buf := New(5, nil)
	buf.Push(crumb(1))
	buf.Clear()

	assert.Zero(t, buf.Len())
	assert.Nil(t, buf.Snapshot())
}

// Pushing in increasing time order must retain exactly the newest entries.
func TestPropertyKeepsMostRecent(t *testing.T) {
	f := func(n uint8, capOffset uint8) bool {
		capacity := int(capOffset%32) + 1
		buf := New(capacity, nil)
		for i := 1; i <= int(n); i++ {
			buf.Push(crumb(int64(i)))
		}

		snap := buf.Snapshot()
		want := int(n)
		if want > capacity {
			want = capacity
		}
		if len(snap) != want {
			return false
		}
		for i, b := range snap {
			if b.Time != int64(int(n)-want+i+1) {
				return false
			}
		}
		return true
	}

	require.NoError(t, quick.Check(f, &quick.Config{MaxCount: 500}))
}

// Random arrival order still yields ascending timestamps and a bounded length.
func TestPropertyAscendingAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	buf := New(DefaultCapacity, nil)
	for i := 0; i < 200; i++ {
		buf.Push(crumb(rng.Int63n(1_000_000) + 1))
		snap := buf.Snapshot()
		require.LessOrEqual(t, len(snap), DefaultCapacity)
		for j := 1; j < len(snap); j++ {
			require.LessOrEqual(t, snap[j-1].Time, snap[j].Time)
		}
	}
}

func TestCategory(t *testing.T) {
	cases := map[event.Type]event.Category{
		event.XHR:                event.CategoryHTTP,
		event.Fetch:              event.CategoryHTTP,
		event.Click:              event.CategoryClick,
		event.History:            event.CategoryRoute,
		event.Hashchange:         event.CategoryRoute,
		event.Resource:           event.CategoryResource,
		event.Error:              event.CategoryCodeError,
		event.UnhandledRejection: event.CategoryCodeError,
		event.Custom:             event.CategoryCustom,
		event.Performance:        event.CategoryCustom,
	}
	for typ, want := range cases {
		assert.Equal(t, want, Category(typ), "type %s", typ)
	}
}
