package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicProvider_InstrumentReuse(t *testing.T) {
	p := NewBasicProvider()

	c1 := p.Counter("c", WithDescription("a counter"), WithUnit("1"))
	c2 := p.Counter("c")
	require.Same(t, c1.(*BasicCounter), c2.(*BasicCounter))

	u1 := p.UpDownCounter("u")
	u2 := p.UpDownCounter("u")
	require.Same(t, u1.(*BasicUpDownCounter), u2.(*BasicUpDownCounter))

	h1 := p.Histogram("h")
	h2 := p.Histogram("h")
	require.Same(t, h1.(*BasicHistogram), h2.(*BasicHistogram))
}

func TestBasicProvider_ConcurrentAdds(t *testing.T) {
	p := NewBasicProvider()

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := p.Counter("c")
			u := p.UpDownCounter("u")
			h := p.Histogram("h")
			for range perGoroutine {
				c.Add(1)
				u.Add(1)
				u.Add(-1)
				h.Record(0.5)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, goroutines*perGoroutine, p.CounterValue("c"))
	require.EqualValues(t, 0, p.UpDownValue("u"))

	s := p.HistogramValue("h")
	require.EqualValues(t, goroutines*perGoroutine, s.Count)
	require.Equal(t, 0.5, s.Min)
	require.Equal(t, 0.5, s.Max)
	require.Equal(t, 0.5, s.Mean)
}

func TestBasicHistogram_Snapshot(t *testing.T) {
	var h BasicHistogram
	require.Zero(t, h.Snapshot().Count)

	h.Record(2)
	h.Record(6)
	h.Record(1)

	s := h.Snapshot()
	require.EqualValues(t, 3, s.Count)
	require.Equal(t, 9.0, s.Sum)
	require.Equal(t, 1.0, s.Min)
	require.Equal(t, 6.0, s.Max)
	require.Equal(t, 3.0, s.Mean)
}

func TestProvider_UnknownInstruments(t *testing.T) {
	p := NewBasicProvider()
	require.Zero(t, p.CounterValue("missing"))
	require.Zero(t, p.UpDownValue("missing"))
	require.Zero(t, p.HistogramValue("missing").Count)
}

func TestNoopProvider(t *testing.T) {
	p := NewNoopProvider()
	// must not panic; measurements are discarded.
	p.Counter("c").Add(1)
	p.UpDownCounter("u").Add(-1)
	p.Histogram("h").Record(1.5)
}
