// Package metrics defines the minimal instrumentation surface the queue
// records through: monotonic counters, an up/down counter for the pending
// gauge, and a histogram for residence times. The Basic provider is an
// in-memory implementation suitable for tests and lightweight hosts; Noop
// is the default and discards everything.
package metrics

// Provider constructs instruments by name. Asking twice for the same name
// must return the same instrument. Implementations must be safe for
// concurrent use.
type Provider interface {
	Counter(name string, opts ...InstrumentOption) Counter
	UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter
	Histogram(name string, opts ...InstrumentOption) Histogram
}

// Counter records monotonic counts (submissions, decays, evictions).
type Counter interface {
	Add(n int64)
}

// UpDownCounter records values that move both ways (currently pending drifts).
type UpDownCounter interface {
	Add(n int64)
}

// Histogram records a distribution of float64 measurements
// (drift residence time in seconds).
type Histogram interface {
	Record(v float64)
}

// InstrumentConfig carries advisory instrument metadata.
type InstrumentConfig struct {
	Description string
	Unit        string
}

// InstrumentOption mutates InstrumentConfig.
type InstrumentOption func(*InstrumentConfig)

// WithDescription sets an advisory description for the instrument.
func WithDescription(desc string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Description = desc }
}

// WithUnit sets an advisory unit for the instrument (e.g., "1", "seconds").
func WithUnit(unit string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Unit = unit }
}
