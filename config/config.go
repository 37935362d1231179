// Package config carries the two construction-time configuration axes
// spec.md §6 names: offset width and out-of-memory policy. Neither is
// an environment variable or flag - the library is a dependency, not a
// process.
package config

// OffsetWidth selects how wide a bitset's logical offsets are allowed
// to be. BITSET_64BIT_OFFSETS in the reference widens the offset type
// at compile time; here it is a per-bitset construction choice.
type OffsetWidth int

const (
	// Width32 caps offsets at the 32-bit unsigned range (the default).
	Width32 OffsetWidth = 32
	// Width64 allows the full 64-bit unsigned offset range, at the cost
	// of needing more chained max-length fills to bridge sparse runs.
	Width64 OffsetWidth = 64
)

// OOMPolicy selects how an allocation failure is reported.
type OOMPolicy int

const (
	// OOMAbort panics on allocation failure, matching the reference's
	// bitset_oom() macro which prints to stderr and calls exit(1).
	OOMAbort OOMPolicy = iota
	// OOMPropagate surfaces allocation failure as an error instead of
	// aborting the process. Partial mutation is never observable under
	// either policy.
	OOMPropagate
)

// Config bundles the construction-time options for a Bitset or List.
type Config struct {
	OffsetWidth OffsetWidth
	OOMPolicy   OOMPolicy
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithOffsetWidth64 configures a bitset/list for 64-bit offsets.
func WithOffsetWidth64() Option {
	return func(c *Config) { c.OffsetWidth = Width64 }
}

// WithOOMPolicy sets the out-of-memory policy explicitly.
func WithOOMPolicy(p OOMPolicy) Option {
	return func(c *Config) { c.OOMPolicy = p }
}

// Default returns the reference's own defaults: 32-bit offsets, abort
// on OOM.
func Default() Config {
	return Config{OffsetWidth: Width32, OOMPolicy: OOMAbort}
}

// Resolve applies opts over Default and returns the resulting Config.
func Resolve(opts ...Option) Config {
	c := Default()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// MaxOffset returns the largest offset value representable under w.
func (w OffsetWidth) MaxOffset() uint64 {
	if w == Width32 {
		return 1<<32 - 1
	}
	return 1<<64 - 1
}
