package dot11

import "github.com/rs/zerolog"

// A Codec translates between management frame bodies and Frame values. A
// Codec is immutable once created and safe for concurrent use.
type Codec struct {
	reg     *Registry
	log     zerolog.Logger
	metrics *Metrics
}

// An Option configures a Codec.
type Option func(c *Codec)

// WithRegistry sets the descriptor registry. The default is
// DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(c *Codec) {
		c.reg = r
	}
}

// WithLogger sets the logger used to report skipped elements and
// anomalies. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Codec) {
		c.log = l
	}
}

// WithMetrics sets the counters updated by every Unpack and Pack.
func WithMetrics(m *Metrics) Option {
	return func(c *Codec) {
		c.metrics = m
	}
}

// NewCodec creates a Codec.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		reg: DefaultRegistry(),
		log: zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.reg == nil {
		c.reg = DefaultRegistry()
	}
	return c
}

// Registry returns the registry the Codec decodes and encodes with.
func (c *Codec) Registry() *Registry { return c.reg }
