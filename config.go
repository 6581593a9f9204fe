package msglc

import (
	"sync/atomic"

	"github.com/TLCFEM/msglc/codec"
	"github.com/TLCFEM/msglc/internal/wire"
)

// Config is the immutable set of tunables a packer or reader session
// consults at construction. The zero-value-adjacent DefaultConfig is used
// unless overridden per call via Option, or globally via Configure.
type Config struct {
	// SmallObjThreshold: containers whose encoded length is below this
	// are stored without a child table; their interior becomes opaque.
	SmallObjThreshold int64
	// TrivialSize: elements at or under this encoded length are eligible
	// to join a grouped TOC block.
	TrivialSize int64
	// WriteBuffer is the size of the packer's output buffer.
	WriteBuffer int
	// ReadBuffer is the size of a physical read, and the cache's per-slot
	// buffer size.
	ReadBuffer int64
	// FastLoad enables whole-range materialisation in ToPlain while few
	// of a container's children have been accessed.
	FastLoad bool
	// FastLoadThreshold is the accessed/total fraction in [0,1] below
	// which ToPlain fetches the whole range in one read; at or above it,
	// ToPlain descends child by child.
	FastLoadThreshold float64
	// CopyChunk is the combiner's payload copy granularity.
	CopyChunk int64
	// Magic is the fixed byte string written at the start of every blob.
	Magic []byte
	// DisableGC enables the process-wide GC-disable guard for the
	// lifetime of a session (see package gcguard).
	DisableGC bool
	// Codec selects the MessagePack backend a session uses. Defaults to
	// codec.Native() when nil.
	Codec codec.Codec
	// Cached enables a cursor's per-key/per-index decoded-value cache.
	Cached bool
	// MMap selects a memory-mapped Source instead of the default
	// buffered-file Source for Open.
	MMap bool
}

// DefaultConfig returns the package defaults.
func DefaultConfig() Config {
	return Config{
		SmallObjThreshold: 8 * 1024,
		TrivialSize:       20,
		WriteBuffer:       8 * 1024 * 1024,
		ReadBuffer:        64 * 1024,
		FastLoad:          true,
		FastLoadThreshold: 0.3,
		CopyChunk:         16 * 1024 * 1024,
		Magic:             wire.DefaultMagic,
		DisableGC:         false,
		Codec:             codec.Native(),
		Cached:            true,
		MMap:              false,
	}
}

// Option mutates a Config at construction time, either the process-wide
// default (via Configure) or a single Pack/Open call's effective config.
type Option func(*Config)

func WithSmallObjThreshold(n int64) Option {
	return func(c *Config) { c.SmallObjThreshold = n }
}

func WithTrivialSize(n int64) Option {
	return func(c *Config) { c.TrivialSize = n }
}

func WithWriteBuffer(n int) Option {
	return func(c *Config) { c.WriteBuffer = n }
}

func WithReadBuffer(n int64) Option {
	return func(c *Config) { c.ReadBuffer = n }
}

func WithFastLoad(enabled bool) Option {
	return func(c *Config) { c.FastLoad = enabled }
}

func WithFastLoadThreshold(f float64) Option {
	return func(c *Config) { c.FastLoadThreshold = f }
}

func WithCopyChunk(n int64) Option {
	return func(c *Config) { c.CopyChunk = n }
}

func WithMagic(magic []byte) Option {
	return func(c *Config) { c.Magic = magic }
}

func WithDisableGC(enabled bool) Option {
	return func(c *Config) { c.DisableGC = enabled }
}

func WithCodec(cd codec.Codec) Option {
	return func(c *Config) { c.Codec = cd }
}

func WithCached(enabled bool) Option {
	return func(c *Config) { c.Cached = enabled }
}

func WithMMap(enabled bool) Option {
	return func(c *Config) { c.MMap = enabled }
}

var globalConfig atomic.Pointer[Config]

func init() {
	cfg := DefaultConfig()
	globalConfig.Store(&cfg)
}

// Configure replaces the process-wide default configuration consulted by
// any Pack/Open call that does not override a setting explicitly. It is
// safe to call concurrently with in-flight sessions; it never affects a
// session already under construction, only ones started afterward.
func Configure(opts ...Option) {
	next := CurrentConfig()
	for _, opt := range opts {
		opt(&next)
	}
	globalConfig.Store(&next)
}

// CurrentConfig returns a copy of the process-wide default configuration.
func CurrentConfig() Config {
	return *globalConfig.Load()
}

func resolveConfig(opts []Option) Config {
	cfg := CurrentConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.Native()
	}
	return cfg
}
