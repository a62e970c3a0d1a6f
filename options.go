package aimdisk

import (
	"github.com/aimdisk/aimdisk/hnsw"
	"github.com/aimdisk/aimdisk/store"
)

type options struct {
	format       store.Format
	formatSet    bool
	logger       *Logger
	metrics      MetricsCollector
	keywordIndex bool
	hnswOptions  []func(*hnsw.Options)
}

// Option configures a disk at construction time.
type Option func(*options)

// WithFormat picks the durable layout for Create. Without it the layout
// follows the file extension (".idz" selects the key/value layout). Open
// ignores this option: the layout of an existing disk is detected from the
// file itself.
func WithFormat(format store.Format) Option {
	return func(o *options) {
		o.format = format
		o.formatSet = true
	}
}

// WithLogger routes disk logging to the given logger instead of discarding
// it.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics attaches a metrics collector to the disk's operations.
func WithMetrics(collector MetricsCollector) Option {
	return func(o *options) {
		o.metrics = collector
	}
}

// WithKeywordIndex builds an in-memory keyword index over chunk content on
// open, enabling KeywordSearch for the session. It is rebuilt every open
// and never persisted.
func WithKeywordIndex() Option {
	return func(o *options) {
		o.keywordIndex = true
	}
}

// WithHNSWOptions tunes the construction parameters of the vector index.
// A reopened disk must use the same parameters it was written with to
// reproduce its search behavior.
func WithHNSWOptions(optFns ...func(*hnsw.Options)) Option {
	return func(o *options) {
		o.hnswOptions = append(o.hnswOptions, optFns...)
	}
}

func resolveOptions(optFns []Option) options {
	opts := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.logger == nil {
		opts.logger = NoopLogger()
	}
	if opts.metrics == nil {
		opts.metrics = NoopMetricsCollector{}
	}

	return opts
}
