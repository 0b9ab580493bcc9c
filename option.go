package crushpay

import (
	"github.com/crushlink/crushpay/logger"
	"github.com/crushlink/crushpay/metrics"
	"github.com/crushlink/crushpay/store"
)

type options struct {
	log     logger.Logger
	metrics metrics.Recorder
	store   store.Store
}

func defaultOptions() options {
	return options{
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
}

type Option func(*options)

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// WithStore replaces the default in-memory link store, typically with
// store.NewPostgresStore.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}
