package colgo

import (
	"github.com/hupe1980/colgo/upload"
)

type options struct {
	logger          *Logger
	uploadRateLimit int
	uploadResultFn  func(upload.Result)
}

// Option configures Pipeline construction behavior.
type Option func(*options)

// WithLogger configures structured logging for all pipeline components.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithUploadRateLimit throttles aggregate image-upload throughput to roughly
// bytesPerSec. Zero disables throttling (the default).
func WithUploadRateLimit(bytesPerSec int) Option {
	return func(o *options) {
		o.uploadRateLimit = bytesPerSec
	}
}

// WithUploadResultFunc registers a callback invoked with every terminal
// upload outcome. The callback runs on upload worker goroutines and must not
// block.
func WithUploadResultFunc(fn func(upload.Result)) Option {
	return func(o *options) {
		o.uploadResultFn = fn
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger: NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
