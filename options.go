package assetq

import "log/slog"

// Option configures a Loader during creation.
//
// Example:
//
//	// Default behavior
//	loader := assetq.NewLoader()
//
//	// Keep the worker stopped after an in-flight cancel
//	loader := assetq.NewLoader(assetq.WithResumeAfterCancel(false))
type Option func(*loaderOptions)

// loaderOptions holds optional configuration for Loader creation.
type loaderOptions struct {
	resumeAfterCancel bool
	logger            *slog.Logger // nil means follow the package logger
}

// defaultLoaderOptions returns the default loader options.
func defaultLoaderOptions() loaderOptions {
	return loaderOptions{resumeAfterCancel: true}
}

// WithResumeAfterCancel controls whether the worker is restarted after
// Cancel had to stop it to remove an in-flight asset. The default is
// true: loading continues with the next pending asset. Pass false when
// the caller wants to decide explicitly, via Start, when loading
// resumes, for example during a level teardown that cancels many
// assets in a row.
func WithResumeAfterCancel(resume bool) Option {
	return func(o *loaderOptions) {
		o.resumeAfterCancel = resume
	}
}

// WithLogger gives the Loader its own logger instead of the package
// logger configured by [SetLogger]. Useful when one process runs
// several loaders and their output needs to be told apart.
func WithLogger(l *slog.Logger) Option {
	return func(o *loaderOptions) {
		o.logger = l
	}
}
