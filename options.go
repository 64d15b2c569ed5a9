package scanout

import (
	"log/slog"

	"github.com/gogpu/scanout/backend"
)

// SessionOption configures a Session during creation.
//
// Example:
//
//	s, err := scanout.NewSession(dev, presenter,
//	    scanout.WithResolver(resolver),
//	    scanout.WithContext(window),
//	)
type SessionOption func(*sessionOptions)

// sessionOptions holds optional configuration for Session creation.
type sessionOptions struct {
	logger   *slog.Logger
	fatal    func(error)
	resolver Resolver
	importer Importer
	ctx      backend.Context
}

// defaultSessionOptions returns the default session options.
func defaultSessionOptions() sessionOptions {
	return sessionOptions{
		logger: nil, // Will be set to Logger() if nil
		fatal:  panicOnFatal,
	}
}

// panicOnFatal is the default fatal handler.
func panicOnFatal(err error) {
	panic(err)
}

// WithLogger sets the logger of one session, overriding Logger().
func WithLogger(l *slog.Logger) SessionOption {
	return func(o *sessionOptions) {
		o.logger = l
	}
}

// WithFatalHandler sets the function called when a GPU resource cannot be
// allocated or the output surface has the wrong format. The default
// panics. A command would typically log and exit:
//
//	scanout.WithFatalHandler(func(err error) {
//	    log.Fatalf("scanout: %v", err)
//	})
//
// If the handler returns, the failing call returns the error.
func WithFatalHandler(fn func(error)) SessionOption {
	return func(o *sessionOptions) {
		if fn != nil {
			o.fatal = fn
		}
	}
}

// WithResolver sets how scanout and cursor handles become textures.
func WithResolver(r Resolver) SessionOption {
	return func(o *sessionOptions) {
		o.resolver = r
	}
}

// WithImporter enables DMA-buf scanout and cursor updates.
func WithImporter(i Importer) SessionOption {
	return func(o *sessionOptions) {
		o.importer = i
	}
}

// WithContext sets the rendering context made current before every
// operation that touches the device.
func WithContext(ctx backend.Context) SessionOption {
	return func(o *sessionOptions) {
		o.ctx = ctx
	}
}
