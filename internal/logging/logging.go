// Package logging builds the zap logger used by the binary and attaches it to
// the eventbus.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	eventbus "github.com/hanpama/graphedge/internal/eventbus"
	events "github.com/hanpama/graphedge/internal/events"
	reqid "github.com/hanpama/graphedge/internal/reqid"
)

// New returns a logger writing to stderr at level ("debug", "info", ...)
// with a "json" or "console" encoder.
func New(level, format string) (*zap.Logger, error) {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "logging: level %q", level)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch format {
	case "", "json":
		enc = zapcore.NewJSONEncoder(cfg)
	case "console":
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	default:
		return nil, errors.Errorf("logging: unknown format %q", format)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

func requestField(ctx context.Context) zap.Field {
	if id, ok := reqid.FromContext(ctx); ok {
		return zap.String("request_id", reqid.String(id))
	}
	return zap.Skip()
}

// Subscribe logs request, operation, validation, cache and stream events
// from the global bus through logger.
func Subscribe(logger *zap.Logger) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			logger.Info("http request",
				requestField(ctx),
				zap.String("method", e.Request.Method),
				zap.String("path", e.Request.URL.Path),
				zap.Int("status", e.Status),
				zap.Int64("bytes", e.Bytes),
				zap.Duration("duration", e.Duration),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			fields := []zap.Field{
				requestField(ctx),
				zap.String("operation", e.OperationName),
				zap.String("type", e.OperationType),
				zap.Int("errors", len(e.Errors)),
				zap.Bool("streamed", e.Streamed),
				zap.Duration("duration", e.Duration),
			}
			if e.Err != nil {
				logger.Error("graphql operation failed", append(fields, zap.Error(e.Err))...)
				return
			}
			logger.Debug("graphql operation", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ValidationFailed) {
			msg := ""
			if len(e.Errors) > 0 {
				msg = e.Errors[0].Message
			}
			logger.Info("graphql validation failed", requestField(ctx), zap.String("error", msg))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.QueryCacheLookup) {
			logger.Debug("query cache lookup", requestField(ctx), zap.Bool("hit", e.Hit))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.StreamFinish) {
			fields := []zap.Field{
				requestField(ctx),
				zap.String("mode", e.Mode),
				zap.Int("payloads", e.Payloads),
				zap.Duration("duration", e.Duration),
			}
			if e.Err != nil {
				logger.Warn("stream aborted", append(fields, zap.Error(e.Err))...)
				return
			}
			logger.Info("stream finished", fields...)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
