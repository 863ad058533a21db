package plagio

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with plagio-specific context. This provides
// structured logging with consistent field names across builder, engine,
// and aggregator.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDir adds the shard directory field to the logger.
func (l *Logger) WithDir(dir string) *Logger {
	return &Logger{Logger: l.Logger.With("dir", dir)}
}

// WithDocID adds an external document id field to the logger.
func (l *Logger) WithDocID(id string) *Logger {
	return &Logger{Logger: l.Logger.With("doc_id", id)}
}

// LogBuild logs a completed (or failed) index build.
func (l *Logger) LogBuild(ctx context.Context, outDir string, docsIndexed int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"out_dir", outDir,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "build completed",
		"out_dir", outDir,
		"docs_indexed", docsIndexed,
	)
}

// LogLoad logs a shard load.
func (l *Logger) LogLoad(ctx context.Context, dir string, nDocs uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "shard load failed",
			"dir", dir,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "shard loaded",
		"dir", dir,
		"n_docs", nDocs,
	)
}

// LogSearch logs a single-shard search.
func (l *Logger) LogSearch(ctx context.Context, dir string, topK, hitsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"dir", dir,
			"top_k", topK,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"dir", dir,
		"top_k", topK,
		"hits", hitsFound,
	)
}

// LogShardLoad logs the aggregator's ensure-loaded-with-retry path for
// one shard entry.
func (l *Logger) LogShardLoad(ctx context.Context, dir string, attempt int, err error) {
	if err != nil {
		l.WarnContext(ctx, "shard load attempt failed",
			"dir", dir,
			"attempt", attempt,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "shard load attempt succeeded",
		"dir", dir,
		"attempt", attempt,
	)
}

// LogEvict logs an aggregator cache eviction.
func (l *Logger) LogEvict(ctx context.Context, dir string, reason string) {
	l.DebugContext(ctx, "shard evicted",
		"dir", dir,
		"reason", reason,
	)
}
