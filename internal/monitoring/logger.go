package monitoring

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging for requests and analyses
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout at level
func NewLogger(level slog.Level) *Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a JSON logger writing to w
func NewLoggerTo(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip, requestID string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"request_id", requestID,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// AnalysisLogger logs one finished analysis
func (l *Logger) AnalysisLogger(fontName string, userID int64, imageBytes int, match int, duration time.Duration) {
	l.Info("Analysis Completed",
		"font_name", fontName,
		"user_id", userID,
		"image_bytes", imageBytes,
		"match_percentage", match,
		"duration_ms", duration.Milliseconds(),
	)
}

// APIErrorLogger logs errors attached to a request
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
	)
}

// SlowRequestLogger flags requests over the slow threshold
func (l *Logger) SlowRequestLogger(method, path string, duration time.Duration) {
	l.Warn("Slow Request",
		"method", method,
		"path", path,
		"duration_ms", duration.Milliseconds(),
	)
}
