package wazero

import (
	"bytes"
	"context"
	"log/slog"
)

// logWriter turns guest stdout/stderr into log records, one per line.
type logWriter struct {
	logger *slog.Logger
	buf    bytes.Buffer
	level  slog.Level
}

func newLogWriter(logger *slog.Logger, module string, contextID int, stderr bool) *logWriter {
	level := slog.LevelInfo
	stream := "stdout"
	if stderr {
		level = slog.LevelWarn
		stream = "stderr"
	}
	return &logWriter{
		logger: logger.With("engine", EngineName, "module", module, "context", contextID, "stream", stream),
		level:  level,
	}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line: keep it for the next write.
			w.buf.Reset()
			w.buf.Write(line)
			return len(p), nil
		}
		w.logger.Log(context.Background(), w.level, string(bytes.TrimRight(line, "\r\n")))
	}
}
