package log

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/YuminosukeSato/studentperf/pkg/errors"
)

// RunLogTimeFormat names per-run log files, e.g. logs/2024-03-01_14-05-09.log.
const RunLogTimeFormat = "2006-01-02_15-04-05"

// RunLog is a log file created for a single training or prediction run.
// Records go both to the file (JSON) and to the console writer.
type RunLog struct {
	Path   string
	Logger Logger

	file *os.File
}

// OpenRunLog creates dir if needed and opens a log file named after start.
// A nil console disables console output.
func OpenRunLog(dir string, start time.Time, level Level, console io.Writer) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perrors.Wrapf(err, "create log directory %s", dir)
	}
	path := filepath.Join(dir, start.Format(RunLogTimeFormat)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, perrors.Wrapf(err, "open log file %s", path)
	}

	var w io.Writer = f
	if console != nil {
		w = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
	}
	return &RunLog{Path: path, Logger: NewZerologLogger(w, level), file: f}, nil
}

// Close flushes and closes the log file.
func (r *RunLog) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	if err := r.file.Sync(); err != nil {
		_ = r.file.Close()
		return perrors.WithStack(err)
	}
	return perrors.WithStack(r.file.Close())
}
