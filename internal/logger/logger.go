package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"invoicecam/internal/config"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

type level int

const (
	levelInfo level = iota
	levelWarning
	levelError
)

var levels = [...]struct {
	file   string
	prefix string
	stream io.Writer
}{
	levelInfo:    {InfoFile, "INFO    ", os.Stdout},
	levelWarning: {WarningFile, "WARNING ", os.Stdout},
	levelError:   {ErrorFile, "ERROR   ", os.Stderr},
}

// Logger writes info, warning and error entries to the console and to
// one append-only file per level under the log directory.
type Logger struct {
	mu      sync.Mutex
	dir     string
	outputs [len(levels)]*log.Logger
	files   []*os.File
}

// NewLogger opens the per-level files under cfg.LogDirectory. A logger
// that cannot write its files is fatal at startup.
func NewLogger(cfg *config.Config) *Logger {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	l := &Logger{dir: cfg.LogDirectory}
	for lvl, lv := range levels {
		path := filepath.Join(l.dir, lv.file)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("Failed to open log file %s: %v", path, err)
		}
		l.files = append(l.files, f)
		l.outputs[lvl] = log.New(io.MultiWriter(lv.stream, f), lv.prefix, log.Ldate|log.Ltime|log.Lshortfile)
	}
	return l
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.write(levelInfo, format, v...)
}

func (l *Logger) Warning(format string, v ...interface{}) {
	l.write(levelWarning, format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.write(levelError, format, v...)
}

// write reports the caller of Info/Warning/Error as the source line.
func (l *Logger) write(lvl level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outputs[lvl].Output(3, fmt.Sprintf(format, v...))
}

// Directory returns the directory the log files live in.
func (l *Logger) Directory() string {
	return l.dir
}

// CleanLogs truncates one of the log files in the log directory.
func (l *Logger) CleanLogs(fileName string) error {
	path := filepath.Join(l.dir, filepath.Base(fileName))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening file: %v", err)
		return err
	}
	defer file.Close()

	l.Info("Log file %s has been cleared.", fileName)
	return nil
}

// Close releases the underlying log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
