// Package logging builds the *log.Logger shared by every component.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// File is the rotated log file, empty disables file output
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Stderr also writes every line to stderr
	Stderr bool
	// Extra receives every line too, such as a console log pane
	Extra []io.Writer
}

// Logger owns the outputs behind a *log.Logger
type Logger struct {
	*log.Logger
	file *lumberjack.Logger
}

func New(opts Options) (*Logger, error) {
	var outputs []io.Writer
	var file *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, err
		}
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		outputs = append(outputs, file)
	}
	if opts.Stderr {
		outputs = append(outputs, os.Stderr)
	}
	outputs = append(outputs, opts.Extra...)

	var w io.Writer = io.Discard
	switch len(outputs) {
	case 0:
	case 1:
		w = outputs[0]
	default:
		w = io.MultiWriter(outputs...)
	}
	return &Logger{
		Logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		file:   file,
	}, nil
}

// Rotate starts a new log file
func (l *Logger) Rotate() error {
	if l.file == nil {
		return nil
	}
	return l.file.Rotate()
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
