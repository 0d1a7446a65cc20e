// Package logger holds the process-wide logrus logger shared by every engine package.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	log = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(formatter())
	l.SetLevel(logrus.WarnLevel)
	return l
}

func formatter() logrus.Formatter {
	return &nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	}
}

// Output selects where Init sends log lines.
type Output struct {
	// Dir receives one file per day when not empty.
	Dir string
	// Terminal also writes to stdout.
	Terminal bool
}

// Init replaces the process logger. The returned closer releases the log file, if any.
func Init(out Output, level string) (io.Closer, error) {
	l := logrus.New()
	l.SetFormatter(formatter())

	writers := make([]io.Writer, 0, 2)
	var file *os.File
	if out.Dir != "" {
		if err := os.MkdirAll(out.Dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		filename := filepath.Join(out.Dir, time.Now().Format("2006-01-02.log"))
		var err error
		file, err = os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, file)
	}
	if out.Terminal {
		writers = append(writers, os.Stdout)
	}
	if len(writers) == 0 {
		l.SetOutput(io.Discard)
	} else {
		l.SetOutput(ansicolor.NewAnsiColorWriter(io.MultiWriter(writers...)))
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	Set(l)
	if file == nil {
		return io.NopCloser(nil), nil
	}
	return file, nil
}

// Set installs l as the process logger. Nil restores the default.
func Set(l *logrus.Logger) {
	if l == nil {
		l = newDefault()
	}
	mu.Lock()
	log = l
	mu.Unlock()
}

// L returns the process logger.
func L() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}
