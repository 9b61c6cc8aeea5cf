package internal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger writes the run log. Entries at info level and above are also
// relayed to any forwarded observers.
type Logger struct {
	*logrus.Logger

	mu sync.Mutex
	f  *os.File
}

// NewLogger appends to path, or discards output when path is empty.
func NewLogger(path string) (*Logger, error) {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	if path == "" {
		l.SetOutput(io.Discard)
		return &Logger{Logger: l}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.SetOutput(f)
	return &Logger{Logger: l, f: f}, nil
}

// Forward relays info, warning and error entries to obs.
func (l *Logger) Forward(obs Observer) {
	l.AddHook(&observerHook{obs: obs})
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	l.SetOutput(io.Discard)
	err := l.f.Close()
	l.f = nil
	return err
}

type observerHook struct {
	obs Observer
}

func (h *observerHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}
}

func (h *observerHook) Fire(e *logrus.Entry) error {
	msg := e.Message
	if src, ok := e.Data["src"]; ok {
		msg = fmt.Sprintf("%v: %s", src, msg)
	} else if dest, ok := e.Data["dest"]; ok {
		msg = fmt.Sprintf("%v: %s", dest, msg)
	}
	h.obs.OnLog(e.Level, msg)
	return nil
}
