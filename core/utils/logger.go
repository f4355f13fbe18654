package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

type Logger struct {
	mu  sync.Mutex
	out *log.Logger
}

func NewLogger() *Logger {
	return &Logger{out: log.New(os.Stderr, "", log.LstdFlags|log.LUTC)}
}

func NewLoggerWithOutput(w io.Writer) *Logger {
	return &Logger{out: log.New(w, "", log.LstdFlags|log.LUTC)}
}

func (l *Logger) logf(level, format string, args ...any) {
	if l == nil || l.out == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("%s %s", level, fmt.Sprintf(format, args...))
}

func (l *Logger) Printf(format string, args ...any) { l.logf("INFO", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf("INFO", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf("WARN", format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf("ERROR", format, args...) }
