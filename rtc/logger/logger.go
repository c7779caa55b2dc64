package logger

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/pion/logging"
)

var (
	_ Logger                = new(stubLogger)
	_ Logger                = new(defaultLogger)
	_ logging.LeveledLogger = new(leveledLogger)
	_ logging.LoggerFactory = new(Factory)
)

type Logger interface {
	Error(v ...interface{})
	Errorf(format string, v ...interface{})

	Warn(v ...interface{})
	Warnf(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Trace(v ...interface{})
	Tracef(format string, v ...interface{})

	SetLevel(level int)
	SetOutput(w io.Writer)
}

const (
	LevelError = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelAll
)

func NewLogger(level int, trace string) Logger {
	return newDefaultLogger(level, trace)
}

// NewStubLogger discards everything.
func NewStubLogger() Logger {
	return &stubLogger{}
}

func newDefaultLogger(level int, trace string) *defaultLogger {
	return &defaultLogger{
		level: level,
		trace: fmt.Sprintf("[%s]", trace),
	}
}

type stubLogger struct{}

func (l *stubLogger) SetLevel(_ int) {
}

func (l *stubLogger) SetOutput(_ io.Writer) {
}

func (l *stubLogger) Error(_ ...interface{}) {
}

func (l *stubLogger) Errorf(_ string, _ ...interface{}) {
}

func (l *stubLogger) Warn(_ ...interface{}) {
}

func (l *stubLogger) Warnf(_ string, _ ...interface{}) {
}

func (l *stubLogger) Info(_ ...interface{}) {
}

func (l *stubLogger) Infof(_ string, _ ...interface{}) {
}

func (l *stubLogger) Debug(_ ...interface{}) {
}

func (l *stubLogger) Debugf(_ string, _ ...interface{}) {
}

func (l *stubLogger) Trace(_ ...interface{}) {
}

func (l *stubLogger) Tracef(_ string, _ ...interface{}) {
}

type defaultLogger struct {
	m     sync.RWMutex
	level int
	trace string
	out   *log.Logger
}

func (l *defaultLogger) enabled(level int) bool {
	l.m.RLock()
	defer l.m.RUnlock()
	return l.level >= level
}

func (l *defaultLogger) SetLevel(level int) {
	l.m.Lock()
	l.level = level
	l.m.Unlock()
}

// SetOutput redirects this logger only; the std logger redirects the log package.
func (l *defaultLogger) SetOutput(w io.Writer) {
	l.m.Lock()
	l.out = log.New(w, "", log.LstdFlags|log.Lshortfile)
	l.m.Unlock()
}

func (l *defaultLogger) Output(calldepth int, s string) {
	l.m.RLock()
	out := l.out
	l.m.RUnlock()
	if out != nil {
		_ = out.Output(calldepth, s)
		return
	}
	_ = log.Output(calldepth, s)
}

const defaultCallDepth = 4

func (l *defaultLogger) print(level int, tag string, v []interface{}) {
	if !l.enabled(level) {
		return
	}
	v = append([]interface{}{l.trace, tag}, v...)
	l.Output(defaultCallDepth, fmt.Sprintln(v...))
}

func (l *defaultLogger) Error(v ...interface{}) {
	l.print(LevelError, "[ERROR]", v)
}

func (l *defaultLogger) Errorf(format string, v ...interface{}) {
	l.print(LevelError, "[ERROR]", []interface{}{fmt.Sprintf(format, v...)})
}

func (l *defaultLogger) Warn(v ...interface{}) {
	l.print(LevelWarn, "[WARN]", v)
}

func (l *defaultLogger) Warnf(format string, v ...interface{}) {
	l.print(LevelWarn, "[WARN]", []interface{}{fmt.Sprintf(format, v...)})
}

func (l *defaultLogger) Info(v ...interface{}) {
	l.print(LevelInfo, "[INFO]", v)
}

func (l *defaultLogger) Infof(format string, v ...interface{}) {
	l.print(LevelInfo, "[INFO]", []interface{}{fmt.Sprintf(format, v...)})
}

func (l *defaultLogger) Debug(v ...interface{}) {
	l.print(LevelDebug, "[DEBUG]", v)
}

func (l *defaultLogger) Debugf(format string, v ...interface{}) {
	l.print(LevelDebug, "[DEBUG]", []interface{}{fmt.Sprintf(format, v...)})
}

func (l *defaultLogger) Trace(v ...interface{}) {
	l.print(LevelAll, "[TRACE]", v)
}

func (l *defaultLogger) Tracef(format string, v ...interface{}) {
	l.print(LevelAll, "[TRACE]", []interface{}{fmt.Sprintf(format, v...)})
}

// Factory hands out scoped loggers to pion components (dtls) and to the srtp session.
type Factory struct {
	Level  int
	Writer io.Writer
}

// NewLoggerFactory returns a pion logging.LoggerFactory writing through this package.
func NewLoggerFactory(level int) *Factory {
	return &Factory{Level: level}
}

func (f *Factory) NewLogger(scope string) logging.LeveledLogger {
	l := newDefaultLogger(f.Level, scope)
	if f.Writer != nil {
		l.SetOutput(f.Writer)
	}
	return &leveledLogger{l: l}
}

// leveledLogger narrows the variadic methods to pion's single message signature.
type leveledLogger struct {
	l *defaultLogger
}

func (p *leveledLogger) Trace(msg string) {
	p.l.print(LevelAll, "[TRACE]", []interface{}{msg})
}

func (p *leveledLogger) Tracef(format string, args ...interface{}) {
	p.l.print(LevelAll, "[TRACE]", []interface{}{fmt.Sprintf(format, args...)})
}

func (p *leveledLogger) Debug(msg string) {
	p.l.print(LevelDebug, "[DEBUG]", []interface{}{msg})
}

func (p *leveledLogger) Debugf(format string, args ...interface{}) {
	p.l.print(LevelDebug, "[DEBUG]", []interface{}{fmt.Sprintf(format, args...)})
}

func (p *leveledLogger) Info(msg string) {
	p.l.print(LevelInfo, "[INFO]", []interface{}{msg})
}

func (p *leveledLogger) Infof(format string, args ...interface{}) {
	p.l.print(LevelInfo, "[INFO]", []interface{}{fmt.Sprintf(format, args...)})
}

func (p *leveledLogger) Warn(msg string) {
	p.l.print(LevelWarn, "[WARN]", []interface{}{msg})
}

func (p *leveledLogger) Warnf(format string, args ...interface{}) {
	p.l.print(LevelWarn, "[WARN]", []interface{}{fmt.Sprintf(format, args...)})
}

func (p *leveledLogger) Error(msg string) {
	p.l.print(LevelError, "[ERROR]", []interface{}{msg})
}

func (p *leveledLogger) Errorf(format string, args ...interface{}) {
	p.l.print(LevelError, "[ERROR]", []interface{}{fmt.Sprintf(format, args...)})
}

var std = newDefaultLogger(LevelInfo, "STD")

func Error(v ...interface{}) {
	std.Error(v...)
}

func Errorf(format string, v ...interface{}) {
	std.Errorf(format, v...)
}

func Warn(v ...interface{}) {
	std.Warn(v...)
}

func Warnf(format string, v ...interface{}) {
	std.Warnf(format, v...)
}

func Info(v ...interface{}) {
	std.Info(v...)
}

func Infof(format string, v ...interface{}) {
	std.Infof(format, v...)
}

func Debug(v ...interface{}) {
	std.Debug(v...)
}

func Debugf(format string, v ...interface{}) {
	std.Debugf(format, v...)
}

func SetLevel(level int) {
	std.SetLevel(level)
}

func SetOutput(w io.Writer) {
	log.SetOutput(w)
}
