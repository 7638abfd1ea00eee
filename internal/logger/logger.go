package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	debugColor   = color.New(color.FgHiBlack).SprintFunc()
	infoColor    = color.New(color.FgCyan).SprintFunc()
	warnColor    = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	processColor = color.New(color.FgGreen).SprintFunc()
	dbColor      = color.New(color.FgBlue).SprintFunc()
	kafkaColor   = color.New(color.FgMagenta).SprintFunc()
	paymentColor = color.New(color.FgHiGreen).SprintFunc()
	orderColor   = color.New(color.FgHiCyan).SprintFunc()
	pushColor    = color.New(color.FgHiMagenta).SprintFunc()
	apiColor     = color.New(color.FgWhite).SprintFunc()
	secColor     = color.New(color.FgHiRed).SprintFunc()
)

// Logger writes one line per event: timestamp, level, category, message.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
}

// NewLogger logs to stdout. LOG_LEVEL=debug enables debug lines.
func NewLogger() *Logger {
	level := LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = LevelDebug
	}
	return New(os.Stdout, level)
}

func New(out io.Writer, level Level) *Logger {
	return &Logger{out: out, level: level}
}

// Discard is a logger for tests that do not inspect output.
func Discard() *Logger {
	return New(io.Discard, LevelError+1)
}

func (l *Logger) write(level Level, tag string, paint func(...interface{}) string, category, msg string) {
	if level < l.level {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s %s [%s] %s\n", ts, paint(tag), strings.ToUpper(category), msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, line)
}

func (l *Logger) Debug(category, msg string) {
	l.write(LevelDebug, "DEBUG", debugColor, category, msg)
}

func (l *Logger) Info(category, msg string) {
	l.write(LevelInfo, "INFO ", infoColor, category, msg)
}

func (l *Logger) Warn(category, msg string) {
	l.write(LevelWarn, "WARN ", warnColor, category, msg)
}

func (l *Logger) Error(category, msg string) {
	l.write(LevelError, "ERROR", errorColor, category, msg)
}

func (l *Logger) Fatal(category, msg string) {
	l.write(LevelError, "FATAL", errorColor, category, msg)
	os.Exit(1)
}

func (l *Logger) LogProcess(step, msg string) {
	l.write(LevelInfo, "PROC ", processColor, step, msg)
}

func (l *Logger) LogDatabase(op, db, msg string) {
	l.write(LevelDebug, "DB   ", dbColor, db+":"+op, msg)
}

func (l *Logger) LogKafka(op, topic, msg string) {
	l.write(LevelInfo, "KAFKA", kafkaColor, topic+":"+op, msg)
}

func (l *Logger) LogPayment(op, orderID, msg string) {
	l.write(LevelInfo, "PAY  ", paymentColor, op, fmt.Sprintf("order=%s %s", orderID, msg))
}

func (l *Logger) LogOrder(op, orderID, msg string) {
	l.write(LevelInfo, "ORDER", orderColor, op, fmt.Sprintf("order=%s %s", orderID, msg))
}

func (l *Logger) LogPush(op, orderID, msg string) {
	l.write(LevelInfo, "PUSH ", pushColor, op, fmt.Sprintf("order=%s %s", orderID, msg))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.write(LevelInfo, "API  ", apiColor, method, fmt.Sprintf("%s %s (%s)", path, status, duration))
}

func (l *Logger) LogSecurity(event, msg string) {
	l.write(LevelWarn, "SEC  ", secColor, event, msg)
}

// Close flushes nothing today but keeps the deferred shutdown call symmetric
// with file-backed writers.
func (l *Logger) Close() error {
	if c, ok := l.out.(io.Closer); ok && l.out != os.Stdout && l.out != os.Stderr {
		return c.Close()
	}
	return nil
}
