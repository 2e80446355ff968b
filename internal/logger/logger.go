package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Error(message string, args ...any)
	Warning(message string, args ...any)
	Info(message string, args ...any)
	Debug(message string, args ...any)
}

type logger struct {
	zapLogger *zap.SugaredLogger
}

func (l *logger) Error(message string, args ...any) {
	l.zapLogger.Errorf(message, args...)
}

func (l *logger) Warning(message string, args ...any) {
	l.zapLogger.Warnf(message, args...)
}

func (l *logger) Info(message string, args ...any) {
	l.zapLogger.Infof(message, args...)
}

func (l *logger) Debug(message string, args ...any) {
	l.zapLogger.Debugf(message, args...)
}

// Options select the zap configuration. Verbose switches to the development
// encoder at debug level; LogFile adds a file sink.
type Options struct {
	Verbose bool
	LogFile string
}

func NewLogger(opts Options) (Logger, error) {
	var loggerConfig zap.Config
	if opts.Verbose {
		loggerConfig = zap.NewDevelopmentConfig()
	} else {
		loggerConfig = zap.NewProductionConfig()
		loggerConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		loggerConfig.Sampling = nil
	}

	outputPaths := []string{"stderr"}
	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		outputPaths = append(outputPaths, opts.LogFile)
	}

	loggerConfig.OutputPaths = outputPaths
	loggerConfig.ErrorOutputPaths = []string{"stderr"}
	loggerConfig.EncoderConfig.TimeKey = "timestamp"
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)

	zLogger, err := loggerConfig.Build()
	if err != nil {
		return nil, err
	}

	return &logger{zapLogger: zLogger.Sugar()}, nil
}

type NilLogger struct{}

func (l *NilLogger) Error(message string, args ...any) {
}

func (l *NilLogger) Warning(message string, args ...any) {
}

func (l *NilLogger) Info(message string, args ...any) {
}

func (l *NilLogger) Debug(message string, args ...any) {
}

type TestLogger struct {
	T *testing.T
}

func (l *TestLogger) Error(message string, args ...any) {
	l.T.Logf(message, args...)
}

func (l *TestLogger) Warning(message string, args ...any) {
	l.T.Logf(message, args...)
}

func (l *TestLogger) Info(message string, args ...any) {
	l.T.Logf(message, args...)
}

func (l *TestLogger) Debug(message string, args ...any) {
	l.T.Logf(message, args...)
}

// RecordingLogger keeps formatted messages so tests can assert on what was logged.
type RecordingLogger struct {
	mu       sync.Mutex
	Messages []string
}

func (l *RecordingLogger) record(level, message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+fmt.Sprintf(message, args...))
}

func (l *RecordingLogger) Error(message string, args ...any) {
	l.record("error", message, args...)
}

func (l *RecordingLogger) Warning(message string, args ...any) {
	l.record("warning", message, args...)
}

func (l *RecordingLogger) Info(message string, args ...any) {
	l.record("info", message, args...)
}

func (l *RecordingLogger) Debug(message string, args ...any) {
	l.record("debug", message, args...)
}

// All returns a copy of the recorded messages.
func (l *RecordingLogger) All() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Messages...)
}
