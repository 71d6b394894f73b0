package logger

import (
	"io"
	"os"

	"github.com/pion/logging"
)

// Factory создает логгеры по областям поверх pion/logging
type Factory struct {
	factory *logging.DefaultLoggerFactory
}

// NewFactory создает фабрику логгеров. Уровни отдельных областей можно
// поднять переменными окружения PION_LOG_DEBUG и т.п.
func NewFactory(w io.Writer, debugEnabled bool) *Factory {
	factory := logging.NewDefaultLoggerFactory()
	if w == nil {
		w = os.Stderr
	}
	factory.Writer = w

	factory.DefaultLogLevel = logging.LogLevelInfo
	if debugEnabled {
		factory.DefaultLogLevel = logging.LogLevelDebug
	}

	return &Factory{factory: factory}
}

// Logger возвращает логгер для области scope
func (f *Factory) Logger(scope string) *PionLogger {
	return &PionLogger{log: f.factory.NewLogger(scope)}
}

// Pion возвращает исходную фабрику для передачи в pion/webrtc
func (f *Factory) Pion() logging.LoggerFactory {
	return f.factory
}

// PionLogger реализация application.Logger на основе pion/logging
type PionLogger struct {
	log logging.LeveledLogger
}

// Info логирует информационное сообщение
func (l *PionLogger) Info(msg string, args ...interface{}) {
	l.log.Infof(msg, args...)
}

// Warn логирует предупреждение
func (l *PionLogger) Warn(msg string, args ...interface{}) {
	l.log.Warnf(msg, args...)
}

// Error логирует сообщение об ошибке
func (l *PionLogger) Error(msg string, args ...interface{}) {
	l.log.Errorf(msg, args...)
}

// Debug логирует отладочное сообщение
func (l *PionLogger) Debug(msg string, args ...interface{}) {
	l.log.Debugf(msg, args...)
}
