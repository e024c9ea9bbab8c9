package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из строки конфигурации
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("неизвестный уровень логирования %q", s)
	}
}

// Options задаёт вывод логгера
type Options struct {
	Dir          string    // Каталог файлов логов; пусто — без файла
	ConsoleLevel LogLevel  // Минимальный уровень для консоли
	FileLevel    LogLevel  // Минимальный уровень для файла
	Console      io.Writer // По умолчанию os.Stdout
}

// DefaultOptions: консоль от INFO, файл в logs/ со всеми уровнями
func DefaultOptions() Options {
	return Options{
		Dir:          "logs",
		ConsoleLevel: INFO,
		FileLevel:    TRACE,
	}
}

// Logger представляет систему логирования компонента
type Logger struct {
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// NewLogger создаёт логгер компонента с настройками по умолчанию
func NewLogger(component string) (*Logger, error) {
	return NewLoggerWithOptions(component, DefaultOptions())
}

// NewLoggerWithOptions создаёт логгер компонента
func NewLoggerWithOptions(component string, opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	l := &Logger{
		component:       component,
		consoleLogger:   log.New(console, "", log.LstdFlags),
		minConsoleLevel: opts.ConsoleLevel,
		minFileLevel:    opts.FileLevel,
	}

	if opts.Dir == "" {
		return l, nil
	}

	// Создаем директорию для логов
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", opts.Dir, err)
	}

	// Создаем файл для логов с временной меткой
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	l.file = file
	l.fileLogger = log.New(file, "", log.LstdFlags)
	return l, nil
}

// Component возвращает имя компонента
func (l *Logger) Component() string {
	return l.component
}

// Close закрывает файл логов
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

// Trace логирует сообщение уровня TRACE
func (l *Logger) Trace(format string, args ...interface{}) {
	l.logMessage(TRACE, format, args...)
}

// Debug логирует сообщение уровня DEBUG
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logMessage(DEBUG, format, args...)
}

// Info логирует сообщение уровня INFO
func (l *Logger) Info(format string, args ...interface{}) {
	l.logMessage(INFO, format, args...)
}

// Warn логирует сообщение уровня WARN
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logMessage(WARN, format, args...)
}

// Error логирует сообщение уровня ERROR
func (l *Logger) Error(format string, args ...interface{}) {
	l.logMessage(ERROR, format, args...)
}

// logMessage внутренняя функция для логирования
func (l *Logger) logMessage(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}

	message := fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, fmt.Sprintf(format, args...))

	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(message)
	}
	if l.consoleLogger != nil && level >= l.minConsoleLevel {
		l.consoleLogger.Println(message)
	}
}

// InitDefaultLogger инициализирует глобальный логгер
func InitDefaultLogger(component string) error {
	return InitDefaultLoggerWithOptions(component, DefaultOptions())
}

// InitDefaultLoggerWithOptions инициализирует глобальный логгер с настройками
func InitDefaultLoggerWithOptions(component string, opts Options) error {
	l, err := NewLoggerWithOptions(component, opts)
	if err != nil {
		return err
	}

	defaultMu.Lock()
	prev := defaultLogger
	defaultLogger = l
	defaultMu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return nil
}

// CloseDefaultLogger закрывает глобальный логгер
func CloseDefaultLogger() {
	defaultMu.Lock()
	l := defaultLogger
	defaultLogger = nil
	defaultMu.Unlock()

	if l != nil {
		l.Close()
	}
}

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Trace логирует через глобальный логгер. Без инициализации ничего не делает.
func Trace(format string, args ...interface{}) {
	current().Trace(format, args...)
}

// Debug логирует через глобальный логгер
func Debug(format string, args ...interface{}) {
	current().Debug(format, args...)
}

// Info логирует через глобальный логгер
func Info(format string, args ...interface{}) {
	current().Info(format, args...)
}

// Warn логирует через глобальный логгер
func Warn(format string, args ...interface{}) {
	current().Warn(format, args...)
}

// Error логирует через глобальный логгер
func Error(format string, args ...interface{}) {
	current().Error(format, args...)
}
