package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Logger writes colored lines to stdout and JSON lines to a dated file under
// logs/. The file writer is optional: if the directory cannot be created the
// logger degrades to stdout only.
type Logger struct {
	logFile *os.File
}

func NewLogger() *Logger {
	l := &Logger{}

	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Printf("logger: cannot create logs directory: %v", err)
		return l
	}

	name := fmt.Sprintf("logs/eventsync-%s.log", time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("logger: cannot open log file: %v", err)
		return l
	}
	l.logFile = f
	return l
}

func (l *Logger) log(level LogLevel, category, message string) {
	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     levelName(level),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	fmt.Print(l.formatTerminal(entry))

	if l.logFile != nil {
		b, _ := json.Marshal(entry)
		l.logFile.Write(append(b, '\n'))
	}
}

func (l *Logger) formatTerminal(e LogEntry) string {
	var c *color.Color
	switch e.Level {
	case "DEBUG":
		c = color.New(color.FgCyan)
	case "INFO":
		c = color.New(color.FgGreen)
	case "WARN":
		c = color.New(color.FgYellow)
	case "ERROR", "FATAL":
		c = color.New(color.FgRed)
	default:
		c = color.New(color.FgWhite)
	}

	timeStr := color.New(color.FgBlue).Sprint(e.Timestamp[11:19])
	levelStr := c.Sprintf("%-5s", e.Level)
	categoryStr := c.Add(color.Bold).Sprintf("[%-10s]", e.Category)
	fileInfo := ""
	if e.File != "" && e.Line > 0 {
		fileInfo = color.New(color.FgMagenta).Sprintf(" (%s:%d)", e.File, e.Line)
	}
	return fmt.Sprintf("%s %s %s %s%s\n", timeStr, levelStr, categoryStr, e.Message, fileInfo)
}

func levelName(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "INFO"
	}
}

func (l *Logger) Debug(category, message string) { l.log(DEBUG, category, message) }
func (l *Logger) Info(category, message string)  { l.log(INFO, category, message) }
func (l *Logger) Warn(category, message string)  { l.log(WARN, category, message) }
func (l *Logger) Error(category, message string) { l.log(ERROR, category, message) }

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

// Category helpers for the sync pipeline.

func (l *Logger) LogSync(phase, message string) {
	l.Info("SYNC", fmt.Sprintf("[%s] %s", phase, message))
}

func (l *Logger) LogGateway(api, message string) {
	l.Info("GATEWAY", fmt.Sprintf("[%s] %s", api, message))
}

func (l *Logger) LogReconciler(message string) {
	l.Info("RECONCILER", message)
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.logFile.Close()
	}
}
