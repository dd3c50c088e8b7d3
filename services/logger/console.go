package logsvc

import (
	"log"

	"github.com/trezcool/practicehub/core"
)

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// ConsoleLogger writes to a std logger only. Used in debug and tests.
type ConsoleLogger struct {
	std *log.Logger
	min Level
}

var _ core.Logger = (*ConsoleLogger)(nil)

func NewConsoleLogger(std *log.Logger, min Level) *ConsoleLogger {
	return &ConsoleLogger{std: std, min: min}
}

func (l ConsoleLogger) print(lvl Level, msg string, args []interface{}) {
	if lvl < l.min {
		return
	}
	l.std.Printf("[%s] %s", levelNames[lvl], msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l ConsoleLogger) Debug(msg string, args ...interface{}) { l.print(LevelDebug, msg, args) }
func (l ConsoleLogger) Info(msg string, args ...interface{})  { l.print(LevelInfo, msg, args) }
func (l ConsoleLogger) Warn(msg string, args ...interface{})  { l.print(LevelWarn, msg, args) }
func (l ConsoleLogger) Error(msg string, args ...interface{}) { l.print(LevelError, msg, args) }

func (l ConsoleLogger) Fatal(msg string, args ...interface{}) {
	l.print(LevelError, msg, args)
	l.std.Fatal(msg)
}
