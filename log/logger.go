package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
)

type Level uint8

// The levels that can be passed to the SetLevel function.
const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
)

var levels = [...]struct {
	name    string
	backend logging.Level
}{
	Debug:   {"debug", logging.DEBUG},
	Info:    {"info", logging.INFO},
	Notice:  {"notice", logging.NOTICE},
	Warning: {"warning", logging.WARNING},
	Error:   {"error", logging.ERROR},
}

func (l Level) String() string {
	if int(l) >= len(levels) {
		return fmt.Sprintf("level(%d)", l)
	}
	return levels[l].name
}

// Records are prefixed with time, module and a four letter level tag.
var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level:.4s}]%{color:reset} %{message}`,
)

var (
	backend      logging.LeveledBackend
	currentLevel = Notice
)

// A Logger is a named module logger. Loggers returned by New share a single
// backend so SetSink and SetLevel affect all of them.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Notice(v ...interface{})
	Noticef(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warning(v ...interface{})
	Warningf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

func New(module string) Logger {
	return logging.MustGetLogger(module)
}

// Redirect log output to sink. The current level is preserved.
func SetSink(sink io.Writer) {
	formatted := logging.NewBackendFormatter(logging.NewLogBackend(sink, "", 0), format)
	backend = logging.AddModuleLevel(formatted)
	logging.SetBackend(backend)
	SetLevel(currentLevel)
}

// Set logger verbosity. Unknown levels are ignored.
func SetLevel(level Level) {
	if int(level) >= len(levels) {
		return
	}
	currentLevel = level
	backend.SetLevel(levels[level].backend, "")
}

// Get the active verbosity.
func CurrentLevel() Level {
	return currentLevel
}

// Map a level name as it appears in config files to a Level. An empty name
// selects Notice.
func ParseLevel(name string) (Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return Notice, nil
	case "warn":
		return Warning, nil
	}

	for level, l := range levels {
		if l.name == name {
			return Level(level), nil
		}
	}
	return Notice, fmt.Errorf("log: unknown level %q", name)
}

func init() {
	SetSink(os.Stderr)
}
