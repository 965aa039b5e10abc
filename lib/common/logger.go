package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

// Module names of the loggers used inside this module. They are also the
// keys of per module overrides in a level spec, e.g. "warn,store=debug".
const (
	LoggerSQLite = "db/sqlite"
	LoggerStore  = "store"
	LoggerCLI    = "cli"
)

var modules = []string{LoggerSQLite, LoggerStore, LoggerCLI}

var levelNames = map[string]logger.LogLevel{
	"debug":   logger.DEBUG,
	"info":    logger.INFO,
	"warn":    logger.WARNING,
	"warning": logger.WARNING,
	"error":   logger.ERROR,
}

var levelLabels = map[logger.LogLevel]string{
	logger.DEBUG:    "DEBUG",
	logger.INFO:     "INFO",
	logger.WARNING:  "WARN",
	logger.ERROR:    "ERROR",
	logger.CRITICAL: "CRIT",
}

// --------------------------------------------------------------------------
// Level spec
// --------------------------------------------------------------------------

// LogLevels is a parsed level spec: one default level plus overrides for
// single modules.
type LogLevels struct {
	Default logger.LogLevel
	Modules map[string]logger.LogLevel
}

// Of returns the level that applies to module.
func (l LogLevels) Of(module string) logger.LogLevel {
	if lvl, ok := l.Modules[module]; ok {
		return lvl
	}
	return l.Default
}

// ParseLogLevel converts a single level name to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
	return lvl, nil
}

// ParseLogLevels parses a comma separated level spec. Elements without "="
// set the default level, "module=level" elements override it for one of
// the modules of this package (db/sqlite, store, cli). The default is
// warning if the spec names none.
func ParseLogLevels(spec string) (LogLevels, error) {
	levels := LogLevels{Default: logger.WARNING, Modules: map[string]logger.LogLevel{}}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		module, level, scoped := strings.Cut(part, "=")
		if !scoped {
			module, level = "", module
		}
		lvl, err := ParseLogLevel(level)
		if err != nil {
			return LogLevels{}, err
		}
		if !scoped {
			levels.Default = lvl
			continue
		}

		module = strings.TrimSpace(module)
		if !isModule(module) {
			known := append([]string(nil), modules...)
			sort.Strings(known)
			return LogLevels{}, fmt.Errorf("unknown logger %q in level spec, must be one of %s", module, strings.Join(known, ", "))
		}
		levels.Modules[module] = lvl
	}
	return levels, nil
}

func isModule(name string) bool {
	for _, m := range modules {
		if m == name {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Module logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// moduleLogger writes the lines of one module as "LEVEL | module | message".
// The level can be changed concurrently with logging.
type moduleLogger struct {
	module string
	level  atomic.Int32
	out    *log.Logger
}

func newModuleLogger(module string, w io.Writer, level logger.LogLevel) *moduleLogger {
	l := &moduleLogger{module: module, out: log.New(w, "", log.Ldate|log.Ltime)}
	l.SetLevel(level)
	return l
}

func (l *moduleLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *moduleLogger) enabled(level logger.LogLevel) bool {
	return level <= logger.LogLevel(l.level.Load())
}

func (l *moduleLogger) logf(level logger.LogLevel, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	l.out.Printf("%-5s | %-10s | %s", levelLabels[level], l.module, fmt.Sprintf(format, args...))
}

func (l *moduleLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args...)
}

func (l *moduleLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args...)
}

func (l *moduleLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args...)
}

func (l *moduleLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args...)
}

// Panicf always panics, the line is written first.
func (l *moduleLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logf(logger.CRITICAL, "%s", msg)
	panic(msg)
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

var factoryOnce sync.Once

// InitLoggers installs the module logger factory (once per process, stderr
// keeps stdout machine readable) and applies the level spec to every module
// logger, see ParseLogLevels.
func InitLoggers(spec string) error {
	levels, err := ParseLogLevels(spec)
	if err != nil {
		return err
	}

	factoryOnce.Do(func() {
		logger.SetLoggerFactory(func(module string) logger.ILogger {
			return newModuleLogger(module, os.Stderr, logger.WARNING)
		})
	})

	for _, module := range modules {
		logger.GetLogger(module).SetLevel(levels.Of(module))
	}
	return nil
}
