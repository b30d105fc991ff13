// pkg/utils/logger.go

package utils

import (
    "fmt"
    "os"
    "strings"
    "sync"

    "github.com/sirupsen/logrus"
)

var mu sync.Mutex
var loggers = make(map[string]*logHandle)

var syslogHook logrus.Hook

type logHandle struct {
    logrus.Logger

    name string
}

func (l *logHandle) Format(e *logrus.Entry) ([]byte, error) {
    lvl := e.Level

    const timeFormat = "2006/01/02 15:04:05.000000"
    timestamp := e.Time.Format(timeFormat)

    str := fmt.Sprintf("%v %s[%d] <%v>: %v",
        timestamp,
        l.name,
        os.Getpid(),
        strings.ToUpper(lvl.String()),
        e.Message)

    if len(e.Data) != 0 {
        str += fmt.Sprintf(" %v", e.Data)
    }

    str += "\n"
    return []byte(str), nil
}

func newLogger(name string) *logHandle {
    l := &logHandle{name: name}
    l.Out = os.Stderr
    l.Formatter = l
    l.Level = logrus.InfoLevel
    l.Hooks = make(logrus.LevelHooks)
    if syslogHook != nil {
        l.Hooks.Add(syslogHook)
    }
    return l
}

// GetLogger returns a logger mapped to `name`
func GetLogger(name string) *logHandle {
    mu.Lock()
    defer mu.Unlock()

    if logger, ok := loggers[name]; ok {
        return logger
    }
    logger := newLogger(name)
    loggers[name] = logger
    return logger
}

// SetLogLevel sets Level to all the loggers in the map
func SetLogLevel(lvl logrus.Level) {
    mu.Lock()
    defer mu.Unlock()
    for _, logger := range loggers {
        logger.SetLevel(lvl)
    }
}

func SetOutFile(name string) {
    file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
    if err != nil {
        return
    }
    mu.Lock()
    defer mu.Unlock()
    for _, logger := range loggers {
        logger.SetOutput(file)
    }
}
