// pkg/utils/logger_syslog.go

//go:build !windows

package utils

import (
    "log/syslog"

    lsyslog "github.com/sirupsen/logrus/hooks/syslog"
)

// InitLoggers installs the syslog hook into every logger, including the
// ones created later.
func InitLoggers(logToSyslog bool) {
    if !logToSyslog {
        return
    }
    hook, err := lsyslog.NewSyslogHook("", "", syslog.LOG_DEBUG|syslog.LOG_USER, "")
    if err != nil {
        // println is used here because the loggers are not ready yet
        println("Unable to connect to local syslog daemon")
        return
    }
    mu.Lock()
    defer mu.Unlock()
    syslogHook = hook
    for _, l := range loggers {
        l.AddHook(hook)
    }
}
