// Package logger configures the process-wide logrus logger.
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Init sets level and formatter on the standard logrus logger and returns it.
// An unknown level falls back to info. format is "json" or "text".
func Init(level, format string) *logrus.Logger {
	l := logrus.StandardLogger()
	l.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	if err != nil && level != "" {
		l.Warnf("unknown LOG_LEVEL %q, using info", level)
	}
	return l
}
