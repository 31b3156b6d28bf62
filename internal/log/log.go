// Package log is the application's logging facade. Call sites pass a
// message plus alternating key/value pairs; the backend is logrus so the
// output can switch between text and JSON without touching callers.
package log

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	logger     *logrus.Logger
	loggerOnce sync.Once
)

func initLogger() {
	loggerOnce.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.InfoLevel)
		if os.Getenv("TURNSCHED_LOG_FORMAT") == "json" {
			logger.SetFormatter(&logrus.JSONFormatter{})
		} else {
			logger.SetFormatter(&logrus.TextFormatter{
				FullTimestamp: true,
			})
		}
	})
}

func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
}

func Debug(msg string, kv ...any) {
	initLogger()
	logger.WithFields(fields(kv...)).Debug(msg)
}

func Info(msg string, kv ...any) {
	initLogger()
	logger.WithFields(fields(kv...)).Info(msg)
}

func Error(msg string, err error, kv ...any) {
	initLogger()
	entry := logger.WithFields(fields(kv...))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}

// fields converts alternating key/value arguments into logrus fields.
// Non-string keys and a trailing odd value are ignored.
func fields(kv ...any) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case string, bool, int, int64, float64:
			f[key] = v
		default:
			f[key] = fmt.Sprint(v)
		}
	}
	return f
}
