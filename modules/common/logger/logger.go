package logger

import (
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup - 전역 logrus 설정 (level: debug|info|warn|error, format: text|json)
func Setup(level, format string) {
	logrus.SetOutput(os.Stdout)

	if strings.EqualFold(format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006/01/02 15:04:05",
		})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("⚠️  Unknown LOG_LEVEL %q, falling back to info", level)
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

// For - 모듈 태그가 붙은 entry
func For(module string) *logrus.Entry {
	return logrus.WithField("module", module)
}

// HandleError - 에러를 호출 위치와 함께 로깅하고 그대로 반환
func HandleError(err error, additionalFields ...logrus.Fields) error {
	if err == nil {
		return nil
	}
	logrus.WithFields(callerFields(2, additionalFields...)).Error(err)
	return err
}

// LogWarning - 호출 위치와 함께 경고 로깅
func LogWarning(msg string, additionalFields ...logrus.Fields) {
	logrus.WithFields(callerFields(2, additionalFields...)).Warn(msg)
}

func callerFields(lvl int, additionalFields ...logrus.Fields) logrus.Fields {
	_, file, line, _ := runtime.Caller(lvl)

	fields := logrus.Fields{
		"file": filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file)),
		"line": line,
	}
	for _, extra := range additionalFields {
		maps.Copy(fields, extra)
	}
	return fields
}
