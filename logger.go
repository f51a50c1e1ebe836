package ordextract

import (
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var logger log.Logger

func init() {
	logger = newLogger(os.Stderr, "info")
}

func newLogger(w io.Writer, logLevel string) log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = log.With(l, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(l, levelOption(logLevel))
}

func levelOption(logLevel string) level.Option {
	switch strings.ToLower(logLevel) {
	case "debug":
		return level.AllowDebug()
	case "warn", "warning":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	case "none":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}
