package log

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/weaveworks/common/logging"
)

var (
	Logger = log.NewNopLogger()
)

type Config struct {
	LogFormat logging.Format `yaml:"log_format"`
	LogLevel  logging.Level  `yaml:"log_level"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.LogFormat.RegisterFlags(f)
	c.LogLevel.RegisterFlags(f)
}

// InitLogger replaces the package Logger and returns it for injection into components.
func InitLogger(cfg *Config) log.Logger {
	l := newBasicLogger(cfg.LogFormat)

	Logger = level.NewFilter(log.With(l, "caller", log.Caller(5)), levelOption(cfg.LogLevel))

	return level.NewFilter(l, levelOption(cfg.LogLevel))
}

func newBasicLogger(format logging.Format) log.Logger {
	var logger log.Logger
	if format.String() == "json" {
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	}

	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

func levelOption(l logging.Level) level.Option {
	switch l.String() {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

func CheckFatal(location string, err error) {
	if err != nil {
		logger := level.Error(Logger)
		if location != "" {
			logger = log.With(logger, "msg", "error "+location)
		}

		_ = logger.Log("err", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}
