// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LevelEnv overrides the default level, e.g. RPCPROXY_LOG_LEVEL=debug.
const LevelEnv = "RPCPROXY_LOG_LEVEL"

const defaultLevel = logrus.WarnLevel

// NewDefaultLogger returns a logrus logger writing text to stderr at the
// level named by RPCPROXY_LOG_LEVEL (warn when unset or invalid).
func NewDefaultLogger() *logrus.Logger {
	return NewLogger(os.Stderr, os.Getenv(LevelEnv))
}

// NewLogger returns a logrus logger writing to out at the named level.
func NewLogger(out io.Writer, level string) *logrus.Logger {
	lvl := defaultLevel
	if level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return logger
}
