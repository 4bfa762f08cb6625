// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package log is the logging facade used throughout rpcproxy. The default
// backend is logrus; applications may install their own Logger.
package log

import "sync/atomic"

// Logger is the minimal leveled logger rpcproxy writes to.
// *logrus.Logger and *logrus.Entry satisfy it.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warn(v ...interface{})
	Warnf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

type holder struct{ Logger }

var l atomic.Pointer[holder]

func init() {
	SetLogger(NewDefaultLogger())
}

// SetLogger replaces the package logger.
func SetLogger(logger Logger) {
	l.Store(&holder{logger})
}

// SetDummyLogger discards all output.
func SetDummyLogger() {
	SetLogger(dummyLogger{})
}

// GetLogger returns the current package logger.
func GetLogger() Logger {
	return l.Load().Logger
}

func Debug(v ...interface{}) {
	GetLogger().Debug(v...)
}
func Debugf(format string, v ...interface{}) {
	GetLogger().Debugf(format, v...)
}

func Info(v ...interface{}) {
	GetLogger().Info(v...)
}
func Infof(format string, v ...interface{}) {
	GetLogger().Infof(format, v...)
}

func Warn(v ...interface{}) {
	GetLogger().Warn(v...)
}
func Warnf(format string, v ...interface{}) {
	GetLogger().Warnf(format, v...)
}

func Error(v ...interface{}) {
	GetLogger().Error(v...)
}
func Errorf(format string, v ...interface{}) {
	GetLogger().Errorf(format, v...)
}
