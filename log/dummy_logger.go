// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

type dummyLogger struct{}

func (dummyLogger) Debug(v ...interface{})                 {}
func (dummyLogger) Debugf(format string, v ...interface{}) {}
func (dummyLogger) Info(v ...interface{})                  {}
func (dummyLogger) Infof(format string, v ...interface{})  {}
func (dummyLogger) Warn(v ...interface{})                  {}
func (dummyLogger) Warnf(format string, v ...interface{})  {}
func (dummyLogger) Error(v ...interface{})                 {}
func (dummyLogger) Errorf(format string, v ...interface{}) {}
