// SPDX-License-Identifier: AGPL-3.0-or-later

package log

import (
	"fmt"
	"os"

	"codeberg.org/gruf/go-kv"
	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stderr)
	std.SetLevel(logrus.InfoLevel)
}

// SetLevel sets the minimum level emitted by the standard logger.
func SetLevel(lvl string) {
	parsed, err := logrus.ParseLevel(lvl)
	if err != nil {
		return
	}
	std.SetLevel(parsed)
}

func entry(fields ...kv.Field) *logrus.Entry {
	if len(fields) == 0 {
		return logrus.NewEntry(std)
	}
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.K] = f.V
	}
	return std.WithFields(data)
}

func caller() string {
	return Caller(3)
}

func Trace(msg string, fields ...kv.Field) { entry(fields...).WithField("func", caller()).Trace(msg) }
func Debug(msg string, fields ...kv.Field) { entry(fields...).WithField("func", caller()).Debug(msg) }
func Info(msg string, fields ...kv.Field)  { entry(fields...).WithField("func", caller()).Info(msg) }
func Warn(msg string, fields ...kv.Field)  { entry(fields...).WithField("func", caller()).Warn(msg) }
func Error(msg string, fields ...kv.Field) { entry(fields...).WithField("func", caller()).Error(msg) }
func Panic(msg string, fields ...kv.Field) { entry(fields...).WithField("func", caller()).Panic(msg) }

func Tracef(format string, args ...interface{}) { Trace(fmt.Sprintf(format, args...)) }
func Debugf(format string, args ...interface{}) { Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...interface{})  { Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...interface{})  { Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...interface{}) { Error(fmt.Sprintf(format, args...)) }
func Panicf(format string, args ...interface{}) { Panic(fmt.Sprintf(format, args...)) }
