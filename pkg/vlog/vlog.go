// Package vlog builds the process-wide structured logger, grounded on
// lazydocker's pkg/log: a JSON-formatted logrus.Entry that writes to a
// per-config-dir development.log file when debugging is requested, and
// discards everything otherwise.
package vlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	lcUtils "github.com/jesseduffield/lazycore/pkg/utils"
	"github.com/sirupsen/logrus"

	"github.com/xaizek/vifm-core/pkg/vconfig"
)

// New returns a logger for config, tagged with build metadata the same way
// lazydocker's log.NewLogger tags its entries.
func New(config *vconfig.AppConfig) *logrus.Entry {
	var log *logrus.Logger
	if config.Debug || os.Getenv("DEBUG") == "TRUE" {
		log = newDevelopmentLogger(config)
	} else {
		log = newProductionLogger()
	}

	log.Formatter = &logrus.JSONFormatter{}

	return log.WithFields(logrus.Fields{
		"debug":     config.Debug,
		"version":   config.Version,
		"commit":    config.Commit,
		"buildDate": config.BuildDate,
	})
}

func getLogLevel() logrus.Level {
	strLevel := os.Getenv("LOG_LEVEL")
	level, err := logrus.ParseLevel(strLevel)
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

func newDevelopmentLogger(config *vconfig.AppConfig) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(getLogLevel())
	file, err := os.OpenFile(filepath.Join(config.ConfigDir, "development.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		fmt.Println("unable to log to file")
		os.Exit(1)
	}
	log.SetOutput(file)
	return log
}

func newProductionLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	log.SetLevel(logrus.ErrorLevel)
	return log
}

// DeadlockSink builds the go-deadlock report sink: if a deadlock is ever
// detected among the engine/event-loop mutexes, the terminal must be torn
// down (onDetect) before the report can be read, exactly as lazydocker's
// gui.Run wires deadlock.Opts.LogBuf to close the gocui handle first.
func DeadlockSink(onDetect func()) io.Writer {
	return lcUtils.NewOnceWriter(os.Stderr, onDetect)
}
