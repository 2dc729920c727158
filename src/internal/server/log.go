package server

import (
	"os"
	"path/filepath"

	l "github.com/sirupsen/logrus"
)

const logFilename = "daapsrv.log"

// setupLogging sets up logging into logDir with the level logLevel. If
// logDir is empty, log entries go to stderr
func setupLogging(logDir, logLevel string) (err error) {
	// set up logging: no log entries possible before this statement!
	level, err := l.ParseLevel(logLevel)
	if err != nil {
		return
	}
	l.SetLevel(level)

	if logDir == "" {
		return
	}

	// create or open file for write & append
	f, err := os.OpenFile(filepath.Join(logDir, logFilename), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return
	}
	l.SetOutput(f)
	return
}
