// Package common provides the shared logging infrastructure for the arbiter
// decision core. Log output is routed by severity: error-level messages go to
// stderr while everything else goes to stdout, so containerized deployments
// can treat the two streams differently.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes log lines to stdout or stderr based on their level.
// Error lines carry "level=error" (text format) or `"level":"error"` (JSON
// format) and are sent to stderr; all other lines go to stdout.
type OutputSplitter struct{}

// Write implements io.Writer for OutputSplitter.
func (s *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide logger instance. Components derive their own
// entries from it via WithField("component", ...).
var Logger = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&OutputSplitter{})
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)
	return logger
}
