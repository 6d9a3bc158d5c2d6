package common

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputSplitter_Write(t *testing.T) {
	splitter := &OutputSplitter{}

	tests := []struct {
		name string
		line string
	}{
		{name: "TextError", line: "time=x level=error msg=boom\n"},
		{name: "JSONError", line: `{"level":"error","msg":"boom"}` + "\n"},
		{name: "Info", line: "time=x level=info msg=ok\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := splitter.Write([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, len(tt.line), n)
		})
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  logrus.Level
	}{
		{LogLevelDebug, logrus.DebugLevel},
		{LogLevelInfo, logrus.InfoLevel},
		{LogLevelWarn, logrus.WarnLevel},
		{LogLevelError, logrus.ErrorLevel},
		{LogLevel("bogus"), logrus.InfoLevel},
	}

	for _, tt := range tests {
		logger := NewLogger(LoggerConfig{Level: tt.level})
		assert.Equal(t, tt.want, logger.GetLevel())
	}
}

func TestNewServiceEntry(t *testing.T) {
	logger := NewLogger(DefaultLoggerConfig())
	entry := NewServiceEntry(logger, "arbiter")
	assert.Equal(t, "arbiter", entry.Data["service"])
	assert.NotEmpty(t, entry.Data["version"])
}
