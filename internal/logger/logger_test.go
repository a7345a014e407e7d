package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		env     string
		opts    Options
		enabled zapcore.Level
	}{
		{env: "prod", enabled: zapcore.InfoLevel},
		{env: "local", enabled: zapcore.DebugLevel},
		{env: "docker", opts: Options{Format: FormatJSON}, enabled: zapcore.DebugLevel},
		{env: "prod", opts: Options{Level: "warn", Format: FormatConsole}, enabled: zapcore.WarnLevel},
		{env: "dev", opts: Options{Level: "ERROR"}, enabled: zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.opts.Level+"/"+tt.opts.Format, func(t *testing.T) {
			l, err := NewLogger(tt.env, tt.opts)
			require.NoError(t, err)

			assert.True(t, l.Core().Enabled(tt.enabled))
			if tt.enabled > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.enabled-1))
			}
		})
	}
}

func TestNewLogger_Rejects(t *testing.T) {
	_, err := NewLogger("staging", Options{})
	assert.ErrorContains(t, err, `unknown environment "staging"`)

	_, err = NewLogger("local", Options{Level: "loud"})
	assert.ErrorContains(t, err, `invalid log level "loud"`)

	_, err = NewLogger("prod", Options{Format: "xml"})
	assert.ErrorContains(t, err, `unknown log format "xml"`)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.NotNil(t, FromContext(ContextWithLogger(context.Background(), nil)))

	l := zap.NewExample()
	assert.Same(t, l, FromContext(ContextWithLogger(context.Background(), l)))
}
