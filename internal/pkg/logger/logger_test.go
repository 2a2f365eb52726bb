package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/qs3c/repo_scan_server/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		level   zapcore.Level
		wantErr bool
	}{
		{name: "defaults", cfg: config.LogConfig{}, level: zapcore.InfoLevel},
		{name: "debug console", cfg: config.LogConfig{Level: "debug", Format: "console"}, level: zapcore.DebugLevel},
		{name: "warn json", cfg: config.LogConfig{Level: "warn", Format: "json"}, level: zapcore.WarnLevel},
		{name: "bad level", cfg: config.LogConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.level))
			assert.False(t, log.Core().Enabled(tt.level-1))
		})
	}
}
