package logger

import (
	"testing"

	"cooperative_billing/internal/infra/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.AppConfig
		wantLevel logrus.Level
		wantJSON  bool
	}{
		{name: "development text", cfg: config.AppConfig{LogLevel: "debug", Environment: "development"}, wantLevel: logrus.DebugLevel},
		{name: "production json", cfg: config.AppConfig{LogLevel: "warn", Environment: "production"}, wantLevel: logrus.WarnLevel, wantJSON: true},
		{name: "staging json", cfg: config.AppConfig{LogLevel: "info", Environment: "Staging"}, wantLevel: logrus.InfoLevel, wantJSON: true},
		{name: "invalid level falls back", cfg: config.AppConfig{LogLevel: "loud"}, wantLevel: logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init(&tt.cfg)

			assert.Equal(t, tt.wantLevel, Log.GetLevel())
			_, isJSON := Log.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.wantJSON, isJSON)
		})
	}
}

func TestComponent(t *testing.T) {
	entry := Component("scheduler")
	assert.Equal(t, "scheduler", entry.Data["component"])
}
