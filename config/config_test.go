package config

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := New()

	assert.NotEmpty(t, conf)
	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.URL)
	assert.Equal(t, "test", conf.DatabaseName)
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("CHAT_PATH", "")
	t.Setenv("CHAT_PING_INTERVAL", "")
	t.Setenv("CHAT_PING_TIMEOUT", "")
	t.Setenv("CHAT_SEND_BUFFER", "")
	t.Setenv("PORT", "")

	conf := New()

	assert.Equal(t, "/api/chat", conf.ChatPath)
	assert.Equal(t, 25*time.Second, conf.PingInterval)
	assert.Equal(t, 60*time.Second, conf.PingTimeout)
	assert.Equal(t, 256, conf.SendBuffer)
	assert.Equal(t, "8080", conf.Port)
	assert.Equal(t, "@every 1m", conf.StatsSchedule)
}

func TestNewOverrides(t *testing.T) {
	t.Setenv("CHAT_PING_INTERVAL", "5s")
	t.Setenv("CHAT_SEND_BUFFER", "32")
	t.Setenv("REDIS_DB", "not-a-number")

	conf := New()

	assert.Equal(t, 5*time.Second, conf.PingInterval)
	assert.Equal(t, 32, conf.SendBuffer)
	assert.Equal(t, 0, conf.RedisDB)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		conf    Config
		wantErr bool
	}{
		{
			name:    "missing secret",
			conf:    Config{URL: "mongodb://x", DatabaseName: "db", PingInterval: time.Second, PingTimeout: time.Second},
			wantErr: true,
		},
		{
			name:    "missing database",
			conf:    Config{JWTSecret: "s", PingInterval: time.Second, PingTimeout: time.Second},
			wantErr: true,
		},
		{
			name:    "valid",
			conf:    Config{JWTSecret: "s", URL: "mongodb://x", DatabaseName: "db", PingInterval: time.Second, PingTimeout: time.Second},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, rr, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `{"response": "error it borked, bad request"}`, rr.Body.String())
}

func TestSetLoggerSetsDevelopmentLogger(t *testing.T) {
	l, err := setLogger("development")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSetLoggerSetsProductionLogger(t *testing.T) {
	l, err := setLogger("production")
	assert.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestSetLoggerSetsLocalLogger(t *testing.T) {
	l, err := setLogger("local")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSetLoggerRejectsUnknownEnv(t *testing.T) {
	_, err := setLogger("staging-ish")
	assert.Error(t, err)
}
