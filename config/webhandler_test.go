package config

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Get(t *testing.T) {
	configFile := createConfigFile(t, baseConfig)
	handler := Handler(configFile)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got RuntimeConfig
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 30, got.Behavior.IntervalMinutes)
	assert.Equal(t, 0.5, *got.Clock.ChimeVolume)
}

func TestHandler_PostUpdatesFile(t *testing.T) {
	configFile := createConfigFile(t, baseConfig)
	handler := Handler(configFile)

	update := RuntimeConfig{
		Behavior: BehaviorConfig{
			IntervalMinutes: 15,
			StatusInterval:  20 * time.Second,
		},
		Clock: ClockConfig{
			ChimeVolume: Float(0.9),
		},
		Random: RandomConfig{IntervalVariance: Float(0.5)},
	}
	body, err := json.Marshal(update)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	conf, err := ReadConfig(configFile)
	require.NoError(t, err)
	assert.Equal(t, 15, conf.Behavior.IntervalMinutes)
	assert.Equal(t, 0.9, *conf.Clock.ChimeVolume)
	assert.Equal(t, 0.5, *conf.Random.IntervalVariance)
	// Non-runtime settings survive the merge.
	assert.Equal(t, "DEBUG", conf.Logging.Level)
}

func TestHandler_PostRejectsInvalid(t *testing.T) {
	configFile := createConfigFile(t, baseConfig)
	original, err := os.ReadFile(configFile)
	require.NoError(t, err)

	handler := Handler(configFile)

	update := RuntimeConfig{
		Clock: ClockConfig{ChimeVolume: Float(3.0)},
	}
	body, err := json.Marshal(update)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The file is untouched after a rejected update.
	after, err := os.ReadFile(configFile)
	require.NoError(t, err)
	assert.Equal(t, original, after)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	configFile := createConfigFile(t, baseConfig)
	handler := Handler(configFile)

	req := httptest.NewRequest(http.MethodDelete, "/api/config", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
