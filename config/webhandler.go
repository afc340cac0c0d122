package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig is the subset of the configuration that can be safely
// modified at runtime over HTTP. Hardware pin assignments and logging
// destinations are deliberately excluded.
type RuntimeConfig struct {
	Behavior BehaviorConfig `yaml:"Behavior" json:"Behavior"`
	Clock    ClockConfig    `yaml:"Clock" json:"Clock"`
	Random   RandomConfig   `yaml:"Random" json:"Random"`
	Debug    DebugConfig    `yaml:"Debug" json:"Debug"`
	Audio    AudioConfig    `yaml:"Audio" json:"Audio"`
	Leds     LedsConfig     `yaml:"Leds" json:"Leds"`
	Sensors  SensorsConfig  `yaml:"Sensors" json:"Sensors"`
	Battery  BatteryConfig  `yaml:"Battery" json:"Battery"`
	Night    NightConfig    `yaml:"Night" json:"Night"`
}

// Handler routes API requests for /api/config based on the HTTP method.
// A successful POST rewrites the config file, which the file watcher
// picks up as a reload.
func Handler(cfile string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			getConfigHandler(w, cfile)
		case http.MethodPost:
			setConfigHandler(w, r, cfile)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func getConfigHandler(w http.ResponseWriter, cfile string) {
	slog.Info("Handling GET /api/config request")
	// Read the file on every request so the latest version is served.
	fullConfig, err := ReadConfig(cfile)
	if err != nil {
		slog.Error("Failed to read config file for API", "error", err)
		http.Error(w, "Failed to read configuration", http.StatusInternalServerError)
		return
	}

	runtimeConfig := RuntimeConfig{
		Behavior: fullConfig.Behavior,
		Clock:    fullConfig.Clock,
		Random:   fullConfig.Random,
		Debug:    fullConfig.Debug,
		Audio:    fullConfig.Audio,
		Leds:     fullConfig.Leds,
		Sensors:  fullConfig.Sensors,
		Battery:  fullConfig.Battery,
		Night:    fullConfig.Night,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(runtimeConfig); err != nil {
		slog.Error("Failed to encode runtime config to JSON", "error", err)
		http.Error(w, "Failed to serialize configuration", http.StatusInternalServerError)
	}
}

func setConfigHandler(w http.ResponseWriter, r *http.Request, cfile string) {
	slog.Info("Handling POST /api/config request")
	var newRuntimeConfig RuntimeConfig
	if err := json.NewDecoder(r.Body).Decode(&newRuntimeConfig); err != nil {
		slog.Error("Failed to decode incoming JSON", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Read the current full configuration from disk to preserve the
	// hardware settings the runtime subset doesn't carry.
	fullConfig, err := ReadConfig(cfile)
	if err != nil {
		slog.Error("Failed to read existing config for update", "error", err)
		http.Error(w, "Failed to read configuration", http.StatusInternalServerError)
		return
	}

	fullConfig.Behavior = newRuntimeConfig.Behavior
	fullConfig.Clock = newRuntimeConfig.Clock
	fullConfig.Random = newRuntimeConfig.Random
	fullConfig.Debug = newRuntimeConfig.Debug
	fullConfig.Audio = newRuntimeConfig.Audio
	fullConfig.Leds = newRuntimeConfig.Leds
	fullConfig.Sensors = newRuntimeConfig.Sensors
	fullConfig.Battery = newRuntimeConfig.Battery
	fullConfig.Night = newRuntimeConfig.Night

	fullConfig.ApplyDefaults()
	if err := fullConfig.Validate(); err != nil {
		slog.Error("Validation failed for new config", "error", err)
		http.Error(w, fmt.Sprintf("Invalid configuration: %v", err), http.StatusBadRequest)
		return
	}

	yamlData, err := yaml.Marshal(fullConfig)
	if err != nil {
		slog.Error("Failed to marshal merged config to YAML", "error", err)
		http.Error(w, "Failed to prepare configuration for saving", http.StatusInternalServerError)
		return
	}

	if err := os.WriteFile(cfile, yamlData, 0o644); err != nil {
		slog.Error("Failed to write updated config file", "error", err)
		http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
		return
	}

	slog.Info("Successfully updated config file, application will reload.")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Configuration updated successfully.")
}
