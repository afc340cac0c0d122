// Package config loads and validates the crowctl YAML configuration.
// Missing keys fall back to documented defaults so a minimal file is
// enough to get a bird moving.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Fallback policies for the clock chime clip selection.
const (
	FallbackRepeatSingle = "repeat_single"
	FallbackClosestMatch = "closest_match"
	FallbackRandomFill   = "random_fill"
)

type BehaviorConfig struct {
	IntervalMinutes int           `yaml:"IntervalMinutes" json:"IntervalMinutes"`
	StatusInterval  time.Duration `yaml:"StatusInterval" json:"StatusInterval"`
	NightFlashCount int           `yaml:"NightFlashCount" json:"NightFlashCount"`
	ErrorFlashCount int           `yaml:"ErrorFlashCount" json:"ErrorFlashCount"`
	StepDelay       time.Duration `yaml:"StepDelay" json:"StepDelay"`
}

// Float returns a pointer to v. The few config keys where an explicit
// zero differs from an absent key are pointers; this builds their
// values.
func Float(v float64) *float64 { return &v }

type ClockConfig struct {
	ChimeIntervalMinutes int            `yaml:"ChimeIntervalMinutes" json:"ChimeIntervalMinutes"`
	ChimeVolume          *float64       `yaml:"ChimeVolume" json:"ChimeVolume"`
	ButtonImmediateChime bool           `yaml:"ButtonImmediateChime" json:"ButtonImmediateChime"`
	PulseGap             time.Duration  `yaml:"PulseGap" json:"PulseGap"`
	Clips                map[string]int `yaml:"Clips" json:"Clips"`
	FallbackPolicy       string         `yaml:"FallbackPolicy" json:"FallbackPolicy"`
}

type RandomConfig struct {
	IntervalVariance *float64 `yaml:"IntervalVariance" json:"IntervalVariance"`
}

type DebugConfig struct {
	IntervalSeconds int `yaml:"IntervalSeconds" json:"IntervalSeconds"`
}

type AudioConfig struct {
	Directory   string   `yaml:"Directory" json:"Directory"`
	SampleRate  int      `yaml:"SampleRate" json:"SampleRate"`
	Volume      *float64 `yaml:"Volume" json:"Volume"`
	QuietVolume float64  `yaml:"QuietVolume" json:"QuietVolume"`
}

type LedsConfig struct {
	MaxBrightness float64       `yaml:"MaxBrightness" json:"MaxBrightness"`
	FadeStep      float64       `yaml:"FadeStep" json:"FadeStep"`
	FadeDelay     time.Duration `yaml:"FadeDelay" json:"FadeDelay"`
}

type ServoConfig struct {
	TopPosition    float64       `yaml:"TopPosition" json:"TopPosition"`
	BottomPosition float64       `yaml:"BottomPosition" json:"BottomPosition"`
	RestPosition   float64       `yaml:"RestPosition" json:"RestPosition"`
	MovePause      time.Duration `yaml:"MovePause" json:"MovePause"`
}

type SensorsConfig struct {
	LightEnabled        bool `yaml:"LightEnabled" json:"LightEnabled"`
	LightThreshold      int  `yaml:"LightThreshold" json:"LightThreshold"`
	QuietLightThreshold int  `yaml:"QuietLightThreshold" json:"QuietLightThreshold"`
	AdcChannel          byte `yaml:"AdcChannel" json:"AdcChannel"`
}

type BatteryConfig struct {
	Enabled         bool    `yaml:"Enabled" json:"Enabled"`
	AdcChannel      byte    `yaml:"AdcChannel" json:"AdcChannel"`
	CriticalVoltage float64 `yaml:"CriticalVoltage" json:"CriticalVoltage"`
	DividerRatio    float64 `yaml:"DividerRatio" json:"DividerRatio"`
}

// NightConfig drives the sunrise/sunset fallback used for darkness
// classification when no light sensor is fitted.
type NightConfig struct {
	Latitude  float64 `yaml:"Latitude" json:"Latitude"`
	Longitude float64 `yaml:"Longitude" json:"Longitude"`
}

type QueueConfig struct {
	MaxPending int `yaml:"MaxPending" json:"MaxPending"`
}

type HardwareConfig struct {
	LedPin       int           `yaml:"LedPin"`
	ServoPin     int           `yaml:"ServoPin"`
	ButtonPin    int           `yaml:"ButtonPin"`
	PowerPin     int           `yaml:"PowerPin"`
	SPIFrequency int           `yaml:"SPIFrequency"`
	LoopDelay    time.Duration `yaml:"LoopDelay"`
	LongPress    time.Duration `yaml:"LongPress"`
}

type LoggingConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

type WebConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Addr    string `yaml:"Addr"`
}

type Config struct {
	RealHW     bool   `yaml:"-" json:"-"`
	Configfile string `yaml:"-" json:"-"`

	Mode           string   `yaml:"Mode"`
	AvailableModes []string `yaml:"AvailableModes"`

	Behavior BehaviorConfig `yaml:"Behavior" json:"Behavior"`
	Clock    ClockConfig    `yaml:"Clock" json:"Clock"`
	Random   RandomConfig   `yaml:"Random" json:"Random"`
	Debug    DebugConfig    `yaml:"Debug" json:"Debug"`
	Audio    AudioConfig    `yaml:"Audio" json:"Audio"`
	Leds     LedsConfig     `yaml:"Leds" json:"Leds"`
	Servo    ServoConfig    `yaml:"Servo" json:"Servo"`
	Sensors  SensorsConfig  `yaml:"Sensors" json:"Sensors"`
	Battery  BatteryConfig  `yaml:"Battery" json:"Battery"`
	Night    NightConfig    `yaml:"Night" json:"Night"`
	Queue    QueueConfig    `yaml:"Queue" json:"Queue"`
	Hardware HardwareConfig `yaml:"Hardware"`
	Logging  LoggingConfig  `yaml:"Logging"`
	Web      WebConfig      `yaml:"Web"`
}

// ReadConfig loads, defaults and validates the configuration file.
func ReadConfig(cfile string) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	conf := &Config{}
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.Configfile = cfile

	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// ApplyDefaults fills in every documented default for keys the file
// left out. It is idempotent.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = "default"
	}
	if len(c.AvailableModes) == 0 {
		c.AvailableModes = []string{"default"}
	}
	if c.Behavior.IntervalMinutes == 0 {
		c.Behavior.IntervalMinutes = 60
	}
	if c.Behavior.StatusInterval == 0 {
		c.Behavior.StatusInterval = 30 * time.Second
	}
	if c.Behavior.NightFlashCount == 0 {
		c.Behavior.NightFlashCount = 2
	}
	if c.Behavior.ErrorFlashCount == 0 {
		c.Behavior.ErrorFlashCount = 5
	}
	if c.Behavior.StepDelay == 0 {
		c.Behavior.StepDelay = 500 * time.Millisecond
	}
	if c.Clock.ChimeIntervalMinutes == 0 {
		c.Clock.ChimeIntervalMinutes = 60
	}
	// Zero is a valid setting for these three, so absence is tracked
	// through the pointer, not the value.
	if c.Clock.ChimeVolume == nil {
		c.Clock.ChimeVolume = Float(0.7)
	}
	if c.Clock.PulseGap == 0 {
		c.Clock.PulseGap = 800 * time.Millisecond
	}
	if c.Clock.FallbackPolicy == "" {
		c.Clock.FallbackPolicy = FallbackRepeatSingle
	}
	if c.Random.IntervalVariance == nil {
		c.Random.IntervalVariance = Float(0.25)
	}
	if c.Debug.IntervalSeconds == 0 {
		c.Debug.IntervalSeconds = 30
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 22050
	}
	if c.Audio.Volume == nil {
		c.Audio.Volume = Float(0.6)
	}
	if c.Audio.QuietVolume == 0 {
		c.Audio.QuietVolume = 0.3
	}
	if c.Leds.MaxBrightness == 0 {
		c.Leds.MaxBrightness = 1.0
	}
	if c.Leds.FadeStep == 0 {
		c.Leds.FadeStep = 0.05
	}
	if c.Leds.FadeDelay == 0 {
		c.Leds.FadeDelay = 5 * time.Millisecond
	}
	if c.Servo.TopPosition == 0 {
		c.Servo.TopPosition = 1.0
	}
	if c.Servo.RestPosition == 0 {
		c.Servo.RestPosition = 0.5
	}
	if c.Servo.MovePause == 0 {
		c.Servo.MovePause = 200 * time.Millisecond
	}
	if c.Sensors.LightThreshold == 0 {
		c.Sensors.LightThreshold = 1000
	}
	if c.Sensors.QuietLightThreshold == 0 {
		c.Sensors.QuietLightThreshold = 3000
	}
	if c.Battery.CriticalVoltage == 0 {
		c.Battery.CriticalVoltage = 3.3
	}
	if c.Battery.DividerRatio == 0 {
		c.Battery.DividerRatio = 2.0
	}
	if c.Queue.MaxPending == 0 {
		c.Queue.MaxPending = 64
	}
	if c.Hardware.LoopDelay == 0 {
		c.Hardware.LoopDelay = 10 * time.Millisecond
	}
	if c.Hardware.SPIFrequency == 0 {
		c.Hardware.SPIFrequency = 1000000
	}
	if c.Hardware.LongPress == 0 {
		c.Hardware.LongPress = time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}
}

// Validate checks the configuration for values no mode could work with.
func (c *Config) Validate() error {
	if len(c.AvailableModes) == 0 {
		return fmt.Errorf("AvailableModes must not be empty")
	}
	for _, vol := range []struct {
		name  string
		value *float64
	}{
		{"Audio.Volume", c.Audio.Volume},
		{"Audio.QuietVolume", &c.Audio.QuietVolume},
		{"Clock.ChimeVolume", c.Clock.ChimeVolume},
		{"Leds.MaxBrightness", &c.Leds.MaxBrightness},
	} {
		if vol.value == nil {
			continue
		}
		if *vol.value < 0 || *vol.value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", vol.name, *vol.value)
		}
	}
	if c.Behavior.IntervalMinutes < 0 {
		return fmt.Errorf("Behavior.IntervalMinutes must not be negative")
	}
	if c.Sensors.QuietLightThreshold < c.Sensors.LightThreshold {
		return fmt.Errorf("Sensors.QuietLightThreshold (%d) must not be below Sensors.LightThreshold (%d)",
			c.Sensors.QuietLightThreshold, c.Sensors.LightThreshold)
	}
	switch c.Clock.FallbackPolicy {
	case FallbackRepeatSingle, FallbackClosestMatch, FallbackRandomFill:
	default:
		return fmt.Errorf("Clock.FallbackPolicy must be one of %s, %s, %s, got %q",
			FallbackRepeatSingle, FallbackClosestMatch, FallbackRandomFill, c.Clock.FallbackPolicy)
	}
	for clip, weight := range c.Clock.Clips {
		if weight < 1 {
			return fmt.Errorf("Clock.Clips[%s] weight must be at least 1, got %d", clip, weight)
		}
	}
	if c.Queue.MaxPending < 1 {
		return fmt.Errorf("Queue.MaxPending must be at least 1")
	}
	return nil
}

// ActionInterval returns the base interval between timed actions.
func (c *Config) ActionInterval() time.Duration {
	return time.Duration(c.Behavior.IntervalMinutes) * time.Minute
}
