package hardware

import (
	"log/slog"

	"github.com/nathan-osman/go-sunrise"

	"birdhaus.net/crowctl/config"
	"birdhaus.net/crowctl/util"
)

// Condition classifies the environment at the moment an action fires.
// It is recomputed on every trigger and never persisted.
type Condition string

const (
	// CondNormal - bright enough for the full action.
	CondNormal Condition = "normal"
	// CondQuiet - dim light, act at reduced volume.
	CondQuiet Condition = "quiet"
	// CondDark - too dark, reduced silent feedback only.
	CondDark Condition = "dark"
	// CondCriticalBattery - conserve power, minimal signal only.
	CondCriticalBattery Condition = "critical_battery"
)

// Evaluator classifies light and battery state for the modes. Without a
// light sensor it falls back to sunrise/sunset for the configured
// location; without battery monitoring the battery always reads OK.
type Evaluator struct {
	light   LightSensor
	battery Battery
	clock   util.Clock

	lightThreshold      int
	quietLightThreshold int
	criticalVoltage     float64
	latitude            float64
	longitude           float64
}

// NewEvaluator creates an Evaluator. light and battery may be nil.
func NewEvaluator(light LightSensor, battery Battery, conf *config.Config, clock util.Clock) *Evaluator {
	return &Evaluator{
		light:               light,
		battery:             battery,
		clock:               clock,
		lightThreshold:      conf.Sensors.LightThreshold,
		quietLightThreshold: conf.Sensors.QuietLightThreshold,
		criticalVoltage:     conf.Battery.CriticalVoltage,
		latitude:            conf.Night.Latitude,
		longitude:           conf.Night.Longitude,
	}
}

// LightCondition classifies the ambient light as dark, quiet or normal.
// A failing sensor reads as normal so a loose wire doesn't silence the
// bird for good.
func (e *Evaluator) LightCondition() Condition {
	if e.light == nil {
		return e.sunCondition()
	}
	level, err := e.light.Read()
	if err != nil {
		slog.Warn("Light sensor read failed, assuming normal light", "error", err)
		return CondNormal
	}
	switch {
	case level < e.lightThreshold:
		return CondDark
	case level < e.quietLightThreshold:
		return CondQuiet
	default:
		return CondNormal
	}
}

// sunCondition is the sensorless fallback: dark between sunset and
// sunrise at the configured location.
func (e *Evaluator) sunCondition() Condition {
	now := e.clock.Now()
	rise, set := sunrise.SunriseSunset(e.latitude, e.longitude, now.Year(), now.Month(), now.Day())
	if now.After(rise) && now.Before(set) {
		return CondNormal
	}
	return CondDark
}

// BatteryOK reports whether the supply voltage is above the critical
// threshold. Reads failing is treated as OK - a flaky ADC must not put
// the bird into permanent battery-warning mode.
func (e *Evaluator) BatteryOK() bool {
	if e.battery == nil {
		return true
	}
	voltage, err := e.battery.Voltage()
	if err != nil {
		slog.Warn("Battery read failed, assuming OK", "error", err)
		return true
	}
	return voltage > e.criticalVoltage
}

// Evaluate combines both classifications with the strict priority order
// the modes dispatch on: critical battery pre-empts everything, then
// darkness, then dim light, then normal.
func (e *Evaluator) Evaluate() Condition {
	if !e.BatteryOK() {
		return CondCriticalBattery
	}
	return e.LightCondition()
}
