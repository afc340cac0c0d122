package rpi

import (
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"birdhaus.net/crowctl/config"
)

// adcReference is the MCP3008 reference voltage on the board.
const adcReference = 3.3

// adcReader reads channels of the MCP3008 over SPI. The mutex keeps
// the light and battery readers from interleaving transactions.
type adcReader struct {
	mu sync.Mutex
}

func (a *adcReader) read(channel byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	// MCP3008 single-ended conversion: start bit, channel selector,
	// then clock out the 10 bit result.
	data := []byte{1, (8 + channel) << 4, 0}
	rpio.SpiExchange(data)
	return decodeAdc(data)
}

// decodeAdc extracts the 10 bit conversion result from the exchanged
// MCP3008 frame.
func decodeAdc(frame []byte) int {
	return ((int(frame[1]) & 3) << 8) + int(frame[2])
}

// LightSensor reads the photoresistor channel of the ADC.
type LightSensor struct {
	adc     *adcReader
	channel byte
}

func newLightSensor(adc *adcReader, conf config.SensorsConfig) *LightSensor {
	return &LightSensor{adc: adc, channel: conf.AdcChannel}
}

func (s *LightSensor) Read() (int, error) {
	return s.adc.read(s.channel), nil
}

// BatterySensor reads the supply voltage through a resistor divider on
// another ADC channel.
type BatterySensor struct {
	adc     *adcReader
	channel byte
	divider float64
}

func newBatterySensor(adc *adcReader, conf config.BatteryConfig) *BatterySensor {
	return &BatterySensor{adc: adc, channel: conf.AdcChannel, divider: conf.DividerRatio}
}

func (b *BatterySensor) Voltage() (float64, error) {
	return adcToVoltage(b.adc.read(b.channel), b.divider), nil
}

// adcToVoltage converts a raw 10 bit reading back to the voltage in
// front of the divider.
func adcToVoltage(raw int, dividerRatio float64) float64 {
	return float64(raw) / 1023.0 * adcReference * dividerRatio
}
