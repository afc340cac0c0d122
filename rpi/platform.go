// Package rpi is the real-hardware platform: servo, eye LEDs, button,
// ADC sensors and audio of a physical bird on a Raspberry Pi.
package rpi

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"birdhaus.net/crowctl/audio"
	"birdhaus.net/crowctl/config"
	"birdhaus.net/crowctl/hardware"
	"birdhaus.net/crowctl/platform"
	"birdhaus.net/crowctl/util"
)

type RaspberryPiPlatform struct {
	conf  *config.Config
	clock util.Clock

	bird   *hardware.Bird
	servo  *Servo
	leds   *Leds
	player *audio.Player
	button rpio.Pin
	spi    bool

	pressEvents chan *platform.Press
	stopChan    chan bool
	buttonWg    sync.WaitGroup
	readyChan   chan bool
}

func NewPlatform(conf *config.Config) *RaspberryPiPlatform {
	return &RaspberryPiPlatform{
		conf:        conf,
		clock:       &util.RealClock{},
		pressEvents: make(chan *platform.Press),
		stopChan:    make(chan bool),
		readyChan:   make(chan bool),
	}
}

func (p *RaspberryPiPlatform) Start() error {
	slog.Info("Initialise GPIO and SPI...")
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}

	var light hardware.LightSensor
	var battery hardware.Battery
	if p.conf.Sensors.LightEnabled || p.conf.Battery.Enabled {
		if err := rpio.SpiBegin(rpio.Spi0); err != nil {
			rpio.Close()
			return fmt.Errorf("failed to begin spi: %w", err)
		}
		rpio.SpiSpeed(p.conf.Hardware.SPIFrequency)
		p.spi = true

		adc := &adcReader{}
		if p.conf.Sensors.LightEnabled {
			light = newLightSensor(adc, p.conf.Sensors)
		}
		if p.conf.Battery.Enabled {
			battery = newBatterySensor(adc, p.conf.Battery)
		}
	}

	p.servo = newServo(p.conf.Hardware.ServoPin, p.conf.Servo)
	p.leds = newLeds(p.conf.Hardware.LedPin, p.conf.Leds)

	player, err := audio.NewPlayer(p.conf.Audio)
	if err != nil {
		p.teardownPins()
		return fmt.Errorf("failed to set up audio: %w", err)
	}
	p.player = player

	p.button = rpio.Pin(p.conf.Hardware.ButtonPin)
	p.button.Input()
	p.button.PullUp()

	p.bird = &hardware.Bird{
		Servo: p.servo,
		Leds:  p.leds,
		Amp:   p.player,
		Light: light,
		Power: battery,
	}
	p.bird.Conditions = hardware.NewEvaluator(light, battery, p.conf, p.clock)

	p.buttonWg.Add(1)
	go p.buttonDriver()

	close(p.readyChan) // For RPi, we are ready immediately.
	return nil
}

func (p *RaspberryPiPlatform) Stop() {
	close(p.stopChan)
	p.buttonWg.Wait()

	if p.player != nil {
		p.player.Close()
	}
	p.teardownPins()
}

func (p *RaspberryPiPlatform) teardownPins() {
	if p.leds != nil {
		p.leds.SetBrightness(0)
	}
	if p.servo != nil {
		p.servo.halt()
	}
	if p.spi {
		rpio.SpiEnd(rpio.Spi0)
		p.spi = false
	}
	if err := rpio.Close(); err != nil {
		slog.Error("Error closing rpio", "error", err)
	}
}

func (p *RaspberryPiPlatform) Bird() *hardware.Bird {
	return p.bird
}

func (p *RaspberryPiPlatform) ButtonEvents() <-chan *platform.Press {
	return p.pressEvents
}

func (p *RaspberryPiPlatform) Ready() <-chan bool {
	return p.readyChan
}

// buttonDriver polls the button pin and converts the level changes into
// press events. The button pulls the line low when pressed.
func (p *RaspberryPiPlatform) buttonDriver() {
	defer p.buttonWg.Done()
	detector := newPressDetector(p.conf.Hardware.LongPress)
	ticker := time.NewTicker(p.conf.Hardware.LoopDelay)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			slog.Info("Ending ButtonDriver go-routine (RPi)")
			return
		case <-ticker.C:
			pressed := p.button.Read() == rpio.Low
			if press := detector.sample(pressed, p.clock.Now()); press != nil {
				slog.Debug("Button press detected", "kind", press.Kind, "duration", press.Duration)
				p.pressEvents <- press
			}
		}
	}
}
