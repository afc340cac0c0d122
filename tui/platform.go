// Package tui is the simulation platform: a terminal bird with fake
// drivers behind the same capability interfaces as the real hardware,
// so every mode can be exercised without a Raspberry Pi attached.
package tui

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/exp/maps"

	"birdhaus.net/crowctl/config"
	"birdhaus.net/crowctl/hardware"
	"birdhaus.net/crowctl/logging"
	"birdhaus.net/crowctl/platform"
	"birdhaus.net/crowctl/util"
)

type TUIPlatform struct {
	conf  *config.Config
	state *simState
	bird  *hardware.Bird

	pressEvents  chan *platform.Press
	ossignalChan chan os.Signal

	app      *tview.Application
	intro    *tview.TextView
	birdView *tview.TextView
	logView  *tview.TextView
	keys     map[rune]keyAction

	stopChan     chan bool
	watcherWg    sync.WaitGroup
	logFlushOnce sync.Once
	readyChan    chan bool
}

// keyAction is one interactive binding shown in the intro pane.
type keyAction struct {
	desc string
	run  func(p *TUIPlatform)
}

func NewPlatform(conf *config.Config, ossignalchan chan os.Signal) *TUIPlatform {
	inst := &TUIPlatform{
		conf:         conf,
		ossignalChan: ossignalchan,
		pressEvents:  make(chan *platform.Press),
		stopChan:     make(chan bool),
		readyChan:    make(chan bool),
	}
	inst.keys = map[rune]keyAction{
		'b': {"short button press", func(p *TUIPlatform) {
			p.pressEvents <- platform.NewPress(platform.PressShort, 200*time.Millisecond, time.Now())
		}},
		'B': {"long button press (cycle mode)", func(p *TUIPlatform) {
			p.pressEvents <- platform.NewPress(platform.PressLong, p.conf.Hardware.LongPress, time.Now())
		}},
		'+': {"more ambient light", func(p *TUIPlatform) {
			p.state.update(func(b *BirdState) { b.LightLevel = min(b.LightLevel+500, 10000) })
		}},
		'-': {"less ambient light", func(p *TUIPlatform) {
			p.state.update(func(b *BirdState) { b.LightLevel = max(b.LightLevel-500, 0) })
		}},
		'v': {"toggle critical battery", func(p *TUIPlatform) {
			p.state.update(func(b *BirdState) {
				if b.Voltage > p.conf.Battery.CriticalVoltage {
					b.Voltage = p.conf.Battery.CriticalVoltage - 0.3
				} else {
					b.Voltage = 4.0
				}
			})
		}},
	}
	return inst
}

func (p *TUIPlatform) Start() error {
	p.state = newSimState(p.conf)

	servo := &simServo{state: p.state, rest: p.conf.Servo.RestPosition}
	leds := &simLeds{state: p.state, conf: p.conf.Leds}
	amp := &simAmp{state: p.state}
	light := &simLight{state: p.state}
	battery := &simBattery{state: p.state}

	p.bird = &hardware.Bird{
		Servo: servo,
		Leds:  leds,
		Amp:   amp,
		Light: light,
		Power: battery,
	}
	p.bird.Conditions = hardware.NewEvaluator(light, battery, p.conf, &util.RealClock{})

	p.initSimulationTUI()

	p.watcherWg.Add(1)
	go p.stateWatcher()
	return nil
}

func (p *TUIPlatform) Stop() {
	close(p.stopChan)
	p.watcherWg.Wait()

	// The log pane dies with the app, buffer what still arrives.
	logging.BufferOutput()
	if p.app != nil {
		p.app.Stop()
	}
}

func (p *TUIPlatform) Bird() *hardware.Bird {
	return p.bird
}

func (p *TUIPlatform) ButtonEvents() <-chan *platform.Press {
	return p.pressEvents
}

func (p *TUIPlatform) Ready() <-chan bool {
	return p.readyChan
}

// stateWatcher redraws the bird pane whenever a driver published a new
// snapshot.
func (p *TUIPlatform) stateWatcher() {
	defer p.watcherWg.Done()
	for {
		select {
		case <-p.stopChan:
			slog.Info("Ending StateWatcher go-routine (TUI)")
			return
		case <-p.state.changed.Channel():
			p.app.QueueUpdateDraw(p.renderBird)
		}
	}
}

func (p *TUIPlatform) getIntroText() string {
	runes := maps.Keys(p.keys)
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })

	var parts []string
	for _, r := range runes {
		parts = append(parts, fmt.Sprintf("[blue]%c[-] %s", r, p.keys[r].desc))
	}
	line1 := strings.Join(parts, " | ")
	line2 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"
	return fmt.Sprintf("%s\n%s", line1, line2)
}

func (p *TUIPlatform) initSimulationTUI() {
	p.app = tview.NewApplication()

	// --- Intro Pane ---
	p.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	p.intro.SetText(p.getIntroText())
	p.intro.SetBorder(true).SetTitle(" CROWCTL Simulation ").SetTitleColor(tcell.ColorLightBlue)
	p.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	// --- Bird Pane ---
	p.birdView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	p.birdView.SetBorder(true).SetTitle(" Bird ")
	p.birdView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- Log Pane ---
	p.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			p.logView.ScrollToEnd()
			p.app.Draw()
		})
	p.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	p.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// --- Layout ---
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(p.intro, 4, 0, false).
		AddItem(p.birdView, 9, 0, false).
		AddItem(p.logView, 0, 1, true)

	// --- Flush logs after first draw ---
	p.app.SetAfterDrawFunc(func(screen tcell.Screen) {
		p.logFlushOnce.Do(func() {
			logWriter := tview.ANSIWriter(p.logView)
			logging.SetOutput(logWriter)
			close(p.readyChan)
		})
	})

	// --- Input Handling ---
	p.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			p.app.Stop()
			p.ossignalChan <- os.Interrupt
			return nil
		case tcell.KeyRune:
			r := event.Rune()
			if action, exist := p.keys[r]; exist {
				action.run(p)
				return nil
			}
			switch r {
			case 'q', 'Q':
				p.ossignalChan <- os.Interrupt
				return nil
			case 'r', 'R':
				p.ossignalChan <- syscall.SIGHUP
				return nil
			}
		case tcell.KeyUp:
			row, col := p.logView.GetScrollOffset()
			p.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := p.logView.GetScrollOffset()
			p.logView.ScrollTo(row+1, col)
			return nil
		}
		return event
	})

	// --- Start TUI ---
	go func() {
		if err := p.app.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			p.ossignalChan <- os.Interrupt
		}
	}()
}

// renderBird redraws the bird pane from the latest state snapshot.
// Must be called on the TUI thread via app.QueueUpdateDraw().
func (p *TUIPlatform) renderBird() {
	s := p.state.changed.Value()

	var buf strings.Builder
	buf.WriteString("\n  ")
	buf.WriteString(eyeString(s.Brightness))

	buf.WriteString(fmt.Sprintf("\n\n  beak  %s %.2f", gauge(s.ServoPos, 20), s.ServoPos))

	clip := s.Clip
	if clip == "" {
		clip = "[gray]silent[-]"
	} else {
		clip = fmt.Sprintf("[green]%s[-]", clip)
	}
	buf.WriteString(fmt.Sprintf("\n  audio %s (volume %.2f)", clip, s.Volume))

	buf.WriteString(fmt.Sprintf("\n  light %-5d (%s)", s.LightLevel, p.bird.Conditions.LightCondition()))

	color := "green"
	if s.Voltage <= p.conf.Battery.CriticalVoltage {
		color = "red"
	}
	buf.WriteString(fmt.Sprintf("\n  power [%s]%.2fV[-]", color, s.Voltage))

	p.birdView.SetText(buf.String())
}

// eyeString renders the two eyes scaled by brightness.
func eyeString(brightness float64) string {
	if brightness <= 0 {
		return "[gray]○    ○[-]"
	}
	v := byte(55 + brightness*200)
	return fmt.Sprintf("[#%02x%02x00]●    ●[-]", v, v)
}

// gauge renders a 0..1 value as a fixed-width bar. Square brackets are
// avoided, tview would eat them as color tags.
func gauge(value float64, width int) string {
	filled := int(value*float64(width) + 0.5)
	filled = min(max(filled, 0), width)
	return "‹" + strings.Repeat("█", filled) + strings.Repeat("·", width-filled) + "›"
}
