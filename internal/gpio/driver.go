// Package gpio drives the station's status LEDs and reads its demo-mode switch.
package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// Pin is a BCM GPIO number.
type Pin int

// Pins wired on the station board.
const (
	PinScoreLED  Pin = 17
	PinStatusLED Pin = 27
	PinDemoMode  Pin = 22
)

// Direction of a pin.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// ErrUnknownPin is returned for pins the board does not manage.
var ErrUnknownPin = errors.New("gpio: unknown pin")

// Driver claims pins and reads or writes their level.
type Driver interface {
	Export(pin Pin, dir Direction) error
	Unexport(pin Pin) error
	Write(pin Pin, high bool) error
	Read(pin Pin) (bool, error)
}

// DefaultChip is the GPIO character device carrying the header pins on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// line is the part of *gpiocdev.Line the driver uses.
type line interface {
	Value() (int, error)
	SetValue(value int) error
	Close() error
}

// CdevDriver requests lines from the GPIO character device. Pin numbers are line
// offsets on Chip, which match the BCM numbering on the Pi header chip.
type CdevDriver struct {
	Chip     string // defaults to DefaultChip
	Consumer string // label shown by gpioinfo

	mu          sync.Mutex
	lines       map[Pin]line
	requestLine func(chip string, offset int, dir Direction, consumer string) (line, error)
}

// NewCdevDriver returns a driver for chip; an empty chip selects DefaultChip.
func NewCdevDriver(chip, consumer string) *CdevDriver {
	if chip == "" {
		chip = DefaultChip
	}
	return &CdevDriver{
		Chip:        chip,
		Consumer:    consumer,
		lines:       make(map[Pin]line),
		requestLine: requestCdevLine,
	}
}

func requestCdevLine(chip string, offset int, dir Direction, consumer string) (line, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.WithConsumer(consumer)}
	if dir == Out {
		opts = append(opts, gpiocdev.AsOutput(0))
	} else {
		opts = append(opts, gpiocdev.AsInput)
	}
	l, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Export requests the line with the given direction. Outputs start low.
func (d *CdevDriver) Export(pin Pin, dir Direction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.lines[pin]; ok {
		return nil
	}
	l, err := d.requestLine(d.Chip, int(pin), dir, d.Consumer)
	if err != nil {
		return fmt.Errorf("request %s line %d: %w", d.Chip, pin, err)
	}
	d.lines[pin] = l
	return nil
}

// Unexport releases the line.
func (d *CdevDriver) Unexport(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.lines[pin]
	if !ok {
		return nil
	}
	delete(d.lines, pin)
	if err := l.Close(); err != nil {
		return fmt.Errorf("release line %d: %w", pin, err)
	}
	return nil
}

// Write drives an output line.
func (d *CdevDriver) Write(pin Pin, high bool) error {
	l, err := d.line(pin)
	if err != nil {
		return err
	}
	v := 0
	if high {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Read samples a line.
func (d *CdevDriver) Read(pin Pin) (bool, error) {
	l, err := d.line(pin)
	if err != nil {
		return false, err
	}
	v, err := l.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v == 1, nil
}

func (d *CdevDriver) line(pin Pin) (line, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.lines[pin]
	if !ok {
		return nil, fmt.Errorf("%w: %d is not requested", ErrUnknownPin, pin)
	}
	return l, nil
}

// SimDriver keeps pin levels in memory for development machines and tests.
type SimDriver struct {
	mu     sync.Mutex
	levels map[Pin]bool
	writes map[Pin]int
}

// NewSimDriver returns an empty simulated driver.
func NewSimDriver() *SimDriver {
	return &SimDriver{levels: make(map[Pin]bool), writes: make(map[Pin]int)}
}

// Export registers the pin at low level.
func (d *SimDriver) Export(pin Pin, dir Direction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.levels[pin]; !ok {
		d.levels[pin] = false
	}
	return nil
}

// Unexport forgets the pin.
func (d *SimDriver) Unexport(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.levels, pin)
	return nil
}

func (d *SimDriver) Write(pin Pin, high bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.levels[pin] = high
	d.writes[pin]++
	return nil
}

func (d *SimDriver) Read(pin Pin) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.levels[pin], nil
}

// Set forces an input level, e.g. flipping the demo switch.
func (d *SimDriver) Set(pin Pin, high bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.levels[pin] = high
}

// Writes returns how many times pin was written.
func (d *SimDriver) Writes(pin Pin) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes[pin]
}
