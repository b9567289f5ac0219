package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"game-station/internal/log"
)

// Board owns the station's pins.
type Board struct {
	drv    Driver
	logger zerolog.Logger
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	stop   chan struct{}
}

// Open exports the LED outputs and the demo-mode input.
func Open(drv Driver) (*Board, error) {
	b := &Board{
		drv:    drv,
		logger: log.WithComponent("gpio"),
		stop:   make(chan struct{}),
	}
	for _, p := range []struct {
		pin Pin
		dir Direction
	}{
		{PinScoreLED, Out},
		{PinStatusLED, Out},
		{PinDemoMode, In},
	} {
		if err := drv.Export(p.pin, p.dir); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func managed(pin Pin) bool {
	return pin == PinScoreLED || pin == PinStatusLED || pin == PinDemoMode
}

// Pulse drives pin high for d and then low again, without blocking the caller.
func (b *Board) Pulse(pin Pin, d time.Duration) error {
	if pin != PinScoreLED && pin != PinStatusLED {
		return fmt.Errorf("%w: %d is not an output", ErrUnknownPin, pin)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.drv.Write(pin, true); err != nil {
			b.logger.Warn().Err(err).Int("pin", int(pin)).Msg("pulse on failed")
			return
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-b.stop:
		}
		if err := b.drv.Write(pin, false); err != nil {
			b.logger.Warn().Err(err).Int("pin", int(pin)).Msg("pulse off failed")
		}
	}()
	return nil
}

// ReadPin returns 1 when pin reads high and 0 otherwise, including on read errors.
func (b *Board) ReadPin(pin Pin) int {
	if !managed(pin) {
		b.logger.Warn().Int("pin", int(pin)).Msg("read of unmanaged pin")
		return 0
	}
	high, err := b.drv.Read(pin)
	if err != nil {
		b.logger.Warn().Err(err).Int("pin", int(pin)).Msg("pin read failed")
		return 0
	}
	if high {
		return 1
	}
	return 0
}

// Close ends running pulses, turns the LEDs off and releases the outputs.
func (b *Board) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.stop)
	b.mu.Unlock()

	b.wg.Wait()
	var firstErr error
	for _, pin := range []Pin{PinScoreLED, PinStatusLED} {
		if err := b.drv.Write(pin, false); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := b.drv.Unexport(pin); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
