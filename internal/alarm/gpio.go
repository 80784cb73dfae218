package alarm

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIO drives a buzzer on a GPIO character device line.
type GPIO struct {
	line *gpiocdev.Line
}

// NewGPIO requests the buzzer line as an output, initially off,
// e.g. NewGPIO("gpiochip0", 18).
func NewGPIO(chip string, pin int) (*GPIO, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request buzzer line %s:%d: %w", chip, pin, err)
	}

	return &GPIO{line: line}, nil
}

// SetOn drives the buzzer line high.
func (g *GPIO) SetOn() error {
	return g.line.SetValue(1)
}

// SetOff drives the buzzer line low.
func (g *GPIO) SetOff() error {
	return g.line.SetValue(0)
}

// Close releases the GPIO line.
func (g *GPIO) Close() error {
	return g.line.Close()
}
