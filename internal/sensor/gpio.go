package sensor

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIO reads a PIR motion sensor from a GPIO character device line.
type GPIO struct {
	line *gpiocdev.Line
}

// NewGPIO requests the sensor line as a pulled-down input,
// e.g. NewGPIO("gpiochip0", 17).
func NewGPIO(chip string, pin int) (*GPIO, error) {
	line, err := gpiocdev.RequestLine(chip, pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
	)
	if err != nil {
		return nil, fmt.Errorf("request sensor line %s:%d: %w", chip, pin, err)
	}

	return &GPIO{line: line}, nil
}

// Read returns true when the PIR line is high.
func (g *GPIO) Read() (bool, error) {
	value, err := g.line.Value()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSensorUnavailable, err)
	}

	return value != 0, nil
}

// Close releases the GPIO line.
func (g *GPIO) Close() error {
	return g.line.Close()
}
