package sensor

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/domain/doorbell"
)

// Driver acquires input pins.
type Driver interface {
	Acquire(pin int) (Pin, error)
}

// Pin is an acquired digital input.
type Pin interface {
	Read() (doorbell.Level, error)
	Close() error
}

// consumerLabel is shown by gpioinfo for the requested line.
const consumerLabel = "doorbell"

// GPIODriver requests lines from a Linux GPIO character device.
type GPIODriver struct {
	// chip is the device name, e.g. gpiochip0.
	chip string
	// bias is the input bias applied to requested lines.
	bias string
}

// NewGPIODriver creates a driver for the given chip and bias name.
func NewGPIODriver(chip, bias string) *GPIODriver {
	return &GPIODriver{
		chip: chip,
		bias: bias,
	}
}

// Acquire requests the line as an input with the configured bias.
func (d *GPIODriver) Acquire(pin int) (Pin, error) {
	options := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithConsumer(consumerLabel),
	}

	switch d.bias {
	case config.BiasPullDown:
		options = append(options, gpiocdev.WithPullDown)
	case config.BiasDisabled:
		options = append(options, gpiocdev.WithBiasDisabled)
	default:
		options = append(options, gpiocdev.WithPullUp)
	}

	line, err := gpiocdev.RequestLine(d.chip, pin, options...)
	if err != nil {
		return nil, fmt.Errorf("request line %d on %s: %w", pin, d.chip, err)
	}

	return &gpioPin{line: line}, nil
}

// gpioPin adapts a requested gpiocdev line to Pin.
type gpioPin struct {
	line *gpiocdev.Line
}

// Read returns the current line level.
func (p *gpioPin) Read() (doorbell.Level, error) {
	value, err := p.line.Value()
	if err != nil {
		return doorbell.Low, fmt.Errorf("read line value: %w", err)
	}

	if value != 0 {
		return doorbell.High, nil
	}

	return doorbell.Low, nil
}

// Close releases the line.
func (p *gpioPin) Close() error {
	return p.line.Close()
}
