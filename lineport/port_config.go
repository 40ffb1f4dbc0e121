package lineport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/photonio/go-optocon/logger"
)

// Default and boundary values for Config.
const (
	DefaultBaudRate         = 115200
	DefaultDataBits         = 8
	DefaultReadTermination  = "\r\n"
	DefaultWriteTermination = "\r\n"
	DefaultReadTimeout      = 2 * time.Second
	DefaultQueryDelay       = 0 * time.Millisecond

	MinReadTimeout = 10 * time.Millisecond
	MaxReadTimeout = 30 * time.Second
	MaxQueryDelay  = 5 * time.Second
)

// Config carries the serial parameters and line framing of a Port.
// Create it with NewConfig and adjust it with PortOption values.
type Config struct {
	portName         string
	baudRate         int
	dataBits         int
	parity           serial.Parity
	stopBits         serial.StopBits
	readTermination  string
	writeTermination string
	readTimeout      time.Duration
	queryDelay       time.Duration
	logger           logger.Logger
}

// NewConfig creates a Config for the named serial device with 8N1 framing,
// CRLF terminations and the default timeouts, then applies opts in order.
func NewConfig(portName string, opts ...PortOption) (*Config, error) {
	if portName == "" {
		return nil, errors.New("lineport: port name is empty")
	}

	cfg := &Config{
		portName:         portName,
		baudRate:         DefaultBaudRate,
		dataBits:         DefaultDataBits,
		parity:           serial.NoParity,
		stopBits:         serial.OneStopBit,
		readTermination:  DefaultReadTermination,
		writeTermination: DefaultWriteTermination,
		readTimeout:      DefaultReadTimeout,
		queryDelay:       DefaultQueryDelay,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// PortName returns the serial device name, e.g. "/dev/ttyUSB0".
func (c *Config) PortName() string { return c.portName }

// BaudRate returns the configured baud rate.
func (c *Config) BaudRate() int { return c.baudRate }

// DataBits returns the configured data bits per character.
func (c *Config) DataBits() int { return c.dataBits }

// Parity returns the configured parity mode.
func (c *Config) Parity() serial.Parity { return c.parity }

// StopBits returns the configured stop bits.
func (c *Config) StopBits() serial.StopBits { return c.stopBits }

// ReadTermination returns the inbound line termination.
func (c *Config) ReadTermination() string { return c.readTermination }

// WriteTermination returns the outbound line termination.
func (c *Config) WriteTermination() string { return c.writeTermination }

// ReadTimeout returns the silence window bounding each device read.
func (c *Config) ReadTimeout() time.Duration { return c.readTimeout }

// QueryDelay returns the minimum wait between a query and its reply read.
func (c *Config) QueryDelay() time.Duration { return c.queryDelay }

// GetLogger returns the configured logger.
func (c *Config) GetLogger() logger.Logger { return c.logger }

// mode builds the serial mode for the given baud rate, keeping the
// configured character framing.
func (c *Config) mode(baudRate int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: c.dataBits,
		Parity:   c.parity,
		StopBits: c.stopBits,
	}
}

// PortOption configures a Config.
type PortOption interface {
	apply(cfg *Config) error
}

type portOptFunc func(cfg *Config) error

func (f portOptFunc) apply(cfg *Config) error {
	return f(cfg)
}

// WithBaudRate sets the baud rate. The rate must be positive.
func WithBaudRate(baudRate int) PortOption {
	return portOptFunc(func(cfg *Config) error {
		if baudRate <= 0 {
			return fmt.Errorf("lineport: baud rate %v out of range, must be positive", baudRate)
		}
		cfg.baudRate = baudRate

		return nil
	})
}

// WithDataBits sets the data bits per character, one of 5, 6, 7 or 8.
func WithDataBits(dataBits int) PortOption {
	return portOptFunc(func(cfg *Config) error {
		switch dataBits {
		case 5, 6, 7, 8:
			cfg.dataBits = dataBits
			return nil
		default:
			return fmt.Errorf("lineport: data bits %v out of range, must be 5, 6, 7 or 8", dataBits)
		}
	})
}

// WithParity sets the parity mode.
func WithParity(parity serial.Parity) PortOption {
	return portOptFunc(func(cfg *Config) error {
		if parity < serial.NoParity || parity > serial.SpaceParity {
			return fmt.Errorf("lineport: unknown parity %v", parity)
		}
		cfg.parity = parity

		return nil
	})
}

// WithStopBits sets the stop bits.
func WithStopBits(stopBits serial.StopBits) PortOption {
	return portOptFunc(func(cfg *Config) error {
		if stopBits < serial.OneStopBit || stopBits > serial.TwoStopBits {
			return fmt.Errorf("lineport: unknown stop bits %v", stopBits)
		}
		cfg.stopBits = stopBits

		return nil
	})
}

// WithReadTermination sets the inbound line termination. It must not be
// empty.
func WithReadTermination(term string) PortOption {
	return portOptFunc(func(cfg *Config) error {
		if term == "" {
			return errors.New("lineport: read termination is empty")
		}
		cfg.readTermination = term

		return nil
	})
}

// WithWriteTermination sets the outbound line termination. It must not be
// empty.
func WithWriteTermination(term string) PortOption {
	return portOptFunc(func(cfg *Config) error {
		if term == "" {
			return errors.New("lineport: write termination is empty")
		}
		cfg.writeTermination = term

		return nil
	})
}

// WithReadTimeout sets the silence window bounding each device read, in
// range [MinReadTimeout, MaxReadTimeout].
func WithReadTimeout(timeout time.Duration) PortOption {
	return portOptFunc(func(cfg *Config) error {
		if timeout < MinReadTimeout || timeout > MaxReadTimeout {
			return fmt.Errorf("lineport: read timeout %v out of range [%v, %v]",
				timeout, MinReadTimeout, MaxReadTimeout)
		}
		cfg.readTimeout = timeout

		return nil
	})
}

// WithQueryDelay sets the minimum wait between a query and its reply read,
// in range [0, MaxQueryDelay].
func WithQueryDelay(delay time.Duration) PortOption {
	return portOptFunc(func(cfg *Config) error {
		if delay < 0 || delay > MaxQueryDelay {
			return fmt.Errorf("lineport: query delay %v out of range [%v, %v]",
				delay, time.Duration(0), MaxQueryDelay)
		}
		cfg.queryDelay = delay

		return nil
	})
}

// WithLogger sets the logger used by the port.
func WithLogger(l logger.Logger) PortOption {
	return portOptFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("lineport: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// ParseParity maps a configuration token to a parity mode. The empty token
// means no parity.
func ParseParity(name string) (serial.Parity, error) {
	switch strings.ToLower(name) {
	case "", "none", "n":
		return serial.NoParity, nil
	case "odd", "o":
		return serial.OddParity, nil
	case "even", "e":
		return serial.EvenParity, nil
	case "mark", "m":
		return serial.MarkParity, nil
	case "space", "s":
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("lineport: unknown parity %q", name)
	}
}

// ParseStopBits maps a configuration token to a stop bits setting. The
// empty token means one stop bit.
func ParseStopBits(name string) (serial.StopBits, error) {
	switch name {
	case "", "1":
		return serial.OneStopBit, nil
	case "1.5":
		return serial.OnePointFiveStopBits, nil
	case "2":
		return serial.TwoStopBits, nil
	default:
		return serial.OneStopBit, fmt.Errorf("lineport: unknown stop bits %q", name)
	}
}
